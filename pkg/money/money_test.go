package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_SameCurrency(t *testing.T) {
	sum, err := New(1000, "EUR").Add(New(500, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, New(1500, "EUR"), sum)
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	_, err := New(1000, "EUR").Add(New(500, "USD"))
	assert.Error(t, err)
}

func TestAdd_ZeroValueIsNeutral(t *testing.T) {
	sum, err := Money{}.Add(New(250, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, New(250, "EUR"), sum)
}

func TestSub(t *testing.T) {
	diff, err := New(1000, "EUR").Sub(New(1500, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, New(-500, "EUR"), diff)
	assert.True(t, diff.IsNegative())
}

func TestMulQty(t *testing.T) {
	assert.Equal(t, New(2500, "EUR"), New(500, "EUR").MulQty(5))
	assert.Equal(t, Zero("EUR"), New(500, "EUR").MulQty(0))
}

func TestCmp(t *testing.T) {
	lt, err := New(100, "EUR").Cmp(New(200, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, -1, lt)

	eq, err := New(200, "EUR").Cmp(New(200, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, 0, eq)

	gt, err := New(300, "EUR").Cmp(New(200, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, 1, gt)

	_, err = New(100, "EUR").Cmp(New(100, "USD"))
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "12.50 EUR", New(1250, "EUR").String())
	assert.Equal(t, "0.05 EUR", New(5, "EUR").String())
	assert.Equal(t, "-3.07 USD", New(-307, "USD").String())
}

func TestSum(t *testing.T) {
	total, err := Sum("EUR", New(1000, "EUR"), New(250, "EUR"), New(5, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, New(1255, "EUR"), total)

	empty, err := Sum("EUR")
	require.NoError(t, err)
	assert.Equal(t, Zero("EUR"), empty)

	_, err = Sum("EUR", New(100, "USD"))
	assert.Error(t, err)
}
