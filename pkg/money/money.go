// Package money provides an immutable monetary value in minor units
// (cents) with currency-aware arithmetic. All amounts flowing through
// carts, checkout sessions, and events use this type.
package money

import (
	"fmt"
)

// DefaultCurrency is used when a cart is created without an explicit currency.
const DefaultCurrency = "EUR"

// Money is an amount in minor units (e.g. cents) tagged with an ISO 4217
// currency code. The zero value is "0 of no currency" and is treated as
// compatible with every currency so empty totals can be summed naturally.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New creates a monetary value from minor units and a currency code.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the zero amount for the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// sameCurrency reports whether the two values may take part in arithmetic.
// A zero-value Money (no currency) is compatible with anything.
func (m Money) sameCurrency(other Money) bool {
	return m.Currency == other.Currency || m.Currency == "" || other.Currency == ""
}

// resultCurrency picks the non-empty currency of the two operands.
func (m Money) resultCurrency(other Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return other.Currency
}

// Add returns m + other. Adding values of different currencies is an error.
func (m Money) Add(other Money) (Money, error) {
	if !m.sameCurrency(other) {
		return Money{}, fmt.Errorf("money: cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.resultCurrency(other)}, nil
}

// Sub returns m - other. Subtracting a different currency is an error.
func (m Money) Sub(other Money) (Money, error) {
	if !m.sameCurrency(other) {
		return Money{}, fmt.Errorf("money: cannot subtract %s from %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.resultCurrency(other)}, nil
}

// MulQty returns the value multiplied by an item quantity.
func (m Money) MulQty(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency}
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
// Comparing different currencies is an error.
func (m Money) Cmp(other Money) (int, error) {
	if !m.sameCurrency(other) {
		return 0, fmt.Errorf("money: cannot compare %s with %s", m.Currency, other.Currency)
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// String formats the value with two decimal places, e.g. "12.50 EUR".
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}

// Sum adds a sequence of values, starting from the zero value of the given
// currency. It fails on the first currency mismatch.
func Sum(currency string, values ...Money) (Money, error) {
	total := Zero(currency)
	for _, v := range values {
		var err error
		total, err = total.Add(v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
