package pricing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/pkg/httpclient"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

func newCatalogResolver(t *testing.T, handler http.Handler) (*CatalogResolver, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("catalog-test-"+t.Name()),
		logger,
	)

	return NewCatalogResolver(client, server.URL, "EUR", logger), server
}

func TestCatalogResolver_Resolve(t *testing.T) {
	resolver, _ := newCatalogResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/prod-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(catalogProduct{
			ProductID: "prod-1",
			Price:     1999,
			Currency:  "EUR",
			Available: true,
			Stock:     7,
		})
	}))

	res, err := resolver.Resolve(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, money.New(1999, "EUR"), res.Price)
	assert.True(t, res.Available)
	assert.Equal(t, 7, res.Stock)
}

func TestCatalogResolver_ResolveNotFound(t *testing.T) {
	resolver, _ := newCatalogResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"product not found"}}`))
	}))

	res, err := resolver.Resolve(context.Background(), "prod-gone")
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, 0, res.Stock)
	assert.True(t, res.Price.IsZero())
}

func TestCatalogResolver_ResolveMany(t *testing.T) {
	resolver, _ := newCatalogResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/products/resolve", r.URL.Path)

		var req resolveManyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"prod-1", "prod-2"}, req.ProductIDs)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resolveManyResponse{Products: []catalogProduct{
			{ProductID: "prod-1", Price: 1000, Currency: "EUR", Available: true, Stock: 5},
			// prod-2 deliberately omitted by the catalog.
		}})
	}))

	resolutions, err := resolver.ResolveMany(context.Background(), []string{"prod-1", "prod-2"})
	require.NoError(t, err)
	require.Len(t, resolutions, 2)

	assert.True(t, resolutions["prod-1"].Available)
	assert.Equal(t, money.New(1000, "EUR"), resolutions["prod-1"].Price)

	// Omitted ids must come back unavailable, never be missing.
	assert.False(t, resolutions["prod-2"].Available)
	assert.Equal(t, 0, resolutions["prod-2"].Stock)
}

func TestCatalogResolver_ResolveManyEmpty(t *testing.T) {
	resolver, _ := newCatalogResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty id list")
	}))

	resolutions, err := resolver.ResolveMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resolutions)
}
