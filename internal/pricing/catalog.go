package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/httpclient"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// CatalogResolver resolves prices and stock from the catalog service over
// HTTP. Calls go through a circuit breaker so a degraded catalog cannot stall
// every cart and checkout operation behind full timeouts.
type CatalogResolver struct {
	client   *httpclient.CircuitBreakerClient
	baseURL  string
	currency string
	logger   *slog.Logger
}

// NewCatalogResolver creates a resolver against the catalog service at baseURL.
func NewCatalogResolver(client *httpclient.CircuitBreakerClient, baseURL, currency string, logger *slog.Logger) *CatalogResolver {
	return &CatalogResolver{
		client:   client,
		baseURL:  baseURL,
		currency: currency,
		logger:   logger,
	}
}

// catalogProduct is the catalog service's product representation, reduced to
// the fields the resolver needs.
type catalogProduct struct {
	ProductID string `json:"product_id"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
}

type resolveManyRequest struct {
	ProductIDs []string `json:"product_ids"`
}

type resolveManyResponse struct {
	Products []catalogProduct `json:"products"`
}

// Resolve fetches the current price and availability for a single product.
// A 404 from the catalog resolves as unavailable rather than an error.
func (r *CatalogResolver) Resolve(ctx context.Context, productID string) (Resolution, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", r.baseURL, url.PathEscape(productID))

	resp, err := r.client.Get(ctx, endpoint)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve product %s: %w", productID, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := httpclient.ParseResponseError(resp, "catalog")
		if errors.Is(err, apperrors.ErrNotFound) {
			return Unresolvable(productID, r.currency), nil
		}
		return Resolution{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var product catalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return Resolution{}, fmt.Errorf("decode catalog product: %w", err)
	}

	return r.toResolution(productID, product), nil
}

// ResolveMany fetches resolutions for all ids through the catalog's batch
// endpoint. Ids the catalog does not return come back as unavailable.
func (r *CatalogResolver) ResolveMany(ctx context.Context, productIDs []string) (map[string]Resolution, error) {
	if len(productIDs) == 0 {
		return map[string]Resolution{}, nil
	}

	body, err := json.Marshal(resolveManyRequest{ProductIDs: productIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal resolve request: %w", err)
	}

	endpoint := r.baseURL + "/api/v1/products/resolve"
	resp, err := r.client.Post(ctx, endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("resolve %d products: %w", len(productIDs), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded resolveManyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode catalog resolve response: %w", err)
	}

	out := make(map[string]Resolution, len(productIDs))
	for _, product := range decoded.Products {
		out[product.ProductID] = r.toResolution(product.ProductID, product)
	}

	// Products the catalog omitted must still be reported, as unavailable.
	for _, id := range productIDs {
		if _, ok := out[id]; !ok {
			r.logger.DebugContext(ctx, "product missing from catalog response",
				slog.String("product_id", id),
			)
			out[id] = Unresolvable(id, r.currency)
		}
	}

	return out, nil
}

func (r *CatalogResolver) toResolution(productID string, product catalogProduct) Resolution {
	currency := product.Currency
	if currency == "" {
		currency = r.currency
	}
	return Resolution{
		ProductID: productID,
		Price:     money.New(product.Price, currency),
		Available: product.Available,
		Stock:     product.Stock,
	}
}
