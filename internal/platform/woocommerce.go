package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pricing-service/internal/models"
)

// WooCommerceConnector uses the WooCommerce REST API v3 with basic auth
type WooCommerceConnector struct {
	httpClient *http.Client
}

func NewWooCommerceConnector(httpClient *http.Client) *WooCommerceConnector {
	return &WooCommerceConnector{httpClient: httpClient}
}

func (c *WooCommerceConnector) Platform() models.Platform {
	return models.PlatformWooCommerce
}

func (c *WooCommerceConnector) ValidateStore(ctx context.Context, creds Credentials) (*StoreInfo, error) {
	if creds.StoreURL == "" || creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, fmt.Errorf("%w: store URL, consumer key and consumer secret are required", ErrStoreValidation)
	}

	base := baseURL(creds.StoreURL)
	var resp struct {
		Settings struct {
			Title string `json:"title"`
		} `json:"settings"`
	}
	endpoint := base + "/wp-json/wc/v3/system_status"
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp, c.auth(creds.ConsumerKey, creds.ConsumerSecret)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreValidation, err)
	}
	if resp.Settings.Title == "" {
		return nil, fmt.Errorf("%w: store title missing from response", ErrStoreValidation)
	}

	return &StoreInfo{
		Name:       resp.Settings.Title,
		Identifier: NormalizeHost(creds.StoreURL),
		URL:        base,
	}, nil
}

func (c *WooCommerceConnector) UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error {
	payload := map[string]string{"regular_price": formatPrice(price)}
	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/products/%s", baseURL(store.StoreURL), url.PathEscape(externalID))
	return doJSON(ctx, c.httpClient, http.MethodPut, endpoint, payload, nil, c.auth(store.ConsumerKey, store.ConsumerSecret))
}

func (c *WooCommerceConnector) auth(key, secret string) func(*http.Request) {
	return func(req *http.Request) {
		req.SetBasicAuth(key, secret)
	}
}
