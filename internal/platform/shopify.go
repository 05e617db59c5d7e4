package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pricing-service/internal/models"
)

const shopifyAPIVersion = "2023-10"

// ShopifyConnector uses the Shopify Admin REST API
type ShopifyConnector struct {
	httpClient *http.Client
}

func NewShopifyConnector(httpClient *http.Client) *ShopifyConnector {
	return &ShopifyConnector{httpClient: httpClient}
}

func (c *ShopifyConnector) Platform() models.Platform {
	return models.PlatformShopify
}

// ValidateStore reads shop.json with the access token. The identifier is the
// shop's myshopify domain when the response carries one.
func (c *ShopifyConnector) ValidateStore(ctx context.Context, creds Credentials) (*StoreInfo, error) {
	if creds.StoreURL == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: shop URL and access token are required", ErrStoreValidation)
	}

	base := baseURL(creds.StoreURL)
	var resp struct {
		Shop struct {
			Name   string `json:"name"`
			Domain string `json:"myshopify_domain"`
		} `json:"shop"`
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/shop.json", base, shopifyAPIVersion)
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp, c.auth(creds.AccessToken)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreValidation, err)
	}
	if resp.Shop.Name == "" {
		return nil, fmt.Errorf("%w: shop name missing from response", ErrStoreValidation)
	}

	// webhooks name the shop by its myshopify domain, not a custom domain
	identifier := NormalizeHost(resp.Shop.Domain)
	if identifier == "" {
		identifier = NormalizeHost(creds.StoreURL)
	}

	return &StoreInfo{
		Name:       resp.Shop.Name,
		Identifier: identifier,
		URL:        base,
	}, nil
}

// UpdatePrice sets the price on the product's variants
func (c *ShopifyConnector) UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error {
	payload := map[string]interface{}{
		"product": map[string]interface{}{
			"id": externalID,
			"variants": []map[string]string{
				{"price": formatPrice(price)},
			},
		},
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/products/%s.json", baseURL(store.StoreURL), shopifyAPIVersion, url.PathEscape(externalID))
	return doJSON(ctx, c.httpClient, http.MethodPut, endpoint, payload, nil, c.auth(store.AccessToken))
}

func (c *ShopifyConnector) auth(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("X-Shopify-Access-Token", token)
	}
}
