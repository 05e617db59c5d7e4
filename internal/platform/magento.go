package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pricing-service/internal/models"
)

// MagentoConnector uses the Magento 2 REST API with an integration token
type MagentoConnector struct {
	httpClient *http.Client
}

func NewMagentoConnector(httpClient *http.Client) *MagentoConnector {
	return &MagentoConnector{httpClient: httpClient}
}

func (c *MagentoConnector) Platform() models.Platform {
	return models.PlatformMagento
}

// ValidateStore reads the store configs; the first config's base URL doubles as the name
func (c *MagentoConnector) ValidateStore(ctx context.Context, creds Credentials) (*StoreInfo, error) {
	if creds.StoreURL == "" || creds.APIKey == "" {
		return nil, fmt.Errorf("%w: store URL and API key are required", ErrStoreValidation)
	}

	base := baseURL(creds.StoreURL)
	var resp []struct {
		BaseURL string `json:"base_url"`
	}
	endpoint := base + "/rest/V1/store/storeConfigs"
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp, c.auth(creds.APIKey)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreValidation, err)
	}
	if len(resp) == 0 || resp[0].BaseURL == "" {
		return nil, fmt.Errorf("%w: store config missing from response", ErrStoreValidation)
	}

	return &StoreInfo{
		Name:       resp[0].BaseURL,
		Identifier: NormalizeHost(creds.StoreURL),
		URL:        base,
	}, nil
}

func (c *MagentoConnector) UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error {
	payload := map[string]interface{}{
		"product": map[string]interface{}{
			"price": price,
		},
	}
	endpoint := fmt.Sprintf("%s/rest/V1/products/%s", baseURL(store.StoreURL), url.PathEscape(externalID))
	return doJSON(ctx, c.httpClient, http.MethodPut, endpoint, payload, nil, c.auth(store.APIKey))
}

func (c *MagentoConnector) auth(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
