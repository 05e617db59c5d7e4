// Package platform talks to the storefront APIs: validating credentials when
// a store is connected and pushing accepted prices back to the store.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrStoreValidation     = errors.New("store validation failed")
)

// Credentials are the connect-time inputs for a store
type Credentials struct {
	StoreURL       string
	AccessToken    string
	ConsumerKey    string
	ConsumerSecret string
	APIKey         string
}

// StoreInfo is the normalized identity of a validated store
type StoreInfo struct {
	Name       string
	Identifier string
	URL        string
}

// Connector is implemented once per storefront platform
type Connector interface {
	Platform() models.Platform
	ValidateStore(ctx context.Context, creds Credentials) (*StoreInfo, error)
	UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error
}

// Registry dispatches to the connector for a store's platform
type Registry struct {
	connectors map[models.Platform]Connector
	logger     *zap.Logger
}

// NewRegistry builds the Shopify, WooCommerce and Magento connectors sharing
// one HTTP client bounded by timeout
func NewRegistry(timeout time.Duration) *Registry {
	httpClient := &http.Client{Timeout: timeout}
	return NewRegistryWith(
		NewShopifyConnector(httpClient),
		NewWooCommerceConnector(httpClient),
		NewMagentoConnector(httpClient),
	)
}

// NewRegistryWith builds a registry from explicit connectors
func NewRegistryWith(connectors ...Connector) *Registry {
	r := &Registry{
		connectors: make(map[models.Platform]Connector, len(connectors)),
		logger:     util.GetLogger(),
	}
	for _, c := range connectors {
		r.connectors[c.Platform()] = c
	}
	return r
}

// Get returns the connector for p
func (r *Registry) Get(p models.Platform) (Connector, error) {
	c, ok := r.connectors[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return c, nil
}

// ValidateStore checks credentials against the platform
func (r *Registry) ValidateStore(ctx context.Context, p models.Platform, creds Credentials) (*StoreInfo, error) {
	ctx, span := util.StartSpan(ctx, "Platform.ValidateStore")
	defer span.End()

	c, err := r.Get(p)
	if err != nil {
		return nil, err
	}
	return c.ValidateStore(ctx, creds)
}

// UpdatePrice pushes a price to the store's platform
func (r *Registry) UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error {
	ctx, span := util.StartSpan(ctx, "Platform.UpdatePrice")
	defer span.End()

	c, err := r.Get(store.Platform)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.UpdatePrice(ctx, store, externalID, price)
	util.PlatformPushLatency.WithLabelValues(string(store.Platform)).Observe(time.Since(start).Seconds())
	if err != nil {
		util.PlatformPushFailed.WithLabelValues(string(store.Platform)).Inc()
		r.logger.Warn("Platform price update failed",
			zap.String("store_id", store.ID),
			zap.String("platform", string(store.Platform)),
			zap.String("external_id", externalID),
			zap.Error(err))
		return err
	}
	return nil
}

// NormalizeHost reduces a store URL, shop domain or webhook source to the
// lowercase host used to attribute webhooks to a connected store
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Host), ".")
}

// baseURL returns the store root with a scheme and without a trailing slash
func baseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

func formatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// doJSON sends body (if any) as JSON and decodes a 2xx response into out (if any)
func doJSON(ctx context.Context, client *http.Client, method, endpoint string, body interface{}, out interface{}, decorate func(*http.Request)) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API request failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
