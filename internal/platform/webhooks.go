package platform

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EventKind is the closed set of catalog webhook kinds
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
	EventUnknown EventKind = "unknown"
)

// ProductEvent is a platform product webhook in canonical form
type ProductEvent struct {
	Kind       EventKind
	ExternalID string
	Name       string
	SKU        string
	Category   string
	Price      *float64
}

// ShopifyEventKind maps an X-Shopify-Topic header
func ShopifyEventKind(topic string) EventKind {
	switch strings.ToLower(strings.TrimSpace(topic)) {
	case "products/create":
		return EventCreated
	case "products/update":
		return EventUpdated
	case "products/delete":
		return EventDeleted
	}
	return EventUnknown
}

// WooCommerceEventKind maps an X-WC-Webhook-Topic header
func WooCommerceEventKind(topic string) EventKind {
	switch strings.ToLower(strings.TrimSpace(topic)) {
	case "product.created":
		return EventCreated
	case "product.updated", "product.restored":
		return EventUpdated
	case "product.deleted":
		return EventDeleted
	}
	return EventUnknown
}

// DecodeShopifyProduct reads a Shopify product payload. The price and SKU
// come from the first variant.
func DecodeShopifyProduct(kind EventKind, body []byte) (*ProductEvent, error) {
	var payload struct {
		ID          json.Number `json:"id"`
		Title       string      `json:"title"`
		ProductType string      `json:"product_type"`
		Variants    []struct {
			Price string `json:"price"`
			SKU   string `json:"sku"`
		} `json:"variants"`
	}
	if err := decodeJSON(body, &payload); err != nil {
		return nil, err
	}

	ev := &ProductEvent{
		Kind:       kind,
		ExternalID: payload.ID.String(),
		Name:       payload.Title,
		Category:   payload.ProductType,
	}
	if len(payload.Variants) > 0 {
		ev.SKU = payload.Variants[0].SKU
		ev.Price = parsePrice(payload.Variants[0].Price)
	}
	return validateEvent(ev)
}

// DecodeWooCommerceProduct reads a WooCommerce product payload. The regular
// price wins over the active price; the first category is used.
func DecodeWooCommerceProduct(kind EventKind, body []byte) (*ProductEvent, error) {
	var payload struct {
		ID           json.Number `json:"id"`
		Name         string      `json:"name"`
		SKU          string      `json:"sku"`
		RegularPrice string      `json:"regular_price"`
		Price        string      `json:"price"`
		Categories   []struct {
			Name string `json:"name"`
		} `json:"categories"`
	}
	if err := decodeJSON(body, &payload); err != nil {
		return nil, err
	}

	ev := &ProductEvent{
		Kind:       kind,
		ExternalID: payload.ID.String(),
		Name:       payload.Name,
		SKU:        payload.SKU,
		Price:      parsePrice(payload.RegularPrice),
	}
	if ev.Price == nil {
		ev.Price = parsePrice(payload.Price)
	}
	if len(payload.Categories) > 0 {
		ev.Category = payload.Categories[0].Name
	}
	return validateEvent(ev)
}

func decodeJSON(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	return nil
}

func validateEvent(ev *ProductEvent) (*ProductEvent, error) {
	if ev.ExternalID == "" {
		return nil, fmt.Errorf("webhook payload has no product id")
	}
	return ev, nil
}

// parsePrice returns nil for missing, malformed or non-positive prices
func parsePrice(raw string) *float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return nil
	}
	f, _ := d.Round(2).Float64()
	return &f
}

// VerifyHMAC checks a base64 HMAC-SHA256 signature of body, the scheme used
// by both Shopify and WooCommerce webhooks
func VerifyHMAC(body []byte, signature, secret string) bool {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
