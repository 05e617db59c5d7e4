package api

import (
	"net/http"

	"pricing-service/internal/models"
	"pricing-service/internal/platform"
	"pricing-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

func (h *Handler) shopifyWebhook(c *gin.Context) {
	body, ok := h.readWebhook(c, "X-Shopify-Hmac-Sha256", h.platformCfg.ShopifyWebhookSecret, models.PlatformShopify)
	if !ok {
		return
	}

	kind := platform.ShopifyEventKind(c.GetHeader("X-Shopify-Topic"))
	h.applyProductEvent(c, models.PlatformShopify, c.GetHeader("X-Shopify-Shop-Domain"), kind, body, platform.DecodeShopifyProduct)
}

func (h *Handler) wooCommerceWebhook(c *gin.Context) {
	body, ok := h.readWebhook(c, "X-WC-Webhook-Signature", h.platformCfg.WooCommerceWebhookSecret, models.PlatformWooCommerce)
	if !ok {
		return
	}

	topic := c.GetHeader("X-WC-Webhook-Topic")
	if topic == "" {
		topic = c.GetHeader("action")
	}
	kind := platform.WooCommerceEventKind(topic)
	h.applyProductEvent(c, models.PlatformWooCommerce, c.GetHeader("X-WC-Webhook-Source"), kind, body, platform.DecodeWooCommerceProduct)
}

// readWebhook reads the raw body and checks its HMAC when a secret is configured
func (h *Handler) readWebhook(c *gin.Context, sigHeader, secret string, p models.Platform) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Invalid webhook body", err)
		return nil, false
	}

	if secret != "" && !platform.VerifyHMAC(body, c.GetHeader(sigHeader), secret) {
		util.WebhookEventsTotal.WithLabelValues(string(p), "rejected").Inc()
		h.logger.Warn("Webhook signature rejected", zap.String("platform", string(p)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return nil, false
	}
	return body, true
}

func (h *Handler) applyProductEvent(c *gin.Context, p models.Platform, source string, kind platform.EventKind, body []byte,
	decode func(platform.EventKind, []byte) (*platform.ProductEvent, error)) {
	ev := &platform.ProductEvent{Kind: kind}
	if kind != platform.EventUnknown {
		decoded, err := decode(kind, body)
		if err != nil {
			util.WebhookEventsTotal.WithLabelValues(string(p), "rejected").Inc()
			badRequest(c, "Invalid webhook payload", err)
			return
		}
		ev = decoded
	}

	if err := h.Webhooks.HandleProductEvent(c.Request.Context(), p, source, ev); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// stripeWebhook answers 5xx on processing failures so the gateway retries
func (h *Handler) stripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Invalid webhook body", err)
		return
	}

	if err := h.Billing.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
