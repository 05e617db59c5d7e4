package api

import (
	"net/http"
	"strings"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/platform"

	"github.com/gin-gonic/gin"
)

// connectStoreRequest carries the credential fields of every platform;
// each platform requires its own subset
type connectStoreRequest struct {
	ShopURL        string `json:"shopUrl"`
	StoreURL       string `json:"storeUrl"`
	AccessToken    string `json:"accessToken"`
	ConsumerKey    string `json:"consumerKey"`
	ConsumerSecret string `json:"consumerSecret"`
	APIKey         string `json:"apiKey"`
}

func (r *connectStoreRequest) credentials(p models.Platform) (platform.Credentials, bool) {
	var creds platform.Credentials
	switch p {
	case models.PlatformShopify:
		creds = platform.Credentials{StoreURL: r.ShopURL, AccessToken: r.AccessToken}
		return creds, creds.StoreURL != "" && creds.AccessToken != ""
	case models.PlatformWooCommerce:
		creds = platform.Credentials{StoreURL: r.StoreURL, ConsumerKey: r.ConsumerKey, ConsumerSecret: r.ConsumerSecret}
		return creds, creds.StoreURL != "" && creds.ConsumerKey != "" && creds.ConsumerSecret != ""
	case models.PlatformMagento:
		creds = platform.Credentials{StoreURL: r.StoreURL, APIKey: r.APIKey}
		return creds, creds.StoreURL != "" && creds.APIKey != ""
	}
	return creds, false
}

type storeView struct {
	ID          string          `json:"id"`
	Platform    models.Platform `json:"platform"`
	StoreName   string          `json:"store_name"`
	ConnectedAt time.Time       `json:"connected_at"`
}

func (h *Handler) connectStore(c *gin.Context) {
	p := models.Platform(strings.ToLower(c.Param("platform")))
	if !p.Valid() {
		badRequest(c, "Unsupported platform", nil)
		return
	}

	var req connectStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	creds, ok := req.credentials(p)
	if !ok {
		badRequest(c, "All fields are required", nil)
		return
	}

	cs, err := h.Stores.Connect(c.Request.Context(), userID(c), p, creds)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Store connected successfully",
		"store": gin.H{
			"id":       cs.ID,
			"platform": cs.Platform,
			"name":     cs.StoreName,
		},
	})
}

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.Stores.List(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	views := make([]storeView, 0, len(stores))
	for _, s := range stores {
		views = append(views, storeView{ID: s.ID, Platform: s.Platform, StoreName: s.StoreName, ConnectedAt: s.ConnectedAt})
	}
	c.JSON(http.StatusOK, gin.H{"stores": views})
}

func (h *Handler) disconnectStore(c *gin.Context) {
	if err := h.Stores.Disconnect(c.Request.Context(), userID(c), c.Param("storeId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Store disconnected successfully"})
}
