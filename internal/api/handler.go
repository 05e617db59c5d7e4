package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/payments"
	"pricing-service/internal/platform"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/service"
	"pricing-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AuthService is satisfied by *service.AuthService
type AuthService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	ParseToken(token string) (*service.Claims, error)
}

// StoreService is satisfied by *service.StoreService
type StoreService interface {
	Connect(ctx context.Context, userID string, p models.Platform, creds platform.Credentials) (*models.ConnectedStore, error)
	List(ctx context.Context, userID string) ([]models.ConnectedStore, error)
	Disconnect(ctx context.Context, userID, storeID string) error
}

// ProductService is satisfied by *service.ProductService
type ProductService interface {
	ListProducts(ctx context.Context, userID string, params service.ListProductsParams) (*service.ProductPage, error)
	GetProduct(ctx context.Context, userID, productID string) (*models.Product, error)
	UpdatePrice(ctx context.Context, userID, productID string, price float64) (*models.Product, error)
	OptimizeProduct(ctx context.Context, userID, productID string, strategy models.Strategy) (*service.OptimizeResult, error)
	BulkOptimize(ctx context.Context, userID string, productIDs []string, strategy models.Strategy) ([]service.BulkResult, error)
	PricingHistory(ctx context.Context, userID, productID string) ([]models.PricingHistoryEntry, error)
	GetSettings(ctx context.Context, userID string) (*service.SettingsView, error)
	UpdateSettings(ctx context.Context, userID string, req *service.UpdateSettingsRequest) (*service.SettingsView, error)
}

// Optimizer is satisfied by *service.Optimizer
type Optimizer interface {
	OptimizeUser(ctx context.Context, userID string) (*service.UserReport, error)
}

// BillingService is satisfied by *service.BillingService
type BillingService interface {
	Plans() []payments.Plan
	PaymentMethods(country string) []string
	Subscribe(ctx context.Context, userID, planID, paymentMethodID string) (*service.SubscriptionView, error)
	GetSubscription(ctx context.Context, userID string) (*service.SubscriptionView, error)
	CancelSubscription(ctx context.Context, userID string) error
	CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency, method string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// CatalogWebhooks is satisfied by *service.WebhookService
type CatalogWebhooks interface {
	HandleProductEvent(ctx context.Context, p models.Platform, source string, ev *platform.ProductEvent) error
}

// AdminService is satisfied by *service.AdminService
type AdminService interface {
	Stats(ctx context.Context) (*models.PlatformStats, error)
	ListUsers(ctx context.Context, page, limit int) (*service.UserPage, error)
	UpdateUserSubscription(ctx context.Context, userID, plan, status string) (*models.User, error)
	Analytics(ctx context.Context) (*service.Analytics, error)
}

// RateLimiter is satisfied by *redisclient.Client
type RateLimiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (*redisclient.RateLimitResult, error)
}

// Pinger is a readiness dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the handler dependencies
type Services struct {
	Auth      AuthService
	Stores    StoreService
	Products  ProductService
	Optimizer Optimizer
	Billing   BillingService
	Webhooks  CatalogWebhooks
	Admin     AdminService
	Limiter   RateLimiter
	// Readiness maps a dependency name to its health check
	Readiness map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	Services
	platformCfg config.PlatformConfig
	rateLimit   config.RateLimitConfig
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, platformCfg config.PlatformConfig, rateLimit config.RateLimitConfig) *Handler {
	return &Handler{
		Services:    services,
		platformCfg: platformCfg,
		rateLimit:   rateLimit,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// platform webhooks arrive in bursts from a few sender IPs and stay
	// outside the per-IP limiter
	webhooks := router.Group("/api/webhooks")
	{
		webhooks.POST("/shopify", h.shopifyWebhook)
		webhooks.POST("/woocommerce", h.wooCommerceWebhook)
		webhooks.POST("/stripe", h.stripeWebhook)
	}

	api := router.Group("/api")
	api.Use(h.rateLimitMiddleware())

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/me", h.authMiddleware(), h.me)
		auth.POST("/forgot-password", h.forgotPassword)
		auth.POST("/reset-password", h.resetPassword)
	}

	stores := api.Group("/stores", h.authMiddleware())
	{
		stores.GET("", h.listStores)
		stores.POST("/connect/:platform", h.connectStore)
		stores.DELETE("/:storeId", h.disconnectStore)
	}

	products := api.Group("/products", h.authMiddleware())
	{
		products.GET("", h.listProducts)
		products.POST("/bulk-optimize", h.bulkOptimize)
		products.GET("/:productId", h.getProduct)
		products.PATCH("/:productId/price", h.updatePrice)
		products.POST("/:productId/optimize", h.optimizeProduct)
		products.GET("/:productId/pricing-history", h.pricingHistory)
	}

	pricing := api.Group("/pricing", h.authMiddleware())
	{
		pricing.GET("/settings", h.getSettings)
		pricing.PUT("/settings", h.updateSettings)
		pricing.POST("/run", h.runOptimization)
	}

	pay := api.Group("/payments", h.authMiddleware())
	{
		pay.GET("/plans", h.listPlans)
		pay.GET("/methods", h.paymentMethods)
		pay.POST("/subscribe", h.subscribe)
		pay.GET("/subscription", h.getSubscription)
		pay.POST("/cancel-subscription", h.cancelSubscription)
		pay.POST("/create-intent", h.createPaymentIntent)
	}

	admin := api.Group("/admin", h.authMiddleware(), h.adminMiddleware())
	{
		admin.GET("/stats", h.adminStats)
		admin.GET("/users", h.adminListUsers)
		admin.PATCH("/users/:userId/subscription", h.adminUpdateSubscription)
		admin.GET("/analytics", h.adminAnalytics)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.Readiness {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
