package models

import "time"

// Platform identifies a storefront platform
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
)

// Valid reports whether p is a supported platform
func (p Platform) Valid() bool {
	switch p {
	case PlatformShopify, PlatformWooCommerce, PlatformMagento:
		return true
	}
	return false
}

// Strategy selects how the raw candidate price is derived
type Strategy string

const (
	StrategyProfit      Strategy = "profit"
	StrategyVolume      Strategy = "volume"
	StrategyCompetitive Strategy = "competitive"
)

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	switch s {
	case StrategyProfit, StrategyVolume, StrategyCompetitive:
		return true
	}
	return false
}

// Optimization statuses
const (
	OptimizationPending  = "pending"
	OptimizationDone     = "optimized"
	OptimizationRequired = "needs_optimization"
)

// Subscription plans
const (
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Subscription statuses
const (
	SubscriptionNone      = "none"
	SubscriptionActive    = "active"
	SubscriptionTrialing  = "trialing"
	SubscriptionPastDue   = "past_due"
	SubscriptionCanceling = "canceling"
	SubscriptionCanceled  = "canceled"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Pricing settings defaults
const (
	DefaultMinProfitMargin  = 20.0
	DefaultMaxPriceIncrease = 25.0
)

// User is a merchant account
type User struct {
	ID                 string     `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	Name               string     `db:"name" json:"name"`
	Role               string     `db:"role" json:"role"`
	SubscriptionPlan   string     `db:"subscription_plan" json:"subscription_plan"`
	SubscriptionStatus string     `db:"subscription_status" json:"subscription_status"`
	SubscriptionID     *string    `db:"subscription_id" json:"subscription_id,omitempty"`
	StripeCustomerID   *string    `db:"stripe_customer_id" json:"-"`
	AutoOptimize       bool       `db:"auto_optimize" json:"auto_optimize"`
	WeeklyReports      bool       `db:"weekly_reports" json:"weekly_reports"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// PricingSettings holds a user's pricing constraints
type PricingSettings struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Strategy         Strategy  `db:"strategy" json:"strategy"`
	MinProfitMargin  float64   `db:"min_profit_margin" json:"min_profit_margin"`
	MaxPriceIncrease float64   `db:"max_price_increase" json:"max_price_increase"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPricingSettings returns the settings used when a user has none stored
func DefaultPricingSettings(userID string) PricingSettings {
	return PricingSettings{
		UserID:           userID,
		Strategy:         StrategyProfit,
		MinProfitMargin:  DefaultMinProfitMargin,
		MaxPriceIncrease: DefaultMaxPriceIncrease,
	}
}

// ConnectedStore is a validated storefront connection
type ConnectedStore struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Platform        Platform  `db:"platform" json:"platform"`
	StoreURL        string    `db:"store_url" json:"store_url"`
	StoreIdentifier string    `db:"store_identifier" json:"store_identifier"`
	StoreName       string    `db:"store_name" json:"store_name"`
	AccessToken     string    `db:"access_token" json:"-"`
	ConsumerKey     string    `db:"consumer_key" json:"-"`
	ConsumerSecret  string    `db:"consumer_secret" json:"-"`
	APIKey          string    `db:"api_key" json:"-"`
	ConnectedAt     time.Time `db:"connected_at" json:"connected_at"`
}

// Product is the platform-agnostic catalog record
type Product struct {
	ID                 string    `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	StoreID            string    `db:"store_id" json:"store_id"`
	Platform           Platform  `db:"platform" json:"platform"`
	ExternalID         string    `db:"external_id" json:"external_id"`
	Name               string    `db:"name" json:"name"`
	SKU                string    `db:"sku" json:"sku"`
	Category           string    `db:"category" json:"category"`
	CurrentPrice       float64   `db:"current_price" json:"current_price"`
	CostPrice          *float64  `db:"cost_price" json:"cost_price"`
	SuggestedPrice     *float64  `db:"suggested_price" json:"suggested_price"`
	OptimizationStatus string    `db:"optimization_status" json:"optimization_status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// PricingHistoryEntry records one accepted price change. Rows are never updated.
type PricingHistoryEntry struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	OldPrice  float64   `db:"old_price" json:"old_price"`
	NewPrice  float64   `db:"new_price" json:"new_price"`
	Strategy  Strategy  `db:"strategy" json:"strategy"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for webhook idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// PerformanceSummary aggregates a user's recent optimization activity
type PerformanceSummary struct {
	TotalProducts      int     `db:"total_products" json:"total_products"`
	OptimizedProducts  int     `db:"optimized_products" json:"optimized_products"`
	PriceChanges       int     `db:"price_changes" json:"price_changes"`
	AveragePriceChange float64 `db:"average_price_change" json:"average_price_change"`
}

// PlatformStats aggregates admin dashboard counters
type PlatformStats struct {
	TotalUsers          int `db:"total_users" json:"totalUsers"`
	ActiveSubscriptions int `db:"active_subscriptions" json:"activeSubscriptions"`
	MonthlyRevenue      int `db:"-" json:"monthlyRevenue"`
	TotalProducts       int `db:"total_products" json:"totalProducts"`
}

// MonthlyCount is one month of a time series, month formatted YYYY-MM
type MonthlyCount struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}
