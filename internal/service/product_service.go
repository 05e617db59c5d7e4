package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxBulkProducts  = 500
)

// ProductStore is the catalog persistence used by ProductService
type ProductStore interface {
	settingsReader
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error)
	GetProduct(ctx context.Context, userID, productID string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, userID string, ids []string) ([]models.Product, error)
	UpdateProductPrice(ctx context.Context, userID, productID string, price float64) (*models.Product, error)
	SetSuggestedPrice(ctx context.Context, userID, productID string, suggested *float64, status string) (*models.Product, error)
	ListPricingHistory(ctx context.Context, userID, productID string) ([]models.PricingHistoryEntry, error)
	UpsertPricingSettings(ctx context.Context, settings *models.PricingSettings) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserPreferences(ctx context.Context, id string, autoOptimize, weeklyReports bool) error
}

// ProductService handles catalog reads and on-demand suggestions
type ProductService struct {
	store  ProductStore
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store ProductStore) *ProductService {
	return &ProductService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ListProductsParams are the catalog listing query parameters
type ListProductsParams struct {
	Page     int
	Limit    int
	Status   string
	Category string
}

type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int              `json:"total"`
}

// ListProducts pages through the user's catalog
func (s *ProductService) ListProducts(ctx context.Context, userID string, params ListProductsParams) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	page, limit := normalizePage(params.Page, params.Limit)
	products, total, err := s.store.ListProducts(ctx, store.ProductFilter{
		UserID:   userID,
		Status:   params.Status,
		Category: params.Category,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{Products: products, Page: page, Limit: limit, Total: total}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func (s *ProductService) GetProduct(ctx context.Context, userID, productID string) (*models.Product, error) {
	return s.store.GetProduct(ctx, userID, productID)
}

// UpdatePrice sets a manual current price
func (s *ProductService) UpdatePrice(ctx context.Context, userID, productID string, price float64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdatePrice")
	defer span.End()

	if !(price > 0) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: price must be a positive number", ErrInvalidInput)
	}
	return s.store.UpdateProductPrice(ctx, userID, productID, math.Round(price*100)/100)
}

// OptimizeResult is a single-product suggestion
type OptimizeResult struct {
	Product     *models.Product `json:"product"`
	PriceChange string          `json:"priceChange"`
}

// OptimizeProduct stores the engine's suggestion for one product without
// touching its current price. A product the engine cannot price is marked
// needs_optimization and ErrCannotPrice is returned.
func (s *ProductService) OptimizeProduct(ctx context.Context, userID, productID string, strategy models.Strategy) (*OptimizeResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.OptimizeProduct")
	defer span.End()

	settings, err := s.settingsFor(ctx, userID, strategy)
	if err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	return s.suggest(ctx, product, settings)
}

// BulkResult is one product's outcome in a bulk optimize
type BulkResult struct {
	ProductID   string `json:"productId"`
	Success     bool   `json:"success"`
	PriceChange string `json:"priceChange,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkOptimize suggests prices for each id. Item failures are reported in
// the results and never abort the batch.
func (s *ProductService) BulkOptimize(ctx context.Context, userID string, productIDs []string, strategy models.Strategy) ([]BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.BulkOptimize")
	defer span.End()

	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: productIds is required", ErrInvalidInput)
	}
	if len(productIDs) > maxBulkProducts {
		return nil, fmt.Errorf("%w: at most %d products per request", ErrInvalidInput, maxBulkProducts)
	}

	settings, err := s.settingsFor(ctx, userID, strategy)
	if err != nil {
		return nil, err
	}

	products, err := s.store.GetProductsByIDs(ctx, userID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	results := make([]BulkResult, 0, len(productIDs))
	for _, id := range productIDs {
		product, ok := byID[id]
		if !ok {
			results = append(results, BulkResult{ProductID: id, Error: ErrNotFound.Error()})
			continue
		}

		res, err := s.suggest(ctx, product, settings)
		if err != nil {
			results = append(results, BulkResult{ProductID: id, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{ProductID: id, Success: true, PriceChange: res.PriceChange})
	}

	return results, nil
}

func (s *ProductService) suggest(ctx context.Context, product *models.Product, settings models.PricingSettings) (*OptimizeResult, error) {
	price, ok := pricing.ComputeSuggestedPrice(pricing.InputFromProduct(*product), settings)
	if !ok {
		if _, err := s.store.SetSuggestedPrice(ctx, product.UserID, product.ID, product.SuggestedPrice, models.OptimizationRequired); err != nil {
			s.logger.Warn("Failed to flag product for optimization",
				zap.String("product_id", product.ID),
				zap.Error(err))
		}
		return nil, ErrCannotPrice
	}

	updated, err := s.store.SetSuggestedPrice(ctx, product.UserID, product.ID, &price, models.OptimizationDone)
	if err != nil {
		return nil, fmt.Errorf("failed to save suggested price: %w", err)
	}

	return &OptimizeResult{
		Product:     updated,
		PriceChange: fmt.Sprintf("%.1f", pricing.ChangePercent(product.CurrentPrice, price)),
	}, nil
}

// settingsFor loads the user's settings with an optional strategy override
func (s *ProductService) settingsFor(ctx context.Context, userID string, strategy models.Strategy) (models.PricingSettings, error) {
	settings, err := loadSettings(ctx, s.store, userID)
	if err != nil {
		return models.PricingSettings{}, fmt.Errorf("failed to load pricing settings: %w", err)
	}
	if strategy != "" {
		if !strategy.Valid() {
			return models.PricingSettings{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, strategy)
		}
		settings.Strategy = strategy
	}
	return settings, nil
}

// PricingHistory lists a product's price changes, newest first
func (s *ProductService) PricingHistory(ctx context.Context, userID, productID string) ([]models.PricingHistoryEntry, error) {
	if _, err := s.store.GetProduct(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.store.ListPricingHistory(ctx, userID, productID)
}

// SettingsView is the pricing settings plus the automation flags
type SettingsView struct {
	Strategy         models.Strategy `json:"strategy"`
	MinProfitMargin  float64         `json:"minProfitMargin"`
	MaxPriceIncrease float64         `json:"maxPriceIncrease"`
	AutoOptimize     bool            `json:"autoOptimize"`
	WeeklyReports    bool            `json:"weeklyReports"`
}

func (s *ProductService) GetSettings(ctx context.Context, userID string) (*SettingsView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return &SettingsView{
		Strategy:         settings.Strategy,
		MinProfitMargin:  settings.MinProfitMargin,
		MaxPriceIncrease: settings.MaxPriceIncrease,
		AutoOptimize:     user.AutoOptimize,
		WeeklyReports:    user.WeeklyReports,
	}, nil
}

// UpdateSettingsRequest leaves nil fields unchanged
type UpdateSettingsRequest struct {
	Strategy         *string  `json:"strategy"`
	MinProfitMargin  *float64 `json:"minProfitMargin"`
	MaxPriceIncrease *float64 `json:"maxPriceIncrease"`
	AutoOptimize     *bool    `json:"autoOptimize"`
	WeeklyReports    *bool    `json:"weeklyReports"`
}

func (s *ProductService) UpdateSettings(ctx context.Context, userID string, req *UpdateSettingsRequest) (*SettingsView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateSettings")
	defer span.End()

	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Strategy != nil {
		strategy := models.Strategy(strings.ToLower(strings.TrimSpace(*req.Strategy)))
		if !strategy.Valid() {
			return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, *req.Strategy)
		}
		current.Strategy = strategy
	}
	if req.MinProfitMargin != nil {
		if !validPercent(*req.MinProfitMargin) {
			return nil, fmt.Errorf("%w: minProfitMargin must be a non-negative number", ErrInvalidInput)
		}
		current.MinProfitMargin = *req.MinProfitMargin
	}
	if req.MaxPriceIncrease != nil {
		if !validPercent(*req.MaxPriceIncrease) {
			return nil, fmt.Errorf("%w: maxPriceIncrease must be a non-negative number", ErrInvalidInput)
		}
		current.MaxPriceIncrease = *req.MaxPriceIncrease
	}
	if req.AutoOptimize != nil {
		current.AutoOptimize = *req.AutoOptimize
	}
	if req.WeeklyReports != nil {
		current.WeeklyReports = *req.WeeklyReports
	}

	err = s.store.UpsertPricingSettings(ctx, &models.PricingSettings{
		UserID:           userID,
		Strategy:         current.Strategy,
		MinProfitMargin:  current.MinProfitMargin,
		MaxPriceIncrease: current.MaxPriceIncrease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save pricing settings: %w", err)
	}

	if err := s.store.UpdateUserPreferences(ctx, userID, current.AutoOptimize, current.WeeklyReports); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}

	s.logger.Info("Pricing settings updated",
		zap.String("user_id", userID),
		zap.String("strategy", string(current.Strategy)),
		zap.Bool("auto_optimize", current.AutoOptimize))
	return current, nil
}

// validPercent accepts finite non-negative values up to the column's range
func validPercent(v float64) bool {
	return v >= 0 && v < 10000 && !math.IsInf(v, 0)
}
