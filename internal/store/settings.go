package store

import (
	"context"
	"database/sql"

	"pricing-service/internal/models"
)

// GetPricingSettings returns ErrNotFound when the user never saved settings
func (s *Store) GetPricingSettings(ctx context.Context, userID string) (*models.PricingSettings, error) {
	var settings models.PricingSettings
	err := s.db.GetContext(ctx, &settings,
		"SELECT user_id, strategy, min_profit_margin, max_price_increase, updated_at FROM pricing_settings WHERE user_id = $1",
		userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertPricingSettings creates or replaces a user's settings
func (s *Store) UpsertPricingSettings(ctx context.Context, settings *models.PricingSettings) error {
	query := `
		INSERT INTO pricing_settings (user_id, strategy, min_profit_margin, max_price_increase)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			min_profit_margin = EXCLUDED.min_profit_margin,
			max_price_increase = EXCLUDED.max_price_increase,
			updated_at = NOW()
		RETURNING updated_at`

	return s.db.GetContext(ctx, &settings.UpdatedAt, query,
		settings.UserID, settings.Strategy, settings.MinProfitMargin, settings.MaxPriceIncrease)
}
