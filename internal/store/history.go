package store

import (
	"context"
	"time"

	"pricing-service/internal/models"
)

// ListPricingHistory returns a product's price changes, newest first
func (s *Store) ListPricingHistory(ctx context.Context, userID, productID string) ([]models.PricingHistoryEntry, error) {
	history := []models.PricingHistoryEntry{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT * FROM pricing_history
		WHERE product_id = $1 AND user_id = $2
		ORDER BY created_at DESC`,
		productID, userID)
	return history, err
}

// PurgePricingHistory deletes history recorded before cutoff
func (s *Store) PurgePricingHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pricing_history WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetPerformanceSummary aggregates a user's catalog and the price changes since the given time
func (s *Store) GetPerformanceSummary(ctx context.Context, userID string, since time.Time) (*models.PerformanceSummary, error) {
	var summary models.PerformanceSummary
	query := `
		SELECT
			(SELECT COUNT(*) FROM products WHERE user_id = $1) AS total_products,
			(SELECT COUNT(*) FROM products WHERE user_id = $1 AND optimization_status = 'optimized') AS optimized_products,
			COUNT(h.id) AS price_changes,
			COALESCE(ROUND(AVG((h.new_price - h.old_price) / NULLIF(h.old_price, 0) * 100), 1), 0) AS average_price_change
		FROM pricing_history h
		WHERE h.user_id = $1 AND h.created_at >= $2`

	if err := s.db.GetContext(ctx, &summary, query, userID, since); err != nil {
		return nil, err
	}
	return &summary, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
