package store

import (
	"context"
	"database/sql"

	"pricing-service/internal/models"

	"github.com/google/uuid"
)

// CreateConnectedStore persists a validated store connection
func (s *Store) CreateConnectedStore(ctx context.Context, cs *models.ConnectedStore) error {
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}

	query := `
		INSERT INTO connected_stores (id, user_id, platform, store_url, store_identifier, store_name,
			access_token, consumer_key, consumer_secret, api_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING connected_at`

	return s.db.GetContext(ctx, &cs.ConnectedAt, query,
		cs.ID, cs.UserID, cs.Platform, cs.StoreURL, cs.StoreIdentifier, cs.StoreName,
		cs.AccessToken, cs.ConsumerKey, cs.ConsumerSecret, cs.APIKey)
}

// ListStoresByUser returns a user's stores, newest first
func (s *Store) ListStoresByUser(ctx context.Context, userID string) ([]models.ConnectedStore, error) {
	stores := []models.ConnectedStore{}
	err := s.db.SelectContext(ctx, &stores,
		"SELECT * FROM connected_stores WHERE user_id = $1 ORDER BY connected_at DESC", userID)
	return stores, err
}

// GetStore retrieves a store owned by userID
func (s *Store) GetStore(ctx context.Context, userID, storeID string) (*models.ConnectedStore, error) {
	var cs models.ConnectedStore
	err := s.db.GetContext(ctx, &cs,
		"SELECT * FROM connected_stores WHERE id = $1 AND user_id = $2", storeID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// FindStoresByIdentifier returns every connection to the given storefront.
// More than one user may connect the same store.
func (s *Store) FindStoresByIdentifier(ctx context.Context, platform models.Platform, identifier string) ([]models.ConnectedStore, error) {
	stores := []models.ConnectedStore{}
	err := s.db.SelectContext(ctx, &stores,
		"SELECT * FROM connected_stores WHERE platform = $1 AND store_identifier = $2", platform, identifier)
	return stores, err
}

// DeleteStore removes a store owned by userID together with its products
func (s *Store) DeleteStore(ctx context.Context, userID, storeID string) error {
	return s.execOne(ctx,
		"DELETE FROM connected_stores WHERE id = $1 AND user_id = $2", storeID, userID)
}
