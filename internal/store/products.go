package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pricing-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProductFilter narrows a user's catalog listing
type ProductFilter struct {
	UserID   string
	Status   string
	Category string
	Limit    int
	Offset   int
}

// ListProducts returns one page of a user's products and the filtered total
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{f.UserID}
	if f.Status != "" {
		where = append(where, "optimization_status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM products WHERE "+cond), args...); err != nil {
		return nil, 0, err
	}

	products := []models.Product{}
	query := s.db.Rebind("SELECT * FROM products WHERE " + cond + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	if err := s.db.SelectContext(ctx, &products, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListProductsByStore returns every product of one store
func (s *Store) ListProductsByStore(ctx context.Context, storeID string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE store_id = $1 ORDER BY created_at, id", storeID)
	return products, err
}

// GetProduct retrieves a product owned by userID
func (s *Store) GetProduct(ctx context.Context, userID, productID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND user_id = $2", productID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves the subset of ids owned by userID
func (s *Store) GetProductsByIDs(ctx context.Context, userID string, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	products := []models.Product{}
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpsertProduct inserts a product or refreshes the catalog fields of the
// existing (store, external id) row. Pricing fields of an existing row are
// left alone apart from the current price.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.OptimizationStatus == "" {
		p.OptimizationStatus = models.OptimizationPending
	}

	query := `
		INSERT INTO products (id, user_id, store_id, platform, external_id, name, sku, category,
			current_price, cost_price, optimization_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (store_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			category = EXCLUDED.category,
			current_price = EXCLUDED.current_price,
			cost_price = COALESCE(EXCLUDED.cost_price, products.cost_price),
			updated_at = NOW()
		RETURNING *`

	return s.db.GetContext(ctx, p, query,
		p.ID, p.UserID, p.StoreID, p.Platform, p.ExternalID, p.Name, p.SKU, p.Category,
		p.CurrentPrice, p.CostPrice, p.OptimizationStatus)
}

// UpdateProductFromPlatform refreshes the catalog fields of the product
// matching (store, external id). A nil price or empty name or category keeps
// the stored value. Returns ErrNotFound when there is no such product.
func (s *Store) UpdateProductFromPlatform(ctx context.Context, storeID, externalID, name string, price *float64, category string) error {
	return s.execOne(ctx, `
		UPDATE products
		SET name = COALESCE(NULLIF($1, ''), name),
			current_price = COALESCE($2, current_price),
			category = COALESCE(NULLIF($3, ''), category),
			updated_at = NOW()
		WHERE store_id = $4 AND external_id = $5`,
		name, price, category, storeID, externalID)
}

// DeleteProductByExternalID removes the product matching (store, external id).
// Returns ErrNotFound when there is none.
func (s *Store) DeleteProductByExternalID(ctx context.Context, storeID, externalID string) error {
	return s.execOne(ctx,
		"DELETE FROM products WHERE store_id = $1 AND external_id = $2", storeID, externalID)
}

// UpdateProductPrice sets a manual current price
func (s *Store) UpdateProductPrice(ctx context.Context, userID, productID string, price float64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET current_price = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING *`,
		price, productID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SetSuggestedPrice records an engine suggestion without changing the current price
func (s *Store) SetSuggestedPrice(ctx context.Context, userID, productID string, suggested *float64, status string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET suggested_price = $1, optimization_status = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING *`,
		suggested, status, productID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ApplyPriceChange records an accepted price in one transaction: the product
// takes the new price as current and suggested price and one history row is
// appended.
func (s *Store) ApplyPriceChange(ctx context.Context, product *models.Product, newPrice float64, strategy models.Strategy) (*models.PricingHistoryEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var oldPrice float64
	err = tx.GetContext(ctx, &oldPrice,
		"SELECT current_price FROM products WHERE id = $1 FOR UPDATE", product.ID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET current_price = $1, suggested_price = $1, optimization_status = $2, updated_at = NOW()
		WHERE id = $3`,
		newPrice, models.OptimizationDone, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product price: %w", err)
	}

	entry := &models.PricingHistoryEntry{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		UserID:    product.UserID,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		Strategy:  strategy,
	}
	err = tx.GetContext(ctx, &entry.CreatedAt, `
		INSERT INTO pricing_history (id, product_id, user_id, old_price, new_price, strategy)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		entry.ID, entry.ProductID, entry.UserID, entry.OldPrice, entry.NewPrice, entry.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pricing history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}
