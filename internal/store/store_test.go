package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"pricing-service/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL or skips
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUserAndStore(t *testing.T, s *Store) (*models.User, *models.ConnectedStore) {
	t.Helper()
	ctx := context.Background()

	user := &models.User{
		Email:              fmt.Sprintf("owner-%d@example.com", time.Now().UnixNano()),
		PasswordHash:       "hash",
		Name:               "Owner",
		Role:               models.RoleUser,
		SubscriptionPlan:   models.PlanStarter,
		SubscriptionStatus: models.SubscriptionNone,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	cs := &models.ConnectedStore{
		UserID:          user.ID,
		Platform:        models.PlatformShopify,
		StoreURL:        "https://demo.myshopify.com",
		StoreIdentifier: "demo.myshopify.com",
		StoreName:       "Demo",
		AccessToken:     "tok",
	}
	require.NoError(t, s.CreateConnectedStore(ctx, cs))
	return user, cs
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"users", "pricing_settings", "connected_stores", "products", "pricing_history", "processed_events"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, _ := seedUserAndStore(t, s)

	dup := &models.User{
		Email:              user.Email,
		PasswordHash:       "hash",
		Name:               "Other",
		Role:               models.RoleUser,
		SubscriptionPlan:   models.PlanStarter,
		SubscriptionStatus: models.SubscriptionNone,
	}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)

	found, err := s.GetUserByEmail(ctx, "  "+user.Email+" ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestApplyPriceChange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, cs := seedUserAndStore(t, s)

	product := &models.Product{
		UserID:       user.ID,
		StoreID:      cs.ID,
		Platform:     cs.Platform,
		ExternalID:   "1001",
		Name:         "Headphones",
		Category:     "electronics",
		CurrentPrice: 29.99,
	}
	require.NoError(t, s.UpsertProduct(ctx, product))

	entry, err := s.ApplyPriceChange(ctx, product, 33.00, models.StrategyProfit)
	require.NoError(t, err)
	assert.Equal(t, 29.99, entry.OldPrice)
	assert.Equal(t, 33.00, entry.NewPrice)

	updated, err := s.GetProduct(ctx, user.ID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 33.00, updated.CurrentPrice)
	require.NotNil(t, updated.SuggestedPrice)
	assert.Equal(t, 33.00, *updated.SuggestedPrice)
	assert.Equal(t, models.OptimizationDone, updated.OptimizationStatus)

	history, err := s.ListPricingHistory(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestWebhookProductLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, cs := seedUserAndStore(t, s)

	product := &models.Product{UserID: user.ID, StoreID: cs.ID, Platform: cs.Platform, ExternalID: "55", Name: "Mug", CurrentPrice: 9}
	require.NoError(t, s.UpsertProduct(ctx, product))

	again := &models.Product{UserID: user.ID, StoreID: cs.ID, Platform: cs.Platform, ExternalID: "55", Name: "Mug v2", CurrentPrice: 10}
	require.NoError(t, s.UpsertProduct(ctx, again))
	assert.Equal(t, product.ID, again.ID)

	price := 11.0
	require.NoError(t, s.UpdateProductFromPlatform(ctx, cs.ID, "55", "Mug v3", &price, "home"))
	assert.ErrorIs(t, s.UpdateProductFromPlatform(ctx, cs.ID, "missing", "x", &price, ""), ErrNotFound)

	require.NoError(t, s.DeleteProductByExternalID(ctx, cs.ID, "55"))
	assert.ErrorIs(t, s.DeleteProductByExternalID(ctx, cs.ID, "55"), ErrNotFound)
}

func TestProcessedEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("evt_%d", time.Now().UnixNano())
	seen, err := s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkEventProcessed(ctx, id, "invoice.payment_succeeded"))
	require.NoError(t, s.MarkEventProcessed(ctx, id, "invoice.payment_succeeded"))

	seen, err = s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestPurgePricingHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.PurgePricingHistory(ctx, time.Now().Add(-30*24*time.Hour))
	assert.NoError(t, err)
}
