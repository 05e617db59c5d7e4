package service

import (
	"context"
	"errors"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"

	"github.com/google/uuid"
)

// EventPublisher is satisfied by *broker.EventPublisher
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
	PublishPasswordResetRequested(ctx context.Context, event *models.PasswordResetRequestedEvent) error
	PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error
	PublishOptimizationCompleted(ctx context.Context, event *models.OptimizationCompletedEvent) error
	PublishWeeklyReport(ctx context.Context, event *models.WeeklyReportEvent) error
}

// PricePusher sends an accepted price to the store's platform
type PricePusher interface {
	UpdatePrice(ctx context.Context, store *models.ConnectedStore, externalID string, price float64) error
}

// Locker hands out Redis leases
type Locker interface {
	AcquireLease(ctx context.Context, name string, ttl time.Duration) (*redisclient.Lease, error)
	ExtendLease(ctx context.Context, lease *redisclient.Lease, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, lease *redisclient.Lease) (bool, error)
}

type settingsReader interface {
	GetPricingSettings(ctx context.Context, userID string) (*models.PricingSettings, error)
}

// loadSettings returns the user's stored settings or the defaults
func loadSettings(ctx context.Context, st settingsReader, userID string) (models.PricingSettings, error) {
	settings, err := st.GetPricingSettings(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultPricingSettings(userID), nil
	}
	if err != nil {
		return models.PricingSettings{}, err
	}
	if settings.Strategy == "" {
		settings.Strategy = models.StrategyProfit
	}
	return *settings, nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
