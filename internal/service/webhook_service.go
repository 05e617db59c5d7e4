package service

import (
	"context"
	"errors"
	"fmt"

	"pricing-service/internal/models"
	"pricing-service/internal/platform"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// CatalogSyncStore is the persistence used to mirror platform catalog changes
type CatalogSyncStore interface {
	FindStoresByIdentifier(ctx context.Context, p models.Platform, identifier string) ([]models.ConnectedStore, error)
	UpsertProduct(ctx context.Context, p *models.Product) error
	UpdateProductFromPlatform(ctx context.Context, storeID, externalID, name string, price *float64, category string) error
	DeleteProductByExternalID(ctx context.Context, storeID, externalID string) error
}

// WebhookService applies platform product webhooks to the catalog
type WebhookService struct {
	store  CatalogSyncStore
	logger *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(store CatalogSyncStore) *WebhookService {
	return &WebhookService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleProductEvent applies ev to every connected store matching source.
// Unknown kinds, unmatched stores and unmatched products are no-ops.
func (s *WebhookService) HandleProductEvent(ctx context.Context, p models.Platform, source string, ev *platform.ProductEvent) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleProductEvent")
	defer span.End()

	label := string(p)
	if ev.Kind == platform.EventUnknown {
		util.WebhookEventsTotal.WithLabelValues(label, "ignored").Inc()
		return nil
	}

	identifier := platform.NormalizeHost(source)
	if identifier == "" {
		util.WebhookEventsTotal.WithLabelValues(label, "unmatched").Inc()
		s.logger.Info("Webhook without store source ignored", zap.String("platform", label))
		return nil
	}

	stores, err := s.store.FindStoresByIdentifier(ctx, p, identifier)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(label, "failed").Inc()
		return fmt.Errorf("failed to find store: %w", err)
	}
	if len(stores) == 0 {
		util.WebhookEventsTotal.WithLabelValues(label, "unmatched").Inc()
		s.logger.Info("Webhook for unknown store ignored",
			zap.String("platform", label),
			zap.String("store", identifier))
		return nil
	}

	for i := range stores {
		if err := s.apply(ctx, &stores[i], ev); err != nil {
			util.WebhookEventsTotal.WithLabelValues(label, "failed").Inc()
			return err
		}
	}

	util.WebhookEventsTotal.WithLabelValues(label, "processed").Inc()
	return nil
}

func (s *WebhookService) apply(ctx context.Context, cs *models.ConnectedStore, ev *platform.ProductEvent) error {
	var err error
	switch ev.Kind {
	case platform.EventCreated:
		if ev.Price == nil {
			s.logger.Warn("Created product has no price, not imported",
				zap.String("store_id", cs.ID),
				zap.String("external_id", ev.ExternalID))
			return nil
		}
		err = s.store.UpsertProduct(ctx, &models.Product{
			UserID:       cs.UserID,
			StoreID:      cs.ID,
			Platform:     cs.Platform,
			ExternalID:   ev.ExternalID,
			Name:         ev.Name,
			SKU:          ev.SKU,
			Category:     ev.Category,
			CurrentPrice: *ev.Price,
		})
	case platform.EventUpdated:
		err = s.store.UpdateProductFromPlatform(ctx, cs.ID, ev.ExternalID, ev.Name, ev.Price, ev.Category)
	case platform.EventDeleted:
		err = s.store.DeleteProductByExternalID(ctx, cs.ID, ev.ExternalID)
	}

	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("Webhook for unknown product ignored",
			zap.String("store_id", cs.ID),
			zap.String("external_id", ev.ExternalID),
			zap.String("kind", string(ev.Kind)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s for product %s: %w", ev.Kind, ev.ExternalID, err)
	}
	return nil
}
