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

// ConnectedStoreRepo persists store connections
type ConnectedStoreRepo interface {
	CreateConnectedStore(ctx context.Context, cs *models.ConnectedStore) error
	ListStoresByUser(ctx context.Context, userID string) ([]models.ConnectedStore, error)
	DeleteStore(ctx context.Context, userID, storeID string) error
}

// StoreValidator checks credentials with the storefront platform
type StoreValidator interface {
	ValidateStore(ctx context.Context, p models.Platform, creds platform.Credentials) (*platform.StoreInfo, error)
}

// StoreService connects and disconnects storefronts
type StoreService struct {
	store     ConnectedStoreRepo
	validator StoreValidator
	logger    *zap.Logger
}

// NewStoreService creates a new store service
func NewStoreService(store ConnectedStoreRepo, validator StoreValidator) *StoreService {
	return &StoreService{
		store:     store,
		validator: validator,
		logger:    util.GetLogger(),
	}
}

// Connect validates credentials with the platform and persists the store.
// Nothing is stored when validation fails.
func (s *StoreService) Connect(ctx context.Context, userID string, p models.Platform, creds platform.Credentials) (*models.ConnectedStore, error) {
	ctx, span := util.StartSpan(ctx, "StoreService.Connect")
	defer span.End()

	if !p.Valid() {
		return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidInput, p)
	}

	info, err := s.validator.ValidateStore(ctx, p, creds)
	if err != nil {
		s.logger.Info("Store validation failed",
			zap.String("user_id", userID),
			zap.String("platform", string(p)),
			zap.Error(err))
		if errors.Is(err, platform.ErrStoreValidation) {
			return nil, fmt.Errorf("%w: %v", ErrStoreValidation, err)
		}
		return nil, err
	}

	cs := &models.ConnectedStore{
		UserID:          userID,
		Platform:        p,
		StoreURL:        info.URL,
		StoreIdentifier: info.Identifier,
		StoreName:       info.Name,
		AccessToken:     creds.AccessToken,
		ConsumerKey:     creds.ConsumerKey,
		ConsumerSecret:  creds.ConsumerSecret,
		APIKey:          creds.APIKey,
	}
	if err := s.store.CreateConnectedStore(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to save store: %w", err)
	}

	s.logger.Info("Store connected",
		zap.String("user_id", userID),
		zap.String("store_id", cs.ID),
		zap.String("platform", string(p)))
	return cs, nil
}

func (s *StoreService) List(ctx context.Context, userID string) ([]models.ConnectedStore, error) {
	return s.store.ListStoresByUser(ctx, userID)
}

// Disconnect deletes the store and its catalog
func (s *StoreService) Disconnect(ctx context.Context, userID, storeID string) error {
	if err := s.store.DeleteStore(ctx, userID, storeID); err != nil {
		return err
	}
	s.logger.Info("Store disconnected", zap.String("user_id", userID), zap.String("store_id", storeID))
	return nil
}
