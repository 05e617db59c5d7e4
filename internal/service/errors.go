package service

import (
	"errors"

	"pricing-service/internal/store"
)

var (
	ErrNotFound               = store.ErrNotFound
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrUserExists             = errors.New("user already exists")
	ErrInvalidPlan            = errors.New("invalid plan")
	ErrNoSubscription         = errors.New("no active subscription")
	ErrStoreValidation        = errors.New("store validation failed")
	ErrCannotPrice            = errors.New("product cannot be priced with current settings")
	ErrOptimizationInProgress = errors.New("optimization already running for this user")
	ErrLeaseLost              = errors.New("optimization lease expired during the run")
	ErrUnknownStore           = errors.New("no connected store matches the webhook source")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
)
