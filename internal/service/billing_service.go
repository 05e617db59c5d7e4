package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricing-service/internal/models"
	"pricing-service/internal/payments"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// BillingStore is the subscription persistence used by BillingService
type BillingStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	UpdateSubscription(ctx context.Context, id, plan, status string, subscriptionID *string) error
	UpdateSubscriptionStatus(ctx context.Context, id, status string) error
	UpdateStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) error
	CancelBySubscriptionID(ctx context.Context, subscriptionID string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// BillingService keeps a user's subscription in step with the payment gateway
type BillingService struct {
	store   BillingStore
	gateway payments.Gateway
	logger  *zap.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(store BillingStore, gateway payments.Gateway) *BillingService {
	return &BillingService{
		store:   store,
		gateway: gateway,
		logger:  util.GetLogger(),
	}
}

// SubscriptionView is a user's current billing state
type SubscriptionView struct {
	Plan           string  `json:"subscription_plan"`
	Status         string  `json:"subscription_status"`
	SubscriptionID *string `json:"subscription_id"`
}

func (s *BillingService) Plans() []payments.Plan {
	return payments.Plans()
}

func (s *BillingService) PaymentMethods(country string) []string {
	return payments.MethodsForCountry(country)
}

// Subscribe creates a gateway customer when missing, then the subscription
func (s *BillingService) Subscribe(ctx context.Context, userID, planID, paymentMethodID string) (*SubscriptionView, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.Subscribe")
	defer span.End()

	if !payments.IsPaidPlan(planID) {
		return nil, ErrInvalidPlan
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.Name)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, fmt.Errorf("failed to save customer id: %w", err)
		}
	}

	sub, err := s.gateway.CreateSubscription(ctx, customerID, planID, paymentMethodID)
	if err != nil {
		return nil, err
	}

	subID := sub.ID
	if err := s.store.UpdateSubscription(ctx, user.ID, planID, models.SubscriptionActive, &subID); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.logger.Info("Subscription created",
		zap.String("user_id", user.ID),
		zap.String("plan", planID),
		zap.String("subscription_id", sub.ID),
		zap.String("gateway_status", sub.Status))

	return &SubscriptionView{Plan: planID, Status: models.SubscriptionActive, SubscriptionID: &subID}, nil
}

func (s *BillingService) GetSubscription(ctx context.Context, userID string) (*SubscriptionView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionView{
		Plan:           user.SubscriptionPlan,
		Status:         user.SubscriptionStatus,
		SubscriptionID: user.SubscriptionID,
	}, nil
}

// CancelSubscription asks the gateway to cancel at period end and marks the
// user canceling. A user without a subscription is left as is.
func (s *BillingService) CancelSubscription(ctx context.Context, userID string) error {
	ctx, span := util.StartSpan(ctx, "BillingService.CancelSubscription")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.SubscriptionID == nil || *user.SubscriptionID == "" {
		return ErrNoSubscription
	}

	if err := s.gateway.CancelAtPeriodEnd(ctx, *user.SubscriptionID); err != nil {
		return err
	}
	return s.store.UpdateSubscriptionStatus(ctx, user.ID, models.SubscriptionCanceling)
}

// CreatePaymentIntent returns the client secret for a one-off payment
func (s *BillingService) CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency, method string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be an ISO code", ErrInvalidInput)
	}
	if method == "" {
		method = "card"
	}
	return s.gateway.CreatePaymentIntent(ctx, userID, amount, strings.ToLower(currency), method)
}

// HandleWebhook applies one gateway event. Each event id is applied at most
// once; unrelated event types are acknowledged and ignored.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "BillingService.HandleWebhook")
	defer span.End()

	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("stripe", "rejected").Inc()
		if errors.Is(err, payments.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if event.ID != "" {
		seen, err := s.store.IsEventProcessed(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("failed to check event: %w", err)
		}
		if seen {
			util.WebhookEventsTotal.WithLabelValues("stripe", "duplicate").Inc()
			s.logger.Info("Duplicate gateway event ignored", zap.String("event_id", event.ID))
			return nil
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		util.WebhookEventsTotal.WithLabelValues("stripe", "failed").Inc()
		return err
	}

	if event.ID != "" {
		if err := s.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
	}
	util.WebhookEventsTotal.WithLabelValues("stripe", "processed").Inc()
	return nil
}

func (s *BillingService) applyEvent(ctx context.Context, event *payments.WebhookEvent) error {
	if event.SubscriptionID == "" {
		s.logger.Debug("Gateway event ignored", zap.String("type", event.Type))
		return nil
	}

	var err error
	switch event.Type {
	case payments.EventInvoicePaymentSucceeded:
		err = s.store.UpdateStatusBySubscriptionID(ctx, event.SubscriptionID, models.SubscriptionActive)
	case payments.EventInvoicePaymentFailed:
		err = s.store.UpdateStatusBySubscriptionID(ctx, event.SubscriptionID, models.SubscriptionPastDue)
	case payments.EventSubscriptionDeleted:
		err = s.store.CancelBySubscriptionID(ctx, event.SubscriptionID)
	default:
		return nil
	}

	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("Gateway event for unknown subscription",
			zap.String("type", event.Type),
			zap.String("subscription_id", event.SubscriptionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", event.Type, err)
	}

	s.logger.Info("Subscription updated from gateway",
		zap.String("type", event.Type),
		zap.String("subscription_id", event.SubscriptionID))
	return nil
}
