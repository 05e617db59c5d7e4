// Package payments wraps the Stripe API behind a small gateway interface.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pricing-service/config"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Gateway event types the billing state machine reacts to
const (
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

var (
	ErrPlanNotConfigured = errors.New("plan has no gateway price configured")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

// Subscription is the gateway's view of a created subscription
type Subscription struct {
	ID     string
	Status string
}

// WebhookEvent is a verified gateway event reduced to what billing needs
type WebhookEvent struct {
	ID             string
	Type           string
	SubscriptionID string
}

// Gateway is the payment provider surface used by billing
type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, planID, paymentMethodID string) (*Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency, method string) (string, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeGateway implements Gateway against the Stripe API
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	priceIDs      map[string]string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	return &StripeGateway{
		sc:            client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		priceIDs: map[string]string{
			"professional": cfg.PriceProfessional,
			"enterprise":   cfg.PriceEnterprise,
		},
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	customer, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return customer.ID, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, planID, paymentMethodID string) (*Subscription, error) {
	priceID := g.priceIDs[planID]
	if priceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotConfigured, planID)
	}

	if paymentMethodID != "" {
		attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
		attach.Context = ctx
		if _, err := g.sc.PaymentMethods.Attach(paymentMethodID, attach); err != nil {
			return nil, fmt.Errorf("attach payment method: %w", err)
		}
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := g.sc.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return &Subscription{ID: sub.ID, Status: string(sub.Status)}, nil
}

func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := g.sc.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// CreatePaymentIntent returns the client secret of a new payment intent
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency, method string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{method}),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

// ParseWebhook verifies the Stripe-Signature header when a webhook secret is
// configured and extracts the subscription the event refers to
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var event stripe.Event
	if g.webhookSecret != "" {
		ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		event = ev
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	return toWebhookEvent(event)
}

func toWebhookEvent(event stripe.Event) (*WebhookEvent, error) {
	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
	}
	return out, nil
}
