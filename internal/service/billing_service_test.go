package service

import (
	"context"
	"testing"

	"pricing-service/internal/models"
	"pricing-service/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBillingFixture() (*BillingService, *memStore, *fakeGateway, *models.User) {
	st := newMemStore()
	user := st.addUser(models.User{
		Email:              "owner@example.com",
		Name:               "Owner",
		SubscriptionPlan:   models.PlanStarter,
		SubscriptionStatus: models.SubscriptionNone,
	})
	gw := &fakeGateway{webhooks: map[string]*payments.WebhookEvent{}}
	return NewBillingService(st, gw), st, gw, user
}

func TestSubscribeCreatesCustomerOnce(t *testing.T) {
	svc, st, gw, user := newBillingFixture()
	ctx := context.Background()

	view, err := svc.Subscribe(ctx, user.ID, models.PlanProfessional, "pm_1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanProfessional, view.Plan)
	assert.Equal(t, models.SubscriptionActive, view.Status)
	require.NotNil(t, view.SubscriptionID)

	_, err = svc.Subscribe(ctx, user.ID, models.PlanEnterprise, "pm_1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.customers)
	assert.Equal(t, []string{models.PlanProfessional, models.PlanEnterprise}, gw.subscribeTo)
	assert.Equal(t, models.PlanEnterprise, st.user(user.ID).SubscriptionPlan)
}

func TestSubscribeRejectsFreePlan(t *testing.T) {
	svc, _, gw, user := newBillingFixture()

	_, err := svc.Subscribe(context.Background(), user.ID, models.PlanStarter, "")
	assert.ErrorIs(t, err, ErrInvalidPlan)
	_, err = svc.Subscribe(context.Background(), user.ID, "platinum", "")
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Zero(t, gw.customers)
}

func TestCancelSubscription(t *testing.T) {
	svc, st, gw, user := newBillingFixture()
	ctx := context.Background()

	assert.ErrorIs(t, svc.CancelSubscription(ctx, user.ID), ErrNoSubscription)

	_, err := svc.Subscribe(ctx, user.ID, models.PlanProfessional, "")
	require.NoError(t, err)
	require.NoError(t, svc.CancelSubscription(ctx, user.ID))

	assert.Equal(t, []string{"sub_professional"}, gw.canceled)
	view, err := svc.GetSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceling, view.Status)
	assert.Equal(t, models.PlanProfessional, st.user(user.ID).SubscriptionPlan)
}

func TestHandleWebhookStateMachine(t *testing.T) {
	svc, st, gw, user := newBillingFixture()
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, user.ID, models.PlanProfessional, "")
	require.NoError(t, err)

	gw.webhooks["failed"] = &payments.WebhookEvent{ID: "evt_1", Type: payments.EventInvoicePaymentFailed, SubscriptionID: "sub_professional"}
	gw.webhooks["paid"] = &payments.WebhookEvent{ID: "evt_2", Type: payments.EventInvoicePaymentSucceeded, SubscriptionID: "sub_professional"}
	gw.webhooks["deleted"] = &payments.WebhookEvent{ID: "evt_3", Type: payments.EventSubscriptionDeleted, SubscriptionID: "sub_professional"}

	require.NoError(t, svc.HandleWebhook(ctx, []byte("failed"), "valid"))
	assert.Equal(t, models.SubscriptionPastDue, st.user(user.ID).SubscriptionStatus)

	require.NoError(t, svc.HandleWebhook(ctx, []byte("paid"), "valid"))
	assert.Equal(t, models.SubscriptionActive, st.user(user.ID).SubscriptionStatus)

	require.NoError(t, svc.HandleWebhook(ctx, []byte("deleted"), "valid"))
	u := st.user(user.ID)
	assert.Equal(t, models.SubscriptionCanceled, u.SubscriptionStatus)
	assert.Equal(t, models.PlanStarter, u.SubscriptionPlan)
}

func TestHandleWebhookDeduplicates(t *testing.T) {
	svc, st, gw, user := newBillingFixture()
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, user.ID, models.PlanProfessional, "")
	require.NoError(t, err)

	gw.webhooks["failed"] = &payments.WebhookEvent{ID: "evt_1", Type: payments.EventInvoicePaymentFailed, SubscriptionID: "sub_professional"}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("failed"), "valid"))

	// a manual fix between deliveries must survive the replay
	require.NoError(t, st.UpdateSubscriptionStatus(ctx, user.ID, models.SubscriptionActive))
	require.NoError(t, svc.HandleWebhook(ctx, []byte("failed"), "valid"))
	assert.Equal(t, models.SubscriptionActive, st.user(user.ID).SubscriptionStatus)
}

func TestHandleWebhookIgnoresUnrelated(t *testing.T) {
	svc, _, gw, _ := newBillingFixture()
	ctx := context.Background()

	gw.webhooks["other"] = &payments.WebhookEvent{ID: "evt_9", Type: "charge.refunded"}
	gw.webhooks["orphan"] = &payments.WebhookEvent{ID: "evt_10", Type: payments.EventInvoicePaymentFailed, SubscriptionID: "sub_unknown"}

	assert.NoError(t, svc.HandleWebhook(ctx, []byte("other"), "valid"))
	assert.NoError(t, svc.HandleWebhook(ctx, []byte("orphan"), "valid"))
}

func TestHandleWebhookBadSignature(t *testing.T) {
	svc, _, _, _ := newBillingFixture()
	assert.ErrorIs(t, svc.HandleWebhook(context.Background(), []byte("{}"), "forged"), ErrInvalidSignature)
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	svc, _, _, user := newBillingFixture()
	ctx := context.Background()

	secret, err := svc.CreatePaymentIntent(ctx, user.ID, 2900, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, "pi_secret_usd", secret)

	_, err = svc.CreatePaymentIntent(ctx, user.ID, 0, "usd", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreatePaymentIntent(ctx, user.ID, 100, "dollars", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
