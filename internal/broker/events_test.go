package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pricing-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys   []string
	events []interface{}
}

func (r *recordingPublisher) PublishEvent(_ context.Context, key string, event interface{}) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return nil
}

func TestEventPublisherKeysByUser(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)
	ctx := context.Background()

	require.NoError(t, ep.PublishPriceChanged(ctx, &models.PriceChangedEvent{UserID: "u1"}))
	require.NoError(t, ep.PublishWeeklyReport(ctx, &models.WeeklyReportEvent{UserID: "u2"}))

	assert.Equal(t, []string{"user-u1", "user-u2"}, rec.keys)
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestHandleMessageRoutesByType(t *testing.T) {
	eh := NewEventHandler()

	var got *models.OptimizationCompletedEvent
	eh.OnOptimizationCompleted(func(_ context.Context, e *models.OptimizationCompletedEvent) error {
		got = e
		return nil
	})

	event := &models.OptimizationCompletedEvent{
		BaseEvent:    models.BaseEvent{EventID: "e1", EventType: models.EventTypeOptimizationCompleted, Timestamp: time.Now()},
		UserID:       "u1",
		ProductCount: 3,
	}
	require.NoError(t, eh.HandleMessage(context.Background(), message(t, event)))
	require.NotNil(t, got)
	assert.Equal(t, 3, got.ProductCount)
}

func TestHandleMessageUnregisteredAndUnknown(t *testing.T) {
	eh := NewEventHandler()
	ctx := context.Background()

	// no handler registered for PRICE_CHANGED
	event := &models.PriceChangedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypePriceChanged}}
	assert.NoError(t, eh.HandleMessage(ctx, message(t, event)))

	assert.NoError(t, eh.HandleMessage(ctx, message(t, models.BaseEvent{EventType: "SOMETHING_ELSE"})))

	assert.Error(t, eh.HandleMessage(ctx, kafka.Message{Value: []byte("not json")}))
}

func TestHandleMessagePropagatesHandlerError(t *testing.T) {
	eh := NewEventHandler()
	eh.OnUserRegistered(func(context.Context, *models.UserRegisteredEvent) error {
		return errors.New("smtp down")
	})

	event := &models.UserRegisteredEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeUserRegistered}}
	assert.EqualError(t, eh.HandleMessage(context.Background(), message(t, event)), "smtp down")
}
