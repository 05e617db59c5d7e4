package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pricing-service/internal/models"
	"pricing-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes one keyed event; *Producer implements it
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func userKey(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// PublishUserRegistered publishes UserRegistered event
func (ep *EventPublisher) PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishPasswordResetRequested publishes PasswordResetRequested event
func (ep *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event *models.PasswordResetRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishPriceChanged publishes PriceChanged event
func (ep *EventPublisher) PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishOptimizationCompleted publishes OptimizationCompleted event
func (ep *EventPublisher) PublishOptimizationCompleted(ctx context.Context, event *models.OptimizationCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishWeeklyReport publishes WeeklyReport event
func (ep *EventPublisher) PublishWeeklyReport(ctx context.Context, event *models.WeeklyReportEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onUserRegistered         func(context.Context, *models.UserRegisteredEvent) error
	onPasswordResetRequested func(context.Context, *models.PasswordResetRequestedEvent) error
	onOptimizationCompleted  func(context.Context, *models.OptimizationCompletedEvent) error
	onWeeklyReport           func(context.Context, *models.WeeklyReportEvent) error
	logger                   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnUserRegistered registers a handler for UserRegistered events
func (eh *EventHandler) OnUserRegistered(handler func(context.Context, *models.UserRegisteredEvent) error) {
	eh.onUserRegistered = handler
}

// OnPasswordResetRequested registers a handler for PasswordResetRequested events
func (eh *EventHandler) OnPasswordResetRequested(handler func(context.Context, *models.PasswordResetRequestedEvent) error) {
	eh.onPasswordResetRequested = handler
}

// OnOptimizationCompleted registers a handler for OptimizationCompleted events
func (eh *EventHandler) OnOptimizationCompleted(handler func(context.Context, *models.OptimizationCompletedEvent) error) {
	eh.onOptimizationCompleted = handler
}

// OnWeeklyReport registers a handler for WeeklyReport events
func (eh *EventHandler) OnWeeklyReport(handler func(context.Context, *models.WeeklyReportEvent) error) {
	eh.onWeeklyReport = handler
}

// HandleMessage routes messages to appropriate handlers. Event types without
// a registered handler are acknowledged and dropped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeUserRegistered:
		if eh.onUserRegistered != nil {
			var event models.UserRegisteredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal UserRegistered event: %w", err)
			}
			return eh.onUserRegistered(ctx, &event)
		}

	case models.EventTypePasswordResetRequested:
		if eh.onPasswordResetRequested != nil {
			var event models.PasswordResetRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PasswordResetRequested event: %w", err)
			}
			return eh.onPasswordResetRequested(ctx, &event)
		}

	case models.EventTypeOptimizationCompleted:
		if eh.onOptimizationCompleted != nil {
			var event models.OptimizationCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OptimizationCompleted event: %w", err)
			}
			return eh.onOptimizationCompleted(ctx, &event)
		}

	case models.EventTypeWeeklyReport:
		if eh.onWeeklyReport != nil {
			var event models.WeeklyReportEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal WeeklyReport event: %w", err)
			}
			return eh.onWeeklyReport(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
