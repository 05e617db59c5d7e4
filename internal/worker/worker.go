package worker

import (
	"context"

	"pricing-service/internal/broker"
	"pricing-service/internal/models"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// Notifier sends the transactional emails. Satisfied by *notify.Mailer.
type Notifier interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, resetLink string) error
	SendPriceUpdate(ctx context.Context, to, name string, productCount, failedCount int, averageChange float64) error
	SendWeeklyReport(ctx context.Context, to, name string, summary models.PerformanceSummary) error
}

// NotificationWorker turns pricing events into emails
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     Notifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		notifier:     notifier,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnUserRegistered(w.handleUserRegistered)
	w.eventHandler.OnPasswordResetRequested(w.handlePasswordReset)
	w.eventHandler.OnOptimizationCompleted(w.handleOptimizationCompleted)
	w.eventHandler.OnWeeklyReport(w.handleWeeklyReport)

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleUserRegistered(ctx context.Context, e *models.UserRegisteredEvent) error {
	return w.notifier.SendWelcome(ctx, e.Email, e.Name)
}

func (w *NotificationWorker) handlePasswordReset(ctx context.Context, e *models.PasswordResetRequestedEvent) error {
	return w.notifier.SendPasswordReset(ctx, e.Email, e.Name, e.ResetLink)
}

func (w *NotificationWorker) handleOptimizationCompleted(ctx context.Context, e *models.OptimizationCompletedEvent) error {
	if e.Email == "" {
		w.logger.Warn("Optimization event without recipient", zap.String("user_id", e.UserID))
		return nil
	}
	return w.notifier.SendPriceUpdate(ctx, e.Email, e.Name, e.ProductCount, e.FailedCount, e.AverageChange)
}

func (w *NotificationWorker) handleWeeklyReport(ctx context.Context, e *models.WeeklyReportEvent) error {
	return w.notifier.SendWeeklyReport(ctx, e.Email, e.Name, e.Summary)
}
