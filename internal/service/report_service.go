package service

import (
	"context"
	"fmt"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

const reportWindow = 7 * 24 * time.Hour

// ReportStore is the persistence used by the weekly report and retention jobs
type ReportStore interface {
	ListWeeklyReportUsers(ctx context.Context) ([]models.User, error)
	GetPerformanceSummary(ctx context.Context, userID string, since time.Time) (*models.PerformanceSummary, error)
	PurgePricingHistory(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportService produces weekly summaries and enforces history retention
type ReportService struct {
	store         ReportStore
	events        EventPublisher
	retentionDays int
	logger        *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(store ReportStore, events EventPublisher, retentionDays int) *ReportService {
	return &ReportService{
		store:         store,
		events:        events,
		retentionDays: retentionDays,
		logger:        util.GetLogger(),
	}
}

// SendWeeklyReports publishes a WEEKLY_REPORT for every subscribed user and
// returns how many were published. A failing user does not stop the rest.
func (s *ReportService) SendWeeklyReports(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.SendWeeklyReports")
	defer span.End()

	users, err := s.store.ListWeeklyReportUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list report users: %w", err)
	}

	since := time.Now().Add(-reportWindow)
	sent := 0
	for _, user := range users {
		summary, err := s.store.GetPerformanceSummary(ctx, user.ID, since)
		if err != nil {
			s.logger.Error("Failed to build weekly report", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}

		event := &models.WeeklyReportEvent{
			BaseEvent: newBaseEvent(models.EventTypeWeeklyReport),
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Summary:   *summary,
		}
		if err := s.events.PublishWeeklyReport(ctx, event); err != nil {
			s.logger.Error("Failed to publish weekly report", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Info("Weekly reports published", zap.Int("sent", sent), zap.Int("users", len(users)))
	return sent, nil
}

// PurgeHistory deletes pricing history older than the retention window
func (s *ReportService) PurgeHistory(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.PurgeHistory")
	defer span.End()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.PurgePricingHistory(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pricing history: %w", err)
	}

	util.HistoryPurgedTotal.Add(float64(n))
	s.logger.Info("Pricing history purged", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}
