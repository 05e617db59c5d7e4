package service

import (
	"context"
	"fmt"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/payments"
	"pricing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminStore is the persistence behind the admin dashboard
type AdminStore interface {
	GetPlatformStats(ctx context.Context) (*models.PlatformStats, error)
	CountActiveByPlan(ctx context.Context) (map[string]int, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateSubscription(ctx context.Context, id, plan, status string, subscriptionID *string) error
	MonthlySignups(ctx context.Context, since time.Time) ([]models.MonthlyCount, error)
}

// AdminService serves platform-wide views to admins
type AdminService struct {
	store  AdminStore
	logger *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store AdminStore) *AdminService {
	return &AdminService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Stats counts users, paying subscriptions and products, with monthly
// revenue derived from plan prices
func (s *AdminService) Stats(ctx context.Context) (*models.PlatformStats, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Stats")
	defer span.End()

	stats, err := s.store.GetPlatformStats(ctx)
	if err != nil {
		return nil, err
	}
	byPlan, err := s.store.CountActiveByPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	stats.MonthlyRevenue = int(payments.MonthlyRevenue(byPlan))
	return stats, nil
}

type UserPage struct {
	Users []models.User `json:"users"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

func (s *AdminService) ListUsers(ctx context.Context, page, limit int) (*UserPage, error) {
	page, limit = normalizePage(page, limit)
	users, total, err := s.store.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Page: page, Limit: limit, Total: total}, nil
}

var subscriptionStatuses = map[string]bool{
	models.SubscriptionNone:      true,
	models.SubscriptionActive:    true,
	models.SubscriptionTrialing:  true,
	models.SubscriptionPastDue:   true,
	models.SubscriptionCanceling: true,
	models.SubscriptionCanceled:  true,
}

// UpdateUserSubscription overrides a user's plan and status
func (s *AdminService) UpdateUserSubscription(ctx context.Context, userID, plan, status string) (*models.User, error) {
	if _, ok := payments.LookupPlan(plan); !ok {
		return nil, ErrInvalidPlan
	}
	if !subscriptionStatuses[status] {
		return nil, fmt.Errorf("%w: unknown subscription status %q", ErrInvalidInput, status)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateSubscription(ctx, userID, plan, status, user.SubscriptionID); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription overridden by admin",
		zap.String("user_id", userID),
		zap.String("plan", plan),
		zap.String("status", status))

	user.SubscriptionPlan = plan
	user.SubscriptionStatus = status
	return user, nil
}

type PlanRevenue struct {
	Plan        string  `json:"plan"`
	Subscribers int     `json:"subscribers"`
	Revenue     int64   `json:"revenue"`
	Percentage  float64 `json:"percentage"`
}

type Analytics struct {
	UserGrowth    []models.MonthlyCount `json:"userGrowth"`
	RevenueByPlan []PlanRevenue         `json:"revenueByPlan"`
}

// Analytics returns sign-ups for the last 12 months and revenue per plan
func (s *AdminService) Analytics(ctx context.Context) (*Analytics, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Analytics")
	defer span.End()

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	growth, err := s.store.MonthlySignups(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load sign-ups: %w", err)
	}

	byPlan, err := s.store.CountActiveByPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	return &Analytics{
		UserGrowth:    growth,
		RevenueByPlan: revenueByPlan(byPlan),
	}, nil
}

func revenueByPlan(byPlan map[string]int) []PlanRevenue {
	total := payments.MonthlyRevenue(byPlan)
	out := make([]PlanRevenue, 0, len(payments.Plans()))
	for _, p := range payments.Plans() {
		n := byPlan[p.ID]
		revenue := p.Price * int64(n)
		pct := 0.0
		if total > 0 {
			pct, _ = decimal.NewFromInt(revenue * 100).Div(decimal.NewFromInt(total)).Round(1).Float64()
		}
		out = append(out, PlanRevenue{Plan: p.ID, Subscribers: n, Revenue: revenue, Percentage: pct})
	}
	return out
}
