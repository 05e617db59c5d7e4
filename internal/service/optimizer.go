package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const recordTimeout = 10 * time.Second

// OptimizerStore is the persistence the optimization run needs
type OptimizerStore interface {
	settingsReader
	ListAutoOptimizeUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListStoresByUser(ctx context.Context, userID string) ([]models.ConnectedStore, error)
	ListProductsByStore(ctx context.Context, storeID string) ([]models.Product, error)
	ApplyPriceChange(ctx context.Context, product *models.Product, newPrice float64, strategy models.Strategy) (*models.PricingHistoryEntry, error)
}

// ItemStatus is the outcome for one product in a run
type ItemStatus string

const (
	ItemApplied   ItemStatus = "applied"
	ItemUnchanged ItemStatus = "unchanged"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

type ItemResult struct {
	ProductID string     `json:"productId"`
	StoreID   string     `json:"storeId"`
	Status    ItemStatus `json:"status"`
	OldPrice  float64    `json:"oldPrice"`
	NewPrice  float64    `json:"newPrice,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// UserReport summarizes one user's run
type UserReport struct {
	UserID    string       `json:"userId"`
	Items     []ItemResult `json:"items"`
	Applied   int          `json:"applied"`
	Unchanged int          `json:"unchanged"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Contended bool         `json:"contended,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func (r *UserReport) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case ItemApplied:
		r.Applied++
	case ItemUnchanged:
		r.Unchanged++
	case ItemSkipped:
		r.Skipped++
	case ItemFailed:
		r.Failed++
	}
	util.OptimizationResultsTotal.WithLabelValues(string(item.Status)).Inc()
}

// BatchReport covers every auto-optimize user in one scheduled run
type BatchReport struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Users      []UserReport `json:"users"`
}

// Optimizer computes, pushes and records prices for a user's whole catalog
type Optimizer struct {
	store    OptimizerStore
	pusher   PricePusher
	locker   Locker
	events   EventPublisher
	leaseTTL time.Duration
	logger   *zap.Logger
}

// NewOptimizer creates a new optimizer
func NewOptimizer(store OptimizerStore, pusher PricePusher, locker Locker, events EventPublisher, leaseTTL time.Duration) *Optimizer {
	return &Optimizer{
		store:    store,
		pusher:   pusher,
		locker:   locker,
		events:   events,
		leaseTTL: leaseTTL,
		logger:   util.GetLogger(),
	}
}

func leaseName(userID string) string {
	return fmt.Sprintf("optimize:user:%s", userID)
}

// OptimizeAll runs every auto-optimize user. One user's failure is recorded
// in its report and never stops the others.
func (o *Optimizer) OptimizeAll(ctx context.Context) (*BatchReport, error) {
	ctx, span := util.StartSpan(ctx, "Optimizer.OptimizeAll")
	defer span.End()

	report := &BatchReport{StartedAt: time.Now()}

	users, err := o.store.ListAutoOptimizeUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-optimize users: %w", err)
	}

	for i := range users {
		if ctx.Err() != nil {
			break
		}

		user := &users[i]
		ur, err := o.runWithLease(ctx, user)
		switch {
		case errors.Is(err, ErrOptimizationInProgress):
		case err != nil:
			o.logger.Error("Optimization run failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
			if ur == nil {
				ur = &UserReport{UserID: user.ID}
			}
			ur.Error = err.Error()
		}
		report.Users = append(report.Users, *ur)
	}

	report.FinishedAt = time.Now()
	o.logger.Info("Optimization batch completed",
		zap.Int("users", len(report.Users)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// OptimizeUser runs one user's catalog now. Returns ErrOptimizationInProgress
// when another run holds the user's lease.
func (o *Optimizer) OptimizeUser(ctx context.Context, userID string) (*UserReport, error) {
	ctx, span := util.StartSpan(ctx, "Optimizer.OptimizeUser")
	defer span.End()

	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	report, err := o.runWithLease(ctx, user)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// runWithLease returns a report with Contended set and an error when the lease is held
func (o *Optimizer) runWithLease(ctx context.Context, user *models.User) (*UserReport, error) {
	lease, err := o.locker.AcquireLease(ctx, leaseName(user.ID), o.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire optimization lease: %w", err)
	}
	if lease == nil {
		util.OptimizationLeaseContended.Inc()
		o.logger.Info("Optimization already running, skipping user", zap.String("user_id", user.ID))
		return &UserReport{UserID: user.ID, Contended: true}, ErrOptimizationInProgress
	}
	defer func() {
		// release even if the run's ctx was cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := o.locker.ReleaseLease(releaseCtx, lease); err != nil {
			o.logger.Warn("Failed to release optimization lease",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}()

	return o.runUser(ctx, user, lease)
}

// renewLease pushes the lease expiry out by another leaseTTL. A Redis error
// keeps the run going; a lease taken over by another run stops it.
func (o *Optimizer) renewLease(ctx context.Context, user *models.User, lease *redisclient.Lease) error {
	held, err := o.locker.ExtendLease(ctx, lease, o.leaseTTL)
	if err != nil {
		o.logger.Warn("Failed to extend optimization lease",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil
	}
	if !held {
		return ErrLeaseLost
	}
	return nil
}

func (o *Optimizer) runUser(ctx context.Context, user *models.User, lease *redisclient.Lease) (*UserReport, error) {
	start := time.Now()
	defer func() {
		util.OptimizationRunLatency.Observe(time.Since(start).Seconds())
	}()

	settings, err := loadSettings(ctx, o.store, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing settings: %w", err)
	}

	stores, err := o.store.ListStoresByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	report := &UserReport{UserID: user.ID, Items: []ItemResult{}}
	changes := make([]float64, 0)

	for i := range stores {
		cs := &stores[i]
		if err := o.renewLease(ctx, user, lease); err != nil {
			return report, err
		}

		products, err := o.store.ListProductsByStore(ctx, cs.ID)
		if err != nil {
			o.logger.Error("Failed to list store products",
				zap.String("user_id", user.ID),
				zap.String("store_id", cs.ID),
				zap.Error(err))
			continue
		}

		for j := range products {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			item := o.optimizeProduct(ctx, cs, &products[j], settings)
			if item.Status == ItemApplied {
				changes = append(changes, pricing.ChangePercent(item.OldPrice, item.NewPrice))
			}
			report.add(item)
		}
	}

	o.logger.Info("User optimization completed",
		zap.String("user_id", user.ID),
		zap.Int("applied", report.Applied),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	if report.Applied > 0 {
		event := &models.OptimizationCompletedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeOptimizationCompleted),
			UserID:        user.ID,
			Email:         user.Email,
			Name:          user.Name,
			ProductCount:  report.Applied,
			FailedCount:   report.Failed,
			AverageChange: average(changes),
		}
		if err := o.events.PublishOptimizationCompleted(ctx, event); err != nil {
			o.logger.Warn("Failed to publish optimization completed event",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}

	return report, nil
}

// optimizeProduct pushes to the platform first and records only on success
func (o *Optimizer) optimizeProduct(ctx context.Context, cs *models.ConnectedStore, p *models.Product, settings models.PricingSettings) ItemResult {
	item := ItemResult{ProductID: p.ID, StoreID: cs.ID, OldPrice: p.CurrentPrice}

	price, ok := pricing.ComputeSuggestedPrice(pricing.InputFromProduct(*p), settings)
	if !ok {
		item.Status = ItemSkipped
		return item
	}
	if pricing.SamePrice(price, p.CurrentPrice) {
		item.Status = ItemUnchanged
		return item
	}
	item.NewPrice = price

	if err := o.pusher.UpdatePrice(ctx, cs, p.ExternalID, price); err != nil {
		item.Status = ItemFailed
		item.Error = err.Error()
		return item
	}

	// the platform has the new price; record it even if the run is being cancelled
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if _, err := o.store.ApplyPriceChange(recordCtx, p, price, settings.Strategy); err != nil {
		// the platform already has the new price; the next run sees a
		// matching price once the product webhook lands
		o.logger.Error("Price pushed but not recorded",
			zap.String("product_id", p.ID),
			zap.Float64("price", price),
			zap.Error(err))
		item.Status = ItemFailed
		item.Error = err.Error()
		return item
	}

	event := &models.PriceChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypePriceChanged),
		UserID:    p.UserID,
		ProductID: p.ID,
		StoreID:   cs.ID,
		OldPrice:  p.CurrentPrice,
		NewPrice:  price,
		Strategy:  settings.Strategy,
	}
	if err := o.events.PublishPriceChanged(ctx, event); err != nil {
		o.logger.Warn("Failed to publish price changed event",
			zap.String("product_id", p.ID),
			zap.Error(err))
	}

	item.Status = ItemApplied
	return item
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Round(1).Float64()
	return avg
}
