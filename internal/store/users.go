package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pricing-service/internal/models"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, role, subscription_plan, subscription_status,
	subscription_id, stripe_customer_id, auto_optimize, weekly_reports, last_login, created_at, updated_at`

// CreateUser inserts a user. Returns ErrDuplicate when the email is taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (id, email, password_hash, name, role, subscription_plan, subscription_status, auto_optimize, weekly_reports)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		user.SubscriptionPlan, user.SubscriptionStatus, user.AutoOptimize, user.WeeklyReports,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = $1",
		strings.ToLower(strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last login time
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1", id)
	return err
}

// UpdateUserPreferences sets the automation flags
func (s *Store) UpdateUserPreferences(ctx context.Context, id string, autoOptimize, weeklyReports bool) error {
	return s.execOne(ctx,
		"UPDATE users SET auto_optimize = $1, weekly_reports = $2, updated_at = NOW() WHERE id = $3",
		autoOptimize, weeklyReports, id)
}

// SetResetToken stores the hash of a password reset token
func (s *Store) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return s.execOne(ctx,
		"UPDATE users SET reset_token_hash = $1, reset_token_expires = $2, updated_at = NOW() WHERE id = $3",
		tokenHash, expiresAt, id)
}

// SetStripeCustomerID links the user to a payment gateway customer
func (s *Store) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return s.execOne(ctx,
		"UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2",
		customerID, id)
}

// UpdateSubscription sets plan, status and subscription id for a user
func (s *Store) UpdateSubscription(ctx context.Context, id, plan, status string, subscriptionID *string) error {
	return s.execOne(ctx,
		"UPDATE users SET subscription_plan = $1, subscription_status = $2, subscription_id = $3, updated_at = NOW() WHERE id = $4",
		plan, status, subscriptionID, id)
}

// UpdateSubscriptionStatus sets the status of a user without touching plan or subscription id
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return s.execOne(ctx,
		"UPDATE users SET subscription_status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
}

// UpdateStatusBySubscriptionID applies a gateway status to the user owning the subscription.
// Returns ErrNotFound when no user has that subscription.
func (s *Store) UpdateStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) error {
	return s.execOne(ctx,
		"UPDATE users SET subscription_status = $1, updated_at = NOW() WHERE subscription_id = $2",
		status, subscriptionID)
}

// CancelBySubscriptionID marks the subscription canceled and resets the plan
func (s *Store) CancelBySubscriptionID(ctx context.Context, subscriptionID string) error {
	return s.execOne(ctx,
		"UPDATE users SET subscription_status = $1, subscription_plan = $2, updated_at = NOW() WHERE subscription_id = $3",
		models.SubscriptionCanceled, models.PlanStarter, subscriptionID)
}

// ListAutoOptimizeUsers returns every user with auto-optimize enabled
func (s *Store) ListAutoOptimizeUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE auto_optimize = TRUE ORDER BY created_at")
	return users, err
}

// ListWeeklyReportUsers returns every user subscribed to the weekly report
func (s *Store) ListWeeklyReportUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE weekly_reports = TRUE ORDER BY created_at")
	return users, err
}

// ListUsers pages through all users, newest first, and returns the total count
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetPlatformStats counts users, paying subscriptions and products
func (s *Store) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE subscription_status IN ('active', 'trialing')) AS active_subscriptions,
			(SELECT COUNT(*) FROM products) AS total_products`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to load platform stats: %w", err)
	}
	return &stats, nil
}

// CountActiveByPlan counts active or trialing users per plan
func (s *Store) CountActiveByPlan(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Plan  string `db:"subscription_plan"`
		Count int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT subscription_plan, COUNT(*) AS count
		FROM users
		WHERE subscription_status IN ('active', 'trialing')
		GROUP BY subscription_plan`)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Plan] = r.Count
	}
	return counts, nil
}

// execOne runs a statement that must affect at least one row
func (s *Store) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken swaps in a new password hash when tokenHash matches an
// unexpired reset token, and clears the token. Returns ErrNotFound otherwise.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) error {
	return s.execOne(ctx, `
		UPDATE users
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expires = NULL, updated_at = NOW()
		WHERE reset_token_hash = $2 AND reset_token_expires > NOW()`,
		passwordHash, tokenHash)
}

// MonthlySignups counts new users per calendar month since the given time, oldest first
func (s *Store) MonthlySignups(ctx context.Context, since time.Time) ([]models.MonthlyCount, error) {
	counts := []models.MonthlyCount{}
	err := s.db.SelectContext(ctx, &counts, `
		SELECT TO_CHAR(DATE_TRUNC('month', created_at), 'YYYY-MM') AS month, COUNT(*) AS count
		FROM users
		WHERE created_at >= $1
		GROUP BY 1
		ORDER BY 1`,
		since)
	return counts, err
}
