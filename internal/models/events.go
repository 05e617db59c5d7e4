package models

import "time"

// Event types
const (
	EventTypeUserRegistered         = "USER_REGISTERED"
	EventTypePasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	EventTypePriceChanged           = "PRICE_CHANGED"
	EventTypeOptimizationCompleted  = "OPTIMIZATION_COMPLETED"
	EventTypeWeeklyReport           = "WEEKLY_REPORT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRegisteredEvent published after a successful registration
type UserRegisteredEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// PasswordResetRequestedEvent carries the reset link for an existing account
type PasswordResetRequestedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ResetLink string `json:"reset_link"`
}

// PriceChangedEvent published for every price accepted by a platform
type PriceChangedEvent struct {
	BaseEvent
	UserID    string   `json:"user_id"`
	ProductID string   `json:"product_id"`
	StoreID   string   `json:"store_id"`
	OldPrice  float64  `json:"old_price"`
	NewPrice  float64  `json:"new_price"`
	Strategy  Strategy `json:"strategy"`
}

// OptimizationCompletedEvent published after a run that applied at least one change
type OptimizationCompletedEvent struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	ProductCount  int     `json:"product_count"`
	FailedCount   int     `json:"failed_count"`
	AverageChange float64 `json:"average_change"`
}

// WeeklyReportEvent carries one user's weekly performance summary
type WeeklyReportEvent struct {
	BaseEvent
	UserID  string             `json:"user_id"`
	Email   string             `json:"email"`
	Name    string             `json:"name"`
	Summary PerformanceSummary `json:"summary"`
}
