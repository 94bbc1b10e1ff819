// Package backend defines the contract between the client and the hosted
// authentication and data service, plus the session bookkeeping shared by
// every implementation.
package backend

import (
	"context"

	"github.com/julianstephens/habitual/internal/models"
)

// Table names on the data service
const (
	TableHabits    = "habits"
	TableHabitLogs = "habit_logs"
)

// AuthResponse is the result of sign-up or sign-in.
// Session is nil when the backend requires email confirmation first.
type AuthResponse struct {
	User    *models.User
	Session *models.Session
}

// AuthClient is the authentication half of the backend
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (AuthResponse, error)
	SignOut(ctx context.Context) error
	// GetSession returns the current session, refreshing it when the access
	// token is about to expire. It returns (nil, nil) when signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	// Subscribe registers for auth state transitions.
	Subscribe() *Subscription
}

// HabitQuery selects habits owned by UserID
type HabitQuery struct {
	UserID     string
	ActiveOnly bool
	// NewestFirst orders by created_at descending; otherwise ascending.
	NewestFirst bool
}

// LogQuery selects habit logs for a set of habits on one date
type LogQuery struct {
	HabitIDs []string
	Date     string
}

// DataClient is the table half of the backend. Every call carries the
// caller's access token; row-level access is enforced server-side.
type DataClient interface {
	InsertHabit(ctx context.Context, accessToken string, habit models.NewHabit) (models.Habit, error)
	ListHabits(ctx context.Context, accessToken string, q HabitQuery) ([]models.Habit, error)
	SetHabitActive(ctx context.Context, accessToken, habitID string, active bool) error
	UpsertHabitLog(ctx context.Context, accessToken string, log models.HabitLog) (models.HabitLog, error)
	ListHabitLogs(ctx context.Context, accessToken string, q LogQuery) ([]models.HabitLog, error)
}

// Client is a complete backend
type Client interface {
	AuthClient
	DataClient
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
