package constants

import "time"

// SessionState represents the current state of the TUI application
type SessionState int

const (
	AppName            = "habitual"
	DefaultKeyringUser = "session"
	DefaultConfigDir   = "~/.config/habitual"
	DefaultConfigFile  = "~/.config/habitual/config.yaml"
	DefaultDatabase    = "~/.config/habitual/habitual.db"
	Version            = "v0.2.0"

	// DateFormat is the calendar-date format used for habit logs (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Backends
	BackendSupabase = "supabase"
	BackendLocal    = "local"

	// Auth
	SessionRefreshMargin = 60 * time.Second
	AccessTokenTTL       = time.Hour
	RefreshTokenTTL      = 30 * 24 * time.Hour
	RefreshTokenBytes    = 32
	BcryptCost           = 10
	MinPasswordLength    = 6

	// HTTP
	RequestTimeout = 15 * time.Second

	// Auth event fan-out buffer per subscriber
	EventBufferSize = 8

	// Habit defaults
	DefaultTargetFrequency = 1
)

// Session States
const (
	StateLoading SessionState = iota
	StateAuth
	StateDashboard
	StateAddHabit
	StateConfirmArchive
)

// Messages surfaced in the auth view
const (
	MsgSignedIn   = "Successfully signed in!"
	MsgCheckEmail = "Check your email for confirmation link!"
	MsgSignedOut  = "Signed out."
	MsgNoHabits   = "No habits yet"
	MsgGetStarted = "Get started by creating your first habit to track!"
	MsgTagline    = "Track your habits and build a better you, one day at a time."
)
