package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

// RefreshFunc exchanges a refresh token for a new session
type RefreshFunc func(ctx context.Context, refreshToken string) (*models.Session, error)

// AuthState holds the client-side session for a backend implementation:
// the current session, its persistence, refresh on expiry, and event fan-out.
type AuthState struct {
	mu        sync.Mutex
	refreshMu sync.Mutex
	session   *models.Session
	loaded    bool

	storage SessionStorage
	emitter *Emitter
	refresh RefreshFunc
	now     func() time.Time
	margin  time.Duration
}

// NewAuthState creates an AuthState. A nil storage keeps sessions in memory.
func NewAuthState(storage SessionStorage, refresh RefreshFunc) *AuthState {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &AuthState{
		storage: storage,
		emitter: NewEmitter(),
		refresh: refresh,
		now:     time.Now,
		margin:  constants.SessionRefreshMargin,
	}
}

// SetClock overrides the time source
func (a *AuthState) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// Subscribe registers for auth events
func (a *AuthState) Subscribe() *Subscription {
	return a.emitter.Subscribe()
}

// Set stores s as the current session, persists it, and publishes ev.
// A nil session clears the stored one.
func (a *AuthState) Set(ev AuthEventType, s *models.Session) {
	a.mu.Lock()
	a.session = s
	a.loaded = true
	a.mu.Unlock()

	if s == nil {
		if err := a.storage.Delete(); err != nil && !errors.Is(err, ErrNoStoredSession) {
			logger.Warn("Failed to delete stored session", "error", err)
		}
	} else if err := a.storage.Save(s); err != nil {
		logger.Warn("Failed to persist session", "error", err)
	}

	a.emitter.Publish(AuthEvent{Type: ev, Session: s})
}

// Current returns the session without refreshing it
func (a *AuthState) Current() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked()
	return a.session
}

// Session returns the current session, refreshing it when it expires within
// the refresh margin. A refresh rejected by the backend signs the user out.
func (a *AuthState) Session(ctx context.Context) (*models.Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	a.loadLocked()
	current := a.session
	expired := current.Expired(a.now(), a.margin)
	a.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !expired {
		return current, nil
	}
	if a.refresh == nil || current.RefreshToken == "" {
		a.Set(EventSignedOut, nil)
		return nil, ErrNoSession
	}

	logger.Debug("Refreshing session", "user_id", current.User.ID)
	next, err := a.refresh(ctx, current.RefreshToken)
	if err != nil {
		if IsAuth(err) {
			logger.Info("Session refresh rejected, signing out", "error", err)
			a.Set(EventSignedOut, nil)
		}
		return nil, err
	}
	a.Set(EventTokenRefreshed, next)
	return next, nil
}

// Close unsubscribes every listener
func (a *AuthState) Close() {
	a.emitter.Close()
}

func (a *AuthState) loadLocked() {
	if a.loaded {
		return
	}
	a.loaded = true
	s, err := a.storage.Load()
	if err != nil {
		if !errors.Is(err, ErrNoStoredSession) {
			logger.Warn("Failed to load stored session", "error", err)
		}
		return
	}
	a.session = s
}
