// Package session holds the signed-in user and session for the lifetime of
// the application and keeps them in step with the backend's auth events.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

// settleTimeout bounds how long an operation waits for its own auth event.
const settleTimeout = 2 * time.Second

// ErrNotAuthenticated is returned when an operation needs a signed-in user
var ErrNotAuthenticated = errors.New("not signed in")

// State is a snapshot of the store
type State struct {
	User    *models.User
	Session *models.Session
	// Loading is true until the persisted session has been read, and while
	// a sign-up, sign-in or sign-out call is in progress.
	Loading     bool
	Initialized bool
}

// SignedIn reports whether a user is present
func (s State) SignedIn() bool {
	return s.User != nil
}

// Store is the single source of truth for authentication state.
// Auth events from the client are the only writer of User and Session
// once Start has run.
type Store struct {
	client backend.AuthClient

	mu        sync.Mutex
	state     State
	changed   chan struct{}
	mirroring bool
	closed    bool

	updates chan State
	sub     *backend.Subscription
	wg      sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a store in the loading state
func New(client backend.AuthClient) *Store {
	return &Store{
		client:  client,
		state:   State{Loading: true},
		changed: make(chan struct{}),
		updates: make(chan State, constants.EventBufferSize),
	}
}

// Start reads the persisted session and begins mirroring auth events.
// Loading completes exactly once, even when the session cannot be read.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.sub = s.client.Subscribe()
		s.mu.Lock()
		s.mirroring = !s.closed
		s.mu.Unlock()
		s.wg.Add(1)
		go s.drain(s.sub)

		current, err := s.client.GetSession(ctx)
		if err != nil {
			logger.Warn("Failed to restore session", "error", err)
			current = nil
		}

		s.update(func(st *State) {
			st.Initialized = true
			st.Loading = false
			// A refresh during GetSession has already been mirrored
			if st.Session == nil {
				setSession(st, current)
			}
		})
		if current != nil {
			logger.Debug("Restored session", "user_id", current.User.ID)
		}
	})
}

func (s *Store) drain(sub *backend.Subscription) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.mirroring = false
		s.mu.Unlock()
	}()
	for ev := range sub.C {
		logger.Debug("Auth event", "type", ev.Type)
		s.update(func(st *State) {
			setSession(st, ev.Session)
		})
	}
}

func setSession(st *State, session *models.Session) {
	st.Session = session
	if session == nil {
		st.User = nil
		return
	}
	user := session.User
	st.User = &user
}

// Close stops mirroring auth events and closes Updates.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
		s.wg.Wait()
		s.mu.Lock()
		s.closed = true
		s.mirroring = false
		close(s.updates)
		s.mu.Unlock()
	})
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates delivers a snapshot after every change. Slow readers only miss
// intermediate snapshots, never the latest one.
func (s *Store) Updates() <-chan State {
	return s.updates
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	close(s.changed)
	s.changed = make(chan struct{})
	if s.closed {
		return
	}
	snapshot := s.state
	for {
		select {
		case s.updates <- snapshot:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// settle waits until the mirrored state satisfies done. When events are
// not being mirrored, or the wait times out, want is applied directly.
func (s *Store) settle(ctx context.Context, want *models.Session, done func(State) bool) {
	timer := time.NewTimer(settleTimeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if done(s.state) {
			s.mu.Unlock()
			return
		}
		mirroring, changed := s.mirroring, s.changed
		s.mu.Unlock()

		if !mirroring {
			break
		}
		select {
		case <-changed:
			continue
		case <-ctx.Done():
		case <-timer.C:
			logger.Warn("Auth event not observed, applying session directly")
		}
		break
	}
	s.update(func(st *State) { setSession(st, want) })
}

func (s *Store) setLoading(loading bool) {
	s.update(func(st *State) { st.Loading = loading })
}

func hasToken(token string) func(State) bool {
	return func(st State) bool {
		return st.Session != nil && st.Session.AccessToken == token
	}
}

func signedOut(st State) bool {
	return st.Session == nil
}

// SignUp registers a new account. The response carries no session when the
// backend requires email confirmation.
func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]any) (backend.AuthResponse, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.client.SignUp(ctx, email, password, metadata)
	if err != nil {
		logger.Debug("Sign-up failed", "error", err)
		return backend.AuthResponse{}, err
	}
	if resp.Session != nil {
		s.settle(ctx, resp.Session, hasToken(resp.Session.AccessToken))
	}
	return resp, nil
}

// SignIn authenticates with email and password. On failure the current
// user is left untouched.
func (s *Store) SignIn(ctx context.Context, email, password string) (backend.AuthResponse, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		logger.Debug("Sign-in failed", "error", err)
		return backend.AuthResponse{}, err
	}
	if resp.Session == nil {
		return resp, nil
	}
	s.settle(ctx, resp.Session, hasToken(resp.Session.AccessToken))
	logger.Info("Signed in", "user_id", resp.Session.User.ID)
	return resp, nil
}

// SignOut ends the session on the backend and clears it locally.
func (s *Store) SignOut(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.client.SignOut(ctx); err != nil {
		logger.Error("Sign-out failed", "error", err)
		return err
	}
	s.settle(ctx, nil, signedOut)
	logger.Info("Signed out")
	return nil
}

// CurrentSession returns a usable session, refreshing it through the
// backend when it is about to expire.
func (s *Store) CurrentSession(ctx context.Context) (*models.Session, error) {
	session, err := s.client.GetSession(ctx)
	if err != nil {
		if backend.IsAuth(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}
