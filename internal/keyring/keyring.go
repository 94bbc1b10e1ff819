package keyring

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

var (
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// SessionStore persists the auth session in the OS keyring.
// It implements backend.SessionStorage.
type SessionStore struct {
	service string
	account string
}

// NewSessionStore returns a store keyed by account, typically the backend's
// project reference so sessions for different projects do not collide.
func NewSessionStore(account string) *SessionStore {
	if account == "" {
		account = constants.DefaultKeyringUser
	}
	return &SessionStore{
		service: constants.AppName,
		account: account,
	}
}

// Load reads the stored session. Returns backend.ErrNoStoredSession if none exists.
func (s *SessionStore) Load() (*models.Session, error) {
	raw, err := keyring.Get(s.service, s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, backend.ErrNoStoredSession
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

// Save stores the session, replacing any previous one.
func (s *SessionStore) Save(session *models.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(s.service, s.account, string(data)); err != nil {
		return fmt.Errorf("failed to store session in keyring: %w", err)
	}
	return nil
}

// Delete removes the stored session. Returns backend.ErrNoStoredSession if none exists.
func (s *SessionStore) Delete() error {
	err := keyring.Delete(s.service, s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return backend.ErrNoStoredSession
		}
		return fmt.Errorf("failed to delete session from keyring: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	// ErrNotFound means the keyring answered, just without a value
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
