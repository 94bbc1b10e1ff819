package backend

import (
	"errors"
	"sync"

	"github.com/julianstephens/habitual/internal/models"
)

// ErrNoStoredSession is returned by SessionStorage.Load when nothing is persisted
var ErrNoStoredSession = errors.New("no stored session")

// SessionStorage persists the current session between runs
type SessionStorage interface {
	Load() (*models.Session, error)
	Save(*models.Session) error
	Delete() error
}

// MemoryStorage keeps the session in process memory only
type MemoryStorage struct {
	mu      sync.Mutex
	session *models.Session
}

// NewMemoryStorage returns an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoStoredSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStorage) Save(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStorage) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
