package backend

import (
	"sync"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

// AuthEventType names an auth state transition
type AuthEventType string

const (
	EventInitialSession AuthEventType = "INITIAL_SESSION"
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is delivered to subscribers on every auth state transition.
// Session is nil after sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *models.Session
}

// Subscription receives auth events on C until Unsubscribe is called.
type Subscription struct {
	C <-chan AuthEvent

	ch      chan AuthEvent
	emitter *Emitter
	once    sync.Once
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.emitter.remove(s)
	})
}

// Emitter fans auth events out to subscribers. Publishing never blocks:
// when a subscriber's buffer is full its oldest pending event is dropped.
type Emitter struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewEmitter creates an emitter with no subscribers
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber
func (e *Emitter) Subscribe() *Subscription {
	ch := make(chan AuthEvent, constants.EventBufferSize)
	sub := &Subscription{C: ch, ch: ch, emitter: e}

	e.mu.Lock()
	e.subs[sub] = struct{}{}
	e.mu.Unlock()
	return sub
}

// Publish delivers ev to every current subscriber
func (e *Emitter) Publish(ev AuthEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for sub := range e.subs {
		for {
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Len returns the number of active subscribers
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close unsubscribes everyone
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subs {
		delete(e.subs, sub)
		close(sub.ch)
	}
}

func (e *Emitter) remove(s *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[s]; ok {
		delete(e.subs, s)
		close(s.ch)
	}
}
