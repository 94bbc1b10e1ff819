package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

func TestEmitterDelivery(t *testing.T) {
	e := NewEmitter()
	a := e.Subscribe()
	b := e.Subscribe()

	e.Publish(AuthEvent{Type: EventSignedIn})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			if ev.Type != EventSignedIn {
				t.Errorf("got %s, want %s", ev.Type, EventSignedIn)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestEmitterUnsubscribeClosesChannel(t *testing.T) {
	e := NewEmitter()
	sub := e.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}

	// Publishing after unsubscribe must not panic
	e.Publish(AuthEvent{Type: EventSignedOut})
}

func TestEmitterDropsOldestWhenFull(t *testing.T) {
	e := NewEmitter()
	sub := e.Subscribe()

	total := constants.EventBufferSize + 3
	for i := 0; i < total; i++ {
		e.Publish(AuthEvent{Type: AuthEventType(fmt.Sprintf("E%d", i))})
	}

	first := <-sub.C
	if first.Type != "E3" {
		t.Errorf("oldest retained event = %s, want E3", first.Type)
	}
	if got := len(sub.C); got != constants.EventBufferSize-1 {
		t.Errorf("remaining buffered = %d, want %d", got, constants.EventBufferSize-1)
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("sign in: %w", AuthError(400, CodeInvalidCredentials, "Invalid login credentials"))

	if !errors.Is(err, &Error{Kind: KindAuth}) {
		t.Error("expected auth kind match")
	}
	if !errors.Is(err, &Error{Kind: KindAuth, Code: CodeInvalidCredentials}) {
		t.Error("expected code match")
	}
	if errors.Is(err, &Error{Kind: KindAuth, Code: CodeEmailNotConfirmed}) {
		t.Error("unexpected code match")
	}
	if !IsAuth(err) {
		t.Error("IsAuth should be true")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should be unknown kind")
	}
	if AuthError(400, "", "Invalid login credentials").Error() != "Invalid login credentials" {
		t.Error("message should be returned verbatim")
	}
}

func newSession(id string, expires time.Time) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    expires,
		User:         models.User{ID: id, Email: id + "@example.com"},
	}
}

func TestAuthStateSetPersistsAndPublishes(t *testing.T) {
	storage := NewMemoryStorage()
	state := NewAuthState(storage, nil)
	sub := state.Subscribe()
	defer sub.Unsubscribe()

	s := newSession("u1", time.Now().Add(time.Hour))
	state.Set(EventSignedIn, s)

	ev := <-sub.C
	if ev.Type != EventSignedIn || ev.Session.User.ID != "u1" {
		t.Errorf("unexpected event %+v", ev)
	}

	stored, err := storage.Load()
	if err != nil {
		t.Fatalf("expected stored session: %v", err)
	}
	if stored.AccessToken != s.AccessToken {
		t.Errorf("stored token = %q", stored.AccessToken)
	}

	state.Set(EventSignedOut, nil)
	if _, err := storage.Load(); !errors.Is(err, ErrNoStoredSession) {
		t.Errorf("expected stored session to be deleted, got %v", err)
	}
	if state.Current() != nil {
		t.Error("current session should be nil after sign-out")
	}
}

func TestAuthStateLoadsPersistedSession(t *testing.T) {
	storage := NewMemoryStorage()
	_ = storage.Save(newSession("u2", time.Now().Add(time.Hour)))

	state := NewAuthState(storage, nil)
	s, err := state.Session(context.Background())
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if s == nil || s.User.ID != "u2" {
		t.Fatalf("expected persisted session, got %+v", s)
	}
}

func TestAuthStateRefreshesExpiredSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	storage := NewMemoryStorage()
	_ = storage.Save(newSession("u3", now.Add(10*time.Second)))

	calls := 0
	state := NewAuthState(storage, func(ctx context.Context, refreshToken string) (*models.Session, error) {
		calls++
		if refreshToken != "refresh-u3" {
			t.Errorf("refresh token = %q", refreshToken)
		}
		return newSession("u3", now.Add(time.Hour)), nil
	})
	state.SetClock(func() time.Time { return now })
	sub := state.Subscribe()
	defer sub.Unsubscribe()

	s, err := state.Session(context.Background())
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("refresh calls = %d, want 1", calls)
	}
	if !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("session not replaced: %v", s.ExpiresAt)
	}
	if ev := <-sub.C; ev.Type != EventTokenRefreshed {
		t.Errorf("event = %s, want %s", ev.Type, EventTokenRefreshed)
	}

	// Fresh session is returned without another refresh
	if _, err := state.Session(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("refresh calls = %d, want 1", calls)
	}
}

func TestAuthStateRejectedRefreshSignsOut(t *testing.T) {
	now := time.Now()
	storage := NewMemoryStorage()
	_ = storage.Save(newSession("u4", now.Add(-time.Minute)))

	state := NewAuthState(storage, func(ctx context.Context, refreshToken string) (*models.Session, error) {
		return nil, AuthError(400, CodeRefreshInvalid, "Invalid Refresh Token")
	})
	sub := state.Subscribe()
	defer sub.Unsubscribe()

	s, err := state.Session(context.Background())
	if err == nil || s != nil {
		t.Fatalf("expected error and nil session, got %v / %+v", err, s)
	}
	if ev := <-sub.C; ev.Type != EventSignedOut {
		t.Errorf("event = %s, want %s", ev.Type, EventSignedOut)
	}
	if state.Current() != nil {
		t.Error("session should be cleared")
	}
}

func TestAuthStateNetworkFailureKeepsSession(t *testing.T) {
	storage := NewMemoryStorage()
	_ = storage.Save(newSession("u5", time.Now().Add(-time.Minute)))

	state := NewAuthState(storage, func(ctx context.Context, refreshToken string) (*models.Session, error) {
		return nil, NetworkError(errors.New("connection refused"))
	})

	if _, err := state.Session(context.Background()); err == nil {
		t.Fatal("expected network error")
	}
	if state.Current() == nil {
		t.Error("session should survive a transport failure")
	}
}
