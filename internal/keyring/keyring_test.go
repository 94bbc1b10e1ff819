package keyring

import (
	"errors"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/models"
)

func testSession() *models.Session {
	return &models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		User: models.User{
			ID:       "user-1",
			Email:    "ann@example.com",
			Metadata: models.UserMetadata{Name: "Ann"},
		},
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	gokeyring.MockInit()
	store := NewSessionStore("project-a")

	if err := store.Save(testSession()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.AccessToken != "access" || got.User.Metadata.Name != "Ann" {
		t.Errorf("Load() = %+v", got)
	}
	if !got.ExpiresAt.Equal(testSession().ExpiresAt) {
		t.Errorf("ExpiresAt = %v", got.ExpiresAt)
	}
}

func TestSaveNilSession(t *testing.T) {
	gokeyring.MockInit()

	if err := NewSessionStore("").Save(nil); err == nil {
		t.Error("Save(nil) should return an error")
	}
}

func TestLoadNotFound(t *testing.T) {
	gokeyring.MockInit()
	store := NewSessionStore("project-b")

	_, err := store.Load()
	if !errors.Is(err, backend.ErrNoStoredSession) {
		t.Errorf("Load() error = %v, want %v", err, backend.ErrNoStoredSession)
	}
}

func TestDeleteSession(t *testing.T) {
	gokeyring.MockInit()
	store := NewSessionStore("project-c")

	if err := store.Save(testSession()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, backend.ErrNoStoredSession) {
		t.Errorf("after Delete(), Load() error = %v", err)
	}
	if err := store.Delete(); !errors.Is(err, backend.ErrNoStoredSession) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestAccountsAreIsolated(t *testing.T) {
	gokeyring.MockInit()
	a := NewSessionStore("project-a")
	b := NewSessionStore("project-b")

	if err := a.Save(testSession()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Load(); !errors.Is(err, backend.ErrNoStoredSession) {
		t.Errorf("project-b should be empty, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}
