package habits

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/backend/local"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
)

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		wantErr error
	}{
		{"valid", Form{Name: "Drink water", Category: models.CategoryHealth, TargetFrequency: 1}, nil},
		{"default frequency", Form{Name: "Read", Category: models.CategoryLearning}, nil},
		{"blank name", Form{Name: "   ", Category: models.CategoryHealth}, ErrNameRequired},
		{"unknown category", Form{Name: "Read", Category: "cooking"}, ErrInvalidCategory},
		{"empty category", Form{Name: "Read"}, ErrInvalidCategory},
		{"negative frequency", Form{Name: "Read", Category: models.CategoryGeneral, TargetFrequency: -2}, ErrInvalidFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormNewHabit(t *testing.T) {
	f := Form{Name: "  Stretch ", Description: " morning ", Category: models.CategoryHealth}
	h := f.NewHabit("user-1")
	if h.UserID != "user-1" || h.Name != "Stretch" || h.Description != "morning" || h.TargetFrequency != 1 {
		t.Errorf("NewHabit() = %+v", h)
	}

	d := NewForm()
	if d.Category != models.CategoryHealth || d.TargetFrequency != 1 {
		t.Errorf("NewForm() = %+v", d)
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{" 3 ", 3, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"daily", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFrequency(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFrequency(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	if !g.TryAcquire("h1") {
		t.Fatal("first TryAcquire should succeed")
	}
	if g.TryAcquire("h1") {
		t.Error("second TryAcquire should fail while held")
	}
	if !g.TryAcquire("h2") {
		t.Error("other ids are independent")
	}
	if !g.Active("h1") {
		t.Error("h1 should be active")
	}
	g.Release("h1")
	if g.Active("h1") || !g.TryAcquire("h1") {
		t.Error("h1 should be free after Release")
	}
}

// newTestService wires a service to a fresh local backend with one signed-in user.
func newTestService(t *testing.T) (*Service, *session.Store, *local.Backend) {
	t.Helper()
	ctx := context.Background()
	b, err := local.Open(ctx, filepath.Join(t.TempDir(), "habitual.db"), local.Options{})
	if err != nil {
		t.Fatalf("local.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	store := session.New(b)
	t.Cleanup(store.Close)
	store.Start(ctx)
	if _, err := store.SignUp(ctx, "ada@example.com", "secret123", map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	return NewService(b, store), store, b
}

func TestCreateAndList(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, Form{Name: "Drink water", Category: models.CategoryHealth, TargetFrequency: 1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	user := store.State().User
	if h.UserID != user.ID || !h.IsActive {
		t.Errorf("created habit = %+v, want owner %s and active", h, user.ID)
	}

	list, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "Drink water" || list[0].Category != models.CategoryHealth {
		t.Errorf("ListActive() = %+v", list)
	}
}

func TestListActiveNewestFirstAndActiveOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var created []models.Habit
	for _, name := range []string{"One", "Two", "Three"} {
		h, err := svc.Create(ctx, Form{Name: name, Category: models.CategoryGeneral})
		if err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		created = append(created, h)
		time.Sleep(2 * time.Millisecond)
	}
	if err := svc.Archive(ctx, created[1].ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	list, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != created[2].ID || list[1].ID != created[0].ID {
		t.Errorf("ListActive() = %+v", list)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Errorf("not sorted newest first at %d", i)
		}
	}
}

func TestCreateInvalidFormSkipsBackend(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Create(context.Background(), Form{Category: models.CategoryHealth}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("Create() error = %v, want ErrNameRequired", err)
	}
}

func TestCreateRequiresSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	if err := store.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, Form{Name: "Read", Category: models.CategoryLearning}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("Create() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := svc.ListActive(ctx); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("ListActive() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestDoneThenSkipLeavesOneSkippedRow(t *testing.T) {
	svc, _, b := newTestService(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 23, 30, 0, 0, time.Local)
	svc.SetClock(func() time.Time { return day })

	h, err := svc.Create(ctx, Form{Name: "Read", Category: models.CategoryLearning})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Log(ctx, h.ID, true); err != nil {
		t.Fatalf("Log(done) error = %v", err)
	}
	if _, err := svc.Log(ctx, h.ID, false); err != nil {
		t.Fatalf("Log(skip) error = %v", err)
	}

	s, err := b.GetSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	logs, err := b.ListHabitLogs(ctx, s.AccessToken, backend.LogQuery{HabitIDs: []string{h.ID}})
	if err != nil {
		t.Fatalf("ListHabitLogs() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(logs))
	}
	if logs[0].Status || logs[0].LogDate != "2025-05-01" {
		t.Errorf("log = %+v, want skipped on 2025-05-01", logs[0])
	}

	statuses, err := svc.TodayStatuses(ctx, []models.Habit{h})
	if err != nil {
		t.Fatalf("TodayStatuses() error = %v", err)
	}
	if statuses[h.ID] != models.Skipped {
		t.Errorf("status = %s, want skipped", statuses[h.ID])
	}
}

func TestTodayStatuses(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var habits []models.Habit
	for _, name := range []string{"Done", "Skipped", "Untouched"} {
		h, err := svc.Create(ctx, Form{Name: name, Category: models.CategoryGeneral})
		if err != nil {
			t.Fatal(err)
		}
		habits = append(habits, h)
	}
	if _, err := svc.Log(ctx, habits[0].ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Log(ctx, habits[1].ID, false); err != nil {
		t.Fatal(err)
	}

	statuses, err := svc.TodayStatuses(ctx, habits)
	if err != nil {
		t.Fatalf("TodayStatuses() error = %v", err)
	}
	want := []models.LogStatus{models.Done, models.Skipped, models.NotLogged}
	for i, h := range habits {
		if statuses[h.ID] != want[i] {
			t.Errorf("%s status = %s, want %s", h.Name, statuses[h.ID], want[i])
		}
	}

	empty, err := svc.TodayStatuses(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("TodayStatuses(nil) = %v, %v", empty, err)
	}
}

func TestLogUsesLocalDate(t *testing.T) {
	svc := NewService(nil, nil)
	svc.SetClock(func() time.Time { return time.Date(2025, 12, 31, 23, 59, 0, 0, time.Local) })
	if got := svc.Today(); got != "2025-12-31" {
		t.Errorf("Today() = %q", got)
	}
}

// blockingData holds UpsertHabitLog until release is closed.
type blockingData struct {
	backend.DataClient
	started chan struct{}
	release chan struct{}
	once    sync.Once
	fail    bool
}

func (d *blockingData) UpsertHabitLog(_ context.Context, _ string, log models.HabitLog) (models.HabitLog, error) {
	d.once.Do(func() { close(d.started) })
	<-d.release
	if d.fail {
		return models.HabitLog{}, backend.NetworkError(errors.New("connection reset"))
	}
	return log, nil
}

type staticSessions struct{ s *models.Session }

func (s staticSessions) CurrentSession(context.Context) (*models.Session, error) {
	return s.s, nil
}

func TestLogSingleFlight(t *testing.T) {
	for _, fail := range []bool{false, true} {
		data := &blockingData{started: make(chan struct{}), release: make(chan struct{}), fail: fail}
		svc := NewService(data, staticSessions{s: &models.Session{AccessToken: "t", User: models.User{ID: "u"}}})

		errc := make(chan error, 1)
		go func() {
			_, err := svc.Log(context.Background(), "h1", true)
			errc <- err
		}()
		<-data.started

		if !svc.InFlight("h1") {
			t.Error("h1 should be in flight")
		}
		if _, err := svc.Log(context.Background(), "h1", false); !errors.Is(err, ErrLogInFlight) {
			t.Errorf("concurrent Log() error = %v, want ErrLogInFlight", err)
		}

		close(data.release)
		err := <-errc
		if fail && backend.KindOf(err) != backend.KindNetwork {
			t.Errorf("Log() error = %v, want network error", err)
		}
		if !fail && err != nil {
			t.Errorf("Log() error = %v", err)
		}
		if svc.InFlight("h1") {
			t.Errorf("guard not released (fail=%v)", fail)
		}
	}
}

func TestArchiveUnknownHabit(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Archive(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, &backend.Error{Kind: backend.KindAccess, Code: backend.CodeNotFound}) {
		t.Errorf("Archive() error = %v", err)
	}
}
