// Package habits creates, lists and logs habits for the signed-in user.
package habits

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

// ErrLogInFlight is returned when a habit already has a log request pending
var ErrLogInFlight = errors.New("a log request for this habit is already in progress")

// SessionSource yields the session used to authorize data calls
type SessionSource interface {
	CurrentSession(ctx context.Context) (*models.Session, error)
}

// Service runs habit operations against the backend
type Service struct {
	data     backend.DataClient
	sessions SessionSource
	guard    *Guard
	now      func() time.Time
}

// NewService creates a service
func NewService(data backend.DataClient, sessions SessionSource) *Service {
	return &Service{
		data:     data,
		sessions: sessions,
		guard:    NewGuard(),
		now:      time.Now,
	}
}

// SetClock overrides the time source used to pick the log date
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the client's local calendar date as YYYY-MM-DD
func (s *Service) Today() string {
	return s.now().Local().Format(constants.DateFormat)
}

// Create validates form and inserts it as a habit of the current user.
// Failures are logged and returned; nothing is retried.
func (s *Service) Create(ctx context.Context, form Form) (models.Habit, error) {
	if err := form.Validate(); err != nil {
		return models.Habit{}, err
	}
	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return models.Habit{}, err
	}

	habit, err := s.data.InsertHabit(ctx, session.AccessToken, form.NewHabit(session.User.ID))
	if err != nil {
		logger.Error("Failed to create habit", "name", form.Name, "error", err)
		return models.Habit{}, err
	}
	logger.Info("Created habit", "habit_id", habit.ID, "category", habit.Category)
	return habit, nil
}

// ListActive returns the current user's active habits, newest first
func (s *Service) ListActive(ctx context.Context) ([]models.Habit, error) {
	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	habits, err := s.data.ListHabits(ctx, session.AccessToken, backend.HabitQuery{
		UserID:      session.User.ID,
		ActiveOnly:  true,
		NewestFirst: true,
	})
	if err != nil {
		logger.Error("Failed to fetch habits", "error", err)
		return nil, err
	}
	return habits, nil
}

// Log records done (true) or skipped (false) for habitID today, replacing
// any earlier entry for the same day. Only one request per habit may be in
// flight; a concurrent call returns ErrLogInFlight.
func (s *Service) Log(ctx context.Context, habitID string, done bool) (models.HabitLog, error) {
	if !s.guard.TryAcquire(habitID) {
		return models.HabitLog{}, ErrLogInFlight
	}
	defer s.guard.Release(habitID)

	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return models.HabitLog{}, err
	}

	entry := models.HabitLog{
		HabitID: habitID,
		LogDate: s.Today(),
		Status:  done,
	}
	saved, err := s.data.UpsertHabitLog(ctx, session.AccessToken, entry)
	if err != nil {
		logger.Error("Failed to log habit", "habit_id", habitID, "date", entry.LogDate, "error", err)
		return models.HabitLog{}, err
	}
	logger.Debug("Logged habit", "habit_id", habitID, "date", saved.LogDate, "status", models.StatusOf(&saved))
	return saved, nil
}

// InFlight reports whether a log request for habitID is pending
func (s *Service) InFlight(habitID string) bool {
	return s.guard.Active(habitID)
}

// TodayStatuses returns today's status for each habit. Habits without a
// log row today are NotLogged.
func (s *Service) TodayStatuses(ctx context.Context, habits []models.Habit) (map[string]models.LogStatus, error) {
	statuses := make(map[string]models.LogStatus, len(habits))
	if len(habits) == 0 {
		return statuses, nil
	}

	ids := make([]string, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
		statuses[h.ID] = models.NotLogged
	}

	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.data.ListHabitLogs(ctx, session.AccessToken, backend.LogQuery{HabitIDs: ids, Date: s.Today()})
	if err != nil {
		logger.Error("Failed to fetch today's logs", "error", err)
		return nil, err
	}
	for i := range logs {
		statuses[logs[i].HabitID] = models.StatusOf(&logs[i])
	}
	return statuses, nil
}

// Archive hides a habit from the active list without deleting its history
func (s *Service) Archive(ctx context.Context, habitID string) error {
	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if err := s.data.SetHabitActive(ctx, session.AccessToken, habitID, false); err != nil {
		logger.Error("Failed to archive habit", "habit_id", habitID, "error", err)
		return err
	}
	logger.Info("Archived habit", "habit_id", habitID)
	return nil
}
