package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

const habitColumns = "id, user_id, name, description, category, target_frequency, is_active, created_at"

func rlsError(table string) *backend.Error {
	return backend.AccessError(fmt.Sprintf("new row violates row-level security policy for table %q", table))
}

func errHabitNotFound() *backend.Error {
	return &backend.Error{Kind: backend.KindAccess, Status: http.StatusNotFound, Code: backend.CodeNotFound, Message: "habit not found"}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var (
		h         models.Habit
		category  string
		createdAt timeValue
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &category, &h.TargetFrequency, &h.IsActive, &createdAt); err != nil {
		return models.Habit{}, err
	}
	h.Category = models.Category(category)
	h.CreatedAt = createdAt.Time
	return h, nil
}

// InsertHabit stores a habit owned by the token's user.
func (b *Backend) InsertHabit(ctx context.Context, accessToken string, habit models.NewHabit) (models.Habit, error) {
	sub, err := b.subject(accessToken)
	if err != nil {
		return models.Habit{}, err
	}
	if habit.UserID != sub {
		return models.Habit{}, rlsError(backend.TableHabits)
	}

	name := strings.TrimSpace(habit.Name)
	if name == "" {
		return models.Habit{}, backend.InvalidError(`null value in column "name" violates not-null constraint`)
	}
	category := habit.Category
	if category == "" {
		category = models.CategoryHealth
	}
	if !category.Valid() {
		return models.Habit{}, backend.InvalidError(fmt.Sprintf("invalid category %q", habit.Category))
	}
	target := habit.TargetFrequency
	if target == 0 {
		target = constants.DefaultTargetFrequency
	}
	if target < 0 {
		return models.Habit{}, backend.InvalidError("target_frequency must be positive")
	}

	h := models.Habit{
		ID:              uuid.NewString(),
		UserID:          sub,
		Name:            name,
		Description:     strings.TrimSpace(habit.Description),
		Category:        category,
		TargetFrequency: target,
		IsActive:        true,
		CreatedAt:       b.now().UTC(),
	}
	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		h.ID, h.UserID, h.Name, h.Description, string(h.Category), h.TargetFrequency, h.IsActive, formatTime(h.CreatedAt))
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to insert habit: %w", err)
	}
	return h, nil
}

// ListHabits returns the token user's habits. Rows owned by anyone else are
// never returned, whatever q.UserID says.
func (b *Backend) ListHabits(ctx context.Context, accessToken string, q backend.HabitQuery) ([]models.Habit, error) {
	sub, err := b.subject(accessToken)
	if err != nil {
		return nil, err
	}
	if q.UserID != sub {
		return []models.Habit{}, nil
	}

	query := "SELECT " + habitColumns + " FROM habits WHERE user_id = ?"
	args := []any{sub}
	if q.ActiveOnly {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	if q.NewestFirst {
		query += " ORDER BY created_at DESC, id DESC"
	} else {
		query += " ORDER BY created_at ASC, id ASC"
	}

	rows, err := b.db.QueryContext(ctx, b.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// SetHabitActive flips the active flag on one of the token user's habits.
func (b *Backend) SetHabitActive(ctx context.Context, accessToken, habitID string, active bool) error {
	sub, err := b.subject(accessToken)
	if err != nil {
		return err
	}
	if !validID(habitID) {
		return errHabitNotFound()
	}

	res, err := b.db.ExecContext(ctx, b.rebind(`
		UPDATE habits SET is_active = ? WHERE id = ? AND user_id = ?`),
		active, habitID, sub)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errHabitNotFound()
	}
	return nil
}

func (b *Backend) ownsHabit(ctx context.Context, userID, habitID string) (bool, error) {
	if !validID(habitID) {
		return false, nil
	}
	var one int
	err := b.db.QueryRowContext(ctx, b.rebind(`
		SELECT 1 FROM habits WHERE id = ? AND user_id = ?`), habitID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check habit owner: %w", err)
	}
	return true, nil
}

// UpsertHabitLog writes the status for (habit_id, log_date), replacing any
// existing row for that pair.
func (b *Backend) UpsertHabitLog(ctx context.Context, accessToken string, log models.HabitLog) (models.HabitLog, error) {
	sub, err := b.subject(accessToken)
	if err != nil {
		return models.HabitLog{}, err
	}
	if _, err := time.Parse(constants.DateFormat, log.LogDate); err != nil {
		return models.HabitLog{}, backend.InvalidError(fmt.Sprintf("invalid input syntax for type date: %q", log.LogDate))
	}
	owned, err := b.ownsHabit(ctx, sub, log.HabitID)
	if err != nil {
		return models.HabitLog{}, err
	}
	if !owned {
		return models.HabitLog{}, rlsError(backend.TableHabitLogs)
	}

	out := models.HabitLog{HabitID: log.HabitID, LogDate: log.LogDate, Status: log.Status}
	var createdAt timeValue
	err = b.db.QueryRowContext(ctx, b.rebind(`
		INSERT INTO habit_logs (id, habit_id, log_date, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (habit_id, log_date) DO UPDATE SET status = excluded.status
		RETURNING id, created_at`),
		uuid.NewString(), log.HabitID, log.LogDate, log.Status, formatTime(b.now())).Scan(&out.ID, &createdAt)
	if err != nil {
		return models.HabitLog{}, fmt.Errorf("failed to upsert habit log: %w", err)
	}
	out.CreatedAt = createdAt.Time
	return out, nil
}

// ListHabitLogs returns logs for q.HabitIDs on q.Date, limited to habits the
// token user owns.
func (b *Backend) ListHabitLogs(ctx context.Context, accessToken string, q backend.LogQuery) ([]models.HabitLog, error) {
	sub, err := b.subject(accessToken)
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(q.HabitIDs))
	for _, id := range q.HabitIDs {
		if validID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT l.id, l.habit_id, l.log_date, l.status, l.created_at
		FROM habit_logs l JOIN habits h ON h.id = l.habit_id
		WHERE h.user_id = ? AND l.habit_id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{sub}, ids...)
	if q.Date != "" {
		query += " AND l.log_date = ?"
		args = append(args, q.Date)
	}
	query += " ORDER BY l.log_date, l.created_at"

	rows, err := b.db.QueryContext(ctx, b.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.HabitLog
	for rows.Next() {
		var (
			l         models.HabitLog
			date      dateValue
			createdAt timeValue
		)
		if err := rows.Scan(&l.ID, &l.HabitID, &date, &l.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit log: %w", err)
		}
		l.LogDate = string(date)
		l.CreatedAt = createdAt.Time
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
