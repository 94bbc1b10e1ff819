package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/models"
)

const (
	preferRepresentation = "return=representation"
	preferMergeUpsert    = "resolution=merge-duplicates,return=representation"
)

func tablePath(table string) string {
	return restPath + "/" + table
}

// InsertHabit inserts one habit and returns the stored row.
func (c *Client) InsertHabit(ctx context.Context, accessToken string, habit models.NewHabit) (models.Habit, error) {
	var rows []models.Habit
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(backend.TableHabits),
		token:  accessToken,
		prefer: preferRepresentation,
		body:   []models.NewHabit{habit},
	}, &rows)
	if err != nil {
		return models.Habit{}, err
	}
	if len(rows) == 0 {
		return models.Habit{}, backend.AccessError("insert returned no rows")
	}
	return rows[0], nil
}

// ListHabits selects habits for q.UserID ordered by created_at.
func (c *Client) ListHabits(ctx context.Context, accessToken string, q backend.HabitQuery) ([]models.Habit, error) {
	query := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + q.UserID},
	}
	if q.ActiveOnly {
		query.Set("is_active", "eq.true")
	}
	if q.NewestFirst {
		query.Set("order", "created_at.desc")
	} else {
		query.Set("order", "created_at.asc")
	}

	var rows []models.Habit
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(backend.TableHabits),
		query:  query,
		token:  accessToken,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetHabitActive flips the active flag of one habit.
func (c *Client) SetHabitActive(ctx context.Context, accessToken, habitID string, active bool) error {
	var rows []models.Habit
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   tablePath(backend.TableHabits),
		query:  url.Values{"id": {"eq." + habitID}},
		token:  accessToken,
		prefer: preferRepresentation,
		body:   map[string]any{"is_active": active},
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		// Row-level security hides rows owned by other users
		return &backend.Error{Kind: backend.KindAccess, Status: http.StatusNotFound, Code: backend.CodeNotFound, Message: "habit not found"}
	}
	return nil
}

type habitLogPayload struct {
	HabitID string `json:"habit_id"`
	LogDate string `json:"log_date"`
	Status  bool   `json:"status"`
}

// UpsertHabitLog writes the status for (habit_id, log_date), replacing any
// existing row for that pair.
func (c *Client) UpsertHabitLog(ctx context.Context, accessToken string, log models.HabitLog) (models.HabitLog, error) {
	var rows []models.HabitLog
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(backend.TableHabitLogs),
		query:  url.Values{"on_conflict": {"habit_id,log_date"}},
		token:  accessToken,
		prefer: preferMergeUpsert,
		body: []habitLogPayload{{
			HabitID: log.HabitID,
			LogDate: log.LogDate,
			Status:  log.Status,
		}},
	}, &rows)
	if err != nil {
		return models.HabitLog{}, err
	}
	if len(rows) == 0 {
		return log, nil
	}
	return rows[0], nil
}

// ListHabitLogs selects logs for q.HabitIDs on q.Date.
func (c *Client) ListHabitLogs(ctx context.Context, accessToken string, q backend.LogQuery) ([]models.HabitLog, error) {
	if len(q.HabitIDs) == 0 {
		return nil, nil
	}
	query := url.Values{
		"select":   {"*"},
		"habit_id": {"in.(" + strings.Join(q.HabitIDs, ",") + ")"},
	}
	if q.Date != "" {
		query.Set("log_date", "eq."+q.Date)
	}

	var rows []models.HabitLog
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(backend.TableHabitLogs),
		query:  query,
		token:  accessToken,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
