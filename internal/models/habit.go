package models

import (
	"fmt"
	"strings"
	"time"
)

// Category groups habits for display
type Category string

const (
	CategoryHealth       Category = "health"
	CategoryProductivity Category = "productivity"
	CategoryLearning     Category = "learning"
	CategoryMindfulness  Category = "mindfulness"
	CategorySocial       Category = "social"
	CategoryGeneral      Category = "general"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryHealth,
	CategoryProductivity,
	CategoryLearning,
	CategoryMindfulness,
	CategorySocial,
	CategoryGeneral,
}

var categoryLabels = map[Category]string{
	CategoryHealth:       "Health & Fitness",
	CategoryProductivity: "Productivity",
	CategoryLearning:     "Learning",
	CategoryMindfulness:  "Mindfulness",
	CategorySocial:       "Social",
	CategoryGeneral:      "General",
}

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// Habit is a user-owned practice to track
type Habit struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        Category  `json:"category"`
	TargetFrequency int       `json:"target_frequency"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewHabit is the insert payload for a habit
type NewHabit struct {
	UserID          string   `json:"user_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        Category `json:"category"`
	TargetFrequency int      `json:"target_frequency"`
}

// HabitLog is a single day's status for a habit.
// At most one exists per (HabitID, LogDate).
type HabitLog struct {
	ID        string    `json:"id,omitempty"`
	HabitID   string    `json:"habit_id"`
	LogDate   string    `json:"log_date"` // YYYY-MM-DD format
	Status    bool      `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LogStatus is the state of a habit for a given day as seen by the client.
// Skipped and NotLogged differ only by whether a log row exists.
type LogStatus int

const (
	NotLogged LogStatus = iota
	Done
	Skipped
)

func (s LogStatus) String() string {
	switch s {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	default:
		return "not logged"
	}
}

// StatusOf returns the LogStatus for an optional log row.
func StatusOf(log *HabitLog) LogStatus {
	if log == nil {
		return NotLogged
	}
	if log.Status {
		return Done
	}
	return Skipped
}
