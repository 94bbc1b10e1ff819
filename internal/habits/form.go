package habits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

var (
	ErrNameRequired     = errors.New("habit name is required")
	ErrInvalidCategory  = errors.New("category must be one of health, productivity, learning, mindfulness, social, general")
	ErrInvalidFrequency = errors.New("target frequency must be a positive whole number")
)

// Form is the user input for a new habit
type Form struct {
	Name        string
	Description string
	Category    models.Category
	// TargetFrequency of 0 means the default of 1.
	TargetFrequency int
}

// NewForm returns a form with default values
func NewForm() Form {
	return Form{
		Category:        models.CategoryHealth,
		TargetFrequency: constants.DefaultTargetFrequency,
	}
}

// Validate checks the form
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrNameRequired
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidCategory, f.Category)
	}
	if f.TargetFrequency < 0 {
		return ErrInvalidFrequency
	}
	return nil
}

// NewHabit builds the insert payload for userID. Call Validate first.
func (f Form) NewHabit(userID string) models.NewHabit {
	target := f.TargetFrequency
	if target == 0 {
		target = constants.DefaultTargetFrequency
	}
	return models.NewHabit{
		UserID:          userID,
		Name:            strings.TrimSpace(f.Name),
		Description:     strings.TrimSpace(f.Description),
		Category:        f.Category,
		TargetFrequency: target,
	}
}

// ParseFrequency parses a target frequency typed by the user. Empty input
// yields the default.
func ParseFrequency(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return constants.DefaultTargetFrequency, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidFrequency
	}
	return n, nil
}
