package tui

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/models"
)

type AuthFormModel struct {
	SignUp   bool
	Name     string
	Email    string
	Password string
}

type HabitFormModel struct {
	Name            string
	Description     string
	Category        models.Category
	TargetFrequency string
}

func newHabitFormModel() *HabitFormModel {
	f := habits.NewForm()
	return &HabitFormModel{
		Category:        f.Category,
		TargetFrequency: fmt.Sprint(f.TargetFrequency),
	}
}

// Form converts the inputs into a habits.Form
func (fm *HabitFormModel) Form() (habits.Form, error) {
	freq, err := habits.ParseFrequency(fm.TargetFrequency)
	if err != nil {
		return habits.Form{}, err
	}
	return habits.Form{
		Name:            fm.Name,
		Description:     fm.Description,
		Category:        fm.Category,
		TargetFrequency: freq,
	}, nil
}

func validateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validatePassword(s string) error {
	if s == "" {
		return errors.New("password is required")
	}
	return nil
}

// validateNewPassword applies the length rule on sign-up only
func validateNewPassword(s string) error {
	if len(s) < constants.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", constants.MinPasswordLength)
	}
	return nil
}

// NewAuthForm creates the sign-in form, or the sign-up form with a name field
func NewAuthForm(fm *AuthFormModel) *huh.Form {
	var fields []huh.Field
	if fm.SignUp {
		fields = append(fields, huh.NewInput().
			Title("Full Name").
			Placeholder("Enter your name").
			Value(&fm.Name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("name is required")
				}
				return nil
			}))
	}
	checkPassword := validatePassword
	if fm.SignUp {
		checkPassword = validateNewPassword
	}
	fields = append(fields,
		huh.NewInput().
			Title("Email").
			Placeholder("Enter your email").
			Value(&fm.Email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Password").
			Placeholder("Enter your password").
			EchoMode(huh.EchoModePassword).
			Value(&fm.Password).
			Validate(checkPassword),
	)

	title := "Welcome back!"
	if fm.SignUp {
		title = "Start your journey"
	}
	return huh.NewForm(
		huh.NewGroup(fields...).Title(title),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(true)
}

// NewHabitForm creates the form for adding a habit
func NewHabitForm(fm *HabitFormModel) *huh.Form {
	options := make([]huh.Option[models.Category], 0, len(models.Categories))
	for _, c := range models.Categories {
		options = append(options, huh.NewOption(c.Label(), c))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit Name").
				Placeholder("e.g., Drink 8 glasses of water").
				Value(&fm.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return habits.ErrNameRequired
					}
					return nil
				}),
			huh.NewText().
				Title("Description (Optional)").
				Placeholder("Why is this habit important to you?").
				Lines(3).
				Value(&fm.Description),
			huh.NewSelect[models.Category]().
				Title("Category").
				Options(options...).
				Value(&fm.Category),
			huh.NewInput().
				Title("Target Frequency (per day)").
				Value(&fm.TargetFrequency).
				Validate(func(s string) error {
					_, err := habits.ParseFrequency(s)
					return err
				}),
		).Title("Create New Habit"),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(true)
}
