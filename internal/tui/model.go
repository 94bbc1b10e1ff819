// Package tui is the interactive terminal interface: sign in or sign up,
// then a dashboard of today's habits.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
	habitlist "github.com/julianstephens/habitual/internal/tui/components/habits"
	"github.com/julianstephens/habitual/internal/tui/components/navbar"
)

type Model struct {
	ctx    context.Context
	store  *session.Store
	habits *habits.Service

	state   constants.SessionState
	auth    session.State
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	navbar      navbar.Model
	habitsModel habitlist.Model

	form      *huh.Form
	authForm  *AuthFormModel
	habitForm *HabitFormModel

	// submitting is set while a sign-in, sign-up or habit insert is running
	submitting    bool
	loadingHabits bool
	message       string
	messageIsErr  bool
	formError     string
	statusLine    string
	statusIsErr   bool
	archiveID     string
	archiveName   string
	quitting      bool
	width         int
	height        int
}

func NewModel(ctx context.Context, store *session.Store, svc *habits.Service) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = successStyle

	return Model{
		ctx:         ctx,
		store:       store,
		habits:      svc,
		state:       constants.StateLoading,
		auth:        store.State(),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		navbar:      navbar.New(),
		habitsModel: habitlist.New(0, 0),
	}
}

func (m Model) ShortHelp() []key.Binding {
	switch m.state {
	case constants.StateAuth:
		return []key.Binding{m.keys.Toggle, withHelp(m.keys.Quit, "ctrl+c", "quit")}
	case constants.StateAddHabit:
		return []key.Binding{m.keys.Back}
	case constants.StateConfirmArchive:
		return []key.Binding{m.keys.Confirm, m.keys.Cancel}
	case constants.StateDashboard:
		return []key.Binding{m.keys.SignOut, m.keys.Quit, m.keys.Help}
	}
	return []key.Binding{withHelp(m.keys.Quit, "ctrl+c", "quit")}
}

func (m Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{m.ShortHelp()}
}

func withHelp(b key.Binding, k, desc string) key.Binding {
	b.SetHelp(k, desc)
	return b
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		currentSession(m.store),
		waitForSession(m.store.Updates()),
	)
}

// Messages

// sessionMsg carries a store snapshot. fromUpdates is set when it was read
// from the store's update channel, which must then be waited on again.
type sessionMsg struct {
	state       session.State
	fromUpdates bool
}

type authDoneMsg struct {
	signUp   bool
	signedIn bool
	err      error
}

type signedOutMsg struct{ err error }

type habitsLoadedMsg struct {
	habits   []models.Habit
	statuses map[string]models.LogStatus
	err      error
}

type habitCreatedMsg struct{ err error }

type habitLoggedMsg struct {
	id     string
	status bool
	err    error
}

type habitArchivedMsg struct {
	name string
	err  error
}
