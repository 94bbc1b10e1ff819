package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	habitlist "github.com/julianstephens/habitual/internal/tui/components/habits"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.navbar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.habitsModel.SetSize(msg.Width-docStyle.GetHorizontalFrameSize(), m.listHeight())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case sessionMsg:
		return m, m.handleSession(msg)
	case authDoneMsg:
		return m, m.handleAuthDone(msg)
	case signedOutMsg:
		return m, m.handleSignedOut(msg)
	case habitsLoadedMsg:
		return m, m.handleHabitsLoaded(msg)
	case habitCreatedMsg:
		return m, m.handleHabitCreated(msg)
	case habitLoggedMsg:
		return m, m.handleHabitLogged(msg)
	case habitArchivedMsg:
		return m, m.handleHabitArchived(msg)

	case habitlist.AddHabitMsg:
		m.habitForm = newHabitFormModel()
		m.form = NewHabitForm(m.habitForm)
		m.formError = ""
		m.state = constants.StateAddHabit
		return m, m.form.Init()
	case habitlist.LogHabitMsg:
		return m, m.logHabit(msg.ID, msg.Done)
	case habitlist.ArchiveHabitMsg:
		m.archiveID, m.archiveName = msg.ID, msg.Name
		m.state = constants.StateConfirmArchive
		return m, nil
	case habitlist.RefreshMsg:
		return m, m.startLoadingHabits()
	}

	var cmd tea.Cmd
	switch m.state {
	case constants.StateAuth:
		cmd = m.updateAuth(msg)
	case constants.StateDashboard:
		cmd = m.updateDashboard(msg)
	case constants.StateAddHabit:
		cmd = m.updateAddHabit(msg)
	case constants.StateConfirmArchive:
		cmd = m.updateConfirmArchive(msg)
	}
	return m, cmd
}

func (m Model) listHeight() int {
	// navbar, welcome block, status line and help
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	return h
}

func (m *Model) handleSession(msg sessionMsg) tea.Cmd {
	st := msg.state
	m.auth = st
	m.navbar.SetUser(st.User)

	var cmds []tea.Cmd
	if msg.fromUpdates {
		cmds = append(cmds, waitForSession(m.store.Updates()))
	}

	switch {
	case !st.Initialized:
		m.state = constants.StateLoading
	case st.SignedIn():
		if m.state == constants.StateLoading || m.state == constants.StateAuth {
			m.state = constants.StateDashboard
			cmds = append(cmds, m.startLoadingHabits())
		}
	default:
		if m.state != constants.StateAuth {
			m.state = constants.StateAuth
			m.submitting = false
			cmds = append(cmds, m.resetAuthForm(false))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) resetAuthForm(signUp bool) tea.Cmd {
	m.authForm = &AuthFormModel{SignUp: signUp}
	m.form = NewAuthForm(m.authForm)
	m.message = ""
	m.messageIsErr = false
	return m.form.Init()
}

func (m *Model) updateAuth(msg tea.Msg) tea.Cmd {
	if m.submitting || m.form == nil {
		return nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Toggle) {
		return m.resetAuthForm(!m.authForm.SignUp)
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.message = ""
		return tea.Batch(cmd, m.submitAuth())
	case huh.StateAborted:
		m.quitting = true
		return tea.Quit
	}
	return cmd
}

func (m *Model) handleAuthDone(msg authDoneMsg) tea.Cmd {
	m.submitting = false
	if msg.err != nil {
		// Keep what was typed, except the password
		m.authForm.Password = ""
		m.form = NewAuthForm(m.authForm)
		m.message, m.messageIsErr = msg.err.Error(), true
		return m.form.Init()
	}
	if !msg.signedIn {
		cmd := m.resetAuthForm(false)
		m.message, m.messageIsErr = constants.MsgCheckEmail, false
		return cmd
	}

	m.message, m.messageIsErr = constants.MsgSignedIn, false
	m.setStatus(constants.MsgSignedIn, false)
	if m.state == constants.StateAuth {
		m.state = constants.StateDashboard
		m.navbar.SetUser(m.store.State().User)
		return m.startLoadingHabits()
	}
	return nil
}

func (m *Model) handleSignedOut(msg signedOutMsg) tea.Cmd {
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Failed to sign out: %v", msg.err), true)
		return nil
	}
	var cmd tea.Cmd
	if m.state != constants.StateAuth {
		m.state = constants.StateAuth
		cmd = m.resetAuthForm(false)
	}
	m.habitsModel.SetHabits(nil, nil)
	m.message, m.messageIsErr = constants.MsgSignedOut, false
	return cmd
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusLine, m.statusIsErr = s, isErr
}

func (m *Model) startLoadingHabits() tea.Cmd {
	m.loadingHabits = true
	return m.loadHabits()
}

func (m *Model) handleHabitsLoaded(msg habitsLoadedMsg) tea.Cmd {
	m.loadingHabits = false
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Failed to load habits: %v", msg.err), true)
		return nil
	}
	return m.habitsModel.SetHabits(msg.habits, msg.statuses)
}

func (m *Model) updateDashboard(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok && !m.habitsModel.Filtering() {
		switch {
		case key.Matches(k, m.keys.Quit):
			m.quitting = true
			return tea.Quit
		case key.Matches(k, m.keys.SignOut):
			return m.signOut()
		case key.Matches(k, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return nil
		}
	}

	var cmd tea.Cmd
	m.habitsModel, cmd = m.habitsModel.Update(msg)
	return cmd
}

func (m *Model) handleHabitLogged(msg habitLoggedMsg) tea.Cmd {
	m.habitsModel.SetPending(msg.id, false)
	if msg.err != nil {
		if errors.Is(msg.err, habits.ErrLogInFlight) {
			return nil
		}
		m.setStatus(fmt.Sprintf("Failed to log habit: %v", msg.err), true)
		return nil
	}
	m.habitsModel.SetStatus(msg.id, models.StatusOf(&models.HabitLog{Status: msg.status}))
	m.setStatus("", false)
	return m.startLoadingHabits()
}

func (m *Model) updateAddHabit(msg tea.Msg) tea.Cmd {
	if m.submitting {
		return nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Back) {
		m.state = constants.StateDashboard
		m.formError = ""
		return nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.formError = ""
		return tea.Batch(cmd, m.createHabit())
	case huh.StateAborted:
		m.state = constants.StateDashboard
	}
	return cmd
}

func (m *Model) handleHabitCreated(msg habitCreatedMsg) tea.Cmd {
	m.submitting = false
	if msg.err != nil {
		// The form stays open with its values for another try
		logger.Debug("Habit form kept open after error", "error", msg.err)
		m.formError = msg.err.Error()
		m.form = NewHabitForm(m.habitForm)
		return m.form.Init()
	}
	m.formError = ""
	m.state = constants.StateDashboard
	m.setStatus("Habit created.", false)
	return m.startLoadingHabits()
}

func (m *Model) updateConfirmArchive(msg tea.Msg) tea.Cmd {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch {
	case key.Matches(k, m.keys.Confirm):
		m.state = constants.StateDashboard
		return m.archiveHabit(m.archiveID, m.archiveName)
	case key.Matches(k, m.keys.Cancel):
		m.state = constants.StateDashboard
		m.archiveID, m.archiveName = "", ""
	}
	return nil
}

func (m *Model) handleHabitArchived(msg habitArchivedMsg) tea.Cmd {
	m.archiveID, m.archiveName = "", ""
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Failed to archive habit: %v", msg.err), true)
		return nil
	}
	m.setStatus(fmt.Sprintf("Archived %q.", msg.name), false)
	return m.startLoadingHabits()
}
