package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/constants"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string

	switch m.state {
	case constants.StateLoading:
		content = m.viewLoading("Loading...")
	case constants.StateAuth:
		content = m.viewAuth()
	case constants.StateDashboard:
		content = m.viewDashboard()
	case constants.StateAddHabit:
		content = m.viewAddHabit()
	case constants.StateConfirmArchive:
		content = m.viewConfirmArchive()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		content,
		m.help.View(m),
	)
}

func (m Model) viewLoading(label string) string {
	return docStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), label))
}

func (m Model) viewMessage() string {
	if m.message == "" {
		return ""
	}
	if m.messageIsErr {
		return dangerStyle.Render(m.message)
	}
	return successStyle.Render(m.message)
}

func (m Model) viewAuth() string {
	signUp := m.authForm != nil && m.authForm.SignUp

	parts := []string{headingStyle.Render("🎯 Habit Tracker"), ""}
	if msg := m.viewMessage(); msg != "" {
		parts = append(parts, msg, "")
	}

	switch {
	case m.submitting && signUp:
		parts = append(parts, m.spinner.View()+" Creating account...")
	case m.submitting:
		parts = append(parts, m.spinner.View()+" Signing in...")
	case m.form != nil:
		parts = append(parts, m.form.View())
	}

	toggle := "Don't have an account? Press ctrl+t to sign up"
	if signUp {
		toggle = "Already have an account? Press ctrl+t to sign in"
	}
	parts = append(parts, "", mutedStyle.Render(toggle))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewStatus() string {
	if m.statusLine == "" {
		return ""
	}
	if m.statusIsErr {
		return dangerStyle.Render(m.statusLine)
	}
	return mutedStyle.Render(m.statusLine)
}

func (m Model) viewDashboard() string {
	name := ""
	if m.auth.User != nil {
		name = m.auth.User.DisplayName()
	}
	welcome := lipgloss.JoinVertical(lipgloss.Left,
		headingStyle.Render(fmt.Sprintf("Welcome back, %s! 👋", name)),
		mutedStyle.Render(constants.MsgTagline),
	)

	var body string
	switch {
	case m.loadingHabits && m.habitsModel.Len() == 0:
		body = fmt.Sprintf("%s Loading your habits...", m.spinner.View())
	case m.habitsModel.Len() == 0:
		body = lipgloss.JoinVertical(lipgloss.Center,
			"🎯",
			headingStyle.Render(constants.MsgNoHabits),
			mutedStyle.Render(constants.MsgGetStarted),
			"",
			successStyle.Render("[a] Create Your First Habit"),
		)
	default:
		body = m.habitsModel.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.navbar.View(),
		docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, welcome, "", body)),
		m.viewStatus(),
	)
}

func (m Model) viewAddHabit() string {
	parts := []string{m.navbar.View()}
	if m.submitting {
		parts = append(parts, docStyle.Render(m.spinner.View()+" Creating habit..."))
	} else if m.form != nil {
		parts = append(parts, docStyle.Render(m.form.View()))
	}
	if m.formError != "" {
		parts = append(parts, dangerStyle.Render(m.formError))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewConfirmArchive() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			fmt.Sprintf("Archive %q?", m.archiveName),
			mutedStyle.Render("It will no longer appear in your list."),
			"",
			warningStyle.Render("[y] Yes    [n] No"),
		),
	)
}
