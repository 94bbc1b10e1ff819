package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
)

func currentSession(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{state: store.State()}
	}
}

// waitForSession delivers the next store snapshot. It returns nil once the
// store is closed.
func waitForSession(updates <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return sessionMsg{state: st, fromUpdates: true}
	}
}

func (m Model) submitAuth() tea.Cmd {
	fm := *m.authForm
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		email := strings.TrimSpace(fm.Email)
		if fm.SignUp {
			metadata := models.EncodeMetadata(models.UserMetadata{Name: strings.TrimSpace(fm.Name)})
			resp, err := store.SignUp(ctx, email, fm.Password, metadata)
			return authDoneMsg{signUp: true, signedIn: err == nil && resp.Session != nil, err: err}
		}
		resp, err := store.SignIn(ctx, email, fm.Password)
		return authDoneMsg{signedIn: err == nil && resp.Session != nil, err: err}
	}
}

func (m Model) signOut() tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		return signedOutMsg{err: store.SignOut(ctx)}
	}
}

func (m Model) loadHabits() tea.Cmd {
	svc, ctx := m.habits, m.ctx
	return func() tea.Msg {
		list, err := svc.ListActive(ctx)
		if err != nil {
			return habitsLoadedMsg{err: err}
		}
		statuses, err := svc.TodayStatuses(ctx, list)
		if err != nil {
			return habitsLoadedMsg{err: err}
		}
		return habitsLoadedMsg{habits: list, statuses: statuses}
	}
}

func (m Model) createHabit() tea.Cmd {
	svc, ctx := m.habits, m.ctx
	fm := *m.habitForm
	return func() tea.Msg {
		form, err := fm.Form()
		if err != nil {
			return habitCreatedMsg{err: err}
		}
		_, err = svc.Create(ctx, form)
		return habitCreatedMsg{err: err}
	}
}

func (m Model) logHabit(id string, done bool) tea.Cmd {
	svc, ctx := m.habits, m.ctx
	return func() tea.Msg {
		entry, err := svc.Log(ctx, id, done)
		if err != nil {
			return habitLoggedMsg{id: id, status: done, err: err}
		}
		return habitLoggedMsg{id: id, status: entry.Status}
	}
}

func (m Model) archiveHabit(id, name string) tea.Cmd {
	svc, ctx := m.habits, m.ctx
	return func() tea.Msg {
		return habitArchivedMsg{name: name, err: svc.Archive(ctx, id)}
	}
}
