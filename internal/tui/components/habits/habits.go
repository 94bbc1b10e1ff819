package habits

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/models"
)

type AddHabitMsg struct{}

// LogHabitMsg asks for today's status of a habit to be recorded
type LogHabitMsg struct {
	ID   string
	Done bool
}

type ArchiveHabitMsg struct {
	ID   string
	Name string
}

type RefreshMsg struct{}

var badgeStyles = map[models.Category]lipgloss.Style{
	models.CategoryHealth:       badge("42"),
	models.CategoryProductivity: badge("33"),
	models.CategoryLearning:     badge("214"),
	models.CategoryMindfulness:  badge("141"),
	models.CategorySocial:       badge("205"),
	models.CategoryGeneral:      badge("245"),
}

func badge(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// Badge renders the category label in its color
func Badge(c models.Category) string {
	style, ok := badgeStyles[c]
	if !ok {
		style = badgeStyles[models.CategoryGeneral]
	}
	return style.Render("[" + c.Label() + "]")
}

type Item struct {
	Habit   models.Habit
	Status  models.LogStatus
	Pending bool
}

func (i Item) Title() string {
	mark := "○"
	switch {
	case i.Pending:
		mark = "…"
	case i.Status == models.Done:
		mark = "✓"
	case i.Status == models.Skipped:
		mark = "✗"
	}
	return fmt.Sprintf("%s %s %s", mark, i.Habit.Name, Badge(i.Habit.Category))
}

func (i Item) Description() string {
	if i.Pending {
		return "[...] [...]"
	}
	actions := "[d ✓ Done] [s ✗ Skip]"
	var status string
	switch i.Status {
	case models.Done:
		status = "done today"
	case models.Skipped:
		status = "skipped today"
	default:
		status = "not logged today"
	}
	if i.Habit.Description != "" {
		return fmt.Sprintf("%s · %s · %s", actions, status, i.Habit.Description)
	}
	return fmt.Sprintf("%s · %s", actions, status)
}

func (i Item) FilterValue() string { return i.Habit.Name }

type KeyMap struct {
	Add     key.Binding
	Done    key.Binding
	Skip    key.Binding
	Archive key.Binding
	Refresh key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Done: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "done"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
		Archive: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "archive"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type Model struct {
	list    list.Model
	keys    KeyMap
	pending map[string]bool
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Your Habits"
	l.SetShowHelp(false)
	l.SetStatusBarItemName("habit", "habits")
	// d is Done here, not next page
	l.KeyMap.NextPage.SetKeys("right", "l", "pgdown", "f")
	l.KeyMap.Quit.SetEnabled(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Add, keys.Done, keys.Skip, keys.Archive, keys.Refresh}
	}

	return Model{
		list:    l,
		keys:    keys,
		pending: make(map[string]bool),
	}
}

// SetHabits replaces the list. Habits missing from statuses are not logged.
func (m *Model) SetHabits(habits []models.Habit, statuses map[string]models.LogStatus) tea.Cmd {
	items := make([]list.Item, len(habits))
	for i, h := range habits {
		items[i] = Item{
			Habit:   h,
			Status:  statuses[h.ID],
			Pending: m.pending[h.ID],
		}
	}
	return m.list.SetItems(items)
}

// SetPending marks a habit's log request as in flight or settled
func (m *Model) SetPending(id string, pending bool) {
	if pending {
		m.pending[id] = true
	} else {
		delete(m.pending, id)
	}
	m.updateItem(id, func(it *Item) { it.Pending = pending })
}

// SetStatus records today's status for a habit
func (m *Model) SetStatus(id string, status models.LogStatus) {
	m.updateItem(id, func(it *Item) { it.Status = status })
}

// Pending reports whether a log request for id is in flight
func (m Model) Pending(id string) bool {
	return m.pending[id]
}

func (m *Model) updateItem(id string, fn func(*Item)) {
	for i, li := range m.list.Items() {
		it, ok := li.(Item)
		if !ok || it.Habit.ID != id {
			continue
		}
		fn(&it)
		m.list.SetItem(i, it)
		return
	}
}

func (m Model) Len() int {
	return len(m.list.Items())
}

// Selected returns the highlighted item
func (m Model) Selected() (Item, bool) {
	it, ok := m.list.SelectedItem().(Item)
	return it, ok
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddHabitMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		case key.Matches(msg, m.keys.Done), key.Matches(msg, m.keys.Skip):
			i, ok := m.Selected()
			if !ok || m.pending[i.Habit.ID] {
				return m, nil
			}
			done := key.Matches(msg, m.keys.Done)
			m.SetPending(i.Habit.ID, true)
			return m, func() tea.Msg { return LogHabitMsg{ID: i.Habit.ID, Done: done} }
		case key.Matches(msg, m.keys.Archive):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return ArchiveHabitMsg{ID: i.Habit.ID, Name: i.Habit.Name} }
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.list.View()
}

// Filtering reports whether the list is capturing keys for its filter
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}
