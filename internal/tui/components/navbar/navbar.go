package navbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/models"
)

const title = "🎯 Habit Tracker"

var (
	barStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))

	avatarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("33")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type Model struct {
	user  *models.User
	width int
}

func New() Model {
	return Model{}
}

func (m *Model) SetUser(u *models.User) {
	m.user = u
}

func (m *Model) SetWidth(w int) {
	m.width = w
}

// Label is the metadata name, or the full email when there is none
func Label(u *models.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Metadata.Name); name != "" {
		return name
	}
	return u.Email
}

// Initial is the uppercased first letter of Label
func Initial(u *models.User) string {
	label := Label(u)
	if label == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(label)[0]))
}

func (m Model) View() string {
	left := titleStyle.Render(title)
	right := ""
	if m.user != nil {
		right = lipgloss.JoinHorizontal(lipgloss.Center,
			userStyle.Render(Label(m.user)), " ",
			avatarStyle.Render(Initial(m.user)), " ",
			hintStyle.Render("[o] Sign Out"),
		)
	}

	inner := m.width - barStyle.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return barStyle.Render(left + strings.Repeat(" ", gap) + right)
}
