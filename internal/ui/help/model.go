package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/keys"
	"github.com/nhle/todopro/internal/theme"
)

// commands lists what the command bar accepts.
var commands = []string{
	":filter all|pending|completed|overdue",
	":sort date|priority|category|alphabetical",
	":search <text>   (empty clears)",
	":clear-completed   :complete-all   :delete-all",
	":stats   :account   :refresh   :logout   :quit",
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	m.help.Width = m.width - 4
	m.help.ShowAll = true

	parts := []string{
		theme.TitleStyle.Render("Клавиши"),
		m.help.View(m.keys),
		"",
		theme.TitleStyle.Render("Команды"),
	}
	for _, c := range commands {
		parts = append(parts, theme.HelpStyle.Render(c))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
