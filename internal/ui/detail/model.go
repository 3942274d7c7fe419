// Package detail shows every field of a single task.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/keys"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Action names carried by ActionMsg.
const (
	ActionEdit   = "edit"
	ActionToggle = "toggle"
	ActionDelete = "delete"
)

// ActionMsg signals the parent to execute an action on the shown task.
type ActionMsg struct {
	Action string
	TaskID string
}

const timeLayout = "02.01.2006 15:04"

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	overdue  bool
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.task != nil {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Edit):
			return m, m.action(ActionEdit)
		case key.Matches(msg, m.keys.Toggle):
			return m, m.action(ActionToggle)
		case key.Matches(msg, m.keys.Delete):
			return m, m.action(ActionDelete)
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(name string) tea.Cmd {
	id := m.task.ID
	return func() tea.Msg {
		return ActionMsg{Action: name, TaskID: id}
	}
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("Задача не выбрана")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	if task.Completed {
		titleStyle = theme.DimmedStyle.Bold(true)
	}
	sections = append(sections, titleStyle.Render(task.Text))

	// Badges line: category + status + priority
	cat := model.CategoryInfoFor(task.Category)
	catBadge := theme.CategoryStyle.Render(cat.Icon + " " + cat.Label)

	status := "Активна"
	statusStyle := lipgloss.NewStyle().Foreground(theme.ColorYellow)
	switch {
	case task.Completed:
		status = "Выполнена"
		statusStyle = lipgloss.NewStyle().Foreground(theme.ColorGreen)
	case m.overdue:
		status = "Просрочена"
		statusStyle = theme.OverdueStyle
	}

	priBadge := theme.PriorityStyle(task.Priority).Render(
		task.Priority.Icon() + " " + task.Priority.Label(),
	)

	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top, catBadge, "  ", statusStyle.Render(status), "  ", priBadge,
	))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(12)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label string, t *time.Time) {
		if t == nil || t.IsZero() {
			return
		}
		sections = append(sections, metaStyle.Render(label)+valStyle.Render(t.Local().Format(timeLayout)))
	}

	row("Создана:", &task.CreatedAt)
	row("Изменена:", task.UpdatedAt)
	row("Срок:", task.DueDate)
	row("Выполнена:", task.CompletedAt)

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	sections = append(sections, "")
	sections = append(sections, sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0))))
	sections = append(sections, theme.HelpStyle.Render(
		fmt.Sprintf("e: изменить | x: %s | d: удалить | esc: назад", toggleHint(task.Completed)),
	))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func toggleHint(completed bool) string {
	if completed {
		return "вернуть в работу"
	}
	return "выполнить"
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(task model.Task, overdue bool) {
	m.task = &task
	m.overdue = overdue
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Clear drops the shown task, for example after it was deleted.
func (m *Model) Clear() {
	m.task = nil
	m.viewport.SetContent("")
}

// TaskID returns the id of the shown task, or "".
func (m Model) TaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 0)
	m.viewport.SetContent(m.renderContent())
}
