package tasklist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/keys"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/theme"
)

// Model is the main task list view component. It renders the filtered
// view of the task store and owns the search input.
type Model struct {
	list        list.Model
	store       *taskstore.Store
	keys        *keys.KeyMap
	now         func() time.Time
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new task list model.
func New(s *taskstore.Store, k *keys.KeyMap, now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	l := list.New([]list.Item{}, TaskDelegate{now: now}, width, height)
	l.Title = "Задачи"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "поиск задач..."
	si.Prompt = "/ "
	si.Width = width - 4

	m := Model{
		list:        l,
		store:       s,
		keys:        k,
		now:         now,
		searchInput: si,
		width:       width,
		height:      height,
	}
	return m
}

// RefreshInterval is how often an idle list re-reads the store so that
// tasks passing their deadline move into the overdue filter.
const RefreshInterval = time.Minute

// TickMsg is delivered every RefreshInterval once Tick is started.
type TickMsg struct {
	At time.Time
}

// Tick schedules the next TickMsg.
func Tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg{At: t}
	})
}

// Refresh reloads the items from the store's filtered view.
func (m *Model) Refresh() tea.Cmd {
	tasks := m.store.FilteredTasks()
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = TaskItem{Task: t}
	}
	return m.list.SetItems(items)
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		if key.Matches(msg, m.keys.Search) {
			m.searchMode = true
			m.searchInput.SetValue(m.store.SearchQuery())
			m.searchInput.CursorEnd()
			cmd := m.searchInput.Focus()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys applies the query as it is typed. Enter keeps it, esc
// clears it.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.store.SetSearchQuery("")
		cmd := m.Refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() != m.store.SearchQuery() {
		m.store.SetSearchQuery(m.searchInput.Value())
		m.list.Select(0)
		refresh := m.Refresh()
		return m, tea.Batch(cmd, refresh)
	}
	return m, cmd
}

// View renders the task list view.
func (m Model) View() string {
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	}

	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, body)
	}
	return body
}

// renderEmptyState shows guidance text when no tasks are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-1).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.store.Len() > 0 {
		return style.Render("Ничего не найдено.\nИзмените фильтр или поиск.")
	}
	return style.Render("Задач пока нет.\n\nНажмите n, чтобы добавить первую.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
	m.searchInput.Width = width - 4
}
