package taskform

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/theme"
)

// SubmitMsg is dispatched when the form is completed. ID is empty for a
// new task.
type SubmitMsg struct {
	ID       string
	Text     string
	Category string
	Priority model.Priority
	// DueDate is nil when the field was left empty.
	DueDate *time.Time
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// dueLayouts are the accepted due date spellings.
var dueLayouts = []string{"02.01.2006", "2006-01-02"}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	text     string
	category string
	priority model.Priority
	dueDate  string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editID   string
	location *time.Location
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:       &formBindings{category: model.DefaultCategory, priority: model.PriorityMedium},
		location: time.Local,
		width:    width,
		height:   height,
	}
}

// StartCreate initializes the form for a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editID = ""
	*m.fb = formBindings{category: model.DefaultCategory, priority: model.PriorityMedium}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing task.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	m.editID = task.ID
	*m.fb = formBindings{
		text:     task.Text,
		category: task.Category,
		priority: task.Priority,
	}
	if task.DueDate != nil {
		m.fb.dueDate = task.DueDate.In(m.location).Format(dueLayouts[0])
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Editing reports whether the form edits an existing task.
func (m Model) Editing() bool {
	return m.editID != ""
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, m.submit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Новая задача"
	if m.Editing() {
		titleText = "Редактирование задачи"
	}

	content := theme.TitleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	categories := make([]huh.Option[string], 0, len(model.Categories)+1)
	for _, c := range model.Categories {
		categories = append(categories, huh.NewOption(c.Icon+" "+c.Label, c.Key))
	}
	// Keep an unknown category selectable so editing does not rewrite it.
	if !model.IsKnownCategory(m.fb.category) {
		info := model.CategoryInfoFor(m.fb.category)
		categories = append(categories, huh.NewOption(info.Icon+" "+info.Label, info.Key))
	}

	priorities := make([]huh.Option[model.Priority], 0, len(model.Priorities))
	for i := len(model.Priorities) - 1; i >= 0; i-- {
		p := model.Priorities[i]
		priorities = append(priorities, huh.NewOption(p.Icon()+" "+p.Label(), p))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Задача").
				Placeholder("Что нужно сделать?").
				CharLimit(model.MaxTaskTextLength).
				Value(&m.fb.text).
				Validate(model.ValidateTaskText),
			huh.NewSelect[string]().
				Title("Категория").
				Options(categories...).
				Value(&m.fb.category),
			huh.NewSelect[model.Priority]().
				Title("Приоритет").
				Options(priorities...).
				Value(&m.fb.priority),
			huh.NewInput().
				Title("Срок").
				Placeholder("ДД.ММ.ГГГГ (необязательно)").
				Value(&m.fb.dueDate).
				Validate(m.validateDue),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) submit() tea.Cmd {
	msg := SubmitMsg{
		ID:       m.editID,
		Text:     strings.TrimSpace(m.fb.text),
		Category: m.fb.category,
		Priority: m.fb.priority,
	}
	if due, err := parseDue(m.fb.dueDate, m.location); err == nil {
		msg.DueDate = due
	}
	return func() tea.Msg { return msg }
}

func (m Model) validateDue(s string) error {
	_, err := parseDue(s, m.location)
	return err
}

// parseDue reads an optional due date. The deadline is the end of the
// given day in loc.
func parseDue(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			end := t.Add(24*time.Hour - time.Second)
			return &end, nil
		}
	}
	return nil, errors.New("неверная дата, используйте ДД.ММ.ГГГГ")
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
