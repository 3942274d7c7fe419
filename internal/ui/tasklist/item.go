package tasklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Text }

func (i TaskItem) Title() string { return i.Task.Text }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	info := i.Task.CategoryInfo()
	parts := []string{info.Label, i.Task.Priority.Label()}
	if i.Task.DueDate != nil {
		parts = append(parts, i.Task.DueDate.Format(dateLayout))
	}
	return strings.Join(parts, " | ")
}

const dateLayout = "02.01.2006"

// TaskDelegate implements list.ItemDelegate for rendering task rows.
type TaskDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d TaskDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d TaskDelegate) Spacing() int { return 0 }

func (d TaskDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line.
func (d TaskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}

	line := renderLine(ti, d.now())
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// renderLine lays out one task: check mark, category icon, priority
// marker, text, due date and the overdue badge.
func renderLine(ti TaskItem, now time.Time) string {
	t := ti.Task

	check := "○"
	if t.Completed {
		check = "✓"
	}

	info := t.CategoryInfo()
	category := theme.CategoryStyle.Render(info.Icon)
	priority := theme.PriorityStyle(t.Priority).Render(t.Priority.Icon())

	text := t.Text
	if t.Completed {
		text = theme.DimmedStyle.Render(text)
	}

	due := ""
	if t.DueDate != nil {
		due = theme.DueDateStyle.Render(" " + dueLabel(*t.DueDate, now))
	}

	overdue := ""
	if taskstore.IsOverdue(t, now) {
		overdue = theme.OverdueStyle.Render(" ПРОСРОЧЕНО")
	}

	return fmt.Sprintf("%s %s %s %s%s%s", check, category, priority, text, due, overdue)
}

// dueLabel names the deadline relative to now: today, tomorrow, yesterday
// or the calendar date.
func dueLabel(due, now time.Time) string {
	day := func(t time.Time) time.Time {
		y, m, d := t.In(now.Location()).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}

	switch int(day(due).Sub(day(now)).Hours() / 24) {
	case 0:
		return "сегодня"
	case 1:
		return "завтра"
	case -1:
		return "вчера"
	default:
		return due.In(now.Location()).Format(dateLayout)
	}
}
