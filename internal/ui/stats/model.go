// Package stats renders the statistics overlay.
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/theme"
)

const labelWidth = 16

// Model renders a taskstore.Stats snapshot.
type Model struct {
	stats  taskstore.Stats
	bar    progress.Model
	width  int
	height int
}

// New creates the statistics view.
func New(width, height int) Model {
	m := Model{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
	}
	m.SetSize(width, height)
	return m
}

// SetStats replaces the snapshot shown.
func (m *Model) SetStats(st taskstore.Stats) {
	m.stats = st
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	w := width - labelWidth - 16
	if w < 10 {
		w = 10
	}
	if w > 50 {
		w = 50
	}
	m.bar.Width = w
}

// View renders the overlay.
func (m Model) View() string {
	st := m.stats

	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Статистика"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Всего: %d   Выполнено: %d   В работе: %d   Просрочено: %d\n\n",
		st.Total, st.Completed, st.Pending, st.Overdue)

	b.WriteString(m.row("Выполнено", st.CompletionRate()))
	b.WriteString(m.row("Просрочено", st.OverdueRate()))

	b.WriteString("\n" + theme.TitleStyle.Render("По категориям") + "\n")
	for _, key := range categoryOrder(st.ByCategory) {
		count := st.ByCategory[key]
		if count == 0 {
			continue
		}
		info := model.CategoryInfoFor(key)
		b.WriteString(m.countRow(info.Icon+" "+info.Label, count))
	}

	b.WriteString("\n" + theme.TitleStyle.Render("По приоритету") + "\n")
	for i := len(model.Priorities) - 1; i >= 0; i-- {
		p := model.Priorities[i]
		b.WriteString(m.countRow(p.Icon()+" "+p.Label(), st.ByPriority[p]))
	}

	b.WriteString("\n" + theme.HelpStyle.Render("esc: закрыть"))

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(b.String())
}

func (m Model) row(label string, percent int) string {
	return fmt.Sprintf("%s %s %3d%%\n", pad(label), m.bar.ViewAs(float64(percent)/100), percent)
}

func (m Model) countRow(label string, count int) string {
	share := m.stats.Share(count)
	return fmt.Sprintf("%s %s %3d (%d%%)\n", pad(label), m.bar.ViewAs(float64(share)/100), count, share)
}

func pad(label string) string {
	return lipgloss.NewStyle().Width(labelWidth).Render(label)
}

// categoryOrder lists catalogue keys in display order followed by unknown
// keys sorted by name.
func categoryOrder(counts map[string]int) []string {
	keys := model.CategoryKeys()
	var unknown []string
	for key := range counts {
		if !model.IsKnownCategory(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return append(keys, unknown...)
}
