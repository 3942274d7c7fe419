package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/ui/command"
)

// executeCommand runs a command bar entry.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case "filter", "f":
		f, err := taskstore.ParseFilter(c.Arg)
		if err != nil {
			return m.notify("Фильтры: all, pending, completed, overdue", true)
		}
		_ = m.tasks.SetFilter(f)
		return m.taskList.Refresh()

	case "sort", "s":
		mode, err := taskstore.ParseSortMode(c.Arg)
		if err != nil {
			return m.notify("Сортировка: date, priority, category, alphabetical", true)
		}
		_ = m.tasks.SetSort(mode)
		return m.taskList.Refresh()

	case "search", "find":
		m.tasks.SetSearchQuery(c.Arg)
		return m.taskList.Refresh()

	case "clear-completed":
		n := m.tasks.ClearCompleted()
		return tea.Batch(m.taskList.Refresh(), m.notify(fmt.Sprintf("Удалено выполненных задач: %d", n), false))

	case "complete-all":
		n := m.tasks.MarkAllCompleted()
		return tea.Batch(m.taskList.Refresh(), m.notify(fmt.Sprintf("Отмечено выполненными: %d", n), false))

	case "delete-all":
		n := m.tasks.DeleteAll()
		return tea.Batch(m.taskList.Refresh(), m.notify(fmt.Sprintf("Удалено задач: %d", n), false))

	case "stats":
		m.openStats()
		return nil

	case "help":
		m.open(ViewHelp)
		return nil

	case "account":
		return m.openAccount()

	case "refresh", "sync":
		return m.hydrate()

	case "logout":
		return m.logout()

	case "quit", "q":
		return tea.Quit
	}

	return m.notify(fmt.Sprintf("Неизвестная команда: %s", c.Name), true)
}
