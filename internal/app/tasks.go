package app

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/ui/taskform"
)

// Store mutations run synchronously on the UI goroutine; the store
// notifies the session manager, which persists them.

func (m *Model) saveForm(msg taskform.SubmitMsg) tea.Cmd {
	if msg.ID == "" {
		_, err := m.tasks.AddTask(taskstore.NewTask{
			Text:     msg.Text,
			Category: msg.Category,
			Priority: msg.Priority,
			DueDate:  msg.DueDate,
		})
		if err != nil {
			return m.taskError(err)
		}
		return tea.Batch(m.taskList.Refresh(), m.notify("Задача добавлена", false))
	}

	patch := taskstore.TaskPatch{
		Text:     &msg.Text,
		Category: &msg.Category,
		Priority: &msg.Priority,
		DueDate:  msg.DueDate,
	}
	if msg.DueDate == nil {
		patch.ClearDueDate = true
	}
	if _, err := m.tasks.UpdateTask(msg.ID, patch); err != nil {
		return m.taskError(err)
	}
	return tea.Batch(m.taskList.Refresh(), m.notify("Задача обновлена", false))
}

func (m *Model) toggleSelected() tea.Cmd {
	task, ok := m.taskList.Selected()
	if !ok {
		return nil
	}
	return m.toggleTask(task.ID)
}

// toggleTask flips the completion of id unless it was toggled within the
// debounce window.
func (m *Model) toggleTask(id string) tea.Cmd {
	if !m.toggles.allow(id, m.now()) {
		return nil
	}
	if _, err := m.tasks.ToggleTask(id); err != nil {
		return m.taskError(err)
	}
	return m.taskList.Refresh()
}

func (m *Model) deleteSelected() tea.Cmd {
	task, ok := m.taskList.Selected()
	if !ok {
		return nil
	}
	return m.deleteTask(task.ID)
}

func (m *Model) deleteTask(id string) tea.Cmd {
	if !m.tasks.DeleteTask(id) {
		return m.taskError(taskstore.ErrNotFound)
	}
	return tea.Batch(m.taskList.Refresh(), m.notify("Задача удалена", false))
}

func (m *Model) duplicateSelected() tea.Cmd {
	task, ok := m.taskList.Selected()
	if !ok {
		return nil
	}
	if _, err := m.tasks.DuplicateTask(task.ID); err != nil {
		return m.taskError(err)
	}
	return tea.Batch(m.taskList.Refresh(), m.notify("Задача скопирована", false))
}

func (m *Model) cycleFilter() tea.Cmd {
	next := nextOf(taskstore.Filters, m.tasks.Filter())
	if err := m.tasks.SetFilter(next); err != nil {
		return m.taskError(err)
	}
	return m.taskList.Refresh()
}

func (m *Model) cycleSort() tea.Cmd {
	next := nextOf(taskstore.SortModes, m.tasks.Sort())
	if err := m.tasks.SetSort(next); err != nil {
		return m.taskError(err)
	}
	return m.taskList.Refresh()
}

func (m *Model) taskError(err error) tea.Cmd {
	var vErr *taskstore.ValidationError
	switch {
	case errors.As(err, &vErr):
		return m.notify(vErr.Message, true)
	case errors.Is(err, taskstore.ErrNotFound):
		return m.notify("Задача не найдена", true)
	}
	return m.notify(fmt.Sprintf("Ошибка: %v", err), true)
}

// nextOf returns the element after cur in values, wrapping around.
func nextOf[T comparable](values []T, cur T) T {
	for i, v := range values {
		if v == cur {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
