package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/keys"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/tests/testutil"
)

func TestViewShowsTaskFields(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "Задача не выбрана")

	due := testutil.Epoch.Add(24 * time.Hour)
	task := testutil.Task("t1", "купить хлеб", time.Hour)
	task.Category = "shopping"
	task.Priority = model.PriorityHigh
	task.DueDate = &due

	m.SetTask(task, true)
	view := m.View()
	assert.Contains(t, view, "купить хлеб")
	assert.Contains(t, view, "Покупки")
	assert.Contains(t, view, "Просрочена")
	assert.Contains(t, view, "Срок:")
	assert.Equal(t, "t1", m.TaskID())

	m.Clear()
	assert.Empty(t, m.TaskID())
}

func TestKeysEmitActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetTask(testutil.Task("t1", "x", 0), false)

	tests := []struct {
		key  string
		want tea.Msg
	}{
		{"e", ActionMsg{Action: ActionEdit, TaskID: "t1"}},
		{"x", ActionMsg{Action: ActionToggle, TaskID: "t1"}},
		{"d", ActionMsg{Action: ActionDelete, TaskID: "t1"}},
	}
	for _, tt := range tests {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)})
		require.NotNil(t, cmd, tt.key)
		assert.Equal(t, tt.want, cmd())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}
