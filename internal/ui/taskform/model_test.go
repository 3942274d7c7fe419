package taskform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/model"
)

func TestParseDue(t *testing.T) {
	due, err := parseDue("", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, due)

	due, err = parseDue("15.03.2025", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC), *due)

	due, err = parseDue(" 2025-03-15 ", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 15, due.Day())

	_, err = parseDue("15/03/2025", time.UTC)
	assert.Error(t, err)
}

func TestStartEditFillsBindings(t *testing.T) {
	m := New(80, 24)
	m.location = time.UTC
	due := time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)

	m.StartEdit(model.Task{ID: "t1", Text: "сдать отчет", Category: "work", Priority: model.PriorityHigh, DueDate: &due})
	assert.True(t, m.Editing())
	assert.Equal(t, "сдать отчет", m.fb.text)
	assert.Equal(t, "15.03.2025", m.fb.dueDate)

	msg := m.submit()().(SubmitMsg)
	assert.Equal(t, "t1", msg.ID)
	assert.Equal(t, model.PriorityHigh, msg.Priority)
	require.NotNil(t, msg.DueDate)
	assert.True(t, msg.DueDate.Equal(due))
}

func TestStartCreateResets(t *testing.T) {
	m := New(80, 24)
	m.StartEdit(model.Task{ID: "t1", Text: "old", Category: "work", Priority: model.PriorityLow})
	m.StartCreate()

	assert.False(t, m.Editing())
	msg := m.submit()().(SubmitMsg)
	assert.Empty(t, msg.Text)
	assert.Equal(t, model.DefaultCategory, msg.Category)
	assert.Equal(t, model.PriorityMedium, msg.Priority)
	assert.Nil(t, msg.DueDate)
}
