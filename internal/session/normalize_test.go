package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/tests/testutil"
)

func TestNormalizeServerRows(t *testing.T) {
	body := `[
		{"id":"1","text":"a","completed":1,"category":"work","priority":"high",
		 "due_date":"2025-03-12 09:00:00","created_at":"2025-03-01 10:00:00",
		 "updated_at":"2025-03-02 11:00:00"},
		{"id":2,"text":"b","completed":"0","category":"","priority":"urgent",
		 "completedAt":"2025-03-05T00:00:00Z"}
	]`
	var remote []api.RemoteTask
	require.NoError(t, json.Unmarshal([]byte(body), &remote))

	tasks := NormalizeTasks(remote, testutil.Epoch)
	require.Len(t, tasks, 2)

	a := tasks[0]
	assert.True(t, a.Completed)
	assert.Equal(t, model.PriorityHigh, a.Priority)
	assert.Equal(t, "work", a.Category)
	require.NotNil(t, a.DueDate)
	assert.Equal(t, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), *a.DueDate)
	require.NotNil(t, a.CompletedAt, "completed tasks get a completion time")
	assert.Equal(t, *a.UpdatedAt, *a.CompletedAt)

	b := tasks[1]
	assert.Equal(t, "2", b.ID)
	assert.False(t, b.Completed)
	assert.Nil(t, b.CompletedAt, "pending tasks carry no completion time")
	assert.Equal(t, model.DefaultCategory, b.Category)
	assert.Equal(t, model.PriorityMedium, b.Priority)
	assert.Equal(t, testutil.Epoch, b.CreatedAt)
	require.NotNil(t, b.UpdatedAt)
	assert.Equal(t, testutil.Epoch, *b.UpdatedAt)
	assert.Nil(t, b.DueDate)
}

func TestNormalizeDropsDuplicateIDs(t *testing.T) {
	tasks := NormalizeTasks([]api.RemoteTask{
		{ID: "x", Text: "first"},
		{ID: "x", Text: "second"},
		{Text: "no id"},
	}, testutil.Epoch)

	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Text)
	assert.NotEmpty(t, tasks[1].ID)
}

func TestNormalizeBadDatesAreIgnored(t *testing.T) {
	tasks := NormalizeTasks([]api.RemoteTask{
		{ID: "x", Text: "t", DueDate: "someday", CreatedAt: "yesterday"},
	}, testutil.Epoch)

	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].DueDate)
	assert.Equal(t, testutil.Epoch, tasks[0].CreatedAt)
}
