package taskstore

import (
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/model"
)

// stepClock returns a time that advances by one minute on every call.
type stepClock struct {
	mu  gosync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := &stepClock{cur: base}
	n := 0
	return New(WithClock(clock.Now), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}))
}

func mustAdd(t *testing.T, s *Store, in NewTask) model.Task {
	t.Helper()
	task, err := s.AddTask(in)
	require.NoError(t, err)
	return task
}

func TestAddTaskDefaults(t *testing.T) {
	s := newTestStore(t)

	task := mustAdd(t, s, NewTask{Text: "  Buy milk  "})

	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "Buy milk", task.Text)
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.UpdatedAt)
	assert.Equal(t, model.DefaultCategory, task.Category)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestAddTaskPrepends(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, NewTask{Text: "A"})
	b := mustAdd(t, s, NewTask{Text: "B"})

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, b.ID, tasks[0].ID)
	assert.Equal(t, a.ID, tasks[1].ID)
}

func TestAddTaskRejectsEmptyText(t *testing.T) {
	s := newTestStore(t)
	fired := 0
	s.OnChange(func(ChangeEvent) { fired++ })

	_, err := s.AddTask(NewTask{Text: "   "})

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, fired)
}

func TestAddTaskRejectsUnknownPriority(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddTask(NewTask{Text: "x", Priority: "urgent"})
	assert.True(t, IsValidationError(err))
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Text: "Draft", Category: "work"})

	text := "Final"
	high := model.PriorityHigh
	due := base.Add(48 * time.Hour)
	updated, err := s.UpdateTask(task.ID, TaskPatch{Text: &text, Priority: &high, DueDate: &due})
	require.NoError(t, err)

	assert.Equal(t, "Final", updated.Text)
	assert.Equal(t, model.PriorityHigh, updated.Priority)
	assert.Equal(t, "work", updated.Category)
	require.NotNil(t, updated.DueDate)
	assert.True(t, due.Equal(*updated.DueDate))
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
	assert.Equal(t, task.ID, updated.ID)

	cleared, err := s.UpdateTask(task.ID, TaskPatch{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestUpdateTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	text := "x"
	_, err := s.UpdateTask("missing", TaskPatch{Text: &text})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskRejectsEmptyText(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Text: "keep"})
	empty := " "

	_, err := s.UpdateTask(task.ID, TaskPatch{Text: &empty})

	assert.True(t, IsValidationError(err))
	got, _ := s.Get(task.ID)
	assert.Equal(t, "keep", got.Text)
	assert.Nil(t, got.UpdatedAt)
}

func TestToggleTaskIsInvolution(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Text: "A"})

	on, err := s.ToggleTask(task.ID)
	require.NoError(t, err)
	assert.True(t, on.Completed)
	assert.NotNil(t, on.CompletedAt)
	assert.NotNil(t, on.UpdatedAt)

	off, err := s.ToggleTask(task.ID)
	require.NoError(t, err)
	assert.False(t, off.Completed)
	assert.Nil(t, off.CompletedAt)

	for i := 0; i < 7; i++ {
		_, err := s.ToggleTask(task.ID)
		require.NoError(t, err)
		got, _ := s.Get(task.ID)
		assert.Equal(t, got.Completed, got.CompletedAt != nil)
	}
}

func TestToggleTaskConcurrentCallsEachApply(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Text: "A"})

	var wg gosync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ToggleTask(task.ID)
		}()
	}
	wg.Wait()

	got, _ := s.Get(task.ID)
	assert.False(t, got.Completed, "an even number of toggles restores the state")
	assert.Nil(t, got.CompletedAt)
}

func TestToggleTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ToggleTask("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, NewTask{Text: "A"})
	mustAdd(t, s, NewTask{Text: "B"})

	assert.True(t, s.DeleteTask(a.ID))
	assert.False(t, s.DeleteTask(a.ID))
	assert.Equal(t, 1, s.Len())
}

func TestDuplicateTask(t *testing.T) {
	s := newTestStore(t)
	due := base.Add(-time.Hour)
	orig := mustAdd(t, s, NewTask{Text: "Report", Category: "work", Priority: model.PriorityHigh, DueDate: &due})
	_, err := s.ToggleTask(orig.ID)
	require.NoError(t, err)

	dup, err := s.DuplicateTask(orig.ID)
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID, dup.ID)
	assert.Equal(t, "Report (копия)", dup.Text)
	assert.False(t, dup.Completed)
	assert.Nil(t, dup.CompletedAt)
	assert.Nil(t, dup.UpdatedAt)
	assert.Equal(t, "work", dup.Category)
	assert.Equal(t, model.PriorityHigh, dup.Priority)
	require.NotNil(t, dup.DueDate)
	assert.True(t, dup.CreatedAt.After(orig.CreatedAt))
	assert.Equal(t, dup.ID, s.Tasks()[0].ID)

	require.True(t, s.DeleteTask(dup.ID))
	got, ok := s.Get(orig.ID)
	require.True(t, ok)
	assert.Equal(t, "Report", got.Text)
	assert.True(t, got.Completed)
}

func TestDuplicateTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DuplicateTask("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetTasksTrustsIncomingData(t *testing.T) {
	s := newTestStore(t)
	updated := base.Add(-time.Hour)
	in := []model.Task{
		{ID: "x", Text: "X", Category: "home", Priority: model.PriorityLow, CreatedAt: base.Add(-2 * time.Hour), UpdatedAt: &updated},
	}

	var events []ChangeEvent
	s.OnChange(func(ev ChangeEvent) { events = append(events, ev) })
	s.SetTasks(in)

	got, ok := s.Get("x")
	require.True(t, ok)
	assert.Equal(t, in[0].CreatedAt, got.CreatedAt)
	assert.Equal(t, updated, *got.UpdatedAt)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonHydrate, events[0].Reason)

	in[0].Text = "mutated by caller"
	got, _ = s.Get("x")
	assert.Equal(t, "X", got.Text)
}

func TestClearCompleted(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, NewTask{Text: "A"})
	b := mustAdd(t, s, NewTask{Text: "B"})
	mustAdd(t, s, NewTask{Text: "C"})
	_, _ = s.ToggleTask(a.ID)
	_, _ = s.ToggleTask(b.ID)

	assert.Equal(t, 2, s.ClearCompleted())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.ClearCompleted())
}

func TestMarkAllCompletedOnlyAffectsFilteredView(t *testing.T) {
	s := newTestStore(t)
	milk := mustAdd(t, s, NewTask{Text: "Buy milk"})
	bread := mustAdd(t, s, NewTask{Text: "Buy bread"})
	taxes := mustAdd(t, s, NewTask{Text: "File taxes"})

	s.SetSearchQuery("buy")
	assert.Equal(t, 2, s.MarkAllCompleted())

	for _, id := range []string{milk.ID, bread.ID} {
		got, _ := s.Get(id)
		assert.True(t, got.Completed)
		assert.NotNil(t, got.CompletedAt)
		assert.NotNil(t, got.UpdatedAt)
	}
	got, _ := s.Get(taxes.ID)
	assert.False(t, got.Completed)

	assert.Equal(t, 0, s.MarkAllCompleted())
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, NewTask{Text: "A"})
	mustAdd(t, s, NewTask{Text: "B"})
	assert.Equal(t, 2, s.DeleteAll())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.DeleteAll())
}

func TestResetClearsViewState(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, NewTask{Text: "A"})
	require.NoError(t, s.SetFilter(FilterCompleted))
	require.NoError(t, s.SetSort(SortPriority))
	s.SetSearchQuery("a")

	var reasons []Reason
	s.OnChange(func(ev ChangeEvent) { reasons = append(reasons, ev.Reason) })
	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, FilterAll, s.Filter())
	assert.Equal(t, SortDate, s.Sort())
	assert.Equal(t, "", s.SearchQuery())
	assert.Equal(t, []Reason{ReasonReset}, reasons)
}

func TestSettersRejectUnknownModes(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, IsValidationError(s.SetFilter("archived")))
	assert.True(t, IsValidationError(s.SetSort("random")))
	assert.Equal(t, FilterAll, s.Filter())
	assert.Equal(t, SortDate, s.Sort())
}

func TestOnChangeReceivesSnapshotsAndUnsubscribes(t *testing.T) {
	s := newTestStore(t)

	var events []ChangeEvent
	unsubscribe := s.OnChange(func(ev ChangeEvent) { events = append(events, ev) })

	a := mustAdd(t, s, NewTask{Text: "A"})
	_, _ = s.ToggleTask(a.ID)

	require.Len(t, events, 2)
	assert.Equal(t, "add", events[0].Op)
	assert.Equal(t, ReasonMutation, events[0].Reason)
	assert.False(t, events[0].Tasks[0].Completed, "earlier snapshot is not affected by later mutations")
	assert.Equal(t, "toggle", events[1].Op)
	assert.True(t, events[1].Tasks[0].Completed)

	unsubscribe()
	s.DeleteTask(a.ID)
	assert.Len(t, events, 2)
}

func TestListenerMayReadStore(t *testing.T) {
	s := newTestStore(t)
	var seen int
	s.OnChange(func(ChangeEvent) { seen = s.Len() })
	mustAdd(t, s, NewTask{Text: "A"})
	assert.Equal(t, 1, seen)
}

func TestDeleteAllEmitsEmptySnapshot(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, NewTask{Text: "A"})
	var last ChangeEvent
	s.OnChange(func(ev ChangeEvent) { last = ev })
	s.DeleteAll()
	assert.NotNil(t, last.Tasks)
	assert.Empty(t, last.Tasks)
}

func TestListenersSeeChangesInApplyOrder(t *testing.T) {
	s := newTestStore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu   gosync.Mutex
		last []model.Task
	)
	s.OnChange(func(ev ChangeEvent) {
		if ev.Op == "add" {
			close(entered)
			<-release
		}
		mu.Lock()
		last = ev.Tasks
		mu.Unlock()
	})

	added := make(chan struct{})
	go func() {
		defer close(added)
		_, err := s.AddTask(NewTask{Text: "local edit"})
		assert.NoError(t, err)
	}()
	<-entered

	// Applied after the add while its event is still being delivered.
	s.SetTasks([]model.Task{{ID: "r", Text: "remote", Category: model.DefaultCategory,
		Priority: model.PriorityMedium, CreatedAt: base}})

	close(release)
	<-added

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, s.Tasks(), last)
	assert.Equal(t, "remote", last[0].Text)
}

func TestListenerMayMutateStore(t *testing.T) {
	s := newTestStore(t)

	var ops []string
	s.OnChange(func(ev ChangeEvent) {
		ops = append(ops, ev.Op)
		if ev.Op == "add" {
			s.ClearCompleted()
			s.DeleteAll()
		}
	})

	mustAdd(t, s, NewTask{Text: "A"})
	assert.Equal(t, []string{"add", "delete_all"}, ops)
	assert.Zero(t, s.Len())
}
