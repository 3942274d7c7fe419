// Package taskstore holds the in-memory task collection of the current
// session together with its filter, sort and search state.
package taskstore

import (
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/todopro/internal/model"
)

// Reason tells listeners why the collection changed.
type Reason int

const (
	// ReasonMutation is a user edit that should be persisted remotely.
	ReasonMutation Reason = iota
	// ReasonHydrate is a wholesale replace with data loaded from storage.
	ReasonHydrate
	// ReasonReset is the collection being discarded on logout.
	ReasonReset
)

func (r Reason) String() string {
	switch r {
	case ReasonHydrate:
		return "hydrate"
	case ReasonReset:
		return "reset"
	default:
		return "mutation"
	}
}

// ChangeEvent is delivered to listeners after every collection change.
type ChangeEvent struct {
	Reason Reason
	// Op names the operation that caused the change (e.g. "add", "toggle").
	Op string
	// Tasks is a snapshot of the whole collection after the change.
	Tasks []model.Task
}

// NewTask holds the fields supplied when creating a task.
type NewTask struct {
	Text     string
	Category string
	Priority model.Priority
	DueDate  *time.Time
}

// TaskPatch lists the fields an update may change. Nil fields are left as
// they are. ClearDueDate removes the deadline.
type TaskPatch struct {
	Text         *string
	Category     *string
	Priority     *model.Priority
	DueDate      *time.Time
	ClearDueDate bool
}

type listener struct {
	id int
	fn func(ChangeEvent)
}

// Store owns the task collection. All methods are safe for concurrent use.
// Listeners are called after the store lock has been released, one event
// at a time and in the order the changes were applied.
type Store struct {
	mu        gosync.RWMutex
	tasks     []model.Task
	filter    Filter
	sort      SortMode
	query     string
	listeners []listener
	nextID    int

	// pending events not yet delivered; dispatching is set while one
	// goroutine drains them.
	pending     []changeDispatch
	dispatching bool

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how task ids are assigned.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates an empty store with the "all" filter and date sort.
func New(opts ...Option) *Store {
	s := &Store{
		filter: FilterAll,
		sort:   SortDate,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called after every collection change and
// returns a function that removes it.
func (s *Store) OnChange(fn func(ChangeEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddTask creates a task and prepends it to the collection.
func (s *Store) AddTask(in NewTask) (model.Task, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Task{}, &ValidationError{Field: "text", Message: "task text is required"}
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return model.Task{}, &ValidationError{Field: "priority", Message: "unknown priority " + string(priority)}
	}
	category := in.Category
	if category == "" {
		category = model.DefaultCategory
	}

	s.mu.Lock()
	task := model.Task{
		ID:        s.newID(),
		Text:      text,
		Category:  category,
		Priority:  priority,
		DueDate:   model.CloneTime(in.DueDate),
		CreatedAt: s.now(),
	}
	s.tasks = append([]model.Task{task}, s.tasks...)
	s.queueLocked(ReasonMutation, "add")
	s.mu.Unlock()

	s.dispatch()
	return task.Clone(), nil
}

// UpdateTask merges patch into the task with the given id and stamps
// UpdatedAt. Only text, category, priority and due date can change.
func (s *Store) UpdateTask(id string, patch TaskPatch) (model.Task, error) {
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		return model.Task{}, &ValidationError{Field: "text", Message: "task text is required"}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return model.Task{}, &ValidationError{Field: "priority", Message: "unknown priority " + string(*patch.Priority)}
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}

	t := &s.tasks[i]
	if patch.Text != nil {
		t.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.Category != nil {
		t.Category = *patch.Category
		if t.Category == "" {
			t.Category = model.DefaultCategory
		}
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	switch {
	case patch.ClearDueDate:
		t.DueDate = nil
	case patch.DueDate != nil:
		t.DueDate = model.CloneTime(patch.DueDate)
	}
	t.UpdatedAt = model.TimePtr(s.now())

	updated := t.Clone()
	s.queueLocked(ReasonMutation, "update")
	s.mu.Unlock()

	s.dispatch()
	return updated, nil
}

// ToggleTask flips the completion state of a task. Each call applies
// exactly one flip.
func (s *Store) ToggleTask(id string) (model.Task, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}

	now := s.now()
	t := &s.tasks[i]
	t.Completed = !t.Completed
	if t.Completed {
		t.CompletedAt = model.TimePtr(now)
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = model.TimePtr(now)

	toggled := t.Clone()
	s.queueLocked(ReasonMutation, "toggle")
	s.mu.Unlock()

	s.dispatch()
	return toggled, nil
}

// DeleteTask removes a task. It reports false, and changes nothing, when
// the id is absent.
func (s *Store) DeleteTask(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.queueLocked(ReasonMutation, "delete")
	s.mu.Unlock()

	s.dispatch()
	return true
}

// DuplicateTask prepends a pending copy of the task with a fresh id and
// creation time and a marked text.
func (s *Store) DuplicateTask(id string) (model.Task, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}

	dup := s.tasks[i].Clone()
	dup.ID = s.newID()
	dup.Text += model.DuplicateSuffix
	dup.Completed = false
	dup.CompletedAt = nil
	dup.CreatedAt = s.now()
	dup.UpdatedAt = nil

	s.tasks = append([]model.Task{dup}, s.tasks...)
	s.queueLocked(ReasonMutation, "duplicate")
	s.mu.Unlock()

	s.dispatch()
	return dup.Clone(), nil
}

// SetTasks replaces the whole collection with data loaded from storage.
// Timestamps are taken as given.
func (s *Store) SetTasks(tasks []model.Task) {
	s.mu.Lock()
	s.tasks = cloneTasks(tasks)
	s.queueLocked(ReasonHydrate, "set")
	s.mu.Unlock()

	s.dispatch()
}

// ReplaceTasks replaces the whole collection as a user action, for example
// an import. Unlike SetTasks the change is treated as a mutation.
func (s *Store) ReplaceTasks(tasks []model.Task) {
	s.mu.Lock()
	s.tasks = cloneTasks(tasks)
	s.queueLocked(ReasonMutation, "replace")
	s.mu.Unlock()

	s.dispatch()
}

// ClearCompleted removes every completed task and returns how many were
// removed.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(s.tasks) - len(kept)
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	s.tasks = kept
	s.queueLocked(ReasonMutation, "clear_completed")
	s.mu.Unlock()

	s.dispatch()
	return removed
}

// MarkAllCompleted completes every pending task in the current filtered
// view and returns how many changed.
func (s *Store) MarkAllCompleted() int {
	s.mu.Lock()
	now := s.now()
	visible := make(map[string]bool)
	for _, t := range s.filteredLocked(now) {
		if !t.Completed {
			visible[t.ID] = true
		}
	}
	if len(visible) == 0 {
		s.mu.Unlock()
		return 0
	}
	for i := range s.tasks {
		if visible[s.tasks[i].ID] {
			s.tasks[i].Completed = true
			s.tasks[i].CompletedAt = model.TimePtr(now)
			s.tasks[i].UpdatedAt = model.TimePtr(now)
		}
	}
	s.queueLocked(ReasonMutation, "complete_all")
	s.mu.Unlock()

	s.dispatch()
	return len(visible)
}

// DeleteAll removes every task and returns how many were removed.
func (s *Store) DeleteAll() int {
	s.mu.Lock()
	n := len(s.tasks)
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	s.tasks = nil
	s.queueLocked(ReasonMutation, "delete_all")
	s.mu.Unlock()

	s.dispatch()
	return n
}

// Reset discards the collection and view state, as on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tasks = nil
	s.filter = FilterAll
	s.sort = SortDate
	s.query = ""
	s.queueLocked(ReasonReset, "reset")
	s.mu.Unlock()

	s.dispatch()
}

// SetFilter sets the status filter used by FilteredTasks.
func (s *Store) SetFilter(f Filter) error {
	if _, err := ParseFilter(string(f)); err != nil {
		return err
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return nil
}

// SetSort sets the order used by FilteredTasks.
func (s *Store) SetSort(m SortMode) error {
	if _, err := ParseSortMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	s.sort = m
	s.mu.Unlock()
	return nil
}

// SetSearchQuery sets the case-insensitive text search.
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

func (s *Store) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Store) Sort() SortMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sort
}

func (s *Store) SearchQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Tasks returns a copy of the collection, most recently added first.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

// Len returns the number of tasks in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) queueLocked(reason Reason, op string) {
	fns := make([]func(ChangeEvent), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.pending = append(s.pending, changeDispatch{
		event: ChangeEvent{Reason: reason, Op: op, Tasks: cloneTasks(s.tasks)},
		fns:   fns,
	})
}

type changeDispatch struct {
	event ChangeEvent
	fns   []func(ChangeEvent)
}

// dispatch delivers queued events in order. When another goroutine (or an
// outer listener on this one) is already draining the queue, the events
// queued here are left for it.
func (s *Store) dispatch() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.pending) > 0 {
		d := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.deliver(d)

		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

func (s *Store) deliver(d changeDispatch) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.dispatching = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	for _, fn := range d.fns {
		fn(d.event)
	}
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
