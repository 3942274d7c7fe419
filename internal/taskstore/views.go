package taskstore

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nhle/todopro/internal/model"
)

// IsOverdue reports whether task has a due date strictly before now and is
// not completed.
func IsOverdue(task model.Task, now time.Time) bool {
	return task.IsOverdueAt(now)
}

// IsOverdue evaluates IsOverdue against the store clock at call time.
func (s *Store) IsOverdue(task model.Task) bool {
	return IsOverdue(task, s.now())
}

// FilteredTasks applies the search query, then the status filter, then the
// sort mode to the collection. Ties keep the most recently created task
// first, then insertion order.
func (s *Store) FilteredTasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.filteredLocked(s.now()))
}

func (s *Store) filteredLocked(now time.Time) []model.Task {
	query := strings.ToLower(s.query)

	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if query != "" && !strings.Contains(strings.ToLower(t.Text), query) {
			continue
		}
		if !matchesFilter(t, s.filter, now) {
			continue
		}
		out = append(out, t)
	}

	sortTasks(out, s.sort)
	return out
}

func matchesFilter(t model.Task, f Filter, now time.Time) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	case FilterOverdue:
		return IsOverdue(t, now)
	default:
		return true
	}
}

func sortTasks(tasks []model.Task, mode SortMode) {
	newerFirst := func(a, b model.Task) bool { return a.CreatedAt.After(b.CreatedAt) }

	switch mode {
	case SortPriority:
		sort.SliceStable(tasks, func(i, j int) bool {
			li, lj := tasks[i].Priority.Level(), tasks[j].Priority.Level()
			if li != lj {
				return li > lj
			}
			return newerFirst(tasks[i], tasks[j])
		})
	case SortCategory:
		col := collate.New(language.Russian)
		sort.SliceStable(tasks, func(i, j int) bool {
			if c := col.CompareString(tasks[i].Category, tasks[j].Category); c != 0 {
				return c < 0
			}
			return newerFirst(tasks[i], tasks[j])
		})
	case SortAlphabetical:
		col := collate.New(language.Russian, collate.IgnoreCase)
		sort.SliceStable(tasks, func(i, j int) bool {
			if c := col.CompareString(tasks[i].Text, tasks[j].Text); c != 0 {
				return c < 0
			}
			return newerFirst(tasks[i], tasks[j])
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			return newerFirst(tasks[i], tasks[j])
		})
	}
}

// Stats summarizes the whole collection, ignoring filter and search.
type Stats struct {
	Total     int
	Completed int
	Pending   int
	Overdue   int

	// ByCategory has every catalogue key, plus any unknown key in use.
	ByCategory map[string]int
	ByPriority map[model.Priority]int
}

// Stats computes the summary in a single pass.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStats(s.tasks, s.now())
}

func computeStats(tasks []model.Task, now time.Time) Stats {
	st := Stats{
		ByCategory: make(map[string]int, len(model.Categories)),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
	}
	for _, key := range model.CategoryKeys() {
		st.ByCategory[key] = 0
	}
	for _, p := range model.Priorities {
		st.ByPriority[p] = 0
	}

	for _, t := range tasks {
		st.Total++
		if t.Completed {
			st.Completed++
		} else {
			st.Pending++
		}
		if IsOverdue(t, now) {
			st.Overdue++
		}
		st.ByCategory[t.Category]++
		st.ByPriority[t.Priority]++
	}
	return st
}

// Share returns count as a rounded percentage of Total, or 0 when the
// collection is empty.
func (st Stats) Share(count int) int {
	if st.Total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(st.Total) * 100))
}

// CompletionRate is the rounded percentage of completed tasks.
func (st Stats) CompletionRate() int {
	return st.Share(st.Completed)
}

// OverdueRate is the rounded percentage of overdue tasks.
func (st Stats) OverdueRate() int {
	return st.Share(st.Overdue)
}
