package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTaskTextLength is the longest task text accepted at the edit boundary.
const MaxTaskTextLength = 200

// DuplicateSuffix is appended to the text of a duplicated task.
const DuplicateSuffix = " (копия)"

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists all priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Level returns the numeric level used for sorting: low=1, medium=2, high=3.
// Unknown priorities rank as medium.
func (p Priority) Level() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	default:
		return 2
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Label returns the display label of the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Низкий"
	case PriorityHigh:
		return "Высокий"
	default:
		return "Средний"
	}
}

// Icon returns the display marker of the priority.
func (p Priority) Icon() string {
	switch p {
	case PriorityLow:
		return "🟢"
	case PriorityHigh:
		return "🔴"
	default:
		return "🟡"
	}
}

// ParsePriority converts a string to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Task is a single unit of work owned by a user.
type Task struct {
	// ID is assigned at creation and never changes.
	ID string `json:"id"`

	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Category  string   `json:"category"`
	Priority  Priority `json:"priority"`

	// DueDate is nil when the task has no deadline.
	DueDate *time.Time `json:"dueDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is stamped on every mutation after creation.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	// CompletedAt is set iff Completed is true.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	c.DueDate = CloneTime(t.DueDate)
	c.UpdatedAt = CloneTime(t.UpdatedAt)
	c.CompletedAt = CloneTime(t.CompletedAt)
	return c
}

// IsOverdueAt reports whether the task has a due date strictly before now
// and is still pending.
func (t Task) IsOverdueAt(now time.Time) bool {
	if t.DueDate == nil || t.Completed {
		return false
	}
	return t.DueDate.Before(now)
}

// CategoryInfo returns the display entry for the task's category.
func (t Task) CategoryInfo() CategoryInfo {
	return CategoryInfoFor(t.Category)
}

// ValidateTaskText checks the text of a task being created or edited.
func ValidateTaskText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("task text is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxTaskTextLength {
		return fmt.Errorf("task text must be at most %d characters", MaxTaskTextLength)
	}
	return nil
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// CloneTime returns a pointer to a copy of *t, or nil.
func CloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
