package taskstore

import (
	"fmt"
	"strings"
)

// Filter selects tasks by status.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
	FilterOverdue   Filter = "overdue"
)

// Filters lists the filters in display order.
var Filters = []Filter{FilterAll, FilterPending, FilterCompleted, FilterOverdue}

// Label returns the display label of the filter.
func (f Filter) Label() string {
	switch f {
	case FilterPending:
		return "Активные"
	case FilterCompleted:
		return "Завершенные"
	case FilterOverdue:
		return "Просроченные"
	default:
		return "Все задачи"
	}
}

// ParseFilter converts a string to a Filter.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", &ValidationError{Field: "filter", Message: fmt.Sprintf("unknown filter %q", s)}
}

// SortMode orders the filtered view.
type SortMode string

const (
	SortDate         SortMode = "date"
	SortPriority     SortMode = "priority"
	SortCategory     SortMode = "category"
	SortAlphabetical SortMode = "alphabetical"
)

// SortModes lists the sort modes in display order.
var SortModes = []SortMode{SortDate, SortPriority, SortCategory, SortAlphabetical}

// Label returns the display label of the sort mode.
func (m SortMode) Label() string {
	switch m {
	case SortPriority:
		return "По приоритету"
	case SortCategory:
		return "По категории"
	case SortAlphabetical:
		return "По алфавиту"
	default:
		return "По дате"
	}
}

// ParseSortMode converts a string to a SortMode.
func ParseSortMode(s string) (SortMode, error) {
	m := SortMode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SortModes {
		if m == known {
			return m, nil
		}
	}
	return "", &ValidationError{Field: "sort", Message: fmt.Sprintf("unknown sort mode %q", s)}
}
