package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/model"
)

// NormalizeTasks turns wire tasks into store tasks. Missing creation and
// update times become now; optional dates stay absent when missing or
// unparseable. Unknown priorities fall back to medium and an empty
// category to general. Later duplicates of an id are dropped.
func NormalizeTasks(remote []api.RemoteTask, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		t := normalizeTask(r, now)
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func normalizeTask(r api.RemoteTask, now time.Time) model.Task {
	t := model.Task{
		ID:        strings.TrimSpace(r.ID),
		Text:      r.Text,
		Completed: r.Completed,
		Category:  strings.TrimSpace(r.Category),
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Category == "" {
		t.Category = model.DefaultCategory
	}

	priority, err := model.ParsePriority(r.Priority)
	if err != nil {
		priority = model.PriorityMedium
	}
	t.Priority = priority

	t.CreatedAt = parseOr(r.CreatedAt, now)
	t.UpdatedAt = model.TimePtr(parseOr(r.UpdatedAt, now))
	t.DueDate = parseOptional(r.DueDate)

	if t.Completed {
		t.CompletedAt = parseOptional(r.CompletedAt)
		if t.CompletedAt == nil {
			t.CompletedAt = model.TimePtr(*t.UpdatedAt)
		}
	}

	return t
}

func parseOr(s string, fallback time.Time) time.Time {
	if t := parseOptional(s); t != nil {
		return *t
	}
	return fallback
}

func parseOptional(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := api.ParseTime(s)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}
