package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/todopro/internal/model"
)

// DBTimeLayout is the date format of task rows returned by tasks/get.
const DBTimeLayout = "2006-01-02 15:04:05"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	DBTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses the date formats seen on the wire: RFC 3339, database
// rows, HTML datetime-local values and bare dates. Zone-less values are
// taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// RemoteTask is a task as it travels over the wire. The server returns
// database rows with snake_case keys while clients send camelCase, so both
// spellings are accepted. Dates stay raw strings until normalized.
type RemoteTask struct {
	ID          string
	Text        string
	Completed   bool
	Category    string
	Priority    string
	DueDate     string
	CreatedAt   string
	UpdatedAt   string
	CompletedAt string
}

// UnmarshalJSON accepts either key spelling and loosely typed values.
func (r *RemoteTask) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding task: %w", err)
	}

	pick := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := raw[k]; ok && string(v) != "null" {
				return v
			}
		}
		return nil
	}

	var err error
	if r.ID, err = looseString(pick("id")); err != nil {
		return fmt.Errorf("decoding task id: %w", err)
	}
	if r.Text, err = looseString(pick("text")); err != nil {
		return fmt.Errorf("decoding task text: %w", err)
	}
	if r.Completed, err = looseBool(pick("completed")); err != nil {
		return fmt.Errorf("decoding task completed: %w", err)
	}
	if r.Category, err = looseString(pick("category")); err != nil {
		return fmt.Errorf("decoding task category: %w", err)
	}
	if r.Priority, err = looseString(pick("priority")); err != nil {
		return fmt.Errorf("decoding task priority: %w", err)
	}
	if r.DueDate, err = looseString(pick("dueDate", "due_date")); err != nil {
		return fmt.Errorf("decoding task due date: %w", err)
	}
	if r.CreatedAt, err = looseString(pick("createdAt", "created_at")); err != nil {
		return fmt.Errorf("decoding task created at: %w", err)
	}
	if r.UpdatedAt, err = looseString(pick("updatedAt", "updated_at")); err != nil {
		return fmt.Errorf("decoding task updated at: %w", err)
	}
	if r.CompletedAt, err = looseString(pick("completedAt", "completed_at")); err != nil {
		return fmt.Errorf("decoding task completed at: %w", err)
	}
	return nil
}

// MarshalJSON writes the camelCase spelling, omitting empty dates.
func (r RemoteTask) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":        r.ID,
		"text":      r.Text,
		"completed": r.Completed,
		"category":  r.Category,
		"priority":  r.Priority,
		"createdAt": r.CreatedAt,
	}
	if r.DueDate != "" {
		out["dueDate"] = r.DueDate
	}
	if r.UpdatedAt != "" {
		out["updatedAt"] = r.UpdatedAt
	}
	if r.CompletedAt != "" {
		out["completedAt"] = r.CompletedAt
	}
	return json.Marshal(out)
}

// FromTask converts a task to its wire form with RFC 3339 dates.
func FromTask(t model.Task) RemoteTask {
	r := RemoteTask{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		Category:  t.Category,
		Priority:  string(t.Priority),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.DueDate != nil {
		r.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if t.UpdatedAt != nil {
		r.UpdatedAt = t.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if t.CompletedAt != nil {
		r.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return r
}

func looseString(v json.RawMessage) (string, error) {
	if v == nil {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string, got %s", string(v))
}

func looseBool(v json.RawMessage) (bool, error) {
	if v == nil {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	s, err := looseString(v)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0, nil
	}
	return false, fmt.Errorf("expected boolean, got %s", string(v))
}
