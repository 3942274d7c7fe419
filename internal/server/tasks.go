package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/model"
)

type saveTasksBody struct {
	Tasks *[]api.RemoteTask `json:"tasks"`
}

// getTasks returns the caller's tasks as database rows: snake_case keys,
// "2006-01-02 15:04:05" UTC dates and completed as 0 or 1.
func (s *Server) getTasks(c *gin.Context) {
	userID := claimsFrom(c).UserID
	tasks, err := s.store.GetTasks(c.Request.Context(), userID)
	if err != nil {
		s.internalError(c, "get tasks", err)
		return
	}

	rows := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, taskRow(userID, t))
	}
	ok(c, gin.H{"tasks": rows})
}

func (s *Server) saveTasks(c *gin.Context) {
	var body saveTasksBody
	if !bindJSON(c, &body) {
		return
	}
	if body.Tasks == nil {
		fail(c, http.StatusBadRequest, "Tasks data required")
		return
	}

	now := s.now()
	tasks := make([]model.Task, 0, len(*body.Tasks))
	for i, r := range *body.Tasks {
		t, err := taskFromWire(r, now)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid task #%d: %v", i+1, err))
			return
		}
		tasks = append(tasks, t)
	}

	userID := claimsFrom(c).UserID
	if err := s.store.ReplaceTasks(c.Request.Context(), userID, tasks); err != nil {
		s.internalError(c, "save tasks", err)
		return
	}
	s.logger.Debugw("tasks saved", "user_id", userID, "tasks", len(tasks))
	ok(c, gin.H{"message": "Tasks saved successfully"})
}

func taskFromWire(r api.RemoteTask, now time.Time) (model.Task, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return model.Task{}, errors.New("missing id")
	}
	text := strings.TrimSpace(r.Text)
	if err := model.ValidateTaskText(text); err != nil {
		return model.Task{}, err
	}

	t := model.Task{
		ID:        id,
		Text:      text,
		Completed: r.Completed,
		Category:  strings.TrimSpace(r.Category),
		Priority:  model.PriorityMedium,
		CreatedAt: now,
	}
	if t.Category == "" {
		t.Category = model.DefaultCategory
	}
	if p, err := model.ParsePriority(r.Priority); err == nil {
		t.Priority = p
	}

	var err error
	if r.CreatedAt != "" {
		if t.CreatedAt, err = api.ParseTime(r.CreatedAt); err != nil {
			return model.Task{}, fmt.Errorf("createdAt: %w", err)
		}
	}
	if t.DueDate, err = optionalTime(r.DueDate); err != nil {
		return model.Task{}, fmt.Errorf("dueDate: %w", err)
	}
	if t.UpdatedAt, err = optionalTime(r.UpdatedAt); err != nil {
		return model.Task{}, fmt.Errorf("updatedAt: %w", err)
	}
	if t.UpdatedAt == nil {
		t.UpdatedAt = model.TimePtr(t.CreatedAt)
	}
	if t.Completed {
		if t.CompletedAt, err = optionalTime(r.CompletedAt); err != nil {
			return model.Task{}, fmt.Errorf("completedAt: %w", err)
		}
	}
	return t, nil
}

func optionalTime(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := api.ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func taskRow(userID int64, t model.Task) gin.H {
	completed := 0
	if t.Completed {
		completed = 1
	}
	return gin.H{
		"id":           t.ID,
		"user_id":      userID,
		"text":         t.Text,
		"completed":    completed,
		"category":     t.Category,
		"priority":     string(t.Priority),
		"due_date":     dbTime(t.DueDate),
		"created_at":   t.CreatedAt.UTC().Format(api.DBTimeLayout),
		"updated_at":   dbTime(t.UpdatedAt),
		"completed_at": dbTime(t.CompletedAt),
	}
}

// dbTime formats an optional time, or returns nil for JSON null.
func dbTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(api.DBTimeLayout)
}
