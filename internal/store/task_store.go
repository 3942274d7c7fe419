package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nhle/todopro/internal/model"
)

// ReplaceTasks deletes every task of userID and inserts tasks in their
// place, in one transaction. A task without UpdatedAt is stored with its
// CreatedAt.
func (s *SQLiteStore) ReplaceTasks(
	ctx context.Context,
	userID int64,
	tasks []model.Task,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting tasks of user %d: %w", userID, err)
	}

	const query = `
		INSERT OR REPLACE INTO tasks (
			user_id, id, text, completed, category, priority,
			due_date, created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		updatedAt := t.UpdatedAt
		if updatedAt == nil {
			updatedAt = &t.CreatedAt
		}

		_, err = stmt.ExecContext(ctx,
			userID, t.ID, t.Text, boolToInt(t.Completed), t.Category, string(t.Priority),
			utcPtr(t.DueDate), t.CreatedAt.UTC(), utcPtr(updatedAt), utcPtr(t.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetTasks returns every task of userID, newest first.
func (s *SQLiteStore) GetTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, text, completed, category, priority,
			due_date, created_at, updated_at, completed_at
		FROM tasks WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks of user %d: %w", userID, err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var (
			t           model.Task
			completed   int
			priority    string
			dueDate     *time.Time
			updatedAt   *time.Time
			completedAt *time.Time
		)
		err := rows.Scan(
			&t.ID, &t.Text, &completed, &t.Category, &priority,
			&dueDate, &t.CreatedAt, &updatedAt, &completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Completed = completed != 0
		t.Priority = model.Priority(priority)
		t.DueDate = dueDate
		t.UpdatedAt = updatedAt
		t.CompletedAt = completedAt
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}

	// Stored timestamps may carry different offsets, so order on the
	// parsed values.
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
