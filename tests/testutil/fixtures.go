package testutil

import (
	"time"

	"github.com/nhle/todopro/internal/model"
)

// Epoch is a fixed instant tests build their timestamps from.
var Epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// Task returns a pending medium-priority task created age before Epoch.
func Task(id, text string, age time.Duration) model.Task {
	return model.Task{
		ID:        id,
		Text:      text,
		Category:  model.DefaultCategory,
		Priority:  model.PriorityMedium,
		CreatedAt: Epoch.Add(-age),
	}
}
