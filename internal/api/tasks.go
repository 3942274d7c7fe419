package api

import (
	"context"

	"github.com/nhle/todopro/internal/model"
)

// Task endpoint paths.
const (
	PathTasksGet  = "/api/tasks/get"
	PathTasksSave = "/api/tasks/save"
)

type TasksResponse struct {
	Tasks []RemoteTask `json:"tasks"`
}

type SaveTasksRequest struct {
	Tasks []RemoteTask `json:"tasks"`
}

// GetTasks fetches the full collection of the user that owns bearer.
func (c *Client) GetTasks(ctx context.Context, bearer string) ([]RemoteTask, error) {
	var resp TasksResponse
	if err := c.post(ctx, PathTasksGet, bearer, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// SaveTasks replaces the whole stored collection with tasks.
func (c *Client) SaveTasks(ctx context.Context, bearer string, tasks []model.Task) error {
	req := SaveTasksRequest{Tasks: make([]RemoteTask, len(tasks))}
	for i, t := range tasks {
		req.Tasks[i] = FromTask(t)
	}
	return c.post(ctx, PathTasksSave, bearer, req, nil)
}
