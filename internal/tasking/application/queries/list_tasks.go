package queries

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// ListTasksQuery lists tasks assigned to a user.
type ListTasksQuery struct {
	UserID   uuid.UUID
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// ListTasksHandler handles the ListTasksQuery.
type ListTasksHandler struct {
	taskRepo task.Repository
}

// NewListTasksHandler creates a new ListTasksHandler.
func NewListTasksHandler(taskRepo task.Repository) *ListTasksHandler {
	return &ListTasksHandler{taskRepo: taskRepo}
}

// Handle executes the ListTasksQuery.
func (h *ListTasksHandler) Handle(ctx context.Context, q ListTasksQuery) ([]TaskDTO, error) {
	tasks, err := h.taskRepo.FindByAssignee(ctx, q.UserID, task.ListFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, err
	}

	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, ToTaskDTO(t, q.UserID))
	}
	return dtos, nil
}
