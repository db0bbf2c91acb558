package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// MarkTaskReadCommand records that a user has seen a task.
type MarkTaskReadCommand struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

// MarkTaskReadHandler persists read markers. Marking twice is a no-op and
// keeps the original timestamp.
type MarkTaskReadHandler struct {
	taskRepo task.Repository
}

// NewMarkTaskReadHandler creates a new MarkTaskReadHandler.
func NewMarkTaskReadHandler(taskRepo task.Repository) *MarkTaskReadHandler {
	return &MarkTaskReadHandler{taskRepo: taskRepo}
}

// Handle executes the MarkTaskReadCommand. Returns task.ErrNotFound if the
// task does not exist.
func (h *MarkTaskReadHandler) Handle(ctx context.Context, cmd MarkTaskReadCommand) error {
	if _, err := h.taskRepo.FindByID(ctx, cmd.TaskID); err != nil {
		return err
	}
	return h.taskRepo.MarkRead(ctx, cmd.TaskID, cmd.UserID, time.Now().UTC())
}
