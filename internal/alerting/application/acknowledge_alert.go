package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/alerting/domain"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// AcknowledgeAlertCommand marks an alert seen for a user.
type AcknowledgeAlertCommand struct {
	UserID  uuid.UUID
	AlertID string
}

// AcknowledgeAlertResult reports what the acknowledgment did.
type AcknowledgeAlertResult struct {
	// Persisted is true when a read marker was written.
	Persisted bool
	Message   string
}

// AcknowledgeAlertHandler handles alert acknowledgments. Only
// new-assignment alerts carry persisted read state; acknowledging any other
// kind, an unknown task, or a malformed ID is accepted as a no-op.
type AcknowledgeAlertHandler struct {
	taskRepo task.Repository
}

// NewAcknowledgeAlertHandler creates a new AcknowledgeAlertHandler.
func NewAcknowledgeAlertHandler(taskRepo task.Repository) *AcknowledgeAlertHandler {
	return &AcknowledgeAlertHandler{taskRepo: taskRepo}
}

// Handle executes the AcknowledgeAlertCommand.
func (h *AcknowledgeAlertHandler) Handle(ctx context.Context, cmd AcknowledgeAlertCommand) (*AcknowledgeAlertResult, error) {
	kind, taskID, err := domain.ParseAlertID(cmd.AlertID)
	if err != nil {
		return &AcknowledgeAlertResult{Message: "alert acknowledged"}, nil
	}

	if kind != domain.KindNewAssignment {
		return &AcknowledgeAlertResult{Message: "alert acknowledged"}, nil
	}

	if _, err := h.taskRepo.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return &AcknowledgeAlertResult{Message: "alert acknowledged"}, nil
		}
		return nil, err
	}

	// Duplicate marks keep the first timestamp, so concurrent
	// acknowledgments converge on a single entry.
	if err := h.taskRepo.MarkRead(ctx, taskID, cmd.UserID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &AcknowledgeAlertResult{Persisted: true, Message: "alert marked as read"}, nil
}
