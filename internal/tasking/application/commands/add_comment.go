package commands

import (
	"context"

	"github.com/google/uuid"

	sharedApplication "github.com/felixgeelhaar/taskpulse/internal/shared/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// AddCommentCommand attaches a comment to a task.
type AddCommentCommand struct {
	UserID uuid.UUID
	TaskID uuid.UUID
	Body   string
}

// AddCommentResult contains the created comment ID.
type AddCommentResult struct {
	CommentID uuid.UUID
}

// AddCommentHandler handles the AddCommentCommand.
type AddCommentHandler struct {
	taskRepo   task.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewAddCommentHandler creates a new AddCommentHandler.
func NewAddCommentHandler(taskRepo task.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *AddCommentHandler {
	return &AddCommentHandler{
		taskRepo:   taskRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle executes the AddCommentCommand.
func (h *AddCommentHandler) Handle(ctx context.Context, cmd AddCommentCommand) (*AddCommentResult, error) {
	var result *AddCommentResult
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		t, err := h.taskRepo.FindByID(txCtx, cmd.TaskID)
		if err != nil {
			return err
		}

		comment, err := t.AddComment(cmd.UserID, cmd.Body)
		if err != nil {
			return err
		}

		if err := h.taskRepo.Save(txCtx, t); err != nil {
			return err
		}
		if err := stageEvents(txCtx, h.outboxRepo, t.DomainEvents(), cmd.UserID); err != nil {
			return err
		}

		result = &AddCommentResult{CommentID: comment.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
