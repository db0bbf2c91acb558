package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	sharedApplication "github.com/felixgeelhaar/taskpulse/internal/shared/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

// UpdateTaskCommand changes task details. Nil fields are left untouched.
type UpdateTaskCommand struct {
	UserID      uuid.UUID
	TaskID      uuid.UUID
	Title       *string
	Description *string
	Priority    *string
	AssignedTo  *uuid.UUID
	DueDate     *time.Time
	ClearDue    bool
	Start       bool
}

// UpdateTaskHandler handles the UpdateTaskCommand.
type UpdateTaskHandler struct {
	taskRepo   task.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewUpdateTaskHandler creates a new UpdateTaskHandler.
func NewUpdateTaskHandler(taskRepo task.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *UpdateTaskHandler {
	return &UpdateTaskHandler{
		taskRepo:   taskRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle executes the UpdateTaskCommand.
func (h *UpdateTaskHandler) Handle(ctx context.Context, cmd UpdateTaskCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		t, err := h.taskRepo.FindByID(txCtx, cmd.TaskID)
		if err != nil {
			return err
		}

		if cmd.Title != nil || cmd.Description != nil {
			title := t.Title()
			if cmd.Title != nil {
				title = *cmd.Title
			}
			description := t.Description()
			if cmd.Description != nil {
				description = *cmd.Description
			}
			if err := t.UpdateDetails(title, description); err != nil {
				return err
			}
		}

		if cmd.Priority != nil {
			priority, err := value_objects.ParsePriority(*cmd.Priority)
			if err != nil {
				return err
			}
			if err := t.SetPriority(priority); err != nil {
				return err
			}
		}

		if cmd.ClearDue {
			if err := t.SetDueDate(nil); err != nil {
				return err
			}
		} else if cmd.DueDate != nil {
			if err := t.SetDueDate(cmd.DueDate); err != nil {
				return err
			}
		}

		if cmd.AssignedTo != nil {
			if err := t.Assign(*cmd.AssignedTo, cmd.UserID); err != nil {
				return err
			}
		}

		if cmd.Start {
			if err := t.Start(); err != nil {
				return err
			}
		}

		if err := h.taskRepo.Save(txCtx, t); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, t.DomainEvents(), cmd.UserID)
	})
}
