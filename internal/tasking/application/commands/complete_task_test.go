package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

func persistedTask(t *testing.T, createdBy uuid.UUID) *task.Task {
	t.Helper()
	tk, err := task.NewTask(createdBy, "quarterly report", "", value_objects.PriorityMedium, nil, nil)
	require.NoError(t, err)
	tk.ClearDomainEvents()
	return tk
}

func TestCompleteTaskHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("completes the task and stages the event", func(t *testing.T) {
		tk := persistedTask(t, userID)
		taskRepo := new(mockTaskRepository)
		outboxRepo := new(mockOutboxRepository)
		uow := passthroughUoW()

		taskRepo.On("FindByID", mock.Anything, tk.ID()).Return(tk, nil)
		taskRepo.On("Save", mock.Anything, tk).Return(nil)

		var staged []*outbox.Message
		outboxRepo.On("SaveBatch", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { staged = args.Get(1).([]*outbox.Message) }).
			Return(nil)

		handler := NewCompleteTaskHandler(taskRepo, outboxRepo, uow)
		require.NoError(t, handler.Handle(context.Background(), CompleteTaskCommand{UserID: userID, TaskID: tk.ID()}))

		assert.Equal(t, value_objects.StatusCompleted, tk.Status())
		require.Len(t, staged, 1)
		assert.Equal(t, task.RoutingKeyCompleted, staged[0].RoutingKey)
	})

	t.Run("completing twice rolls back", func(t *testing.T) {
		tk := persistedTask(t, userID)
		require.NoError(t, tk.Complete(time.Now()))
		tk.ClearDomainEvents()

		taskRepo := new(mockTaskRepository)
		uow := passthroughUoW()
		taskRepo.On("FindByID", mock.Anything, tk.ID()).Return(tk, nil)

		handler := NewCompleteTaskHandler(taskRepo, new(mockOutboxRepository), uow)
		err := handler.Handle(context.Background(), CompleteTaskCommand{UserID: userID, TaskID: tk.ID()})
		assert.ErrorIs(t, err, task.ErrAlreadyCompleted)
		uow.AssertCalled(t, "Rollback", mock.Anything)
	})

	t.Run("missing task", func(t *testing.T) {
		taskRepo := new(mockTaskRepository)
		uow := passthroughUoW()
		taskRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, task.ErrNotFound)

		handler := NewCompleteTaskHandler(taskRepo, new(mockOutboxRepository), uow)
		err := handler.Handle(context.Background(), CompleteTaskCommand{UserID: userID, TaskID: uuid.New()})
		assert.ErrorIs(t, err, task.ErrNotFound)
	})
}

func TestMarkTaskReadHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("persists a read marker", func(t *testing.T) {
		tk := persistedTask(t, userID)
		taskRepo := new(mockTaskRepository)
		taskRepo.On("FindByID", mock.Anything, tk.ID()).Return(tk, nil)
		taskRepo.On("MarkRead", mock.Anything, tk.ID(), userID, mock.AnythingOfType("time.Time")).Return(nil)

		handler := NewMarkTaskReadHandler(taskRepo)
		require.NoError(t, handler.Handle(context.Background(), MarkTaskReadCommand{UserID: userID, TaskID: tk.ID()}))
		taskRepo.AssertExpectations(t)
	})

	t.Run("unknown task", func(t *testing.T) {
		taskRepo := new(mockTaskRepository)
		taskRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, task.ErrNotFound)

		handler := NewMarkTaskReadHandler(taskRepo)
		err := handler.Handle(context.Background(), MarkTaskReadCommand{UserID: userID, TaskID: uuid.New()})
		assert.ErrorIs(t, err, task.ErrNotFound)
		taskRepo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
