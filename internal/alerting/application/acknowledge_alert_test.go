package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskpulse/internal/alerting/domain"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

func TestAcknowledgeAlertHandler_NewAssignmentPersists(t *testing.T) {
	userID := uuid.New()
	tk := feedTask("onboarding checklist", value_objects.PriorityMedium, nil, time.Now().UTC())

	repo := new(mockTaskRepository)
	repo.On("FindByID", mock.Anything, tk.ID()).Return(tk, nil)
	repo.On("MarkRead", mock.Anything, tk.ID(), userID, mock.AnythingOfType("time.Time")).Return(nil)

	handler := NewAcknowledgeAlertHandler(repo)
	result, err := handler.Handle(context.Background(), AcknowledgeAlertCommand{
		UserID:  userID,
		AlertID: domain.AlertID(domain.KindNewAssignment, tk.ID()),
	})

	require.NoError(t, err)
	assert.True(t, result.Persisted)
	repo.AssertExpectations(t)
}

func TestAcknowledgeAlertHandler_OtherKindsAreNoOps(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	for _, kind := range []domain.Kind{domain.KindOverdue, domain.KindDueSoon, domain.KindUrgent} {
		t.Run(string(kind), func(t *testing.T) {
			repo := new(mockTaskRepository)

			handler := NewAcknowledgeAlertHandler(repo)
			result, err := handler.Handle(context.Background(), AcknowledgeAlertCommand{
				UserID:  userID,
				AlertID: domain.AlertID(kind, taskID),
			})

			require.NoError(t, err)
			assert.False(t, result.Persisted)
			repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		})
	}
}

func TestAcknowledgeAlertHandler_UnknownTaskIsNoOp(t *testing.T) {
	repo := new(mockTaskRepository)
	repo.On("FindByID", mock.Anything, mock.Anything).Return(nil, task.ErrNotFound)

	handler := NewAcknowledgeAlertHandler(repo)
	result, err := handler.Handle(context.Background(), AcknowledgeAlertCommand{
		UserID:  uuid.New(),
		AlertID: domain.AlertID(domain.KindNewAssignment, uuid.New()),
	})

	require.NoError(t, err)
	assert.False(t, result.Persisted)
}

func TestAcknowledgeAlertHandler_MalformedIDIsNoOp(t *testing.T) {
	handler := NewAcknowledgeAlertHandler(new(mockTaskRepository))

	result, err := handler.Handle(context.Background(), AcknowledgeAlertCommand{
		UserID:  uuid.New(),
		AlertID: "not-an-alert-id",
	})

	require.NoError(t, err)
	assert.False(t, result.Persisted)
}

func TestAcknowledgeAlertHandler_IdempotentAcknowledgment(t *testing.T) {
	userID := uuid.New()
	tk := feedTask("read the runbook", value_objects.PriorityLow, nil, time.Now().UTC())

	repo := new(mockTaskRepository)
	repo.On("FindByID", mock.Anything, tk.ID()).Return(tk, nil)
	repo.On("MarkRead", mock.Anything, tk.ID(), userID, mock.AnythingOfType("time.Time")).Return(nil)

	handler := NewAcknowledgeAlertHandler(repo)
	cmd := AcknowledgeAlertCommand{UserID: userID, AlertID: domain.AlertID(domain.KindNewAssignment, tk.ID())}

	for i := 0; i < 2; i++ {
		result, err := handler.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, result.Persisted)
	}
	repo.AssertNumberOfCalls(t, "MarkRead", 2)
}
