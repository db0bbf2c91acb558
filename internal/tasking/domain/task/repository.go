package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows FindByAssignee results.
type ListFilter struct {
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// Repository persists task aggregates.
type Repository interface {
	// Save inserts or updates a task using optimistic locking.
	Save(ctx context.Context, t *Task) error

	// FindByID loads a task with its read markers and comments.
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// FindByAssignee lists tasks assigned to a user.
	FindByAssignee(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Task, error)

	// FindOverdue returns open tasks assigned to the user whose due date
	// is strictly before now.
	FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Task, error)

	// FindDueSoon returns open tasks assigned to the user due between now
	// and now+window inclusive.
	FindDueSoon(ctx context.Context, userID uuid.UUID, now time.Time, window time.Duration) ([]*Task, error)

	// FindUrgent returns open urgent-priority tasks assigned to the user.
	FindUrgent(ctx context.Context, userID uuid.UUID) ([]*Task, error)

	// FindUnread returns tasks assigned to the user within the recency
	// window that the user has not yet marked read.
	FindUnread(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Task, error)

	// MarkRead persists a read marker. Saving an existing marker is a
	// no-op, the original timestamp is kept.
	MarkRead(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error

	// Delete removes a task and its markers and comments.
	Delete(ctx context.Context, id uuid.UUID) error
}
