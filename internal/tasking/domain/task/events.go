package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/shared/domain"
)

// AggregateType identifies task events in the outbox.
const AggregateType = "Task"

// Routing keys for task domain events.
const (
	RoutingKeyCreated   = "tasking.task.created"
	RoutingKeyAssigned  = "tasking.task.assigned"
	RoutingKeyUpdated   = "tasking.task.updated"
	RoutingKeyCompleted = "tasking.task.completed"
	RoutingKeyCommented = "tasking.task.commented"
)

// CreatedEvent is emitted when a task is created.
type CreatedEvent struct {
	domain.BaseEvent
	TaskID     uuid.UUID  `json:"task_id"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Title      string     `json:"title"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// NewCreatedEvent creates a task created event.
func NewCreatedEvent(t *Task) *CreatedEvent {
	return &CreatedEvent{
		BaseEvent:  domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyCreated),
		TaskID:     t.ID(),
		CreatedBy:  t.CreatedBy(),
		AssignedTo: t.AssignedTo(),
		Title:      t.Title(),
		Priority:   t.Priority().String(),
		DueDate:    t.DueDate(),
	}
}

// AssignedEvent is emitted when a task is assigned to a user.
type AssignedEvent struct {
	domain.BaseEvent
	TaskID     uuid.UUID  `json:"task_id"`
	AssignedTo uuid.UUID  `json:"assigned_to"`
	AssignedBy uuid.UUID  `json:"assigned_by"`
	Title      string     `json:"title"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// NewAssignedEvent creates a task assigned event.
func NewAssignedEvent(t *Task, assignedTo, assignedBy uuid.UUID) *AssignedEvent {
	return &AssignedEvent{
		BaseEvent:  domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyAssigned),
		TaskID:     t.ID(),
		AssignedTo: assignedTo,
		AssignedBy: assignedBy,
		Title:      t.Title(),
		Priority:   t.Priority().String(),
		DueDate:    t.DueDate(),
	}
}

// UpdatedEvent is emitted when task details change.
type UpdatedEvent struct {
	domain.BaseEvent
	TaskID     uuid.UUID  `json:"task_id"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// NewUpdatedEvent creates a task updated event.
func NewUpdatedEvent(t *Task) *UpdatedEvent {
	return &UpdatedEvent{
		BaseEvent:  domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyUpdated),
		TaskID:     t.ID(),
		CreatedBy:  t.CreatedBy(),
		AssignedTo: t.AssignedTo(),
		Title:      t.Title(),
		Status:     t.Status().String(),
		Priority:   t.Priority().String(),
		DueDate:    t.DueDate(),
	}
}

// CompletedEvent is emitted when a task is completed.
type CompletedEvent struct {
	domain.BaseEvent
	TaskID      uuid.UUID  `json:"task_id"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	Title       string     `json:"title"`
	CompletedAt time.Time  `json:"completed_at"`
}

// NewCompletedEvent creates a task completed event.
func NewCompletedEvent(t *Task, completedAt time.Time) *CompletedEvent {
	return &CompletedEvent{
		BaseEvent:   domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyCompleted),
		TaskID:      t.ID(),
		CreatedBy:   t.CreatedBy(),
		AssignedTo:  t.AssignedTo(),
		Title:       t.Title(),
		CompletedAt: completedAt,
	}
}

// CommentedEvent is emitted when a comment is added to a task.
type CommentedEvent struct {
	domain.BaseEvent
	TaskID     uuid.UUID  `json:"task_id"`
	CommentID  uuid.UUID  `json:"comment_id"`
	AuthorID   uuid.UUID  `json:"author_id"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Title      string     `json:"title"`
}

// NewCommentedEvent creates a task commented event.
func NewCommentedEvent(t *Task, comment Comment) *CommentedEvent {
	return &CommentedEvent{
		BaseEvent:  domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyCommented),
		TaskID:     t.ID(),
		CommentID:  comment.ID,
		AuthorID:   comment.AuthorID,
		CreatedBy:  t.CreatedBy(),
		AssignedTo: t.AssignedTo(),
		Title:      t.Title(),
	}
}
