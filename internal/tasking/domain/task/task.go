// Package task contains the task aggregate and its domain events.
package task

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/shared/domain"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

var (
	// ErrEmptyTitle is returned when a task title is blank.
	ErrEmptyTitle = errors.New("task title cannot be empty")
	// ErrAlreadyCompleted is returned when mutating a completed task.
	ErrAlreadyCompleted = errors.New("task is already completed")
	// ErrEmptyComment is returned when a comment body is blank.
	ErrEmptyComment = errors.New("comment body cannot be empty")
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("task not found")
)

// Comment is a note attached to a task.
type Comment struct {
	ID        uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// Task is the aggregate root of the tasking context.
type Task struct {
	domain.BaseAggregateRoot
	createdBy   uuid.UUID
	assignedTo  *uuid.UUID
	title       string
	description string
	status      value_objects.Status
	priority    value_objects.Priority
	dueDate     *time.Time
	completedAt *time.Time
	readBy      map[uuid.UUID]time.Time
	comments    []Comment
}

// NewTask creates a new task owned by createdBy. An assignee and due date
// are optional at creation time.
func NewTask(createdBy uuid.UUID, title, description string, priority value_objects.Priority, assignedTo *uuid.UUID, dueDate *time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	t := &Task{
		BaseAggregateRoot: domain.NewBaseAggregateRoot(),
		createdBy:         createdBy,
		assignedTo:        assignedTo,
		title:             title,
		description:       description,
		status:            value_objects.StatusPending,
		priority:          priority,
		dueDate:           dueDate,
		readBy:            make(map[uuid.UUID]time.Time),
	}

	t.AddDomainEvent(NewCreatedEvent(t))
	if assignedTo != nil {
		t.AddDomainEvent(NewAssignedEvent(t, *assignedTo, createdBy))
	}
	return t, nil
}

// Rehydrate recreates a task from persisted state without emitting events.
func Rehydrate(
	id uuid.UUID,
	createdBy uuid.UUID,
	assignedTo *uuid.UUID,
	title, description string,
	status value_objects.Status,
	priority value_objects.Priority,
	dueDate, completedAt *time.Time,
	readBy map[uuid.UUID]time.Time,
	comments []Comment,
	version int,
	createdAt, updatedAt time.Time,
) *Task {
	if readBy == nil {
		readBy = make(map[uuid.UUID]time.Time)
	}
	return &Task{
		BaseAggregateRoot: domain.RehydrateBaseAggregateRoot(
			domain.RehydrateBaseEntity(id, createdAt, updatedAt), version),
		createdBy:   createdBy,
		assignedTo:  assignedTo,
		title:       title,
		description: description,
		status:      status,
		priority:    priority,
		dueDate:     dueDate,
		completedAt: completedAt,
		readBy:      readBy,
		comments:    comments,
	}
}

func (t *Task) CreatedBy() uuid.UUID               { return t.createdBy }
func (t *Task) AssignedTo() *uuid.UUID             { return t.assignedTo }
func (t *Task) Title() string                      { return t.title }
func (t *Task) Description() string                { return t.description }
func (t *Task) Status() value_objects.Status       { return t.status }
func (t *Task) Priority() value_objects.Priority   { return t.priority }
func (t *Task) DueDate() *time.Time                { return t.dueDate }
func (t *Task) CompletedAt() *time.Time            { return t.completedAt }
func (t *Task) Comments() []Comment                { return t.comments }

// ReadBy returns the read markers keyed by user ID.
func (t *Task) ReadBy() map[uuid.UUID]time.Time { return t.readBy }

// UpdateDetails changes the title and description.
func (t *Task) UpdateDetails(title, description string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}

	t.title = title
	t.description = description
	t.Touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// SetPriority changes the task priority.
func (t *Task) SetPriority(p value_objects.Priority) error {
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}
	if t.priority == p {
		return nil
	}
	t.priority = p
	t.Touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// SetDueDate changes or clears the due date.
func (t *Task) SetDueDate(due *time.Time) error {
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}
	t.dueDate = due
	t.Touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// Assign hands the task to a user. Existing read markers are kept; a user
// who already saw the task does not get it back as unread.
func (t *Task) Assign(assignedTo, assignedBy uuid.UUID) error {
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}
	if t.assignedTo != nil && *t.assignedTo == assignedTo {
		return nil
	}

	t.assignedTo = &assignedTo
	t.Touch()
	t.AddDomainEvent(NewAssignedEvent(t, assignedTo, assignedBy))
	return nil
}

// Start moves a pending task into progress.
func (t *Task) Start() error {
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}
	if t.status == value_objects.StatusInProgress {
		return nil
	}
	t.status = value_objects.StatusInProgress
	t.Touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// Complete marks the task done. Completing twice is an error.
func (t *Task) Complete(now time.Time) error {
	if t.status == value_objects.StatusCompleted {
		return ErrAlreadyCompleted
	}
	t.status = value_objects.StatusCompleted
	t.completedAt = &now
	t.Touch()
	t.AddDomainEvent(NewCompletedEvent(t, now))
	return nil
}

// MarkReadBy records that a user has seen the task. The first call wins;
// repeated calls are no-ops and keep the original timestamp.
func (t *Task) MarkReadBy(userID uuid.UUID, at time.Time) bool {
	if _, ok := t.readBy[userID]; ok {
		return false
	}
	t.readBy[userID] = at
	return true
}

// IsReadBy returns true if the user has a read marker for this task.
func (t *Task) IsReadBy(userID uuid.UUID) bool {
	_, ok := t.readBy[userID]
	return ok
}

// AddComment appends a comment and emits a commented event.
func (t *Task) AddComment(authorID uuid.UUID, body string) (Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, ErrEmptyComment
	}

	comment := Comment{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	t.comments = append(t.comments, comment)
	t.Touch()
	t.AddDomainEvent(NewCommentedEvent(t, comment))
	return comment, nil
}

// IsOverdue returns true for open tasks whose due date has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.status.IsOpen() && t.dueDate != nil && t.dueDate.Before(now)
}

// IsDueWithin returns true for open tasks due between now and now+window.
func (t *Task) IsDueWithin(now time.Time, window time.Duration) bool {
	if !t.status.IsOpen() || t.dueDate == nil {
		return false
	}
	due := *t.dueDate
	return !due.Before(now) && !due.After(now.Add(window))
}
