// Package queries contains the read-side handlers of the tasking context.
package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// CommentDTO is the read model for a task comment.
type CommentDTO struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDTO is the read model for a task.
type TaskDTO struct {
	ID          uuid.UUID    `json:"id"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	AssignedTo  *uuid.UUID   `json:"assigned_to,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Read        bool         `json:"read"`
	Comments    []CommentDTO `json:"comments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ToTaskDTO converts a task aggregate into its read model. The read flag is
// evaluated for the viewing user.
func ToTaskDTO(t *task.Task, viewer uuid.UUID) TaskDTO {
	dto := TaskDTO{
		ID:          t.ID(),
		CreatedBy:   t.CreatedBy(),
		AssignedTo:  t.AssignedTo(),
		Title:       t.Title(),
		Description: t.Description(),
		Status:      t.Status().String(),
		Priority:    t.Priority().String(),
		DueDate:     t.DueDate(),
		CompletedAt: t.CompletedAt(),
		Read:        t.IsReadBy(viewer),
		CreatedAt:   t.CreatedAt(),
		UpdatedAt:   t.UpdatedAt(),
	}
	for _, c := range t.Comments() {
		dto.Comments = append(dto.Comments, CommentDTO{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return dto
}

// GetTaskQuery fetches a single task.
type GetTaskQuery struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

// GetTaskHandler handles the GetTaskQuery.
type GetTaskHandler struct {
	taskRepo task.Repository
}

// NewGetTaskHandler creates a new GetTaskHandler.
func NewGetTaskHandler(taskRepo task.Repository) *GetTaskHandler {
	return &GetTaskHandler{taskRepo: taskRepo}
}

// Handle executes the GetTaskQuery.
func (h *GetTaskHandler) Handle(ctx context.Context, q GetTaskQuery) (*TaskDTO, error) {
	t, err := h.taskRepo.FindByID(ctx, q.TaskID)
	if err != nil {
		return nil, err
	}
	dto := ToTaskDTO(t, q.UserID)
	return &dto, nil
}
