package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/commands"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/queries"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/infrastructure/persistence"
)

// TaskHandler handles task API requests.
type TaskHandler struct {
	createTask   *commands.CreateTaskHandler
	updateTask   *commands.UpdateTaskHandler
	completeTask *commands.CompleteTaskHandler
	addComment   *commands.AddCommentHandler
	markRead     *commands.MarkTaskReadHandler
	getTask      *queries.GetTaskHandler
	listTasks    *queries.ListTasksHandler
	logger       *slog.Logger
}

// TaskHandlerConfig holds dependencies for the task handler.
type TaskHandlerConfig struct {
	CreateTask   *commands.CreateTaskHandler
	UpdateTask   *commands.UpdateTaskHandler
	CompleteTask *commands.CompleteTaskHandler
	AddComment   *commands.AddCommentHandler
	MarkRead     *commands.MarkTaskReadHandler
	GetTask      *queries.GetTaskHandler
	ListTasks    *queries.ListTasksHandler
	Logger       *slog.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(cfg TaskHandlerConfig) *TaskHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TaskHandler{
		createTask:   cfg.CreateTask,
		updateTask:   cfg.UpdateTask,
		completeTask: cfg.CompleteTask,
		addComment:   cfg.AddComment,
		markRead:     cfg.MarkRead,
		getTask:      cfg.GetTask,
		listTasks:    cfg.ListTasks,
		logger:       cfg.Logger,
	}
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
}

// CreateTask handles POST /api/v1/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Priority != "" {
		if _, err := value_objects.ParsePriority(req.Priority); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.createTask.Handle(r.Context(), commands.CreateTaskCommand{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.respondTaskError(w, err, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": result.TaskID.String()})
}

// ListTasks handles GET /api/v1/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	query := queries.ListTasksQuery{
		UserID: userID,
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if _, err := value_objects.ParseStatus(status); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		query.Status = status
	}

	if priority := r.URL.Query().Get("priority"); priority != "" {
		if _, err := value_objects.ParsePriority(priority); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		query.Priority = priority
	}

	tasks, err := h.listTasks.Handle(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// GetTask handles GET /api/v1/tasks/{taskID}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	dto, err := h.getTask.Handle(r.Context(), queries.GetTaskQuery{UserID: userID, TaskID: taskID})
	if err != nil {
		h.respondTaskError(w, err, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, dto)
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDue"`
	Start       bool       `json:"start"`
}

// UpdateTask handles PATCH /api/v1/tasks/{taskID}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Priority != nil {
		if _, err := value_objects.ParsePriority(*req.Priority); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	err = h.updateTask.Handle(r.Context(), commands.UpdateTaskCommand{
		UserID:      userID,
		TaskID:      taskID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
		Start:       req.Start,
	})
	if err != nil {
		h.respondTaskError(w, err, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "task updated"})
}

// CompleteTask handles POST /api/v1/tasks/{taskID}/complete
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.completeTask.Handle(r.Context(), commands.CompleteTaskCommand{UserID: userID, TaskID: taskID}); err != nil {
		h.respondTaskError(w, err, "failed to complete task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "task completed"})
}

type addCommentRequest struct {
	Body string `json:"body"`
}

// AddComment handles POST /api/v1/tasks/{taskID}/comments
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.addComment.Handle(r.Context(), commands.AddCommentCommand{
		UserID: userID,
		TaskID: taskID,
		Body:   req.Body,
	})
	if err != nil {
		h.respondTaskError(w, err, "failed to add comment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": result.CommentID.String()})
}

// MarkTaskRead handles POST /api/v1/tasks/{taskID}/read
func (h *TaskHandler) MarkTaskRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.markRead.Handle(r.Context(), commands.MarkTaskReadCommand{UserID: userID, TaskID: taskID}); err != nil {
		h.respondTaskError(w, err, "failed to mark task read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "task marked as read"})
}

// respondTaskError maps domain errors to HTTP statuses.
func (h *TaskHandler) respondTaskError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, task.ErrEmptyTitle),
		errors.Is(err, task.ErrEmptyComment),
		errors.Is(err, task.ErrAlreadyCompleted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, persistence.ErrOptimisticLocking):
		writeError(w, http.StatusConflict, "Task was modified concurrently")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Helper functions

func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
