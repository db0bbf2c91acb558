package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alerting "github.com/felixgeelhaar/taskpulse/internal/alerting/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/commands"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/queries"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// fakeTaskRepo is an in-memory implementation of task.Repository.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task.Task
	reads map[string]time.Time
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks: make(map[uuid.UUID]*task.Task),
		reads: make(map[string]time.Time),
	}
}

func readKey(taskID, userID uuid.UUID) string {
	return taskID.String() + ":" + userID.String()
}

func (f *fakeTaskRepo) Save(ctx context.Context, t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID()] = t
	for userID, at := range t.ReadBy() {
		key := readKey(t.ID(), userID)
		if _, ok := f.reads[key]; !ok {
			f.reads[key] = at
		}
	}
	return nil
}

func (f *fakeTaskRepo) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return t, nil
}

func (f *fakeTaskRepo) FindByAssignee(ctx context.Context, userID uuid.UUID, filter task.ListFilter) ([]*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*task.Task
	for _, t := range f.tasks {
		if t.AssignedTo() == nil || *t.AssignedTo() != userID {
			continue
		}
		if filter.Status != "" && t.Status().String() != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority().String() != filter.Priority {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (f *fakeTaskRepo) FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*task.Task, error) {
	return f.findAssigned(userID, func(t *task.Task) bool {
		return t.IsOverdue(now)
	})
}

func (f *fakeTaskRepo) FindDueSoon(ctx context.Context, userID uuid.UUID, now time.Time, window time.Duration) ([]*task.Task, error) {
	return f.findAssigned(userID, func(t *task.Task) bool {
		return t.IsDueWithin(now, window)
	})
}

func (f *fakeTaskRepo) FindUrgent(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	return f.findAssigned(userID, func(t *task.Task) bool {
		return t.Status().IsOpen() && t.Priority().IsUrgent()
	})
}

func (f *fakeTaskRepo) FindUnread(ctx context.Context, userID uuid.UUID, since time.Time) ([]*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*task.Task
	for _, t := range f.tasks {
		if t.AssignedTo() == nil || *t.AssignedTo() != userID {
			continue
		}
		if t.CreatedAt().Before(since) {
			continue
		}
		if _, read := f.reads[readKey(t.ID(), userID)]; read {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (f *fakeTaskRepo) MarkRead(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := readKey(taskID, userID)
	if _, ok := f.reads[key]; !ok {
		f.reads[key] = at
	}
	return nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) findAssigned(userID uuid.UUID, match func(*task.Task) bool) ([]*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*task.Task
	for _, t := range f.tasks {
		if t.AssignedTo() == nil || *t.AssignedTo() != userID {
			continue
		}
		if match(t) {
			result = append(result, t)
		}
	}
	return result, nil
}

// fakeOutboxRepo records staged messages.
type fakeOutboxRepo struct {
	mu       sync.Mutex
	messages []*outbox.Message
}

func (f *fakeOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkPublished(ctx context.Context, id int64) error { return nil }

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error { return nil }

func (f *fakeOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) routingKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, len(f.messages))
	for i, m := range f.messages {
		keys[i] = m.RoutingKey
	}
	return keys
}

// noopUnitOfWork runs everything on the caller's context.
type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(ctx context.Context) error                   { return nil }
func (noopUnitOfWork) Rollback(ctx context.Context) error                 { return nil }

func setupTestServer(t *testing.T) (*Server, *fakeTaskRepo, *fakeOutboxRepo) {
	t.Helper()

	taskRepo := newFakeTaskRepo()
	outboxRepo := &fakeOutboxRepo{}
	uow := noopUnitOfWork{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tasks := NewTaskHandler(TaskHandlerConfig{
		CreateTask:   commands.NewCreateTaskHandler(taskRepo, outboxRepo, uow),
		UpdateTask:   commands.NewUpdateTaskHandler(taskRepo, outboxRepo, uow),
		CompleteTask: commands.NewCompleteTaskHandler(taskRepo, outboxRepo, uow),
		AddComment:   commands.NewAddCommentHandler(taskRepo, outboxRepo, uow),
		MarkRead:     commands.NewMarkTaskReadHandler(taskRepo),
		GetTask:      queries.NewGetTaskHandler(taskRepo),
		ListTasks:    queries.NewListTasksHandler(taskRepo),
		Logger:       logger,
	})

	alerts := NewAlertHandler(
		alerting.NewGetAlertsHandler(taskRepo, alerting.DefaultDueSoonWindow, alerting.DefaultNewWindow),
		alerting.NewAcknowledgeAlertHandler(taskRepo),
		logger,
	)

	server := NewServer(DefaultServerConfig(), tasks, alerts, nil, nil, logger)
	return server, taskRepo, outboxRepo
}

func doRequest(t *testing.T, server *Server, method, target string, userID *uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != nil {
		req.Header.Set(UserHeader, userID.String())
	}
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestServer_Health(t *testing.T) {
	server, _, _ := setupTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequiresUserIdentity(t *testing.T) {
	server, _, _ := setupTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "malformed header", header: "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set(UserHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			server.server.Handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestTaskHandler_CreateTask(t *testing.T) {
	server, repo, outboxRepo := setupTestServer(t)
	userID := uuid.New()

	t.Run("creates task and stages event", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks", &userID, map[string]any{
			"title":    "Write release notes",
			"priority": "high",
		})

		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		taskID, err := uuid.Parse(body["id"])
		require.NoError(t, err)

		stored, err := repo.FindByID(context.Background(), taskID)
		require.NoError(t, err)
		assert.Equal(t, "Write release notes", stored.Title())
		assert.Contains(t, outboxRepo.routingKeys(), task.RoutingKeyCreated)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks", &userID, map[string]any{
			"title": "   ",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid priority", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks", &userID, map[string]any{
			"title":    "Something",
			"priority": "blocker",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte("{not json")))
		req.Header.Set(UserHeader, userID.String())
		rec := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_GetTask(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Review budget", "", "high", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	t.Run("returns task with read flag", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks/"+created.ID().String(), &userID, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var dto queries.TaskDTO
		decodeBody(t, rec, &dto)
		assert.Equal(t, "Review budget", dto.Title)
		assert.False(t, dto.Read)
	})

	t.Run("read flag flips after marking read", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks/"+created.ID().String()+"/read", &userID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(t, server, http.MethodGet, "/api/v1/tasks/"+created.ID().String(), &userID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var dto queries.TaskDTO
		decodeBody(t, rec, &dto)
		assert.True(t, dto.Read)
	})

	t.Run("unknown task returns 404", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), &userID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed task ID returns 400", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks/abc", &userID, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_ListTasks(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()
	other := uuid.New()

	mine, err := task.NewTask(userID, "Mine", "", "medium", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), mine))

	theirs, err := task.NewTask(other, "Theirs", "", "medium", &other, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), theirs))

	t.Run("lists only own tasks", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks", &userID, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Tasks []queries.TaskDTO `json:"tasks"`
		}
		decodeBody(t, rec, &body)
		require.Len(t, body.Tasks, 1)
		assert.Equal(t, "Mine", body.Tasks[0].Title)
	})

	t.Run("rejects invalid status filter", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks?status=done", &userID, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_CompleteTask(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Ship it", "", "medium", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks/"+created.ID().String()+"/complete", &userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Completing again fails validation.
	rec = doRequest(t, server, http.MethodPost, "/api/v1/tasks/"+created.ID().String()+"/complete", &userID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_AddComment(t *testing.T) {
	server, repo, outboxRepo := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Discuss", "", "medium", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	t.Run("adds comment", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks/"+created.ID().String()+"/comments", &userID, map[string]string{
			"body": "Looks good",
		})

		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		_, err := uuid.Parse(body["id"])
		assert.NoError(t, err)
		assert.Contains(t, outboxRepo.routingKeys(), task.RoutingKeyCommented)
	})

	t.Run("rejects empty comment", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/tasks/"+created.ID().String()+"/comments", &userID, map[string]string{
			"body": "  ",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_NoDeleteEndpoint(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Permanent record", "", "low", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	// tasks are never physically deleted over HTTP
	rec := doRequest(t, server, http.MethodDelete, "/api/v1/tasks/"+created.ID().String(), &userID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/tasks/"+created.ID().String(), &userID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskHandler_UpdateTask(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Draft", "", "low", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	rec := doRequest(t, server, http.MethodPatch, "/api/v1/tasks/"+created.ID().String(), &userID, map[string]any{
		"title":    "Draft v2",
		"priority": "urgent",
		"start":    true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repo.FindByID(context.Background(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, "Draft v2", stored.Title())
	assert.True(t, stored.Priority().IsUrgent())
	assert.True(t, stored.Status().IsOpen())
	assert.Equal(t, "in_progress", stored.Status().String())
}

func TestAlertHandler_GetAlerts(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()
	now := time.Now().UTC()

	// Overdue urgent task: the urgent alert is folded into the overdue one.
	due := now.Add(-72 * time.Hour)
	overdue, err := task.NewTask(userID, "Quarterly report", "", "urgent", &userID, &due)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), overdue))

	rec := doRequest(t, server, http.MethodGet, "/api/v1/alerts", &userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed alerting.AlertFeed
	decodeBody(t, rec, &feed)

	// The task is freshly created, so it also produces a new-assignment
	// alert; the urgent duplicate is suppressed.
	require.Len(t, feed.Alerts, 2)
	assert.Equal(t, "overdue", string(feed.Alerts[0].Kind))
	assert.Equal(t, "new-assignment", string(feed.Alerts[1].Kind))
	assert.Equal(t, 2, feed.Summary.Total)
	assert.Equal(t, 1, feed.Summary.Overdue)
	assert.Equal(t, 1, feed.Summary.Urgent)
	assert.Equal(t, 1, feed.Summary.New)
}

func TestAlertHandler_AcknowledgeAlert(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	userID := uuid.New()

	created, err := task.NewTask(userID, "Fresh assignment", "", "medium", &userID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), created))

	t.Run("acknowledging new-assignment persists read marker", func(t *testing.T) {
		alertID := fmt.Sprintf("new-assignment-%s", created.ID())
		rec := doRequest(t, server, http.MethodPatch, "/api/v1/alerts/"+alertID+"/read", &userID, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Equal(t, "alert marked as read", body["message"])

		unread, err := repo.FindUnread(context.Background(), userID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, unread)
	})

	t.Run("acknowledging other kinds is a no-op", func(t *testing.T) {
		alertID := fmt.Sprintf("overdue-%s", created.ID())
		rec := doRequest(t, server, http.MethodPatch, "/api/v1/alerts/"+alertID+"/read", &userID, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Equal(t, "alert acknowledged", body["message"])
	})

	t.Run("malformed alert ID is accepted", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPatch, "/api/v1/alerts/garbage/read", &userID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
