package persistence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

func setupSQLiteRepo(t *testing.T) *SQLiteTaskRepository {
	t.Helper()

	conn, err := sqlite.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	require.NoError(t, migrations.Run(context.Background(), conn, logger))

	return NewSQLiteTaskRepository(conn)
}

func newSavedTask(t *testing.T, repo *SQLiteTaskRepository, assignee *uuid.UUID, priority value_objects.Priority, due *time.Time) *task.Task {
	t.Helper()
	tk, err := task.NewTask(uuid.New(), "test task", "details", priority, assignee, due)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tk))
	return tk
}

func TestSQLiteTaskRepository_SaveAndFindByID(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	assignee := uuid.New()
	due := time.Now().Add(24 * time.Hour).UTC()

	tk := newSavedTask(t, repo, &assignee, value_objects.PriorityHigh, &due)

	loaded, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), loaded.ID())
	assert.Equal(t, "test task", loaded.Title())
	assert.Equal(t, value_objects.PriorityHigh, loaded.Priority())
	require.NotNil(t, loaded.AssignedTo())
	assert.Equal(t, assignee, *loaded.AssignedTo())
	require.NotNil(t, loaded.DueDate())
	assert.WithinDuration(t, due, *loaded.DueDate(), time.Second)
	assert.Empty(t, loaded.DomainEvents())
}

func TestSQLiteTaskRepository_FindByID_NotFound(t *testing.T) {
	repo := setupSQLiteRepo(t)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestSQLiteTaskRepository_Save_OptimisticLocking(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	tk := newSavedTask(t, repo, nil, value_objects.PriorityMedium, nil)

	stale, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)

	current, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	require.NoError(t, current.UpdateDetails("renamed", ""))
	require.NoError(t, repo.Save(ctx, current))

	require.NoError(t, stale.UpdateDetails("conflicting rename", ""))
	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, ErrOptimisticLocking)
}

func TestSQLiteTaskRepository_Save_PersistsComments(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	tk := newSavedTask(t, repo, nil, value_objects.PriorityLow, nil)
	_, err := tk.AddComment(uuid.New(), "first comment")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tk))

	loaded, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Comments(), 1)
	assert.Equal(t, "first comment", loaded.Comments()[0].Body)

	// saving again must not duplicate comments
	require.NoError(t, repo.Save(ctx, loaded))
	loaded, err = repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	assert.Len(t, loaded.Comments(), 1)
}

func TestSQLiteTaskRepository_MarkRead_KeepsFirstTimestamp(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	reader := uuid.New()

	tk := newSavedTask(t, repo, &reader, value_objects.PriorityMedium, nil)

	first := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkRead(ctx, tk.ID(), reader, first))
	require.NoError(t, repo.MarkRead(ctx, tk.ID(), reader, first.Add(time.Hour)))

	loaded, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	assert.True(t, loaded.IsReadBy(reader))
	assert.Equal(t, first, loaded.ReadBy()[reader])
}

func TestSQLiteTaskRepository_AlertFeedQueries(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	assignee := uuid.New()
	now := time.Now().UTC()

	pastDue := now.Add(-48 * time.Hour)
	soonDue := now.Add(12 * time.Hour)
	farDue := now.Add(200 * time.Hour)

	overdue := newSavedTask(t, repo, &assignee, value_objects.PriorityMedium, &pastDue)
	dueSoon := newSavedTask(t, repo, &assignee, value_objects.PriorityMedium, &soonDue)
	urgent := newSavedTask(t, repo, &assignee, value_objects.PriorityUrgent, &farDue)
	_ = newSavedTask(t, repo, &assignee, value_objects.PriorityLow, &farDue)

	// completed tasks never alert
	done := newSavedTask(t, repo, &assignee, value_objects.PriorityUrgent, &pastDue)
	require.NoError(t, done.Complete(now))
	require.NoError(t, repo.Save(ctx, done))

	// other users' tasks are invisible
	other := uuid.New()
	_ = newSavedTask(t, repo, &other, value_objects.PriorityUrgent, &pastDue)

	t.Run("overdue", func(t *testing.T) {
		got, err := repo.FindOverdue(ctx, assignee, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, overdue.ID(), got[0].ID())
	})

	t.Run("due soon", func(t *testing.T) {
		got, err := repo.FindDueSoon(ctx, assignee, now, 48*time.Hour)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, dueSoon.ID(), got[0].ID())
	})

	t.Run("urgent", func(t *testing.T) {
		got, err := repo.FindUrgent(ctx, assignee)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, urgent.ID(), got[0].ID())
	})
}

func TestSQLiteTaskRepository_FindUnread(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	assignee := uuid.New()
	since := time.Now().Add(-24 * time.Hour).UTC()

	fresh := newSavedTask(t, repo, &assignee, value_objects.PriorityMedium, nil)
	seen := newSavedTask(t, repo, &assignee, value_objects.PriorityMedium, nil)
	require.NoError(t, repo.MarkRead(ctx, seen.ID(), assignee, time.Now().UTC()))

	got, err := repo.FindUnread(ctx, assignee, since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID(), got[0].ID())
}

func TestSQLiteTaskRepository_FindByAssignee_Filters(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	assignee := uuid.New()

	_ = newSavedTask(t, repo, &assignee, value_objects.PriorityUrgent, nil)
	low := newSavedTask(t, repo, &assignee, value_objects.PriorityLow, nil)

	all, err := repo.FindByAssignee(ctx, assignee, task.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// urgent sorts first
	assert.Equal(t, value_objects.PriorityUrgent, all[0].Priority())

	lows, err := repo.FindByAssignee(ctx, assignee, task.ListFilter{Priority: "low"})
	require.NoError(t, err)
	require.Len(t, lows, 1)
	assert.Equal(t, low.ID(), lows[0].ID())
}

func TestSQLiteTaskRepository_Delete(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	tk := newSavedTask(t, repo, nil, value_objects.PriorityMedium, nil)
	require.NoError(t, repo.Delete(ctx, tk.ID()))

	_, err := repo.FindByID(ctx, tk.ID())
	assert.ErrorIs(t, err, task.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, tk.ID()), task.ErrNotFound)
}
