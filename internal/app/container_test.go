package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertingApp "github.com/felixgeelhaar/taskpulse/internal/alerting/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/commands"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/queries"
	"github.com/felixgeelhaar/taskpulse/pkg/config"
)

// TestContainer_SQLiteLocalMode verifies the container comes up against a
// local SQLite file with no Redis or RabbitMQ available.
func TestContainer_SQLiteLocalMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cfg := &config.Config{
		AppEnv:             "development",
		DatabaseURL:        dbPath,
		AlertDueSoonWindow: 48 * time.Hour,
		AlertNewWindow:     24 * time.Hour,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	container, err := NewContainer(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, container)
	defer container.Close()

	assert.Equal(t, database.DriverSQLite, container.DBDriver)
	assert.Nil(t, container.RedisClient)
	assert.NotNil(t, container.TaskRepo)
	assert.NotNil(t, container.OutboxRepo)
	assert.NotNil(t, container.EventPublisher)
	assert.NotNil(t, container.UnitOfWork)
	assert.NotNil(t, container.GetAlertsHandler)
	assert.NotNil(t, container.AcknowledgeAlertHandler)
	assert.Nil(t, container.RedisNotifier)
	assert.Nil(t, container.PresenceStore)
}

// TestContainer_EndToEnd creates a task through the wired handlers and reads
// it back, exercising migrations, repositories, and the unit of work.
func TestContainer_EndToEnd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cfg := &config.Config{
		AppEnv:             "development",
		DatabaseURL:        dbPath,
		AlertDueSoonWindow: 48 * time.Hour,
		AlertNewWindow:     24 * time.Hour,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	container, err := NewContainer(ctx, cfg, logger)
	require.NoError(t, err)
	defer container.Close()

	userID := uuid.New()
	due := time.Now().UTC().Add(12 * time.Hour)

	created, err := container.CreateTaskHandler.Handle(ctx, commands.CreateTaskCommand{
		UserID:     userID,
		Title:      "Prepare demo",
		Priority:   "urgent",
		AssignedTo: &userID,
		DueDate:    &due,
	})
	require.NoError(t, err)

	dto, err := container.GetTaskHandler.Handle(ctx, queries.GetTaskQuery{
		UserID: userID,
		TaskID: created.TaskID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Prepare demo", dto.Title)
	assert.Equal(t, "urgent", dto.Priority)

	feed, err := container.GetAlertsHandler.Handle(ctx, alertingApp.GetAlertsQuery{UserID: userID})
	require.NoError(t, err)
	// Due in 12h and urgent: due-soon absorbs the urgent alert, and the
	// fresh assignment adds a new-assignment alert.
	assert.Equal(t, 2, feed.Summary.Total)
	assert.Equal(t, 1, feed.Summary.DueSoon)
	assert.Equal(t, 1, feed.Summary.Urgent)
	assert.Equal(t, 1, feed.Summary.New)
}
