// Package app wires the application's dependencies together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	alertingApp "github.com/felixgeelhaar/taskpulse/internal/alerting/application"
	"github.com/felixgeelhaar/taskpulse/internal/notify"
	sharedApplication "github.com/felixgeelhaar/taskpulse/internal/shared/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database/postgres" // Register Postgres driver
	_ "github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/commands"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/application/queries"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	TaskRepo   task.Repository
	OutboxRepo outbox.Repository

	// Publishers
	EventPublisher eventbus.Publisher

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Task command handlers
	CreateTaskHandler   *commands.CreateTaskHandler
	UpdateTaskHandler   *commands.UpdateTaskHandler
	CompleteTaskHandler *commands.CompleteTaskHandler
	AddCommentHandler   *commands.AddCommentHandler
	MarkTaskReadHandler *commands.MarkTaskReadHandler

	// Task query handlers
	GetTaskHandler   *queries.GetTaskHandler
	ListTasksHandler *queries.ListTasksHandler

	// Alerting
	GetAlertsHandler        *alertingApp.GetAlertsHandler
	AcknowledgeAlertHandler *alertingApp.AcknowledgeAlertHandler

	// Notifications
	Notifier      notify.Notifier
	RedisNotifier *notify.RedisNotifier
	PresenceStore *notify.PresenceStore
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	// Connect to the database
	conn, err := database.NewConnection(ctx, database.Config{
		URL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", c.DBDriver)

	if err := migrations.Run(ctx, conn, logger); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Connect to Redis (optional in development)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				_ = conn.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, notifications disabled", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					_ = conn.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, notifications disabled", "error", err)
			} else {
				c.RedisClient = redisClient
				logger.Info("connected to Redis")
			}
		}
	}

	// Create repositories
	factory := NewRepositoryFactory(conn)
	c.TaskRepo, err = factory.TaskRepository()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.OutboxRepo, err = factory.OutboxRepository()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.UnitOfWork = database.NewUnitOfWork(conn)

	// Create event publisher
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = publisher
	}

	// Create task command handlers
	c.CreateTaskHandler = commands.NewCreateTaskHandler(c.TaskRepo, c.OutboxRepo, c.UnitOfWork)
	c.UpdateTaskHandler = commands.NewUpdateTaskHandler(c.TaskRepo, c.OutboxRepo, c.UnitOfWork)
	c.CompleteTaskHandler = commands.NewCompleteTaskHandler(c.TaskRepo, c.OutboxRepo, c.UnitOfWork)
	c.AddCommentHandler = commands.NewAddCommentHandler(c.TaskRepo, c.OutboxRepo, c.UnitOfWork)
	c.MarkTaskReadHandler = commands.NewMarkTaskReadHandler(c.TaskRepo)

	// Create task query handlers
	c.GetTaskHandler = queries.NewGetTaskHandler(c.TaskRepo)
	c.ListTasksHandler = queries.NewListTasksHandler(c.TaskRepo)

	// Create alert handlers
	c.GetAlertsHandler = alertingApp.NewGetAlertsHandler(c.TaskRepo, cfg.AlertDueSoonWindow, cfg.AlertNewWindow)
	c.AcknowledgeAlertHandler = alertingApp.NewAcknowledgeAlertHandler(c.TaskRepo)

	// Create notification services
	if c.RedisClient != nil {
		c.RedisNotifier = notify.NewRedisNotifier(c.RedisClient, logger)
		c.Notifier = c.RedisNotifier
		c.PresenceStore = notify.NewPresenceStore(c.RedisClient, cfg.TypingTTL)
	} else {
		c.Notifier = notify.NoopNotifier{}
	}

	return c, nil
}

// Close releases all resources held by the container.
func (c *Container) Close() error {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Error("failed to close event publisher", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Error("failed to close Redis client", "error", err)
		}
	}
	if c.DBConn != nil {
		return c.DBConn.Close()
	}
	return nil
}
