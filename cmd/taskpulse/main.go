package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskpulse/adapter/api"
	"github.com/felixgeelhaar/taskpulse/internal/app"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskpulse/pkg/config"
	"github.com/felixgeelhaar/taskpulse/pkg/observability"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskpulse",
		Short:         "TaskPulse task tracking and alerting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	logCfg.ServiceVersion = version
	logger := observability.NewLogger(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to close container", "error", err)
		}
	}()

	// In development the API process drains the outbox itself so events
	// flow without a separate worker.
	if cfg.OutboxProcessorEnabled && cfg.IsDevelopment() {
		processor := outbox.NewProcessor(container.OutboxRepo, container.EventPublisher, outbox.ProcessorConfig{
			PollInterval:     cfg.OutboxPollInterval,
			BatchSize:        cfg.OutboxBatchSize,
			MaxRetries:       cfg.OutboxMaxRetries,
			RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
			RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
		}, logger)
		go processor.Start(ctx)
		defer processor.Stop()
	}

	taskHandler := api.NewTaskHandler(api.TaskHandlerConfig{
		CreateTask:   container.CreateTaskHandler,
		UpdateTask:   container.UpdateTaskHandler,
		CompleteTask: container.CompleteTaskHandler,
		AddComment:   container.AddCommentHandler,
		MarkRead:     container.MarkTaskReadHandler,
		GetTask:      container.GetTaskHandler,
		ListTasks:    container.ListTasksHandler,
		Logger:       logger,
	})
	alertHandler := api.NewAlertHandler(container.GetAlertsHandler, container.AcknowledgeAlertHandler, logger)

	var streamHandler *api.StreamHandler
	var presenceHandler *api.PresenceHandler
	if container.RedisNotifier != nil {
		streamHandler = api.NewStreamHandler(container.RedisNotifier, logger)
	}
	if container.PresenceStore != nil {
		presenceHandler = api.NewPresenceHandler(container.PresenceStore, logger)
	}

	serverCfg := api.ServerConfig{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
	if streamHandler != nil {
		// A write timeout would sever long-lived SSE connections.
		serverCfg.WriteTimeout = 0
	}

	server := api.NewServer(serverCfg, taskHandler, alertHandler, streamHandler, presenceHandler, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
