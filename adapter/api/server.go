// Package api provides the HTTP API for taskpulse.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP API server.
type Server struct {
	mux      *http.ServeMux
	server   *http.Server
	logger   *slog.Logger
	tasks    *TaskHandler
	alerts   *AlertHandler
	stream   *StreamHandler
	presence *PresenceHandler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, tasks *TaskHandler, alerts *AlertHandler, stream *StreamHandler, presence *PresenceHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		tasks:    tasks,
		alerts:   alerts,
		stream:   stream,
		presence: presence,
	}
	s.registerRoutes()

	var handler http.Handler = s.mux
	handler = accessLog(logger, handler)
	handler = withRequestID(handler)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health check
	s.mux.HandleFunc("GET /health", s.handleHealth)

	authed := func(h http.HandlerFunc) http.Handler { return requireUser(h) }

	// Alerts
	s.mux.Handle("GET /api/v1/alerts", authed(s.alerts.GetAlerts))
	s.mux.Handle("PATCH /api/v1/alerts/{alertID}/read", authed(s.alerts.AcknowledgeAlert))

	// Tasks
	s.mux.Handle("POST /api/v1/tasks", authed(s.tasks.CreateTask))
	s.mux.Handle("GET /api/v1/tasks", authed(s.tasks.ListTasks))
	s.mux.Handle("GET /api/v1/tasks/{taskID}", authed(s.tasks.GetTask))
	s.mux.Handle("PATCH /api/v1/tasks/{taskID}", authed(s.tasks.UpdateTask))
	s.mux.Handle("POST /api/v1/tasks/{taskID}/complete", authed(s.tasks.CompleteTask))
	s.mux.Handle("POST /api/v1/tasks/{taskID}/comments", authed(s.tasks.AddComment))
	s.mux.Handle("POST /api/v1/tasks/{taskID}/read", authed(s.tasks.MarkTaskRead))

	// Real-time
	if s.stream != nil {
		s.mux.Handle("GET /api/v1/notifications/stream", authed(s.stream.Stream))
	}
	if s.presence != nil {
		s.mux.Handle("POST /api/v1/typing", authed(s.presence.SetTyping))
		s.mux.Handle("GET /api/v1/typing/{userID}", authed(s.presence.GetTyping))
		s.mux.Handle("POST /api/v1/presence/heartbeat", authed(s.presence.Heartbeat))
		s.mux.Handle("GET /api/v1/presence/{userID}", authed(s.presence.GetPresence))
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
