package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/taskpulse/internal/notify"
)

const streamHeartbeatInterval = 30 * time.Second

// StreamHandler pushes notifications to connected clients over
// server-sent events, backed by a Redis pub/sub subscription per user.
type StreamHandler struct {
	notifier *notify.RedisNotifier
	logger   *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(notifier *notify.RedisNotifier, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{notifier: notifier, logger: logger}
}

// Stream handles GET /api/v1/notifications/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	pubsub := h.notifier.Subscribe(r.Context(), userID)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Warn("failed to close subscription", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial comment line so proxies commit the response headers.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	ch := pubsub.Channel()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg.Payload)
			flusher.Flush()
		}
	}
}
