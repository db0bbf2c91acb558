package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/notify"
)

const defaultPresenceTTL = 60 * time.Second

// PresenceHandler exposes typing indicators and online presence.
type PresenceHandler struct {
	store  *notify.PresenceStore
	logger *slog.Logger
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(store *notify.PresenceStore, logger *slog.Logger) *PresenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceHandler{store: store, logger: logger}
}

type setTypingRequest struct {
	To     uuid.UUID `json:"to"`
	Typing bool      `json:"typing"`
}

// SetTyping handles POST /api/v1/typing
func (h *PresenceHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req setTypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.To == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Recipient is required")
		return
	}

	if err := h.store.SetTyping(r.Context(), userID, req.To, req.Typing); err != nil {
		h.logger.Error("failed to set typing state", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to set typing state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"typing": req.Typing})
}

// GetTyping handles GET /api/v1/typing/{userID}
func (h *PresenceHandler) GetTyping(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	peer, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	typing, err := h.store.IsTyping(r.Context(), peer, userID)
	if err != nil {
		h.logger.Error("failed to read typing state", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read typing state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"typing": typing})
}

// Heartbeat handles POST /api/v1/presence/heartbeat
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	if err := h.store.Heartbeat(r.Context(), userID, defaultPresenceTTL); err != nil {
		h.logger.Error("failed to record heartbeat", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "heartbeat recorded"})
}

// GetPresence handles GET /api/v1/presence/{userID}
func (h *PresenceHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	peer, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	online, err := h.store.IsOnline(r.Context(), peer)
	if err != nil {
		h.logger.Error("failed to read presence", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read presence")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"online": online})
}
