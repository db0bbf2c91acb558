package api

import (
	"log/slog"
	"net/http"

	alerting "github.com/felixgeelhaar/taskpulse/internal/alerting/application"
)

// AlertHandler serves the alert feed and acknowledgments.
type AlertHandler struct {
	getAlerts   *alerting.GetAlertsHandler
	acknowledge *alerting.AcknowledgeAlertHandler
	logger      *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(getAlerts *alerting.GetAlertsHandler, acknowledge *alerting.AcknowledgeAlertHandler, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{
		getAlerts:   getAlerts,
		acknowledge: acknowledge,
		logger:      logger,
	}
}

// GetAlerts handles GET /api/v1/alerts
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	feed, err := h.getAlerts.Handle(r.Context(), alerting.GetAlertsQuery{UserID: userID})
	if err != nil {
		h.logger.Error("failed to build alert feed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load alerts")
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

// AcknowledgeAlert handles PATCH /api/v1/alerts/{alertID}/read
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	result, err := h.acknowledge.Handle(r.Context(), alerting.AcknowledgeAlertCommand{
		UserID:  userID,
		AlertID: r.PathValue("alertID"),
	})
	if err != nil {
		h.logger.Error("failed to acknowledge alert", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to acknowledge alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": result.Message})
}
