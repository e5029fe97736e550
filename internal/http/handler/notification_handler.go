package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/notify"
)

// NotificationHandler handles HTTP requests for sync outcome notifications.
// Notifications are in-memory and per-process; dismissal never touches the
// central store.
type NotificationHandler struct {
	emitter *notify.Emitter
	logger  *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(emitter *notify.Emitter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		emitter: emitter,
		logger:  logger,
	}
}

// List returns the current notifications, newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.emitter.List())
}

// Dismiss removes one notification by ID
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid notification ID format",
		})
		return
	}

	h.emitter.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes all notifications
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.emitter.Clear()
	w.WriteHeader(http.StatusNoContent)
}
