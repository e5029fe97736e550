package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/engine"
)

// SyncHandler exposes the engine's connectivity flag and durable queue
type SyncHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(eng *engine.Engine, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		engine: eng,
		logger: logger,
	}
}

// Status reports the connectivity flag and the pending-mutation gauge
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.SyncStatusDTO{
		Online:           h.engine.Online(),
		PendingMutations: h.engine.PendingMutations(),
	})
}

// Drain triggers an immediate replay of the durable queue
func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SyncPendingMutations(r.Context()); err != nil {
		h.logger.Error("manual drain failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Drain failed")
		return
	}

	respondJSON(w, http.StatusOK, domain.SyncStatusDTO{
		Online:           h.engine.Online(),
		PendingMutations: h.engine.PendingMutations(),
	})
}

// connectivityRequest toggles the engine's connectivity flag
type connectivityRequest struct {
	Online bool `json:"online"`
}

// SetConnectivity flips the connectivity flag. Going from offline to
// online triggers a drain of the queued mutations.
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}

	h.engine.SetConnectivity(r.Context(), req.Online)

	respondJSON(w, http.StatusOK, domain.SyncStatusDTO{
		Online:           h.engine.Online(),
		PendingMutations: h.engine.PendingMutations(),
	})
}
