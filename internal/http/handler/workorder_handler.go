package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/billing"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/engine"
	"github.com/norvik-as/fieldops-api/internal/mapper"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

// WorkOrderHandler handles HTTP requests for work orders
type WorkOrderHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewWorkOrderHandler creates a new WorkOrderHandler instance
func NewWorkOrderHandler(eng *engine.Engine, logger *zap.Logger) *WorkOrderHandler {
	return &WorkOrderHandler{
		engine: eng,
		logger: logger,
	}
}

// List returns all cached work orders in the caller's scope
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders := h.engine.Cache().List()
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTOs(orders))
}

// GetByID returns one cached work order
func (h *WorkOrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	wo, found := h.engine.Cache().Get(id)
	if !found {
		respondJSON(w, http.StatusNotFound, domain.ErrorResponse{
			Error:   "Not Found",
			Message: "Work order not found",
		})
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// Create creates a new work order
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	wo, err := h.engine.AddWorkOrder(r.Context(), &req)
	if err != nil {
		h.respondEngineError(w, err, "failed to create work order")
		return
	}

	respondJSON(w, http.StatusCreated, mapper.ToWorkOrderDTO(wo))
}

// Update patches a work order's own fields
func (h *WorkOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.UpdateWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	patch := domain.WorkOrderPatch{
		Title:          req.Title,
		Description:    req.Description,
		CustomerName:   req.CustomerName,
		SiteAddress:    req.SiteAddress,
		JobType:        req.JobType,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		AssignedToName: req.AssignedToName,
	}

	if err := h.engine.UpdateWorkOrder(r.Context(), id, patch); err != nil {
		h.respondEngineError(w, err, "failed to update work order")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// AddWorkLog logs one block of technician time on a work order
func (h *WorkOrderHandler) AddWorkLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.AddWorkLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	entry := domain.TimeLogInput{Description: req.Description, Minutes: req.Minutes}
	if err := h.engine.AddWorkLog(r.Context(), id, entry); err != nil {
		h.respondEngineError(w, err, "failed to add time log")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// AddWorkPart logs one consumed part on a work order
func (h *WorkOrderHandler) AddWorkPart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.AddWorkPartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	part := domain.PartInput{PartName: req.PartName, Qty: req.Qty, TotalCost: req.TotalCost}
	if err := h.engine.AddWorkPart(r.Context(), id, part); err != nil {
		h.respondEngineError(w, err, "failed to add part")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// CompleteForBilling marks the order done with the technician sign-off
// and puts it on the billing queue
func (h *WorkOrderHandler) CompleteForBilling(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.CompleteForBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.engine.CompleteForBilling(r.Context(), id, req.Report, req.SignedName); err != nil {
		h.respondEngineError(w, err, "failed to complete work order for billing")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// SaveBillableDetails replaces the billable report, time log and parts
// while the order sits in READY
func (h *WorkOrderHandler) SaveBillableDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.SaveBillableDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.engine.SaveBillableDetails(r.Context(), id, &req); err != nil {
		h.respondEngineError(w, err, "failed to save billable details")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// SetBillingStatus moves the billing sub-state along one of its legal edges
func (h *WorkOrderHandler) SetBillingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid work order ID format",
		})
		return
	}

	var req domain.SetBillingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.engine.SetBillingStatus(r.Context(), id, req.Target); err != nil {
		h.respondEngineError(w, err, "failed to set billing status")
		return
	}

	wo, _ := h.engine.Cache().Get(id)
	respondJSON(w, http.StatusOK, mapper.ToWorkOrderDTO(&wo))
}

// respondEngineError maps engine and billing errors to HTTP status codes
func (h *WorkOrderHandler) respondEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, engine.ErrUserContextRequired):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, engine.ErrWorkOrderNotFound):
		respondWithError(w, http.StatusNotFound, "Work order not found")
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, engine.ErrEmptyPatch):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrReportRequired),
		errors.Is(err, billing.ErrTimeLogRequired),
		errors.Is(err, billing.ErrPartsRequired):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrDetailsLocked):
		respondWithError(w, http.StatusLocked, err.Error())
	case errors.Is(err, billing.ErrInvalidTransition), errors.Is(err, billing.ErrNotDone):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrRemoteRejected):
		h.respondRemoteError(w, err)
	default:
		h.logger.Error(logMsg, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondRemoteError maps a terminal central-store rejection by its kind
func (h *WorkOrderHandler) respondRemoteError(w http.ResponseWriter, err error) {
	switch {
	case remote.IsGuard(err):
		respondWithError(w, http.StatusLocked, err.Error())
	case remote.IsConflict(err):
		respondWithError(w, http.StatusConflict, err.Error())
	case remote.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case remote.KindOf(err) == remote.KindValidation:
		respondWithError(w, http.StatusBadRequest, err.Error())
	case remote.KindOf(err) == remote.KindAuthorization:
		respondWithError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("central store rejected mutation", zap.Error(err))
		respondWithError(w, http.StatusBadGateway, "The change was rejected by the server")
	}
}
