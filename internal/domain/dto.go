package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// MessageResponse represents a simple success message
type MessageResponse struct {
	Message string `json:"message"`
}

// WorkOrderDTO is the API representation of a work order
type WorkOrderDTO struct {
	ID                   uuid.UUID       `json:"id"`
	OrganizationID       string          `json:"organizationId"`
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	CustomerName         string          `json:"customerName,omitempty"`
	SiteAddress          string          `json:"siteAddress,omitempty"`
	JobType              JobType         `json:"jobType"`
	Status               WorkOrderStatus `json:"status"`
	Priority             Priority        `json:"priority"`
	AssignedTo           string          `json:"assignedTo,omitempty"`
	AssignedToName       string          `json:"assignedToName,omitempty"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
	TechnicianReport     string          `json:"technicianReport,omitempty"`
	TechnicianSignedBy   string          `json:"technicianSignedBy,omitempty"`
	TechnicianSignedName string          `json:"technicianSignedName,omitempty"`
	TechnicianSignedAt   *time.Time      `json:"technicianSignedAt,omitempty"`
	BillingStatus        BillingStatus   `json:"billingStatus"`
	BillingReadyAt       *time.Time      `json:"billingReadyAt,omitempty"`
	BillingSentAt        *time.Time      `json:"billingSentAt,omitempty"`
	BillingSentBy        string          `json:"billingSentBy,omitempty"`
	InvoicedAt           *time.Time      `json:"invoicedAt,omitempty"`
	InvoicedBy           string          `json:"invoicedBy,omitempty"`
	TimeLog              []TimeLogDTO    `json:"timeLog"`
	PartsUsed            []PartDTO       `json:"partsUsed"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// TimeLogDTO is the API representation of a time-log entry
type TimeLogDTO struct {
	ID           uuid.UUID `json:"id"`
	Description  string    `json:"description"`
	Minutes      int       `json:"minutes"`
	LoggedBy     string    `json:"loggedBy,omitempty"`
	LoggedByName string    `json:"loggedByName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PartDTO is the API representation of a part-usage entry
type PartDTO struct {
	ID        uuid.UUID       `json:"id"`
	PartName  string          `json:"partName"`
	Qty       int             `json:"qty"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	TotalCost decimal.Decimal `json:"totalCost"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SyncStatusDTO reports the engine's connectivity and pending-queue gauge
type SyncStatusDTO struct {
	Online           bool  `json:"online"`
	PendingMutations int64 `json:"pendingMutations"`
}

// CreateWorkOrderRequest creates a new work order
type CreateWorkOrderRequest struct {
	Title          string          `json:"title" validate:"required,max=200"`
	Description    string          `json:"description" validate:"max=5000"`
	CustomerName   string          `json:"customerName" validate:"max=200"`
	SiteAddress    string          `json:"siteAddress" validate:"max=500"`
	JobType        JobType         `json:"jobType" validate:"omitempty,oneof=FIELD WORKSHOP"`
	Status         WorkOrderStatus `json:"status" validate:"omitempty,oneof=OPEN WORKSHOP_RECEIVED WEB_PENDING"`
	Priority       Priority        `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH CRITICAL"`
	AssignedTo     string          `json:"assignedTo" validate:"max=100"`
	AssignedToName string          `json:"assignedToName" validate:"max=200"`
}

// UpdateWorkOrderRequest patches a work order's own fields
type UpdateWorkOrderRequest struct {
	Title          *string          `json:"title" validate:"omitempty,max=200"`
	Description    *string          `json:"description" validate:"omitempty,max=5000"`
	CustomerName   *string          `json:"customerName" validate:"omitempty,max=200"`
	SiteAddress    *string          `json:"siteAddress" validate:"omitempty,max=500"`
	JobType        *JobType         `json:"jobType" validate:"omitempty,oneof=FIELD WORKSHOP"`
	Status         *WorkOrderStatus `json:"status" validate:"omitempty"`
	Priority       *Priority        `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH CRITICAL"`
	AssignedTo     *string          `json:"assignedTo" validate:"omitempty,max=100"`
	AssignedToName *string          `json:"assignedToName" validate:"omitempty,max=200"`
}

// AddWorkLogRequest logs one block of technician time
type AddWorkLogRequest struct {
	Description string `json:"description" validate:"required,max=500"`
	Minutes     int    `json:"minutes" validate:"gte=0"`
}

// AddWorkPartRequest logs one consumed part
type AddWorkPartRequest struct {
	PartName  string          `json:"partName" validate:"required,max=200"`
	Qty       int             `json:"qty" validate:"gt=0"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// CompleteForBillingRequest marks the order done and signs it off
type CompleteForBillingRequest struct {
	Report     string `json:"report" validate:"required"`
	SignedName string `json:"signedName" validate:"required,max=200"`
}

// SaveBillableDetailsRequest replaces the billable report, time log and parts
type SaveBillableDetailsRequest struct {
	Report    string         `json:"report" validate:"required"`
	TimeLog   []TimeLogInput `json:"timeLog" validate:"required,min=1,dive"`
	PartsUsed []PartInput    `json:"partsUsed" validate:"required,min=1,dive"`
}

// SetBillingStatusRequest requests a billing state transition
type SetBillingStatusRequest struct {
	Target BillingStatus `json:"target" validate:"required,oneof=NONE READY SENT INVOICED"`
}
