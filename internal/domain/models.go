package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// JobType classifies where a work order is carried out
type JobType string

const (
	JobTypeField    JobType = "FIELD"
	JobTypeWorkshop JobType = "WORKSHOP"
)

// IsValid reports whether the job type is a known value
func (j JobType) IsValid() bool {
	switch j {
	case JobTypeField, JobTypeWorkshop:
		return true
	}
	return false
}

// WorkOrderStatus represents the operational status of a work order
type WorkOrderStatus string

const (
	StatusOpen                    WorkOrderStatus = "OPEN"
	StatusAssigned                WorkOrderStatus = "ASSIGNED"
	StatusTraveling               WorkOrderStatus = "TRAVELING"
	StatusInProgress              WorkOrderStatus = "IN_PROGRESS"
	StatusDone                    WorkOrderStatus = "DONE"
	StatusCanceled                WorkOrderStatus = "CANCELED"
	StatusWorkshopReceived        WorkOrderStatus = "WORKSHOP_RECEIVED"
	StatusWorkshopTroubleshooting WorkOrderStatus = "WORKSHOP_TROUBLESHOOTING"
	StatusWorkshopWaitingParts    WorkOrderStatus = "WORKSHOP_WAITING_PARTS"
	StatusWorkshopReady           WorkOrderStatus = "WORKSHOP_READY"
	StatusWebPending              WorkOrderStatus = "WEB_PENDING"
)

// IsValid reports whether the status is a known value
func (s WorkOrderStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusTraveling, StatusInProgress,
		StatusDone, StatusCanceled, StatusWorkshopReceived,
		StatusWorkshopTroubleshooting, StatusWorkshopWaitingParts,
		StatusWorkshopReady, StatusWebPending:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the operational lifecycle
func (s WorkOrderStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusCanceled
}

// Priority represents the urgency of a work order
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValid reports whether the priority is a known value
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// BillingStatus represents the invoice-queue progression of a work order.
// It is a secondary state machine gated by the operational status:
// it can only leave NONE once the work order is DONE.
type BillingStatus string

const (
	BillingNone     BillingStatus = "NONE"
	BillingReady    BillingStatus = "READY"
	BillingSent     BillingStatus = "SENT"
	BillingInvoiced BillingStatus = "INVOICED"
)

// IsValid reports whether the billing status is a known value
func (b BillingStatus) IsValid() bool {
	switch b {
	case BillingNone, BillingReady, BillingSent, BillingInvoiced:
		return true
	}
	return false
}

// WorkOrder is the central entity: one unit of billable field or workshop service
type WorkOrder struct {
	BaseModel
	OrganizationID string          `gorm:"type:varchar(100);not null;index;column:organization_id"`
	Title          string          `gorm:"type:varchar(200);not null"`
	Description    string          `gorm:"type:text"`
	CustomerName   string          `gorm:"type:varchar(200);column:customer_name"`
	SiteAddress    string          `gorm:"type:varchar(500);column:site_address"`
	JobType        JobType         `gorm:"type:varchar(20);not null;default:'FIELD';column:job_type"`
	Status         WorkOrderStatus `gorm:"type:varchar(50);not null;index"`
	Priority       Priority        `gorm:"type:varchar(20);not null;default:'NORMAL'"`

	AssignedTo     string `gorm:"type:varchar(100);index;column:assigned_to"`
	AssignedToName string `gorm:"type:varchar(200);column:assigned_to_name"`

	CompletedAt *time.Time `gorm:"column:completed_at"`

	// Technician sign-off, all null until completion
	TechnicianReport     string     `gorm:"type:text;column:technician_report"`
	TechnicianSignedBy   string     `gorm:"type:varchar(100);column:technician_signed_by"`
	TechnicianSignedName string     `gorm:"type:varchar(200);column:technician_signed_name"`
	TechnicianSignedAt   *time.Time `gorm:"column:technician_signed_at"`

	// Billing sub-state
	BillingStatus  BillingStatus `gorm:"type:varchar(20);not null;default:'NONE';index;column:billing_status"`
	BillingReadyAt *time.Time    `gorm:"column:billing_ready_at"`
	BillingSentAt  *time.Time    `gorm:"column:billing_sent_at"`
	BillingSentBy  string        `gorm:"type:varchar(100);column:billing_sent_by"`
	InvoicedAt     *time.Time    `gorm:"column:invoiced_at"`
	InvoicedBy     string        `gorm:"type:varchar(100);column:invoiced_by"`

	// Child collections, persisted as separate rows
	TimeLog   []WorkOrderTimeLog `gorm:"foreignKey:WorkOrderID;constraint:OnDelete:CASCADE"`
	PartsUsed []WorkOrderPart    `gorm:"foreignKey:WorkOrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for WorkOrder
func (WorkOrder) TableName() string {
	return "work_orders"
}

// WorkOrderTimeLog is one logged block of technician time on a work order
type WorkOrderTimeLog struct {
	BaseModel
	OrganizationID string    `gorm:"type:varchar(100);not null;index;column:organization_id"`
	WorkOrderID    uuid.UUID `gorm:"type:uuid;not null;index;column:work_order_id"`
	Description    string    `gorm:"type:varchar(500);not null"`
	Minutes        int       `gorm:"not null;default:0"`
	LoggedBy       string    `gorm:"type:varchar(100);column:logged_by"`
	LoggedByName   string    `gorm:"type:varchar(200);column:logged_by_name"`
	// Dedup key for queued-insert replay; unique per organization when set
	IdempotencyKey *uuid.UUID `gorm:"type:uuid;column:idempotency_key;uniqueIndex:idx_time_logs_idem"`
}

// TableName returns the table name for WorkOrderTimeLog
func (WorkOrderTimeLog) TableName() string {
	return "work_order_time_logs"
}

// WorkOrderPart is one part consumed on a work order
type WorkOrderPart struct {
	BaseModel
	OrganizationID string          `gorm:"type:varchar(100);not null;index;column:organization_id"`
	WorkOrderID    uuid.UUID       `gorm:"type:uuid;not null;index;column:work_order_id"`
	PartName       string          `gorm:"type:varchar(200);not null;column:part_name"`
	Qty            int             `gorm:"not null;default:1"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;column:unit_cost"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;column:total_cost"`
	IdempotencyKey *uuid.UUID      `gorm:"type:uuid;column:idempotency_key;uniqueIndex:idx_parts_idem"`
}

// TableName returns the table name for WorkOrderPart
func (WorkOrderPart) TableName() string {
	return "work_order_parts"
}

// NotificationType classifies the severity of a UI notification
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is an ephemeral, UI-facing outcome report.
// Notifications have no server representation; dismissal is local-only.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
}
