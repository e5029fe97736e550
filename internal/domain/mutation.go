package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MutationType is the closed set of replayable work-order mutations.
// Every change to a work order is representable as exactly one of these;
// the executor matches them exhaustively.
type MutationType string

const (
	MutationAddWorkOrder        MutationType = "ADD_WORK_ORDER"
	MutationUpdateWorkOrder     MutationType = "UPDATE_WORK_ORDER"
	MutationAddWorkLog          MutationType = "ADD_WORK_LOG"
	MutationAddWorkOrderPart    MutationType = "ADD_WORK_ORDER_PART"
	MutationSaveBillableDetails MutationType = "SAVE_BILLABLE_DETAILS"
	MutationSetBillingStatus    MutationType = "SET_BILLING_STATUS"
	MutationCompleteForBilling  MutationType = "COMPLETE_FOR_BILLING"
)

// IsValid reports whether the mutation type is a known value
func (m MutationType) IsValid() bool {
	switch m {
	case MutationAddWorkOrder, MutationUpdateWorkOrder, MutationAddWorkLog,
		MutationAddWorkOrderPart, MutationSaveBillableDetails,
		MutationSetBillingStatus, MutationCompleteForBilling:
		return true
	}
	return false
}

// QueuedMutation is one durably recorded, not-yet-applied change to the
// remote store. Once appended it is immutable; it is removed only after a
// confirmed remote apply or an accepted conflict outcome.
//
// CreatedAt is a local clock value used only for FIFO ordering, never as an
// authority timestamp. ActorID/ActorName are frozen at enqueue so replay
// attributes the change to the user who issued it, not whoever drains.
type QueuedMutation struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrganizationID string          `gorm:"type:varchar(100);not null;index;column:organization_id"`
	WorkOrderID    uuid.UUID       `gorm:"type:uuid;not null;index;column:work_order_id"`
	Type           MutationType    `gorm:"type:varchar(50);not null"`
	Payload        json.RawMessage `gorm:"type:text;not null"`
	ActorID        string          `gorm:"type:varchar(100);column:actor_id"`
	ActorName      string          `gorm:"type:varchar(200);column:actor_name"`
	IdempotencyKey uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex;column:idempotency_key"`
	CreatedAt      time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for QueuedMutation
func (QueuedMutation) TableName() string {
	return "queued_mutations"
}

// WorkOrderPatch is a partial update to a work order's own row. Child
// collections are deliberately not representable here; they are only ever
// written through their own mutation types.
type WorkOrderPatch struct {
	Title          *string          `json:"title,omitempty"`
	Description    *string          `json:"description,omitempty"`
	CustomerName   *string          `json:"customerName,omitempty"`
	SiteAddress    *string          `json:"siteAddress,omitempty"`
	JobType        *JobType         `json:"jobType,omitempty"`
	Status         *WorkOrderStatus `json:"status,omitempty"`
	Priority       *Priority        `json:"priority,omitempty"`
	AssignedTo     *string          `json:"assignedTo,omitempty"`
	AssignedToName *string          `json:"assignedToName,omitempty"`
}

// IsEmpty reports whether the patch carries no field updates
func (p *WorkOrderPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CustomerName == nil &&
		p.SiteAddress == nil && p.JobType == nil && p.Status == nil &&
		p.Priority == nil && p.AssignedTo == nil && p.AssignedToName == nil
}

// TimeLogInput is the replayable shape of one time-log entry
type TimeLogInput struct {
	Description string `json:"description"`
	Minutes     int    `json:"minutes"`
}

// PartInput is the replayable shape of one part-usage entry
type PartInput struct {
	PartName  string          `json:"partName"`
	Qty       int             `json:"qty"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// AddWorkOrderPayload creates a new work order
type AddWorkOrderPayload struct {
	WorkOrder WorkOrder `json:"workOrder"`
}

// UpdateWorkOrderPayload patches a work order's own fields
type UpdateWorkOrderPayload struct {
	Patch WorkOrderPatch `json:"patch"`
}

// AddWorkLogPayload inserts one time-log row
type AddWorkLogPayload struct {
	Entry TimeLogInput `json:"entry"`
}

// AddWorkPartPayload inserts one part-usage row
type AddWorkPartPayload struct {
	Part PartInput `json:"part"`
}

// SaveBillableDetailsPayload replaces the report text and the full time-log
// and part sets (delete-then-insert, not merge)
type SaveBillableDetailsPayload struct {
	Report    string         `json:"report"`
	TimeLog   []TimeLogInput `json:"timeLog"`
	PartsUsed []PartInput    `json:"partsUsed"`
}

// SetBillingStatusPayload moves the billing sub-state to the target state
type SetBillingStatusPayload struct {
	Target BillingStatus `json:"target"`
}

// CompleteForBillingPayload marks the order DONE with the technician
// sign-off and puts it on the billing queue in one composite patch
type CompleteForBillingPayload struct {
	Report     string `json:"report"`
	SignedName string `json:"signedName"`
}

// NewQueuedMutation builds an immutable queue record for the given payload.
// The payload must be one of the *Payload types matching typ.
func NewQueuedMutation(orgID string, workOrderID uuid.UUID, typ MutationType, payload interface{}, actorID, actorName string, createdAt time.Time) (*QueuedMutation, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("unknown mutation type: %s", typ)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mutation payload: %w", err)
	}
	return &QueuedMutation{
		ID:             uuid.New(),
		OrganizationID: orgID,
		WorkOrderID:    workOrderID,
		Type:           typ,
		Payload:        raw,
		ActorID:        actorID,
		ActorName:      actorName,
		IdempotencyKey: uuid.New(),
		CreatedAt:      createdAt,
	}, nil
}

// DecodePayload unmarshals the payload into the concrete type for the
// mutation's variant. The switch is exhaustive over MutationType; an
// unknown type is an error, never silently skipped.
func (m *QueuedMutation) DecodePayload() (interface{}, error) {
	switch m.Type {
	case MutationAddWorkOrder:
		var p AddWorkOrderPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationUpdateWorkOrder:
		var p UpdateWorkOrderPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationAddWorkLog:
		var p AddWorkLogPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationAddWorkOrderPart:
		var p AddWorkPartPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationSaveBillableDetails:
		var p SaveBillableDetailsPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationSetBillingStatus:
		var p SetBillingStatusPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	case MutationCompleteForBilling:
		var p CompleteForBillingPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown mutation type: %s", m.Type)
	}
}
