package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

// Executor translates one queued mutation into concrete remote writes.
// It knows nothing about queueing, connectivity or the UI; it is the only
// code that knows which rows and columns each mutation touches.
//
// Authoritative timestamps are stamped here at replay time, never frozen
// into payloads at enqueue time.
type Executor struct {
	store remote.Store
	now   func() time.Time
}

// NewExecutor creates an executor over the given store and clock
func NewExecutor(store remote.Store, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{store: store, now: now}
}

// Execute applies one mutation to the remote store. Remote failures are
// returned as-is; classification is the caller's concern.
func (e *Executor) Execute(ctx context.Context, m *domain.QueuedMutation) error {
	payload, err := m.DecodePayload()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *domain.AddWorkOrderPayload:
		wo := p.WorkOrder
		wo.ID = m.WorkOrderID
		wo.OrganizationID = m.OrganizationID
		// Children are never created through this mutation type
		wo.TimeLog = nil
		wo.PartsUsed = nil
		return e.store.CreateWorkOrder(ctx, m.OrganizationID, &wo)

	case *domain.UpdateWorkOrderPayload:
		fields := patchFields(&p.Patch)
		if len(fields) == 0 {
			return nil
		}
		fields["updated_at"] = e.now().UTC()
		return e.store.PatchWorkOrder(ctx, m.OrganizationID, m.WorkOrderID, fields)

	case *domain.AddWorkLogPayload:
		key := m.IdempotencyKey
		entry := &domain.WorkOrderTimeLog{
			OrganizationID: m.OrganizationID,
			WorkOrderID:    m.WorkOrderID,
			Description:    p.Entry.Description,
			Minutes:        p.Entry.Minutes,
			LoggedBy:       m.ActorID,
			LoggedByName:   m.ActorName,
			IdempotencyKey: &key,
		}
		return e.store.InsertTimeLog(ctx, m.OrganizationID, entry)

	case *domain.AddWorkPartPayload:
		key := m.IdempotencyKey
		part := &domain.WorkOrderPart{
			OrganizationID: m.OrganizationID,
			WorkOrderID:    m.WorkOrderID,
			PartName:       p.Part.PartName,
			Qty:            p.Part.Qty,
			UnitCost:       unitCost(p.Part.TotalCost, p.Part.Qty),
			TotalCost:      p.Part.TotalCost,
			IdempotencyKey: &key,
		}
		return e.store.InsertPart(ctx, m.OrganizationID, part)

	case *domain.SaveBillableDetailsPayload:
		if m.ActorID == "" {
			return remote.NewError(remote.KindAuthorization, "save billable details",
				fmt.Errorf("an authenticated acting user is required"))
		}
		// Best-effort sequential: report first, then full replacement of
		// both child sets (delete-then-insert, not merge).
		fields := map[string]interface{}{
			"technician_report": p.Report,
			"updated_at":        e.now().UTC(),
		}
		if err := e.store.PatchWorkOrder(ctx, m.OrganizationID, m.WorkOrderID, fields); err != nil {
			return err
		}
		entries := make([]domain.WorkOrderTimeLog, len(p.TimeLog))
		for i, in := range p.TimeLog {
			entries[i] = domain.WorkOrderTimeLog{
				OrganizationID: m.OrganizationID,
				WorkOrderID:    m.WorkOrderID,
				Description:    in.Description,
				Minutes:        in.Minutes,
				LoggedBy:       m.ActorID,
				LoggedByName:   m.ActorName,
			}
		}
		if err := e.store.ReplaceTimeLogs(ctx, m.OrganizationID, m.WorkOrderID, entries); err != nil {
			return err
		}
		parts := make([]domain.WorkOrderPart, len(p.PartsUsed))
		for i, in := range p.PartsUsed {
			parts[i] = domain.WorkOrderPart{
				OrganizationID: m.OrganizationID,
				WorkOrderID:    m.WorkOrderID,
				PartName:       in.PartName,
				Qty:            in.Qty,
				UnitCost:       unitCost(in.TotalCost, in.Qty),
				TotalCost:      in.TotalCost,
			}
		}
		return e.store.ReplaceParts(ctx, m.OrganizationID, m.WorkOrderID, parts)

	case *domain.SetBillingStatusPayload:
		now := e.now().UTC()
		fields := map[string]interface{}{
			"billing_status": p.Target,
			"updated_at":     now,
		}
		switch p.Target {
		case domain.BillingReady:
			// Reopen: sent stamps are cleared so a later send re-stamps
			fields["billing_sent_at"] = nil
			fields["billing_sent_by"] = ""
		case domain.BillingSent:
			fields["billing_sent_at"] = now
			fields["billing_sent_by"] = m.ActorID
		case domain.BillingInvoiced:
			fields["invoiced_at"] = now
			fields["invoiced_by"] = m.ActorID
		}
		return e.store.PatchWorkOrder(ctx, m.OrganizationID, m.WorkOrderID, fields)

	case *domain.CompleteForBillingPayload:
		now := e.now().UTC()
		fields := map[string]interface{}{
			"status":                 domain.StatusDone,
			"completed_at":           now,
			"technician_report":      p.Report,
			"technician_signed_by":   m.ActorID,
			"technician_signed_name": p.SignedName,
			"technician_signed_at":   now,
			"billing_status":         domain.BillingReady,
			"billing_ready_at":       now,
			"updated_at":             now,
		}
		return e.store.PatchWorkOrder(ctx, m.OrganizationID, m.WorkOrderID, fields)

	default:
		return fmt.Errorf("unknown mutation type: %s", m.Type)
	}
}

// patchFields maps the non-nil patch fields onto remote columns. Child
// collections are not representable in a patch, so nothing is stripped
// here by accident: it is impossible to write them this way.
func patchFields(p *domain.WorkOrderPatch) map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.CustomerName != nil {
		fields["customer_name"] = *p.CustomerName
	}
	if p.SiteAddress != nil {
		fields["site_address"] = *p.SiteAddress
	}
	if p.JobType != nil {
		fields["job_type"] = *p.JobType
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Priority != nil {
		fields["priority"] = *p.Priority
	}
	if p.AssignedTo != nil {
		fields["assigned_to"] = *p.AssignedTo
	}
	if p.AssignedToName != nil {
		fields["assigned_to_name"] = *p.AssignedToName
	}
	return fields
}

// unitCost derives a per-unit cost when only a total is known
func unitCost(total decimal.Decimal, qty int) decimal.Decimal {
	if qty < 1 {
		qty = 1
	}
	return total.DivRound(decimal.NewFromInt(int64(qty)), 2)
}
