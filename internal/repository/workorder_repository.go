// Package repository implements the remote row-store contract on a
// relational database. It is the server-facing half of the system: every
// query is organization scoped, billing transitions are re-validated
// here regardless of what the client already checked, and insert-style
// replays are deduplicated by idempotency key.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/norvik-as/fieldops-api/internal/billing"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

// WorkOrderRepository is the gorm-backed implementation of remote.Store
type WorkOrderRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWorkOrderRepository creates a repository over the given database
func NewWorkOrderRepository(db *gorm.DB, logger *zap.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{db: db, logger: logger}
}

// ListWorkOrders returns the organization's work orders, newest first.
// A non-empty assignedTo restricts to orders assigned to that user.
func (r *WorkOrderRepository) ListWorkOrders(ctx context.Context, orgID, assignedTo string) ([]domain.WorkOrder, error) {
	var orders []domain.WorkOrder
	q := scoped(r.db.WithContext(ctx), orgID)
	if assignedTo != "" {
		q = q.Where("assigned_to = ?", assignedTo)
	}
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, classify("list work orders", err)
	}
	return orders, nil
}

// GetWorkOrderStatus fetches only the operational status of one order
func (r *WorkOrderRepository) GetWorkOrderStatus(ctx context.Context, orgID string, id uuid.UUID) (domain.WorkOrderStatus, error) {
	var wo domain.WorkOrder
	err := scoped(r.db.WithContext(ctx), orgID).
		Select("status").
		Take(&wo, "id = ?", id).Error
	if err != nil {
		return "", classify("get work order status", err)
	}
	return wo.Status, nil
}

// CreateWorkOrder inserts a new work order row
func (r *WorkOrderRepository) CreateWorkOrder(ctx context.Context, orgID string, wo *domain.WorkOrder) error {
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	wo.OrganizationID = orgID
	if err := r.db.WithContext(ctx).Create(wo).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Replayed create: the row already exists, which is the
			// outcome the mutation wanted
			return nil
		}
		return classify("create work order", err)
	}
	r.logger.Info("work order created",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("organization_id", orgID))
	return nil
}

// PatchWorkOrder applies field updates to one row. Billing fields are
// re-validated against the current row state here: the client's own
// guard is convenience, not authority.
func (r *WorkOrderRepository) PatchWorkOrder(ctx context.Context, orgID string, id uuid.UUID, fields map[string]interface{}) error {
	var current domain.WorkOrder
	err := scoped(r.db.WithContext(ctx), orgID).Take(&current, "id = ?", id).Error
	if err != nil {
		return classify("patch work order", err)
	}

	if err := r.checkBillingGuard(&current, fields); err != nil {
		return err
	}

	err = scoped(r.db.WithContext(ctx).Model(&domain.WorkOrder{}), orgID).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return classify("patch work order", err)
	}
	return nil
}

// checkBillingGuard mirrors the billing lifecycle rules server-side
func (r *WorkOrderRepository) checkBillingGuard(current *domain.WorkOrder, fields map[string]interface{}) error {
	target, hasBilling := billingStatusField(fields)

	if hasBilling && target != current.BillingStatus {
		if err := billing.ValidateTransition(current.BillingStatus, target); err != nil {
			return remote.NewError(remote.KindGuard, "patch work order", err)
		}
		if current.BillingStatus == domain.BillingNone && target == domain.BillingReady {
			// Billing starts only when the same patch completes the
			// order or the order is already done
			newStatus, hasStatus := statusField(fields)
			done := current.Status == domain.StatusDone || (hasStatus && newStatus == domain.StatusDone)
			if !done {
				return remote.NewError(remote.KindGuard, "patch work order", billing.ErrNotDone)
			}
		}
	}

	// A report edit outside the completion patch is a billable-details
	// edit; those are locked unless the order sits in READY
	if _, editsReport := fields["technician_report"]; editsReport && !hasBilling {
		if err := billing.ValidateDetailsEditable(current.BillingStatus); err != nil {
			return remote.NewError(remote.KindGuard, "patch work order", err)
		}
	}

	return nil
}

// InsertTimeLog inserts one time-log row, deduplicating replays by
// idempotency key
func (r *WorkOrderRepository) InsertTimeLog(ctx context.Context, orgID string, entry *domain.WorkOrderTimeLog) error {
	entry.OrganizationID = orgID
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.IdempotencyKey != nil {
		var count int64
		err := scoped(r.db.WithContext(ctx).Model(&domain.WorkOrderTimeLog{}), orgID).
			Where("idempotency_key = ?", *entry.IdempotencyKey).
			Count(&count).Error
		if err != nil {
			return classify("insert time log", err)
		}
		if count > 0 {
			return nil
		}
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return classify("insert time log", err)
	}
	return nil
}

// InsertPart inserts one part row, with the same dedup rule
func (r *WorkOrderRepository) InsertPart(ctx context.Context, orgID string, part *domain.WorkOrderPart) error {
	part.OrganizationID = orgID
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	if part.IdempotencyKey != nil {
		var count int64
		err := scoped(r.db.WithContext(ctx).Model(&domain.WorkOrderPart{}), orgID).
			Where("idempotency_key = ?", *part.IdempotencyKey).
			Count(&count).Error
		if err != nil {
			return classify("insert part", err)
		}
		if count > 0 {
			return nil
		}
	}
	if err := r.db.WithContext(ctx).Create(part).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return classify("insert part", err)
	}
	return nil
}

// ReplaceTimeLogs replaces the full time-log set for one work order:
// delete then insert, atomically. Only legal while the order's billing
// status is READY (billable details are locked once sent).
func (r *WorkOrderRepository) ReplaceTimeLogs(ctx context.Context, orgID string, workOrderID uuid.UUID, entries []domain.WorkOrderTimeLog) error {
	if err := r.checkDetailsEditable(ctx, orgID, workOrderID, "replace time logs"); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scopedWorkOrder(tx, orgID, workOrderID).Delete(&domain.WorkOrderTimeLog{}).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].OrganizationID = orgID
			entries[i].WorkOrderID = workOrderID
			if entries[i].ID == uuid.Nil {
				entries[i].ID = uuid.New()
			}
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		return classify("replace time logs", err)
	}
	return nil
}

// ReplaceParts replaces the full part set for one work order
func (r *WorkOrderRepository) ReplaceParts(ctx context.Context, orgID string, workOrderID uuid.UUID, parts []domain.WorkOrderPart) error {
	if err := r.checkDetailsEditable(ctx, orgID, workOrderID, "replace parts"); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scopedWorkOrder(tx, orgID, workOrderID).Delete(&domain.WorkOrderPart{}).Error; err != nil {
			return err
		}
		for i := range parts {
			parts[i].OrganizationID = orgID
			parts[i].WorkOrderID = workOrderID
			if parts[i].ID == uuid.Nil {
				parts[i].ID = uuid.New()
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return tx.Create(&parts).Error
	})
	if err != nil {
		return classify("replace parts", err)
	}
	return nil
}

func (r *WorkOrderRepository) checkDetailsEditable(ctx context.Context, orgID string, workOrderID uuid.UUID, op string) error {
	var current domain.WorkOrder
	err := scoped(r.db.WithContext(ctx), orgID).
		Select("billing_status").
		Take(&current, "id = ?", workOrderID).Error
	if err != nil {
		return classify(op, err)
	}
	if err := billing.ValidateDetailsEditable(current.BillingStatus); err != nil {
		return remote.NewError(remote.KindGuard, op, err)
	}
	return nil
}

// ListTimeLogs returns the time-log rows for the given work orders in
// one batched query
func (r *WorkOrderRepository) ListTimeLogs(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderTimeLog, error) {
	if len(workOrderIDs) == 0 {
		return nil, nil
	}
	var out []domain.WorkOrderTimeLog
	err := scoped(r.db.WithContext(ctx), orgID).
		Where("work_order_id IN ?", workOrderIDs).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify("list time logs", err)
	}
	return out, nil
}

// ListParts returns the part rows for the given work orders in one
// batched query
func (r *WorkOrderRepository) ListParts(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderPart, error) {
	if len(workOrderIDs) == 0 {
		return nil, nil
	}
	var out []domain.WorkOrderPart
	err := scoped(r.db.WithContext(ctx), orgID).
		Where("work_order_id IN ?", workOrderIDs).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify("list parts", err)
	}
	return out, nil
}

// billingStatusField extracts a billing_status value from a patch
func billingStatusField(fields map[string]interface{}) (domain.BillingStatus, bool) {
	v, ok := fields["billing_status"]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case domain.BillingStatus:
		return t, true
	case string:
		return domain.BillingStatus(t), true
	default:
		return domain.BillingStatus(fmt.Sprintf("%v", t)), true
	}
}

// statusField extracts a status value from a patch
func statusField(fields map[string]interface{}) (domain.WorkOrderStatus, bool) {
	v, ok := fields["status"]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case domain.WorkOrderStatus:
		return t, true
	case string:
		return domain.WorkOrderStatus(t), true
	default:
		return domain.WorkOrderStatus(fmt.Sprintf("%v", t)), true
	}
}
