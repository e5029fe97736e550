// Package remote defines the contract with the central row store. The
// store is reachable over network calls that can fail or be offline at
// any time; every failure it returns must be a classified *Error so the
// sync engine can decide between queueing and surfacing exactly, without
// message-pattern heuristics.
package remote

import (
	"context"

	"github.com/google/uuid"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// Store is the row-level CRUD surface of the central data service. Every
// call is scoped by organization id; implementations must also enforce
// that scope server-side (the client is not trusted).
type Store interface {
	// ListWorkOrders returns all work orders for the organization.
	// A non-empty assignedTo restricts the result to orders assigned to
	// that user (technician role scope). Child collections are not
	// hydrated; use ListTimeLogs/ListParts.
	ListWorkOrders(ctx context.Context, orgID, assignedTo string) ([]domain.WorkOrder, error)

	// GetWorkOrderStatus fetches only the authoritative operational
	// status of one work order (conflict pre-check during drain).
	GetWorkOrderStatus(ctx context.Context, orgID string, id uuid.UUID) (domain.WorkOrderStatus, error)

	// CreateWorkOrder inserts a new work order row.
	CreateWorkOrder(ctx context.Context, orgID string, wo *domain.WorkOrder) error

	// PatchWorkOrder applies the given field updates to the work order
	// row and stamps updated_at.
	PatchWorkOrder(ctx context.Context, orgID string, id uuid.UUID, fields map[string]interface{}) error

	// InsertTimeLog inserts one time-log row. Rows carrying an
	// idempotency key already applied are silently deduplicated.
	InsertTimeLog(ctx context.Context, orgID string, entry *domain.WorkOrderTimeLog) error

	// InsertPart inserts one part-usage row, with the same dedup rule.
	InsertPart(ctx context.Context, orgID string, part *domain.WorkOrderPart) error

	// ReplaceTimeLogs replaces the full time-log set for a work order
	// (delete-then-insert, not merge).
	ReplaceTimeLogs(ctx context.Context, orgID string, workOrderID uuid.UUID, entries []domain.WorkOrderTimeLog) error

	// ReplaceParts replaces the full part set for a work order.
	ReplaceParts(ctx context.Context, orgID string, workOrderID uuid.UUID, parts []domain.WorkOrderPart) error

	// ListTimeLogs returns the time-log rows for the given work orders
	// in one batched query.
	ListTimeLogs(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderTimeLog, error)

	// ListParts returns the part rows for the given work orders in one
	// batched query.
	ListParts(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderPart, error)
}

// Watcher is the optional push-change subscription of the data service,
// keyed by table and organization. Stores that cannot push changes simply
// do not implement it.
type Watcher interface {
	// Watch invokes onChange with the changed table name until ctx is
	// done or the returned stop function is called.
	Watch(ctx context.Context, orgID string, onChange func(table string)) (stop func(), err error)
}
