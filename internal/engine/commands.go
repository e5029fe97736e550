package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/billing"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

// Every mutating command follows the same shape:
//
//  1. validate locally; on failure notify and return without touching
//     the cache or the queue
//  2. apply the change to the cache optimistically
//  3. build a replayable QueuedMutation
//  4. offline (or no store): append to the durable log and notify "queued"
//  5. online: execute immediately; a network-class failure falls back to
//     step 4, any other failure is surfaced and never queued

// AddWorkOrder creates a new work order and returns the optimistic entry
func (e *Engine) AddWorkOrder(ctx context.Context, req *domain.CreateWorkOrderRequest) (*domain.WorkOrder, error) {
	user, ok := e.actor(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if strings.TrimSpace(req.Title) == "" {
		e.notifier.Error("Validation failed", "a work order needs a title")
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	jobType := req.JobType
	if jobType == "" {
		jobType = domain.JobTypeField
	}
	status := req.Status
	if status == "" {
		if jobType == domain.JobTypeWorkshop {
			status = domain.StatusWorkshopReceived
		} else {
			status = domain.StatusOpen
		}
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !jobType.IsValid() || !status.IsValid() || !priority.IsValid() {
		e.notifier.Error("Validation failed", "unknown job type, status or priority")
		return nil, fmt.Errorf("%w: unknown job type, status or priority", ErrInvalidInput)
	}

	now := e.now()
	wo := domain.WorkOrder{
		OrganizationID: e.orgID,
		Title:          req.Title,
		Description:    req.Description,
		CustomerName:   req.CustomerName,
		SiteAddress:    req.SiteAddress,
		JobType:        jobType,
		Status:         status,
		Priority:       priority,
		AssignedTo:     req.AssignedTo,
		AssignedToName: req.AssignedToName,
		BillingStatus:  domain.BillingNone,
	}
	wo.ID = uuid.New()
	wo.CreatedAt = now
	wo.UpdatedAt = now

	e.cache.Add(wo)

	m, err := domain.NewQueuedMutation(e.orgID, wo.ID, domain.MutationAddWorkOrder,
		&domain.AddWorkOrderPayload{WorkOrder: wo}, user.UserID, user.DisplayName, now)
	if err != nil {
		return nil, err
	}
	if err := e.dispatch(ctx, m, "work order created", false); err != nil {
		return nil, err
	}
	return &wo, nil
}

// UpdateWorkOrder patches a work order's own fields
func (e *Engine) UpdateWorkOrder(ctx context.Context, id uuid.UUID, patch domain.WorkOrderPatch) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if patch.IsEmpty() {
		e.notifier.Error("Validation failed", "the update contains no field changes")
		return ErrEmptyPatch
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		e.notifier.Error("Validation failed", fmt.Sprintf("unknown status: %s", *patch.Status))
		return fmt.Errorf("%w: unknown status %s", ErrInvalidInput, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		e.notifier.Error("Validation failed", fmt.Sprintf("unknown priority: %s", *patch.Priority))
		return fmt.Errorf("%w: unknown priority %s", ErrInvalidInput, *patch.Priority)
	}
	if patch.JobType != nil && !patch.JobType.IsValid() {
		e.notifier.Error("Validation failed", fmt.Sprintf("unknown job type: %s", *patch.JobType))
		return fmt.Errorf("%w: unknown job type %s", ErrInvalidInput, *patch.JobType)
	}

	now := e.now()
	if !e.cache.ApplyOptimistic(id, patch, now) {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationUpdateWorkOrder,
		&domain.UpdateWorkOrderPayload{Patch: patch}, user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, m, "work order updated", false)
}

// AddWorkLog logs one block of technician time on a work order
func (e *Engine) AddWorkLog(ctx context.Context, id uuid.UUID, entry domain.TimeLogInput) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if strings.TrimSpace(entry.Description) == "" {
		e.notifier.Error("Validation failed", "a time log entry needs a description")
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if entry.Minutes < 0 {
		e.notifier.Error("Validation failed", "minutes cannot be negative")
		return fmt.Errorf("%w: minutes cannot be negative", ErrInvalidInput)
	}

	now := e.now()
	row := domain.WorkOrderTimeLog{
		OrganizationID: e.orgID,
		WorkOrderID:    id,
		Description:    entry.Description,
		Minutes:        entry.Minutes,
		LoggedBy:       user.UserID,
		LoggedByName:   user.DisplayName,
	}
	row.ID = uuid.New()
	row.CreatedAt = now
	row.UpdatedAt = now

	if !e.cache.Update(id, now, func(wo *domain.WorkOrder) {
		wo.TimeLog = append(wo.TimeLog, row)
	}) {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationAddWorkLog,
		&domain.AddWorkLogPayload{Entry: entry}, user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, m, "time log added", false)
}

// AddWorkPart logs one consumed part on a work order
func (e *Engine) AddWorkPart(ctx context.Context, id uuid.UUID, part domain.PartInput) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if strings.TrimSpace(part.PartName) == "" {
		e.notifier.Error("Validation failed", "a part entry needs a name")
		return fmt.Errorf("%w: part name is required", ErrInvalidInput)
	}
	if part.Qty < 1 {
		e.notifier.Error("Validation failed", "part quantity must be at least 1")
		return fmt.Errorf("%w: part quantity must be at least 1", ErrInvalidInput)
	}
	if part.TotalCost.IsNegative() {
		e.notifier.Error("Validation failed", "part cost cannot be negative")
		return fmt.Errorf("%w: part cost cannot be negative", ErrInvalidInput)
	}

	now := e.now()
	row := domain.WorkOrderPart{
		OrganizationID: e.orgID,
		WorkOrderID:    id,
		PartName:       part.PartName,
		Qty:            part.Qty,
		UnitCost:       unitCost(part.TotalCost, part.Qty),
		TotalCost:      part.TotalCost,
	}
	row.ID = uuid.New()
	row.CreatedAt = now
	row.UpdatedAt = now

	if !e.cache.Update(id, now, func(wo *domain.WorkOrder) {
		wo.PartsUsed = append(wo.PartsUsed, row)
	}) {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationAddWorkOrderPart,
		&domain.AddWorkPartPayload{Part: part}, user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, m, "part logged", false)
}

// CompleteForBilling marks the order done with the technician sign-off
// and puts it on the billing queue. Preconditions are strict and checked
// before anything is touched: failing any of them is a complete no-op.
func (e *Engine) CompleteForBilling(ctx context.Context, id uuid.UUID, report, signedName string) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	wo, found := e.cache.Get(id)
	if !found {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	if err := billing.ValidateCompletionAllowed(wo.BillingStatus); err != nil {
		e.notifier.Warning("Invalid billing transition", err.Error())
		return err
	}
	if err := billing.ValidateCompletion(report, len(wo.TimeLog), len(wo.PartsUsed)); err != nil {
		e.notifier.Error("Billing validation failed", err.Error())
		return err
	}
	if strings.TrimSpace(signedName) == "" {
		e.notifier.Error("Billing validation failed", "a signature name is required")
		return fmt.Errorf("%w: signature name is required", ErrInvalidInput)
	}

	now := e.now()
	e.cache.Update(id, now, func(wo *domain.WorkOrder) {
		wo.Status = domain.StatusDone
		wo.CompletedAt = &now
		wo.TechnicianReport = report
		wo.TechnicianSignedBy = user.UserID
		wo.TechnicianSignedName = signedName
		wo.TechnicianSignedAt = &now
		wo.BillingStatus = domain.BillingReady
		wo.BillingReadyAt = &now
	})

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationCompleteForBilling,
		&domain.CompleteForBillingPayload{Report: report, SignedName: signedName},
		user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, m, "work order completed and ready for billing", false)
}

// SaveBillableDetails replaces the billable report, time log and part set
// while the order sits in READY. Once sent, details are locked until the
// order is reopened.
func (e *Engine) SaveBillableDetails(ctx context.Context, id uuid.UUID, req *domain.SaveBillableDetailsRequest) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	wo, found := e.cache.Get(id)
	if !found {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	if err := billing.ValidateDetailsEditable(wo.BillingStatus); err != nil {
		e.notifier.Warning("Billing locked", err.Error())
		return err
	}
	if strings.TrimSpace(req.Report) == "" {
		e.notifier.Error("Billing validation failed", billing.ErrReportRequired.Error())
		return billing.ErrReportRequired
	}
	if len(req.TimeLog) == 0 {
		e.notifier.Error("Billing validation failed", billing.ErrTimeLogRequired.Error())
		return billing.ErrTimeLogRequired
	}
	if len(req.PartsUsed) == 0 {
		e.notifier.Error("Billing validation failed", billing.ErrPartsRequired.Error())
		return billing.ErrPartsRequired
	}

	now := e.now()
	e.cache.Update(id, now, func(wo *domain.WorkOrder) {
		wo.TechnicianReport = req.Report
		wo.TimeLog = make([]domain.WorkOrderTimeLog, len(req.TimeLog))
		for i, in := range req.TimeLog {
			row := domain.WorkOrderTimeLog{
				OrganizationID: e.orgID,
				WorkOrderID:    id,
				Description:    in.Description,
				Minutes:        in.Minutes,
				LoggedBy:       user.UserID,
				LoggedByName:   user.DisplayName,
			}
			row.ID = uuid.New()
			row.CreatedAt = now
			row.UpdatedAt = now
			wo.TimeLog[i] = row
		}
		wo.PartsUsed = make([]domain.WorkOrderPart, len(req.PartsUsed))
		for i, in := range req.PartsUsed {
			row := domain.WorkOrderPart{
				OrganizationID: e.orgID,
				WorkOrderID:    id,
				PartName:       in.PartName,
				Qty:            in.Qty,
				UnitCost:       unitCost(in.TotalCost, in.Qty),
				TotalCost:      in.TotalCost,
			}
			row.ID = uuid.New()
			row.CreatedAt = now
			row.UpdatedAt = now
			wo.PartsUsed[i] = row
		}
	})

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationSaveBillableDetails,
		&domain.SaveBillableDetailsPayload{Report: req.Report, TimeLog: req.TimeLog, PartsUsed: req.PartsUsed},
		user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	// Multi-row command: reconcile server-computed fields with a full
	// re-fetch after a confirmed apply
	return e.dispatch(ctx, m, "billable details saved", true)
}

// SetBillingStatus moves the billing sub-state along one of its legal
// edges; every other request is rejected with a warning and no state change
func (e *Engine) SetBillingStatus(ctx context.Context, id uuid.UUID, target domain.BillingStatus) error {
	user, ok := e.actor(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	wo, found := e.cache.Get(id)
	if !found {
		e.notifier.Error("Validation failed", "the work order was not found")
		return ErrWorkOrderNotFound
	}

	if err := billing.ValidateTransition(wo.BillingStatus, target); err != nil {
		e.notifier.Warning("Invalid billing transition", err.Error())
		return err
	}

	now := e.now()
	e.cache.Update(id, now, func(wo *domain.WorkOrder) {
		wo.BillingStatus = target
		switch target {
		case domain.BillingReady:
			wo.BillingSentAt = nil
			wo.BillingSentBy = ""
		case domain.BillingSent:
			wo.BillingSentAt = &now
			wo.BillingSentBy = user.UserID
		case domain.BillingInvoiced:
			wo.InvoicedAt = &now
			wo.InvoicedBy = user.UserID
		}
	})

	m, err := domain.NewQueuedMutation(e.orgID, id, domain.MutationSetBillingStatus,
		&domain.SetBillingStatusPayload{Target: target}, user.UserID, user.DisplayName, now)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, m, fmt.Sprintf("billing status set to %s", target), false)
}

// dispatch runs the offline/online decision for one freshly built
// mutation: queue it durably, or apply it immediately and fall back to
// the queue on a network-class failure
func (e *Engine) dispatch(ctx context.Context, m *domain.QueuedMutation, what string, reconcile bool) error {
	if e.store == nil || !e.Online() {
		return e.enqueue(ctx, m, what)
	}

	err := e.executor.Execute(ctx, m)
	if err == nil {
		e.notifier.Success("Saved", what)
		if e.PendingMutations() > 0 {
			// Opportunistic drain after a successful write; it ends
			// with a reconciling re-fetch of its own
			if derr := e.SyncPendingMutations(ctx); derr != nil {
				e.logger.Warn("opportunistic drain failed", zap.Error(derr))
			}
		} else if reconcile {
			if rerr := e.reload(ctx); rerr != nil {
				e.logger.Warn("failed to reconcile after write", zap.Error(rerr))
			}
		}
		return nil
	}

	if remote.IsRetryable(err) {
		// The offline-tolerance contract: connectivity failures are
		// never surfaced as hard errors
		e.logger.Info("remote write failed with network error, queueing",
			zap.String("mutation_type", string(m.Type)), zap.Error(err))
		return e.enqueue(ctx, m, what)
	}

	// Terminal failure: queueing would retry forever against a
	// guaranteed rejection
	if remote.IsGuard(err) {
		e.notifier.Warning("Billing locked", err.Error())
	} else {
		e.notifier.Error("Sync failed", err.Error())
	}
	e.logger.Warn("remote store rejected mutation",
		zap.String("mutation_type", string(m.Type)), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
}

// enqueue durably records the mutation and bumps the pending gauge
func (e *Engine) enqueue(ctx context.Context, m *domain.QueuedMutation, what string) error {
	if err := e.log.Append(ctx, m); err != nil {
		e.notifier.Error("Queue failed", "the change could not be stored locally")
		return err
	}
	e.pending.Add(1)
	e.notifier.Info("Change queued", fmt.Sprintf("%s; it will sync when you are back online", what))
	return nil
}
