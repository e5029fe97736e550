package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// SyncPendingMutations drains the durable queue in FIFO order. It runs on
// the reconnect transition, opportunistically after successful writes,
// and from the background scheduler.
//
// A detected conflict drops only the conflicted mutation and keeps
// draining; any other failure stops the drain immediately so the
// remaining queue keeps its order. Either way the pending gauge is
// refreshed and the work-order set is re-fetched to reconcile.
func (e *Engine) SyncPendingMutations(ctx context.Context) error {
	if e.isDemo() || e.store == nil || !e.Online() {
		return nil
	}

	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	pending, err := e.log.ListPending(ctx, e.orgID)
	if err != nil {
		return err
	}

	applied := 0
	conflicts := 0
	var drainErr error

	for i := range pending {
		m := &pending[i]

		drop, cerr := e.conflictPrecheck(ctx, m)
		if cerr != nil {
			drainErr = cerr
			break
		}
		if drop {
			if err := e.log.Remove(ctx, m.ID); err != nil {
				drainErr = err
				break
			}
			conflicts++
			e.notifier.Error("Sync conflict",
				"a queued status change was discarded: the work order was already completed on the server")
			e.logger.Info("queued mutation dropped on conflict",
				zap.String("mutation_id", m.ID.String()),
				zap.String("work_order_id", m.WorkOrderID.String()))
			continue
		}

		if err := e.executor.Execute(ctx, m); err != nil {
			drainErr = err
			break
		}
		if err := e.log.Remove(ctx, m.ID); err != nil {
			drainErr = err
			break
		}
		applied++
	}

	if drainErr != nil {
		remaining := len(pending) - applied - conflicts
		// One aggregate notification, not one per remaining item
		e.notifier.Error("Sync failed",
			fmt.Sprintf("%d queued change(s) could not be synced and will be retried", remaining))
		e.logger.Warn("drain stopped early",
			zap.Int("applied", applied),
			zap.Int("remaining", remaining),
			zap.Error(drainErr))
	} else if applied > 0 {
		e.notifier.Success("Synced", fmt.Sprintf("%d queued change(s) applied", applied))
	}

	// Success or early stop, the gauge and the cache are reconciled
	if err := e.refreshPending(ctx); err != nil {
		e.logger.Warn("failed to refresh pending gauge", zap.Error(err))
	}
	if err := e.reload(ctx); err != nil {
		e.logger.Warn("failed to reload after drain", zap.Error(err))
	}

	return drainErr
}

// conflictPrecheck detects the stale-status conflict: a queued status
// change to anything other than DONE whose target order was completed on
// the server while this client was offline. Such a mutation must be
// dropped, not applied over the terminal state.
func (e *Engine) conflictPrecheck(ctx context.Context, m *domain.QueuedMutation) (bool, error) {
	if m.Type != domain.MutationUpdateWorkOrder {
		return false, nil
	}
	payload, err := m.DecodePayload()
	if err != nil {
		return false, err
	}
	p, ok := payload.(*domain.UpdateWorkOrderPayload)
	if !ok || p.Patch.Status == nil || *p.Patch.Status == domain.StatusDone {
		return false, nil
	}

	serverStatus, err := e.store.GetWorkOrderStatus(ctx, m.OrganizationID, m.WorkOrderID)
	if err != nil {
		return false, err
	}
	return serverStatus == domain.StatusDone, nil
}
