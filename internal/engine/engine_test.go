package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/cache"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/engine"
	"github.com/norvik-as/fieldops-api/internal/identity"
	"github.com/norvik-as/fieldops-api/internal/mutationlog"
	"github.com/norvik-as/fieldops-api/internal/notify"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

const testOrg = "org-1"

// fakeStore is an in-memory remote.Store with per-operation failure
// injection. All failures are classified remote errors, like the real
// repository.
type fakeStore struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*domain.WorkOrder
	order   []uuid.UUID
	logs    []domain.WorkOrderTimeLog
	parts   []domain.WorkOrderPart
	patches []map[string]interface{}

	// recorded ListWorkOrders scope arguments
	listScopes []string

	errCreate        error
	errPatch         error
	errInsertTimeLog error
	errInsertPart    error
	errGetStatus     error
	errList          error
}

func newFakeStore(seed ...domain.WorkOrder) *fakeStore {
	s := &fakeStore{orders: make(map[uuid.UUID]*domain.WorkOrder)}
	for i := range seed {
		wo := seed[i]
		s.orders[wo.ID] = &wo
		s.order = append(s.order, wo.ID)
	}
	return s
}

func (s *fakeStore) ListWorkOrders(ctx context.Context, orgID, assignedTo string) ([]domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errList != nil {
		return nil, s.errList
	}
	s.listScopes = append(s.listScopes, assignedTo)
	var out []domain.WorkOrder
	for _, id := range s.order {
		wo := s.orders[id]
		if wo.OrganizationID != orgID {
			continue
		}
		if assignedTo != "" && wo.AssignedTo != assignedTo {
			continue
		}
		out = append(out, *wo)
	}
	return out, nil
}

func (s *fakeStore) GetWorkOrderStatus(ctx context.Context, orgID string, id uuid.UUID) (domain.WorkOrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errGetStatus != nil {
		return "", s.errGetStatus
	}
	wo, ok := s.orders[id]
	if !ok {
		return "", remote.NewError(remote.KindNotFound, "get work order status", fmt.Errorf("not found"))
	}
	return wo.Status, nil
}

func (s *fakeStore) CreateWorkOrder(ctx context.Context, orgID string, wo *domain.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errCreate != nil {
		return s.errCreate
	}
	cp := *wo
	s.orders[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *fakeStore) PatchWorkOrder(ctx context.Context, orgID string, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errPatch != nil {
		return s.errPatch
	}
	wo, ok := s.orders[id]
	if !ok {
		return remote.NewError(remote.KindNotFound, "patch work order", fmt.Errorf("not found"))
	}
	s.patches = append(s.patches, fields)
	if v, ok := fields["status"].(domain.WorkOrderStatus); ok {
		wo.Status = v
	}
	if v, ok := fields["billing_status"].(domain.BillingStatus); ok {
		wo.BillingStatus = v
	}
	if v, ok := fields["technician_report"].(string); ok {
		wo.TechnicianReport = v
	}
	return nil
}

func (s *fakeStore) InsertTimeLog(ctx context.Context, orgID string, entry *domain.WorkOrderTimeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errInsertTimeLog != nil {
		return s.errInsertTimeLog
	}
	if entry.IdempotencyKey != nil {
		for _, existing := range s.logs {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *entry.IdempotencyKey {
				return nil
			}
		}
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) InsertPart(ctx context.Context, orgID string, part *domain.WorkOrderPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errInsertPart != nil {
		return s.errInsertPart
	}
	s.parts = append(s.parts, *part)
	return nil
}

func (s *fakeStore) ReplaceTimeLogs(ctx context.Context, orgID string, workOrderID uuid.UUID, entries []domain.WorkOrderTimeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.WorkOrderID != workOrderID {
			kept = append(kept, l)
		}
	}
	s.logs = append(kept, entries...)
	return nil
}

func (s *fakeStore) ReplaceParts(ctx context.Context, orgID string, workOrderID uuid.UUID, parts []domain.WorkOrderPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.parts[:0]
	for _, p := range s.parts {
		if p.WorkOrderID != workOrderID {
			kept = append(kept, p)
		}
	}
	s.parts = append(kept, parts...)
	return nil
}

func (s *fakeStore) ListTimeLogs(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderTimeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkOrderTimeLog
	for _, l := range s.logs {
		for _, id := range workOrderIDs {
			if l.WorkOrderID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListParts(ctx context.Context, orgID string, workOrderIDs []uuid.UUID) ([]domain.WorkOrderPart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkOrderPart
	for _, p := range s.parts {
		for _, id := range workOrderIDs {
			if p.WorkOrderID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) timeLogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func (s *fakeStore) serverStatus(id uuid.UUID) domain.WorkOrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func (s *fakeStore) setServerStatus(id uuid.UUID, status domain.WorkOrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id].Status = status
}

var netErr = remote.NewError(remote.KindNetwork, "patch work order", fmt.Errorf("connection refused"))

func seedOrder(title string, status domain.WorkOrderStatus, billing domain.BillingStatus) domain.WorkOrder {
	wo := domain.WorkOrder{
		OrganizationID: testOrg,
		Title:          title,
		JobType:        domain.JobTypeField,
		Status:         status,
		Priority:       domain.PriorityNormal,
		BillingStatus:  billing,
	}
	wo.ID = uuid.New()
	wo.CreatedAt = time.Now().UTC()
	wo.UpdatedAt = wo.CreatedAt
	return wo
}

func adminCtx() context.Context {
	return identity.WithUserContext(context.Background(), &identity.UserContext{
		UserID:         "user-1",
		DisplayName:    "Kari Nordmann",
		Role:           identity.RoleAdmin,
		OrganizationID: testOrg,
	})
}

func technicianCtx(userID string) context.Context {
	return identity.WithUserContext(context.Background(), &identity.UserContext{
		UserID:         userID,
		DisplayName:    "Ola Tekniker",
		Role:           identity.RoleTechnician,
		OrganizationID: testOrg,
	})
}

func newEngine(t *testing.T, store remote.Store, startOffline bool) (*engine.Engine, *notify.Emitter) {
	t.Helper()
	mlog, err := mutationlog.Open(":memory:")
	require.NoError(t, err)
	emitter := notify.NewEmitter(notify.DefaultCap, zap.NewNop())
	eng := engine.New(testOrg, store, mlog, cache.NewCache(), emitter, zap.NewNop(), &engine.Options{
		StartOffline: startOffline,
	})
	require.NoError(t, eng.Start(adminCtx()))
	return eng, emitter
}

func findNotification(e *notify.Emitter, title string) (domain.Notification, bool) {
	for _, n := range e.List() {
		if n.Title == title {
			return n, true
		}
	}
	return domain.Notification{}, false
}

func TestAddWorkOrder_OnlineAppliesImmediately(t *testing.T) {
	store := newFakeStore()
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()

	wo, err := eng.AddWorkOrder(ctx, &domain.CreateWorkOrderRequest{Title: "Bytte varmepumpe"})
	require.NoError(t, err)
	require.NotNil(t, wo)

	// Optimistic entry is visible and the write reached the server
	cached, found := eng.Cache().Get(wo.ID)
	require.True(t, found)
	assert.Equal(t, "Bytte varmepumpe", cached.Title)
	assert.Equal(t, domain.StatusOpen, cached.Status)
	assert.Equal(t, domain.BillingNone, cached.BillingStatus)

	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Saved")
	assert.True(t, ok)
}

func TestAddWorkOrder_WorkshopDefaultsToReceived(t *testing.T) {
	store := newFakeStore()
	eng, _ := newEngine(t, store, false)

	wo, err := eng.AddWorkOrder(adminCtx(), &domain.CreateWorkOrderRequest{
		Title:   "Kompressor overhaling",
		JobType: domain.JobTypeWorkshop,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkshopReceived, wo.Status)
}

func TestAddWorkOrder_EmptyTitleIsRejectedBeforeAnything(t *testing.T) {
	store := newFakeStore()
	eng, emitter := newEngine(t, store, false)

	_, err := eng.AddWorkOrder(adminCtx(), &domain.CreateWorkOrderRequest{Title: "   "})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
	assert.Equal(t, 0, eng.Cache().Len())
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Validation failed")
	assert.True(t, ok)
}

func TestUpdateWorkOrder_OfflineIsOptimisticAndQueues(t *testing.T) {
	existing := seedOrder("Serviceavtale", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, true)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	status := domain.StatusInProgress
	err := eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Status: &status})
	require.NoError(t, err)

	// Cache reflects the change immediately, server does not
	cached, _ := eng.Cache().Get(existing.ID)
	assert.Equal(t, domain.StatusInProgress, cached.Status)
	assert.Equal(t, domain.StatusOpen, store.serverStatus(existing.ID))

	assert.Equal(t, int64(1), eng.PendingMutations())
	_, ok := findNotification(emitter, "Change queued")
	assert.True(t, ok)
}

func TestUpdateWorkOrder_EmptyPatchIsRejectedWithNotification(t *testing.T) {
	existing := seedOrder("Uendret", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{})
	assert.ErrorIs(t, err, engine.ErrEmptyPatch)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Validation failed")
	assert.True(t, ok)
}

func TestCommands_UnknownWorkOrderNotifies(t *testing.T) {
	store := newFakeStore()
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	unknown := uuid.New()

	status := domain.StatusInProgress
	err := eng.UpdateWorkOrder(ctx, unknown, domain.WorkOrderPatch{Status: &status})
	assert.ErrorIs(t, err, engine.ErrWorkOrderNotFound)

	err = eng.AddWorkLog(ctx, unknown, domain.TimeLogInput{Description: "arbeid", Minutes: 30})
	assert.ErrorIs(t, err, engine.ErrWorkOrderNotFound)

	err = eng.SetBillingStatus(ctx, unknown, domain.BillingSent)
	assert.ErrorIs(t, err, engine.ErrWorkOrderNotFound)

	assert.Equal(t, int64(0), eng.PendingMutations())
	assert.Equal(t, 3, emitter.Len())
	_, ok := findNotification(emitter, "Validation failed")
	assert.True(t, ok)
}

func TestUpdateWorkOrder_NetworkFailureFallsBackToQueue(t *testing.T) {
	existing := seedOrder("Radiatorlekkasje", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	store.errPatch = netErr
	status := domain.StatusTraveling
	err := eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Status: &status})

	// The offline-tolerance contract: no hard error, the change is queued
	require.NoError(t, err)
	assert.Equal(t, int64(1), eng.PendingMutations())
	_, ok := findNotification(emitter, "Change queued")
	assert.True(t, ok)
}

func TestUpdateWorkOrder_TerminalRejectionNeverQueues(t *testing.T) {
	existing := seedOrder("Ventilasjon", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	store.errPatch = remote.NewError(remote.KindValidation, "patch work order", fmt.Errorf("title too long"))
	title := "x"
	err := eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Title: &title})

	assert.ErrorIs(t, err, engine.ErrRemoteRejected)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Sync failed")
	assert.True(t, ok)
}

func TestGuardRejection_SurfacesAsBillingLocked(t *testing.T) {
	existing := seedOrder("Fyrkjele", domain.StatusDone, domain.BillingReady)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	store.errPatch = remote.NewError(remote.KindGuard, "patch work order", fmt.Errorf("details locked"))
	err := eng.SetBillingStatus(ctx, existing.ID, domain.BillingSent)

	assert.ErrorIs(t, err, engine.ErrRemoteRejected)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Billing locked")
	assert.True(t, ok)
}

func TestReconnect_DrainsQueueInFIFOOrder(t *testing.T) {
	existing := seedOrder("Varmtvannsbereder", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, true)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	status := domain.StatusInProgress
	require.NoError(t, eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Status: &status}))
	priority := domain.PriorityHigh
	require.NoError(t, eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Priority: &priority}))
	require.Equal(t, int64(2), eng.PendingMutations())

	eng.SetConnectivity(ctx, true)

	assert.Equal(t, int64(0), eng.PendingMutations())
	require.Len(t, store.patches, 2)
	_, hasStatus := store.patches[0]["status"]
	_, hasPriority := store.patches[1]["priority"]
	assert.True(t, hasStatus, "first queued change must replay first")
	assert.True(t, hasPriority)

	n, ok := findNotification(emitter, "Synced")
	require.True(t, ok)
	assert.Contains(t, n.Message, "2 queued change(s)")
}

func TestDrain_StaleStatusConflictIsDroppedAndDrainContinues(t *testing.T) {
	existing := seedOrder("Gulvvarme", domain.StatusAssigned, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, true)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	// Queue a status change and a time log while offline
	status := domain.StatusInProgress
	require.NoError(t, eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Status: &status}))
	require.NoError(t, eng.AddWorkLog(ctx, existing.ID, domain.TimeLogInput{Description: "feilsøk", Minutes: 45}))

	// Another client completed the order on the server in the meantime
	store.setServerStatus(existing.ID, domain.StatusDone)

	eng.SetConnectivity(ctx, true)

	// The stale status change was dropped, the time log still applied
	assert.Equal(t, domain.StatusDone, store.serverStatus(existing.ID))
	assert.Empty(t, store.patches)
	assert.Equal(t, 1, store.timeLogCount())
	assert.Equal(t, int64(0), eng.PendingMutations())

	_, ok := findNotification(emitter, "Sync conflict")
	assert.True(t, ok)
}

func TestDrain_StatusDoneIsNotConflictChecked(t *testing.T) {
	existing := seedOrder("Pumpeservice", domain.StatusInProgress, domain.BillingNone)
	store := newFakeStore(existing)
	eng, _ := newEngine(t, store, true)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	status := domain.StatusDone
	require.NoError(t, eng.UpdateWorkOrder(ctx, existing.ID, domain.WorkOrderPatch{Status: &status}))
	store.setServerStatus(existing.ID, domain.StatusDone)

	eng.SetConnectivity(ctx, true)

	// A queued change TO done is never a conflict, it replays normally
	require.Len(t, store.patches, 1)
	assert.Equal(t, int64(0), eng.PendingMutations())
}

func TestDrain_ExecutionFailureStopsAndKeepsOrder(t *testing.T) {
	existing := seedOrder("Kjøleanlegg", domain.StatusInProgress, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, true)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	require.NoError(t, eng.AddWorkLog(ctx, existing.ID, domain.TimeLogInput{Description: "kjøring", Minutes: 30}))
	require.NoError(t, eng.AddWorkLog(ctx, existing.ID, domain.TimeLogInput{Description: "montering", Minutes: 90}))

	store.errInsertTimeLog = netErr
	eng.SetConnectivity(ctx, true)

	// Nothing applied, nothing lost, one aggregate failure notification
	assert.Equal(t, 0, store.timeLogCount())
	assert.Equal(t, int64(2), eng.PendingMutations())
	n, ok := findNotification(emitter, "Sync failed")
	require.True(t, ok)
	assert.Contains(t, n.Message, "2 queued change(s)")

	// The queue replays cleanly once the store recovers
	store.errInsertTimeLog = nil
	require.NoError(t, eng.SyncPendingMutations(ctx))
	assert.Equal(t, 2, store.timeLogCount())
	assert.Equal(t, int64(0), eng.PendingMutations())
}

func TestDrain_EmptyQueueEmitsNothing(t *testing.T) {
	store := newFakeStore()
	eng, emitter := newEngine(t, store, false)

	require.NoError(t, eng.SyncPendingMutations(adminCtx()))
	_, synced := findNotification(emitter, "Synced")
	_, failed := findNotification(emitter, "Sync failed")
	assert.False(t, synced)
	assert.False(t, failed)
}

func TestCompleteForBilling_HappyPath(t *testing.T) {
	existing := seedOrder("Fyrkjeleservice", domain.StatusInProgress, domain.BillingNone)
	store := newFakeStore(existing)
	eng, _ := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	require.NoError(t, eng.AddWorkLog(ctx, existing.ID, domain.TimeLogInput{Description: "reparasjon", Minutes: 120}))
	require.NoError(t, eng.AddWorkPart(ctx, existing.ID, domain.PartInput{PartName: "Relé", Qty: 1}))

	err := eng.CompleteForBilling(ctx, existing.ID, "Byttet relé og testet anlegget", "Kari Nordmann")
	require.NoError(t, err)

	cached, _ := eng.Cache().Get(existing.ID)
	assert.Equal(t, domain.StatusDone, cached.Status)
	assert.Equal(t, domain.BillingReady, cached.BillingStatus)
	assert.NotNil(t, cached.CompletedAt)
	assert.NotNil(t, cached.BillingReadyAt)
	assert.Equal(t, "user-1", cached.TechnicianSignedBy)
	assert.Equal(t, "Kari Nordmann", cached.TechnicianSignedName)

	assert.Equal(t, domain.StatusDone, store.serverStatus(existing.ID))
}

func TestCompleteForBilling_RequiresTimeLogAndParts(t *testing.T) {
	existing := seedOrder("Tomt anlegg", domain.StatusInProgress, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.CompleteForBilling(ctx, existing.ID, "rapport", "Kari")
	assert.Error(t, err)

	// The whole command is a no-op: no cache change, no queue entry
	cached, _ := eng.Cache().Get(existing.ID)
	assert.Equal(t, domain.StatusInProgress, cached.Status)
	assert.Equal(t, domain.BillingNone, cached.BillingStatus)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Billing validation failed")
	assert.True(t, ok)
}

func TestCompleteForBilling_RejectedOutsideNone(t *testing.T) {
	existing := seedOrder("Allerede klar", domain.StatusDone, domain.BillingReady)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.CompleteForBilling(ctx, existing.ID, "rapport", "Kari")
	assert.Error(t, err)
	_, ok := findNotification(emitter, "Invalid billing transition")
	assert.True(t, ok)
}

func TestSaveBillableDetails_LockedOnceSent(t *testing.T) {
	existing := seedOrder("Sendt ordre", domain.StatusDone, domain.BillingSent)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.SaveBillableDetails(ctx, existing.ID, &domain.SaveBillableDetailsRequest{
		Report:    "oppdatert rapport",
		TimeLog:   []domain.TimeLogInput{{Description: "arbeid", Minutes: 60}},
		PartsUsed: []domain.PartInput{{PartName: "Filter", Qty: 2}},
	})
	assert.Error(t, err)
	assert.Empty(t, store.patches)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Billing locked")
	assert.True(t, ok)
}

func TestSaveBillableDetails_ReplacesWhileReady(t *testing.T) {
	existing := seedOrder("Klar ordre", domain.StatusDone, domain.BillingReady)
	store := newFakeStore(existing)
	eng, _ := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.SaveBillableDetails(ctx, existing.ID, &domain.SaveBillableDetailsRequest{
		Report:    "endelig rapport",
		TimeLog:   []domain.TimeLogInput{{Description: "arbeid", Minutes: 60}, {Description: "kjøring", Minutes: 30}},
		PartsUsed: []domain.PartInput{{PartName: "Filter", Qty: 2}},
	})
	require.NoError(t, err)

	cached, _ := eng.Cache().Get(existing.ID)
	assert.Equal(t, "endelig rapport", cached.TechnicianReport)
	assert.Len(t, cached.TimeLog, 2)
	assert.Len(t, cached.PartsUsed, 1)
	assert.Equal(t, 2, store.timeLogCount())
}

func TestSetBillingStatus_ReopenClearsSentStamps(t *testing.T) {
	existing := seedOrder("Reåpning", domain.StatusDone, domain.BillingSent)
	now := time.Now().UTC()
	existing.BillingSentAt = &now
	existing.BillingSentBy = "user-9"
	store := newFakeStore(existing)
	eng, _ := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	require.NoError(t, eng.SetBillingStatus(ctx, existing.ID, domain.BillingReady))

	require.Len(t, store.patches, 1)
	assert.Equal(t, domain.BillingReady, store.patches[0]["billing_status"])
	assert.Nil(t, store.patches[0]["billing_sent_at"])
	assert.Equal(t, "", store.patches[0]["billing_sent_by"])
}

func TestSetBillingStatus_IllegalEdgeIsCompleteNoOp(t *testing.T) {
	existing := seedOrder("Ufakturert", domain.StatusDone, domain.BillingNone)
	store := newFakeStore(existing)
	eng, emitter := newEngine(t, store, false)
	ctx := adminCtx()
	require.NoError(t, eng.Load(ctx))

	err := eng.SetBillingStatus(ctx, existing.ID, domain.BillingInvoiced)
	assert.Error(t, err)
	assert.Empty(t, store.patches)
	cached, _ := eng.Cache().Get(existing.ID)
	assert.Equal(t, domain.BillingNone, cached.BillingStatus)
	assert.Equal(t, int64(0), eng.PendingMutations())
	_, ok := findNotification(emitter, "Invalid billing transition")
	assert.True(t, ok)
}

func TestAddWorkLog_AttributesActorAndDeduplicatesOnReplay(t *testing.T) {
	existing := seedOrder("Attribusjon", domain.StatusInProgress, domain.BillingNone)
	existing.AssignedTo = "tech-7"
	store := newFakeStore(existing)
	eng, _ := newEngine(t, store, false)
	ctx := technicianCtx("tech-7")
	require.NoError(t, eng.Load(ctx))

	require.NoError(t, eng.AddWorkLog(ctx, existing.ID, domain.TimeLogInput{Description: "montering", Minutes: 60}))

	require.Equal(t, 1, store.timeLogCount())
	store.mu.Lock()
	logged := store.logs[0]
	store.mu.Unlock()
	assert.Equal(t, "tech-7", logged.LoggedBy)
	require.NotNil(t, logged.IdempotencyKey)

	// Replaying the same row with the same key is a no-op
	again := logged
	require.NoError(t, store.InsertTimeLog(ctx, testOrg, &again))
	assert.Equal(t, 1, store.timeLogCount())
}

func TestLoad_TechnicianOnlySeesOwnOrders(t *testing.T) {
	mine := seedOrder("Min ordre", domain.StatusAssigned, domain.BillingNone)
	mine.AssignedTo = "tech-7"
	other := seedOrder("Andres ordre", domain.StatusAssigned, domain.BillingNone)
	other.AssignedTo = "tech-8"
	store := newFakeStore(mine, other)
	eng, _ := newEngine(t, store, false)

	require.NoError(t, eng.Load(technicianCtx("tech-7")))

	assert.Equal(t, 1, eng.Cache().Len())
	got, found := eng.Cache().Get(mine.ID)
	require.True(t, found)
	assert.Equal(t, "Min ordre", got.Title)
}

func TestLoad_AdminSeesEverything(t *testing.T) {
	a := seedOrder("A", domain.StatusOpen, domain.BillingNone)
	b := seedOrder("B", domain.StatusOpen, domain.BillingNone)
	store := newFakeStore(a, b)
	eng, _ := newEngine(t, store, false)

	require.NoError(t, eng.Load(adminCtx()))
	assert.Equal(t, 2, eng.Cache().Len())
}

func TestCommands_RequireUserContext(t *testing.T) {
	store := newFakeStore()
	eng, _ := newEngine(t, store, false)

	_, err := eng.AddWorkOrder(context.Background(), &domain.CreateWorkOrderRequest{Title: "x"})
	assert.ErrorIs(t, err, engine.ErrUserContextRequired)

	err = eng.UpdateWorkOrder(context.Background(), uuid.New(), domain.WorkOrderPatch{})
	assert.ErrorIs(t, err, engine.ErrUserContextRequired)
}

func TestDemoMode_SeedsFixedDatasetAndQueuesEverything(t *testing.T) {
	mlog, err := mutationlog.Open(":memory:")
	require.NoError(t, err)
	emitter := notify.NewEmitter(notify.DefaultCap, zap.NewNop())
	eng := engine.New("", nil, mlog, cache.NewCache(), emitter, zap.NewNop(), nil)
	require.NoError(t, eng.Start(context.Background()))

	assert.False(t, eng.Online())
	assert.Equal(t, 3, eng.Cache().Len())

	// Commands still work against the demo dataset and queue durably
	demo := eng.Cache().List()[0]
	status := domain.StatusInProgress
	ctx := adminCtx()
	require.NoError(t, eng.UpdateWorkOrder(ctx, demo.ID, domain.WorkOrderPatch{Status: &status}))
	cached, _ := eng.Cache().Get(demo.ID)
	assert.Equal(t, domain.StatusInProgress, cached.Status)

	// Draining in demo mode is a silent no-op
	require.NoError(t, eng.SyncPendingMutations(ctx))
}

func TestStart_UnreachableStoreStartsOffline(t *testing.T) {
	store := newFakeStore()
	store.errList = remote.NewError(remote.KindNetwork, "list work orders", fmt.Errorf("no route to host"))

	mlog, err := mutationlog.Open(":memory:")
	require.NoError(t, err)
	eng := engine.New(testOrg, store, mlog, cache.NewCache(), notify.NewEmitter(0, zap.NewNop()), zap.NewNop(), nil)
	require.NoError(t, eng.Start(adminCtx()))

	assert.False(t, eng.Online())

	// Recovery: connectivity comes back and the first load succeeds
	store.mu.Lock()
	store.errList = nil
	store.mu.Unlock()
	eng.SetConnectivity(adminCtx(), true)
	assert.True(t, eng.Online())
}
