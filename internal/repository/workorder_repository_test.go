package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/remote"
	"github.com/norvik-as/fieldops-api/internal/repository"
)

// setupTestDB connects to the test PostgreSQL database using environment
// variables or the docker-compose defaults. Tests are skipped when no
// database is reachable. Each test scopes its rows under a fresh
// organization id, so no cross-test cleanup is needed.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	host := getEnvOrDefault("DATABASE_HOST", "localhost")
	port := getEnvOrDefault("DATABASE_PORT", "5432")
	user := getEnvOrDefault("DATABASE_USER", "fieldops_user")
	password := getEnvOrDefault("DATABASE_PASSWORD", "fieldops_password")
	dbname := getEnvOrDefault("DATABASE_NAME", "fieldops_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	require.NoError(t, db.AutoMigrate(
		&domain.WorkOrder{},
		&domain.WorkOrderTimeLog{},
		&domain.WorkOrderPart{},
	))
	return db
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newRepo(t *testing.T) (*repository.WorkOrderRepository, string) {
	t.Helper()
	db := setupTestDB(t)
	return repository.NewWorkOrderRepository(db, zap.NewNop()), "org-" + uuid.NewString()
}

func createOrder(t *testing.T, r *repository.WorkOrderRepository, orgID string, status domain.WorkOrderStatus, billing domain.BillingStatus) *domain.WorkOrder {
	t.Helper()
	wo := &domain.WorkOrder{
		Title:         "Testordre",
		JobType:       domain.JobTypeField,
		Status:        status,
		Priority:      domain.PriorityNormal,
		BillingStatus: billing,
	}
	require.NoError(t, r.CreateWorkOrder(context.Background(), orgID, wo))
	return wo
}

func TestListWorkOrders_ScopedToOrganization(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()
	otherOrg := "org-" + uuid.NewString()

	createOrder(t, r, orgID, domain.StatusOpen, domain.BillingNone)
	createOrder(t, r, otherOrg, domain.StatusOpen, domain.BillingNone)

	orders, err := r.ListWorkOrders(ctx, orgID, "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orgID, orders[0].OrganizationID)
}

func TestListWorkOrders_AssignedToFilter(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	mine := &domain.WorkOrder{
		Title: "Min", JobType: domain.JobTypeField,
		Status: domain.StatusAssigned, Priority: domain.PriorityNormal,
		BillingStatus: domain.BillingNone, AssignedTo: "tech-1",
	}
	require.NoError(t, r.CreateWorkOrder(ctx, orgID, mine))
	other := &domain.WorkOrder{
		Title: "Andres", JobType: domain.JobTypeField,
		Status: domain.StatusAssigned, Priority: domain.PriorityNormal,
		BillingStatus: domain.BillingNone, AssignedTo: "tech-2",
	}
	require.NoError(t, r.CreateWorkOrder(ctx, orgID, other))

	orders, err := r.ListWorkOrders(ctx, orgID, "tech-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Min", orders[0].Title)
}

func TestCreateWorkOrder_ReplayedCreateIsNoOp(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusOpen, domain.BillingNone)

	// Replaying the same row must not error or duplicate
	replay := *wo
	require.NoError(t, r.CreateWorkOrder(ctx, orgID, &replay))

	orders, err := r.ListWorkOrders(ctx, orgID, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestGetWorkOrderStatus(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)

	status, err := r.GetWorkOrderStatus(ctx, orgID, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, status)

	// Wrong tenant sees nothing
	_, err = r.GetWorkOrderStatus(ctx, "org-"+uuid.NewString(), wo.ID)
	assert.True(t, remote.IsNotFound(err))
}

func TestPatchWorkOrder_NotFoundIsClassified(t *testing.T) {
	r, orgID := newRepo(t)

	err := r.PatchWorkOrder(context.Background(), orgID, uuid.New(), map[string]interface{}{
		"title": "ny tittel",
	})
	assert.True(t, remote.IsNotFound(err))
}

func TestPatchWorkOrder_BillingGuardRejectsIllegalTransition(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusDone, domain.BillingNone)

	// NONE to INVOICED skips the queue entirely
	err := r.PatchWorkOrder(ctx, orgID, wo.ID, map[string]interface{}{
		"billing_status": domain.BillingInvoiced,
	})
	require.Error(t, err)
	assert.True(t, remote.IsGuard(err))

	status, err := r.GetWorkOrderStatus(ctx, orgID, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
}

func TestPatchWorkOrder_BillingStartRequiresDone(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)

	err := r.PatchWorkOrder(ctx, orgID, wo.ID, map[string]interface{}{
		"billing_status": domain.BillingReady,
	})
	require.Error(t, err)
	assert.True(t, remote.IsGuard(err))

	// The completion patch carries status DONE in the same write and passes
	err = r.PatchWorkOrder(ctx, orgID, wo.ID, map[string]interface{}{
		"status":         domain.StatusDone,
		"billing_status": domain.BillingReady,
		"updated_at":     time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestPatchWorkOrder_ReportEditLockedOutsideReady(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	sent := createOrder(t, r, orgID, domain.StatusDone, domain.BillingSent)
	err := r.PatchWorkOrder(ctx, orgID, sent.ID, map[string]interface{}{
		"technician_report": "endret etter sending",
	})
	require.Error(t, err)
	assert.True(t, remote.IsGuard(err))

	ready := createOrder(t, r, orgID, domain.StatusDone, domain.BillingReady)
	err = r.PatchWorkOrder(ctx, orgID, ready.ID, map[string]interface{}{
		"technician_report": "presisert rapport",
	})
	require.NoError(t, err)
}

func TestInsertTimeLog_DeduplicatesByIdempotencyKey(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)
	key := uuid.New()

	entry := &domain.WorkOrderTimeLog{
		WorkOrderID:    wo.ID,
		Description:    "feilsøk",
		Minutes:        45,
		LoggedBy:       "tech-1",
		IdempotencyKey: &key,
	}
	require.NoError(t, r.InsertTimeLog(ctx, orgID, entry))

	replay := &domain.WorkOrderTimeLog{
		WorkOrderID:    wo.ID,
		Description:    "feilsøk",
		Minutes:        45,
		LoggedBy:       "tech-1",
		IdempotencyKey: &key,
	}
	require.NoError(t, r.InsertTimeLog(ctx, orgID, replay))

	logs, err := r.ListTimeLogs(ctx, orgID, []uuid.UUID{wo.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestInsertPart_DeduplicatesByIdempotencyKey(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)
	key := uuid.New()

	for i := 0; i < 2; i++ {
		part := &domain.WorkOrderPart{
			WorkOrderID:    wo.ID,
			PartName:       "Sirkulasjonspumpe",
			Qty:            1,
			UnitCost:       decimal.NewFromInt(1200),
			TotalCost:      decimal.NewFromInt(1200),
			IdempotencyKey: &key,
		}
		require.NoError(t, r.InsertPart(ctx, orgID, part))
	}

	parts, err := r.ListParts(ctx, orgID, []uuid.UUID{wo.ID})
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestReplaceTimeLogs_ReplacesWholeSetWhileReady(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusDone, domain.BillingReady)
	require.NoError(t, r.InsertTimeLog(ctx, orgID, &domain.WorkOrderTimeLog{
		WorkOrderID: wo.ID, Description: "gammel", Minutes: 10,
	}))

	err := r.ReplaceTimeLogs(ctx, orgID, wo.ID, []domain.WorkOrderTimeLog{
		{Description: "kjøring", Minutes: 30},
		{Description: "montering", Minutes: 90},
	})
	require.NoError(t, err)

	logs, err := r.ListTimeLogs(ctx, orgID, []uuid.UUID{wo.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, orgID, logs[0].OrganizationID)
	assert.Equal(t, wo.ID, logs[0].WorkOrderID)
}

func TestReplaceTimeLogs_GuardedOnceSent(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusDone, domain.BillingSent)
	require.NoError(t, r.InsertTimeLog(ctx, orgID, &domain.WorkOrderTimeLog{
		WorkOrderID: wo.ID, Description: "original", Minutes: 60,
	}))

	err := r.ReplaceTimeLogs(ctx, orgID, wo.ID, []domain.WorkOrderTimeLog{
		{Description: "manipulert", Minutes: 1},
	})
	require.Error(t, err)
	assert.True(t, remote.IsGuard(err))

	logs, err := r.ListTimeLogs(ctx, orgID, []uuid.UUID{wo.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "original", logs[0].Description)
}

func TestReplaceParts_EmptySetClearsRows(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	wo := createOrder(t, r, orgID, domain.StatusDone, domain.BillingReady)
	require.NoError(t, r.InsertPart(ctx, orgID, &domain.WorkOrderPart{
		WorkOrderID: wo.ID, PartName: "Filter", Qty: 2,
	}))

	require.NoError(t, r.ReplaceParts(ctx, orgID, wo.ID, nil))

	parts, err := r.ListParts(ctx, orgID, []uuid.UUID{wo.ID})
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestListChildren_BatchedAcrossWorkOrders(t *testing.T) {
	r, orgID := newRepo(t)
	ctx := context.Background()

	first := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)
	second := createOrder(t, r, orgID, domain.StatusInProgress, domain.BillingNone)
	require.NoError(t, r.InsertTimeLog(ctx, orgID, &domain.WorkOrderTimeLog{
		WorkOrderID: first.ID, Description: "a", Minutes: 10,
	}))
	require.NoError(t, r.InsertTimeLog(ctx, orgID, &domain.WorkOrderTimeLog{
		WorkOrderID: second.ID, Description: "b", Minutes: 20,
	}))

	logs, err := r.ListTimeLogs(ctx, orgID, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	// Empty id set short-circuits without touching the database
	logs, err = r.ListTimeLogs(ctx, orgID, nil)
	require.NoError(t, err)
	assert.Nil(t, logs)
}
