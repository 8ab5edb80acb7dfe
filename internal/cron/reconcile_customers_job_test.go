package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/internal/customers"
	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestReconcileCustomersJobRepairsDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := customers.NewRepository(db)
	svc, err := customers.NewService(repo)
	if err != nil {
		t.Fatalf("customers service: %v", err)
	}

	workspaceID := uuid.New()
	customer := models.Customer{
		WorkspaceID:     workspaceID,
		Phone:           "5551234567",
		OrderCount:      9,
		TotalSpentCents: 999999,
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	order := models.Order{
		WorkspaceID:   workspaceID,
		OrderNumber:   "ORD-000001",
		CustomerID:    customer.ID,
		Status:        enums.OrderStatusAwaitingAcceptance,
		SubtotalCents: 4200,
		TotalCents:    4200,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	job, err := NewReconcileCustomersJob(ReconcileCustomersJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:        testTxRunner{db: db},
		IDs:       repo,
		Customers: svc,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "reconcile-customers" {
		t.Fatalf("unexpected job name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	var repaired models.Customer
	if err := db.First(&repaired, "id = ?", customer.ID).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if repaired.OrderCount != 1 || repaired.TotalSpentCents != 4200 {
		t.Fatalf("counters not repaired: %+v", repaired)
	}
}

type failingRecomputer struct {
	failFor uuid.UUID
	calls   int
}

func (f *failingRecomputer) Recompute(_ context.Context, _ *gorm.DB, customerID uuid.UUID) (*customers.RecomputeResult, error) {
	f.calls++
	if customerID == f.failFor {
		return nil, errors.New("recompute boom")
	}
	return &customers.RecomputeResult{CustomerID: customerID}, nil
}

type staticIDLister struct {
	ids []uuid.UUID
}

func (s staticIDLister) ListAllIDs(context.Context) ([]uuid.UUID, error) {
	return s.ids, nil
}

func TestReconcileCustomersJobContinuesPastFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	bad := uuid.New()
	ids := []uuid.UUID{uuid.New(), bad, uuid.New()}
	recomputer := &failingRecomputer{failFor: bad}

	job, err := NewReconcileCustomersJob(ReconcileCustomersJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:        testTxRunner{db: db},
		IDs:       staticIDLister{ids: ids},
		Customers: recomputer,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if recomputer.calls != 3 {
		t.Fatalf("expected all customers visited, got %d calls", recomputer.calls)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.Order{}); err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}
