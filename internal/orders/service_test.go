package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/internal/customers"
	"github.com/ventiahq/ventia-backend/internal/notifications"
	"github.com/ventiahq/ventia-backend/internal/quota"
	"github.com/ventiahq/ventia-backend/internal/stock"
	"github.com/ventiahq/ventia-backend/pkg/config"
	"github.com/ventiahq/ventia-backend/pkg/db"
	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

// WithSerializableTx mirrors the production runner's retry on write
// contention; sqlite reports it as a lock error instead of a 40001.
func (r testTxRunner) WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if !db.IsSerializationFailure(err) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return err
}

type fakeStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{m: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.m[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = toString(value)
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[key]; ok {
		return false, nil
	}
	f.m[key] = toString(value)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "vt:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.m, key)
	}
	return nil
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifications.DispatchInput
}

func (f *fakeNotifier) Dispatch(_ context.Context, input notifications.DispatchInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, input)
}

func (f *fakeNotifier) count(kind enums.NotificationType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, event := range f.events {
		if event.Type == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	db       *gorm.DB
	svc      Service
	repo     Repository
	store    *fakeStore
	notifier *fakeNotifier
	stockSvc stock.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, nil)
}

func newTestEnvWithRepo(t *testing.T, wrap func(Repository) Repository) *testEnv {
	t.Helper()

	db := newTestDB(t)
	runner := testTxRunner{db: db}
	logg := logger.New(logger.Options{ServiceName: "orders-test"})

	stockSvc, err := stock.NewService(runner, stock.NewRepository(db))
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	customersSvc, err := customers.NewService(customers.NewRepository(db))
	if err != nil {
		t.Fatalf("customers service: %v", err)
	}
	quotaSvc, err := quota.NewService(quota.NewRepository(db))
	if err != nil {
		t.Fatalf("quota service: %v", err)
	}

	repo := NewRepository(db)
	if wrap != nil {
		repo = wrap(repo)
	}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	svc, err := NewService(
		runner,
		repo,
		stockSvc,
		customersSvc,
		quotaSvc,
		store,
		notifier,
		nil,
		logg,
		config.OrdersConfig{NumberPrefix: "ORD-", NumberWidth: 6, NumberMaxAttempts: 3},
		config.IdempotencyConfig{CreateTTL: time.Hour},
	)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	return &testEnv{db: db, svc: svc, repo: repo, store: store, notifier: notifier, stockSvc: stockSvc}
}

func (e *testEnv) seedWorkspace(t *testing.T, limit *int) uuid.UUID {
	t.Helper()
	workspace := models.Workspace{Name: "test workspace", MonthlyOrderLimit: limit}
	if err := e.db.Create(&workspace).Error; err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	return workspace.ID
}

func (e *testEnv) seedProduct(t *testing.T, workspaceID uuid.UUID, sku string, priceCents int) uuid.UUID {
	t.Helper()
	product := models.Product{WorkspaceID: workspaceID, SKU: sku, Name: "Product " + sku, PriceCents: priceCents, Active: true}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func (e *testEnv) seedStock(t *testing.T, workspaceID, productID uuid.UUID, qty int) {
	t.Helper()
	item := models.StockItem{WorkspaceID: workspaceID, ProductID: productID, Quantity: qty}
	if err := e.db.Create(&item).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (e *testEnv) loadStock(t *testing.T, productID uuid.UUID) models.StockItem {
	t.Helper()
	var item models.StockItem
	if err := e.db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return item
}

func TestCreateOrderHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 2500)
	env.seedStock(t, workspaceID, productID, 10)

	result, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "555-123-4567",
		CustomerName:  "Dana",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 3}},
		ShippingCents: 500,
		Notes:         "leave at the door",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first creation should not be a duplicate")
	}

	order := result.Order
	if order.OrderNumber != "ORD-000001" {
		t.Fatalf("expected ORD-000001, got %s", order.OrderNumber)
	}
	if order.Status != enums.OrderStatusAwaitingAcceptance {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.SubtotalCents != 7500 || order.TotalCents != 8000 {
		t.Fatalf("unexpected totals: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPriceCents != 2500 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if len(order.Reservations) != 1 || order.Reservations[0].Status != enums.ReservationStatusActive {
		t.Fatalf("unexpected reservations: %+v", order.Reservations)
	}

	item := env.loadStock(t, productID)
	if item.Quantity != 10 || item.Reserved != 3 {
		t.Fatalf("unexpected stock state: %+v", item)
	}

	history, err := env.svc.GetHistory(ctx, workspaceID, order.ID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 1 || history[0].NewStatus != enums.OrderStatusAwaitingAcceptance || history[0].PreviousStatus != nil {
		t.Fatalf("unexpected history: %+v", history)
	}

	var customer models.Customer
	if err := env.db.First(&customer, "id = ?", order.CustomerID).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if customer.OrderCount != 1 || customer.TotalSpentCents != 8000 {
		t.Fatalf("unexpected customer counters: %+v", customer)
	}

	if env.notifier.count(enums.NotificationTypeOrderCreated) != 1 {
		t.Fatal("expected an order_created notification")
	}
}

func TestCreateOrderTotalClampedAtZero(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 5)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
		DiscountCents: 5000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Order.TotalCents != 0 {
		t.Fatalf("expected clamped total 0, got %d", result.Order.TotalCents)
	}
}

func TestCreateOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 3)

	input := CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 5}},
	}
	_, err := env.svc.Create(ctx, input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	var orderCount int64
	if err := env.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("failed creation left %d orders behind", orderCount)
	}

	item := env.loadStock(t, productID)
	if item.Quantity != 3 || item.Reserved != 0 {
		t.Fatalf("failed creation mutated stock: %+v", item)
	}

	// The claim was released, so fixing stock makes the same request pass.
	env.db.Model(&models.StockItem{}).Where("product_id = ?", productID).Update("quantity", 10)
	if _, err := env.svc.Create(ctx, input); err != nil {
		t.Fatalf("retry after restock: %v", err)
	}
}

func TestCreateOrderConcurrentDemandNeverOversells(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 5)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := env.svc.Create(ctx, CreateOrderInput{
				WorkspaceID:   workspaceID,
				CustomerPhone: fmt.Sprintf("55512340%03d", n),
				Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes == 0 {
		t.Fatal("expected at least one order to land")
	}
	if successes > 5 {
		t.Fatalf("sold %d units of 5", successes)
	}

	item := env.loadStock(t, productID)
	if item.Quantity != 5 {
		t.Fatalf("quantity changed: %+v", item)
	}
	if item.Reserved != successes {
		t.Fatalf("reserved %d does not match %d placed orders", item.Reserved, successes)
	}
}

func TestCreateOrderDuplicateFingerprintReplays(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	input := CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 2}},
	}
	first, err := env.svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Different notes, same material content: still a replay.
	input.Notes = "retry click"
	second, err := env.svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("expected duplicate flag on replay")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("replay returned a different order: %s vs %s", second.Order.ID, first.Order.ID)
	}

	var orderCount int64
	if err := env.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected a single order, got %d", orderCount)
	}
}

func TestCreateOrderQuotaExceeded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	limit := 1
	workspaceID := env.seedWorkspace(t, &limit)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	if _, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5559876543",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeQuotaExceeded) {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
}

// staleNumberRepo feeds the allocator an outdated max so the next number
// collides with an existing row.
type staleNumberRepo struct {
	Repository
	stale     string
	remaining *int
}

func (r *staleNumberRepo) WithTx(tx *gorm.DB) Repository {
	return &staleNumberRepo{Repository: r.Repository.WithTx(tx), stale: r.stale, remaining: r.remaining}
}

func (r *staleNumberRepo) FindMaxOrderNumber(ctx context.Context, workspaceID uuid.UUID, prefix string) (string, error) {
	if *r.remaining > 0 {
		*r.remaining--
		return r.stale, nil
	}
	return r.Repository.FindMaxOrderNumber(ctx, workspaceID, prefix)
}

func TestCreateOrderRetriesNumberCollision(t *testing.T) {
	t.Parallel()

	staleUses := 1
	env := newTestEnvWithRepo(t, func(repo Repository) Repository {
		return &staleNumberRepo{Repository: repo, stale: "ORD-000004", remaining: &staleUses}
	})
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	// ORD-000005 already exists, so the stale max provokes a collision.
	existing := models.Order{
		WorkspaceID: workspaceID,
		OrderNumber: "ORD-000005",
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusAwaitingAcceptance,
	}
	if err := env.db.Create(&existing).Error; err != nil {
		t.Fatalf("seed existing order: %v", err)
	}

	result, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Order.OrderNumber != "ORD-000006" {
		t.Fatalf("expected retried allocation ORD-000006, got %s", result.Order.OrderNumber)
	}
}

func TestCreateOrderNumberExhaustion(t *testing.T) {
	t.Parallel()

	staleUses := 1000
	env := newTestEnvWithRepo(t, func(repo Repository) Repository {
		return &staleNumberRepo{Repository: repo, stale: "ORD-000004", remaining: &staleUses}
	})
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	existing := models.Order{
		WorkspaceID: workspaceID,
		OrderNumber: "ORD-000005",
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusAwaitingAcceptance,
	}
	if err := env.db.Create(&existing).Error; err != nil {
		t.Fatalf("seed existing order: %v", err)
	}

	_, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOrderNumberExhausted) {
		t.Fatalf("expected ORDER_NUMBER_EXHAUSTED, got %v", err)
	}
}

func TestCancelRestoresEverything(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 4}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order, err := env.svc.Cancel(ctx, workspaceID, CancelInput{OrderID: created.Order.ID, Reason: "customer changed their mind"})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled || order.CancelledAt == nil {
		t.Fatalf("unexpected order state: %+v", order)
	}
	if order.CancelReason == nil || *order.CancelReason != "customer changed their mind" {
		t.Fatalf("cancel reason not recorded: %+v", order.CancelReason)
	}

	item := env.loadStock(t, productID)
	if item.Quantity != 10 || item.Reserved != 0 {
		t.Fatalf("cancel did not restore stock: %+v", item)
	}

	reservations, err := env.repo.FindActiveReservations(ctx, order.ID)
	if err != nil {
		t.Fatalf("find reservations: %v", err)
	}
	if len(reservations) != 0 {
		t.Fatalf("expected no active reservations, got %d", len(reservations))
	}

	var customer models.Customer
	if err := env.db.First(&customer, "id = ?", order.CustomerID).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if customer.OrderCount != 0 || customer.TotalSpentCents != 0 {
		t.Fatalf("cancel did not roll back counters: %+v", customer)
	}

	movements, err := env.stockSvc.ListMovementsByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected reservation and reversal movements, got %d", len(movements))
	}
	if movements[0].Quantity+movements[1].Quantity != 0 {
		t.Fatal("reversal should mirror the reservation")
	}

	if env.notifier.count(enums.NotificationTypeOrderCancelled) != 1 {
		t.Fatal("expected an order_cancelled notification")
	}
}

func TestCancelWithoutReasonRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = env.svc.Cancel(ctx, workspaceID, CancelInput{OrderID: created.Order.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for missing reason, got %v", err)
	}

	// The delegated path enforces the same rule.
	_, err = env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "cancelled"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR via status update, got %v", err)
	}

	order, err := env.svc.GetByID(ctx, workspaceID, created.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status == enums.OrderStatusCancelled {
		t.Fatal("order must not cancel without a reason")
	}
	item := env.loadStock(t, productID)
	if item.Reserved != 2 {
		t.Fatalf("rejected cancel touched stock: %+v", item)
	}
}

func TestCancelAlreadyCancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, workspaceID, CancelInput{OrderID: created.Order.ID, Reason: "duplicate order"}); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err = env.svc.Cancel(ctx, workspaceID, CancelInput{OrderID: created.Order.ID, Reason: "duplicate order"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyCancelled) {
		t.Fatalf("expected ALREADY_CANCELLED, got %v", err)
	}

	// Stock was not released a second time.
	item := env.loadStock(t, productID)
	if item.Quantity != 10 || item.Reserved != 0 {
		t.Fatalf("double cancel corrupted stock: %+v", item)
	}
}

func TestCancelProcessedOrderRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "accepted"}); err != nil {
		t.Fatalf("accept order: %v", err)
	}

	_, err = env.svc.Cancel(ctx, workspaceID, CancelInput{OrderID: created.Order.ID, Reason: "too slow"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOrderNotCancellable) {
		t.Fatalf("expected ORDER_NOT_CANCELLABLE, got %v", err)
	}
}

func TestUpdateStatusNoOpWritesNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "awaiting_acceptance"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !result.Unchanged {
		t.Fatal("expected unchanged result")
	}

	history, err := env.svc.GetHistory(ctx, workspaceID, created.Order.ID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("no-op update appended history: %d entries", len(history))
	}
}

func TestUpdateStatusWithLegacyAlias(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "Aceptado"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if result.Order.Status != enums.OrderStatusAccepted {
		t.Fatalf("expected accepted, got %s", result.Order.Status)
	}
}

func TestUpdateStatusDeliveredConsumesReservations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 4}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	orderID := created.Order.ID

	for _, status := range []string{"accepted", "shipped", "entregado"} {
		if _, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: orderID, Status: status}); err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
	}

	order, err := env.svc.GetByID(ctx, workspaceID, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil || order.ShippedAt == nil {
		t.Fatalf("unexpected order state: %+v", order)
	}

	item := env.loadStock(t, productID)
	if item.Quantity != 6 || item.Reserved != 0 {
		t.Fatalf("delivery did not consume stock: %+v", item)
	}

	var reservations []models.StockReservation
	if err := env.db.Find(&reservations, "order_id = ?", orderID).Error; err != nil {
		t.Fatalf("load reservations: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Status != enums.ReservationStatusConsumed {
		t.Fatalf("unexpected reservations: %+v", reservations)
	}

	movements, err := env.stockSvc.ListMovementsByOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	consumes := 0
	for _, movement := range movements {
		if movement.Type == enums.MovementTypeConsume {
			consumes++
		}
	}
	if consumes != 1 {
		t.Fatalf("expected one consume movement, got %+v", movements)
	}
}

func TestUpdateStatusBackwardsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "shipped"}); err != nil {
		t.Fatalf("ship order: %v", err)
	}

	_, err = env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "accepted"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatus) {
		t.Fatalf("expected INVALID_STATUS, got %v", err)
	}
}

func TestTrashAndRestore(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	orderID := created.Order.ID

	trashed, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: orderID, Status: "trashed"})
	if err != nil {
		t.Fatalf("trash order: %v", err)
	}
	if trashed.Order.PreviousStatus == nil || *trashed.Order.PreviousStatus != enums.OrderStatusAwaitingAcceptance {
		t.Fatalf("previous status not recorded: %+v", trashed.Order.PreviousStatus)
	}

	// Restoring to anything but the stored previous status is rejected.
	if _, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: orderID, Status: "shipped"}); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatus) {
		t.Fatalf("expected INVALID_STATUS, got %v", err)
	}

	restored, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: orderID, Status: "awaiting_acceptance"})
	if err != nil {
		t.Fatalf("restore order: %v", err)
	}
	if restored.Order.Status != enums.OrderStatusAwaitingAcceptance || restored.Order.PreviousStatus != nil {
		t.Fatalf("unexpected restored state: %+v", restored.Order)
	}
}

func TestUpdateStatusToCancelledDelegates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := env.svc.UpdateStatus(ctx, workspaceID, UpdateStatusInput{OrderID: created.Order.ID, Status: "Cancelado", Reason: "customer request"})
	if err != nil {
		t.Fatalf("update to cancelled: %v", err)
	}
	if result.Order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", result.Order.Status)
	}

	item := env.loadStock(t, productID)
	if item.Reserved != 0 {
		t.Fatalf("delegated cancel did not release stock: %+v", item)
	}
}

func TestGetByIDScopedToWorkspace(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	workspaceID := env.seedWorkspace(t, nil)
	otherWorkspace := env.seedWorkspace(t, nil)
	productID := env.seedProduct(t, workspaceID, "SKU-1", 1000)
	env.seedStock(t, workspaceID, productID, 10)

	created, err := env.svc.Create(ctx, CreateOrderInput{
		WorkspaceID:   workspaceID,
		CustomerPhone: "5551234567",
		Lines:         []OrderLineInput{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = env.svc.GetByID(ctx, otherWorkspace, created.Order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeOrderNotFound) {
		t.Fatalf("expected ORDER_NOT_FOUND across workspaces, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Workspace{},
		&models.Customer{},
		&models.Product{},
		&models.ProductVariant{},
		&models.StockItem{},
		&models.StockMovement{},
		&models.StockReservation{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
	)
	if err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}
