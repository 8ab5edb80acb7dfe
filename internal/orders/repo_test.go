package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
)

func seedOrderRow(t *testing.T, db *gorm.DB, workspaceID uuid.UUID, number string, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		WorkspaceID: workspaceID,
		OrderNumber: number,
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusAwaitingAcceptance,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestFindMaxOrderNumberSurvivesPaddingOutgrowth(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	base := time.Now().UTC()

	seedOrderRow(t, db, workspaceID, "ORD-000099", base)
	seedOrderRow(t, db, workspaceID, "ORD-000100", base.Add(time.Second))
	// Longer number sorts last lexicographically but is numerically highest.
	seedOrderRow(t, db, workspaceID, "ORD-1000000", base.Add(2*time.Second))

	max, err := repo.FindMaxOrderNumber(ctx, workspaceID, "ORD-")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1000000", max)
}

func TestFindMaxOrderNumberScopedToWorkspaceAndPrefix(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	otherWorkspace := uuid.New()
	base := time.Now().UTC()

	seedOrderRow(t, db, workspaceID, "ORD-000002", base)
	seedOrderRow(t, db, otherWorkspace, "ORD-000777", base)
	seedOrderRow(t, db, workspaceID, "INV-000999", base)

	max, err := repo.FindMaxOrderNumber(ctx, workspaceID, "ORD-")
	require.NoError(t, err)
	assert.Equal(t, "ORD-000002", max)

	empty, err := repo.FindMaxOrderNumber(ctx, uuid.New(), "ORD-")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListByWorkspaceNewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	base := time.Now().UTC()

	seedOrderRow(t, db, workspaceID, "ORD-000001", base)
	seedOrderRow(t, db, workspaceID, "ORD-000002", base.Add(time.Minute))
	seedOrderRow(t, db, workspaceID, "ORD-000003", base.Add(2*time.Minute))

	list, err := repo.ListByWorkspace(ctx, workspaceID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ORD-000003", list[0].OrderNumber)
	assert.Equal(t, "ORD-000002", list[1].OrderNumber)
}

func TestReservationLifecycleQueries(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	reservations := []models.StockReservation{
		{OrderID: orderID, StockItemID: uuid.New(), ProductID: uuid.New(), Quantity: 2, Status: enums.ReservationStatusActive},
		{OrderID: orderID, StockItemID: uuid.New(), ProductID: uuid.New(), Quantity: 1, Status: enums.ReservationStatusActive},
	}
	require.NoError(t, repo.CreateReservations(ctx, reservations))

	active, err := repo.FindActiveReservations(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, active, 2)

	require.NoError(t, repo.UpdateReservationStatus(ctx, []uuid.UUID{active[0].ID}, enums.ReservationStatusReleased))

	remaining, err := repo.FindActiveReservations(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, active[1].ID, remaining[0].ID)
}

func TestFindProductScopedToWorkspace(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()

	product := models.Product{
		WorkspaceID: workspaceID,
		SKU:         "SKU-REPO",
		Name:        "Widget",
		PriceCents:  1500,
		Active:      true,
	}
	require.NoError(t, db.Create(&product).Error)

	found, err := repo.FindProduct(ctx, workspaceID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.SKU, found.SKU)

	_, err = repo.FindProduct(ctx, uuid.New(), product.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
