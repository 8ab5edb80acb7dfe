package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// Repository persists customers and reads the order aggregates their cached
// counters are derived from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, workspaceID uuid.UUID, phone string) (*models.Customer, error)
	FindByPhoneSuffix(ctx context.Context, workspaceID uuid.UUID, suffix string) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error

	IncrementCounters(ctx context.Context, id uuid.UUID, orderDelta, centsDelta int) (bool, error)
	SetCounters(ctx context.Context, id uuid.UUID, orderCount, totalSpentCents int) error

	ListIDsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)
	ListAllIDs(ctx context.Context) ([]uuid.UUID, error)
	AggregateOrders(ctx context.Context, customerID uuid.UUID) (int, int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByPhone(ctx context.Context, workspaceID uuid.UUID, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND phone = ?", workspaceID, phone).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByPhoneSuffix(ctx context.Context, workspaceID uuid.UUID, suffix string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND phone LIKE ?", workspaceID, "%"+suffix).
		Order("created_at ASC").
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("name", name).Error
}

// IncrementCounters is guarded so cancellation replays can never drive the
// caches negative.
func (r *repository) IncrementCounters(ctx context.Context, id uuid.UUID, orderDelta, centsDelta int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND order_count + ? >= 0 AND total_spent_cents + ? >= 0", id, orderDelta, centsDelta).
		Updates(map[string]any{
			"order_count":       gorm.Expr("order_count + ?", orderDelta),
			"total_spent_cents": gorm.Expr("total_spent_cents + ?", centsDelta),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) SetCounters(ctx context.Context, id uuid.UUID, orderCount, totalSpentCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"order_count":       orderCount,
			"total_spent_cents": totalSpentCents,
		}).Error
}

func (r *repository) ListIDsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AggregateOrders re-derives the counters from non-cancelled orders. Trashed
// orders still count: trashing never touched the incremental counters and the
// order restores to its previous status.
func (r *repository) AggregateOrders(ctx context.Context, customerID uuid.UUID) (int, int, error) {
	type row struct {
		OrderCount      int
		TotalSpentCents int
	}
	var out row
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COUNT(*) AS order_count, COALESCE(SUM(total_cents), 0) AS total_spent_cents").
		Where("customer_id = ? AND status <> ?", customerID, enums.OrderStatusCancelled).
		Scan(&out).Error
	if err != nil {
		return 0, 0, err
	}
	return out.OrderCount, out.TotalSpentCents, nil
}
