package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// Repository persists stock items and their movement trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockItem, error)
	FindItemByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error)
	CreateItem(ctx context.Context, item *models.StockItem) error

	ReserveQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	ReleaseQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	ConsumeQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	ReceiveQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	AdjustQty(ctx context.Context, itemID uuid.UUID, delta int) (bool, error)

	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovementsByItem(ctx context.Context, itemID uuid.UUID) ([]models.StockMovement, error)
	ListMovementsByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if variantID == nil {
		query = query.Where("variant_id IS NULL")
	} else {
		query = query.Where("variant_id = ?", *variantID)
	}
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Counter updates are guarded in SQL so the bounds invariant holds even off
// serializable isolation. A false return means the guard rejected the change.

func (r *repository) ReserveQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	return r.guardedUpdate(ctx,
		"id = ? AND quantity - reserved >= ?", []any{itemID, qty},
		map[string]any{"reserved": gorm.Expr("reserved + ?", qty)},
	)
}

func (r *repository) ReleaseQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	return r.guardedUpdate(ctx,
		"id = ? AND reserved >= ?", []any{itemID, qty},
		map[string]any{"reserved": gorm.Expr("reserved - ?", qty)},
	)
}

func (r *repository) ConsumeQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	return r.guardedUpdate(ctx,
		"id = ? AND reserved >= ? AND quantity >= ?", []any{itemID, qty, qty},
		map[string]any{
			"reserved": gorm.Expr("reserved - ?", qty),
			"quantity": gorm.Expr("quantity - ?", qty),
		},
	)
}

func (r *repository) ReceiveQty(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	return r.guardedUpdate(ctx,
		"id = ?", []any{itemID},
		map[string]any{"quantity": gorm.Expr("quantity + ?", qty)},
	)
}

func (r *repository) AdjustQty(ctx context.Context, itemID uuid.UUID, delta int) (bool, error) {
	return r.guardedUpdate(ctx,
		"id = ? AND quantity + ? >= reserved AND quantity + ? >= 0", []any{itemID, delta, delta},
		map[string]any{"quantity": gorm.Expr("quantity + ?", delta)},
	)
}

func (r *repository) guardedUpdate(ctx context.Context, where string, args []any, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where(where, args...).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovementsByItem(ctx context.Context, itemID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("stock_item_id = ?", itemID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListMovementsByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
