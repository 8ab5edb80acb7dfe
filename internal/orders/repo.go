package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// Repository persists the order aggregate and its satellites.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	SaveOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Order, error)
	FindMaxOrderNumber(ctx context.Context, workspaceID uuid.UUID, prefix string) (string, error)

	CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)

	CreateReservations(ctx context.Context, reservations []models.StockReservation) error
	FindActiveReservations(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	UpdateReservationStatus(ctx context.Context, ids []uuid.UUID, status enums.ReservationStatus) error

	FindProduct(ctx context.Context, workspaceID, productID uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "StatusHistory", "Reservations").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "StatusHistory", "Reservations").Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Reservations").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindMaxOrderNumber returns the highest assigned number for the prefix.
// Length sorts before value so the ordering survives numbers that outgrow
// their zero padding.
func (r *repository) FindMaxOrderNumber(ctx context.Context, workspaceID uuid.UUID, prefix string) (string, error) {
	var number string
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("workspace_id = ? AND order_number LIKE ?", workspaceID, prefix+"%").
		Order("LENGTH(order_number) DESC, order_number DESC").
		Limit(1).
		Pluck("order_number", &number).Error
	if err != nil {
		return "", err
	}
	return number, nil
}

func (r *repository) CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var entries []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateReservations(ctx context.Context, reservations []models.StockReservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reservations).Error
}

func (r *repository) FindActiveReservations(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) UpdateReservationStatus(ctx context.Context, ids []uuid.UUID, status enums.ReservationStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}

func (r *repository) FindProduct(ctx context.Context, workspaceID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", productID, workspaceID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}
