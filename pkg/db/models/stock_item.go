package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockItem owns the quantity/reserved counters for one (product, variant)
// pair. Invariant: 0 <= Reserved <= Quantity. Available stock is always
// derived as Quantity - Reserved and never persisted. Rows are created lazily
// on first receipt and never deleted. Counter mutations happen only inside a
// transaction that also appends a StockMovement.
type StockItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	WorkspaceID uuid.UUID  `gorm:"column:workspace_id;type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_stock_items_product_variant"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:idx_stock_items_product_variant"`

	Quantity int `gorm:"column:quantity;not null;default:0"`
	Reserved int `gorm:"column:reserved;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockItem) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Available returns the quantity offerable to new orders.
func (s *StockItem) Available() int {
	return s.Quantity - s.Reserved
}
