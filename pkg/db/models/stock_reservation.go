package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// StockReservation is the hold one order line keeps against available stock.
// Created active at order creation, flipped to released on cancellation or to
// consumed on delivery. ExpiresAt is stored for a future background sweep;
// nothing enforces it today.
type StockReservation struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	StockItemID uuid.UUID  `gorm:"column:stock_item_id;type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid"`

	Quantity int                     `gorm:"column:quantity;not null"`
	Status   enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'active'"`

	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *StockReservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
