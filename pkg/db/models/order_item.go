package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is an immutable snapshot of one line at the moment the order was
// created; later catalog edits never touch it.
type OrderItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`

	SKU  string `gorm:"column:sku;not null"`
	Name string `gorm:"column:name;not null"`

	Qty            int `gorm:"column:qty;not null"`
	UnitPriceCents int `gorm:"column:unit_price_cents;not null"`
	TotalCents     int `gorm:"column:total_cents;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
