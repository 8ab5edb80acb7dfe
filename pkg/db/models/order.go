package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// Order is the aggregate root produced by the order engine. Rows are never
// hard-deleted; cancellation is a status. OrderNumber is immutable once
// assigned. All monetary fields are integer minor-currency units.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `gorm:"column:workspace_id;type:uuid;not null;uniqueIndex:uq_orders_workspace_order_number"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex:uq_orders_workspace_order_number"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'awaiting_acceptance'"`

	// PreviousStatus is stored when an order is trashed so it can be restored.
	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;type:text"`

	SubtotalCents int `gorm:"column:subtotal_cents;not null"`
	ShippingCents int `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents int `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int `gorm:"column:total_cents;not null"`
	PaidCents     int `gorm:"column:paid_cents;not null;default:0"`

	Notes        *string `gorm:"column:notes"`
	CancelReason *string `gorm:"column:cancel_reason"`

	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Reservations  []StockReservation   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
