package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// OrderStatusHistory is the append-only record of every status transition.
// One row per transition; no-op updates write nothing.
type OrderStatusHistory struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;type:text"`
	NewStatus      enums.OrderStatus  `gorm:"column:new_status;type:text;not null"`
	Reason         *string            `gorm:"column:reason"`
	ChangedBy      string             `gorm:"column:changed_by;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
