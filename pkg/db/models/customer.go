package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is resolved by phone at order time. OrderCount and TotalSpentCents
// are denormalized caches maintained by the order engine; the reconciliation
// job re-derives them from non-cancelled orders and treats divergence as a bug.
type Customer struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `gorm:"column:workspace_id;type:uuid;not null;uniqueIndex:idx_customers_workspace_phone"`
	Phone       string    `gorm:"column:phone;not null;uniqueIndex:idx_customers_workspace_phone"`
	Name        *string   `gorm:"column:name"`

	OrderCount      int `gorm:"column:order_count;not null;default:0"`
	TotalSpentCents int `gorm:"column:total_spent_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
