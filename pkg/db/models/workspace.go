package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace is the tenant boundary. Plan limits live here as a thin read
// surface; billing itself is handled elsewhere.
type Workspace struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name string    `gorm:"column:name;not null"`

	// MonthlyOrderLimit caps orders per calendar month. Nil means unlimited.
	MonthlyOrderLimit *int `gorm:"column:monthly_order_limit"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Workspace) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
