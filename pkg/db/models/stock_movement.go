package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// StockMovement is the append-only audit trail of every stock-affecting step.
// Rows are never mutated or deleted. Balances are read from StockItem, not
// recomputed from movements; movements exist for audit and reconciliation.
type StockMovement struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StockItemID uuid.UUID          `gorm:"column:stock_item_id;type:uuid;not null;index"`
	Type        enums.MovementType `gorm:"column:type;type:text;not null"`

	// Quantity is the signed delta; PreviousQty/NewQty snapshot the affected
	// counter around the step (available stock for reservation/reversal,
	// owned quantity for receipt/adjustment).
	Quantity    int    `gorm:"column:quantity;not null"`
	PreviousQty int    `gorm:"column:previous_qty;not null"`
	NewQty      int    `gorm:"column:new_qty;not null"`
	Reason      string `gorm:"column:reason;not null"`

	ReferenceType *enums.ReferenceType `gorm:"column:reference_type;type:text"`
	ReferenceID   *uuid.UUID           `gorm:"column:reference_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MovementRef builds the typed reference pair for a causing entity.
func MovementRef(kind enums.ReferenceType, id uuid.UUID) (*enums.ReferenceType, *uuid.UUID) {
	ref := kind
	target := id
	return &ref, &target
}
