package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
)

// Notification is a workspace-facing message persisted by the dispatcher.
// Delivery is best effort; the engine never fails an order over one.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	WorkspaceID uuid.UUID              `gorm:"column:workspace_id;type:uuid;not null;index"`
	Type        enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Message     string                 `gorm:"column:message;not null"`

	ReferenceType *enums.ReferenceType `gorm:"column:reference_type;type:text"`
	ReferenceID   *uuid.UUID           `gorm:"column:reference_id;type:uuid"`

	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
