package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
)

// Repository reads workspace limits and monthly order counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindWorkspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	CountOrdersCreatedBetween(ctx context.Context, workspaceID uuid.UUID, from, to time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quota repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWorkspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

func (r *repository) CountOrdersCreatedBetween(ctx context.Context, workspaceID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("workspace_id = ? AND created_at >= ? AND created_at < ?", workspaceID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
