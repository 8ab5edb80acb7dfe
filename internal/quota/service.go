package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

// Service gates order creation on the workspace's monthly plan limit.
type Service interface {
	Check(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID, at time.Time) error
}

type service struct {
	repo Repository
}

// NewService wires the quota gate with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quota repository required")
	}
	return &service{repo: repo}, nil
}

// Check counts orders created in the calendar month containing `at`.
// Cancelled orders still count; a cancellation does not refund quota.
func (s *service) Check(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID, at time.Time) error {
	if workspaceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}

	repo := s.repo.WithTx(tx)

	workspace, err := repo.FindWorkspace(ctx, workspaceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "workspace not found").
			WithDetails(map[string]any{"workspace_id": workspaceID})
	}
	if err != nil {
		return err
	}

	if workspace.MonthlyOrderLimit == nil {
		return nil
	}
	limit := *workspace.MonthlyOrderLimit

	from, to := monthWindow(at)
	count, err := repo.CountOrdersCreatedBetween(ctx, workspaceID, from, to)
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly order limit reached").
			WithDetails(map[string]any{
				"workspace_id": workspaceID,
				"limit":        limit,
				"used":         count,
			})
	}
	return nil
}

func monthWindow(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	from := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
