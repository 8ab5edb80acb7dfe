package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/internal/customers"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerIDLister interface {
	ListAllIDs(ctx context.Context) ([]uuid.UUID, error)
}

type customerRecomputer interface {
	Recompute(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*customers.RecomputeResult, error)
}

// ReconcileCustomersJobParams configure the counter reconciliation job.
type ReconcileCustomersJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	IDs       customerIDLister
	Customers customerRecomputer
}

// NewReconcileCustomersJob builds the job that re-derives customer order
// counters from orders and repairs rows that drifted.
func NewReconcileCustomersJob(params ReconcileCustomersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.IDs == nil {
		return nil, fmt.Errorf("customer id lister required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customers service required")
	}
	return &reconcileCustomersJob{
		logg:      params.Logger,
		db:        params.DB,
		ids:       params.IDs,
		customers: params.Customers,
	}, nil
}

type reconcileCustomersJob struct {
	logg      *logger.Logger
	db        txRunner
	ids       customerIDLister
	customers customerRecomputer
}

func (j *reconcileCustomersJob) Name() string { return "reconcile-customers" }

// Run walks every customer. A failure on one row is collected and the walk
// continues; the combined error is reported at the end.
func (j *reconcileCustomersJob) Run(ctx context.Context) error {
	ids, err := j.ids.ListAllIDs(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}

	var errs []error
	repaired := 0
	for _, id := range ids {
		txErr := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			result, err := j.customers.Recompute(ctx, tx, id)
			if err != nil {
				return err
			}
			if result.Repaired {
				repaired++
				repairCtx := j.logg.WithFields(ctx, map[string]any{
					"customer_id":       id,
					"order_count":       result.OrderCount,
					"total_spent_cents": result.TotalSpentCents,
				})
				j.logg.Warn(repairCtx, "customer counters diverged; repaired")
			}
			return nil
		})
		if txErr != nil {
			errs = append(errs, fmt.Errorf("reconcile customer %s: %w", id, txErr))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"customers": len(ids), "repaired": repaired})
	j.logg.Info(logCtx, "customer reconciliation complete")
	return multierr.Combine(errs...)
}
