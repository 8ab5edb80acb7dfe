package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db"
	"github.com/ventiahq/ventia-backend/pkg/db/models"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

const phoneSuffixLen = 10

// Service resolves customers by phone and maintains their cached order
// counters.
type Service interface {
	Resolve(ctx context.Context, tx *gorm.DB, input ResolveInput) (*models.Customer, error)
	ApplyOrderCreated(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, totalCents int) error
	ApplyOrderCancelled(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, totalCents int) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Recompute(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*RecomputeResult, error)
}

// ResolveInput identifies a customer at order time.
type ResolveInput struct {
	WorkspaceID uuid.UUID
	Phone       string
	Name        string
}

// RecomputeResult reports what reconciliation found for one customer.
type RecomputeResult struct {
	CustomerID      uuid.UUID
	OrderCount      int
	TotalSpentCents int
	Repaired        bool
}

type service struct {
	repo Repository
}

// NewService wires the customers service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	return &service{repo: repo}, nil
}

// NormalizePhone strips everything but digits. A leading + is dropped; the
// suffix match absorbs country-code differences.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, input ResolveInput) (*models.Customer, error) {
	if input.WorkspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}
	phone := NormalizePhone(input.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}

	repo := s.repo.WithTx(tx)

	customer, err := repo.FindByPhone(ctx, input.WorkspaceID, phone)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Fall back to a last-digits match so numbers stored with a country
	// code still resolve to the same customer.
	if customer == nil && len(phone) >= phoneSuffixLen {
		customer, err = repo.FindByPhoneSuffix(ctx, input.WorkspaceID, phone[len(phone)-phoneSuffixLen:])
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if customer != nil {
		if input.Name != "" && (customer.Name == nil || *customer.Name == "") {
			if err := repo.UpdateName(ctx, customer.ID, input.Name); err != nil {
				return nil, err
			}
			customer.Name = &input.Name
		}
		return customer, nil
	}

	fresh := &models.Customer{
		WorkspaceID: input.WorkspaceID,
		Phone:       phone,
	}
	if input.Name != "" {
		fresh.Name = &input.Name
	}
	createErr := repo.Create(ctx, fresh)
	if createErr == nil {
		return fresh, nil
	}
	if db.IsUniqueViolation(createErr, "customers") {
		return repo.FindByPhone(ctx, input.WorkspaceID, phone)
	}
	return nil, createErr
}

func (s *service) ApplyOrderCreated(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, totalCents int) error {
	ok, err := s.repo.WithTx(tx).IncrementCounters(ctx, customerID, 1, totalCents)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "customer counters rejected order").
			WithDetails(map[string]any{"customer_id": customerID})
	}
	return nil
}

func (s *service) ApplyOrderCancelled(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, totalCents int) error {
	ok, err := s.repo.WithTx(tx).IncrementCounters(ctx, customerID, -1, -totalCents)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "customer counters would go negative").
			WithDetails(map[string]any{"customer_id": customerID})
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
			WithDetails(map[string]any{"customer_id": id})
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// Recompute re-derives the cached counters from non-cancelled orders and
// repairs the row when it diverged.
func (s *service) Recompute(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*RecomputeResult, error) {
	repo := s.repo.WithTx(tx)

	customer, err := repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	count, cents, err := repo.AggregateOrders(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result := &RecomputeResult{
		CustomerID:      customerID,
		OrderCount:      count,
		TotalSpentCents: cents,
	}
	if customer.OrderCount == count && customer.TotalSpentCents == cents {
		return result, nil
	}

	if err := repo.SetCounters(ctx, customerID, count, cents); err != nil {
		return nil, err
	}
	result.Repaired = true
	return result, nil
}
