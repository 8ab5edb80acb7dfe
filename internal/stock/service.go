package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/pkg/db"
	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

type txRunner interface {
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the stock ledger. Every counter change appends exactly one
// movement in the same transaction; a failed step leaves no trace.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockItem, error)
	Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*models.StockItem, error)
	Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*models.StockItem, error)
	Receive(ctx context.Context, tx *gorm.DB, input ReceiveInput) (*models.StockItem, error)

	SetQuantity(ctx context.Context, input SetQuantityInput) (*models.StockItem, error)

	GetItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockItem, error)
	ListMovements(ctx context.Context, itemID uuid.UUID) ([]models.StockMovement, error)
	ListMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
}

// ReserveInput places a hold against available stock for one order line.
type ReserveInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
	OrderID   uuid.UUID
}

// ReleaseInput returns a previously reserved quantity to available stock.
type ReleaseInput struct {
	StockItemID uuid.UUID
	Qty         int
	OrderID     uuid.UUID
	Reason      string
}

// ConsumeInput burns a reserved quantity out of owned stock on delivery.
type ConsumeInput struct {
	StockItemID uuid.UUID
	Qty         int
	OrderID     uuid.UUID
}

// ReceiveInput adds owned stock, lazily creating the item row.
type ReceiveInput struct {
	WorkspaceID uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Qty         int
	Reason      string
	RefType     *enums.ReferenceType
	RefID       *uuid.UUID
}

// SetQuantityInput moves owned stock to an absolute target quantity.
type SetQuantityInput struct {
	WorkspaceID uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	NewQuantity int
	Reason      string
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires the stock ledger with its repository and tx runner.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockItem, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	item, err := repo.FindItem(ctx, input.ProductID, input.VariantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, insufficientStock(input.ProductID, input.Qty, 0)
	}
	if err != nil {
		return nil, err
	}

	ok, err := repo.ReserveQty(ctx, item.ID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, insufficientStock(input.ProductID, input.Qty, item.Available())
	}

	item, err = repo.FindItemByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	refType, refID := models.MovementRef(enums.ReferenceTypeOrder, input.OrderID)
	movement := &models.StockMovement{
		StockItemID:   item.ID,
		Type:          enums.MovementTypeReservation,
		Quantity:      -input.Qty,
		PreviousQty:   item.Available() + input.Qty,
		NewQty:        item.Available(),
		Reason:        "reserved for order",
		ReferenceType: refType,
		ReferenceID:   refID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*models.StockItem, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.ReleaseQty(ctx, input.StockItemID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "release exceeds reserved quantity").
			WithDetails(map[string]any{"stock_item_id": input.StockItemID, "qty": input.Qty})
	}

	item, err := repo.FindItemByID(ctx, input.StockItemID)
	if err != nil {
		return nil, err
	}

	reason := input.Reason
	if reason == "" {
		reason = "reservation released"
	}
	refType, refID := models.MovementRef(enums.ReferenceTypeOrder, input.OrderID)
	movement := &models.StockMovement{
		StockItemID:   item.ID,
		Type:          enums.MovementTypeReversal,
		Quantity:      input.Qty,
		PreviousQty:   item.Available() - input.Qty,
		NewQty:        item.Available(),
		Reason:        reason,
		ReferenceType: refType,
		ReferenceID:   refID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*models.StockItem, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consume qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.ConsumeQty(ctx, input.StockItemID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "consume exceeds reserved quantity").
			WithDetails(map[string]any{"stock_item_id": input.StockItemID, "qty": input.Qty})
	}

	item, err := repo.FindItemByID(ctx, input.StockItemID)
	if err != nil {
		return nil, err
	}

	refType, refID := models.MovementRef(enums.ReferenceTypeOrder, input.OrderID)
	movement := &models.StockMovement{
		StockItemID:   item.ID,
		Type:          enums.MovementTypeConsume,
		Quantity:      -input.Qty,
		PreviousQty:   item.Quantity + input.Qty,
		NewQty:        item.Quantity,
		Reason:        "reservation consumed on delivery",
		ReferenceType: refType,
		ReferenceID:   refID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Receive(ctx context.Context, tx *gorm.DB, input ReceiveInput) (*models.StockItem, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receive qty must be positive")
	}
	if input.WorkspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}
	repo := s.repo.WithTx(tx)

	item, err := s.ensureItem(ctx, repo, input.WorkspaceID, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}

	if _, err := repo.ReceiveQty(ctx, item.ID, input.Qty); err != nil {
		return nil, err
	}

	item, err = repo.FindItemByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	reason := input.Reason
	if reason == "" {
		reason = "stock received"
	}
	movement := &models.StockMovement{
		StockItemID:   item.ID,
		Type:          enums.MovementTypeReceipt,
		Quantity:      input.Qty,
		PreviousQty:   item.Quantity - input.Qty,
		NewQty:        item.Quantity,
		Reason:        reason,
		ReferenceType: input.RefType,
		ReferenceID:   input.RefID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) SetQuantity(ctx context.Context, input SetQuantityInput) (*models.StockItem, error) {
	if input.NewQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.WorkspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}

	var result *models.StockItem
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.ensureItem(ctx, repo, input.WorkspaceID, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}

		delta := input.NewQuantity - item.Quantity
		if delta == 0 {
			result = item
			return nil
		}

		ok, err := repo.AdjustQty(ctx, item.ID, delta)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity cannot drop below reserved").
				WithDetails(map[string]any{
					"stock_item_id": item.ID,
					"reserved":      item.Reserved,
					"requested":     input.NewQuantity,
				})
		}

		item, err = repo.FindItemByID(ctx, item.ID)
		if err != nil {
			return err
		}

		movementType := enums.MovementTypeAdjustment
		if delta > 0 {
			movementType = enums.MovementTypeReceipt
		}
		reason := input.Reason
		if reason == "" {
			reason = "manual quantity update"
		}
		movement := &models.StockMovement{
			StockItemID: item.ID,
			Type:        movementType,
			Quantity:    delta,
			PreviousQty: item.Quantity - delta,
			NewQty:      item.Quantity,
			Reason:      reason,
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return err
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockItem, error) {
	item, err := s.repo.FindItem(ctx, productID, variantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) ListMovements(ctx context.Context, itemID uuid.UUID) ([]models.StockMovement, error) {
	return s.repo.ListMovementsByItem(ctx, itemID)
}

func (s *service) ListMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	return s.repo.ListMovementsByReference(ctx, enums.ReferenceTypeOrder, orderID)
}

// ensureItem loads the (product, variant) row, creating a zero row on first
// touch. A concurrent create is absorbed by re-reading.
func (s *service) ensureItem(ctx context.Context, repo Repository, workspaceID, productID uuid.UUID, variantID *uuid.UUID) (*models.StockItem, error) {
	item, err := repo.FindItem(ctx, productID, variantID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &models.StockItem{
		WorkspaceID: workspaceID,
		ProductID:   productID,
		VariantID:   variantID,
	}
	createErr := repo.CreateItem(ctx, fresh)
	if createErr == nil {
		return fresh, nil
	}
	if db.IsUniqueViolation(createErr, "stock_items") {
		return repo.FindItem(ctx, productID, variantID)
	}
	return nil, createErr
}

func insufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient available stock").
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		})
}
