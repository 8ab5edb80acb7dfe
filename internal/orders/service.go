package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ventiahq/ventia-backend/internal/customers"
	"github.com/ventiahq/ventia-backend/internal/notifications"
	"github.com/ventiahq/ventia-backend/internal/quota"
	"github.com/ventiahq/ventia-backend/internal/stock"
	"github.com/ventiahq/ventia-backend/pkg/config"
	"github.com/ventiahq/ventia-backend/pkg/db"
	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
	"github.com/ventiahq/ventia-backend/pkg/metrics"
	"github.com/ventiahq/ventia-backend/pkg/redis"
)

type txRunner interface {
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Dispatch(ctx context.Context, input notifications.DispatchInput)
}

// Service is the order engine: creation with stock reservation, the status
// state machine, and cancellation with full reversal.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	GetByID(ctx context.Context, workspaceID, orderID uuid.UUID) (*models.Order, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Order, error)
	GetHistory(ctx context.Context, workspaceID, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	UpdateStatus(ctx context.Context, workspaceID uuid.UUID, input UpdateStatusInput) (*UpdateStatusResult, error)
	Cancel(ctx context.Context, workspaceID uuid.UUID, input CancelInput) (*models.Order, error)
}

type service struct {
	tx           txRunner
	repo         Repository
	stockSvc     stock.Service
	customersSvc customers.Service
	quotaSvc     quota.Service
	guard        creationGuard
	notifier     notifier
	metrics      *metrics.EngineMetrics
	logg         *logger.Logger
	allocator    numberAllocator
}

// NewService wires the order engine. The notifier and metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	stockSvc stock.Service,
	customersSvc customers.Service,
	quotaSvc quota.Service,
	guardStore redis.IdempotencyStore,
	notifier notifier,
	engineMetrics *metrics.EngineMetrics,
	logg *logger.Logger,
	ordersCfg config.OrdersConfig,
	idempotencyCfg config.IdempotencyConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if customersSvc == nil {
		return nil, fmt.Errorf("customers service required")
	}
	if quotaSvc == nil {
		return nil, fmt.Errorf("quota service required")
	}
	if guardStore == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		stockSvc:     stockSvc,
		customersSvc: customersSvc,
		quotaSvc:     quotaSvc,
		guard:        newCreationGuard(guardStore, idempotencyCfg.CreateTTL),
		notifier:     notifier,
		metrics:      engineMetrics,
		logg:         logg,
		allocator:    newNumberAllocator(ordersCfg.NumberPrefix, ordersCfg.NumberWidth, ordersCfg.NumberMaxAttempts),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.WorkspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line product id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line qty must be positive")
		}
	}
	phone := customers.NormalizePhone(input.CustomerPhone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if input.ShippingCents < 0 || input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping and discount cannot be negative")
	}

	if err := s.quotaSvc.Check(ctx, nil, input.WorkspaceID, time.Now()); err != nil {
		return nil, err
	}

	lines := make([]fingerprintLine, len(input.Lines))
	for i, line := range input.Lines {
		lines[i] = fingerprintLine{ProductID: line.ProductID, VariantID: line.VariantID, Qty: line.Qty}
	}
	fingerprint := Fingerprint(input.WorkspaceID, phone, lines)

	existingID, err := s.guard.claim(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if existingID != nil {
		order, err := s.GetByID(ctx, input.WorkspaceID, *existingID)
		if err != nil {
			return nil, err
		}
		return &CreateOrderResult{Order: order, Duplicate: true}, nil
	}

	order, err := s.createWithNumberRetry(ctx, input, phone)
	if err != nil {
		if releaseErr := s.guard.release(ctx, fingerprint); releaseErr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("releasing creation claim failed: %v", releaseErr))
		}
		return nil, err
	}

	if err := s.guard.commit(ctx, fingerprint, order.ID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("recording creation claim failed: %v", err))
	}
	s.metrics.IncOrdersCreated()

	s.dispatch(ctx, order, enums.NotificationTypeOrderCreated, "New order",
		fmt.Sprintf("Order %s placed for %d cents", order.OrderNumber, order.TotalCents))

	return &CreateOrderResult{Order: order}, nil
}

// createWithNumberRetry runs the creating transaction, reallocating the order
// number when a concurrent creation claimed the same one. The unique index on
// (workspace, number) is the arbiter.
func (s *service) createWithNumberRetry(ctx context.Context, input CreateOrderInput, phone string) (*models.Order, error) {
	var order *models.Order
	for attempt := 0; attempt < s.allocator.maxAttempts; attempt++ {
		var err error
		order, err = s.createOnce(ctx, input, phone)
		if err == nil {
			return order, nil
		}
		if db.IsUniqueViolation(err, "order_number") {
			s.metrics.IncNumberCollisions()
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeOrderNumberExhausted, "could not allocate a unique order number")
}

func (s *service) createOnce(ctx context.Context, input CreateOrderInput, phone string) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		customer, err := s.customersSvc.Resolve(ctx, tx, customers.ResolveInput{
			WorkspaceID: input.WorkspaceID,
			Phone:       phone,
			Name:        input.CustomerName,
		})
		if err != nil {
			return err
		}

		items, subtotal, err := s.buildItems(ctx, repo, input)
		if err != nil {
			return err
		}

		total := subtotal + input.ShippingCents - input.DiscountCents
		if total < 0 {
			total = 0
		}

		highest, err := repo.FindMaxOrderNumber(ctx, input.WorkspaceID, s.allocator.prefix)
		if err != nil {
			return err
		}
		number, err := s.allocator.next(highest)
		if err != nil {
			return err
		}

		order := &models.Order{
			WorkspaceID:   input.WorkspaceID,
			OrderNumber:   number,
			CustomerID:    customer.ID,
			Status:        enums.OrderStatusAwaitingAcceptance,
			SubtotalCents: subtotal,
			ShippingCents: input.ShippingCents,
			DiscountCents: input.DiscountCents,
			TotalCents:    total,
		}
		if input.Notes != "" {
			order.Notes = &input.Notes
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}

		reservations := make([]models.StockReservation, 0, len(items))
		for _, item := range items {
			stockItem, err := s.stockSvc.Reserve(ctx, tx, stock.ReserveInput{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Qty:       item.Qty,
				OrderID:   order.ID,
			})
			if err != nil {
				if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
					s.metrics.IncInsufficientStock()
				}
				return err
			}
			reservations = append(reservations, models.StockReservation{
				OrderID:     order.ID,
				StockItemID: stockItem.ID,
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				Quantity:    item.Qty,
				Status:      enums.ReservationStatusActive,
			})
		}
		if err := repo.CreateReservations(ctx, reservations); err != nil {
			return err
		}

		if err := repo.CreateStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID:   order.ID,
			NewStatus: order.Status,
			ChangedBy: actorOrSystem(input.Actor),
		}); err != nil {
			return err
		}

		if err := s.customersSvc.ApplyOrderCreated(ctx, tx, customer.ID, total); err != nil {
			return err
		}

		order.Items = items
		order.Reservations = reservations
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// buildItems snapshots catalog data into immutable order lines.
func (s *service) buildItems(ctx context.Context, repo Repository, input CreateOrderInput) ([]models.OrderItem, int, error) {
	items := make([]models.OrderItem, 0, len(input.Lines))
	subtotal := 0
	for _, line := range input.Lines {
		product, err := repo.FindProduct(ctx, input.WorkspaceID, line.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if err != nil {
			return nil, 0, err
		}
		if !product.Active {
			return nil, 0, pkgerrors.New(pkgerrors.CodeProductNotFound, "product is inactive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}

		sku := product.SKU
		name := product.Name
		unitPrice := product.PriceCents
		if line.VariantID != nil {
			variant, err := repo.FindVariant(ctx, line.ProductID, *line.VariantID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, pkgerrors.New(pkgerrors.CodeProductNotFound, "product variant not found").
					WithDetails(map[string]any{"product_id": line.ProductID, "variant_id": *line.VariantID})
			}
			if err != nil {
				return nil, 0, err
			}
			sku = variant.SKU
			name = fmt.Sprintf("%s - %s", product.Name, variant.Name)
			unitPrice = variant.PriceCents
		}

		lineTotal := unitPrice * line.Qty
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			SKU:            sku,
			Name:           name,
			Qty:            line.Qty,
			UnitPriceCents: unitPrice,
			TotalCents:     lineTotal,
		})
	}
	return items, subtotal, nil
}

func (s *service) GetByID(ctx context.Context, workspaceID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, err
	}
	if workspaceID != uuid.Nil && order.WorkspaceID != workspaceID {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

func (s *service) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Order, error) {
	if workspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}
	return s.repo.ListByWorkspace(ctx, workspaceID, limit)
}

func (s *service) GetHistory(ctx context.Context, workspaceID, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if _, err := s.GetByID(ctx, workspaceID, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListStatusHistory(ctx, orderID)
}

func (s *service) UpdateStatus(ctx context.Context, workspaceID uuid.UUID, input UpdateStatusInput) (*UpdateStatusResult, error) {
	target, err := ResolveStatus(input.Status)
	if err != nil {
		return nil, err
	}

	if target == enums.OrderStatusCancelled {
		order, err := s.Cancel(ctx, workspaceID, CancelInput{OrderID: input.OrderID, Reason: input.Reason, Actor: input.Actor})
		if err != nil {
			return nil, err
		}
		return &UpdateStatusResult{Order: order}, nil
	}

	var result *UpdateStatusResult
	err = s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadForWorkspace(ctx, repo, workspaceID, input.OrderID)
		if err != nil {
			return err
		}

		if order.Status == target {
			result = &UpdateStatusResult{Order: order, Unchanged: true}
			return nil
		}

		previous := order.Status
		if previous == enums.OrderStatusTrashed {
			if order.PreviousStatus == nil || *order.PreviousStatus != target {
				return pkgerrors.New(pkgerrors.CodeInvalidStatus, "trashed orders can only be restored to their previous status").
					WithDetails(map[string]any{"from": previous, "to": target})
			}
			order.PreviousStatus = nil
		} else {
			if err := CanTransition(previous, target); err != nil {
				return err
			}
			if target == enums.OrderStatusTrashed {
				prev := previous
				order.PreviousStatus = &prev
			}
		}

		if err := s.applyStatusEffects(ctx, tx, repo, order, target); err != nil {
			return err
		}

		order.Status = target
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		entry := &models.OrderStatusHistory{
			OrderID:        order.ID,
			PreviousStatus: &previous,
			NewStatus:      target,
			ChangedBy:      actorOrSystem(input.Actor),
		}
		if input.Reason != "" {
			entry.Reason = &input.Reason
		}
		if err := repo.CreateStatusHistory(ctx, entry); err != nil {
			return err
		}

		result = &UpdateStatusResult{Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Unchanged {
		s.dispatch(ctx, result.Order, enums.NotificationTypeOrderStatus, "Order status changed",
			fmt.Sprintf("Order %s moved to %s", result.Order.OrderNumber, result.Order.Status))
	}
	return result, nil
}

// applyStatusEffects stamps timestamps and settles reservations for statuses
// that carry side effects.
func (s *service) applyStatusEffects(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, target enums.OrderStatus) error {
	now := time.Now().UTC()
	switch target {
	case enums.OrderStatusPaid:
		order.PaidAt = &now
		order.PaidCents = order.TotalCents

	case enums.OrderStatusShipped:
		order.ShippedAt = &now

	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
		reservations, err := repo.FindActiveReservations(ctx, order.ID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(reservations))
		for _, reservation := range reservations {
			if _, err := s.stockSvc.Consume(ctx, tx, stock.ConsumeInput{
				StockItemID: reservation.StockItemID,
				Qty:         reservation.Quantity,
				OrderID:     order.ID,
			}); err != nil {
				return err
			}
			ids = append(ids, reservation.ID)
		}
		if err := repo.UpdateReservationStatus(ctx, ids, enums.ReservationStatusConsumed); err != nil {
			return err
		}

	case enums.OrderStatusReturned:
		// Delivered stock comes back on the shelf.
		for _, item := range order.Items {
			if _, err := s.stockSvc.Receive(ctx, tx, stock.ReceiveInput{
				WorkspaceID: order.WorkspaceID,
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				Qty:         item.Qty,
				Reason:      "order returned",
				RefType:     refType(enums.ReferenceTypeOrder),
				RefID:       refID(order.ID),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, workspaceID uuid.UUID, input CancelInput) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required").
			WithDetails(map[string]any{"order_id": input.OrderID})
	}

	var cancelled *models.Order
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadForWorkspace(ctx, repo, workspaceID, input.OrderID)
		if err != nil {
			return err
		}

		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "order is already cancelled").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if IsProcessed(order.Status) || order.Status == enums.OrderStatusReturned {
			return pkgerrors.New(pkgerrors.CodeOrderNotCancellable, "order has been processed and cannot be cancelled").
				WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
		}

		reservations, err := repo.FindActiveReservations(ctx, order.ID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(reservations))
		for _, reservation := range reservations {
			if _, err := s.stockSvc.Release(ctx, tx, stock.ReleaseInput{
				StockItemID: reservation.StockItemID,
				Qty:         reservation.Quantity,
				OrderID:     order.ID,
				Reason:      "order cancelled",
			}); err != nil {
				return err
			}
			ids = append(ids, reservation.ID)
		}
		if err := repo.UpdateReservationStatus(ctx, ids, enums.ReservationStatusReleased); err != nil {
			return err
		}

		previous := order.Status
		now := time.Now().UTC()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = &input.Reason
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		entry := &models.OrderStatusHistory{
			OrderID:        order.ID,
			PreviousStatus: &previous,
			NewStatus:      enums.OrderStatusCancelled,
			ChangedBy:      actorOrSystem(input.Actor),
			Reason:         &input.Reason,
		}
		if err := repo.CreateStatusHistory(ctx, entry); err != nil {
			return err
		}

		if err := s.customersSvc.ApplyOrderCancelled(ctx, tx, order.CustomerID, order.TotalCents); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrdersCancelled()
	s.dispatch(ctx, cancelled, enums.NotificationTypeOrderCancelled, "Order cancelled",
		fmt.Sprintf("Order %s cancelled", cancelled.OrderNumber))
	return cancelled, nil
}

func (s *service) loadForWorkspace(ctx context.Context, repo Repository, workspaceID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, err
	}
	if workspaceID != uuid.Nil && order.WorkspaceID != workspaceID {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

func (s *service) dispatch(ctx context.Context, order *models.Order, kind enums.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, notifications.DispatchInput{
		WorkspaceID: order.WorkspaceID,
		Type:        kind,
		Title:       title,
		Message:     message,
		RefType:     refType(enums.ReferenceTypeOrder),
		RefID:       refID(order.ID),
		Payload: map[string]any{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"total_cents":  order.TotalCents,
		},
	})
}

func orderNotFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID})
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}

func refType(t enums.ReferenceType) *enums.ReferenceType {
	return &t
}

func refID(id uuid.UUID) *uuid.UUID {
	return &id
}
