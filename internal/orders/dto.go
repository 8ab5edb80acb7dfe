package orders

import (
	"github.com/google/uuid"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
)

// OrderLineInput is one requested line. Pricing is resolved server-side from
// the catalog; clients never send amounts.
type OrderLineInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty" validate:"required,gt=0"`
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	WorkspaceID   uuid.UUID
	CustomerPhone string
	CustomerName  string
	Lines         []OrderLineInput
	ShippingCents int
	DiscountCents int
	Notes         string
	Actor         string
}

// CreateOrderResult reports the created order; Duplicate is set when the
// request replayed an earlier identical creation.
type CreateOrderResult struct {
	Order     *models.Order
	Duplicate bool
}

// UpdateStatusInput moves an order to a new lifecycle status. Status accepts
// canonical tokens and legacy aliases.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  string
	Reason  string
	Actor   string
}

// UpdateStatusResult reports the order after the move; Unchanged is set when
// the target equals the current status and nothing was written.
type UpdateStatusResult struct {
	Order     *models.Order
	Unchanged bool
}

// CancelInput cancels an order and reverses its stock holds. Reason is
// mandatory; a cancellation with no recorded cause is rejected.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   string
}
