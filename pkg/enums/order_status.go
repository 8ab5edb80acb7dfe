package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order. A single column carries the
// fulfillment track plus the payment/invoicing tokens the operator tools use.
type OrderStatus string

const (
	OrderStatusDraft              OrderStatus = "draft"
	OrderStatusAwaitingAcceptance OrderStatus = "awaiting_acceptance"
	OrderStatusAccepted           OrderStatus = "accepted"
	OrderStatusProcessing         OrderStatus = "processing"
	OrderStatusShipped            OrderStatus = "shipped"
	OrderStatusDelivered          OrderStatus = "delivered"

	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPartialPayment OrderStatus = "partial_payment"
	OrderStatusPaid           OrderStatus = "paid"

	OrderStatusPendingInvoicing OrderStatus = "pending_invoicing"
	OrderStatusInvoiced         OrderStatus = "invoiced"
	OrderStatusInvoiceCancelled OrderStatus = "invoice_cancelled"

	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusTrashed   OrderStatus = "trashed"
	OrderStatusReturned  OrderStatus = "returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusAwaitingAcceptance,
	OrderStatusAccepted,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusPendingPayment,
	OrderStatusPartialPayment,
	OrderStatusPaid,
	OrderStatusPendingInvoicing,
	OrderStatusInvoiced,
	OrderStatusInvoiceCancelled,
	OrderStatusCancelled,
	OrderStatusTrashed,
	OrderStatusReturned,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further stock-affecting transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusDelivered, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
