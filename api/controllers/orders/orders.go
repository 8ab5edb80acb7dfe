package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ventiahq/ventia-backend/api/middleware"
	"github.com/ventiahq/ventia-backend/api/responses"
	"github.com/ventiahq/ventia-backend/api/validators"
	internalorders "github.com/ventiahq/ventia-backend/internal/orders"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type createOrderRequest struct {
	CustomerPhone string                          `json:"customer_phone" validate:"required"`
	CustomerName  string                          `json:"customer_name,omitempty"`
	Lines         []internalorders.OrderLineInput `json:"lines" validate:"required,min=1,dive"`
	ShippingCents int                             `json:"shipping_cents" validate:"gte=0"`
	DiscountCents int                             `json:"discount_cents" validate:"gte=0"`
	Notes         string                          `json:"notes,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Create places a new order for the active workspace.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			WorkspaceID:   workspaceID,
			CustomerPhone: payload.CustomerPhone,
			CustomerName:  payload.CustomerName,
			Lines:         payload.Lines,
			ShippingCents: payload.ShippingCents,
			DiscountCents: payload.DiscountCents,
			Notes:         payload.Notes,
			Actor:         middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Duplicate {
			responses.WriteSuccess(w, result.Order)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result.Order)
	}
}

// List returns the workspace's most recent orders.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByWorkspace(r.Context(), workspaceID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its items and reservations.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), workspaceID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// History returns the order's status transitions in chronological order.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.GetHistory(r.Context(), workspaceID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// UpdateStatus moves the order along its lifecycle. Status accepts canonical
// tokens and legacy Spanish aliases.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateStatus(r.Context(), workspaceID, internalorders.UpdateStatusInput{
			OrderID: orderID,
			Status:  payload.Status,
			Reason:  payload.Reason,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order":     result.Order,
			"unchanged": result.Unchanged,
		})
	}
}

// Cancel reverses the order's stock holds and marks it cancelled. Cancelling
// an already cancelled order is reported as a soft success.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), workspaceID, internalorders.CancelInput{
			OrderID: orderID,
			Reason:  payload.Reason,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func parseWorkspaceID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.WorkspaceIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace context missing")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid workspace id")
	}
	return parsed, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return parsed, nil
}
