package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ventiahq/ventia-backend/api/middleware"
	"github.com/ventiahq/ventia-backend/api/responses"
	"github.com/ventiahq/ventia-backend/api/validators"
	"github.com/ventiahq/ventia-backend/internal/notifications"
	"github.com/ventiahq/ventia-backend/internal/stock"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

type setInventoryRequest struct {
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
	Reason    string     `json:"reason,omitempty"`
}

// SetInventory moves a stock item to an absolute owned quantity. The ledger
// refuses drops below the reserved count.
func SetInventory(svc stock.Service, notifier notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.SetQuantity(r.Context(), stock.SetQuantityInput{
			WorkspaceID: workspaceID,
			ProductID:   productID,
			VariantID:   payload.VariantID,
			NewQuantity: payload.Quantity,
			Reason:      payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if notifier != nil {
			notifier.Dispatch(r.Context(), notifications.DispatchInput{
				WorkspaceID: workspaceID,
				Type:        enums.NotificationTypeStockAdjusted,
				Title:       "Stock adjusted",
				Message:     fmt.Sprintf("Stock for product %s set to %d", productID, payload.Quantity),
				RefType:     referenceType(enums.ReferenceTypeManual),
				RefID:       &item.ID,
				Payload: map[string]any{
					"product_id": productID,
					"quantity":   item.Quantity,
					"reserved":   item.Reserved,
				},
			})
		}

		responses.WriteSuccess(w, item)
	}
}

// GetInventory returns the current counters for one stock item.
func GetInventory(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := parseVariantIDQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ListInventoryMovements returns the append-only movement log for one item.
func ListInventoryMovements(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := parseVariantIDQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := svc.ListMovements(r.Context(), item.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
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

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return parsed, nil
}

func parseVariantIDQuery(r *http.Request) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("variant_id"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant id")
	}
	return &parsed, nil
}

func referenceType(t enums.ReferenceType) *enums.ReferenceType {
	return &t
}
