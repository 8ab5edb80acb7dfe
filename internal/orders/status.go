package orders

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ventiahq/ventia-backend/pkg/enums"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

// statusAliases maps the Spanish-language tokens legacy clients still send to
// canonical statuses. Lookups run on folded input, so accents, case and
// separators do not matter.
var statusAliases = map[string]enums.OrderStatus{
	"borrador":             enums.OrderStatusDraft,
	"pendiente_aprobacion": enums.OrderStatusAwaitingAcceptance,
	"aceptado":             enums.OrderStatusAccepted,
	"en_proceso":           enums.OrderStatusProcessing,
	"enviado":              enums.OrderStatusShipped,
	"entregado":            enums.OrderStatusDelivered,
	"pendiente_pago":       enums.OrderStatusPendingPayment,
	"pago_parcial":         enums.OrderStatusPartialPayment,
	"pagado":               enums.OrderStatusPaid,
	"por_facturar":         enums.OrderStatusPendingInvoicing,
	"facturado":            enums.OrderStatusInvoiced,
	"factura_cancelada":    enums.OrderStatusInvoiceCancelled,
	"cancelado":            enums.OrderStatusCancelled,
	"papelera":             enums.OrderStatusTrashed,
	"devuelto":             enums.OrderStatusReturned,
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldStatusToken lowercases, strips diacritics and collapses separators so
// "Pendiente Aprobación" and "pendiente-aprobacion" resolve identically.
func foldStatusToken(raw string) string {
	folded, _, err := transform.String(foldTransformer, strings.TrimSpace(raw))
	if err != nil {
		folded = strings.TrimSpace(raw)
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ResolveStatus parses client input into a canonical status, accepting both
// canonical tokens and legacy aliases.
func ResolveStatus(raw string) (enums.OrderStatus, error) {
	token := foldStatusToken(raw)
	if status, err := enums.ParseOrderStatus(token); err == nil {
		return status, nil
	}
	if status, ok := statusAliases[token]; ok {
		return status, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeInvalidStatus, "unknown order status").
		WithDetails(map[string]any{"status": raw})
}

// fulfillmentRank orders the physical lifecycle; moves must go forward.
var fulfillmentRank = map[enums.OrderStatus]int{
	enums.OrderStatusDraft:              0,
	enums.OrderStatusAwaitingAcceptance: 1,
	enums.OrderStatusAccepted:           2,
	enums.OrderStatusProcessing:         3,
	enums.OrderStatusShipped:            4,
	enums.OrderStatusDelivered:          5,
}

// processedStatuses have had work done against them; cancellation is refused
// and stock stays committed.
var processedStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusAccepted:   true,
	enums.OrderStatusProcessing: true,
	enums.OrderStatusShipped:    true,
	enums.OrderStatusDelivered:  true,
	enums.OrderStatusInvoiced:   true,
}

// IsProcessed reports whether the order has progressed past the point where
// cancellation is allowed.
func IsProcessed(status enums.OrderStatus) bool {
	return processedStatuses[status]
}

// CanTransition validates a status move. It does not cover cancellation or
// trash restore; those run through their own operations.
func CanTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidStatus, "unknown order status").
			WithDetails(map[string]any{"status": to})
	}
	if from == to {
		return nil
	}

	switch from {
	case enums.OrderStatusCancelled, enums.OrderStatusReturned:
		return transitionRejected(from, to, "order is in a terminal status")
	case enums.OrderStatusTrashed:
		return transitionRejected(from, to, "trashed orders can only be restored")
	}

	switch to {
	case enums.OrderStatusCancelled:
		return transitionRejected(from, to, "use the cancel operation")
	case enums.OrderStatusTrashed:
		return nil
	case enums.OrderStatusReturned:
		if from != enums.OrderStatusDelivered {
			return transitionRejected(from, to, "only delivered orders can be returned")
		}
		return nil
	}

	fromRank, fromIsFulfillment := fulfillmentRank[from]
	toRank, toIsFulfillment := fulfillmentRank[to]
	if fromIsFulfillment && toIsFulfillment && toRank < fromRank {
		return transitionRejected(from, to, "fulfillment status cannot move backwards")
	}
	return nil
}

func transitionRejected(from, to enums.OrderStatus, reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidStatus, reason).
		WithDetails(map[string]any{"from": from, "to": to})
}
