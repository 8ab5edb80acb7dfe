package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

type fingerprintLine struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty"`
}

type fingerprintPayload struct {
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	Phone       string            `json:"phone"`
	Lines       []fingerprintLine `json:"lines"`
}

// Fingerprint produces a stable digest of what the order materially is:
// workspace, normalized customer phone and the sorted line set. Notes,
// shipping and naming differences do not change it, so an impatient client
// retrying the same cart hits the duplicate guard.
func Fingerprint(workspaceID uuid.UUID, normalizedPhone string, lines []fingerprintLine) string {
	sorted := make([]fingerprintLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID.String() < sorted[j].ProductID.String()
		}
		vi, vj := "", ""
		if sorted[i].VariantID != nil {
			vi = sorted[i].VariantID.String()
		}
		if sorted[j].VariantID != nil {
			vj = sorted[j].VariantID.String()
		}
		if vi != vj {
			return vi < vj
		}
		return sorted[i].Qty < sorted[j].Qty
	})

	payload := fingerprintPayload{
		WorkspaceID: workspaceID,
		Phone:       normalizedPhone,
		Lines:       sorted,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload is plain values; Marshal cannot fail on it.
		data = []byte(workspaceID.String() + normalizedPhone)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
