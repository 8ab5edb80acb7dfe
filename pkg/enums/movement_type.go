package enums

import "fmt"

// MovementType classifies a stock movement audit entry.
type MovementType string

const (
	MovementTypeReservation MovementType = "reservation"
	MovementTypeReversal    MovementType = "reversal"
	MovementTypeConsume     MovementType = "consume"
	MovementTypeAdjustment  MovementType = "adjustment"
	MovementTypeReceipt     MovementType = "receipt"
)

var validMovementTypes = []MovementType{
	MovementTypeReservation,
	MovementTypeReversal,
	MovementTypeConsume,
	MovementTypeAdjustment,
	MovementTypeReceipt,
}

// IsValid reports whether the value is a known MovementType.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
