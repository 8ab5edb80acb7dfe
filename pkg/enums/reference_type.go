package enums

import "fmt"

// ReferenceType tags the entity that caused a stock movement, so the audit
// log keeps a typed link instead of an untyped string pair.
type ReferenceType string

const (
	ReferenceTypeOrder   ReferenceType = "order"
	ReferenceTypeReceipt ReferenceType = "receipt"
	ReferenceTypeManual  ReferenceType = "manual"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeOrder,
	ReferenceTypeReceipt,
	ReferenceTypeManual,
}

// IsValid reports whether the value is a known ReferenceType.
func (t ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into a ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
