package enums

import "fmt"

// ReservationStatus tracks a stock reservation. Transitions never go backward:
// active reservations end released (stock restored) or consumed (fulfilled).
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusReleased ReservationStatus = "released"
	ReservationStatusConsumed ReservationStatus = "consumed"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusActive,
	ReservationStatusReleased,
	ReservationStatusConsumed,
}

// IsValid reports whether the value is a known ReservationStatus.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
