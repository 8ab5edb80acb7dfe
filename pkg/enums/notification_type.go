package enums

import "fmt"

// NotificationType labels workspace notifications emitted by the engine.
type NotificationType string

const (
	NotificationTypeOrderCreated   NotificationType = "order_created"
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
	NotificationTypeOrderStatus    NotificationType = "order_status"
	NotificationTypeStockAdjusted  NotificationType = "stock_adjusted"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderCreated,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderStatus,
	NotificationTypeStockAdjusted,
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
