package enums

import "fmt"

// NotificationType classifies a stored notification row.
type NotificationType string

const (
	NotificationTypeNewRequest      NotificationType = "new_request"
	NotificationTypeOfferAccepted   NotificationType = "offer_accepted"
	NotificationTypeOfferRejected   NotificationType = "offer_rejected"
	NotificationTypeRequestProgress NotificationType = "request_progress"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewRequest,
	NotificationTypeOfferAccepted,
	NotificationTypeOfferRejected,
	NotificationTypeRequestProgress,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
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
