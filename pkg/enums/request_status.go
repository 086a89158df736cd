package enums

import "fmt"

// RequestStatus tracks the lifecycle of a bulk order request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusShipping   RequestStatus = "shipping"
	RequestStatusDelivered  RequestStatus = "delivered"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusProcessing,
	RequestStatusShipping,
	RequestStatusDelivered,
	RequestStatusCancelled,
}

// String implements fmt.Stringer.
func (r RequestStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestStatus.
func (r RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsFulfillment reports whether the status belongs to the post-payment
// fulfillment track.
func (r RequestStatus) IsFulfillment() bool {
	switch r {
	case RequestStatusProcessing, RequestStatusShipping, RequestStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
