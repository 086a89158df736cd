package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// RequestCreatedEvent announces a new bulk order request to sellers.
type RequestCreatedEvent struct {
	RequestID   uuid.UUID             `json:"request_id"`
	BuyerID     uuid.UUID             `json:"buyer_id"`
	ProductName string                `json:"product_name"`
	Category    enums.RequestCategory `json:"category"`
	Quantity    int                   `json:"quantity"`
	BudgetCents int64                 `json:"budget_cents"`
	Deadline    time.Time             `json:"deadline"`
}

// RequestCancelledEvent is emitted when a buyer deletes an open request.
type RequestCancelledEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RequestPaidEvent reports a confirmed payment and the accepted offer.
type RequestPaidEvent struct {
	RequestID     uuid.UUID           `json:"request_id"`
	OfferID       uuid.UUID           `json:"offer_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	AmountCents   int64               `json:"amount_cents"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaidAt        time.Time           `json:"paid_at"`
}

// FulfillmentAdvancedEvent reports a fulfillment stage transition.
type FulfillmentAdvancedEvent struct {
	RequestID  uuid.UUID           `json:"request_id"`
	BuyerID    uuid.UUID           `json:"buyer_id"`
	SellerID   uuid.UUID           `json:"seller_id"`
	FromStatus enums.RequestStatus `json:"from_status"`
	ToStatus   enums.RequestStatus `json:"to_status"`
	AdvancedAt time.Time           `json:"advanced_at"`
}

// OfferSubmittedEvent tells the buyer a new offer landed on their request.
type OfferSubmittedEvent struct {
	OfferID          uuid.UUID `json:"offer_id"`
	RequestID        uuid.UUID `json:"request_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	PriceCents       int64     `json:"price_cents"`
	DeliveryTimeDays int       `json:"delivery_time_days"`
}

// OfferWithdrawnEvent is emitted when a seller pulls a pending offer.
type OfferWithdrawnEvent struct {
	OfferID   uuid.UUID `json:"offer_id"`
	RequestID uuid.UUID `json:"request_id"`
	SellerID  uuid.UUID `json:"seller_id"`
}

// PaymentReconciledEvent reports a stale payment attempt that the reconcile
// job was able to complete from the provider's records.
type PaymentReconciledEvent struct {
	RequestID         uuid.UUID `json:"request_id"`
	OfferID           uuid.UUID `json:"offer_id"`
	AttemptID         uuid.UUID `json:"attempt_id"`
	ProviderReference string    `json:"provider_reference,omitempty"`
}

// PaymentNeedsReviewEvent flags a payment attempt that could not be resolved
// automatically and needs an operator decision.
type PaymentNeedsReviewEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	OfferID   uuid.UUID `json:"offer_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Reason    string    `json:"reason"`
}
