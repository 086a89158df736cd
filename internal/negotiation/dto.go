package negotiation

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// PaymentSession is the short-lived state created by accepting an offer.
// It lives in Redis only; nothing is persisted until payment confirms.
type PaymentSession struct {
	Token       string    `json:"token"`
	RequestID   uuid.UUID `json:"request_id"`
	OfferID     uuid.UUID `json:"offer_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ConfirmInput carries the buyer's payment confirmation.
type ConfirmInput struct {
	RequestID    uuid.UUID
	BuyerID      uuid.UUID
	SessionToken string `json:"session_token" validate:"required"`
	Method       string `json:"method" validate:"required"`
	CardToken    string `json:"card_token" validate:"omitempty,max=500"`
}

// PaymentRecordDTO is the public projection of a settled payment.
type PaymentRecordDTO struct {
	ID                uuid.UUID           `json:"id"`
	RequestID         uuid.UUID           `json:"request_id"`
	OfferID           uuid.UUID           `json:"offer_id"`
	Method            enums.PaymentMethod `json:"method"`
	ProviderReference *string             `json:"provider_reference,omitempty"`
	AmountCents       int64               `json:"amount_cents"`
	ConfirmedAt       time.Time           `json:"confirmed_at"`
}

// ConfirmResult reports the post-payment state of the request.
type ConfirmResult struct {
	RequestID        uuid.UUID           `json:"request_id"`
	OfferID          uuid.UUID           `json:"offer_id"`
	RequestStatus    enums.RequestStatus `json:"request_status"`
	Payment          PaymentRecordDTO    `json:"payment"`
	AlreadyConfirmed bool                `json:"already_confirmed"`
}

func toRecordDTO(record *models.PaymentRecord) PaymentRecordDTO {
	return PaymentRecordDTO{
		ID:                record.ID,
		RequestID:         record.RequestID,
		OfferID:           record.OfferID,
		Method:            record.Method,
		ProviderReference: record.ProviderReference,
		AmountCents:       record.AmountCents,
		ConfirmedAt:       record.ConfirmedAt,
	}
}
