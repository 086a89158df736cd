package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// PaymentRecord is the authoritative proof that an accepted offer was
// settled. Exactly one exists per (request, offer); confirmPayment is
// idempotent against it.
type PaymentRecord struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID         uuid.UUID           `gorm:"column:request_id;type:uuid;not null;uniqueIndex:idx_payment_records_request_offer" json:"request_id"`
	OfferID           uuid.UUID           `gorm:"column:offer_id;type:uuid;not null;uniqueIndex:idx_payment_records_request_offer" json:"offer_id"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null" json:"method"`
	ProviderReference *string             `gorm:"column:provider_reference" json:"provider_reference,omitempty"`
	AmountCents       int64               `gorm:"column:amount_cents;not null" json:"amount_cents"`
	ConfirmedAt       time.Time           `gorm:"column:confirmed_at;not null" json:"confirmed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
