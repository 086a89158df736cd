package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// PaymentAttempt is the pending marker written between a successful
// gateway charge and the finalizing transaction. Reconciliation completes
// or abandons it using the stored provider reference; the gateway is
// never charged twice for the same (request, offer).
type PaymentAttempt struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID         uuid.UUID                  `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	OfferID           uuid.UUID                  `gorm:"column:offer_id;type:uuid;not null" json:"offer_id"`
	BuyerID           uuid.UUID                  `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	Method            enums.PaymentMethod        `gorm:"column:method;type:text;not null" json:"method"`
	AmountCents       int64                      `gorm:"column:amount_cents;not null" json:"amount_cents"`
	ProviderReference *string                    `gorm:"column:provider_reference" json:"provider_reference,omitempty"`
	Status            enums.PaymentAttemptStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	LastError         *string                    `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
