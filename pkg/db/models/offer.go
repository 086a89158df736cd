package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// Offer is a seller's priced response to a bulk order request. A partial
// unique index keeps one submitted offer per (request, seller); history
// stays visible because withdrawal is a status flip, not a delete.
type Offer struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID         uuid.UUID         `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null" json:"seller_id"`
	PriceCents        int64             `gorm:"column:price_cents;not null" json:"price_cents"`
	PricePerUnitCents int64             `gorm:"column:price_per_unit_cents;not null" json:"price_per_unit_cents"`
	AvailableQuantity int               `gorm:"column:available_quantity;not null" json:"available_quantity"`
	DeliveryTimeDays  int               `gorm:"column:delivery_time_days;not null" json:"delivery_time_days"`
	Terms             string            `gorm:"column:terms;not null" json:"terms"`
	Warranty          *string           `gorm:"column:warranty" json:"warranty,omitempty"`
	PackagingDetails  *string           `gorm:"column:packaging_details" json:"packaging_details,omitempty"`
	ExpirationDate    time.Time         `gorm:"column:expiration_date;not null" json:"expiration_date"`
	Status            enums.OfferStatus `gorm:"column:status;type:text;not null;default:'submitted'" json:"status"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
