package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	"github.com/angelmondragon/bulkquote-backend/pkg/types"
)

// SubmitInput carries the seller-supplied fields for a new offer.
type SubmitInput struct {
	PriceCents        int64   `json:"price_cents" validate:"required,gt=0"`
	PricePerUnitCents int64   `json:"price_per_unit_cents" validate:"required,gt=0"`
	AvailableQuantity int     `json:"available_quantity" validate:"required,gt=0"`
	DeliveryTimeDays  int     `json:"delivery_time_days" validate:"gte=0"`
	Terms             string  `json:"terms" validate:"required,min=2,max=5000"`
	Warranty          *string `json:"warranty" validate:"omitempty,max=2000"`
	PackagingDetails  *string `json:"packaging_details" validate:"omitempty,max=2000"`
	ExpirationDate    string  `json:"expiration_date" validate:"required"`
}

// UpdateInput carries the editable offer fields. Nil means unchanged.
type UpdateInput struct {
	PriceCents        *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	PricePerUnitCents *int64  `json:"price_per_unit_cents" validate:"omitempty,gt=0"`
	AvailableQuantity *int    `json:"available_quantity" validate:"omitempty,gt=0"`
	DeliveryTimeDays  *int    `json:"delivery_time_days" validate:"omitempty,gte=0"`
	Terms             *string `json:"terms" validate:"omitempty,min=2,max=5000"`
	Warranty          *string `json:"warranty" validate:"omitempty,max=2000"`
	PackagingDetails  *string `json:"packaging_details" validate:"omitempty,max=2000"`
	ExpirationDate    *string `json:"expiration_date"`
}

// SellerSummary is the public seller projection attached to offer listings.
type SellerSummary struct {
	SellerID   uuid.UUID `json:"seller_id"`
	ShopName   string    `json:"shop_name"`
	Categories []string  `json:"categories,omitempty"`
}

// OfferDTO is the public projection of an offer.
type OfferDTO struct {
	ID                uuid.UUID         `json:"id"`
	RequestID         uuid.UUID         `json:"request_id"`
	SellerID          uuid.UUID         `json:"seller_id"`
	PriceCents        int64             `json:"price_cents"`
	Price             string            `json:"price"`
	PricePerUnitCents int64             `json:"price_per_unit_cents"`
	AvailableQuantity int               `json:"available_quantity"`
	DeliveryTimeDays  int               `json:"delivery_time_days"`
	Terms             string            `json:"terms"`
	Warranty          *string           `json:"warranty,omitempty"`
	PackagingDetails  *string           `json:"packaging_details,omitempty"`
	ExpirationDate    time.Time         `json:"expiration_date"`
	Status            enums.OfferStatus `json:"status"`
	SellerName        string            `json:"seller_name,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// OfferDetail pairs an offer with its seller's public profile.
type OfferDetail struct {
	Offer  OfferDTO       `json:"offer"`
	Seller *SellerSummary `json:"seller,omitempty"`
}

func toDTO(m *models.Offer) OfferDTO {
	return OfferDTO{
		ID:                m.ID,
		RequestID:         m.RequestID,
		SellerID:          m.SellerID,
		PriceCents:        m.PriceCents,
		Price:             types.AmountFromCents(m.PriceCents),
		PricePerUnitCents: m.PricePerUnitCents,
		AvailableQuantity: m.AvailableQuantity,
		DeliveryTimeDays:  m.DeliveryTimeDays,
		Terms:             m.Terms,
		Warranty:          m.Warranty,
		PackagingDetails:  m.PackagingDetails,
		ExpirationDate:    m.ExpirationDate,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
