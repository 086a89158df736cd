package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// BulkOrderRequest is a buyer's RFQ. Sellers compete on it with offers
// while the request is pending; after payment it moves down the
// fulfillment track.
type BulkOrderRequest struct {
	ID                         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BuyerID                    uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	ProductName                string                `gorm:"column:product_name;not null" json:"product_name"`
	Description                string                `gorm:"column:description;not null" json:"description"`
	Quantity                   int                   `gorm:"column:quantity;not null" json:"quantity"`
	Category                   enums.RequestCategory `gorm:"column:category;type:text;not null" json:"category"`
	BudgetCents                int64                 `gorm:"column:budget_cents;not null" json:"budget_cents"`
	Currency                   string                `gorm:"column:currency;type:text;not null;default:'USD'" json:"currency"`
	DeliveryDeadline           time.Time             `gorm:"column:delivery_deadline;not null" json:"delivery_deadline"`
	ShippingAddress            string                `gorm:"column:shipping_address;not null" json:"shipping_address"`
	PackagingRequirements      *string               `gorm:"column:packaging_requirements" json:"packaging_requirements,omitempty"`
	SupplierLocationPreference *string               `gorm:"column:supplier_location_preference" json:"supplier_location_preference,omitempty"`
	InspirationImageRef        *string               `gorm:"column:inspiration_image_ref" json:"inspiration_image_ref,omitempty"`
	Status                     enums.RequestStatus   `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	AcceptedOfferID            *uuid.UUID            `gorm:"column:accepted_offer_id;type:uuid" json:"accepted_offer_id,omitempty"`
	DeliveredAt                *time.Time            `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	Offers                     []Offer               `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt                  time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
