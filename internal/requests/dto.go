package requests

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	"github.com/angelmondragon/bulkquote-backend/pkg/types"
)

// CreateInput carries the buyer-supplied fields for a new request.
type CreateInput struct {
	ProductName                string  `json:"product_name" validate:"required,min=2,max=200"`
	Description                string  `json:"description" validate:"required,min=2,max=5000"`
	Quantity                   int     `json:"quantity" validate:"required,gt=0"`
	Category                   string  `json:"category" validate:"required"`
	BudgetCents                int64   `json:"budget_cents" validate:"required,gt=0"`
	Currency                   string  `json:"currency" validate:"omitempty,len=3"`
	DeliveryDeadline           string  `json:"delivery_deadline" validate:"required"`
	ShippingAddress            string  `json:"shipping_address" validate:"required,min=5,max=500"`
	PackagingRequirements      *string `json:"packaging_requirements" validate:"omitempty,max=2000"`
	SupplierLocationPreference *string `json:"supplier_location_preference" validate:"omitempty,max=200"`
	InspirationImageRef        *string `json:"inspiration_image_ref" validate:"omitempty,max=500"`
}

// RequestDTO is the public projection of a bulk order request.
type RequestDTO struct {
	ID                         uuid.UUID             `json:"id"`
	BuyerID                    uuid.UUID             `json:"buyer_id"`
	ProductName                string                `json:"product_name"`
	Description                string                `json:"description"`
	Quantity                   int                   `json:"quantity"`
	Category                   enums.RequestCategory `json:"category"`
	BudgetCents                int64                 `json:"budget_cents"`
	Budget                     string                `json:"budget"`
	Currency                   string                `json:"currency"`
	DeliveryDeadline           time.Time             `json:"delivery_deadline"`
	ShippingAddress            string                `json:"shipping_address"`
	PackagingRequirements      *string               `json:"packaging_requirements,omitempty"`
	SupplierLocationPreference *string               `json:"supplier_location_preference,omitempty"`
	InspirationImageRef        *string               `json:"inspiration_image_ref,omitempty"`
	Status                     enums.RequestStatus   `json:"status"`
	AcceptedOfferID            *uuid.UUID            `json:"accepted_offer_id,omitempty"`
	TimelineOrdinal            int                   `json:"timeline_ordinal"`
	DeliveredAt                *time.Time            `json:"delivered_at,omitempty"`
	OfferCount                 int                   `json:"offer_count"`
	CreatedAt                  time.Time             `json:"created_at"`
	UpdatedAt                  time.Time             `json:"updated_at"`
}

// RequestList wraps a page of requests plus the next cursor.
type RequestList struct {
	Requests   []RequestDTO `json:"requests"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toDTO(m *models.BulkOrderRequest, offerCount int) RequestDTO {
	return RequestDTO{
		ID:                         m.ID,
		BuyerID:                    m.BuyerID,
		ProductName:                m.ProductName,
		Description:                m.Description,
		Quantity:                   m.Quantity,
		Category:                   m.Category,
		BudgetCents:                m.BudgetCents,
		Budget:                     types.AmountFromCents(m.BudgetCents),
		Currency:                   m.Currency,
		DeliveryDeadline:           m.DeliveryDeadline,
		ShippingAddress:            m.ShippingAddress,
		PackagingRequirements:      m.PackagingRequirements,
		SupplierLocationPreference: m.SupplierLocationPreference,
		InspirationImageRef:        m.InspirationImageRef,
		Status:                     m.Status,
		AcceptedOfferID:            m.AcceptedOfferID,
		TimelineOrdinal:            timelineOrdinal(m.Status),
		DeliveredAt:                m.DeliveredAt,
		OfferCount:                 offerCount,
		CreatedAt:                  m.CreatedAt,
		UpdatedAt:                  m.UpdatedAt,
	}
}

// timelineOrdinal maps fulfillment states onto a 1..4 progress scale;
// cancelled and unknown states report 0.
func timelineOrdinal(status enums.RequestStatus) int {
	switch status {
	case enums.RequestStatusPending:
		return 1
	case enums.RequestStatusProcessing:
		return 2
	case enums.RequestStatusShipping:
		return 3
	case enums.RequestStatusDelivered:
		return 4
	default:
		return 0
	}
}
