package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// Repository defines persistence operations for offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	FindSubmittedByRequestAndSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.Offer, error)
	FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	ListForRequest(ctx context.Context, requestID uuid.UUID, sortKey enums.OfferSortKey, dir enums.SortDirection) ([]OfferDTO, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error
	RejectSiblings(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error
	ExpireSubmittedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FindSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error)
}

// RequestFinder is the slice of the requests repository the offer book needs.
type RequestFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
}
