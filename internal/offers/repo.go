package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindSubmittedByRequestAndSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Where("seller_id = ?", sellerID).
		Where("status = ?", enums.OfferStatusSubmitted).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListForRequest returns every offer on the request in the requested order.
// seller_name sorting joins seller_profiles; ties always break on
// created_at then id so the order is stable across calls.
func (r *repository) ListForRequest(ctx context.Context, requestID uuid.UUID, sortKey enums.OfferSortKey, dir enums.SortDirection) ([]OfferDTO, error) {
	direction := "ASC"
	if dir == enums.SortDesc {
		direction = "DESC"
	}

	query := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Select("offers.*, seller_profiles.shop_name AS seller_name").
		Joins("LEFT JOIN seller_profiles ON seller_profiles.seller_id = offers.seller_id").
		Where("offers.request_id = ?", requestID)

	switch sortKey {
	case enums.OfferSortPrice:
		query = query.Order(fmt.Sprintf("offers.price_cents %s", direction))
	case enums.OfferSortPricePerUnit:
		query = query.Order(fmt.Sprintf("offers.price_per_unit_cents %s", direction))
	case enums.OfferSortQuantity:
		query = query.Order(fmt.Sprintf("offers.available_quantity %s", direction))
	case enums.OfferSortDeliveryDays:
		query = query.Order(fmt.Sprintf("offers.delivery_time_days %s", direction))
	case enums.OfferSortSellerName:
		query = query.Order(fmt.Sprintf("seller_profiles.shop_name %s", direction))
	default:
		query = query.Order(fmt.Sprintf("offers.price_cents %s", direction))
	}

	var rows []OfferDTO
	err := query.
		Order("offers.created_at ASC").
		Order("offers.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// RejectSiblings flips every other submitted offer on the request to
// rejected. Runs inside the acceptance transaction.
func (r *repository) RejectSiblings(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("request_id = ?", requestID).
		Where("id <> ?", acceptedOfferID).
		Where("status = ?", enums.OfferStatusSubmitted).
		Update("status", enums.OfferStatusRejected).Error
}

func (r *repository) ExpireSubmittedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("status = ?", enums.OfferStatusSubmitted).
		Where("expiration_date < ?", cutoff).
		Update("status", enums.OfferStatusExpired)
	return result.RowsAffected, result.Error
}

// FindRequestForUpdate takes a row lock on the parent request so offer
// mutations serialize with each other and with payment finalization. The
// sqlite driver used in tests has no FOR UPDATE; its writes serialize on
// the connection instead.
func (r *repository) FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var request models.BulkOrderRequest
	err := query.Where("id = ?", id).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	var profile models.SellerProfile
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
