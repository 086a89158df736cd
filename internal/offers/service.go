package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bulkquote-backend/pkg/db"
	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the seller-facing offer book operations.
type Service interface {
	Submit(ctx context.Context, requestID, sellerID uuid.UUID, input SubmitInput) (*OfferDTO, error)
	Update(ctx context.Context, offerID, sellerID uuid.UUID, input UpdateInput) (*OfferDTO, error)
	Withdraw(ctx context.Context, offerID, sellerID uuid.UUID) error
	ListForRequest(ctx context.Context, requestID uuid.UUID, sortKey enums.OfferSortKey, dir enums.SortDirection) ([]OfferDTO, error)
	GetDetails(ctx context.Context, offerID uuid.UUID) (*OfferDetail, error)
}

type service struct {
	repo     Repository
	requests RequestFinder
	tx       txRunner
	outbox   outboxPublisher
}

// NewService builds an offer service with the required dependencies.
func NewService(repo Repository, requests RequestFinder, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, requests: requests, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Submit(ctx context.Context, requestID, sellerID uuid.UUID, input SubmitInput) (*OfferDTO, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	expiration, err := time.Parse(time.RFC3339, input.ExpirationDate)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration_date must be RFC3339")
	}
	if !expiration.After(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration_date must be in the future")
	}

	offer := &models.Offer{
		RequestID:         requestID,
		SellerID:          sellerID,
		PriceCents:        input.PriceCents,
		PricePerUnitCents: input.PricePerUnitCents,
		AvailableQuantity: input.AvailableQuantity,
		DeliveryTimeDays:  input.DeliveryTimeDays,
		Terms:             input.Terms,
		Warranty:          input.Warranty,
		PackagingDetails:  input.PackagingDetails,
		ExpirationDate:    expiration,
		Status:            enums.OfferStatusSubmitted,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The request row lock serializes the submit against concurrent
		// payment confirms; without it an offer could land on a request
		// that just moved to processing.
		request, err := repo.FindRequestForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}
		if request.Status != enums.RequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request is not open for offers")
		}
		if request.BuyerID == sellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "buyers cannot bid on their own request")
		}

		existing, err := repo.FindSubmittedByRequestAndSeller(ctx, requestID, sellerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing offer")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "seller already has a submitted offer on this request")
		}

		if _, err := repo.Create(ctx, offer); err != nil {
			// Backstop for the pre-check: the partial unique index
			// closes the race between two concurrent submissions.
			if dbpkg.IsUniqueViolation(err, "idx_offers_one_submitted_per_seller") {
				return pkgerrors.New(pkgerrors.CodeConflict, "seller already has a submitted offer on this request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferSubmitted,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: sellerID, Role: string(enums.MemberRoleSeller)},
			Data: payloads.OfferSubmittedEvent{
				OfferID:          offer.ID,
				RequestID:        requestID,
				SellerID:         sellerID,
				PriceCents:       offer.PriceCents,
				DeliveryTimeDays: offer.DeliveryTimeDays,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(offer)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, offerID, sellerID uuid.UUID, input UpdateInput) (*OfferDTO, error) {
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	var updated *models.Offer
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := s.guardMutableOffer(ctx, repo, offerID, sellerID)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, offer.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer")
		}
		updated, err = repo.FindByID(ctx, offer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload offer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(updated)
	return &dto, nil
}

// Withdraw flips the offer to withdrawn; the row stays for history.
func (s *service) Withdraw(ctx context.Context, offerID, sellerID uuid.UUID) error {
	if offerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	if sellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := s.guardMutableOffer(ctx, repo, offerID, sellerID)
		if err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, offer.ID, enums.OfferStatusWithdrawn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw offer")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferWithdrawn,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: sellerID, Role: string(enums.MemberRoleSeller)},
			Data: payloads.OfferWithdrawnEvent{
				OfferID:   offer.ID,
				RequestID: offer.RequestID,
				SellerID:  sellerID,
			},
		})
	})
}

func (s *service) ListForRequest(ctx context.Context, requestID uuid.UUID, sortKey enums.OfferSortKey, dir enums.SortDirection) ([]OfferDTO, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if _, err := s.requests.FindByID(ctx, requestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	rows, err := s.repo.ListForRequest(ctx, requestID, sortKey, dir)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	return rows, nil
}

func (s *service) GetDetails(ctx context.Context, offerID uuid.UUID) (*OfferDetail, error) {
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}

	detail := &OfferDetail{Offer: toDTO(offer)}
	profile, err := s.repo.FindSellerProfile(ctx, offer.SellerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profile")
	}
	if profile != nil {
		detail.Offer.SellerName = profile.ShopName
		detail.Seller = &SellerSummary{
			SellerID:   profile.SellerID,
			ShopName:   profile.ShopName,
			Categories: []string(profile.Categories),
		}
	}
	return detail, nil
}

// guardMutableOffer loads the offer and verifies the seller may still edit
// it: owner only, offer still submitted, parent request still pending. The
// request row lock serializes the mutation against payment confirms.
func (s *service) guardMutableOffer(ctx context.Context, repo Repository, offerID, sellerID uuid.UUID) (*models.Offer, error) {
	offer, err := repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer does not belong to seller")
	}
	if offer.Status != enums.OfferStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer editable")
	}

	request, err := repo.FindRequestForUpdate(ctx, offer.RequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	if request.Status != enums.RequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is no longer open")
	}
	return offer, nil
}

func buildUpdates(input UpdateInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if input.PricePerUnitCents != nil {
		if *input.PricePerUnitCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit_cents must be positive")
		}
		updates["price_per_unit_cents"] = *input.PricePerUnitCents
	}
	if input.AvailableQuantity != nil {
		if *input.AvailableQuantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "available_quantity must be positive")
		}
		updates["available_quantity"] = *input.AvailableQuantity
	}
	if input.DeliveryTimeDays != nil {
		if *input.DeliveryTimeDays < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_time_days must not be negative")
		}
		updates["delivery_time_days"] = *input.DeliveryTimeDays
	}
	if input.Terms != nil {
		updates["terms"] = *input.Terms
	}
	if input.Warranty != nil {
		updates["warranty"] = *input.Warranty
	}
	if input.PackagingDetails != nil {
		updates["packaging_details"] = *input.PackagingDetails
	}
	if input.ExpirationDate != nil {
		expiration, err := time.Parse(time.RFC3339, *input.ExpirationDate)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration_date must be RFC3339")
		}
		if !expiration.After(time.Now()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration_date must be in the future")
		}
		updates["expiration_date"] = expiration
	}
	return updates, nil
}
