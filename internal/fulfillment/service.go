package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

// Repository is the persistence slice the tracker needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	FindOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	UpdateRequest(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// AdvanceInput identifies the transition and who is asking for it.
type AdvanceInput struct {
	RequestID uuid.UUID
	Next      enums.RequestStatus
	ActorID   uuid.UUID
	ActorRole enums.MemberRole
}

// StatusDTO reports the post-transition state.
type StatusDTO struct {
	RequestID       uuid.UUID           `json:"request_id"`
	Status          enums.RequestStatus `json:"status"`
	TimelineOrdinal int                 `json:"timeline_ordinal"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
}

// Service advances requests down the fulfillment track.
type Service interface {
	Advance(ctx context.Context, input AdvanceInput) (*StatusDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds the fulfillment tracker.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, now: time.Now}, nil
}

// Advance moves the request one step along processing -> shipping ->
// delivered. Skips and reversals are state conflicts; only the accepted
// offer's seller or an admin may advance.
func (s *service) Advance(ctx context.Context, input AdvanceInput) (*StatusDTO, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Next.IsFulfillment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target status is not a fulfillment state")
	}

	var dto *StatusDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequestForUpdate(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
		}

		if input.ActorRole != enums.MemberRoleAdmin {
			if request.AcceptedOfferID == nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "request has no accepted offer")
			}
			offer, err := repo.FindOffer(ctx, *request.AcceptedOfferID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted offer")
			}
			if offer.SellerID != input.ActorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the accepted seller can advance fulfillment")
			}
		}

		if nextStage(request.Status) != input.Next {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid fulfillment transition").
				WithDetails(map[string]any{
					"from": request.Status,
					"to":   input.Next,
				})
		}

		updates := map[string]any{"status": input.Next}
		var deliveredAt *time.Time
		if input.Next == enums.RequestStatusDelivered {
			at := s.now().UTC()
			deliveredAt = &at
			updates["delivered_at"] = at
		}
		if err := repo.UpdateRequest(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance request")
		}

		sellerID := uuid.Nil
		if request.AcceptedOfferID != nil {
			if offer, err := repo.FindOffer(ctx, *request.AcceptedOfferID); err == nil {
				sellerID = offer.SellerID
			}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFulfillmentAdvanced,
			AggregateType: enums.AggregateBulkOrderRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
			Data: payloads.FulfillmentAdvancedEvent{
				RequestID:  request.ID,
				BuyerID:    request.BuyerID,
				SellerID:   sellerID,
				FromStatus: request.Status,
				ToStatus:   input.Next,
				AdvancedAt: s.now().UTC(),
			},
		}); err != nil {
			return err
		}

		dto = &StatusDTO{
			RequestID:       request.ID,
			Status:          input.Next,
			TimelineOrdinal: TimelineOrdinal(input.Next),
			DeliveredAt:     deliveredAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// nextStage returns the only legal successor, or an invalid sentinel when
// the track has ended.
func nextStage(current enums.RequestStatus) enums.RequestStatus {
	switch current {
	case enums.RequestStatusProcessing:
		return enums.RequestStatusShipping
	case enums.RequestStatusShipping:
		return enums.RequestStatusDelivered
	default:
		return ""
	}
}

// TimelineOrdinal maps a status onto the 1..4 progress scale shown to
// buyers; cancelled reports 0.
func TimelineOrdinal(status enums.RequestStatus) int {
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
