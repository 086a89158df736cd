package requests

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
	"github.com/angelmondragon/bulkquote-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines buyer-facing request operations.
type Service interface {
	Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*RequestDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RequestList, error)
	ListOpenForCategory(ctx context.Context, category enums.RequestCategory, params pagination.Params) (*RequestList, error)
	Delete(ctx context.Context, id, requestorID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a request service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*RequestDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	category, err := enums.ParseRequestCategory(input.Category)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
			WithDetails(map[string]any{"category": input.Category})
	}
	deadline, err := time.Parse(time.RFC3339, input.DeliveryDeadline)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_deadline must be RFC3339")
	}
	if !deadline.After(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_deadline must be in the future")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.BudgetCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "budget_cents must be positive")
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	request := &models.BulkOrderRequest{
		BuyerID:                    buyerID,
		ProductName:                input.ProductName,
		Description:                input.Description,
		Quantity:                   input.Quantity,
		Category:                   category,
		BudgetCents:                input.BudgetCents,
		Currency:                   currency,
		DeliveryDeadline:           deadline,
		ShippingAddress:            input.ShippingAddress,
		PackagingRequirements:      input.PackagingRequirements,
		SupplierLocationPreference: input.SupplierLocationPreference,
		InspirationImageRef:        input.InspirationImageRef,
		Status:                     enums.RequestStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestCreated,
			AggregateType: enums.AggregateBulkOrderRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.MemberRoleBuyer)},
			Data: payloads.RequestCreatedEvent{
				RequestID:   request.ID,
				BuyerID:     buyerID,
				ProductName: request.ProductName,
				Category:    request.Category,
				Quantity:    request.Quantity,
				BudgetCents: request.BudgetCents,
				Deadline:    request.DeliveryDeadline,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(request, 0)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	count, err := s.repo.CountSubmittedOffers(ctx, request.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count offers")
	}
	dto := toDTO(request, count)
	return &dto, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RequestList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer requests")
	}
	return list, nil
}

func (s *service) ListOpenForCategory(ctx context.Context, category enums.RequestCategory, params pagination.Params) (*RequestList, error) {
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category")
	}
	list, err := s.repo.ListOpenForCategory(ctx, category, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open requests")
	}
	return list, nil
}

// Delete cancels a pending request. Offers are removed by the cascade in
// the same transaction; a cancellation event is queued for sellers.
func (s *service) Delete(ctx context.Context, id, requestorID uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if requestorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}
		if request.BuyerID != requestorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request does not belong to requestor")
		}
		if request.Status != enums.RequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending requests can be deleted")
		}

		if err := repo.Delete(ctx, request.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestCancelled,
			AggregateType: enums.AggregateBulkOrderRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: requestorID, Role: string(enums.MemberRoleBuyer)},
			Data: payloads.RequestCancelledEvent{
				RequestID:   request.ID,
				BuyerID:     request.BuyerID,
				CancelledAt: time.Now().UTC(),
			},
		})
	})
}
