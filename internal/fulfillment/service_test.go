package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/payloads"
)

type fakeRepository struct {
	request *models.BulkOrderRequest
	offer   *models.Offer
	updates map[string]any
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	if f.request == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.request, nil
}

func (f *fakeRepository) FindOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	if f.offer == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.offer, nil
}

func (f *fakeRepository) UpdateRequest(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates = updates
	return nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func paidRequest(status enums.RequestStatus) (*models.BulkOrderRequest, *models.Offer) {
	offer := &models.Offer{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Status:   enums.OfferStatusAccepted,
	}
	request := &models.BulkOrderRequest{
		ID:              uuid.New(),
		BuyerID:         uuid.New(),
		Status:          status,
		AcceptedOfferID: &offer.ID,
	}
	offer.RequestID = request.ID
	return request, offer
}

func TestAdvanceProcessingToShipping(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusProcessing)
	repo := &fakeRepository{request: request, offer: offer}
	emitter := &fakeOutbox{}
	svc, err := NewService(repo, fakeTx{}, emitter)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	dto, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusShipping,
		ActorID:   offer.SellerID,
		ActorRole: enums.MemberRoleSeller,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if dto.Status != enums.RequestStatusShipping {
		t.Fatalf("expected shipping, got %s", dto.Status)
	}
	if dto.TimelineOrdinal != 3 {
		t.Fatalf("expected ordinal 3, got %d", dto.TimelineOrdinal)
	}
	if dto.DeliveredAt != nil {
		t.Fatal("delivered_at must stay empty before delivery")
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	payload, ok := emitter.events[0].Data.(payloads.FulfillmentAdvancedEvent)
	if !ok {
		t.Fatal("expected fulfillment payload")
	}
	if payload.ToStatus != enums.RequestStatusShipping {
		t.Fatalf("unexpected target status %s", payload.ToStatus)
	}
}

func TestAdvanceShippingToDeliveredStampsTime(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusShipping)
	repo := &fakeRepository{request: request, offer: offer}
	svc, err := NewService(repo, fakeTx{}, &fakeOutbox{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	frozen := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time { return frozen }

	dto, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusDelivered,
		ActorID:   offer.SellerID,
		ActorRole: enums.MemberRoleSeller,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if dto.DeliveredAt == nil || !dto.DeliveredAt.Equal(frozen) {
		t.Fatalf("expected delivered_at %s, got %v", frozen, dto.DeliveredAt)
	}
	if repo.updates["delivered_at"] == nil {
		t.Fatalf("expected delivered_at persisted, got %v", repo.updates)
	}
}

func TestAdvanceRejectsSkip(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusProcessing)
	repo := &fakeRepository{request: request, offer: offer}
	svc, _ := NewService(repo, fakeTx{}, &fakeOutbox{})

	_, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusDelivered,
		ActorID:   offer.SellerID,
		ActorRole: enums.MemberRoleSeller,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for a skipped stage, got %v", err)
	}
}

func TestAdvanceRejectsReversal(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusShipping)
	repo := &fakeRepository{request: request, offer: offer}
	svc, _ := NewService(repo, fakeTx{}, &fakeOutbox{})

	_, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusShipping,
		ActorID:   offer.SellerID,
		ActorRole: enums.MemberRoleSeller,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAdvanceRejectsForeignSeller(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusProcessing)
	repo := &fakeRepository{request: request, offer: offer}
	svc, _ := NewService(repo, fakeTx{}, &fakeOutbox{})

	_, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusShipping,
		ActorID:   uuid.New(),
		ActorRole: enums.MemberRoleSeller,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAdvanceAllowsAdmin(t *testing.T) {
	request, offer := paidRequest(enums.RequestStatusProcessing)
	repo := &fakeRepository{request: request, offer: offer}
	svc, _ := NewService(repo, fakeTx{}, &fakeOutbox{})

	dto, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: request.ID,
		Next:      enums.RequestStatusShipping,
		ActorID:   uuid.New(),
		ActorRole: enums.MemberRoleAdmin,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if dto.Status != enums.RequestStatusShipping {
		t.Fatalf("expected shipping, got %s", dto.Status)
	}
}

func TestAdvanceRejectsNonFulfillmentTarget(t *testing.T) {
	svc, _ := NewService(&fakeRepository{}, fakeTx{}, &fakeOutbox{})
	_, err := svc.Advance(context.Background(), AdvanceInput{
		RequestID: uuid.New(),
		Next:      enums.RequestStatusPending,
		ActorID:   uuid.New(),
		ActorRole: enums.MemberRoleAdmin,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
