package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/config"
	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
)

type fakeRepo struct {
	createRecordFn        func(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error)
	findRecordFn          func(ctx context.Context, requestID uuid.UUID) (*models.PaymentRecord, error)
	createAttemptFn       func(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	findPendingAttemptFn  func(ctx context.Context, requestID, offerID uuid.UUID) (*models.PaymentAttempt, error)
	findAttemptByIDFn     func(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	listPendingFn         func(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error)
	updateAttemptFn       func(ctx context.Context, id uuid.UUID, updates map[string]any) error
	findRequestFn         func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	findRequestLockedFn   func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	updateRequestFn       func(ctx context.Context, id uuid.UUID, updates map[string]any) error
	findOfferFn           func(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	updateOfferStatusFn   func(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error
	rejectSiblingOffersFn func(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	if f.createRecordFn != nil {
		return f.createRecordFn(ctx, record)
	}
	record.ID = uuid.New()
	return record, nil
}

func (f *fakeRepo) FindPaymentRecordByRequest(ctx context.Context, requestID uuid.UUID) (*models.PaymentRecord, error) {
	if f.findRecordFn != nil {
		return f.findRecordFn(ctx, requestID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if f.createAttemptFn != nil {
		return f.createAttemptFn(ctx, attempt)
	}
	attempt.ID = uuid.New()
	return attempt, nil
}

func (f *fakeRepo) FindPendingAttempt(ctx context.Context, requestID, offerID uuid.UUID) (*models.PaymentAttempt, error) {
	if f.findPendingAttemptFn != nil {
		return f.findPendingAttemptFn(ctx, requestID, offerID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	if f.findAttemptByIDFn != nil {
		return f.findAttemptByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListPendingAttemptsBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, cutoff)
	}
	return nil, nil
}

func (f *fakeRepo) UpdateAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if f.updateAttemptFn != nil {
		return f.updateAttemptFn(ctx, id, updates)
	}
	return nil
}

func (f *fakeRepo) FindRequest(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	if f.findRequestFn != nil {
		return f.findRequestFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	if f.findRequestLockedFn != nil {
		return f.findRequestLockedFn(ctx, id)
	}
	return f.FindRequest(ctx, id)
}

func (f *fakeRepo) UpdateRequest(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if f.updateRequestFn != nil {
		return f.updateRequestFn(ctx, id, updates)
	}
	return nil
}

func (f *fakeRepo) FindOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	if f.findOfferFn != nil {
		return f.findOfferFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateOfferStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
	if f.updateOfferStatusFn != nil {
		return f.updateOfferStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeRepo) RejectSiblingOffers(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error {
	if f.rejectSiblingOffersFn != nil {
		return f.rejectSiblingOffersFn(ctx, requestID, acceptedOfferID)
	}
	return nil
}

type fakeSessionStore struct {
	saved    []PaymentSession
	sessions map[string]PaymentSession
	deleted  []string
}

func (f *fakeSessionStore) Save(ctx context.Context, session PaymentSession, ttl time.Duration) error {
	f.saved = append(f.saved, session)
	if f.sessions == nil {
		f.sessions = make(map[string]PaymentSession)
	}
	f.sessions[session.Token] = session
	return nil
}

func (f *fakeSessionStore) Find(ctx context.Context, token string) (*PaymentSession, error) {
	session, ok := f.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

type fakeGateway struct {
	chargeFn func(ctx context.Context, params ChargeParams) (string, error)
	charges  []ChargeParams
}

func (f *fakeGateway) ChargeCard(ctx context.Context, params ChargeParams) (string, error) {
	f.charges = append(f.charges, params)
	if f.chargeFn != nil {
		return f.chargeFn(ctx, params)
	}
	return "charge-ref", nil
}

func (f *fakeGateway) RecordCOD(ctx context.Context) (string, error) {
	return "cod-ref", nil
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

type negotiationTest struct {
	repo     *fakeRepo
	sessions *fakeSessionStore
	gateway  *fakeGateway
	outbox   *fakeOutbox
	svc      *service
}

func newNegotiationTest(t *testing.T) *negotiationTest {
	t.Helper()
	helper := &negotiationTest{
		repo:     &fakeRepo{},
		sessions: &fakeSessionStore{},
		gateway:  &fakeGateway{},
		outbox:   &fakeOutbox{},
	}
	svc, err := NewService(
		helper.repo,
		helper.sessions,
		helper.gateway,
		fakeTx{},
		helper.outbox,
		config.PaymentConfig{SessionTTL: 15 * time.Minute, ChargeAttempts: 2, ChargeBackoff: time.Millisecond, ChargeBackoffMax: time.Millisecond},
		logger.New(logger.Options{ServiceName: "test"}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	helper.svc = svc.(*service)
	helper.svc.sleep = func(context.Context, time.Duration) error { return nil }
	return helper
}

func openRequest(buyerID uuid.UUID) *models.BulkOrderRequest {
	return &models.BulkOrderRequest{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		Status:   enums.RequestStatusPending,
		Currency: "USD",
	}
}

func submittedOffer(requestID uuid.UUID, expiresIn time.Duration) *models.Offer {
	return &models.Offer{
		ID:             uuid.New(),
		RequestID:      requestID,
		SellerID:       uuid.New(),
		PriceCents:     120_000,
		Status:         enums.OfferStatusSubmitted,
		ExpirationDate: time.Now().Add(expiresIn),
	}
}

func TestAcceptAndInitiatePayment(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}

	session, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if err != nil {
		t.Fatalf("AcceptAndInitiatePayment: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected session token")
	}
	if session.AmountCents != offer.PriceCents {
		t.Fatalf("expected amount %d, got %d", offer.PriceCents, session.AmountCents)
	}
	if session.SellerID != offer.SellerID {
		t.Fatalf("unexpected seller id %s", session.SellerID)
	}
	if len(helper.sessions.saved) != 1 {
		t.Fatalf("expected 1 saved session, got %d", len(helper.sessions.saved))
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Fatal("expected session expiry after creation")
	}
}

func TestAcceptRejectsForeignBuyer(t *testing.T) {
	helper := newNegotiationTest(t)
	request := openRequest(uuid.New())
	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}

	_, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, uuid.New(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAcceptExpiresStaleOffer(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, -time.Minute)

	var flipped enums.OfferStatus
	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}
	helper.repo.updateOfferStatusFn = func(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
		flipped = status
		return nil
	}

	_, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeOfferExpired) {
		t.Fatalf("expected offer expired, got %v", err)
	}
	if flipped != enums.OfferStatusExpired {
		t.Fatalf("expected lazy expiry flip, got %q", flipped)
	}
	if len(helper.sessions.saved) != 0 {
		t.Fatal("expected no session for an expired offer")
	}
}

func TestConfirmPaymentSettlesRequest(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}

	statusByOffer := map[uuid.UUID]enums.OfferStatus{}
	helper.repo.updateOfferStatusFn = func(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
		statusByOffer[id] = status
		return nil
	}
	rejected := false
	helper.repo.rejectSiblingOffersFn = func(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error {
		rejected = true
		return nil
	}
	var requestUpdates map[string]any
	helper.repo.updateRequestFn = func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
		requestUpdates = updates
		return nil
	}

	session, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: session.Token,
		Method:       "card",
		CardToken:    "tok-abc",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.AlreadyConfirmed {
		t.Fatal("first confirm should not report a replay")
	}
	if result.RequestStatus != enums.RequestStatusProcessing {
		t.Fatalf("expected processing, got %s", result.RequestStatus)
	}
	if statusByOffer[offer.ID] != enums.OfferStatusAccepted {
		t.Fatalf("expected accepted offer, got %q", statusByOffer[offer.ID])
	}
	if !rejected {
		t.Fatal("expected sibling offers rejected")
	}
	if requestUpdates["status"] != enums.RequestStatusProcessing {
		t.Fatalf("unexpected request updates %v", requestUpdates)
	}
	if len(helper.gateway.charges) != 1 {
		t.Fatalf("expected 1 charge, got %d", len(helper.gateway.charges))
	}
	key := helper.gateway.charges[0].IdempotencyKey
	if key != chargeIdempotencyKey(request.ID, offer.ID) {
		t.Fatalf("unexpected idempotency key %q", key)
	}
	if len(helper.outbox.events) != 1 || helper.outbox.events[0].EventType != enums.EventRequestPaid {
		t.Fatalf("expected paid event, got %v", helper.outbox.events)
	}
	if len(helper.sessions.deleted) != 1 {
		t.Fatal("expected session cleanup after settlement")
	}
}

func TestConfirmPaymentReplaysExistingRecord(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	request.Status = enums.RequestStatusProcessing
	offerID := uuid.New()

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findRecordFn = func(ctx context.Context, requestID uuid.UUID) (*models.PaymentRecord, error) {
		return &models.PaymentRecord{
			ID:        uuid.New(),
			RequestID: request.ID,
			OfferID:   offerID,
			BuyerID:   buyerID,
			Method:    enums.PaymentMethodCard,
		}, nil
	}

	result, err := helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: "irrelevant",
		Method:       "card",
		CardToken:    "tok-abc",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !result.AlreadyConfirmed {
		t.Fatal("expected a replayed result")
	}
	if result.OfferID != offerID {
		t.Fatalf("unexpected offer id %s", result.OfferID)
	}
	if len(helper.gateway.charges) != 0 {
		t.Fatal("replay must not reach the gateway")
	}
}

func TestConfirmPaymentConflictsWhenSessionNamesDifferentOffer(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	request.Status = enums.RequestStatusProcessing
	acceptedOfferID := uuid.New()
	rival := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findRecordFn = func(ctx context.Context, requestID uuid.UUID) (*models.PaymentRecord, error) {
		return &models.PaymentRecord{
			ID:        uuid.New(),
			RequestID: request.ID,
			OfferID:   acceptedOfferID,
			BuyerID:   buyerID,
			Method:    enums.PaymentMethodCard,
		}, nil
	}
	session := PaymentSession{
		Token:       "rival-token",
		RequestID:   request.ID,
		OfferID:     rival.ID,
		BuyerID:     buyerID,
		AmountCents: rival.PriceCents,
	}
	if err := helper.sessions.Save(context.Background(), session, time.Minute); err != nil {
		t.Fatalf("save session: %v", err)
	}

	_, err := helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: session.Token,
		Method:       "card",
		CardToken:    "tok-abc",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for a different offer's session, got %v", err)
	}
	if len(helper.gateway.charges) != 0 {
		t.Fatal("losing session must not reach the gateway")
	}
}

func TestConfirmPaymentFailsWhenOfferWithdrawnDuringCharge(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}
	// The seller withdraws while the charge is in flight; the settlement
	// transaction must notice when it re-reads the offer under the lock.
	helper.gateway.chargeFn = func(ctx context.Context, params ChargeParams) (string, error) {
		offer.Status = enums.OfferStatusWithdrawn
		return "charge-ref", nil
	}
	var offerWrites []enums.OfferStatus
	helper.repo.updateOfferStatusFn = func(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
		offerWrites = append(offerWrites, status)
		return nil
	}
	var attemptUpdates []map[string]any
	helper.repo.updateAttemptFn = func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
		attemptUpdates = append(attemptUpdates, updates)
		return nil
	}

	session, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: session.Token,
		Method:       "card",
		CardToken:    "tok-abc",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	for _, status := range offerWrites {
		if status == enums.OfferStatusAccepted {
			t.Fatal("withdrawn offer must not be flipped to accepted")
		}
	}
	for _, updates := range attemptUpdates {
		if updates["status"] == enums.PaymentAttemptStatusAbandoned || updates["status"] == enums.PaymentAttemptStatusCompleted {
			t.Fatal("charged marker must stay pending for the reconcile job")
		}
	}
	if len(helper.outbox.events) != 0 {
		t.Fatalf("expected no paid event, got %v", helper.outbox.events)
	}
}

func TestConfirmPaymentDeclineAbandonsAttempt(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}
	helper.gateway.chargeFn = func(ctx context.Context, params ChargeParams) (string, error) {
		return "", pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined")
	}
	var attemptUpdates []map[string]any
	helper.repo.updateAttemptFn = func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
		attemptUpdates = append(attemptUpdates, updates)
		return nil
	}

	session, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: session.Token,
		Method:       "card",
		CardToken:    "tok-bad",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	if len(helper.gateway.charges) != 1 {
		t.Fatalf("declines must not retry, got %d charges", len(helper.gateway.charges))
	}
	if len(attemptUpdates) != 1 || attemptUpdates[0]["status"] != enums.PaymentAttemptStatusAbandoned {
		t.Fatalf("expected abandoned marker, got %v", attemptUpdates)
	}
}

func TestConfirmPaymentAmbiguousKeepsMarker(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)

	helper.repo.findRequestFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}
	helper.gateway.chargeFn = func(ctx context.Context, params ChargeParams) (string, error) {
		return "", errors.New("gateway timeout")
	}
	var attemptUpdates []map[string]any
	helper.repo.updateAttemptFn = func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
		attemptUpdates = append(attemptUpdates, updates)
		return nil
	}

	session, err := helper.svc.AcceptAndInitiatePayment(context.Background(), request.ID, offer.ID, buyerID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    request.ID,
		BuyerID:      buyerID,
		SessionToken: session.Token,
		Method:       "card",
		CardToken:    "tok-slow",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentAmbiguous) {
		t.Fatalf("expected ambiguous outcome, got %v", err)
	}
	if len(helper.gateway.charges) != 2 {
		t.Fatalf("expected 2 charge attempts, got %d", len(helper.gateway.charges))
	}
	for _, updates := range attemptUpdates {
		if updates["status"] == enums.PaymentAttemptStatusAbandoned {
			t.Fatal("ambiguous outcome must keep the pending marker")
		}
	}
}

func TestConfirmPaymentRejectsLostSessionMatch(t *testing.T) {
	helper := newNegotiationTest(t)
	_, err := helper.svc.ConfirmPayment(context.Background(), ConfirmInput{
		RequestID:    uuid.New(),
		BuyerID:      uuid.New(),
		SessionToken: "missing",
		Method:       "card",
		CardToken:    "tok",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for missing session, got %v", err)
	}
}

func TestCompleteAttemptFinalizesWithoutCharging(t *testing.T) {
	helper := newNegotiationTest(t)
	buyerID := uuid.New()
	request := openRequest(buyerID)
	offer := submittedOffer(request.ID, time.Hour)
	ref := "charge-ref"
	attempt := &models.PaymentAttempt{
		ID:                uuid.New(),
		RequestID:         request.ID,
		OfferID:           offer.ID,
		BuyerID:           buyerID,
		Method:            enums.PaymentMethodCard,
		AmountCents:       offer.PriceCents,
		ProviderReference: &ref,
		Status:            enums.PaymentAttemptStatusPending,
	}

	helper.repo.findAttemptByIDFn = func(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
		return attempt, nil
	}
	helper.repo.findRequestLockedFn = func(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
		return request, nil
	}
	helper.repo.findOfferFn = func(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
		return offer, nil
	}

	result, err := helper.svc.CompleteAttempt(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if result.RequestStatus != enums.RequestStatusProcessing {
		t.Fatalf("expected processing, got %s", result.RequestStatus)
	}
	if len(helper.gateway.charges) != 0 {
		t.Fatal("reconcile completion must not charge again")
	}
	if len(helper.outbox.events) != 1 || helper.outbox.events[0].EventType != enums.EventRequestPaid {
		t.Fatalf("expected paid event, got %v", helper.outbox.events)
	}
}

func TestAbandonAttemptEmitsReviewEvent(t *testing.T) {
	helper := newNegotiationTest(t)
	attempt := &models.PaymentAttempt{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		OfferID:   uuid.New(),
		Status:    enums.PaymentAttemptStatusPending,
	}
	helper.repo.findAttemptByIDFn = func(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
		return attempt, nil
	}
	var updates map[string]any
	helper.repo.updateAttemptFn = func(ctx context.Context, id uuid.UUID, u map[string]any) error {
		updates = u
		return nil
	}

	if err := helper.svc.AbandonAttempt(context.Background(), attempt.ID, "no provider reference after grace period"); err != nil {
		t.Fatalf("AbandonAttempt: %v", err)
	}
	if updates["status"] != enums.PaymentAttemptStatusAbandoned {
		t.Fatalf("expected abandoned status, got %v", updates)
	}
	if len(helper.outbox.events) != 1 || helper.outbox.events[0].EventType != enums.EventPaymentNeedsReview {
		t.Fatalf("expected review event, got %v", helper.outbox.events)
	}
}

func TestAbandonAttemptIgnoresSettledMarker(t *testing.T) {
	helper := newNegotiationTest(t)
	helper.repo.findAttemptByIDFn = func(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
		return &models.PaymentAttempt{ID: id, Status: enums.PaymentAttemptStatusCompleted}, nil
	}

	if err := helper.svc.AbandonAttempt(context.Background(), uuid.New(), "late sweep"); err != nil {
		t.Fatalf("AbandonAttempt: %v", err)
	}
	if len(helper.outbox.events) != 0 {
		t.Fatal("settled markers must not emit review events")
	}
}
