package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/config"
	dbpkg "github.com/angelmondragon/bulkquote-backend/pkg/db"
	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service coordinates offer acceptance, the payment gate, and finalization.
type Service interface {
	AcceptAndInitiatePayment(ctx context.Context, requestID, offerID, buyerID uuid.UUID) (*PaymentSession, error)
	ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*ConfirmResult, error)
	AbandonAttempt(ctx context.Context, attemptID uuid.UUID, reason string) error
}

type service struct {
	repo     Repository
	sessions SessionStore
	gateway  Gateway
	tx       txRunner
	outbox   outboxPublisher
	cfg      config.PaymentConfig
	logg     *logger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewService builds the negotiation coordinator with the required dependencies.
func NewService(repo Repository, sessions SessionStore, gateway Gateway, tx txRunner, outboxSvc outboxPublisher, cfg config.PaymentConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("negotiation repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		sessions: sessions,
		gateway:  gateway,
		tx:       tx,
		outbox:   outboxSvc,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// AcceptAndInitiatePayment validates the accept and opens a payment session.
// Nothing is persisted: until the payment confirms, the offer and request
// are untouched and other offers remain acceptable.
func (s *service) AcceptAndInitiatePayment(ctx context.Context, requestID, offerID, buyerID uuid.UUID) (*PaymentSession, error) {
	if requestID == uuid.Nil || offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id and offer id required")
	}
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	request, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	if request.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request does not belong to buyer")
	}
	if request.Status != enums.RequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is not open for acceptance")
	}

	offer, err := s.repo.FindOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.RequestID != request.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer does not belong to request")
	}
	if offer.Status != enums.OfferStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer available")
	}
	if !offer.ExpirationDate.After(s.now()) {
		// Lazy expiry enforcement: flip the row on first touch.
		if err := s.repo.UpdateOfferStatus(ctx, offer.ID, enums.OfferStatusExpired); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer")
		}
		return nil, pkgerrors.New(pkgerrors.CodeOfferExpired, "offer has expired")
	}

	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := s.now().UTC()
	session := PaymentSession{
		Token:       uuid.NewString(),
		RequestID:   request.ID,
		OfferID:     offer.ID,
		BuyerID:     buyerID,
		SellerID:    offer.SellerID,
		AmountCents: offer.PriceCents,
		Currency:    request.Currency,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.sessions.Save(ctx, session, ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session")
	}
	return &session, nil
}

// ConfirmPayment settles the session: charge first, finalize second. The
// charge runs outside the row lock; the pending attempt marker plus the
// deterministic gateway idempotency key make every retry safe.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	method, err := enums.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"method": input.Method})
	}
	if method == enums.PaymentMethodCard && input.CardToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card_token required for card payments")
	}

	session, sessionErr := s.sessions.Find(ctx, input.SessionToken)
	if sessionErr != nil && !errors.Is(sessionErr, ErrSessionNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, sessionErr, "load payment session")
	}

	// Idempotent replay: a record means this request already settled. A live
	// session naming a different offer is not a replay, it lost the race.
	existing, err := s.existingResult(ctx, input.RequestID, input.BuyerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if session != nil && session.OfferID != existing.OfferID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another offer was already accepted")
		}
		return existing, nil
	}

	if sessionErr != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session expired, accept the offer again")
	}
	if session.RequestID != input.RequestID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session does not match request")
	}
	if session.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session does not belong to buyer")
	}

	if err := s.precheck(ctx, session); err != nil {
		return nil, err
	}

	attempt, err := s.ensurePendingAttempt(ctx, session, method)
	if err != nil {
		return nil, err
	}

	providerRef, err := s.charge(ctx, session, method, input.CardToken)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodePaymentAmbiguous) {
			// Keep the marker; the reconcile job owns it now.
			s.noteAttemptError(ctx, attempt.ID, err)
			return nil, err
		}
		abandonErr := s.repo.UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status":     enums.PaymentAttemptStatusAbandoned,
			"last_error": err.Error(),
		})
		if abandonErr != nil && s.logg != nil {
			s.logg.Error(ctx, "abandon payment attempt", abandonErr)
		}
		return nil, err
	}

	// Persist the reference before finalizing so a crash between here and
	// the transaction leaves a reconcilable marker, not a lost charge.
	if err := s.repo.UpdateAttempt(ctx, attempt.ID, map[string]any{"provider_reference": providerRef}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider reference")
	}
	attempt.ProviderReference = &providerRef

	result, err := s.finalize(ctx, *session, attempt, method, providerRef)
	if err != nil {
		return nil, err
	}

	if delErr := s.sessions.Delete(ctx, session.Token); delErr != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "payment session cleanup failed")
	}
	return result, nil
}

// CompleteAttempt finalizes a pending marker that already has a provider
// reference. Used by the reconcile job; the gateway is never called.
func (s *service) CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*ConfirmResult, error) {
	attempt, err := s.repo.FindAttemptByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	if attempt.Status != enums.PaymentAttemptStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "attempt is not pending")
	}
	if attempt.ProviderReference == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "attempt has no provider reference")
	}

	session := PaymentSession{
		RequestID:   attempt.RequestID,
		OfferID:     attempt.OfferID,
		BuyerID:     attempt.BuyerID,
		AmountCents: attempt.AmountCents,
	}
	return s.finalize(ctx, session, attempt, attempt.Method, *attempt.ProviderReference)
}

// AbandonAttempt marks a marker that can no longer complete. The row is
// kept with its error for the audit trail and a review event is queued.
func (s *service) AbandonAttempt(ctx context.Context, attemptID uuid.UUID, reason string) error {
	attempt, err := s.repo.FindAttemptByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	if attempt.Status != enums.PaymentAttemptStatusPending {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status":     enums.PaymentAttemptStatusAbandoned,
			"last_error": reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon attempt")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentNeedsReview,
			AggregateType: enums.AggregatePayment,
			AggregateID:   attempt.ID,
			Version:       1,
			Data: payloads.PaymentNeedsReviewEvent{
				RequestID: attempt.RequestID,
				OfferID:   attempt.OfferID,
				AttemptID: attempt.ID,
				Reason:    reason,
			},
		})
	})
}

func (s *service) existingResult(ctx context.Context, requestID, buyerID uuid.UUID) (*ConfirmResult, error) {
	record, err := s.repo.FindPaymentRecordByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment record")
	}
	if record.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request does not belong to buyer")
	}
	request, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return &ConfirmResult{
		RequestID:        record.RequestID,
		OfferID:          record.OfferID,
		RequestStatus:    request.Status,
		Payment:          toRecordDTO(record),
		AlreadyConfirmed: true,
	}, nil
}

// precheck fails fast before touching the gateway. The finalize transaction
// repeats these checks under the row lock.
func (s *service) precheck(ctx context.Context, session *PaymentSession) error {
	request, err := s.repo.FindRequest(ctx, session.RequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	if request.Status != enums.RequestStatusPending {
		return pkgerrors.New(pkgerrors.CodeConflict, "request is no longer open")
	}

	offer, err := s.repo.FindOffer(ctx, session.OfferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.Status != enums.OfferStatusSubmitted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer available")
	}
	if !offer.ExpirationDate.After(s.now()) {
		if err := s.repo.UpdateOfferStatus(ctx, offer.ID, enums.OfferStatusExpired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer")
		}
		return pkgerrors.New(pkgerrors.CodeOfferExpired, "offer has expired")
	}
	return nil
}

// ensurePendingAttempt reuses an existing marker for the pair so a retried
// confirm keeps the same charge identity end to end.
func (s *service) ensurePendingAttempt(ctx context.Context, session *PaymentSession, method enums.PaymentMethod) (*models.PaymentAttempt, error) {
	existing, err := s.repo.FindPendingAttempt(ctx, session.RequestID, session.OfferID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending attempt")
	}

	attempt := &models.PaymentAttempt{
		RequestID:   session.RequestID,
		OfferID:     session.OfferID,
		BuyerID:     session.BuyerID,
		Method:      method,
		AmountCents: session.AmountCents,
		Status:      enums.PaymentAttemptStatusPending,
	}
	created, err := s.repo.CreatePaymentAttempt(ctx, attempt)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_payment_attempts_one_pending") {
			// Lost the race to a concurrent confirm; adopt its marker.
			return s.repo.FindPendingAttempt(ctx, session.RequestID, session.OfferID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment attempt")
	}
	return created, nil
}

// charge talks to the gateway with bounded exponential backoff. Declines
// stop immediately; transport errors retry; running out of retries after
// the provider may have seen the charge reports an ambiguous outcome.
func (s *service) charge(ctx context.Context, session *PaymentSession, method enums.PaymentMethod, cardToken string) (string, error) {
	if method == enums.PaymentMethodCOD {
		ref, err := s.gateway.RecordCOD(ctx)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cod")
		}
		return ref, nil
	}

	params := ChargeParams{
		AmountCents: session.AmountCents,
		Currency:    session.Currency,
		CardToken:   cardToken,
		// Deterministic per (request, offer): the provider deduplicates
		// replays no matter which process retries.
		IdempotencyKey: chargeIdempotencyKey(session.RequestID, session.OfferID),
		ReferenceID:    session.RequestID.String(),
	}

	attempts := s.cfg.ChargeAttempts
	if attempts <= 0 {
		attempts = 4
	}
	backoff := s.cfg.ChargeBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := s.cfg.ChargeBackoffMax
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		chargeCtx := ctx
		cancel := func() {}
		if s.cfg.ChargeTimeout > 0 {
			chargeCtx, cancel = context.WithTimeout(ctx, s.cfg.ChargeTimeout)
		}
		ref, err := s.gateway.ChargeCard(chargeCtx, params)
		cancel()
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if pkgerrors.HasCode(err, pkgerrors.CodePaymentDeclined) ||
			pkgerrors.HasCode(err, pkgerrors.CodeValidation) ||
			pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			return "", err
		}
		if i == attempts-1 {
			break
		}
		if err := s.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return "", pkgerrors.Wrap(pkgerrors.CodePaymentAmbiguous, lastErr, "charge outcome unknown, retry later")
}

// finalize runs the settlement transaction under the request row lock.
func (s *service) finalize(ctx context.Context, session PaymentSession, attempt *models.PaymentAttempt, method enums.PaymentMethod, providerRef string) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequestForUpdate(ctx, session.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
		}

		// Second idempotency check, now under the lock.
		if existing, err := repo.FindPaymentRecordByRequest(ctx, session.RequestID); err == nil {
			if existing.OfferID != session.OfferID {
				return pkgerrors.New(pkgerrors.CodeConflict, "another offer was already accepted")
			}
			result = &ConfirmResult{
				RequestID:        existing.RequestID,
				OfferID:          existing.OfferID,
				RequestStatus:    request.Status,
				Payment:          toRecordDTO(existing),
				AlreadyConfirmed: true,
			}
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment record")
		}

		if request.Status != enums.RequestStatusPending || request.AcceptedOfferID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "another offer was already accepted")
		}

		// The charge ran outside this lock, so the offer may have been
		// withdrawn or expired in the meantime. The pending attempt is left
		// for the reconcile job to route to review.
		offer, err := repo.FindOffer(ctx, session.OfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload offer")
		}
		if offer.Status != enums.OfferStatusSubmitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer changed while payment was in flight")
		}

		record := &models.PaymentRecord{
			RequestID:         session.RequestID,
			OfferID:           session.OfferID,
			BuyerID:           attempt.BuyerID,
			Method:            method,
			ProviderReference: &providerRef,
			AmountCents:       attempt.AmountCents,
			ConfirmedAt:       s.now().UTC(),
		}
		if _, err := repo.CreatePaymentRecord(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
		}

		if err := repo.UpdateOfferStatus(ctx, session.OfferID, enums.OfferStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if err := repo.RejectSiblingOffers(ctx, session.RequestID, session.OfferID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject sibling offers")
		}
		if err := repo.UpdateRequest(ctx, session.RequestID, map[string]any{
			"status":            enums.RequestStatusProcessing,
			"accepted_offer_id": session.OfferID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance request")
		}
		if err := repo.UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status": enums.PaymentAttemptStatusCompleted,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete attempt")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestPaid,
			AggregateType: enums.AggregateBulkOrderRequest,
			AggregateID:   session.RequestID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: attempt.BuyerID, Role: string(enums.MemberRoleBuyer)},
			Data: payloads.RequestPaidEvent{
				RequestID:     session.RequestID,
				OfferID:       session.OfferID,
				BuyerID:       attempt.BuyerID,
				SellerID:      offer.SellerID,
				AmountCents:   attempt.AmountCents,
				PaymentMethod: method,
				PaidAt:        record.ConfirmedAt,
			},
		}); err != nil {
			return err
		}

		result = &ConfirmResult{
			RequestID:     record.RequestID,
			OfferID:       record.OfferID,
			RequestStatus: enums.RequestStatusProcessing,
			Payment:       toRecordDTO(record),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) noteAttemptError(ctx context.Context, attemptID uuid.UUID, cause error) {
	if err := s.repo.UpdateAttempt(ctx, attemptID, map[string]any{"last_error": cause.Error()}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "record attempt error", err)
	}
}

func chargeIdempotencyKey(requestID, offerID uuid.UUID) string {
	return fmt.Sprintf("bq-charge-%s-%s", requestID, offerID)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
