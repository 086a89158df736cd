package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/internal/negotiation"
	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/payloads"
)

const defaultReconcileGrace = 2 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentReconcileJobParams configure the stale payment attempt sweeper.
type PaymentReconcileJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Attempts pendingAttemptReader
	Payments attemptResolver
	Outbox   outboxEmitter
	Grace    time.Duration
}

type pendingAttemptReader interface {
	ListPendingAttemptsBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error)
}

type attemptResolver interface {
	CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*negotiation.ConfirmResult, error)
	AbandonAttempt(ctx context.Context, attemptID uuid.UUID, reason string) error
}

// NewPaymentReconcileJob builds the cron job that resolves payment attempts
// stuck between a gateway charge and the finalizing transaction.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("pending attempts reader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("attempt resolver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		db:       params.DB,
		attempts: params.Attempts,
		payments: params.Payments,
		outbox:   params.Outbox,
		grace:    grace,
		now:      time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	db       txRunner
	attempts pendingAttemptReader
	payments attemptResolver
	outbox   outboxEmitter
	grace    time.Duration
	now      func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	stale, err := j.attempts.ListPendingAttemptsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale payment attempts: %w", err)
	}

	var errs []error
	completed, abandoned := 0, 0
	for _, attempt := range stale {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"attempt_id": attempt.ID.String(),
			"request_id": attempt.RequestID.String(),
		})
		if attempt.ProviderReference == nil {
			// No charge reference was ever recorded, so nothing can be
			// recovered from the provider side. Flag it for review.
			if err := j.payments.AbandonAttempt(ctx, attempt.ID, "no provider reference after grace period"); err != nil {
				errs = append(errs, fmt.Errorf("abandon attempt %s: %w", attempt.ID, err))
				continue
			}
			j.logg.Warn(logCtx, "payment attempt abandoned for review")
			abandoned++
			continue
		}

		if _, err := j.payments.CompleteAttempt(ctx, attempt.ID); err != nil {
			// A conflict means the request settled with a different offer
			// while this charge was in flight. Retrying can never succeed;
			// route the charged marker to review for a manual refund.
			if pkgerrors.HasCode(err, pkgerrors.CodeConflict) || pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				reason := fmt.Sprintf("charge %s cannot finalize: %v", *attempt.ProviderReference, err)
				if abandonErr := j.payments.AbandonAttempt(ctx, attempt.ID, reason); abandonErr != nil {
					errs = append(errs, fmt.Errorf("abandon attempt %s: %w", attempt.ID, abandonErr))
					continue
				}
				j.logg.Warn(logCtx, "charged payment attempt abandoned for review")
				abandoned++
				continue
			}
			errs = append(errs, fmt.Errorf("complete attempt %s: %w", attempt.ID, err))
			continue
		}
		if err := j.emitReconciled(ctx, attempt); err != nil {
			errs = append(errs, err)
			continue
		}
		j.logg.Info(logCtx, "payment attempt reconciled")
		completed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale":     len(stale),
		"completed": completed,
		"abandoned": abandoned,
	})
	j.logg.Info(logCtx, "payment reconcile loop complete")
	return multierr.Combine(errs...)
}

func (j *paymentReconcileJob) emitReconciled(ctx context.Context, attempt models.PaymentAttempt) error {
	providerRef := ""
	if attempt.ProviderReference != nil {
		providerRef = *attempt.ProviderReference
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentReconciled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   attempt.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.PaymentReconciledEvent{
				RequestID:         attempt.RequestID,
				OfferID:           attempt.OfferID,
				AttemptID:         attempt.ID,
				ProviderReference: providerRef,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
