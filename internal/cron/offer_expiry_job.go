package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
)

const defaultOfferExpiryGrace = 24 * time.Hour

// OfferExpiryJobParams configure the stale offer sweeper.
type OfferExpiryJobParams struct {
	Logger *logger.Logger
	Offers submittedOfferExpirer
	Grace  time.Duration
}

type submittedOfferExpirer interface {
	ExpireSubmittedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOfferExpiryJob builds the cron job that flips stale submitted offers
// to expired. Accept and confirm paths also expire lazily, so the sweep
// only keeps listings tidy for readers.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultOfferExpiryGrace
	}
	return &offerExpiryJob{
		logg:   params.Logger,
		offers: params.Offers,
		grace:  grace,
		now:    time.Now,
	}, nil
}

type offerExpiryJob struct {
	logg   *logger.Logger
	offers submittedOfferExpirer
	grace  time.Duration
	now    func() time.Time
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	expired, err := j.offers.ExpireSubmittedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire submitted offers: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	j.logg.Info(logCtx, "offer expiry sweep complete")
	return nil
}
