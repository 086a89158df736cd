package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// Repository defines the persistence surface the coordinator works with:
// payment records, the pending attempt markers that bridge charge and
// finalize, and the request/offer rows mutated during acceptance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error)
	FindPaymentRecordByRequest(ctx context.Context, requestID uuid.UUID) (*models.PaymentRecord, error)

	CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindPendingAttempt(ctx context.Context, requestID, offerID uuid.UUID) (*models.PaymentAttempt, error)
	FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	ListPendingAttemptsBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error)
	UpdateAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindRequest(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	UpdateRequest(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	UpdateOfferStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error
	RejectSiblingOffers(ctx context.Context, requestID, acceptedOfferID uuid.UUID) error
}

// SessionStore holds short-lived payment sessions between accept and confirm.
type SessionStore interface {
	Save(ctx context.Context, session PaymentSession, ttl time.Duration) error
	Find(ctx context.Context, token string) (*PaymentSession, error)
	Delete(ctx context.Context, token string) error
}
