package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	"github.com/angelmondragon/bulkquote-backend/pkg/pagination"
)

// Repository defines persistence operations for bulk order requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.BulkOrderRequest) (*models.BulkOrderRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RequestList, error)
	ListOpenForCategory(ctx context.Context, category enums.RequestCategory, params pagination.Params) (*RequestList, error)
	CountSubmittedOffers(ctx context.Context, requestID uuid.UUID) (int, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}
