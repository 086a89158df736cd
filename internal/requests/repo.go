package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	"github.com/angelmondragon/bulkquote-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a requests repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.BulkOrderRequest) (*models.BulkOrderRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	var request models.BulkOrderRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate takes a row lock on the request so concurrent accepts
// serialize. The sqlite driver used in tests has no FOR UPDATE; its writes
// serialize on the connection instead.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BulkOrderRequest, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var request models.BulkOrderRequest
	err := query.Where("id = ?", id).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RequestList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BulkOrderRequest{}).
		Where("buyer_id = ?", buyerID)
	return r.listPage(ctx, query, params)
}

func (r *repository) ListOpenForCategory(ctx context.Context, category enums.RequestCategory, params pagination.Params) (*RequestList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BulkOrderRequest{}).
		Where("category = ?", category).
		Where("status = ?", enums.RequestStatusPending)
	return r.listPage(ctx, query, params)
}

func (r *repository) listPage(ctx context.Context, query *gorm.DB, params pagination.Params) (*RequestList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.BulkOrderRequest
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	counts, err := r.offerCounts(ctx, rows)
	if err != nil {
		return nil, err
	}

	list := &RequestList{Requests: make([]RequestDTO, 0, len(rows)), NextCursor: nextCursor}
	for i := range rows {
		list.Requests = append(list.Requests, toDTO(&rows[i], counts[rows[i].ID]))
	}
	return list, nil
}

func (r *repository) offerCounts(ctx context.Context, rows []models.BulkOrderRequest) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}

	type countRow struct {
		RequestID uuid.UUID
		Total     int
	}
	var results []countRow
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Select("request_id, COUNT(*) AS total").
		Where("request_id IN ?", ids).
		Where("status = ?", enums.OfferStatusSubmitted).
		Group("request_id").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for _, row := range results {
		counts[row.RequestID] = row.Total
	}
	return counts, nil
}

func (r *repository) CountSubmittedOffers(ctx context.Context, requestID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("request_id = ?", requestID).
		Where("status = ?", enums.OfferStatusSubmitted).
		Count(&count).Error
	return int(count), err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.BulkOrderRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes the request row; offers go with it via ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.BulkOrderRequest{}).Error
}
