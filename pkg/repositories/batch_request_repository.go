package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const batchRequestsTable = "batch_requests"

// BatchRequestRepository handles database operations for batches
type BatchRequestRepository struct {
	*Repository
}

// NewBatchRequestRepository creates a new batch request repository
func NewBatchRequestRepository(db database.DB, logger ectologger.Logger) *BatchRequestRepository {
	return &BatchRequestRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a fresh empty batch
func (r *BatchRequestRepository) Create(ctx context.Context) (*models.BatchRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "BatchRequestRepository.Create")
	defer span.End()

	batch := models.BatchRequest{CreatedAt: time.Now().UTC()}

	ib := database.NewInsertBuilder()
	ib.InsertInto(batchRequestsTable).
		Cols("created_at").
		Values(batch.CreatedAt)
	ib.SQL("RETURNING id")

	query, args := ib.Build()
	err := r.conn(ctx).QueryRowxContext(ctx, query, args...).Scan(&batch.ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create batch request")
		return nil, Internal("failed to create batch request")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_request_id": batch.ID,
	}).Debugf("Created %s", batchRequestsTable)
	return &batch, nil
}

// GetByID retrieves a batch by id
func (r *BatchRequestRepository) GetByID(ctx context.Context, id int64) (*models.BatchRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "BatchRequestRepository.GetByID")
	defer span.End()

	sb := database.NewStruct(new(models.BatchRequest)).SelectFrom(batchRequestsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var batch models.BatchRequest
	err := r.conn(ctx).GetContext(ctx, &batch, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("batch request %d does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_request_id": id,
		}).Error("failed to get batch request")
		return nil, Internal("failed to get batch request")
	}
	return &batch, nil
}

// URIs returns the request URIs recorded under a batch, in insert order
func (r *BatchRequestRepository) URIs(ctx context.Context, batchID int64) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "BatchRequestRepository.URIs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("uri")
	sb.From(requestsTable)
	sb.Where(sb.Equal("batch_request_id", batchID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var uris []string
	err := r.conn(ctx).SelectContext(ctx, &uris, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_request_id": batchID,
		}).Error("failed to list batch uris")
		return nil, Internal("failed to list batch uris")
	}
	return uris, nil
}
