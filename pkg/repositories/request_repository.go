package repositories

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const requestsTable = "requests"

// RequestRepository handles database operations for single requests
type RequestRepository struct {
	*Repository
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db database.DB, logger ectologger.Logger) *RequestRepository {
	return &RequestRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a request row. CreatedAt is stamped here, before the
// provider is dispatched.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.Create")
	defer span.End()

	request.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(requestsTable).
		Cols("service_id", "batch_request_id", "uri", "created_at").
		Values(request.ServiceID, request.BatchRequestID, request.URI, request.CreatedAt)
	ib.SQL("RETURNING id")

	query, args := ib.Build()
	err := r.conn(ctx).QueryRowxContext(ctx, query, args...).Scan(&request.ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"uri":        request.URI,
			"service_id": request.ServiceID,
		}).Error("failed to create request")
		return Internal("failed to create request")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id": request.ID,
	}).Debugf("Created %s", requestsTable)
	return nil
}
