package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const responsesTable = "responses"

// BatchResponse pairs a stored response with the URI of its request.
// Validity checks join the two sides of a comparison by this URI.
type BatchResponse struct {
	models.Response
	URI string `db:"uri"`
}

// ResponseRepository handles database operations for responses
type ResponseRepository struct {
	*Repository
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db database.DB, logger ectologger.Logger) *ResponseRepository {
	return &ResponseRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a response row. CreatedAt is stamped here, after the
// provider call has returned.
func (r *ResponseRepository) Create(ctx context.Context, response *models.Response) error {
	ctx, span := tracing.StartSpan(ctx, "ResponseRepository.Create")
	defer span.End()

	response.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(responsesTable).
		Cols("request_id", "benchmark_key_id", "body", "success", "created_at").
		Values(response.RequestID, response.BenchmarkKeyID, response.Body, response.Success, response.CreatedAt)
	ib.SQL("RETURNING id")

	query, args := ib.Build()
	err := r.conn(ctx).QueryRowxContext(ctx, query, args...).Scan(&response.ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": response.RequestID,
		}).Error("failed to create response")
		return Internal("failed to create response")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"response_id": response.ID,
	}).Debugf("Created %s", responsesTable)
	return nil
}

// SetBenchmarkKey attaches the key a response was validated against
func (r *ResponseRepository) SetBenchmarkKey(ctx context.Context, responseID, keyID int64) error {
	ctx, span := tracing.StartSpan(ctx, "ResponseRepository.SetBenchmarkKey")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(responsesTable)
	ub.Set(ub.Assign("benchmark_key_id", keyID))
	ub.Where(ub.Equal("id", responseID))

	query, args := ub.Build()
	_, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"response_id":      responseID,
			"benchmark_key_id": keyID,
		}).Error("failed to set benchmark key on response")
		return Internal("failed to set benchmark key on response")
	}
	return nil
}

// GetByRequestID retrieves the single response belonging to a request
func (r *ResponseRepository) GetByRequestID(ctx context.Context, requestID int64) (*models.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "ResponseRepository.GetByRequestID")
	defer span.End()

	sb := database.NewStruct(new(models.Response)).SelectFrom(responsesTable)
	sb.Where(sb.Equal("request_id", requestID))

	query, args := sb.Build()
	var response models.Response
	err := r.conn(ctx).GetContext(ctx, &response, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("response for request %d does not exist", requestID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to get response")
		return nil, Internal("failed to get response")
	}
	return &response, nil
}

// ListByBatch retrieves every response under a batch joined to its
// request URI
func (r *ResponseRepository) ListByBatch(ctx context.Context, batchID int64) ([]BatchResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ResponseRepository.ListByBatch")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(
		"resp.id", "resp.request_id", "resp.benchmark_key_id",
		"resp.body", "resp.success", "resp.created_at",
		"req.uri AS uri",
	)
	sb.From(responsesTable + " resp")
	sb.JoinWithOption(sqlbuilder.InnerJoin, requestsTable+" req", "req.id = resp.request_id")
	sb.Where(sb.Equal("req.batch_request_id", batchID))
	sb.OrderBy("req.id")

	query, args := sb.Build()
	var responses []BatchResponse
	err := r.conn(ctx).SelectContext(ctx, &responses, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_request_id": batchID,
		}).Error("failed to list batch responses")
		return nil, Internal("failed to list batch responses")
	}
	return responses, nil
}
