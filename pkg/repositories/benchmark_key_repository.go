package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const benchmarkKeysTable = "benchmark_keys"

// BenchmarkKeyRepository handles database operations for benchmark keys
type BenchmarkKeyRepository struct {
	*Repository
}

// NewBenchmarkKeyRepository creates a new benchmark key repository
func NewBenchmarkKeyRepository(db database.DB, logger ectologger.Logger) *BenchmarkKeyRepository {
	return &BenchmarkKeyRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a key row referring to a completed batch
func (r *BenchmarkKeyRepository) Create(ctx context.Context, key *models.BenchmarkKey) error {
	ctx, span := tracing.StartSpan(ctx, "BenchmarkKeyRepository.Create")
	defer span.End()

	key.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(benchmarkKeysTable).
		Cols("service_id", "batch_request_id", "severity_id", "expired",
			"delta_labels", "delta_confidence", "max_labels", "min_confidence",
			"expected_labels", "created_at").
		Values(key.ServiceID, key.BatchRequestID, key.SeverityID, key.Expired,
			key.DeltaLabels, key.DeltaConfidence, key.MaxLabels, key.MinConfidence,
			key.ExpectedLabels, key.CreatedAt)
	ib.SQL("RETURNING id")

	query, args := ib.Build()
	err := r.conn(ctx).QueryRowxContext(ctx, query, args...).Scan(&key.ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"service_id":       key.ServiceID,
			"batch_request_id": key.BatchRequestID,
		}).Error("failed to create benchmark key")
		return Internal("failed to create benchmark key")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"benchmark_key_id": key.ID,
	}).Debugf("Created %s", benchmarkKeysTable)
	return nil
}

// GetByID retrieves a key by id. An unknown id is the caller naming a
// key that was never minted, so it maps to a bad request.
func (r *BenchmarkKeyRepository) GetByID(ctx context.Context, id int64) (*models.BenchmarkKey, error) {
	ctx, span := tracing.StartSpan(ctx, "BenchmarkKeyRepository.GetByID")
	defer span.End()

	sb := database.NewStruct(new(models.BenchmarkKey)).SelectFrom(benchmarkKeysTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var key models.BenchmarkKey
	err := r.conn(ctx).GetContext(ctx, &key, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "benchmark key %d does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"benchmark_key_id": id,
		}).Error("failed to get benchmark key")
		return nil, Internal("failed to get benchmark key")
	}
	return &key, nil
}

// Expire marks a key expired. Expiry is one-way; there is no reset.
func (r *BenchmarkKeyRepository) Expire(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "BenchmarkKeyRepository.Expire")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(benchmarkKeysTable)
	ub.Set(ub.Assign("expired", true))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"benchmark_key_id": id,
		}).Error("failed to expire benchmark key")
		return Internal("failed to expire benchmark key")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "benchmark key %d does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"benchmark_key_id": id,
	}).Debugf("Expired %s", benchmarkKeysTable)
	return nil
}
