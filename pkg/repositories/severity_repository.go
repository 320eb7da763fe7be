package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const severitiesTable = "severities"

// SeverityRepository handles database operations for the seeded severity rows
type SeverityRepository struct {
	*Repository
}

// NewSeverityRepository creates a new severity repository
func NewSeverityRepository(db database.DB, logger ectologger.Logger) *SeverityRepository {
	return &SeverityRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetByName retrieves a severity row by its seeded name
func (r *SeverityRepository) GetByName(ctx context.Context, name string) (*models.Severity, error) {
	ctx, span := tracing.StartSpan(ctx, "SeverityRepository.GetByName")
	defer span.End()

	sb := database.NewStruct(new(models.Severity)).SelectFrom(severitiesTable)
	sb.Where(sb.Equal("name", name))

	query, args := sb.Build()
	var severity models.Severity
	err := r.conn(ctx).GetContext(ctx, &severity, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown severity %q", name)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"severity": name,
		}).Error("failed to get severity")
		return nil, Internal("failed to get severity")
	}
	return &severity, nil
}

// GetByID retrieves a severity row by id
func (r *SeverityRepository) GetByID(ctx context.Context, id int64) (*models.Severity, error) {
	ctx, span := tracing.StartSpan(ctx, "SeverityRepository.GetByID")
	defer span.End()

	sb := database.NewStruct(new(models.Severity)).SelectFrom(severitiesTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var severity models.Severity
	err := r.conn(ctx).GetContext(ctx, &severity, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("severity %d does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"severity_id": id,
		}).Error("failed to get severity")
		return nil, Internal("failed to get severity")
	}
	return &severity, nil
}
