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

const servicesTable = "services"

// ServiceRepository handles database operations for the seeded service rows
type ServiceRepository struct {
	*Repository
}

// NewServiceRepository creates a new service repository
func NewServiceRepository(db database.DB, logger ectologger.Logger) *ServiceRepository {
	return &ServiceRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetByName retrieves a service row by its seeded name
func (r *ServiceRepository) GetByName(ctx context.Context, name string) (*models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.GetByName")
	defer span.End()

	sb := database.NewStruct(new(models.Service)).SelectFrom(servicesTable)
	sb.Where(sb.Equal("name", name))

	query, args := sb.Build()
	var service models.Service
	err := r.conn(ctx).GetContext(ctx, &service, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown service %q", name)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"service": name,
		}).Error("failed to get service")
		return nil, Internal("failed to get service")
	}
	return &service, nil
}

// GetByID retrieves a service row by id
func (r *ServiceRepository) GetByID(ctx context.Context, id int64) (*models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.GetByID")
	defer span.End()

	sb := database.NewStruct(new(models.Service)).SelectFrom(servicesTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var service models.Service
	err := r.conn(ctx).GetContext(ctx, &service, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("service %d does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"service_id": id,
		}).Error("failed to get service")
		return nil, Internal("failed to get service")
	}
	return &service, nil
}

// List retrieves all seeded services
func (r *ServiceRepository) List(ctx context.Context) ([]models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.List")
	defer span.End()

	sb := database.NewStruct(new(models.Service)).SelectFrom(servicesTable)
	sb.OrderBy("id")

	query, args := sb.Build()
	var services []models.Service
	err := r.conn(ctx).SelectContext(ctx, &services, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list services")
		return nil, Internal("failed to list services")
	}
	return services, nil
}
