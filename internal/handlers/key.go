package handlers

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/tracing"
)

// KeyHandler handles benchmark key API endpoints
type KeyHandler struct {
	keys       *repositories.BenchmarkKeyRepository
	responses  *repositories.ResponseRepository
	services   *repositories.ServiceRepository
	severities *repositories.SeverityRepository
	logger     ectologger.Logger
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(db database.DB, logger ectologger.Logger) *KeyHandler {
	return &KeyHandler{
		keys:       repositories.NewBenchmarkKeyRepository(db, logger),
		responses:  repositories.NewResponseRepository(db, logger),
		services:   repositories.NewServiceRepository(db, logger),
		severities: repositories.NewSeverityRepository(db, logger),
		logger:     logger,
	}
}

// KeyView is the introspection shape of one benchmark key
type KeyView struct {
	ID              int64                          `json:"id"`
	Service         string                         `json:"service"`
	Severity        string                         `json:"severity"`
	Expired         bool                           `json:"expired"`
	CreatedAt       time.Time                      `json:"created_at"`
	DeltaLabels     int                            `json:"delta_labels"`
	DeltaConfidence float64                        `json:"delta_confidence"`
	MaxLabels       int                            `json:"max_labels"`
	MinConfidence   float64                        `json:"min_confidence"`
	ExpectedLabels  []string                       `json:"expected_labels"`
	Responses       map[string]models.ResponseView `json:"responses"`
}

// Register registers key routes
func (h *KeyHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetByID)
}

// GetByID returns a key's configuration and its benchmark responses
func (h *KeyHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "KeyHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	key, err := h.keys.GetByID(ctx, id)
	if err != nil {
		return err
	}
	service, err := h.services.GetByID(ctx, key.ServiceID)
	if err != nil {
		return err
	}
	severity, err := h.severities.GetByID(ctx, key.SeverityID)
	if err != nil {
		return err
	}
	batch, err := h.responses.ListByBatch(ctx, key.BatchRequestID)
	if err != nil {
		return err
	}

	views := make(map[string]models.ResponseView, len(batch))
	for i := range batch {
		views[batch[i].URI] = batch[i].View()
	}

	return SuccessResponse(c, KeyView{
		ID:              key.ID,
		Service:         service.Name,
		Severity:        severity.Name,
		Expired:         key.Expired,
		CreatedAt:       key.CreatedAt,
		DeltaLabels:     key.DeltaLabels,
		DeltaConfidence: key.DeltaConfidence,
		MaxLabels:       key.MaxLabels,
		MinConfidence:   key.MinConfidence,
		ExpectedLabels:  key.ExpectedLabels.Data,
		Responses:       views,
	})
}
