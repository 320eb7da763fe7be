package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/icvsb/icvsb/pkg/benchmark"
	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/events"
	"github.com/icvsb/icvsb/pkg/providers"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/requestclient"
	"github.com/icvsb/icvsb/pkg/tracing"
	"github.com/icvsb/icvsb/pkg/webhooks"
)

// BenchmarkHandler handles benchmark client API endpoints
type BenchmarkHandler struct {
	registry   *benchmark.Registry
	services   *repositories.ServiceRepository
	severities *repositories.SeverityRepository
	providers  map[string]providers.LabelProvider
	db         database.DB
	notifier   *webhooks.Notifier
	emitter    *events.Emitter
	logger     ectologger.Logger
}

// NewBenchmarkHandler creates a new benchmark client handler
func NewBenchmarkHandler(
	registry *benchmark.Registry,
	labelProviders map[string]providers.LabelProvider,
	db database.DB,
	notifier *webhooks.Notifier,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *BenchmarkHandler {
	return &BenchmarkHandler{
		registry:   registry,
		services:   repositories.NewServiceRepository(db, logger),
		severities: repositories.NewSeverityRepository(db, logger),
		providers:  labelProviders,
		db:         db,
		notifier:   notifier,
		emitter:    emitter,
		logger:     logger,
	}
}

// CreateBenchmarkRequest represents the create benchmark client request body
type CreateBenchmarkRequest struct {
	Service          string   `json:"service" validate:"required"`
	BenchmarkDataset []string `json:"benchmark_dataset" validate:"required,min=1,dive,absuri"`
	benchmark.Config
}

// BenchmarkView is the introspection shape of one benchmark client
type BenchmarkView struct {
	ID                int64            `json:"id"`
	Service           string           `json:"service"`
	CreatedAt         time.Time        `json:"created_at"`
	CurrentKeyID      *int64           `json:"current_key_id"`
	IsBenchmarking    bool             `json:"is_benchmarking"`
	InvalidStateCount int              `json:"invalid_state_count"`
	LastBenchmarkTime *time.Time       `json:"last_benchmark_time"`
	BenchmarkCount    int              `json:"benchmark_count"`
	Config            benchmark.Config `json:"config"`
	BenchmarkDataset  []string         `json:"benchmark_dataset"`
}

// Register registers benchmark client routes
func (h *BenchmarkHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.GetByID)
	g.GET("/:id/key", h.RedirectToKey)
	g.GET("/:id/log", h.Log)
	g.POST("/:id/benchmark", h.Trigger)
}

// Create registers a new benchmark client and, unless autobenchmark is
// disabled, starts its first benchmark in the background
func (h *BenchmarkHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	req := CreateBenchmarkRequest{Config: benchmark.DefaultConfig()}
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := req.Config.Validate(); err != nil {
		return err
	}

	service, err := h.services.GetByName(ctx, req.Service)
	if err != nil {
		return err
	}
	provider, ok := h.providers[service.Name]
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "service %q is not configured", service.Name)
	}
	severity, err := h.severities.GetByName(ctx, req.Severity)
	if err != nil {
		return err
	}

	requester := requestclient.New(service, provider, h.db, h.logger, requestclient.Config{
		MaxLabels:     req.MaxLabels,
		MinConfidence: req.MinConfidence,
	})

	client := h.registry.Register(func(id int64) *benchmark.Client {
		return benchmark.NewClient(id, req.BenchmarkDataset, req.Config, benchmark.Deps{
			Service:   service,
			Severity:  severity,
			DB:        h.db,
			Logger:    h.logger,
			Requester: requester,
			Notifier:  h.notifier,
			Emitter:   h.emitter,
		})
	})

	if req.Autobenchmark {
		go func() {
			if err := client.Benchmark(context.Background()); err != nil {
				h.logger.WithError(err).WithField("benchmarkClientId", client.ID()).Error("initial benchmark failed")
			}
		}()
	}

	return CreatedResponse(c, map[string]int64{"id": client.ID()})
}

// List returns every registered benchmark client
func (h *BenchmarkHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	clients := h.registry.List()
	views := make([]BenchmarkView, 0, len(clients))
	for _, client := range clients {
		views = append(views, viewOf(client))
	}
	return SuccessResponse(c, views)
}

// GetByID returns one benchmark client's introspection view
func (h *BenchmarkHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.registry.Get(id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, viewOf(client))
}

// RedirectToKey redirects to the client's current key, or 422 while the
// first benchmark is still running
func (h *BenchmarkHandler) RedirectToKey(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.RedirectToKey")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.registry.Get(id)
	if err != nil {
		return err
	}

	current := client.CurrentKey()
	if current == nil {
		return UnprocessableEntity("client has not completed its first benchmark")
	}
	return c.Redirect(http.StatusFound, "/key/"+strconv.FormatInt(current.Key.ID, 10))
}

// Log returns the client's log as plain text
func (h *BenchmarkHandler) Log(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.Log")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.registry.Get(id)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, client.Book().Render())
}

// Trigger starts a re-benchmark in the background
func (h *BenchmarkHandler) Trigger(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BenchmarkHandler.Trigger")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.registry.Get(id)
	if err != nil {
		return err
	}

	go func() {
		if err := client.Benchmark(context.Background()); err != nil {
			h.logger.WithError(err).WithField("benchmarkClientId", client.ID()).Error("triggered benchmark failed")
		}
	}()

	return AcceptedResponse(c, map[string]string{"status": "benchmarking"})
}

func viewOf(client *benchmark.Client) BenchmarkView {
	view := BenchmarkView{
		ID:                client.ID(),
		Service:           client.Service().Name,
		CreatedAt:         client.CreatedAt(),
		IsBenchmarking:    client.Benchmarking(),
		InvalidStateCount: client.InvalidStateCount(),
		BenchmarkCount:    client.BenchmarkCount(),
		Config:            client.Config(),
		BenchmarkDataset:  client.Dataset(),
	}
	if current := client.CurrentKey(); current != nil {
		view.CurrentKeyID = &current.Key.ID
	}
	if last := client.LastBenchmarkTime(); !last.IsZero() {
		view.LastBenchmarkTime = &last
	}
	return view
}
