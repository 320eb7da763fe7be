package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/icvsb/icvsb/pkg/benchmark"
	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/metrics"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/respcache"
	"github.com/icvsb/icvsb/pkg/tracing"
	"github.com/icvsb/icvsb/pkg/validate"
)

// LabelsHandler handles the conditional labeling endpoint
type LabelsHandler struct {
	registry *benchmark.Registry
	keys     *repositories.BenchmarkKeyRepository
	cache    respcache.Cache
	logger   ectologger.Logger
}

// NewLabelsHandler creates a new labels handler
func NewLabelsHandler(registry *benchmark.Registry, db database.DB, cache respcache.Cache, logger ectologger.Logger) *LabelsHandler {
	return &LabelsHandler{
		registry: registry,
		keys:     repositories.NewBenchmarkKeyRepository(db, logger),
		cache:    cache,
		logger:   logger,
	}
}

// Register registers the labels route
func (h *LabelsHandler) Register(g *echo.Group) {
	g.GET("", h.Get)
}

// etag is one parsed weak validator of the form W/"<client-id>[;<key-id>]"
type etag struct {
	ClientID int64
	KeyID    *int64
}

// parseETags parses a comma-separated If-Match header value
func parseETags(header string) ([]etag, error) {
	var tags []etag
	for _, raw := range strings.Split(header, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		inner, ok := strings.CutPrefix(raw, `W/"`)
		if !ok {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "etag %q is not a weak validator", raw)
		}
		inner, ok = strings.CutSuffix(inner, `"`)
		if !ok {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "etag %q is not a weak validator", raw)
		}

		clientPart, keyPart, hasKey := strings.Cut(inner, ";")
		clientID, err := strconv.ParseInt(clientPart, 10, 64)
		if err != nil || clientID <= 0 {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "etag %q does not name a benchmark client", raw)
		}

		tag := etag{ClientID: clientID}
		if hasKey {
			keyID, err := strconv.ParseInt(keyPart, 10, 64)
			if err != nil || keyID <= 0 {
				return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "etag %q does not name a benchmark key", raw)
			}
			tag.KeyID = &keyID
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, BadRequest("If-Match header carries no etags")
	}
	return tags, nil
}

// Get labels a URI under the keys named by If-Match. Each etag is tried
// in order; the first error-free outcome (or the last etag's) decides
// the response: 412 on validity errors, 422 on a provider error, 200 on
// fresh labels and 304 when the stored body matches the cached one.
func (h *LabelsHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "LabelsHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	uri := c.QueryParam("uri")
	if uri == "" {
		return BadRequest("uri query parameter is required")
	}
	if !validate.IsAbsoluteURI(uri) {
		return BadRequest("uri must be an absolute URI")
	}

	ifMatch := c.Request().Header.Get("If-Match")
	if ifMatch == "" {
		return BadRequest("If-Match header is required")
	}
	tags, err := parseETags(ifMatch)
	if err != nil {
		return err
	}

	var cutoff *time.Time
	if since := c.Request().Header.Get("If-Unmodified-Since"); since != "" {
		parsed, err := http.ParseTime(since)
		if err != nil {
			return BadRequest("If-Unmodified-Since is not an HTTP-date")
		}
		cutoff = &parsed
	}

	var (
		client *benchmark.Client
		result benchmark.Result
	)
	for _, tag := range tags {
		client, err = h.registry.Get(tag.ClientID)
		if err != nil {
			return err
		}

		keyRow, err := h.resolveKey(c, client, tag, cutoff)
		if err != nil {
			return err
		}

		supplied, err := client.Snapshot(ctx, keyRow)
		if err != nil {
			return err
		}

		result = client.SendURIWithKey(ctx, uri, supplied)
		if result.Err != nil {
			return httperror.WrapError(http.StatusInternalServerError, result.Err)
		}
		if !result.HasError() {
			break
		}
	}

	current := client.CurrentKey()
	if current != nil {
		c.Response().Header().Set("ETag", `W/"`+strconv.FormatInt(client.ID(), 10)+";"+strconv.FormatInt(current.Key.ID, 10)+`"`)
		c.Response().Header().Set("Last-Modified", current.Key.CreatedAt.UTC().Format(http.TimeFormat))
	}

	if result.HasError() {
		return c.JSON(http.StatusPreconditionFailed, result)
	}
	if serviceErr := result.Response.ServiceError(); serviceErr != "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"service_error": serviceErr})
	}

	cacheKey := respcache.Key{ClientID: client.ID(), KeyID: current.Key.ID, URI: uri}
	if prev, ok := h.cache.Get(ctx, cacheKey); ok && bytes.Equal(prev, result.Response.Body) {
		metrics.LabelsCacheHits.WithLabelValues("hit").Inc()
		return c.NoContent(http.StatusNotModified)
	}
	h.cache.Put(ctx, cacheKey, result.Response.Body)
	metrics.LabelsCacheHits.WithLabelValues("miss").Inc()

	return SuccessResponse(c, result)
}

// resolveKey picks the key row an etag names, falling back to the
// If-Unmodified-Since cutoff when the etag omits the key id
func (h *LabelsHandler) resolveKey(c echo.Context, client *benchmark.Client, tag etag, cutoff *time.Time) (*models.BenchmarkKey, error) {
	ctx := c.Request().Context()

	if tag.KeyID != nil {
		if !client.OwnsKey(*tag.KeyID) {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "key %d does not belong to benchmark client %d", *tag.KeyID, client.ID())
		}
		return h.keys.GetByID(ctx, *tag.KeyID)
	}

	if cutoff == nil {
		return nil, BadRequest("If-Unmodified-Since is required when an etag omits the key id")
	}
	key := client.KeyAt(*cutoff)
	if key == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "benchmark client %d has no key at or before the given date", client.ID())
	}
	return key, nil
}
