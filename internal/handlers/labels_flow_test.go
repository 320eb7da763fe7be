package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/icvsb/icvsb/pkg/benchmark"
	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/keys"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/providers"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/requestclient"
	"github.com/icvsb/icvsb/pkg/respcache"
	"github.com/icvsb/icvsb/pkg/webhooks"
)

// mutableProvider lets a test change what the vendor returns between
// benchmarks, simulating upstream drift.
type mutableProvider struct {
	mu     sync.Mutex
	labels map[string]float64
}

func (p *mutableProvider) Name() string { return models.ServiceGoogle }

func (p *mutableProvider) Fetch(_ context.Context, _ string, _ int, _ float64) providers.Fetched {
	p.mu.Lock()
	defer p.mu.Unlock()
	labels := make(map[string]float64, len(p.labels))
	for name, confidence := range p.labels {
		labels[name] = confidence
	}
	raw, _ := json.Marshal(labels)
	return providers.Fetched{Raw: raw, Labels: labels, Success: true}
}

func (p *mutableProvider) setLabels(labels map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = labels
}

type labelsFixture struct {
	handler *LabelsHandler
	client  *benchmark.Client
	e       *echo.Echo
}

func newLabelsFixture(t *testing.T, config benchmark.Config, dataset []string, provider *mutableProvider) *labelsFixture {
	t.Helper()

	zapLogger, _ := zap.NewDevelopment()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	raw, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	ddl, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "sqlite", "000001_init.up.sql"))
	require.NoError(t, err)
	_, err = raw.Exec(string(ddl))
	require.NoError(t, err)

	database.SetFlavorForDriver("sqlite3")
	db := database.NewDatabaseInstance(raw, logger)

	ctx := context.Background()
	service, err := repositories.NewServiceRepository(db, logger).GetByName(ctx, models.ServiceGoogle)
	require.NoError(t, err)
	severity, err := repositories.NewSeverityRepository(db, logger).GetByName(ctx, config.Severity)
	require.NoError(t, err)

	requester := requestclient.New(service, provider, db, logger, requestclient.Config{
		MaxLabels:     config.MaxLabels,
		MinConfidence: config.MinConfidence,
	})

	registry := benchmark.NewRegistry(logger)
	t.Cleanup(registry.Shutdown)
	client := registry.Register(func(id int64) *benchmark.Client {
		return benchmark.NewClient(id, dataset, config, benchmark.Deps{
			Service:   service,
			Severity:  severity,
			DB:        db,
			Logger:    logger,
			Requester: requester,
			Notifier:  webhooks.NewNotifier(nil, logger, 0),
		})
	})
	require.NoError(t, client.Benchmark(ctx))

	return &labelsFixture{
		handler: NewLabelsHandler(registry, db, respcache.NewMemory(8), logger),
		client:  client,
		e:       echo.New(),
	}
}

func (f *labelsFixture) get(t *testing.T, uri string, headers map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/labels?uri="+url.QueryEscape(uri), nil)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	rec := httptest.NewRecorder()
	return rec, f.handler.Get(f.e.NewContext(req, rec))
}

func clientKeyETag(f *labelsFixture, keyID int64) string {
	return `W/"` + strconv.FormatInt(f.client.ID(), 10) + ";" + strconv.FormatInt(keyID, 10) + `"`
}

func TestLabelsExpectedLabelsMismatchUnderException(t *testing.T) {
	const uri = "https://img.example/cat.jpg"
	config := benchmark.DefaultConfig()
	config.Severity = models.SeverityException
	config.ExpectedLabels = []string{"dog"}
	config.Autobenchmark = false

	f := newLabelsFixture(t, config, []string{uri}, &mutableProvider{labels: map[string]float64{"cat": 0.91}})
	current := f.client.CurrentKey()
	require.NotNil(t, current)

	rec, err := f.get(t, uri, map[string]string{"If-Match": clientKeyETag(f, current.Key.ID)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// The exception severity strips labels and the raw response from
	// the error body.
	assert.NotContains(t, body, "labels")
	assert.NotContains(t, body, "response")
	require.Contains(t, body, "response_error")

	var why keys.InvalidKeyError
	require.NoError(t, json.Unmarshal(body["response_error"], &why))
	assert.Equal(t, keys.ExpectedLabelsMismatch, why.Kind)
	assert.Contains(t, why.Message, "dog")
}

func TestLabelsEmitsETagAndLastModified(t *testing.T) {
	const uri = "https://img.example/cat.jpg"
	config := benchmark.DefaultConfig()
	config.Severity = models.SeverityNone
	config.Autobenchmark = false

	f := newLabelsFixture(t, config, []string{uri}, &mutableProvider{labels: map[string]float64{"cat": 0.91}})
	current := f.client.CurrentKey()
	require.NotNil(t, current)

	rec, err := f.get(t, uri, map[string]string{"If-Match": clientKeyETag(f, current.Key.ID)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, clientKeyETag(f, current.Key.ID), rec.Header().Get("ETag"))
	assert.Equal(t, current.Key.CreatedAt.UTC().Format(http.TimeFormat), rec.Header().Get("Last-Modified"))

	var result benchmark.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, map[string]float64{"cat": 0.91}, result.Labels)
}

func TestLabelsRepeatedRequestIsNotModified(t *testing.T) {
	const uri = "https://img.example/cat.jpg"
	config := benchmark.DefaultConfig()
	config.Severity = models.SeverityNone
	config.Autobenchmark = false

	f := newLabelsFixture(t, config, []string{uri}, &mutableProvider{labels: map[string]float64{"cat": 0.91}})
	current := f.client.CurrentKey()
	require.NotNil(t, current)
	headers := map[string]string{"If-Match": clientKeyETag(f, current.Key.ID)}

	rec, err := f.get(t, uri, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, err = f.get(t, uri, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, clientKeyETag(f, current.Key.ID), rec.Header().Get("ETag"))
}

func TestLabelsUnmodifiedSinceSelectsHistoricKey(t *testing.T) {
	const uri = "https://img.example/cat.jpg"
	config := benchmark.DefaultConfig()
	config.Severity = models.SeverityNone
	config.Autobenchmark = false

	provider := &mutableProvider{labels: map[string]float64{"cat": 0.91}}
	f := newLabelsFixture(t, config, []string{uri}, provider)
	first := f.client.CurrentKey()
	require.NotNil(t, first)

	// HTTP-dates carry second precision, so the two keys must land in
	// distinct seconds for the cutoff to separate them.
	time.Sleep(1500 * time.Millisecond)
	provider.setLabels(map[string]float64{"cat": 0.30})
	require.NoError(t, f.client.Benchmark(context.Background()))

	second := f.client.CurrentKey()
	require.NotNil(t, second)
	require.NotEqual(t, first.Key.ID, second.Key.ID)
	assert.True(t, first.Key.Expired)

	cutoff := first.Key.CreatedAt.Truncate(time.Second).Add(time.Second)
	etag := `W/"` + strconv.FormatInt(f.client.ID(), 10) + `"`

	rec, err := f.get(t, uri, map[string]string{
		"If-Match":            etag,
		"If-Unmodified-Since": cutoff.UTC().Format(http.TimeFormat),
	})
	require.NoError(t, err)

	// The cutoff names the first key, which no longer matches the
	// current one.
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, clientKeyETag(f, second.Key.ID), rec.Header().Get("ETag"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "key_error")

	var why keys.InvalidKeyError
	require.NoError(t, json.Unmarshal(body["key_error"], &why))
	assert.Equal(t, keys.ConfidenceDeltaMismatch, why.Kind)

	// A cutoff past the second benchmark selects the current key and
	// labels cleanly.
	rec, err = f.get(t, uri, map[string]string{
		"If-Match":            etag,
		"If-Unmodified-Since": time.Now().UTC().Add(time.Minute).Format(http.TimeFormat),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result benchmark.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, map[string]float64{"cat": 0.30}, result.Labels)
}
