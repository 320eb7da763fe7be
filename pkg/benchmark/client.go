// Package benchmark implements the benchmarked request client: the
// control loop that mints benchmark keys, validates supplied keys and
// live responses against the current one, and shapes results by the
// configured severity.
package benchmark

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/appctx"
	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/events"
	"github.com/icvsb/icvsb/pkg/keys"
	"github.com/icvsb/icvsb/pkg/logbook"
	"github.com/icvsb/icvsb/pkg/metrics"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/requestclient"
	"github.com/icvsb/icvsb/pkg/tracing"
	"github.com/icvsb/icvsb/pkg/webhooks"
)

// Result is the shaped outcome of one keyed request. Which fields are
// populated depends on the client's severity policy.
type Result struct {
	Labels        map[string]float64    `json:"labels,omitempty"`
	Response      *models.Response      `json:"response,omitempty"`
	KeyError      *keys.InvalidKeyError `json:"key_error,omitempty"`
	ResponseError *keys.InvalidKeyError `json:"response_error,omitempty"`

	// Err reports a store failure; the HTTP layer maps it to 500.
	Err error `json:"-"`
}

// HasError reports whether either validity check failed.
func (r Result) HasError() bool {
	return r.KeyError != nil || r.ResponseError != nil
}

// Client is one benchmarked request client. It owns a current key, a
// fail counter, a per-client logbook and a scheduler goroutine.
type Client struct {
	id        int64
	service   *models.Service
	severity  *models.Severity
	dataset   []string
	config    Config
	requester *requestclient.Client
	loader    *keys.Loader
	keysRepo  *repositories.BenchmarkKeyRepository
	responses *repositories.ResponseRepository
	notifier  *webhooks.Notifier
	emitter   *events.Emitter
	recorder  *logbook.Recorder
	logger    ectologger.Logger
	createdAt time.Time
	scheduler *Scheduler

	// benchMu serializes benchmark runs; mu guards the hot-path state.
	benchMu sync.Mutex
	mu      sync.RWMutex

	current        *keys.Snapshot
	history        []*models.BenchmarkKey
	benchmarking   bool
	failCount      int
	benchmarkCount int
	lastBenchmark  time.Time
}

// Deps carries the collaborators a client is wired with.
type Deps struct {
	Service   *models.Service
	Severity  *models.Severity
	DB        database.DB
	Logger    ectologger.Logger
	Requester *requestclient.Client
	Notifier  *webhooks.Notifier
	Emitter   *events.Emitter
}

// NewClient builds a client. The caller (registry) mints the id.
func NewClient(id int64, dataset []string, config Config, deps Deps) *Client {
	book := logbook.NewBook(logbook.DefaultLimit)
	client := &Client{
		id:        id,
		service:   deps.Service,
		severity:  deps.Severity,
		dataset:   append([]string(nil), dataset...),
		config:    config,
		requester: deps.Requester,
		loader:    keys.NewLoader(deps.DB, deps.Logger),
		keysRepo:  repositories.NewBenchmarkKeyRepository(deps.DB, deps.Logger),
		responses: repositories.NewResponseRepository(deps.DB, deps.Logger),
		notifier:  deps.Notifier,
		emitter:   deps.Emitter,
		recorder:  logbook.NewRecorder(book, deps.Logger, id),
		logger:    deps.Logger,
		createdAt: time.Now().UTC(),
	}
	client.scheduler = NewScheduler(client, config.TriggerOnSchedule, deps.Logger)
	return client
}

func (c *Client) ID() int64                { return c.id }
func (c *Client) Service() *models.Service { return c.service }
func (c *Client) CreatedAt() time.Time     { return c.createdAt }
func (c *Client) Config() Config           { return c.config }
func (c *Client) Dataset() []string        { return append([]string(nil), c.dataset...) }
func (c *Client) Book() *logbook.Book      { return c.recorder.Book() }
func (c *Client) Scheduler() *Scheduler    { return c.scheduler }

// Benchmarking reports whether a benchmark run is in flight.
func (c *Client) Benchmarking() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.benchmarking
}

// CurrentKey returns the current key snapshot, nil before the first
// benchmark completes.
func (c *Client) CurrentKey() *keys.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// KeyHistory returns every key the client has minted, oldest first.
func (c *Client) KeyHistory() []*models.BenchmarkKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*models.BenchmarkKey(nil), c.history...)
}

// KeyAt returns the most recent minted key with CreatedAt <= cutoff,
// or nil.
func (c *Client) KeyAt(cutoff time.Time) *models.BenchmarkKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var selected *models.BenchmarkKey
	for _, key := range c.history {
		if key.CreatedAt.After(cutoff) {
			continue
		}
		if selected == nil || key.CreatedAt.After(selected.CreatedAt) {
			selected = key
		}
	}
	return selected
}

// OwnsKey reports whether the client minted the given key id.
func (c *Client) OwnsKey(keyID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range c.history {
		if key.ID == keyID {
			return true
		}
	}
	return false
}

// Snapshot hydrates a key's batch for validation.
func (c *Client) Snapshot(ctx context.Context, key *models.BenchmarkKey) (*keys.Snapshot, error) {
	return c.loader.Load(ctx, key)
}

func (c *Client) InvalidStateCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failCount
}

func (c *Client) BenchmarkCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.benchmarkCount
}

func (c *Client) LastBenchmarkTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBenchmark
}

// Benchmark mints a new key by fanning out over the dataset. On the
// first run the key becomes current; afterwards it replaces the
// current key only when the two are inequivalent under the current
// key's tolerances. Blocking; runs serialize.
func (c *Client) Benchmark(ctx context.Context) error {
	c.benchMu.Lock()
	defer c.benchMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "BenchmarkedClient.Benchmark")
	defer span.End()
	ctx = appctx.SetClientID(ctx, c.id)

	c.mu.Lock()
	c.benchmarking = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.benchmarking = false
		c.mu.Unlock()
	}()

	start := time.Now()
	c.recorder.Infof("benchmark started over %d dataset uris", len(c.dataset))

	batch, err := c.runFanout(ctx)
	if err != nil {
		metrics.RecordBenchmarkRun(c.service.Name, "error", time.Since(start).Seconds())
		c.recorder.Errorf("benchmark failed: %v", err)
		return err
	}

	key := &models.BenchmarkKey{
		ServiceID:       c.service.ID,
		BatchRequestID:  batch.ID,
		SeverityID:      c.severity.ID,
		DeltaLabels:     c.config.DeltaLabels,
		DeltaConfidence: c.config.DeltaConfidence,
		MaxLabels:       c.config.MaxLabels,
		MinConfidence:   c.config.MinConfidence,
		ExpectedLabels:  database.JSONB[[]string]{Data: c.config.ExpectedLabels},
	}
	if err := c.keysRepo.Create(ctx, key); err != nil {
		metrics.RecordBenchmarkRun(c.service.Name, "error", time.Since(start).Seconds())
		c.recorder.Errorf("benchmark failed: could not persist key: %v", err)
		return err
	}

	minted, err := c.loader.Load(ctx, key)
	if err != nil {
		metrics.RecordBenchmarkRun(c.service.Name, "error", time.Since(start).Seconds())
		c.recorder.Errorf("benchmark failed: could not load minted key %d: %v", key.ID, err)
		return err
	}

	c.emitter.Emit(ctx, events.LifecycleEvent{
		Type:     events.TypeKeyMinted,
		ClientID: c.id,
		Service:  c.service.Name,
		KeyID:    key.ID,
	})

	outcome := c.install(ctx, minted)

	c.mu.Lock()
	c.history = append(c.history, key)
	c.benchmarkCount++
	c.lastBenchmark = time.Now().UTC()
	c.mu.Unlock()

	metrics.RecordBenchmarkRun(c.service.Name, outcome, time.Since(start).Seconds())
	c.recorder.Infof("benchmark completed: key %d (%s) in %s", key.ID, outcome, time.Since(start))

	c.emitter.Emit(ctx, events.LifecycleEvent{
		Type:     events.TypeBenchmarkCompleted,
		ClientID: c.id,
		Service:  c.service.Name,
		KeyID:    key.ID,
		Reason:   outcome,
	})
	c.notifier.Notify(webhooks.KindBenchmarkCompleted, c.config.BenchmarkCallbackURI, map[string]any{
		"client_id": c.id,
		"key_id":    key.ID,
		"outcome":   outcome,
	})

	return nil
}

// runFanout sends the dataset through the provider, in parallel when
// the store allows concurrent writers and serially otherwise.
func (c *Client) runFanout(ctx context.Context) (*models.BatchRequest, error) {
	batch, done, err := c.requester.SendURIsAsync(ctx, c.dataset)
	if err == nil {
		if joinErr := <-done; joinErr != nil {
			return nil, joinErr
		}
		return batch, nil
	}

	var unsupported *requestclient.UnsupportedBackendError
	if !errors.As(err, &unsupported) {
		return nil, err
	}
	return c.requester.SendURIs(ctx, c.dataset)
}

// install decides whether the minted key becomes current. Returns the
// outcome label for logs and metrics.
func (c *Client) install(ctx context.Context, minted *keys.Snapshot) string {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		c.mu.Lock()
		c.current = minted
		c.mu.Unlock()
		return "installed"
	}

	why := current.ValidAgainstKey(minted)
	if why == nil {
		// Equivalent: keep the current key; the minted one stays in
		// storage for history.
		metrics.RecordKeyValidation("valid")
		return "equivalent"
	}

	metrics.RecordKeyValidation(string(why.Kind))
	metrics.KeysExpiredTotal.WithLabelValues(c.service.Name).Inc()
	c.recorder.Warnf("drift detected against key %d: %s", current.Key.ID, why.Error())

	if err := c.keysRepo.Expire(ctx, current.Key.ID); err != nil {
		c.recorder.Errorf("failed to expire key %d: %v", current.Key.ID, err)
	}
	current.Key.Expired = true

	c.emitter.Emit(ctx, events.LifecycleEvent{
		Type:     events.TypeDriftDetected,
		ClientID: c.id,
		Service:  c.service.Name,
		KeyID:    minted.Key.ID,
		Reason:   string(why.Kind),
	})
	c.emitter.Emit(ctx, events.LifecycleEvent{
		Type:     events.TypeKeyExpired,
		ClientID: c.id,
		Service:  c.service.Name,
		KeyID:    current.Key.ID,
		Reason:   string(why.Kind),
	})

	c.mu.Lock()
	c.current = minted
	c.mu.Unlock()
	return "replaced"
}

// SendURIWithKey is the hot path: validate the supplied key against
// the current one, call the provider, validate the response, count
// failures and shape the result by severity.
func (c *Client) SendURIWithKey(ctx context.Context, uri string, supplied *keys.Snapshot) Result {
	ctx, span := tracing.StartSpan(ctx, "BenchmarkedClient.SendURIWithKey")
	defer span.End()
	ctx = appctx.SetClientID(ctx, c.id)

	var result Result

	current := c.CurrentKey()
	if current == nil {
		result.KeyError = &keys.InvalidKeyError{
			Kind:    keys.NoKeyYet,
			Message: "client has not completed its first benchmark",
		}
		metrics.RecordKeyValidation(string(keys.NoKeyYet))
		return c.shape(ctx, uri, result)
	}

	if why := current.ValidAgainstKey(supplied); why != nil {
		metrics.RecordKeyValidation(string(why.Kind))
		result.KeyError = why
		c.countFailure(ctx)
		return c.shape(ctx, uri, result)
	}

	response, err := c.requester.SendURI(ctx, uri, nil)
	if err != nil {
		c.recorder.Errorf("request for %s could not be recorded: %v", uri, err)
		result.Err = err
		return result
	}
	metrics.RecordProviderCall(c.service.Name, response.Success)

	if err := c.responses.SetBenchmarkKey(ctx, response.ID, current.Key.ID); err == nil {
		response.BenchmarkKeyID = &current.Key.ID
	}

	result.Labels = response.Labels()
	result.Response = response

	if why := current.ValidAgainstLabels(response.Labels()); why != nil {
		metrics.RecordKeyValidation(string(why.Kind))
		result.ResponseError = why
		c.countFailure(ctx)
	} else {
		metrics.RecordKeyValidation("valid")
	}

	return c.shape(ctx, uri, result)
}

// countFailure bumps the fail counter and triggers an asynchronous
// re-benchmark once it passes the configured threshold.
func (c *Client) countFailure(ctx context.Context) {
	c.mu.Lock()
	c.failCount++
	trigger := c.config.TriggerOnFailCount > 0 && c.failCount > c.config.TriggerOnFailCount
	if trigger {
		c.failCount = 0
	}
	c.mu.Unlock()

	if !trigger {
		return
	}

	c.recorder.Warnf("failure threshold %d exceeded; re-benchmarking", c.config.TriggerOnFailCount)
	go func() {
		if err := c.Benchmark(context.Background()); err != nil {
			c.recorder.Errorf("failure-triggered benchmark failed: %v", err)
		}
	}()
}

// shape applies the severity policy to a result.
func (c *Client) shape(ctx context.Context, uri string, result Result) Result {
	if !result.HasError() {
		return result
	}

	switch c.severity.Name {
	case models.SeverityException:
		return Result{KeyError: result.KeyError, ResponseError: result.ResponseError}
	case models.SeverityWarning:
		c.notifier.Notify(webhooks.KindWarning, c.config.WarningCallbackURI, map[string]any{
			"client_id": c.id,
			"uri":       uri,
			"result":    result,
		})
		return result
	case models.SeverityInfo:
		if result.KeyError != nil {
			c.recorder.Warnf("key validation failed for %s: %s", uri, result.KeyError.Error())
		}
		if result.ResponseError != nil {
			c.recorder.Warnf("response validation failed for %s: %s", uri, result.ResponseError.Error())
		}
		return result
	default:
		return result
	}
}
