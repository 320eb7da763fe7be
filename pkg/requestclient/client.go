// Package requestclient dispatches label requests through one vendor
// adapter and persists every request and response row. Provider
// failures never propagate; they become success=false rows.
package requestclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/providers"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/tracing"
)

// DefaultConcurrency is the default number of concurrent URI fetches
// in a parallel batch.
const DefaultConcurrency = 8

// UnsupportedBackendError is returned by SendURIsAsync when the store
// cannot take concurrent writers.
type UnsupportedBackendError struct {
	Driver string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("driver %q does not support concurrent writers; use the serial batch path", e.Driver)
}

// Client sends URIs through a single LabelProvider.
type Client struct {
	service       *models.Service
	provider      providers.LabelProvider
	batches       *repositories.BatchRequestRepository
	requests      *repositories.RequestRepository
	responses     *repositories.ResponseRepository
	db            database.DB
	logger        ectologger.Logger
	maxLabels     int
	minConfidence float64
	concurrency   int
}

// Config tunes a request client.
type Config struct {
	MaxLabels     int
	MinConfidence float64
	Concurrency   int
}

func New(
	service *models.Service,
	provider providers.LabelProvider,
	db database.DB,
	logger ectologger.Logger,
	cfg Config,
) *Client {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Client{
		service:       service,
		provider:      provider,
		batches:       repositories.NewBatchRequestRepository(db, logger),
		requests:      repositories.NewRequestRepository(db, logger),
		responses:     repositories.NewResponseRepository(db, logger),
		db:            db,
		logger:        logger,
		maxLabels:     cfg.MaxLabels,
		minConfidence: cfg.MinConfidence,
		concurrency:   concurrency,
	}
}

// Service returns the vendor row the client dispatches to.
func (c *Client) Service() *models.Service {
	return c.service
}

// SendURI fetches one URI and persists the request and response pair.
// The request row is stamped before dispatch and the response row
// after. Provider failures are folded into the stored row; only store
// failures return an error. The pair commits as one transaction: a
// request row without its response must never survive.
func (c *Client) SendURI(ctx context.Context, uri string, batchID *int64) (*models.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestClient.SendURI")
	defer span.End()

	txCtx, tx, err := c.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	// The pre-transaction ctx makes the deferred rollback real; it is
	// a no-op once Commit has run.
	defer tx.Rollback(ctx)

	request := models.Request{
		ServiceID:      c.service.ID,
		BatchRequestID: batchID,
		URI:            uri,
	}
	if err := c.requests.Create(txCtx, &request); err != nil {
		return nil, err
	}

	fetched := c.provider.Fetch(ctx, uri, c.maxLabels, c.minConfidence)

	var envelope models.ResponseEnvelope
	if fetched.Success {
		envelope.Labels = fetched.Labels
		envelope.Raw = fetched.Raw
	} else {
		envelope.ServiceError = fetched.Failure.Error()
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"uri":     uri,
			"service": c.service.Name,
		}).Warnf("provider call failed: %s", fetched.Failure.Error())
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("failed to encode response envelope")
		body = nil
	}

	response := models.Response{
		RequestID: request.ID,
		Body:      body,
		Success:   fetched.Success,
	}
	if err := c.responses.Create(txCtx, &response); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"uri": uri,
		}).Error("failed to commit request and response")
		return nil, err
	}

	return &response, nil
}

// SendURIs runs the serial fan-in: one fresh batch, every URI sent in
// order on the calling goroutine.
func (c *Client) SendURIs(ctx context.Context, uris []string) (*models.BatchRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestClient.SendURIs")
	defer span.End()

	batch, err := c.batches.Create(ctx)
	if err != nil {
		return nil, err
	}

	for _, uri := range uris {
		if _, err := c.SendURI(ctx, uri, &batch.ID); err != nil {
			return nil, err
		}
	}

	return batch, nil
}

// SendURIsAsync runs the parallel fan-out: one worker pool over the
// URIs, one fresh batch. The returned channel closes once every row is
// persisted; it carries the first store error, if any. Single-writer
// stores are rejected with UnsupportedBackendError.
func (c *Client) SendURIsAsync(ctx context.Context, uris []string) (*models.BatchRequest, <-chan error, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestClient.SendURIsAsync")
	defer span.End()

	if !c.db.SupportsConcurrentWriters() {
		return nil, nil, &UnsupportedBackendError{Driver: c.db.DriverName()}
	}

	batch, err := c.batches.Create(ctx)
	if err != nil {
		return nil, nil, err
	}

	concurrency := c.concurrency
	if concurrency > len(uris) {
		concurrency = len(uris)
	}

	uriChan := make(chan string, len(uris))
	errChan := make(chan error, len(uris))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for uri := range uriChan {
				if _, err := c.SendURI(ctx, uri, &batch.ID); err != nil {
					errChan <- err
				}
			}
		}()
	}

	for _, uri := range uris {
		uriChan <- uri
	}
	close(uriChan)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		wg.Wait()
		close(errChan)
		for err := range errChan {
			if err != nil {
				done <- err
				return
			}
		}
	}()

	return batch, done, nil
}
