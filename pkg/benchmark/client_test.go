package benchmark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/keys"
	"github.com/icvsb/icvsb/pkg/logbook"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/webhooks"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// testClient builds a client with just enough wiring for the hot path.
// The requester stays nil so any unexpected provider call panics the
// test instead of passing silently.
func testClient(t *testing.T, severity string, config Config) *Client {
	t.Helper()
	logger := testLogger()
	book := logbook.NewBook(logbook.DefaultLimit)
	return &Client{
		id:        1,
		service:   &models.Service{ID: 1, Name: models.ServiceGoogle},
		severity:  &models.Severity{ID: 3, Name: severity},
		config:    config,
		recorder:  logbook.NewRecorder(book, logger, 1),
		logger:    logger,
		createdAt: time.Now().UTC(),
	}
}

func testSnapshot(t *testing.T, key *models.BenchmarkKey, labelsByURI map[string]map[string]float64) *keys.Snapshot {
	t.Helper()
	snap := &keys.Snapshot{
		Key:       key,
		Responses: make(map[string]repositories.BatchResponse, len(labelsByURI)),
	}
	for uri, labels := range labelsByURI {
		body, err := json.Marshal(models.ResponseEnvelope{Labels: labels})
		require.NoError(t, err)
		snap.URIs = append(snap.URIs, uri)
		snap.Responses[uri] = repositories.BatchResponse{
			Response: models.Response{Body: body, Success: true},
			URI:      uri,
		}
	}
	return snap
}

func TestSendURIWithKeyNoKeyYet(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())

	result := client.SendURIWithKey(context.Background(), "https://img.example/u3.jpg", nil)

	require.NotNil(t, result.KeyError)
	assert.Equal(t, keys.NoKeyYet, result.KeyError.Kind)
	assert.Nil(t, result.Labels)
	assert.Nil(t, result.Response)
	// a missing key is not a drift signal
	assert.Equal(t, 0, client.InvalidStateCount())
}

func TestSendURIWithKeyExceptionStripsEverythingButErrors(t *testing.T) {
	client := testClient(t, models.SeverityException, DefaultConfig())

	currentKey := &models.BenchmarkKey{ID: 10, ServiceID: 1, MaxLabels: 10, MinConfidence: 0.5, DeltaLabels: 2, DeltaConfidence: 0.05}
	client.current = testSnapshot(t, currentKey, map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})

	suppliedKey := &models.BenchmarkKey{ID: 11, ServiceID: 1, MaxLabels: 50, MinConfidence: 0.5, DeltaLabels: 2, DeltaConfidence: 0.05}
	supplied := testSnapshot(t, suppliedKey, map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})

	result := client.SendURIWithKey(context.Background(), "https://img.example/u1.jpg", supplied)

	require.NotNil(t, result.KeyError)
	assert.Equal(t, keys.MaxLabelsMismatch, result.KeyError.Kind)
	assert.Nil(t, result.Labels)
	assert.Nil(t, result.Response)
	assert.Equal(t, 1, client.InvalidStateCount())
}

func TestSendURIWithKeyWarningPostsWebhook(t *testing.T) {
	delivered := make(chan []byte, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		delivered <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer callback.Close()

	config := DefaultConfig()
	config.Severity = models.SeverityWarning
	config.WarningCallbackURI = callback.URL

	client := testClient(t, models.SeverityWarning, config)
	client.notifier = webhooks.NewNotifier(httpclient.NewClient(httpclient.DefaultConfig(), testLogger()), testLogger(), time.Second)

	currentKey := &models.BenchmarkKey{ID: 10, ServiceID: 1, MaxLabels: 10, MinConfidence: 0.5, DeltaLabels: 2, DeltaConfidence: 0.05}
	client.current = testSnapshot(t, currentKey, map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})

	suppliedKey := &models.BenchmarkKey{ID: 11, ServiceID: 2}
	supplied := testSnapshot(t, suppliedKey, map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})

	result := client.SendURIWithKey(context.Background(), "https://img.example/u1.jpg", supplied)
	require.NotNil(t, result.KeyError)
	assert.Equal(t, keys.ServiceMismatch, result.KeyError.Kind)

	select {
	case body := <-delivered:
		assert.Contains(t, string(body), "SERVICE_MISMATCH")
	case <-time.After(2 * time.Second):
		t.Fatal("warning webhook was not delivered")
	}
}

func TestCountFailureResetsAtThreshold(t *testing.T) {
	config := DefaultConfig()
	config.TriggerOnFailCount = 2

	client := testClient(t, models.SeverityNone, config)

	// Hold the benchmark mutex so the triggered run blocks instead of
	// touching the nil requester.
	client.benchMu.Lock()

	ctx := context.Background()
	client.countFailure(ctx)
	assert.Equal(t, 1, client.InvalidStateCount())
	client.countFailure(ctx)
	assert.Equal(t, 2, client.InvalidStateCount())

	// third failure passes the threshold: counter resets, re-benchmark fires
	client.countFailure(ctx)
	assert.Equal(t, 0, client.InvalidStateCount())
}

func TestCountFailureDisabledWhenThresholdZero(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		client.countFailure(ctx)
	}
	assert.Equal(t, 5, client.InvalidStateCount())
}

func TestKeyAtSelectsMostRecentBeforeCutoff(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)
	client.history = []*models.BenchmarkKey{
		{ID: 1, CreatedAt: t1},
		{ID: 2, CreatedAt: t2},
		{ID: 3, CreatedAt: t3},
	}

	selected := client.KeyAt(t2)
	require.NotNil(t, selected)
	assert.Equal(t, int64(2), selected.ID)

	selected = client.KeyAt(t3.Add(time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, int64(3), selected.ID)

	assert.Nil(t, client.KeyAt(t1.Add(-time.Hour)))
}

func TestOwnsKey(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())
	client.history = []*models.BenchmarkKey{{ID: 7}}

	assert.True(t, client.OwnsKey(7))
	assert.False(t, client.OwnsKey(8))
}
