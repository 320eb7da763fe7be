package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icvsb/icvsb/pkg/events"
)

func TestParseConfig(t *testing.T) {
	cfg := events.ParseConfig("broker-1:9092, broker-2:9092", "icvsb-events")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Brokers)
	assert.Equal(t, "icvsb-events", cfg.Topic)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *events.Emitter

	// a disabled emitter must be a no-op, not a panic
	emitter.Emit(context.Background(), events.LifecycleEvent{Type: events.TypeKeyMinted})
	assert.NoError(t, emitter.Close())
}
