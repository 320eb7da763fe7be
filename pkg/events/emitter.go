// Package events publishes benchmark lifecycle events to Kafka so
// downstream consumers can react to drift without polling the API.
// The emitter is optional; a nil *Emitter is safe to call.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/icvsb/icvsb/pkg/metrics"
	"github.com/icvsb/icvsb/pkg/tracing"
)

const (
	TypeKeyMinted          = "key.minted"
	TypeKeyExpired         = "key.expired"
	TypeBenchmarkCompleted = "benchmark.completed"
	TypeDriftDetected      = "drift.detected"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers: brokerList,
		Topic:   topic,
	}
}

// LifecycleEvent is one benchmark lifecycle message.
type LifecycleEvent struct {
	Type      string    `json:"type"`
	ClientID  int64     `json:"client_id"`
	Service   string    `json:"service"`
	KeyID     int64     `json:"key_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// Emitter publishes lifecycle events.
type Emitter struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// NewEmitter creates a new Kafka emitter
func NewEmitter(cfg Config, logger ectologger.Logger) *Emitter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		AllowAutoTopicCreation: true,
	}

	return &Emitter{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the emitter
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.writer.Close()
}

// Emit publishes one lifecycle event. Failures are logged, never
// returned to the benchmark path.
func (e *Emitter) Emit(ctx context.Context, evt LifecycleEvent) {
	if e == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "Events.Emit")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", e.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", evt.Type),
		attribute.Int64("client_id", evt.ClientID),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)
	evt.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal event")
		e.logger.WithContext(ctx).WithError(err).Error("failed to marshal lifecycle event")
		return
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "service", Value: []byte(evt.Service)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(fmt.Sprintf("%d", evt.ClientID)),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish event")
		metrics.RecordKafkaPublish(e.topic, "failure")
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish lifecycle event to Kafka topic %s", e.topic)
		return
	}

	span.SetStatus(codes.Ok, "event published")
	metrics.RecordKafkaPublish(e.topic, "success")
	e.logger.WithContext(ctx).Debugf("Published lifecycle event: type=%s client=%d key=%d",
		evt.Type, evt.ClientID, evt.KeyID)
}
