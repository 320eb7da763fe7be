// Package metrics provides Prometheus metrics for the ICVSB service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BenchmarkRunsTotal tracks benchmark runs by service and outcome
	BenchmarkRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "benchmark",
			Name:      "runs_total",
			Help:      "Total number of benchmark runs by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	// BenchmarkRunDuration tracks benchmark run duration in seconds
	BenchmarkRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "icvsb",
			Subsystem: "benchmark",
			Name:      "run_duration_seconds",
			Help:      "Duration of benchmark runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)

	// KeysExpiredTotal tracks keys expired after a drift detection
	KeysExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "benchmark",
			Name:      "keys_expired_total",
			Help:      "Total number of benchmark keys expired",
		},
		[]string{"service"},
	)

	// ProviderCallsTotal tracks provider calls by service and status
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of label provider calls",
		},
		[]string{"service", "status"},
	)

	// KeyValidationsTotal tracks validity checks by outcome kind
	KeyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "keys",
			Name:      "validations_total",
			Help:      "Total number of key validity checks by outcome",
		},
		[]string{"outcome"},
	)

	// SchedulerTicksTotal tracks per-client cron ticks
	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduled re-benchmark ticks",
		},
	)

	// WebhooksSentTotal tracks webhook posts by kind and status
	WebhooksSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "webhooks",
			Name:      "sent_total",
			Help:      "Total number of webhook notifications sent",
		},
		[]string{"kind", "status"},
	)

	// KafkaMessagesPublished tracks lifecycle events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// LabelsCacheHits tracks conditional request cache outcomes
	LabelsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icvsb",
			Subsystem: "labels",
			Name:      "cache_total",
			Help:      "Conditional labels cache hits and misses",
		},
		[]string{"outcome"},
	)
)

// RecordBenchmarkRun records one benchmark run
func RecordBenchmarkRun(service, outcome string, durationSeconds float64) {
	BenchmarkRunsTotal.WithLabelValues(service, outcome).Inc()
	BenchmarkRunDuration.WithLabelValues(service).Observe(durationSeconds)
}

// RecordProviderCall records one provider call
func RecordProviderCall(service string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ProviderCallsTotal.WithLabelValues(service, status).Inc()
}

// RecordKeyValidation records one validity check outcome
func RecordKeyValidation(outcome string) {
	KeyValidationsTotal.WithLabelValues(outcome).Inc()
}

// RecordWebhook records one webhook delivery attempt
func RecordWebhook(kind string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	WebhooksSentTotal.WithLabelValues(kind, status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
