// Package metrics provides Prometheus metrics for warehouse sync runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks completed runs by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of sync runs by status",
		},
		[]string{"status"},
	)

	// RunDuration tracks run duration in seconds
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// StageDuration tracks per-kind stage duration
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of a stage in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"kind"},
	)

	// RecordsTotal tracks per-record outcomes
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "records",
			Name:      "outcomes_total",
			Help:      "Total number of record outcomes by kind and status",
		},
		[]string{"kind", "status"},
	)

	// DeletionsTotal tracks deletion sync results
	DeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "deletion",
			Name:      "rows_total",
			Help:      "Total number of deletion candidates by kind and result",
		},
		[]string{"kind", "result"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"source", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// RateLimitWaitTime tracks time spent waiting on the request throttle
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for rate limits in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"limit_name"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordRun records a finished run
func RecordRun(status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(durationSeconds)
}

func RecordStage(kind string, durationSeconds float64) {
	StageDuration.WithLabelValues(kind).Observe(durationSeconds)
}

func RecordOutcome(kind, status string) {
	RecordsTotal.WithLabelValues(kind, status).Inc()
}

func RecordDeletion(kind, result string, count int) {
	if count <= 0 {
		return
	}
	DeletionsTotal.WithLabelValues(kind, result).Add(float64(count))
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(source, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(source, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

func RecordRateLimitWait(limitName string, seconds float64) {
	RateLimitWaitTime.WithLabelValues(limitName).Observe(seconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
