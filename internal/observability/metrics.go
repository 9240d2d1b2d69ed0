// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charityfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "charityfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementEvents counts likes, unlikes, comments and shares.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charityfeed_engagement_events_total",
		Help: "Engagement actions applied to posts",
	}, []string{"action"})

	// MediaUploads counts object store uploads by bucket and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charityfeed_media_uploads_total",
		Help: "Media uploads by bucket and result",
	}, []string{"bucket", "result"})

	// MediaUploadBytes records the size of stored media objects.
	MediaUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "charityfeed_media_upload_bytes",
		Help:    "Size of stored media objects in bytes",
		Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
	})

	// CounterDriftCorrections counts posts whose denormalized counters were repaired.
	CounterDriftCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charityfeed_counter_drift_corrections_total",
		Help: "Posts whose denormalized counters were recomputed from rows",
	})

	// WebSocketConnectionsTotal is the gauge of live feed websocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "charityfeed_websocket_connections_total",
		Help: "Total number of active feed WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charityfeed_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
