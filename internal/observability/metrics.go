// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModerationActions counts hide operations by target kind and outcome.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Total number of moderation hide operations by target and outcome",
	}, []string{"target", "outcome"})

	// ProvisioningOutcomes counts account provisioning calls by mode and outcome.
	ProvisioningOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudysky_provisioning_total",
		Help: "Total number of account provisioning calls by mode and outcome",
	}, []string{"mode", "outcome"})

	// SchemaInitializations counts schema self-heal attempts triggered at runtime.
	SchemaInitializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudysky_schema_initializations_total",
		Help: "Total number of runtime schema initializations by result",
	}, []string{"result"})

	// FeedAssemblyLatency records how long feed projections take to build.
	FeedAssemblyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudysky_feed_assembly_seconds",
		Help:    "Feed assembly latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"projection"})

	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudysky_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackFeed returns a function that records feed assembly latency when called.
func TrackFeed(projection string) func() {
	start := time.Now()
	return func() {
		FeedAssemblyLatency.WithLabelValues(projection).Observe(time.Since(start).Seconds())
	}
}
