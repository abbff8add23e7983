// Package metrics provides Prometheus instrumentation for the amp daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "amp"

// Object/relationship store metrics.
var (
	ObjectsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "objects_total",
		Help:      "Total number of objects in the store, by type",
	}, []string{"type"})

	RelationshipsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relationships_total",
		Help:      "Total number of relationships in the store, by type",
	}, []string{"type"})

	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of object/relationship store operations",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	StoreOperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_operation_errors_total",
		Help:      "Total number of object/relationship store operation errors",
	}, []string{"operation", "kind"})
)

// Indexing pipeline metrics (C11).
var (
	IndexFilesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_files_discovered_total",
		Help:      "Total number of files discovered during indexing walks",
	})

	IndexFilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_files_processed_total",
		Help:      "Total number of files processed during indexing, by outcome",
	}, []string{"outcome"})

	IndexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_duration_seconds",
		Help:      "Duration of a full directory index run",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	IndexWorkerActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_worker_active",
		Help:      "Number of indexing worker permits currently held",
	})
)

// Hybrid retrieval metrics (C7).
var (
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Duration of hybrid query execution",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"subquery"})

	QuerySubqueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_subquery_errors_total",
		Help:      "Total number of hybrid sub-query failures treated as empty results",
	}, []string{"subquery"})
)

// Graph traversal metrics (C6).
var (
	TraversalHops = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "traversal_hops",
		Help:      "Number of hops performed by a graph traversal call",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	}, []string{"algorithm"})
)

// Embedding provider metrics (C3).
var (
	EmbeddingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_requests_total",
		Help:      "Total number of embedding provider requests",
	}, []string{"provider", "outcome"})

	EmbeddingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "embedding_duration_seconds",
		Help:      "Duration of embedding provider requests",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"provider"})
)

// Episodic cache metrics (C10).
var (
	CacheItemsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_items_written_total",
		Help:      "Total number of cache item write outcomes",
	}, []string{"outcome"})

	CacheGCReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_gc_reclaimed_total",
		Help:      "Total number of cache items/frames reclaimed by gc()",
	})
)

// Event bus metrics.
var (
	EventBusDroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_bus_dropped_events_total",
		Help:      "Total number of events dropped due to subscriber backpressure",
	}, []string{"event_type"})
)

// Daemon metrics.
var (
	ComponentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_status",
		Help:      "Health status of daemon components (1=healthy, 0=unhealthy)",
	}, []string{"component"})
)

// HTTP API metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP API requests",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route", "method", "status"})
)
