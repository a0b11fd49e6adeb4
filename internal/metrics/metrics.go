package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tramita_dispatch_total",
			Help: "Total number of dispatch attempts",
		},
		[]string{"mode", "status"},
	)

	DispatchFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tramita_dispatch_fanout",
			Help:    "Number of message records created per dispatch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tramita_dispatch_duration_seconds",
			Help:    "Duration of dispatch transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Unread counter cache metrics
	UnreadCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tramita_unread_cache_hits_total",
			Help: "Total number of unread counter cache hits",
		},
	)

	UnreadCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tramita_unread_cache_misses_total",
			Help: "Total number of unread counter cache misses",
		},
	)

	// Archive metrics
	MessagesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tramita_messages_archived_total",
			Help: "Total number of messages moved to the archive",
		},
	)
)
