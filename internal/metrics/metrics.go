package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service-wide Prometheus collectors. Registered on the default registry and
// served from the /metrics endpoint.
var (
	ReadingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_readings_ingested_total",
		Help: "Hourly consumption readings accepted by the ingestion pipeline.",
	}, []string{"site", "sector"})

	ReadingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_reading_conflicts_total",
		Help: "Duplicate (site, sector, hour) readings resolved latest-wins.",
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_anomalies_detected_total",
		Help: "Anomaly events emitted by the scorer.",
	}, []string{"severity", "type"})

	RollupRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "energy_rollup_refresh_seconds",
		Help:    "Wall time of scheduled rollup refresh runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	RollupRefreshTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_rollup_refresh_timeouts_total",
		Help: "Refresh runs aborted for exceeding their time budget.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_notifications_sent_total",
		Help: "Anomaly notifications handed to delivery providers.",
	}, []string{"provider", "outcome"})

	QueryCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_query_cache_total",
		Help: "Query service cache lookups by outcome.",
	}, []string{"query", "outcome"})
)
