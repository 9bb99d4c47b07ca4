package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesLogged counts persisted log entries by source module and severity.
	EntriesLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_entries_logged_total",
			Help: "Total number of audit log entries written",
		},
		[]string{"module", "severity"},
	)

	// EntriesExported counts exported log entries by file format.
	EntriesExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_entries_exported_total",
			Help: "Total number of audit log entries exported",
		},
		[]string{"format"},
	)

	// EntriesPurged counts entries removed by retention cleanup.
	EntriesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trail_entries_purged_total",
			Help: "Total number of audit log entries deleted by retention cleanup",
		},
	)

	// PermissionChecks counts permission evaluations and their outcome (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trail_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
