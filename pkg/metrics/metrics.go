// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for the credential
// store: unlock outcomes, reset and migration counters, corruption events,
// cache occupancy and HTTP request metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all credstore metrics
	Namespace = "credstore"

	// Label names
	LabelStatus     = "status"
	LabelOperation  = "operation"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Unlock outcome values
	UnlockSuccess       = "success"
	UnlockWrongPassword = "wrong_password"
	UnlockUninitialized = "uninitialized"
	UnlockError         = "error"

	// Operation names
	OpUnlock         = "unlock"
	OpPasswordChange = "password_change"
	OpReset          = "reset"
	OpStateQuery     = "state_query"
	OpMigration      = "migration"
)

var (
	// UnlockAttemptsTotal counts unlock attempts by outcome.
	UnlockAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unlock_attempts_total",
			Help:      "Total number of unlock attempts by outcome",
		},
		[]string{LabelStatus},
	)

	// OperationsTotal counts lifecycle operations by type and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of credential store operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks lifecycle operation latency. Buckets cover
	// KDF-dominated operations up to multi-second derives.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of credential store operations in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation},
	)

	// CorruptionEventsTotal counts blobs rejected for incomplete or
	// inconsistent wrap metadata or failed authentication outside unlock.
	CorruptionEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "corruption_events_total",
			Help:      "Total number of corrupted key blobs encountered",
		},
	)

	// CachedUsers tracks how many users currently hold at least one cached
	// master key.
	CachedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cached_users",
			Help:      "Number of users with at least one memory-resident master key",
		},
	)

	// LegacyMigrationsTotal counts v0 master keys migrated into the key
	// database.
	LegacyMigrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "legacy_migrations_total",
			Help:      "Total number of legacy master keys migrated",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// ActiveConnections tracks in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC
	// stop-the-world pauses. Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordUnlockAttempt records one unlock attempt with its outcome.
// Use the Unlock* constants for outcome.
func RecordUnlockAttempt(outcome string) {
	if !enabled.Load() {
		return
	}
	UnlockAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordOperation records a lifecycle operation with its duration and
// status. Use the Op* constants for operation.
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCorruption records a corrupted blob encounter.
func RecordCorruption() {
	if !enabled.Load() {
		return
	}
	CorruptionEventsTotal.Inc()
}

// RecordLegacyMigration records a successful v0 master key migration.
func RecordLegacyMigration() {
	if !enabled.Load() {
		return
	}
	LegacyMigrationsTotal.Inc()
}

// SetCachedUsers sets the cached-users gauge.
func SetCachedUsers(count int) {
	if !enabled.Load() {
		return
	}
	CachedUsers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// IncrementActiveConnections increments the in-flight request gauge.
func IncrementActiveConnections() {
	if !enabled.Load() {
		return
	}
	ActiveConnections.Inc()
}

// DecrementActiveConnections decrements the in-flight request gauge.
func DecrementActiveConnections() {
	if !enabled.Load() {
		return
	}
	ActiveConnections.Dec()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
