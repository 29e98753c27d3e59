// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package metrics holds the Prometheus collectors for the dashboard core.
// Every collector is registered with the default registry through promauto
// and scraped from /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Key-value store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_cache_hits_total",
			Help: "Cache reads served, by tier (memory, persistent)",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouvidoria_cache_misses_total",
			Help: "Cache reads that found no live entry",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouvidoria_cache_invalidations_total",
			Help: "Keys forced stale by invalidate",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ouvidoria_cache_entries",
			Help: "Entries currently held in memory, live or stale",
		},
	)

	// Persistent mirror
	MirrorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_mirror_writes_total",
			Help: "Persistent mirror writes by outcome (ok, retried, dropped, error)",
		},
		[]string{"outcome"},
	)

	MirrorEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_mirror_evictions_total",
			Help: "Persistent records removed by reason (expired, corrupt, legacy)",
		},
		[]string{"reason"},
	)

	MirrorSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ouvidoria_mirror_sweep_duration_seconds",
			Help:    "Duration of persistent mirror sweeps",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	StorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ouvidoria_storage_bytes",
			Help: "Bytes accounted against the persistent storage quota",
		},
	)

	// Event bus
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_events_emitted_total",
			Help: "Events emitted on the bus by topic",
		},
		[]string{"topic"},
	)

	ListenerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_listener_failures_total",
			Help: "Listener errors and recovered panics by topic",
		},
		[]string{"topic", "kind"},
	)

	// Filters
	FilterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_filter_mutations_total",
			Help: "Global filter engine mutations by result",
		},
		[]string{"result"},
	)

	ActiveFilters = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ouvidoria_active_filters",
			Help: "Active filters by engine (global, crossfilter)",
		},
		[]string{"engine"},
	)

	CrossfilterNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouvidoria_crossfilter_notifications_total",
			Help: "Debounced crossfilter listener notifications",
		},
	)

	// Loader
	LoaderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_loader_requests_total",
			Help: "Upstream fetches by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	LoaderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ouvidoria_loader_duration_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	LoaderInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ouvidoria_loader_in_flight",
			Help: "Upstream fetches currently holding a concurrency slot",
		},
	)

	LoaderQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ouvidoria_loader_queued",
			Help: "Upstream fetches waiting for a concurrency slot",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ouvidoria_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouvidoria_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ouvidoria_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ouvidoria_websocket_connections",
			Help: "Connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouvidoria_websocket_messages_sent_total",
			Help: "Messages queued to WebSocket clients",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLoaderRequest records an upstream fetch. status is the HTTP status
// code, or 0 when the request never produced a response.
func RecordLoaderRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	LoaderRequests.WithLabelValues(endpoint, label).Inc()
	LoaderDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
