// Package metrics declares the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote pipeline metrics
var (
	// VotesTotal tracks vote submissions by choice and outcome
	// (accepted, rate_limited, already_voted, invalid_choice, error).
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Vote submissions by choice and outcome",
		},
		[]string{"choice", "outcome"},
	)

	// TallyCacheHits tracks tally reads served from the staleness-bounded cache
	TallyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_cache_hits_total",
			Help: "Tally reads served from the in-process cache",
		},
	)

	// StoreFallbackWrites tracks writes that degraded to the in-memory fallback
	StoreFallbackWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_fallback_writes_total",
			Help: "Writes degraded to the in-memory fallback store by operation",
		},
		[]string{"operation"},
	)

	// AuditWriteFailures tracks best-effort audit sink failures
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Vote audit records that could not be persisted",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Database metrics
var (
	// DBQueryDuration tracks query latency by statement kind
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks failed queries by statement kind
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// Display fan-out metrics
var (
	// DisplayClients tracks currently connected TV display clients
	DisplayClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "display_clients_connected",
			Help: "Currently connected display WebSocket clients",
		},
	)

	// DisplaySlowClientsEvicted tracks slow display clients dropped because their buffer filled
	DisplaySlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "display_slow_clients_evicted_total",
			Help: "Display clients evicted due to a full send buffer",
		},
	)

	// DisplayPingFailures tracks keepalive pings that could not be written
	DisplayPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "display_ping_failures_total",
			Help: "Keepalive pings that failed to send, disconnecting the client",
		},
	)

	// DisplayEventsPublished tracks events fanned out to displays by event name
	DisplayEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "display_events_published_total",
			Help: "Events fanned out to displays by event name",
		},
		[]string{"event"},
	)

	// DisplayConnectionsRejected tracks connections rejected by the limiter
	DisplayConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "display_connections_rejected_total",
			Help: "Display connections rejected by the connection limiter, by reason",
		},
		[]string{"reason"},
	)

	// PubSubMessagesReceived tracks messages relayed from Redis Pub/Sub
	PubSubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_messages_received_total",
			Help: "Messages received from Redis Pub/Sub by channel",
		},
		[]string{"channel"},
	)
)
