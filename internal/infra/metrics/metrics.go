// Package metrics provides Prometheus metrics for the bounty board:
// counters and gauges for lifecycle transitions, escrow, wallets, API and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// BoardsInitialized tracks boards created.
var BoardsInitialized = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "boards_initialized_total",
	Help:      "Total bounty boards initialized.",
})

// TaskTransitions tracks committed status transitions by target status.
var TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "task_transitions_total",
	Help:      "Total committed task status transitions.",
}, []string{"status"})

// TasksByStatus tracks stored tasks per status, refreshed by the health loop.
var TasksByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "bounty",
	Name:      "tasks",
	Help:      "Stored tasks by current status.",
}, []string{"status"})

// HandlerErrors tracks handler failures by operation and error kind.
var HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "handler_errors_total",
	Help:      "Total failed lifecycle operations.",
}, []string{"op", "kind"})

// HandlerLatency tracks lifecycle handler duration in seconds.
var HandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "bounty",
	Name:      "handler_latency_seconds",
	Help:      "Lifecycle handler duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
}, []string{"op"})

// ─── Funds ──────────────────────────────────────────────────────────────────

// EscrowedTotal tracks funds moved into task escrow.
var EscrowedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "escrowed_amount_total",
	Help:      "Total bounty amount locked into escrow.",
})

// DisbursedTotal tracks escrow released, by outcome (payout or refund).
var DisbursedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "disbursed_amount_total",
	Help:      "Total escrow released by outcome.",
}, []string{"outcome"})

// Deposits tracks faucet deposits.
var Deposits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "deposits_amount_total",
	Help:      "Total amount minted by the faucet.",
})

// ─── API ────────────────────────────────────────────────────────────────────

// APIRequests tracks HTTP requests by route pattern and status code.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "api_requests_total",
	Help:      "Total HTTP API requests.",
}, []string{"route", "code"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "bounty",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventRetries tracks lifecycle events requeued after a failed publish.
var EventRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "event_retries_total",
	Help:      "Total event publishes scheduled for retry.",
})

// EventsDropped tracks events abandoned after exhausting their retries.
var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bounty",
	Name:      "events_dropped_total",
	Help:      "Total events dropped after MaxRetries failed publishes.",
})
