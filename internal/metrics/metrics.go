// Package metrics defines and registers all custom Prometheus metrics for
// the trading gateway. It is the single source of truth for metric names,
// labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradegate"

// RequestsTotal counts gateway HTTP requests by route, method, and status.
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled by the gateway.",
	},
	[]string{"route", "method", "status"},
)

// RequestDuration observes per-route request latency in seconds.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route"},
)

// UpstreamRequestsTotal counts forwarded upstream calls.
// Labels:
//   - path: the upstream path forwarded to (e.g. "/auth/send-otp")
//   - outcome: "relayed", "rejected", or "unreachable"
var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of requests forwarded to the upstream backend.",
	},
	[]string{"path", "outcome"},
)

// AuthOperationsTotal counts auth façade operations by result.
// Labels:
//   - operation: "send_otp", "resend_otp", "verify_otp", "refresh", "logout"
//   - result: "success" or "failure"
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of authentication operations by result.",
	},
	[]string{"operation", "result"},
)

// GateDecisionsTotal counts protected-route gate verdicts.
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of session gate decisions (allow/pending/redirect).",
	},
	[]string{"decision"},
)

// ActiveChallenges tracks the number of in-flight OTP challenges.
var ActiveChallenges = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_otp_challenges",
		Help:      "Number of OTP challenges currently tracked by the flow registry.",
	},
)
