package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_webhooks_total",
			Help: "Webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	SignatureChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_signature_checks_total",
			Help: "Webhook signature checks by result",
		},
		[]string{"result"},
	)

	ReplayDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_replay_decisions_total",
			Help: "Replay guard decisions",
		},
		[]string{"decision"},
	)

	PaymentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_payments_applied_total",
			Help: "Terminal payment states committed to orders",
		},
		[]string{"state", "source"},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_gateway_errors_total",
			Help: "Gateway call failures by operation",
		},
		[]string{"operation"},
	)

	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_redirects_total",
			Help: "Buyer redirects by outcome",
		},
		[]string{"outcome"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_rate_limited_total",
			Help: "Requests rejected by the per-client limiter",
		},
		[]string{"route"},
	)

	DependencyStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconciler_dependency_status",
			Help: "Status of dependencies (1=up, 0=down)",
		},
		[]string{"dependency"},
	)
)
