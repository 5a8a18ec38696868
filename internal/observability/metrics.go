package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surf_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	FunnelTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surf_funnel_transitions_total",
			Help: "Funnel state transitions by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surf_cart_mutations_total",
			Help: "Cart store mutations by operation",
		},
		[]string{"op"},
	)

	CheckoutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surf_checkout_attempts_total",
			Help: "Checkout finalizations by result",
		},
		[]string{"result"},
	)

	PaymentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surf_payment_duration_seconds",
			Help:    "Duration of external payment charges",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surf_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "surf_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "surf_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
