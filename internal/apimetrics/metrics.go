package apimetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutSessionsTotal counts session-create requests by mode, pack
	// logic and outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masterclass",
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "Checkout session creation attempts by mode, pack logic and outcome.",
	}, []string{"mode", "pack_logic", "outcome"})

	// ReconcileRequestsTotal counts post-payment requests by route and HTTP status.
	ReconcileRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masterclass",
		Subsystem: "checkout",
		Name:      "reconcile_requests_total",
		Help:      "Post-payment reconcile requests by route and HTTP status.",
	}, []string{"route", "status"})

	// CRMTagResults counts CRM tag applications (applied/failed).
	CRMTagResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masterclass",
		Subsystem: "checkout",
		Name:      "crm_tag_results_total",
		Help:      "CRM tag application results.",
	}, []string{"result"})

	// RequestDuration tracks handler latency per route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "masterclass",
		Subsystem: "checkout",
		Name:      "request_duration_seconds",
		Help:      "Handler duration in seconds per route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
