package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OptimizationResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_optimization_results_total",
		Help: "Per-product optimization outcomes",
	}, []string{"status"})

	OptimizationRunLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_optimization_run_seconds",
		Help:    "Latency of one user's optimization run",
		Buckets: prometheus.DefBuckets,
	})

	OptimizationLeaseContended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_optimization_lease_contended_total",
		Help: "Optimization runs skipped because another run held the user lease",
	})

	PlatformPushLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_price_push_seconds",
		Help:    "Latency of price pushes to storefront platforms",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	PlatformPushFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_price_push_failed_total",
		Help: "Failed price pushes to storefront platforms",
	}, []string{"platform"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook events by source and result",
	}, []string{"source", "result"})

	HistoryPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_history_purged_total",
		Help: "Pricing history rows removed by retention",
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Outbound emails by template and result",
	}, []string{"template", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
