package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remind_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remind_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remind_suggestions_total",
			Help: "Total number of metered AI suggestion requests by outcome.",
		},
		[]string{"status"},
	)

	SchedulerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remind_scheduler_ticks_total",
			Help: "Total number of completed scheduler ticks.",
		},
	)

	SchedulerTicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remind_scheduler_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running.",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remind_notifications_total",
			Help: "Total number of notification dispatch attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)

	LicensesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remind_licenses_issued_total",
			Help: "License tokens minted via payment webhooks, by plan tier.",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SuggestionsTotal,
		SchedulerTicksTotal,
		SchedulerTicksSkipped,
		NotificationsTotal,
		LicensesIssuedTotal,
	)
}
