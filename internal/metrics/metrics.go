package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wayfarer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_plan_generations_total",
			Help: "Total number of model generation calls by outcome.",
		},
		[]string{"action", "outcome"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wayfarer_plan_generation_duration_seconds",
			Help:    "Wall-clock duration of model generation calls.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60},
		},
	)

	PlansSavedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_plans_saved_total",
			Help: "Total number of trip plans committed to storage.",
		},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_rate_limited_total",
			Help: "Total number of requests denied by the per-user limiter.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerationsTotal,
		GenerationDuration,
		PlansSavedTotal,
		RateLimitedTotal,
	)
}
