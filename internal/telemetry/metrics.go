package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote fetch metrics
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriplan_fetch_attempts_total",
			Help: "Attempts against candidate bases by outcome",
		},
		[]string{"outcome"},
	)

	FetchAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutriplan_fetch_attempt_duration_seconds",
			Help:    "Duration of a single base attempt",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"outcome"},
	)

	FetchExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nutriplan_fetch_exhausted_total",
			Help: "Requests for which every candidate base failed",
		},
	)

	// Plan metrics
	PlansGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriplan_plans_generated_total",
			Help: "Generated plans by food suggestion source",
		},
		[]string{"source"},
	)

	PlanPurges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriplan_plan_purges_total",
			Help: "Plan collection purges by reason",
		},
		[]string{"reason"},
	)

	EnrichmentFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriplan_enrichment_fallbacks_total",
			Help: "Operations served locally because the remote service failed",
		},
		[]string{"operation"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriplan_api_requests_total",
			Help: "HTTP requests by route and status class",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(FetchAttemptDuration)
	prometheus.MustRegister(FetchExhausted)
	prometheus.MustRegister(PlansGenerated)
	prometheus.MustRegister(PlanPurges)
	prometheus.MustRegister(EnrichmentFallbacks)
	prometheus.MustRegister(APIRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram observation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
