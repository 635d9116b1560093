// Package metrics holds the Prometheus collectors for the reward engine.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "echo_rewards"

var (
	// Registry holds the application-specific collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	rewardGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "grants_total",
			Help:      "Reward transactions appended, by transaction type.",
		},
		[]string{"type"},
	)

	rewardCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "credits_total",
			Help:      "Credits granted, by transaction type.",
		},
		[]string{"type"},
	)

	rewardSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "skips_total",
			Help:      "Seasonal rule evaluations that granted nothing, by reason.",
		},
		[]string{"reason"},
	)

	rewardFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "failures_total",
			Help:      "Reward bookkeeping failures swallowed after retry, by stage.",
		},
		[]string{"stage"},
	)

	duplicateKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "duplicate_keys_total",
			Help:      "Appends rejected by the idempotency key.",
		},
	)

	balanceRepairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance_repairs_total",
			Help:      "Denormalized balances repaired from the ledger.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		rewardGrants,
		rewardCredits,
		rewardSkips,
		rewardFailures,
		duplicateKeys,
		balanceRepairs,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records per-route request counts and latency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordGrant counts one appended reward row.
func RecordGrant(txType string, amount int64) {
	rewardGrants.WithLabelValues(txType).Inc()
	rewardCredits.WithLabelValues(txType).Add(float64(amount))
}

// RecordSkip counts a seasonal rule that granted nothing.
func RecordSkip(reason string) {
	rewardSkips.WithLabelValues(reason).Inc()
}

// RecordFailure counts a swallowed reward failure.
func RecordFailure(stage string) {
	rewardFailures.WithLabelValues(stage).Inc()
}

func RecordDuplicateKey() {
	duplicateKeys.Inc()
}

func RecordBalanceRepair() {
	balanceRepairs.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
