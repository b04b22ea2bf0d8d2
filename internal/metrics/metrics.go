// Package metrics provides Prometheus instrumentation for cartsync.
//
// Cart persistence, checkout and the admin HTTP API record into DefaultRegistry,
// which is exposed on GET /metrics by internal/server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cartsync"

var (
	// PersistOps counts backend loads and saves by outcome.
	PersistOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "operations_total",
			Help:      "Cart backend operations by backend, operation and result.",
		},
		[]string{"backend", "op", "result"}, // op: load|save, result: ok|not_found|error|skipped
	)

	FlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "flush_duration_seconds",
		Help:      "Time spent writing a debounced cart flush to local backends.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .5, 1},
	})

	StaleSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "stale_snapshots_total",
		Help:      "Remote snapshots dropped because their subscription was already disposed.",
	})

	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "active_subscriptions",
		Help:      "Open real-time cart subscriptions.",
	})

	// Checkouts counts PlaceOrder outcomes.
	Checkouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by payment method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	CheckoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "PlaceOrder latency by payment method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	LedgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Order ledger operations by driver, operation and result.",
		},
		[]string{"driver", "op", "result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of admin API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		PersistOps,
		FlushDuration,
		StaleSnapshots,
		ActiveSubscriptions,
		Checkouts,
		CheckoutDuration,
		LedgerOps,
		RequestDuration,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCheckout records one PlaceOrder call:
//
//	defer metrics.ObserveCheckout("gateway", &outcome, time.Now())
func ObserveCheckout(method string, outcome *string, start time.Time) {
	Checkouts.WithLabelValues(method, *outcome).Inc()
	CheckoutDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware records request durations. pattern resolves the route template
// so ids do not explode label cardinality.
func Middleware(pattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)
			RequestDuration.WithLabelValues(r.Method, pattern(r), strconv.Itoa(rr.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes DefaultRegistry in the Prometheus text and OpenMetrics formats.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return h.ServeHTTP
}
