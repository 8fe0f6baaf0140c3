// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the quote service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. It also
// satisfies quotesync.Observer so synchronizers can report into it.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Quote metrics
	Mutations     *prometheus.CounterVec
	PersistErrors *prometheus.CounterVec
	Suppressed    prometheus.Counter
	Refreshes     *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_mutations_total",
				Help:      "Quote mutations applied, by operation",
			},
			[]string{"op"},
		),
		PersistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_persist_failures_total",
				Help:      "Quote writes the persisted store rejected",
			},
			[]string{"op"},
		),
		Suppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_notifications_suppressed_total",
				Help:      "Self-originated change notifications ignored",
			},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_refreshes_total",
				Help:      "Reads of the persisted store, by trigger",
			},
			[]string{"source"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_submissions_total",
				Help:      "Quote request submissions, by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.PersistErrors,
		c.Suppressed,
		c.Refreshes,
		c.Submissions,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// TrackDocuments exposes fn as the open documents gauge.
func (c *Collector) TrackDocuments(namespace string, fn func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_open",
			Help:      "Visitor tabs currently held open",
		},
		func() float64 { return float64(fn()) },
	))
}

func (c *Collector) MutationApplied(op string) { c.Mutations.WithLabelValues(op).Inc() }
func (c *Collector) PersistFailed(op string) { c.PersistErrors.WithLabelValues(op).Inc() }
func (c *Collector) NotificationSuppressed() { c.Suppressed.Inc() }
func (c *Collector) Refreshed(source string) { c.Refreshes.WithLabelValues(source).Inc() }
func (c *Collector) SubmissionHandled(ok bool) { c.Submissions.WithLabelValues(outcome(ok)).Inc() }

func outcome(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
