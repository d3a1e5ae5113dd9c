// Package metrics exposes the Prometheus collectors for betting sessions,
// rate lookups, submissions and the HTTP API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate lookup outcomes.
const (
	LookupOK       = "ok"
	LookupCached   = "cached"
	LookupFallback = "fallback"
)

// Submission outcomes.
const (
	SubmitSuccess  = "success"
	SubmitFailed   = "failed"
	SubmitRejected = "rejected" // local validation, no network call
	SubmitIgnored  = "ignored"  // another submission was in flight
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	rateLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottobet",
			Subsystem: "rates",
			Name:      "lookups_total",
			Help:      "Per-number rate lookups by outcome.",
		},
		[]string{"outcome"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottobet",
			Subsystem: "submit",
			Name:      "submissions_total",
			Help:      "Bulk submissions by outcome.",
		},
		[]string{"outcome"},
	)

	submitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lottobet",
			Subsystem: "submit",
			Name:      "duration_seconds",
			Help:      "Round-trip time of bulk bet placement.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	cartLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottobet",
			Subsystem: "cart",
			Name:      "candidates_total",
			Help:      "Candidate numbers by result (added or skipped as duplicate).",
		},
		[]string{"result"},
	)

	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lottobet",
			Subsystem: "sessions",
			Name:      "open",
			Help:      "Betting sessions currently open.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottobet",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		rateLookups,
		submissions,
		submitDuration,
		cartLines,
		openSessions,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRateLookup counts one per-number lookup.
func RecordRateLookup(outcome string) {
	rateLookups.WithLabelValues(outcome).Inc()
}

// RecordSubmission counts a submission; d is observed only for calls that
// reached the network.
func RecordSubmission(outcome string, d time.Duration) {
	submissions.WithLabelValues(outcome).Inc()
	if d > 0 {
		submitDuration.Observe(d.Seconds())
	}
}

// RecordCandidates counts added and skipped candidates of one add operation.
func RecordCandidates(added, skipped int) {
	cartLines.WithLabelValues("added").Add(float64(added))
	cartLines.WithLabelValues("skipped").Add(float64(skipped))
}

// SetOpenSessions publishes the current session count.
func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

// InstrumentHandler counts requests by method, matched route pattern and
// status.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		} else if i := strings.IndexByte(route, ' '); i >= 0 {
			route = route[i+1:]
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes the WebSocket upgrade through to the underlying writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
