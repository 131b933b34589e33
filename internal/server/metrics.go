package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	labelMethod = "method"
	labelRoute  = "route"
	labelStatus = "status"
	labelOp     = "op"
)

// metrics owns a private registry so several servers can coexist in one
// process, as they do in tests.
type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	mutations *prometheus.CounterVec
	results   prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contextgraph_http_requests_total",
			Help: "HTTP requests served, by route and status",
		}, []string{labelMethod, labelRoute, labelStatus}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contextgraph_http_request_duration_seconds",
			Help:    "HTTP request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{labelMethod, labelRoute}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contextgraph_mutations_total",
			Help: "Successful graph mutations, by operation",
		}, []string{labelOp}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contextgraph_similar_results",
			Help:    "Number of matches returned by similar-context queries",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.mutations, m.results,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) mutated(op string) {
	m.mutations.WithLabelValues(op).Inc()
}

// instrument records request counts and latency keyed by the matched route
// pattern, so ids in paths do not explode label cardinality.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
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
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
