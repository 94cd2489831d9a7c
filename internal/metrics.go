package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects HTTP and ledger metrics in a private registry. It also
// implements devices.Observer.
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	assignmentsOpened prometheus.Counter
	assignmentsClosed prometheus.Counter
	mutations         *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		assignmentsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "device_assignments_opened_total",
			Help: "Assignment records opened",
		}),
		assignmentsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "device_assignments_closed_total",
			Help: "Assignment records closed",
		}),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "device_mutations_total",
				Help: "Device create, update and delete attempts by outcome",
			},
			[]string{"op", "result"},
		),
	}
	m.registry.MustRegister(m.reqTotal, m.reqLatency, m.assignmentsOpened, m.assignmentsClosed, m.mutations)
	return m
}

func (m *Metrics) AssignmentOpened() { m.assignmentsOpened.Inc() }

func (m *Metrics) AssignmentClosed() { m.assignmentsClosed.Inc() }

func (m *Metrics) Mutation(op, result string) { m.mutations.WithLabelValues(op, result).Inc() }

// Middleware records request count and latency labelled by chi route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					path = p
				}
			}

			status := strconv.Itoa(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.code = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.wroteHeader = true
	return sr.ResponseWriter.Write(b)
}
