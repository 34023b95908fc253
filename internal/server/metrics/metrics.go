// Package metrics holds the Prometheus collectors of the server: HTTP
// traffic and the authentication events the services report.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatekeeper_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_logins_total",
			Help: "Login attempts by principal class and outcome.",
		},
		[]string{"class", "result"},
	)

	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_registrations_total",
			Help: "Registration attempts by outcome.",
		},
		[]string{"result"},
	)

	sessionsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_sessions_issued_total",
			Help: "Sessions issued by principal class.",
		},
		[]string{"class"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			loginsTotal, registrationsTotal, sessionsIssuedTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func ObserveLogin(class string, ok bool) {
	loginsTotal.WithLabelValues(class, result(ok)).Inc()
}

func ObserveRegistration(ok bool) {
	registrationsTotal.WithLabelValues(result(ok)).Inc()
}

func ObserveSessionIssued(class string) {
	sessionsIssuedTotal.WithLabelValues(class).Inc()
}

// Instrument records in-flight count, totals and latency per request.
// routeOf maps a request to a low-cardinality route label; nil uses the
// raw path.
func Instrument(routeOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if routeOf != nil {
				if rt := routeOf(r); rt != "" {
					route = rt
				}
			}
			status := strconv.Itoa(sw.code)

			httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
