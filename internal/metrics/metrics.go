// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ObservationsTotal counts processed observations by outcome:
	// ok, partial, duplicate, invalid, error.
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_observations_total",
			Help: "Total number of observations processed, by outcome",
		},
		[]string{"outcome"},
	)

	// GeolocationRequests counts geolocation attempts by outcome:
	// ok, cached, no_signals, no_key, http_error, transport_error.
	GeolocationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_geolocation_requests_total",
			Help: "Total number of geolocation attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// VPNSuspectedTotal counts observations from suspected VPN/datacenter
	// addresses.
	VPNSuspectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adpulse_vpn_suspected_total",
			Help: "Total number of observations flagged as suspected VPN",
		},
	)

	// HTTPDuration observes API handler latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adpulse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10},
		},
		[]string{"route", "method", "status"},
	)

	// RetentionDeletedRows counts rows removed by the retention sweeper.
	RetentionDeletedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_retention_deleted_rows_total",
			Help: "Rows removed by the retention sweeper, by table",
		},
		[]string{"table"},
	)
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps a handler with a duration histogram labeled by
// the given route name.
func InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
