package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/tracker"
)

// ServerConfig configures the API server.
type ServerConfig struct {
	ListenAddress   string
	Port            int
	AdminToken      string // empty disables authentication
	APIMaxBodyBytes int64
}

// Server wraps the HTTP server and mux for the AdPulse API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(cfg ServerConfig, t *tracker.Tracker) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())
	mux.Handle("GET /metrics", metrics.Handler())

	// Ingest endpoints stay open: device SDKs submit without credentials.
	api := http.NewServeMux()
	api.Handle("POST /api/v1/track",
		metrics.InstrumentHandler("/api/v1/track", HandleTrack(t)))
	api.Handle("POST /api/v1/geolocate",
		metrics.InstrumentHandler("/api/v1/geolocate", HandleGeolocate(t)))

	// Query and report endpoints sit behind the admin token when one is
	// configured.
	queries := http.NewServeMux()
	queries.Handle("GET /api/v1/devices/similar",
		metrics.InstrumentHandler("/api/v1/devices/similar", HandleSimilarDevices(t)))
	queries.Handle("GET /api/v1/devices/{id}/history",
		metrics.InstrumentHandler("/api/v1/devices/{id}/history", HandleDeviceHistory(t)))
	queries.Handle("GET /api/v1/devices/{id}/profile",
		metrics.InstrumentHandler("/api/v1/devices/{id}/profile", HandleDeviceProfile(t)))
	queries.Handle("GET /api/v1/devices/{id}/locations",
		metrics.InstrumentHandler("/api/v1/devices/{id}/locations", HandleDeviceLocations(t)))
	queries.Handle("GET /api/v1/reports/activity",
		metrics.InstrumentHandler("/api/v1/reports/activity", HandleActivityReport(t)))

	queryHandler := AdminAuth(cfg.AdminToken, queries)
	api.Handle("GET /api/v1/devices/", queryHandler)
	api.Handle("GET /api/v1/reports/", queryHandler)

	mux.Handle("/api/", LimitRequestBody(cfg.APIMaxBodyBytes, api))

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
