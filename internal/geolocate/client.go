// Package geolocate resolves approximate device locations from radio
// environment signals via an external network-geolocation service.
package geolocate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/maypok86/otter"
	"github.com/zeebo/xxh3"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
)

// Signal caps imposed by the upstream API. Excess signals are truncated
// silently rather than rejected.
const (
	maxWifiAccessPoints = 20
	maxCellTowers       = 20
	maxBluetoothBeacons = 10
)

// DefaultEndpoint is the Google Geolocation API URL. The API key is
// appended as a query parameter.
const DefaultEndpoint = "https://www.googleapis.com/geolocation/v1/geolocate"

// DefaultTimeout bounds a single geolocation call.
const DefaultTimeout = 10 * time.Second

const defaultCacheCapacity = 1024

// Estimate is a best-effort location fix.
type Estimate struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// Config configures a Client.
type Config struct {
	// APIKey for the upstream service. Empty means geolocation is
	// disabled: Locate returns no estimate and logs a warning once per
	// call, which is expected operation rather than an error.
	APIKey string
	// Endpoint overrides DefaultEndpoint (used by tests).
	Endpoint string
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	// CacheCapacity bounds the in-process result cache. <= 0 uses the
	// default.
	CacheCapacity int
	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
}

// Client calls the geolocation service. Identical signal payloads within
// a process hit a bounded in-memory cache instead of re-spending quota.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	cache      otter.Cache[uint64, Estimate]
}

// NewClient creates a geolocation client.
func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	cache, err := otter.MustBuilder[uint64, Estimate](capacity).
		Cost(func(_ uint64, _ Estimate) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("geolocate: failed to create result cache: " + err.Error())
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		cache:      cache,
	}
}

// geoRequest is the upstream request payload.
type geoRequest struct {
	WifiAccessPoints []model.WifiAccessPoint `json:"wifiAccessPoints,omitempty"`
	CellTowers       []model.CellTower       `json:"cellTowers,omitempty"`
	BluetoothBeacons []model.BluetoothBeacon `json:"bluetoothBeacons,omitempty"`
	ConsiderIP       bool                    `json:"considerIp"`
}

// geoResponse is the upstream success payload.
type geoResponse struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

// Locate resolves the signals to a location estimate, or nil when no
// estimate is available. Failures are absorbed: they are logged and
// counted, never surfaced to the caller. With no signals at all, no
// network call is made.
func (c *Client) Locate(ctx context.Context, signals *model.EnvironmentSignals) *Estimate {
	if signals.Empty() {
		metrics.GeolocationRequests.WithLabelValues("no_signals").Inc()
		return nil
	}
	if c.apiKey == "" {
		log.Printf("[geolocate] no API key configured, skipping geolocation")
		metrics.GeolocationRequests.WithLabelValues("no_key").Inc()
		return nil
	}

	payload := geoRequest{
		WifiAccessPoints: truncate(signals.WifiAccessPoints, maxWifiAccessPoints),
		CellTowers:       truncate(signals.CellTowers, maxCellTowers),
		BluetoothBeacons: truncate(signals.BluetoothBeacons, maxBluetoothBeacons),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[geolocate] marshal payload: %v", err)
		metrics.GeolocationRequests.WithLabelValues("transport_error").Inc()
		return nil
	}

	key := xxh3.Hash(body)
	if cached, ok := c.cache.Get(key); ok {
		metrics.GeolocationRequests.WithLabelValues("cached").Inc()
		est := cached
		return &est
	}

	query := url.Values{"key": {c.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		log.Printf("[geolocate] build request: %v", err)
		metrics.GeolocationRequests.WithLabelValues("transport_error").Inc()
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[geolocate] request failed: %v", err)
		metrics.GeolocationRequests.WithLabelValues("transport_error").Inc()
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[geolocate] API error: status=%d body=%q", resp.StatusCode, errBody)
		metrics.GeolocationRequests.WithLabelValues("http_error").Inc()
		return nil
	}

	var decoded geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Printf("[geolocate] decode response: %v", err)
		metrics.GeolocationRequests.WithLabelValues("http_error").Inc()
		return nil
	}

	est := Estimate{
		Lat:      decoded.Location.Lat,
		Lng:      decoded.Location.Lng,
		Accuracy: decoded.Accuracy,
	}
	c.cache.Set(key, est)
	metrics.GeolocationRequests.WithLabelValues("ok").Inc()
	return &est
}

func truncate[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
