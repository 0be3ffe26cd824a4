package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adpulse/adpulse/internal/behavior"
	"github.com/adpulse/adpulse/internal/geolocate"
	"github.com/adpulse/adpulse/internal/store"
	"github.com/adpulse/adpulse/internal/tracker"
)

// newTestServer builds a Server backed by a temp-dir store and a
// geolocation client with no API key, so no outbound calls happen.
func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "adpulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tr := tracker.New(st, geolocate.NewClient(geolocate.Config{}), behavior.NewUpdater(st))
	return NewServer(cfg, tr), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func assertBodyContains(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("body %q does not contain %q", rec.Body.String(), want)
	}
}

func trackBody(adID, ip string) map[string]any {
	return map[string]any{
		"advertising_id": adID,
		"device_type":    "android",
		"ip_address":     ip,
		"user_agent":     "Mozilla/5.0 (Linux; Android 10; SM-G973F)",
		"device_model":   "SM-G973F",
		"os_version":     "Android 10",
	}
}
