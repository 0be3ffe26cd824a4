package behavior

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "adpulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpdater_CreatesThenUpdates(t *testing.T) {
	s := openTestStore(t)
	u := NewUpdater(s)
	ctx := context.Background()
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	p, err := u.Apply(ctx, "aid-1", ts, "ASIA", "192.168")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.TotalRequests != 1 {
		t.Fatalf("total = %d, want 1", p.TotalRequests)
	}

	p, err = u.Apply(ctx, "aid-1", ts.Add(time.Hour), "US", "10.0")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.TotalRequests != 2 || len(p.Countries) != 2 || len(p.IPPrefixes) != 2 {
		t.Fatalf("unexpected profile: %+v", p)
	}

	// Durable: re-read through the store.
	got, err := s.GetProfile(ctx, "aid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalRequests != 2 || got.FirstSeenNs != ts.UnixNano() {
		t.Fatalf("persisted profile: %+v", got)
	}
}

func TestUpdater_ConcurrentSameIDNoLostUpdates(t *testing.T) {
	s := openTestStore(t)
	u := NewUpdater(s)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	const n = 40
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// All writers share one timestamp so ordering between
			// goroutines cannot trip the first-seen bound.
			_, err := u.Apply(ctx, "aid-1", base, "US", "10.0")
			if err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.GetProfile(ctx, "aid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalRequests != n {
		t.Fatalf("total = %d, want %d (lost updates)", got.TotalRequests, n)
	}
}

func TestUpdater_IndependentIDs(t *testing.T) {
	s := openTestStore(t)
	u := NewUpdater(s)
	ctx := context.Background()
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	if _, err := u.Apply(ctx, "aid-1", ts, "US", "10.0"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := u.Apply(ctx, "aid-2", ts, "EU", "130.1"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	p1, err := s.GetProfile(ctx, "aid-1")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.GetProfile(ctx, "aid-2")
	if err != nil {
		t.Fatal(err)
	}
	if p1.TotalRequests != 1 || p2.TotalRequests != 1 {
		t.Fatalf("cross-id interference: %+v %+v", p1, p2)
	}
}
