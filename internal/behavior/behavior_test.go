package behavior

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func TestNext_NewProfile(t *testing.T) {
	p, err := Next(nil, "aid-1", t0, "ASIA", "192.168")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p.TotalRequests != 1 || p.AvgPerDay != 1.0 {
		t.Fatalf("counters: %+v", p)
	}
	if !slices.Equal(p.Countries, []string{"ASIA"}) || !slices.Equal(p.IPPrefixes, []string{"192.168"}) {
		t.Fatalf("sets: %+v", p)
	}
	if p.FirstSeenNs != t0.UnixNano() || p.LastSeenNs != t0.UnixNano() {
		t.Fatalf("bounds: %+v", p)
	}
}

func TestNext_AverageFormula(t *testing.T) {
	// N observations over a span re-derive the average from total count
	// and integer days elapsed since the first observation.
	p, err := Next(nil, "aid-1", t0, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	prev := p
	for i := 1; i < 10; i++ {
		next, err := Next(&prev, "aid-1", t0.Add(time.Duration(i)*6*time.Hour), "US", "8.8")
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		prev = next
	}
	if prev.TotalRequests != 10 {
		t.Fatalf("total = %d, want 10", prev.TotalRequests)
	}
	// Last observation at +54h: 2 whole days elapsed -> 10 / (2+1).
	want := 10.0 / 3.0
	if math.Abs(prev.AvgPerDay-want) > 1e-9 {
		t.Fatalf("avg = %v, want %v", prev.AvgPerDay, want)
	}
	if prev.FirstSeenNs != t0.UnixNano() {
		t.Fatalf("first_seen moved: %d", prev.FirstSeenNs)
	}
}

func TestNext_SetsAreUnions(t *testing.T) {
	p, err := Next(nil, "aid-1", t0, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Next(&p, "aid-1", t0.Add(time.Hour), "EU", "130.1")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(p2.Countries, []string{"EU", "US"}) {
		t.Fatalf("countries: %+v", p2.Countries)
	}
	if !slices.Equal(p2.IPPrefixes, []string{"130.1", "8.8"}) {
		t.Fatalf("prefixes: %+v", p2.IPPrefixes)
	}

	// Re-seeing known values never shrinks or duplicates.
	p3, err := Next(&p2, "aid-1", t0.Add(2*time.Hour), "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(p3.Countries, p2.Countries) || !slices.Equal(p3.IPPrefixes, p2.IPPrefixes) {
		t.Fatalf("sets changed on repeat: %+v", p3)
	}
}

func TestNext_LastSeenMonotonic(t *testing.T) {
	p, err := Next(nil, "aid-1", t0, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	later := t0.Add(48 * time.Hour)
	p2, err := Next(&p, "aid-1", later, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	if p2.LastSeenNs != later.UnixNano() {
		t.Fatalf("last_seen = %d, want %d", p2.LastSeenNs, later.UnixNano())
	}

	// A timestamp between first and last seen is accepted and does not
	// move last_seen backwards.
	mid := t0.Add(24 * time.Hour)
	p3, err := Next(&p2, "aid-1", mid, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	if p3.LastSeenNs != later.UnixNano() {
		t.Fatalf("last_seen moved backwards: %d", p3.LastSeenNs)
	}
	if p3.TotalRequests != 3 {
		t.Fatalf("total = %d, want 3", p3.TotalRequests)
	}
}

func TestNext_RejectsTimestampBeforeFirstSeen(t *testing.T) {
	p, err := Next(nil, "aid-1", t0, "US", "8.8")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Next(&p, "aid-1", t0.Add(-time.Second), "US", "8.8")
	if !errors.Is(err, ErrTimestampBeforeFirstSeen) {
		t.Fatalf("error = %v, want ErrTimestampBeforeFirstSeen", err)
	}
}

func TestNext_DoesNotMutatePrev(t *testing.T) {
	p := model.BehaviorProfile{
		AdvertisingID: "aid-1",
		TotalRequests: 1,
		AvgPerDay:     1,
		Countries:     []string{"US"},
		IPPrefixes:    []string{"8.8"},
		FirstSeenNs:   t0.UnixNano(),
		LastSeenNs:    t0.UnixNano(),
	}
	if _, err := Next(&p, "aid-1", t0.Add(time.Hour), "EU", "130.1"); err != nil {
		t.Fatal(err)
	}
	if p.TotalRequests != 1 || len(p.Countries) != 1 || len(p.IPPrefixes) != 1 {
		t.Fatalf("prev mutated: %+v", p)
	}
}
