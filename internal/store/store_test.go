package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "adpulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testObservation(requestID, adID, ip string, tsNs int64) *model.Observation {
	return &model.Observation{
		RequestID:      requestID,
		AdvertisingID:  adID,
		DeviceType:     model.DeviceTypeAndroid,
		IPAddress:      ip,
		UserAgent:      "Mozilla/5.0 (Linux; Android 10; SM-G973F)",
		DeviceModel:    "SM-G973F",
		ResponseStatus: 200,
		TsNs:           tsNs,
		CountryCode:    "ASIA",
	}
}

func TestInsertObservation_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lat, lng, acc := 40.7126, -74.0059, 30.5
	o := testObservation("req-1", "aid-1", "192.168.1.100", time.Now().UnixNano())
	o.EstimatedLat, o.EstimatedLng, o.AccuracyRadius = &lat, &lng, &acc
	o.WifiCount = 3
	o.VPNSuspected = true

	if err := s.InsertObservation(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetObservation(ctx, "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AdvertisingID != "aid-1" || got.DeviceType != model.DeviceTypeAndroid {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.EstimatedLat == nil || *got.EstimatedLat != lat {
		t.Fatalf("estimated_lat not preserved: %+v", got.EstimatedLat)
	}
	if !got.VPNSuspected || got.WifiCount != 3 {
		t.Fatalf("flags not preserved: %+v", got)
	}
}

func TestInsertObservation_Duplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testObservation("req-dup", "aid-1", "10.0.0.1", 100)
	if err := s.InsertObservation(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := testObservation("req-dup", "aid-2", "10.0.0.2", 200)
	err := s.InsertObservation(ctx, second)
	if !errors.Is(err, ErrDuplicateRequestID) {
		t.Fatalf("error = %v, want ErrDuplicateRequestID", err)
	}

	// Only the first row is retained.
	got, err := s.GetObservation(ctx, "req-dup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AdvertisingID != "aid-1" {
		t.Fatalf("duplicate overwrote original row: %+v", got)
	}
}

func TestGetObservation_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetObservation(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListObservations_OrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{300, 100, 200} {
		o := testObservation("req-"+string(rune('a'+i)), "aid-1", "10.0.0.1", ts)
		if err := s.InsertObservation(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	// Different device, must not appear.
	if err := s.InsertObservation(ctx, testObservation("req-x", "aid-2", "10.0.0.2", 400)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ListObservations(ctx, "aid-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TsNs != 300 || got[1].TsNs != 200 {
		t.Fatalf("not ts desc: %d, %d", got[0].TsNs, got[1].TsNs)
	}
}

func TestFindSimilarDevices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insert := func(id, adID, ip, country, modelName string, ts int64) {
		o := testObservation(id, adID, ip, ts)
		o.CountryCode = country
		o.DeviceModel = modelName
		if err := s.InsertObservation(ctx, o); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	insert("r1", "aid-1", "192.168.1.5", "ASIA", "SM-G973F", 1)
	insert("r2", "aid-1", "192.168.2.6", "ASIA", "SM-G973F", 2)
	insert("r3", "aid-2", "192.168.9.9", "ASIA", "Pixel 8", 3)
	insert("r4", "aid-3", "10.1.1.1", "US", "SM-G973F", 4)

	got, err := s.FindSimilarDevices(ctx, SimilarDevicesFilter{IPPrefix: "192.168"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	// Ordered by request count descending.
	if got[0].AdvertisingID != "aid-1" || got[0].RequestCount != 2 {
		t.Fatalf("unexpected first row: %+v", got[0])
	}

	got, err = s.FindSimilarDevices(ctx, SimilarDevicesFilter{CountryCode: "US", DeviceModel: "SM-G973F"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].AdvertisingID != "aid-3" {
		t.Fatalf("combined filter: %+v", got)
	}

	// No criteria matches everything, grouped.
	got, err = s.FindSimilarDevices(ctx, SimilarDevicesFilter{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestProfileUpsert_FirstSeenImmutable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "aid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	p := &model.BehaviorProfile{
		AdvertisingID: "aid-1",
		TotalRequests: 1,
		AvgPerDay:     1.0,
		Countries:     []string{"ASIA"},
		IPPrefixes:    []string{"192.168"},
		FirstSeenNs:   1000,
		LastSeenNs:    1000,
	}
	if err := s.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p2 := *p
	p2.TotalRequests = 2
	p2.Countries = []string{"ASIA", "US"}
	p2.FirstSeenNs = 9999 // must be ignored on conflict
	p2.LastSeenNs = 2000
	if err := s.UpsertProfile(ctx, &p2); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetProfile(ctx, "aid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FirstSeenNs != 1000 {
		t.Fatalf("first_seen_ns changed on upsert: %d", got.FirstSeenNs)
	}
	if got.TotalRequests != 2 || got.LastSeenNs != 2000 {
		t.Fatalf("update not applied: %+v", got)
	}
	if len(got.Countries) != 2 {
		t.Fatalf("countries not round-tripped: %+v", got.Countries)
	}
}

func TestReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	acc1, acc2 := 10.0, 30.0
	o1 := testObservation("r1", "aid-1", "10.0.0.1", 100)
	o1.CountryCode = "US"
	o1.AccuracyRadius = &acc1
	o2 := testObservation("r2", "aid-1", "10.0.0.2", 200)
	o2.CountryCode = "US"
	o2.AccuracyRadius = &acc2
	o3 := testObservation("r3", "aid-2", "10.0.0.1", 300)
	o3.CountryCode = "EU"
	outside := testObservation("r4", "aid-3", "10.0.0.3", 999)

	for _, o := range []*model.Observation{o1, o2, o3, outside} {
		if err := s.InsertObservation(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rep, err := s.Report(ctx, 100, 300)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Stats.TotalRequests != 3 || rep.Stats.UniqueDevices != 2 || rep.Stats.UniqueIPs != 2 {
		t.Fatalf("stats: %+v", rep.Stats)
	}
	if rep.Stats.AverageAccuracy != 20.0 {
		t.Fatalf("avg accuracy = %v, want 20.0", rep.Stats.AverageAccuracy)
	}
	if len(rep.TopCountries) != 2 || rep.TopCountries[0].Country != "US" || rep.TopCountries[0].Count != 2 {
		t.Fatalf("top countries: %+v", rep.TopCountries)
	}
	if len(rep.TopDevices) != 2 || rep.TopDevices[0].AdvertisingID != "aid-1" {
		t.Fatalf("top devices: %+v", rep.TopDevices)
	}
}

func TestRetentionDeletes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300} {
		if err := s.InsertObservation(ctx, testObservation("r"+string(rune('0'+i)), "aid-1", "10.0.0.1", ts)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.InsertLocation(ctx, &model.LocationEntry{
		ID: "loc-1", RequestID: "r0", AdvertisingID: "aid-1",
		Latitude: 1, Longitude: 2, TsNs: 100, Source: "network_geolocation",
	}); err != nil {
		t.Fatalf("insert location: %v", err)
	}

	n, err := s.DeleteObservationsBefore(ctx, 250)
	if err != nil {
		t.Fatalf("delete observations: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d observations, want 2", n)
	}
	m, err := s.DeleteLocationsBefore(ctx, 250)
	if err != nil {
		t.Fatalf("delete locations: %v", err)
	}
	if m != 1 {
		t.Fatalf("deleted %d locations, want 1", m)
	}

	left, err := s.ListObservations(ctx, "aid-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 || left[0].TsNs != 300 {
		t.Fatalf("unexpected rows left: %+v", left)
	}
}

func TestLocationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &model.LocationEntry{
		ID: "loc-1", RequestID: "req-1", AdvertisingID: "aid-1",
		Latitude: 40.7126, Longitude: -74.0059, Accuracy: 25,
		TsNs: 500, Source: "network_geolocation",
	}
	if err := s.InsertLocation(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ListLocations(ctx, "aid-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Latitude != 40.7126 || got[0].Source != "network_geolocation" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}
