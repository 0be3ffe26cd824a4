// Package tracker orchestrates one observation end to end: request id,
// geolocation, IP heuristics, persistence, and the behavior profile
// update. It also fronts the query operations the HTTP surface exposes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/behavior"
	"github.com/adpulse/adpulse/internal/geolocate"
	"github.com/adpulse/adpulse/internal/ipintel"
	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/requestid"
	"github.com/adpulse/adpulse/internal/store"
)

// ErrProfileUpdateFailed marks a partial success: the observation row was
// durably recorded but the behavior profile update failed. Callers can
// resubmit just the aggregate update; the observation must not be
// resubmitted.
var ErrProfileUpdateFailed = errors.New("behavior profile update failed")

// locationSource labels location history rows produced by the geolocation
// client.
const locationSource = "network_geolocation"

// Defaults applied when the optional extra fields are absent.
const (
	defaultResponseStatus = 200
	defaultAdType         = "banner"
)

// Tracker wires the per-observation pipeline. Constructed once in main
// and passed to every request handler; there is no package-level instance.
type Tracker struct {
	store   *store.Store
	geo     *geolocate.Client
	updater *behavior.Updater

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Tracker.
func New(st *store.Store, geo *geolocate.Client, updater *behavior.Updater) *Tracker {
	return &Tracker{
		store:   st,
		geo:     geo,
		updater: updater,
		now:     time.Now,
	}
}

// Result is the outcome of processing one observation.
type Result struct {
	RequestID      string              `json:"request_id"`
	Timestamp      time.Time           `json:"timestamp"`
	Geolocation    *geolocate.Estimate `json:"geolocation,omitempty"`
	CountryCode    string              `json:"country_code"`
	VPNSuspected   bool                `json:"vpn_suspected"`
	ProfileUpdated bool                `json:"profile_updated"`
}

// Process records one observation. On a profile update failure after the
// observation write, it returns both a Result (observation recorded) and
// an error wrapping ErrProfileUpdateFailed; all other errors mean nothing
// beyond already-reported state was recorded.
func (t *Tracker) Process(ctx context.Context, device model.DeviceInfo, signals *model.EnvironmentSignals, extra *model.RequestExtra) (*Result, error) {
	ts := t.now().UTC()

	// Heuristic inputs fail fast, before any network or store work.
	country, err := ipintel.EstimateCountry(device.IPAddress)
	if err != nil {
		metrics.ObservationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	vpn, err := ipintel.SuspectedVPN(device.IPAddress)
	if err != nil {
		metrics.ObservationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	prefix, err := ipintel.Prefix(device.IPAddress)
	if err != nil {
		metrics.ObservationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	reqID := requestid.New(device.AdvertisingID, device.IPAddress, ts)

	// Geolocation failures are absorbed inside the client; an absent
	// estimate is normal operation.
	estimate := t.geo.Locate(ctx, signals)

	obs := buildObservation(reqID, ts, device, signals, extra, estimate, country, vpn)
	if err := t.store.InsertObservation(ctx, obs); err != nil {
		if errors.Is(err, store.ErrDuplicateRequestID) {
			metrics.ObservationsTotal.WithLabelValues("duplicate").Inc()
		} else {
			metrics.ObservationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if vpn {
		metrics.VPNSuspectedTotal.Inc()
	}

	if estimate != nil {
		entry := &model.LocationEntry{
			ID:            uuid.New().String(),
			RequestID:     reqID,
			AdvertisingID: device.AdvertisingID,
			Latitude:      estimate.Lat,
			Longitude:     estimate.Lng,
			Accuracy:      estimate.Accuracy,
			TsNs:          ts.UnixNano(),
			Source:        locationSource,
		}
		// Best-effort append; the request id link is not transactional.
		if err := t.store.InsertLocation(ctx, entry); err != nil {
			log.Printf("[tracker] warning: location history insert failed request_id=%s: %v", reqID, err)
		}
	}

	result := &Result{
		RequestID:    reqID,
		Timestamp:    ts,
		Geolocation:  estimate,
		CountryCode:  country,
		VPNSuspected: vpn,
	}

	if _, err := t.updater.Apply(ctx, device.AdvertisingID, ts, country, prefix); err != nil {
		metrics.ObservationsTotal.WithLabelValues("partial").Inc()
		return result, fmt.Errorf("%w: %w", ErrProfileUpdateFailed, err)
	}
	result.ProfileUpdated = true
	metrics.ObservationsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func buildObservation(
	reqID string,
	ts time.Time,
	device model.DeviceInfo,
	signals *model.EnvironmentSignals,
	extra *model.RequestExtra,
	estimate *geolocate.Estimate,
	country string,
	vpn bool,
) *model.Observation {
	obs := &model.Observation{
		RequestID:      reqID,
		AdvertisingID:  device.AdvertisingID,
		DeviceType:     model.NormalizeDeviceType(string(device.DeviceType)),
		IPAddress:      device.IPAddress,
		UserAgent:      device.UserAgent,
		DeviceModel:    device.DeviceModel,
		OSVersion:      device.OSVersion,
		ResponseStatus: defaultResponseStatus,
		AdType:         defaultAdType,
		TsNs:           ts.UnixNano(),
		VPNSuspected:   vpn,
		CountryCode:    country,
	}
	if extra != nil {
		obs.AppID = extra.AppID
		obs.SDKVersion = extra.SDKVersion
		if extra.AdType != "" {
			obs.AdType = extra.AdType
		}
		if extra.ResponseStatus != 0 {
			obs.ResponseStatus = extra.ResponseStatus
		}
	}
	if signals != nil {
		obs.WifiCount = len(signals.WifiAccessPoints)
		obs.CellCount = len(signals.CellTowers)
	}
	if estimate != nil {
		lat, lng, acc := estimate.Lat, estimate.Lng, estimate.Accuracy
		obs.EstimatedLat, obs.EstimatedLng, obs.AccuracyRadius = &lat, &lng, &acc
	}
	return obs
}

// Geolocate resolves signals without recording anything, for the
// standalone geolocation endpoint.
func (t *Tracker) Geolocate(ctx context.Context, signals *model.EnvironmentSignals) *geolocate.Estimate {
	return t.geo.Locate(ctx, signals)
}

// History returns the most recent observations for an advertising id.
func (t *Tracker) History(ctx context.Context, advertisingID string, limit int) ([]model.Observation, error) {
	return t.store.ListObservations(ctx, advertisingID, limit)
}

// Locations returns the most recent location history rows for an
// advertising id.
func (t *Tracker) Locations(ctx context.Context, advertisingID string, limit int) ([]model.LocationEntry, error) {
	return t.store.ListLocations(ctx, advertisingID, limit)
}

// Profile returns the behavior profile for an advertising id.
func (t *Tracker) Profile(ctx context.Context, advertisingID string) (*model.BehaviorProfile, error) {
	return t.store.GetProfile(ctx, advertisingID)
}

// FindSimilar looks up devices matching any combination of IP prefix,
// country, and device model. The ip_address criterion is reduced to its
// two-octet prefix before matching.
func (t *Tracker) FindSimilar(ctx context.Context, ipAddress, countryCode, deviceModel string) ([]model.SimilarDevice, error) {
	filter := store.SimilarDevicesFilter{
		CountryCode: countryCode,
		DeviceModel: deviceModel,
	}
	if ipAddress != "" {
		prefix, err := ipintel.Prefix(ipAddress)
		if err != nil {
			return nil, err
		}
		filter.IPPrefix = prefix
	}
	return t.store.FindSimilarDevices(ctx, filter)
}

// ActivityReport aggregates the trailing day-count window ending now.
func (t *Tracker) ActivityReport(ctx context.Context, days int) (*store.ActivityReport, error) {
	if days <= 0 {
		days = 7
	}
	end := t.now().UTC()
	start := end.AddDate(0, 0, -days)
	return t.store.Report(ctx, start.UnixNano(), end.UnixNano())
}
