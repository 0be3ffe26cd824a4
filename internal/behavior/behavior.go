// Package behavior maintains the rolling per-device profile. Next computes
// the successor profile value from the previous one plus a new observation;
// it holds no state across calls. Updater serializes the read-modify-write
// against the store per advertising id.
package behavior

import (
	"errors"
	"slices"
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

// ErrTimestampBeforeFirstSeen is returned when an observation timestamp
// predates the profile's first-seen bound. The average formula re-derives
// from the elapsed span since first seen, so such updates are rejected
// rather than producing a negative span.
var ErrTimestampBeforeFirstSeen = errors.New("observation timestamp predates first seen")

// Next returns the profile that results from applying one observation to
// prev. prev == nil means no profile exists yet for the advertising id.
//
// The average is recomputed from the total count and the integer day span
// since first seen, never accumulated incrementally, so it self-corrects
// on every update. first_seen never changes after creation; last_seen only
// moves forward.
func Next(prev *model.BehaviorProfile, advertisingID string, ts time.Time, country, ipPrefix string) (model.BehaviorProfile, error) {
	tsNs := ts.UnixNano()

	if prev == nil {
		return model.BehaviorProfile{
			AdvertisingID: advertisingID,
			TotalRequests: 1,
			AvgPerDay:     1.0,
			Countries:     []string{country},
			IPPrefixes:    []string{ipPrefix},
			FirstSeenNs:   tsNs,
			LastSeenNs:    tsNs,
		}, nil
	}

	if tsNs < prev.FirstSeenNs {
		return model.BehaviorProfile{}, ErrTimestampBeforeFirstSeen
	}

	total := prev.TotalRequests + 1
	daysElapsed := (tsNs - prev.FirstSeenNs) / int64(24*time.Hour)

	next := model.BehaviorProfile{
		AdvertisingID: prev.AdvertisingID,
		TotalRequests: total,
		AvgPerDay:     float64(total) / float64(daysElapsed+1),
		Countries:     unionSorted(prev.Countries, country),
		IPPrefixes:    unionSorted(prev.IPPrefixes, ipPrefix),
		FirstSeenNs:   prev.FirstSeenNs,
		LastSeenNs:    max(prev.LastSeenNs, tsNs),
	}
	return next, nil
}

// unionSorted returns set with v added, sorted, without duplicates. The
// input slice is not modified.
func unionSorted(set []string, v string) []string {
	if slices.Contains(set, v) {
		return slices.Clone(set)
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	out = append(out, v)
	slices.Sort(out)
	return out
}
