package api

import (
	"net/http"

	"github.com/adpulse/adpulse/internal/tracker"
)

// HandleDeviceHistory returns a handler for GET /api/v1/devices/{id}/history.
func HandleDeviceHistory(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		advertisingID := PathParam(r, "id")
		limit, err := ParseIntQuery(r, "limit", 0)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}

		items, err := t.History(r.Context(), advertisingID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteList(w, http.StatusOK, items)
	}
}

// HandleDeviceProfile returns a handler for GET /api/v1/devices/{id}/profile.
func HandleDeviceProfile(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := t.Profile(r.Context(), PathParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, profile)
	}
}

// HandleDeviceLocations returns a handler for GET /api/v1/devices/{id}/locations.
func HandleDeviceLocations(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		advertisingID := PathParam(r, "id")
		limit, err := ParseIntQuery(r, "limit", 0)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}

		items, err := t.Locations(r.Context(), advertisingID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteList(w, http.StatusOK, items)
	}
}

// HandleSimilarDevices returns a handler for GET /api/v1/devices/similar.
// Any combination of ip_address, country, and device_model narrows the
// result; at least one criterion must be present.
func HandleSimilarDevices(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ip := q.Get("ip_address")
		country := q.Get("country")
		deviceModel := q.Get("device_model")
		if ip == "" && country == "" && deviceModel == "" {
			writeInvalidArgument(w, "at least one of ip_address, country, device_model is required")
			return
		}

		items, err := t.FindSimilar(r.Context(), ip, country, deviceModel)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteList(w, http.StatusOK, items)
	}
}
