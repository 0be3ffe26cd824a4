package api

import (
	"net/http"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/tracker"
)

// GeolocateRequest is the body of POST /api/v1/geolocate.
type GeolocateRequest struct {
	WifiAccessPoints []model.WifiAccessPoint `json:"wifi_access_points"`
	CellTowers       []model.CellTower       `json:"cell_towers"`
	BluetoothBeacons []model.BluetoothBeacon `json:"bluetooth_beacons"`
}

// HandleGeolocate returns a handler for POST /api/v1/geolocate. It resolves
// submitted radio signals to a position without recording an observation.
func HandleGeolocate(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GeolocateRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}

		signals := &model.EnvironmentSignals{
			WifiAccessPoints: req.WifiAccessPoints,
			CellTowers:       req.CellTowers,
			BluetoothBeacons: req.BluetoothBeacons,
		}
		if signals.Empty() {
			writeInvalidArgument(w, "at least one signal source is required")
			return
		}

		estimate := t.Geolocate(r.Context(), signals)
		if estimate == nil {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "position could not be resolved")
			return
		}
		WriteJSON(w, http.StatusOK, estimate)
	}
}
