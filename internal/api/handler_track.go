package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/tracker"
)

// TrackRequest is the body of POST /api/v1/track.
type TrackRequest struct {
	AdvertisingID string `json:"advertising_id"`
	DeviceType    string `json:"device_type"`
	IPAddress     string `json:"ip_address"`
	UserAgent     string `json:"user_agent"`
	DeviceModel   string `json:"device_model"`
	OSVersion     string `json:"os_version"`

	WifiAccessPoints []model.WifiAccessPoint `json:"wifi_access_points"`
	CellTowers       []model.CellTower       `json:"cell_towers"`
	BluetoothBeacons []model.BluetoothBeacon `json:"bluetooth_beacons"`

	AppID          string `json:"app_id"`
	SDKVersion     string `json:"sdk_version"`
	AdType         string `json:"ad_type"`
	ResponseStatus int    `json:"response_status"`
}

func (req *TrackRequest) validate() string {
	if strings.TrimSpace(req.AdvertisingID) == "" {
		return "advertising_id is required"
	}
	if strings.TrimSpace(req.DeviceType) == "" {
		return "device_type is required"
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		return "ip_address is required"
	}
	if strings.TrimSpace(req.UserAgent) == "" {
		return "user_agent is required"
	}
	return ""
}

// HandleTrack returns a handler for POST /api/v1/track.
func HandleTrack(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrackRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if msg := req.validate(); msg != "" {
			writeInvalidArgument(w, msg)
			return
		}

		device := model.DeviceInfo{
			AdvertisingID: req.AdvertisingID,
			DeviceType:    model.NormalizeDeviceType(req.DeviceType),
			IPAddress:     req.IPAddress,
			UserAgent:     req.UserAgent,
			DeviceModel:   req.DeviceModel,
			OSVersion:     req.OSVersion,
		}
		signals := &model.EnvironmentSignals{
			WifiAccessPoints: req.WifiAccessPoints,
			CellTowers:       req.CellTowers,
			BluetoothBeacons: req.BluetoothBeacons,
		}
		extra := &model.RequestExtra{
			AppID:          req.AppID,
			SDKVersion:     req.SDKVersion,
			AdType:         req.AdType,
			ResponseStatus: req.ResponseStatus,
		}

		result, err := t.Process(r.Context(), device, signals, extra)
		if err != nil {
			// Partial success: the observation was recorded but the
			// profile update failed. The caller gets the result.
			if errors.Is(err, tracker.ErrProfileUpdateFailed) && result != nil {
				WriteJSON(w, http.StatusAccepted, result)
				return
			}
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}
