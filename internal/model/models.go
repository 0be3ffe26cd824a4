// Package model defines domain structs shared across the persistence layer.
package model

// DeviceType classifies the platform a request originated from.
type DeviceType string

const (
	DeviceTypeAndroid DeviceType = "android"
	DeviceTypeIOS     DeviceType = "ios"
	DeviceTypeUnknown DeviceType = "unknown"
)

// IsValid reports whether the value is a known device type.
func (d DeviceType) IsValid() bool {
	switch d {
	case DeviceTypeAndroid, DeviceTypeIOS, DeviceTypeUnknown:
		return true
	}
	return false
}

// NormalizeDeviceType maps arbitrary input to a valid DeviceType,
// falling back to DeviceTypeUnknown.
func NormalizeDeviceType(s string) DeviceType {
	d := DeviceType(s)
	if d.IsValid() {
		return d
	}
	return DeviceTypeUnknown
}

// DeviceInfo carries the device identity fields of a tracked request.
type DeviceInfo struct {
	AdvertisingID string     `json:"advertising_id"`
	DeviceType    DeviceType `json:"device_type"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	DeviceModel   string     `json:"device_model,omitempty"`
	OSVersion     string     `json:"os_version,omitempty"`
}

// WifiAccessPoint is a single observed WiFi AP.
type WifiAccessPoint struct {
	MACAddress     string `json:"macAddress"`
	SignalStrength int    `json:"signalStrength,omitempty"`
	Age            int    `json:"age,omitempty"`
}

// CellTower is a single observed cell tower.
type CellTower struct {
	CellID            int `json:"cellId"`
	LocationAreaCode  int `json:"locationAreaCode"`
	MobileCountryCode int `json:"mobileCountryCode"`
	MobileNetworkCode int `json:"mobileNetworkCode"`
	SignalStrength    int `json:"signalStrength,omitempty"`
	Age               int `json:"age,omitempty"`
}

// BluetoothBeacon is a single observed Bluetooth beacon.
type BluetoothBeacon struct {
	MACAddress     string `json:"macAddress"`
	SignalStrength int    `json:"signalStrength,omitempty"`
	Age            int    `json:"age,omitempty"`
}

// EnvironmentSignals are the radio observations a device submits to
// assist network-based geolocation.
type EnvironmentSignals struct {
	WifiAccessPoints []WifiAccessPoint `json:"wifi_access_points,omitempty"`
	CellTowers       []CellTower       `json:"cell_towers,omitempty"`
	BluetoothBeacons []BluetoothBeacon `json:"bluetooth_beacons,omitempty"`
}

// Empty reports whether no signals of any kind were submitted.
func (s *EnvironmentSignals) Empty() bool {
	return s == nil ||
		(len(s.WifiAccessPoints) == 0 && len(s.CellTowers) == 0 && len(s.BluetoothBeacons) == 0)
}

// RequestExtra holds the optional ad-serving fields of a tracked request.
type RequestExtra struct {
	AppID          string `json:"app_id,omitempty"`
	SDKVersion     string `json:"sdk_version,omitempty"`
	AdType         string `json:"ad_type,omitempty"`
	ResponseStatus int    `json:"response_status,omitempty"`
}

// Observation is one persisted tracked request. Immutable once written;
// identified by RequestID.
type Observation struct {
	RequestID     string     `json:"request_id"`
	AdvertisingID string     `json:"advertising_id"`
	DeviceType    DeviceType `json:"device_type"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	DeviceModel   string     `json:"device_model,omitempty"`
	OSVersion     string     `json:"os_version,omitempty"`
	AppID         string     `json:"app_id,omitempty"`
	SDKVersion    string     `json:"sdk_version,omitempty"`
	AdType        string     `json:"ad_type,omitempty"`

	ResponseStatus int   `json:"response_status"`
	TsNs           int64 `json:"ts_ns"`

	// Present only when geolocation succeeded.
	EstimatedLat   *float64 `json:"estimated_lat,omitempty"`
	EstimatedLng   *float64 `json:"estimated_lng,omitempty"`
	AccuracyRadius *float64 `json:"accuracy_radius,omitempty"`

	WifiCount    int    `json:"wifi_count"`
	CellCount    int    `json:"cell_count"`
	VPNSuspected bool   `json:"vpn_suspected"`
	CountryCode  string `json:"country_code"`
}

// LocationEntry is one append-only location history row. The request_id
// link is best-effort, not transactionally enforced.
type LocationEntry struct {
	ID            string  `json:"id"`
	RequestID     string  `json:"request_id"`
	AdvertisingID string  `json:"advertising_id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Accuracy      float64 `json:"accuracy"`
	TsNs          int64   `json:"ts_ns"`
	Source        string  `json:"source"`
}

// BehaviorProfile is the rolling per-device aggregate. Exactly one row
// exists per advertising id once any observation for it has been recorded.
type BehaviorProfile struct {
	AdvertisingID string   `json:"advertising_id"`
	TotalRequests int64    `json:"total_requests"`
	AvgPerDay     float64  `json:"avg_requests_per_day"`
	Countries     []string `json:"countries"`
	IPPrefixes    []string `json:"ip_prefixes"`
	FirstSeenNs   int64    `json:"first_seen_ns"`
	LastSeenNs    int64    `json:"last_seen_ns"`
}

// SimilarDevice is one row of a similarity query result, grouped by
// advertising id.
type SimilarDevice struct {
	AdvertisingID string     `json:"advertising_id"`
	DeviceType    DeviceType `json:"device_type"`
	DeviceModel   string     `json:"device_model,omitempty"`
	RequestCount  int64      `json:"request_count"`
}
