package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReportStats holds aggregate counters over a timestamp range.
type ReportStats struct {
	TotalRequests   int64   `json:"total_requests"`
	UniqueDevices   int64   `json:"unique_devices"`
	UniqueIPs       int64   `json:"unique_ips"`
	AverageAccuracy float64 `json:"average_accuracy_meters"`
}

// CountryCount is one entry of the per-country breakdown.
type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// DeviceCount is one entry of the most-active-devices breakdown.
type DeviceCount struct {
	AdvertisingID string `json:"advertising_id"`
	Requests      int64  `json:"requests"`
}

// ActivityReport aggregates observation activity over an inclusive
// timestamp range.
type ActivityReport struct {
	StartNs      int64          `json:"start_ns"`
	EndNs        int64          `json:"end_ns"`
	Stats        ReportStats    `json:"statistics"`
	TopCountries []CountryCount `json:"top_countries"`
	TopDevices   []DeviceCount  `json:"most_active_devices"`
}

// breakdownLimit bounds the per-country and per-device breakdowns.
const breakdownLimit = 10

// Report computes aggregate statistics and top-10 breakdowns over the
// inclusive [startNs, endNs] range.
func (s *Store) Report(ctx context.Context, startNs, endNs int64) (*ActivityReport, error) {
	rep := &ActivityReport{StartNs: startNs, EndNs: endNs}

	var avgAccuracy sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(DISTINCT advertising_id),
		COUNT(DISTINCT ip_address),
		AVG(accuracy_radius)
		FROM observations WHERE ts_ns BETWEEN ? AND ?`, startNs, endNs).
		Scan(&rep.Stats.TotalRequests, &rep.Stats.UniqueDevices, &rep.Stats.UniqueIPs, &avgAccuracy)
	if err != nil {
		return nil, fmt.Errorf("report stats: %w", err)
	}
	if avgAccuracy.Valid {
		rep.Stats.AverageAccuracy = avgAccuracy.Float64
	}

	rows, err := s.db.QueryContext(ctx, `SELECT country_code, COUNT(*) AS count
		FROM observations WHERE ts_ns BETWEEN ? AND ?
		GROUP BY country_code ORDER BY count DESC LIMIT ?`, startNs, endNs, breakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("report top countries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, fmt.Errorf("report top countries: scan: %w", err)
		}
		rep.TopCountries = append(rep.TopCountries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report top countries: %w", err)
	}

	devRows, err := s.db.QueryContext(ctx, `SELECT advertising_id, COUNT(*) AS request_count
		FROM observations WHERE ts_ns BETWEEN ? AND ?
		GROUP BY advertising_id ORDER BY request_count DESC LIMIT ?`, startNs, endNs, breakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("report top devices: %w", err)
	}
	defer devRows.Close()
	for devRows.Next() {
		var d DeviceCount
		if err := devRows.Scan(&d.AdvertisingID, &d.Requests); err != nil {
			return nil, fmt.Errorf("report top devices: scan: %w", err)
		}
		rep.TopDevices = append(rep.TopDevices, d)
	}
	if err := devRows.Err(); err != nil {
		return nil, fmt.Errorf("report top devices: %w", err)
	}

	return rep, nil
}
