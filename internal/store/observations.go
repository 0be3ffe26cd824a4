package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adpulse/adpulse/internal/model"
)

const observationColumns = `request_id, advertising_id, device_type, ip_address, user_agent,
	device_model, os_version, app_id, sdk_version, ad_type,
	response_status, ts_ns, estimated_lat, estimated_lng, accuracy_radius,
	wifi_count, cell_count, vpn_suspected, country_code`

// InsertObservation appends one observation row. Returns
// ErrDuplicateRequestID when a row with the same request id already
// exists; only the first row is retained.
func (s *Store) InsertObservation(ctx context.Context, o *model.Observation) error {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO observations (`+observationColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.RequestID, o.AdvertisingID, string(o.DeviceType), o.IPAddress, o.UserAgent,
		o.DeviceModel, o.OSVersion, o.AppID, o.SDKVersion, o.AdType,
		o.ResponseStatus, o.TsNs, o.EstimatedLat, o.EstimatedLng, o.AccuracyRadius,
		o.WifiCount, o.CellCount, boolToInt(o.VPNSuspected), o.CountryCode,
	)
	if err != nil {
		return fmt.Errorf("insert observation %s: %w", o.RequestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert observation %s: rows affected: %w", o.RequestID, err)
	}
	if n == 0 {
		return fmt.Errorf("insert observation %s: %w", o.RequestID, ErrDuplicateRequestID)
	}
	return nil
}

// GetObservation looks up a single observation by request id.
func (s *Store) GetObservation(ctx context.Context, requestID string) (*model.Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE request_id = ?`, requestID)
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get observation %s: %w", requestID, err)
	}
	return o, nil
}

// ListObservations returns the observations for an advertising id ordered
// by timestamp descending, capped at limit.
func (s *Store) ListObservations(ctx context.Context, advertisingID string, limit int) ([]model.Observation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations
		 WHERE advertising_id = ? ORDER BY ts_ns DESC LIMIT ?`,
		advertisingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations %s: %w", advertisingID, err)
	}
	defer rows.Close()

	var results []model.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("list observations %s: scan: %w", advertisingID, err)
		}
		results = append(results, *o)
	}
	return results, rows.Err()
}

// SimilarDevicesFilter selects devices by any combination of criteria.
// Empty fields are ignored.
type SimilarDevicesFilter struct {
	IPPrefix    string // matches ip_address LIKE "<prefix>.%"
	CountryCode string
	DeviceModel string
}

// similarDevicesCap bounds similarity results.
const similarDevicesCap = 50

// FindSimilarDevices groups observations matching the filter by
// advertising id, ordered by observation count descending, capped at 50.
func (s *Store) FindSimilarDevices(ctx context.Context, f SimilarDevicesFilter) ([]model.SimilarDevice, error) {
	var where []string
	var args []any

	if f.IPPrefix != "" {
		where = append(where, "ip_address LIKE ?")
		args = append(args, f.IPPrefix+".%")
	}
	if f.CountryCode != "" {
		where = append(where, "country_code = ?")
		args = append(args, f.CountryCode)
	}
	if f.DeviceModel != "" {
		where = append(where, "device_model = ?")
		args = append(args, f.DeviceModel)
	}

	q := `SELECT advertising_id, device_type, device_model, COUNT(*) AS request_count FROM observations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " GROUP BY advertising_id ORDER BY request_count DESC LIMIT ?"
	args = append(args, similarDevicesCap)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar devices: %w", err)
	}
	defer rows.Close()

	var results []model.SimilarDevice
	for rows.Next() {
		var d model.SimilarDevice
		var deviceType string
		if err := rows.Scan(&d.AdvertisingID, &deviceType, &d.DeviceModel, &d.RequestCount); err != nil {
			return nil, fmt.Errorf("find similar devices: scan: %w", err)
		}
		d.DeviceType = model.DeviceType(deviceType)
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteObservationsBefore removes observation rows older than cutoffNs.
// Returns the number of rows deleted.
func (s *Store) DeleteObservationsBefore(ctx context.Context, cutoffNs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE ts_ns < ?`, cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("delete observations before %d: %w", cutoffNs, err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*model.Observation, error) {
	var o model.Observation
	var deviceType string
	var vpn int
	err := row.Scan(
		&o.RequestID, &o.AdvertisingID, &deviceType, &o.IPAddress, &o.UserAgent,
		&o.DeviceModel, &o.OSVersion, &o.AppID, &o.SDKVersion, &o.AdType,
		&o.ResponseStatus, &o.TsNs, &o.EstimatedLat, &o.EstimatedLng, &o.AccuracyRadius,
		&o.WifiCount, &o.CellCount, &vpn, &o.CountryCode,
	)
	if err != nil {
		return nil, err
	}
	o.DeviceType = model.DeviceType(deviceType)
	o.VPNSuspected = vpn != 0
	return &o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
