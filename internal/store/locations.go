package store

import (
	"context"
	"fmt"

	"github.com/adpulse/adpulse/internal/model"
)

// InsertLocation appends one location history row.
func (s *Store) InsertLocation(ctx context.Context, e *model.LocationEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO location_history
		(id, request_id, advertising_id, latitude, longitude, accuracy, ts_ns, source)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.RequestID, e.AdvertisingID, e.Latitude, e.Longitude, e.Accuracy, e.TsNs, e.Source,
	)
	if err != nil {
		return fmt.Errorf("insert location %s: %w", e.ID, err)
	}
	return nil
}

// ListLocations returns location history for an advertising id ordered by
// timestamp descending, capped at limit.
func (s *Store) ListLocations(ctx context.Context, advertisingID string, limit int) ([]model.LocationEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, request_id, advertising_id, latitude, longitude, accuracy, ts_ns, source
		FROM location_history WHERE advertising_id = ? ORDER BY ts_ns DESC LIMIT ?`,
		advertisingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list locations %s: %w", advertisingID, err)
	}
	defer rows.Close()

	var results []model.LocationEntry
	for rows.Next() {
		var e model.LocationEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.AdvertisingID,
			&e.Latitude, &e.Longitude, &e.Accuracy, &e.TsNs, &e.Source); err != nil {
			return nil, fmt.Errorf("list locations %s: scan: %w", advertisingID, err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeleteLocationsBefore removes location rows older than cutoffNs.
// Returns the number of rows deleted.
func (s *Store) DeleteLocationsBefore(ctx context.Context, cutoffNs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM location_history WHERE ts_ns < ?`, cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("delete locations before %d: %w", cutoffNs, err)
	}
	return res.RowsAffected()
}
