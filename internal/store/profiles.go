package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adpulse/adpulse/internal/model"
)

// GetProfile fetches the behavior profile for an advertising id.
// Returns ErrNotFound when no profile exists yet.
func (s *Store) GetProfile(ctx context.Context, advertisingID string) (*model.BehaviorProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		advertising_id, total_requests, avg_per_day, countries_json, ip_prefixes_json,
		first_seen_ns, last_seen_ns
		FROM behavior_profiles WHERE advertising_id = ?`, advertisingID)

	var p model.BehaviorProfile
	var countriesJSON, prefixesJSON string
	err := row.Scan(&p.AdvertisingID, &p.TotalRequests, &p.AvgPerDay,
		&countriesJSON, &prefixesJSON, &p.FirstSeenNs, &p.LastSeenNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", advertisingID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", advertisingID, err)
	}
	if err := json.Unmarshal([]byte(countriesJSON), &p.Countries); err != nil {
		return nil, fmt.Errorf("get profile %s: countries_json: %w", advertisingID, err)
	}
	if err := json.Unmarshal([]byte(prefixesJSON), &p.IPPrefixes); err != nil {
		return nil, fmt.Errorf("get profile %s: ip_prefixes_json: %w", advertisingID, err)
	}
	return &p, nil
}

// UpsertProfile writes the full profile row, replacing any existing row
// for the advertising id. Callers must serialize writes per advertising id
// (behavior.Updater does); the statement itself is atomic per row.
func (s *Store) UpsertProfile(ctx context.Context, p *model.BehaviorProfile) error {
	countriesJSON, err := json.Marshal(p.Countries)
	if err != nil {
		return fmt.Errorf("upsert profile %s: countries: %w", p.AdvertisingID, err)
	}
	prefixesJSON, err := json.Marshal(p.IPPrefixes)
	if err != nil {
		return fmt.Errorf("upsert profile %s: ip prefixes: %w", p.AdvertisingID, err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO behavior_profiles
		(advertising_id, total_requests, avg_per_day, countries_json, ip_prefixes_json, first_seen_ns, last_seen_ns)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(advertising_id) DO UPDATE SET
			total_requests = excluded.total_requests,
			avg_per_day = excluded.avg_per_day,
			countries_json = excluded.countries_json,
			ip_prefixes_json = excluded.ip_prefixes_json,
			last_seen_ns = excluded.last_seen_ns`,
		p.AdvertisingID, p.TotalRequests, p.AvgPerDay,
		string(countriesJSON), string(prefixesJSON), p.FirstSeenNs, p.LastSeenNs,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.AdvertisingID, err)
	}
	return nil
}
