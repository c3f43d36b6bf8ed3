package statestore

import (
	"context"
	"fmt"
	"time"

	"nrgchamp/homectl/internal/clock"
)

// DefaultOfflineAfter is the considered-offline window used for items
// reported through the generic ingest pipeline, which has no per-item
// override of its own.
const DefaultOfflineAfter = 30 * time.Minute

// Availability is one row of the availability table: the last time an
// integration source saw an item, and whether it's currently marked
// offline.
type Availability struct {
	Source                  string
	Item                    string
	LastSeen                clock.DateTime
	MarkedOffline            bool
	ConsideredOfflineAfter   time.Duration
}

// MarkSeen upserts the last-seen timestamp for (source, item), clearing
// any offline mark.
func (s *Store) MarkSeen(ctx context.Context, source, item string, ts clock.DateTime, consideredOfflineAfter time.Duration) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO availability(source, item, last_seen, marked_offline, considered_offline_after, entry_updated)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(source, item) DO UPDATE SET
			last_seen = excluded.last_seen,
			marked_offline = 0,
			considered_offline_after = excluded.considered_offline_after,
			entry_updated = excluded.entry_updated
	`, source, item, ts.Time().UnixMicro(), consideredOfflineAfter.Microseconds(), clock.Now().Time().UnixMicro())
	if err != nil {
		return fmt.Errorf("mark seen %s/%s: %w", source, item, err)
	}
	return nil
}

// MarkOffline flags (source, item) as offline without touching last_seen.
func (s *Store) MarkOffline(ctx context.Context, source, item string) error {
	_, err := s.db.sql.ExecContext(ctx, `
		UPDATE availability SET marked_offline = 1, entry_updated = ?
		WHERE source = ? AND item = ?
	`, clock.Now().Time().UnixMicro(), source, item)
	if err != nil {
		return fmt.Errorf("mark offline %s/%s: %w", source, item, err)
	}
	return nil
}

// StaleItems returns every item whose last_seen predates
// now-considered_offline_after and isn't already marked offline.
func (s *Store) StaleItems(ctx context.Context, now clock.DateTime) ([]Availability, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT source, item, last_seen, marked_offline, considered_offline_after
		FROM availability
		WHERE marked_offline = 0 AND (? - last_seen) > considered_offline_after
	`, now.Time().UnixMicro())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		var lastSeenMicros int64
		var offlineAfterMicros int64
		if err := rows.Scan(&a.Source, &a.Item, &lastSeenMicros, &a.MarkedOffline, &offlineAfterMicros); err != nil {
			return nil, err
		}
		a.LastSeen = clock.FromTime(microsToTime(lastSeenMicros))
		a.ConsideredOfflineAfter = time.Duration(offlineAfterMicros) * time.Microsecond
		out = append(out, a)
	}
	return out, rows.Err()
}
