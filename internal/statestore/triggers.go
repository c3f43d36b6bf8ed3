package statestore

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
)

// AddUserTrigger appends one user-originated intent. Unlike Add on
// readings, triggers are never deduped: a repeated identical trigger
// (e.g. the same button pressed twice) still needs to re-resolve the
// debounce window and re-run the planner's reaction to it.
func (s *Store) AddUserTrigger(ctx context.Context, trig homestate.UserTrigger) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO user_triggers(target, value, timestamp) VALUES (?, ?, ?)`,
		trig.Target, trig.Value, trig.Timestamp.Time().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("insert user trigger for %s: %w", trig.Target, err)
	}
	return nil
}

// AllUserTriggersSince loads every trigger recorded at or after since,
// feeding snapshot.Calculator's per-tick context build.
func (s *Store) AllUserTriggersSince(ctx context.Context, since clock.DateTime) ([]homestate.UserTrigger, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT target, value, timestamp FROM user_triggers WHERE timestamp >= ? ORDER BY timestamp ASC`,
		since.Time().UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("query user triggers: %w", err)
	}
	defer rows.Close()

	var out []homestate.UserTrigger
	for rows.Next() {
		var trig homestate.UserTrigger
		var ts int64
		if err := rows.Scan(&trig.Target, &trig.Value, &ts); err != nil {
			return nil, fmt.Errorf("scan user trigger: %w", err)
		}
		trig.Timestamp = clock.FromTime(microsToTime(ts))
		out = append(out, trig)
	}
	return out, rows.Err()
}

// AddState implements ingest.Applier, discarding the dedup-skip flag
// Add reports: the incoming pipeline only cares whether the write
// failed, not whether it was a no-op dedup.
func (s *Store) AddState(ctx context.Context, id extid.ID, value float64, at clock.DateTime) error {
	_, err := s.Add(ctx, id, value, at)
	return err
}

// AddItemAvailability implements ingest.Applier on top of MarkSeen,
// using DefaultOfflineAfter since the incoming pipeline doesn't carry a
// per-item override.
func (s *Store) AddItemAvailability(ctx context.Context, source, item string, seen clock.DateTime) error {
	return s.MarkSeen(ctx, source, item, seen, DefaultOfflineAfter)
}
