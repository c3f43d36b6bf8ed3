package command

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/clock"
)

// invalidate drops the cache entry for key atomically so the next reader
// re-queries; this is never skipped on a write path, because the cache
// is never the source of truth.
func (s *Store) invalidate(key string) {
	s.cacheMu.Lock()
	entry, ok := s.cache[key]
	s.cacheMu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.valid = false
	entry.rows = nil
	entry.mu.Unlock()
}

// GetLatestCommand returns the most recent command for target created at
// or after since, served from the per-target cache when since falls
// inside CacheWindow. Concurrent misses on the same target coalesce into
// one DB query.
func (s *Store) GetLatestCommand(ctx context.Context, target Target, since clock.DateTime) (*Execution, error) {
	rows, err := s.getAllForTarget(ctx, target, since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetAllCommandsForTarget returns every command for target created at or
// after since, newest first.
func (s *Store) GetAllCommandsForTarget(ctx context.Context, target Target, since clock.DateTime) ([]Execution, error) {
	return s.getAllForTarget(ctx, target, since)
}

func (s *Store) getAllForTarget(ctx context.Context, target Target, since clock.DateTime) ([]Execution, error) {
	cacheFloor := clock.Now().Add(clock.FromStd(-CacheWindow))
	if since.Before(cacheFloor) {
		// caller's since predates what the cache covers: query the DB
		// directly and leave the cache untouched.
		return s.queryForTarget(ctx, target, since)
	}

	key := target.Key()
	s.cacheMu.Lock()
	entry, ok := s.cache[key]
	if !ok {
		entry = &targetCache{}
		s.cache[key] = entry
	}
	s.cacheMu.Unlock()

	entry.mu.Lock()
	if entry.valid && !since.Before(entry.since) {
		rows := entry.rows
		entry.mu.Unlock()
		return filterSince(rows, since), nil
	}
	if entry.loading != nil {
		lf := entry.loading
		entry.mu.Unlock()
		<-lf.done
		if lf.err != nil {
			return nil, lf.err
		}
		return filterSince(lf.rows, since), nil
	}
	lf := &loadFuture{done: make(chan struct{})}
	entry.loading = lf
	entry.mu.Unlock()

	rows, err := s.queryForTarget(ctx, target, cacheFloor)

	entry.mu.Lock()
	lf.rows, lf.err = rows, err
	close(lf.done)
	entry.loading = nil
	if err == nil {
		entry.rows = rows
		entry.since = cacheFloor
		entry.valid = true
	}
	entry.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return filterSince(rows, since), nil
}

func filterSince(rows []Execution, since clock.DateTime) []Execution {
	out := make([]Execution, 0, len(rows))
	for _, r := range rows {
		if !r.Created.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) queryForTarget(ctx context.Context, target Target, since clock.DateTime) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, created, status, error, source_type, source_id, correlation_id
		FROM commands
		WHERE target_key = ? AND created >= ?
		ORDER BY created DESC
	`, target.Key(), since.Time().UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("query commands for target: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}
