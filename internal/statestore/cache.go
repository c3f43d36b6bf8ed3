package statestore

import (
	"context"
	"sync"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/timeseries"
)

// cacheEntry holds the current cached DataFrame for one tag over a
// rolling window, plus a coalescing guard so concurrent misses on the
// same tag issue a single DB load (try_get_with-style).
type cacheEntry struct {
	mu      sync.Mutex
	valid   bool
	frame   *timeseries.DataFrame[float64]
	window  clock.DateTimeRange
	loading *loadFuture
}

type loadFuture struct {
	done  chan struct{}
	frame *timeseries.DataFrame[float64]
	err   error
}

// covers reports whether the cached window fully covers the requested
// window (cache windows only ever grow forward from Open to the current
// rolling edge, so a superset check is a simple range containment test).
func (e *cacheEntry) covers(r clock.DateTimeRange) bool {
	return e.valid && !r.Start.Before(e.window.Start) && !r.End.After(e.window.End)
}

// getOrLoad returns the cached frame for tagID/key if it covers window,
// otherwise loads it (coalescing concurrent misses) and populates the
// cache. The coalesced future always runs after any invalidation that
// happened before this call started, because invalidate() takes the same
// per-entry lock.
func (s *Store) getOrLoad(ctx context.Context, tagID int64, key string, window clock.DateTimeRange) (*timeseries.DataFrame[float64], error) {
	s.cacheMu.Lock()
	entry, ok := s.cache[key]
	if !ok {
		entry = &cacheEntry{}
		s.cache[key] = entry
	}
	s.cacheMu.Unlock()

	entry.mu.Lock()
	if entry.covers(window) {
		f := entry.frame
		entry.mu.Unlock()
		return f, nil
	}
	if entry.loading != nil {
		lf := entry.loading
		entry.mu.Unlock()
		<-lf.done
		return lf.frame, lf.err
	}
	lf := &loadFuture{done: make(chan struct{})}
	entry.loading = lf
	entry.mu.Unlock()

	frame, err := s.loadWindow(ctx, tagID, window)

	entry.mu.Lock()
	lf.frame, lf.err = frame, err
	close(lf.done)
	entry.loading = nil
	if err == nil {
		entry.frame = frame
		entry.window = window
		entry.valid = true
	}
	entry.mu.Unlock()

	return frame, err
}

// invalidate drops the cache entry for key atomically so the next reader
// re-queries; this is never skipped on a write path, preload failure, or
// explicit invalidation, because the cache is never the source of truth.
func (s *Store) invalidate(key string) {
	s.cacheMu.Lock()
	entry, ok := s.cache[key]
	s.cacheMu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.valid = false
	entry.frame = nil
	entry.mu.Unlock()
}

// loadWindow issues a single query combining all points inside window
// plus one point strictly before window.Start and one strictly after
// window.End, so interpolation at either boundary is exact.
func (s *Store) loadWindow(ctx context.Context, tagID int64, window clock.DateTimeRange) (*timeseries.DataFrame[float64], error) {
	startMicro := window.Start.Time().UnixMicro()
	endMicro := window.End.Time().UnixMicro()

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT value, timestamp FROM readings
		WHERE tag_id = ? AND timestamp >= ? AND timestamp <= ?
		UNION ALL
		SELECT * FROM (SELECT value, timestamp FROM readings
			WHERE tag_id = ? AND timestamp < ?
			ORDER BY timestamp DESC LIMIT 1)
		UNION ALL
		SELECT * FROM (SELECT value, timestamp FROM readings
			WHERE tag_id = ? AND timestamp > ?
			ORDER BY timestamp ASC LIMIT 1)
	`, tagID, startMicro, endMicro, tagID, startMicro, tagID, endMicro)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pts []timeseries.DataPoint[float64]
	for rows.Next() {
		var value float64
		var ts int64
		if err := rows.Scan(&value, &ts); err != nil {
			return nil, err
		}
		pts = append(pts, timeseries.DataPoint[float64]{
			Value:     value,
			Timestamp: clock.FromTime(microsToTime(ts)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return timeseries.New(pts), nil
}
