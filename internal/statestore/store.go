package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// DefaultCacheWindow is the rolling window W the per-tag cache keeps
// warm; a few hours by default, generous enough for the derived
// calculators' 8h history load.
const DefaultCacheWindow = 8 * time.Hour

// Store is the persistent state store: append-only readings behind a
// per-tag DataFrame cache.
type Store struct {
	db          *DB
	cacheWindow time.Duration

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
}

func New(db *DB) *Store {
	return &Store{db: db, cacheWindow: DefaultCacheWindow, cache: make(map[string]*cacheEntry)}
}

func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}

// Add appends a reading, deduping when the latest stored value for the
// tag already equals value. It returns whether a row was actually
// written (false on a dedup skip); write errors never poison the cache.
func (s *Store) Add(ctx context.Context, id extid.ID, value float64, ts clock.DateTime) (bool, error) {
	tagID, err := s.tagID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("resolve tag: %w", err)
	}

	var latest float64
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT value FROM readings WHERE tag_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, tagID,
	).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("read latest for %s: %w", id, err)
	}
	if err == nil && latest == value {
		return false, nil
	}

	if _, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO readings(tag_id, value, timestamp) VALUES (?, ?, ?)`,
		tagID, value, ts.Time().UnixMicro(),
	); err != nil {
		return false, fmt.Errorf("insert reading for %s: %w", id, err)
	}

	s.invalidate(id.String())
	return true, nil
}

// Current returns the latest value of id as of now.
func (s *Store) Current(ctx context.Context, id extid.ID) (timeseries.DataPoint[float64], error) {
	tagID, err := s.tagID(ctx, id)
	if err != nil {
		return timeseries.DataPoint[float64]{}, err
	}
	var value float64
	var ts int64
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT value, timestamp FROM readings WHERE tag_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, tagID,
	).Scan(&value, &ts)
	if err != nil {
		return timeseries.DataPoint[float64]{}, fmt.Errorf("no data for %s: %w", id, err)
	}
	return timeseries.DataPoint[float64]{Value: value, Timestamp: clock.FromTime(microsToTime(ts))}, nil
}

// Series returns id's readings over range, trimmed and boundary-
// interpolated per interp, going through the rolling cache.
func (s *Store) Series(ctx context.Context, id extid.ID, r clock.DateTimeRange, interp timeseries.Interpolator[float64]) (*timeseries.TimeSeries[float64], error) {
	tagID, err := s.tagID(ctx, id)
	if err != nil {
		return nil, err
	}

	cacheWindow := clock.NewRange(clock.Now().Add(clock.FromStd(-s.cacheWindow)), clock.Now())
	window := cacheWindow
	if r.Start.Before(window.Start) {
		// caller asked for an earlier `since` than the cache covers: go
		// straight to the DB and leave the cache untouched.
		frame, err := s.loadWindow(ctx, tagID, r)
		if err != nil {
			return nil, err
		}
		return timeseries.NewTimeSeries(frame, r, interp), nil
	}

	frame, err := s.getOrLoad(ctx, tagID, id.String(), window)
	if err != nil {
		return nil, err
	}
	return timeseries.NewTimeSeries(frame, r, interp), nil
}

// GetAllDataPointsInRange is a raw scan for backfill/export, bypassing
// the cache entirely.
func (s *Store) GetAllDataPointsInRange(ctx context.Context, id extid.ID, r clock.DateTimeRange) ([]timeseries.DataPoint[float64], error) {
	tagID, err := s.tagID(ctx, id)
	if err != nil {
		return nil, err
	}
	frame, err := s.loadWindow(ctx, tagID, r)
	if err != nil {
		return nil, err
	}
	return frame.Slice(r), nil
}

// Preload enumerates every known tag at startup. It loads no readings:
// each tag's cache entry is filled by its first Series call. An error
// means the tag table could not be read.
func (s *Store) Preload(ctx context.Context) ([]extid.ID, error) {
	tags, err := s.AllTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("preload: enumerate tags: %w", err)
	}
	return tags, nil
}

func (s *Store) DB() *sql.DB { return s.db.sql }
