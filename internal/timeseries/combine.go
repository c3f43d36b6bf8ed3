package timeseries

import (
	"sort"

	"nrgchamp/homectl/internal/clock"
)

// Combined iterates the union of a's timestamps, b's timestamps, and now,
// and for each timestamp where both series interpolate to a value, emits
// merge(dpA, dpB). Timestamps where either side has no estimate are
// skipped.
func Combined[A, B, R any](
	a *DataFrame[A], b *DataFrame[B],
	interpA Interpolator[A], interpB Interpolator[B],
	now clock.DateTime,
	merge func(DataPoint[A], DataPoint[B]) DataPoint[R],
) *DataFrame[R] {
	seen := make(map[int64]clock.DateTime)
	add := func(t clock.DateTime) {
		seen[t.Time().UnixMicro()] = t
	}
	for _, p := range a.points {
		add(p.Timestamp)
	}
	for _, p := range b.points {
		add(p.Timestamp)
	}
	add(now)

	timestamps := make([]clock.DateTime, 0, len(seen))
	for _, t := range seen {
		timestamps = append(timestamps, t)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	out := make([]DataPoint[R], 0, len(timestamps))
	for _, t := range timestamps {
		va, okA := interpA(a, t)
		if !okA {
			continue
		}
		vb, okB := interpB(b, t)
		if !okB {
			continue
		}
		out = append(out, merge(DataPoint[A]{Value: va, Timestamp: t}, DataPoint[B]{Value: vb, Timestamp: t}))
	}
	return New(out)
}

// Reduce folds a non-empty slice of same-typed frames pointwise via
// repeated Combined, using identical interpolation on every input.
func Reduce[T any](frames []*DataFrame[T], interp Interpolator[T], now clock.DateTime, merge func(T, T) T) *DataFrame[T] {
	if len(frames) == 0 {
		return Empty[T]()
	}
	acc := frames[0]
	for _, next := range frames[1:] {
		acc = Combined(acc, next, interp, interp, now, func(a DataPoint[T], b DataPoint[T]) DataPoint[T] {
			return DataPoint[T]{Value: merge(a.Value, b.Value), Timestamp: a.Timestamp}
		})
	}
	return acc
}
