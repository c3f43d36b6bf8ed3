// Package timeseries implements the ordered-by-timestamp DataFrame and
// the windowed, interpolating TimeSeries built on top of it.
package timeseries

import (
	"sort"

	"nrgchamp/homectl/internal/clock"
)

// DataPoint is a (value, timestamp) pair; within one DataFrame, timestamps
// are monotone non-decreasing.
type DataPoint[T any] struct {
	Value     T
	Timestamp clock.DateTime
}

// DataFrame is an ordered-by-timestamp map DateTime -> DataPoint[T], kept
// as a sorted slice since Go has no balanced-tree container in the
// standard library; predecessor/successor queries use binary search.
type DataFrame[T any] struct {
	points []DataPoint[T]
}

// Empty returns a DataFrame with no points.
func Empty[T any]() *DataFrame[T] { return &DataFrame[T]{} }

// New sorts deterministically by (timestamp, insertion order) and
// deduplicates exact timestamps by keeping the last one seen.
func New[T any](pts []DataPoint[T]) *DataFrame[T] {
	sorted := make([]DataPoint[T], len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	out := make([]DataPoint[T], 0, len(sorted))
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(p.Timestamp) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return &DataFrame[T]{points: out}
}

func (f *DataFrame[T]) Len() int { return len(f.points) }

func (f *DataFrame[T]) Points() []DataPoint[T] {
	out := make([]DataPoint[T], len(f.points))
	copy(out, f.points)
	return out
}

func (f *DataFrame[T]) IsEmpty() bool { return len(f.points) == 0 }

func (f *DataFrame[T]) First() (DataPoint[T], bool) {
	if len(f.points) == 0 {
		var zero DataPoint[T]
		return zero, false
	}
	return f.points[0], true
}

func (f *DataFrame[T]) Last() (DataPoint[T], bool) {
	if len(f.points) == 0 {
		var zero DataPoint[T]
		return zero, false
	}
	return f.points[len(f.points)-1], true
}

// lowerBound returns the index of the first point with Timestamp >= t.
func (f *DataFrame[T]) lowerBound(t clock.DateTime) int {
	return sort.Search(len(f.points), func(i int) bool {
		return !f.points[i].Timestamp.Before(t)
	})
}

// PrevOrAt returns the greatest point with ts <= t.
func (f *DataFrame[T]) PrevOrAt(t clock.DateTime) (DataPoint[T], bool) {
	i := f.lowerBound(t)
	if i < len(f.points) && f.points[i].Timestamp.Equal(t) {
		return f.points[i], true
	}
	if i == 0 {
		var zero DataPoint[T]
		return zero, false
	}
	return f.points[i-1], true
}

// Prev returns the greatest point with ts strictly < t.
func (f *DataFrame[T]) Prev(t clock.DateTime) (DataPoint[T], bool) {
	i := f.lowerBound(t)
	if i == 0 {
		var zero DataPoint[T]
		return zero, false
	}
	return f.points[i-1], true
}

// Next returns the least point with ts strictly > t.
func (f *DataFrame[T]) Next(t clock.DateTime) (DataPoint[T], bool) {
	i := f.lowerBound(t)
	for i < len(f.points) && f.points[i].Timestamp.Equal(t) {
		i++
	}
	if i >= len(f.points) {
		var zero DataPoint[T]
		return zero, false
	}
	return f.points[i], true
}

// Insert performs a dedup-on-equal-prev-value insert: if the point
// immediately preceding t (strictly before) has an equal value (per eq),
// the frame is left unchanged. Otherwise the point at t is inserted or
// replaced.
func (f *DataFrame[T]) Insert(dp DataPoint[T], eq func(a, b T) bool) {
	if prev, ok := f.Prev(dp.Timestamp); ok && eq(prev.Value, dp.Value) {
		return
	}
	i := f.lowerBound(dp.Timestamp)
	if i < len(f.points) && f.points[i].Timestamp.Equal(dp.Timestamp) {
		f.points[i] = dp
		return
	}
	f.points = append(f.points, DataPoint[T]{})
	copy(f.points[i+1:], f.points[i:len(f.points)-1])
	f.points[i] = dp
}

// Map transforms every point's value, preserving timestamps and order.
func Map[T, U any](f *DataFrame[T], fn func(T) U) *DataFrame[U] {
	out := make([]DataPoint[U], len(f.points))
	for i, p := range f.points {
		out[i] = DataPoint[U]{Value: fn(p.Value), Timestamp: p.Timestamp}
	}
	return &DataFrame[U]{points: out}
}

// LatestWhere returns the last (by timestamp) point matching pred.
func (f *DataFrame[T]) LatestWhere(pred func(DataPoint[T]) bool) (DataPoint[T], bool) {
	for i := len(f.points) - 1; i >= 0; i-- {
		if pred(f.points[i]) {
			return f.points[i], true
		}
	}
	var zero DataPoint[T]
	return zero, false
}

// Pair is an adjacent (current, next) point pairing.
type Pair[T any] struct {
	Current DataPoint[T]
	Next    DataPoint[T]
	HasNext bool
}

// CurrentAndNext returns every point paired with the point immediately
// following it in the frame.
func (f *DataFrame[T]) CurrentAndNext() []Pair[T] {
	out := make([]Pair[T], len(f.points))
	for i, p := range f.points {
		if i+1 < len(f.points) {
			out[i] = Pair[T]{Current: p, Next: f.points[i+1], HasNext: true}
		} else {
			out[i] = Pair[T]{Current: p}
		}
	}
	return out
}

// Slice returns the points with start <= ts <= end, no interpolation.
func (f *DataFrame[T]) Slice(r clock.DateTimeRange) []DataPoint[T] {
	var out []DataPoint[T]
	for _, p := range f.points {
		if r.Contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	return out
}
