package timeseries

import "nrgchamp/homectl/internal/clock"

// Interpolator estimates the value of a DataFrame at an arbitrary
// timestamp. It returns false if no estimate can be made (the frame is
// empty, or the strategy requires neighbours that don't exist).
type Interpolator[T any] func(f *DataFrame[T], t clock.DateTime) (T, bool)

// LastSeen estimates as the value of PrevOrAt(t), or nothing if the frame
// has no point at or before t.
func LastSeen[T any]() Interpolator[T] {
	return func(f *DataFrame[T], t clock.DateTime) (T, bool) {
		dp, ok := f.PrevOrAt(t)
		if !ok {
			var zero T
			return zero, false
		}
		return dp.Value, true
	}
}

// Linear interpolates between PrevOrAt(t) and Next(t). With no point at
// or before t there is no left boundary to interpolate from, so it
// reports no estimate rather than snapping to the next point; with no
// point after t it falls back to last-seen. If both collapse onto t,
// the exact value is returned.
func Linear[T any](toF func(T) float64, fromF func(float64) T) Interpolator[T] {
	return func(f *DataFrame[T], t clock.DateTime) (T, bool) {
		prev, hasPrev := f.PrevOrAt(t)
		if hasPrev && prev.Timestamp.Equal(t) {
			return prev.Value, true
		}
		if !hasPrev {
			var zero T
			return zero, false
		}
		next, hasNext := f.Next(t)
		if !hasNext {
			return prev.Value, true
		}
		t0, t1 := prev.Timestamp, next.Timestamp
		total := t1.Sub(t0).AsHoursF64()
		if total == 0 {
			return prev.Value, true
		}
		frac := t.Sub(t0).AsHoursF64() / total
		v0, v1 := toF(prev.Value), toF(next.Value)
		return fromF(v0 + (v1-v0)*frac), true
	}
}
