package timeseries

import "nrgchamp/homectl/internal/clock"

// TimeSeries is a DataFrame trimmed to a range plus how many of its
// boundary points were synthesized (estimated) rather than measured.
type TimeSeries[T any] struct {
	Frame        *DataFrame[T]
	Range        clock.DateTimeRange
	NumEstimated int
}

// NewTimeSeries trims df to r, inserting interpolated boundary points
// where the measured data doesn't already land exactly on Start/End.
func NewTimeSeries[T any](df *DataFrame[T], r clock.DateTimeRange, interp Interpolator[T]) *TimeSeries[T] {
	trimmed, numEstimated := RetainRange(df, r, interp, interp)
	return &TimeSeries[T]{Frame: trimmed, Range: r, NumEstimated: numEstimated}
}

// LenNonEstimated is the number of points in the frame that were
// actually measured rather than synthesized at the boundary.
func (s *TimeSeries[T]) LenNonEstimated() int {
	return s.Frame.Len() - s.NumEstimated
}

// CombinedSeries pointwise-merges the frames of two series via Combined;
// the result is not trimmed to either series' range.
func CombinedSeries[A, B, R any](
	a *TimeSeries[A], b *TimeSeries[B],
	interpA Interpolator[A], interpB Interpolator[B],
	now clock.DateTime,
	merge func(DataPoint[A], DataPoint[B]) DataPoint[R],
) *DataFrame[R] {
	return Combined(a.Frame, b.Frame, interpA, interpB, now, merge)
}

// AreaInUnitHours computes the trapezoidal (midpoint-rule) area under the
// series in value*hours: for each consecutive pair of points, the
// segment contributes the interpolated value at the pair's midpoint
// times the pair's duration in hours.
func AreaInUnitHours[T any](s *TimeSeries[T], toF func(T) float64, interp Interpolator[T]) float64 {
	total := 0.0
	for _, pair := range s.Frame.CurrentAndNext() {
		if !pair.HasNext {
			continue
		}
		mid := clock.NewRange(pair.Current.Timestamp, pair.Next.Timestamp).Midpoint()
		v, ok := interp(s.Frame, mid)
		if !ok {
			continue
		}
		hours := pair.Next.Timestamp.Sub(pair.Current.Timestamp).AsHoursF64()
		total += toF(v) * hours
	}
	return total
}

// WeightedSumAndDurationInUnitHours returns the numerator and
// denominator of Mean separately, for callers (e.g. mould-risk
// comparisons) that need the duration too.
func WeightedSumAndDurationInUnitHours[T any](s *TimeSeries[T], toF func(T) float64, interp Interpolator[T]) (sum, hours float64) {
	for _, pair := range s.Frame.CurrentAndNext() {
		if !pair.HasNext {
			continue
		}
		mid := clock.NewRange(pair.Current.Timestamp, pair.Next.Timestamp).Midpoint()
		v, ok := interp(s.Frame, mid)
		if !ok {
			continue
		}
		segHours := pair.Next.Timestamp.Sub(pair.Current.Timestamp).AsHoursF64()
		sum += toF(v) * segHours
		hours += segHours
	}
	return sum, hours
}

// Mean is the duration-weighted average value over the series; if the
// total duration is zero, the first value is returned instead of
// dividing by zero.
func Mean[T any](s *TimeSeries[T], toF func(T) float64, interp Interpolator[T]) float64 {
	sum, hours := WeightedSumAndDurationInUnitHours(s, toF, interp)
	if hours == 0 {
		if first, ok := s.Frame.First(); ok {
			return toF(first.Value)
		}
		return 0
	}
	return sum / hours
}
