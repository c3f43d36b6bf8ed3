package timeseries

import "nrgchamp/homectl/internal/clock"

// RetainRange ensures points exist at Start and End (inserting an
// interpolated point if missing), then drops everything outside the
// range. It returns the trimmed frame and how many boundary points were
// synthesized (0, 1, or 2).
func RetainRange[T any](f *DataFrame[T], r clock.DateTimeRange, startInterp, endInterp Interpolator[T]) (*DataFrame[T], int) {
	pts := f.Slice(r)
	numEstimated := 0

	hasStart := len(pts) > 0 && pts[0].Timestamp.Equal(r.Start)
	if !hasStart {
		if v, ok := startInterp(f, r.Start); ok {
			pts = append([]DataPoint[T]{{Value: v, Timestamp: r.Start}}, pts...)
			numEstimated++
		}
	}

	hasEnd := len(pts) > 0 && pts[len(pts)-1].Timestamp.Equal(r.End)
	if !hasEnd {
		if v, ok := endInterp(f, r.End); ok {
			pts = append(pts, DataPoint[T]{Value: v, Timestamp: r.End})
			numEstimated++
		}
	}

	return New(pts), numEstimated
}

// RetainRangeWithContextBefore additionally preserves one point strictly
// before Start, needed for correct last-seen interpolation once callers
// trim further.
func RetainRangeWithContextBefore[T any](f *DataFrame[T], r clock.DateTimeRange, startInterp, endInterp Interpolator[T]) (*DataFrame[T], int) {
	base, numEstimated := RetainRange(f, r, startInterp, endInterp)
	before, ok := f.Prev(r.Start)
	if !ok {
		return base, numEstimated
	}
	pts := append([]DataPoint[T]{before}, base.Points()...)
	return New(pts), numEstimated
}
