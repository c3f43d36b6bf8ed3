package timeseries

import (
	"testing"
	"time"

	"nrgchamp/homectl/internal/clock"
)

func mk(h, m int) clock.DateTime {
	return clock.FromTime(time.Date(2024, 9, 10, h, m, 0, 0, time.UTC))
}

func toF(v float64) float64   { return v }
func fromF(f float64) float64 { return f }

func TestInsertDedupOnEqualPrevValue(t *testing.T) {
	f := New([]DataPoint[float64]{{Value: 10, Timestamp: mk(14, 0)}})
	eq := func(a, b float64) bool { return a == b }

	f.Insert(DataPoint[float64]{Value: 10, Timestamp: mk(15, 0)}, eq)
	if f.Len() != 1 {
		t.Fatalf("expected dedup no-op, got %d points", f.Len())
	}

	f.Insert(DataPoint[float64]{Value: 20, Timestamp: mk(15, 0)}, eq)
	if f.Len() != 2 {
		t.Fatalf("expected a new point for distinct value, got %d", f.Len())
	}
}

func TestRetainRangeIsIdempotent(t *testing.T) {
	f := New([]DataPoint[float64]{
		{Value: 10, Timestamp: mk(14, 0)},
		{Value: 20, Timestamp: mk(16, 0)},
		{Value: 30, Timestamp: mk(18, 0)},
	})
	r := clock.NewRange(mk(13, 0), mk(19, 0))
	interp := LastSeen[float64]()

	once, _ := RetainRange(f, r, interp, interp)
	twice, _ := RetainRange(once, r, interp, interp)

	if once.Len() != twice.Len() {
		t.Fatalf("retain_range not idempotent: %d vs %d points", once.Len(), twice.Len())
	}
	for i, p := range once.Points() {
		if p != twice.Points()[i] {
			t.Fatalf("retain_range not idempotent at index %d: %v vs %v", i, p, twice.Points()[i])
		}
	}
}

func TestLinearInterpolationMidpoint(t *testing.T) {
	f := New([]DataPoint[float64]{
		{Value: 10, Timestamp: mk(14, 0)},
		{Value: 20, Timestamp: mk(16, 0)},
	})
	interp := Linear(toF, fromF)
	mid := clock.NewRange(mk(14, 0), mk(16, 0)).Midpoint()
	v, ok := interp(f, mid)
	if !ok {
		t.Fatal("expected an estimate")
	}
	if v != 15 {
		t.Fatalf("expected exact midpoint average 15, got %v", v)
	}
}

func testSeries() *TimeSeries[float64] {
	f := New([]DataPoint[float64]{
		{Value: 10, Timestamp: mk(14, 0)},
		{Value: 30, Timestamp: mk(18, 0)},
		{Value: 20, Timestamp: mk(16, 0)},
	})
	r := clock.NewRange(mk(13, 0), mk(19, 0))
	return NewTimeSeries(f, r, Linear(toF, fromF))
}

func TestAreaAndMean(t *testing.T) {
	ts := testSeries()
	interp := Linear(toF, fromF)

	// linear interpolation at the range start (13:00) has no point at or
	// before it to interpolate from, so no boundary point is
	// synthesized there; at 19:00 it falls back to last-seen (30). The
	// segments 14:00-16:00, 16:00-18:00 and 18:00-19:00 are what
	// AreaInUnitHours sums, each at its midpoint value.
	expectedArea := (10.0+20.0)/2.0*2.0 + (20.0+30.0)/2.0*2.0 + (30.0+30.0)/2.0*1.0
	if got := AreaInUnitHours(ts, toF, interp); got != expectedArea {
		t.Fatalf("expected area %v, got %v", expectedArea, got)
	}

	expectedMean := expectedArea / 5.0
	if got := Mean(ts, toF, interp); got != expectedMean {
		t.Fatalf("expected mean %v, got %v", expectedMean, got)
	}
}

func TestNoEstimateBeforeAnyData(t *testing.T) {
	f := New([]DataPoint[float64]{{Value: 10, Timestamp: mk(14, 0)}})
	interp := LastSeen[float64]()
	if _, ok := interp(f, mk(12, 0)); ok {
		t.Fatal("expected no estimate before the first point under last-seen")
	}
}

func TestCombinedSkipsTimestampsMissingOnEitherSide(t *testing.T) {
	a := New([]DataPoint[float64]{{Value: 19.93, Timestamp: mk(15, 23)}})
	b := New([]DataPoint[float64]{{Value: 61.1, Timestamp: mk(15, 24)}})
	now := mk(20, 0)

	merge := func(x DataPoint[float64], y DataPoint[float64]) DataPoint[float64] {
		return DataPoint[float64]{Value: x.Value + y.Value, Timestamp: x.Timestamp}
	}
	out := Combined(a, b, LastSeen[float64](), LastSeen[float64](), now, merge)
	// b has nothing to interpolate from at a's only timestamp (15:23),
	// so that union timestamp is dropped; 15:24 and now both resolve on
	// both sides.
	if out.Len() != 2 {
		t.Fatalf("expected two mergeable timestamps, got %d", out.Len())
	}
}
