package homestate

import (
	"context"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// OutsideTooWarmForColdAir is the shared cutoff: once it's this warm
// outside, neither cold-air-coming-in nor automatic-temperature-increase
// can be true regardless of window state.
const OutsideTooWarmForColdAir = 22.0

// RegisterColdAirComingIn wires id to a calculator that reports true iff
// it is cold outside and the room's window/door is open.
func RegisterColdAirComingIn(reg *Registry, id string, outsideTempID, windowOpenedID extid.ID) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		outsideTemp, err := c.GetPersistent(ctx, outsideTempID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}
		if outsideTemp.Value > OutsideTooWarmForColdAir {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: outsideTemp.Timestamp}, nil
		}

		windowOpened, err := c.GetPersistent(ctx, windowOpenedID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}
		return windowOpened, nil
	})
}

// automaticTemperatureIncreaseThresholds, named per spec property 8a-d.
const (
	windowClosedStaleAfter  = 30 * 60 // seconds: (8b) no longer assumed active
	windowJustOpenedWithin  = 5 * 60  // seconds: (8c) assumed active regardless of data
	significantIncreaseDeg  = 0.1     // (8d) minimum 5-minute rise counted as still increasing
)

// RegisterAutomaticTemperatureIncrease wires id to a calculator
// implementing the open-window heating-boost heuristic: once a window
// has been open and then closed, assume the room is still recovering
// lost heat for a while, backed by an actual temperature rise once
// enough readings exist.
func RegisterAutomaticTemperatureIncrease(reg *Registry, id string, outsideTempID, windowOpenedID, roomTempID extid.ID) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		outsideTemp, err := c.GetPersistent(ctx, outsideTempID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}
		if outsideTemp.Value > OutsideTooWarmForColdAir {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: outsideTemp.Timestamp}, nil
		}

		windowOpened, err := c.GetPersistent(ctx, windowOpenedID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}
		if f64ToBool(windowOpened.Value) {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: windowOpened.Timestamp}, nil
		}

		elapsed := c.Now().Sub(windowOpened.Timestamp)
		if elapsed.Std().Seconds() > windowClosedStaleAfter {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: windowOpened.Timestamp}, nil
		}
		if elapsed.Std().Seconds() < windowJustOpenedWithin {
			return timeseries.DataPoint[float64]{Value: boolToF64(true), Timestamp: windowOpened.Timestamp}, nil
		}

		interp := timeseries.Linear(identityF64, identityF64)
		series, err := c.PersistentSeries(ctx, roomTempID, windowOpened.Timestamp, interp)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}

		if series.LenNonEstimated() < 2 {
			return timeseries.DataPoint[float64]{Value: boolToF64(true), Timestamp: windowOpened.Timestamp}, nil
		}

		fiveMinAgo := c.Now().Add(clock.Seconds(-300))
		current, curOK := interp(series.Frame, c.Now())
		start, startOK := interp(series.Frame, fiveMinAgo)

		if !curOK || !startOK {
			return timeseries.DataPoint[float64]{Value: boolToF64(true), Timestamp: windowOpened.Timestamp}, nil
		}

		diff := current - start
		significant := diff >= significantIncreaseDeg
		return timeseries.DataPoint[float64]{Value: boolToF64(significant), Timestamp: c.Now()}, nil
	})
}

func identityF64(v float64) float64 { return v }
