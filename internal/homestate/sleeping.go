package homestate

import (
	"context"
	"fmt"
	"time"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

const tvOffGraceMinutes = 10

// bedWindowStartBefore returns the most recent 22:30 at or before now,
// i.e. the start of the bed window now falls in (now is assumed to
// already be inside the 22:30-13:00 window).
func bedWindowStartBefore(now clock.DateTime) clock.DateTime {
	local := now.Time().Local()
	todayStart := time.Date(local.Year(), local.Month(), local.Day(), 22, 30, 0, 0, local.Location())
	if !local.Before(todayStart) {
		return clock.FromTime(todayStart)
	}
	return clock.FromTime(todayStart.AddDate(0, 0, -1))
}

// RegisterSleeping wires id to the AnyoneSleeping heuristic: true
// through the 22:30-13:00 bed window unless the TV was already on at
// the window's start or was just switched off. While the bedroom window
// is open, if it was opened inside the bed window, the result is false;
// once it is closed again the result goes back to true, so a ventilation
// does not end sleeping for the rest of the bed window.
func RegisterSleeping(reg *Registry, id string, tvOnID, windowOpenedID extid.ID) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		if !inSleepWindow(minuteOfDay(c.Now())) {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: c.Now()}, nil
		}

		windowOpened, err := c.GetPersistent(ctx, windowOpenedID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("sleeping %s: window: %w", id, err)
		}
		if f64ToBool(windowOpened.Value) && inSleepWindow(minuteOfDay(windowOpened.Timestamp)) {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: windowOpened.Timestamp}, nil
		}

		bedStart := bedWindowStartBefore(c.Now())
		interp := timeseries.LastSeen[float64]()
		tvSeries, err := c.PersistentSeries(ctx, tvOnID, bedStart, interp)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("sleeping %s: tv series: %w", id, err)
		}

		if atStart, ok := interp(tvSeries.Frame, bedStart); ok && f64ToBool(atStart) {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: bedStart}, nil
		}

		tvNow, err := c.GetPersistent(ctx, tvOnID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("sleeping %s: tv current: %w", id, err)
		}
		graceAgo := c.Now().Add(clock.Minutes(-tvOffGraceMinutes))
		if !f64ToBool(tvNow.Value) {
			if atGrace, ok := interp(tvSeries.Frame, graceAgo); ok && f64ToBool(atGrace) {
				return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: tvNow.Timestamp}, nil
			}
		}

		return timeseries.DataPoint[float64]{Value: boolToF64(true), Timestamp: c.Now()}, nil
	})
}
