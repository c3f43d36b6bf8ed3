package homestate

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// RiskOfMouldHumidityThreshold: below this, condensation on cold
// surfaces can't happen regardless of the dew-point comparison.
const RiskOfMouldHumidityThreshold = 70.0

// RiskOfMouldDewPointMargin: this room's dew point must run more than
// this many degrees above the reference rooms' average before it's
// flagged, since the reference rooms model "how warm the cold wall
// actually is".
const RiskOfMouldDewPointMargin = 3.0

// RegisterRiskOfMould wires id to a calculator comparing the dew point
// implied by humidityID/dewPointID against the 3-hour mean dew point
// of every room in referenceDewPointIDs, averaged.
func RegisterRiskOfMould(reg *Registry, id string, humidityID extid.ID, dewPointID string, referenceDewPointIDs []string, lookback clock.Duration) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		humidity, err := c.GetPersistent(ctx, humidityID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("risk of mould %s: humidity: %w", id, err)
		}
		if humidity.Value < RiskOfMouldHumidityThreshold {
			return timeseries.DataPoint[float64]{Value: boolToF64(false), Timestamp: humidity.Timestamp}, nil
		}

		thisDewPoint, ok, err := c.Get(ctx, dewPointID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("risk of mould %s: dew point: %w", id, err)
		}
		if !ok {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("risk of mould %s: dew point %s has no calculator registered", id, dewPointID)
		}

		if len(referenceDewPointIDs) == 0 {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("risk of mould %s: no reference rooms configured", id)
		}

		refMean, err := referenceDewPointMean(ctx, c, referenceDewPointIDs, lookback)
		if err != nil {
			return timeseries.DataPoint[float64]{}, err
		}

		risk := thisDewPoint.Value-refMean > RiskOfMouldDewPointMargin
		return timeseries.DataPoint[float64]{Value: boolToF64(risk), Timestamp: thisDewPoint.Timestamp}, nil
	})
}

func referenceDewPointMean(ctx context.Context, c *Context, ids []string, lookback clock.Duration) (float64, error) {
	since := c.Now().Add(clock.FromStd(-lookback.Std()))
	interp := timeseries.Linear(identityF64, identityF64)

	sum := 0.0
	for _, refID := range ids {
		frame, err := c.AllSince(ctx, refID, nil, since)
		if err != nil {
			return 0, fmt.Errorf("reference dew point %s: %w", refID, err)
		}
		ts := &timeseries.TimeSeries[float64]{Frame: frame, Range: clock.NewRange(since, c.Now())}
		sum += timeseries.Mean(ts, identityF64, interp)
	}
	return sum / float64(len(ids)), nil
}
