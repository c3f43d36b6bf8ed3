package homestate

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
	"nrgchamp/homectl/internal/unit"
)

// RegisterOccupancyProbability wires id to a noisy-OR fusion of a set of
// boolean presence signals (couch/bed/seat sensors): the probability
// that at least one of them currently indicates presence, treating each
// reading of "true" as full confidence and "false" as zero.
func RegisterOccupancyProbability(reg *Registry, id string, presenceIDs []extid.ID) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		if len(presenceIDs) == 0 {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("occupancy %s: no presence sensors configured", id)
		}

		absence := unit.Probability(1.0)
		var latest timeseries.DataPoint[float64]
		for i, pid := range presenceIDs {
			dp, err := c.GetPersistent(ctx, pid)
			if err != nil {
				return timeseries.DataPoint[float64]{}, fmt.Errorf("occupancy %s: %s: %w", id, pid, err)
			}
			p := unit.Probability(0)
			if f64ToBool(dp.Value) {
				p = unit.Probability(1)
			}
			absence = absence.Times(p.Inv())
			if i == 0 || dp.Timestamp.After(latest.Timestamp) {
				latest = dp
			}
		}

		return timeseries.DataPoint[float64]{Value: absence.Inv().Float64(), Timestamp: latest.Timestamp}, nil
	})
}
