package homestate

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// HeatingMode is the scheduled heating state machine's output, encoded
// as a float64 so it rides the same generic series machinery as every
// other derived variant.
type HeatingMode float64

const (
	HeatingAway            HeatingMode = -1
	HeatingVentilation     HeatingMode = 1
	HeatingPostVentilation HeatingMode = 2
	HeatingSleep           HeatingMode = 10
	HeatingEnergySaving    HeatingMode = 11
	HeatingComfort         HeatingMode = 12
)

func (m HeatingMode) String() string {
	switch m {
	case HeatingAway:
		return "away"
	case HeatingVentilation:
		return "ventilation"
	case HeatingPostVentilation:
		return "post_ventilation"
	case HeatingSleep:
		return "sleep"
	case HeatingComfort:
		return "comfort"
	default:
		return "energy_saving"
	}
}

const (
	postVentilationMinutes = 30
	manualOverrideMinutes  = 60
	sleepWindowStartMinute = 22*60 + 30 // 22:30
	sleepWindowEndMinute   = 13 * 60    // 13:00
	comfortOnThreshold     = 0.7
	comfortOffThreshold    = 0.5
)

// EveningWindow is a configured comfort window expressed in minutes
// since local midnight, e.g. {17*60+30, 19*60+45}.
type EveningWindow struct {
	StartMinute, EndMinute int
}

func minuteOfDay(t clock.DateTime) int {
	local := t.Time().Local()
	return local.Hour()*60 + local.Minute()
}

func inSleepWindow(minute int) bool {
	return minute >= sleepWindowStartMinute || minute < sleepWindowEndMinute
}

func (w EveningWindow) contains(minute int) bool {
	return minute >= w.StartMinute && minute < w.EndMinute
}

// ScheduledHeatingInputs wires a zone's scheduled-heating calculator to
// its four upstream signals: away and window are read as persistent ids,
// occupancy as a derived id, and the manual override as a user trigger.
type ScheduledHeatingInputs struct {
	AwayID           extid.ID // home-wide presence aggregate: true = nobody home
	WindowOpenedID   extid.ID
	OccupancyID      string // derived occupancy-probability id (0..1), for comfort hysteresis
	ManualOverrideTarget string // command.Target.Key() this zone's manual override arrives on

	EveningWindows []EveningWindow // comfort windows this zone observes outside of occupancy hysteresis
}

// RegisterScheduledHeatingMode wires id to the precedence chain: Away >
// Ventilation > PostVentilation > manual override > Sleep > Comfort >
// EnergySaving.
func RegisterScheduledHeatingMode(reg *Registry, id string, in ScheduledHeatingInputs) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		away, err := c.GetPersistent(ctx, in.AwayID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("scheduled heating %s: away: %w", id, err)
		}
		if f64ToBool(away.Value) {
			return timeseries.DataPoint[float64]{Value: float64(HeatingAway), Timestamp: away.Timestamp}, nil
		}

		window, err := c.GetPersistent(ctx, in.WindowOpenedID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("scheduled heating %s: window: %w", id, err)
		}
		if f64ToBool(window.Value) {
			return timeseries.DataPoint[float64]{Value: float64(HeatingVentilation), Timestamp: window.Timestamp}, nil
		}

		sinceClosed := c.Now().Sub(window.Timestamp)
		if sinceClosed.Std().Minutes() < postVentilationMinutes {
			return timeseries.DataPoint[float64]{Value: float64(HeatingPostVentilation), Timestamp: window.Timestamp}, nil
		}

		if in.ManualOverrideTarget != "" {
			if trig, ok := c.UserTrigger(in.ManualOverrideTarget); ok {
				if c.Now().Sub(trig.Timestamp).Std().Minutes() < manualOverrideMinutes {
					return timeseries.DataPoint[float64]{Value: trig.Value, Timestamp: trig.Timestamp}, nil
				}
			}
		}

		minute := minuteOfDay(c.Now())
		if inSleepWindow(minute) {
			// Inside the sleep window the zone is in Sleep: the window is
			// closed at this point, so the condition below always holds,
			// and a ventilation earlier in the window does not end Sleep.
			if !inSleepWindow(minuteOfDay(window.Timestamp)) || !f64ToBool(window.Value) {
				return timeseries.DataPoint[float64]{Value: float64(HeatingSleep), Timestamp: c.Now()}, nil
			}
		}

		for _, ew := range in.EveningWindows {
			if ew.contains(minute) {
				return timeseries.DataPoint[float64]{Value: float64(HeatingComfort), Timestamp: c.Now()}, nil
			}
		}

		if in.OccupancyID != "" {
			occ, ok, err := c.Get(ctx, in.OccupancyID)
			if err != nil {
				return timeseries.DataPoint[float64]{}, fmt.Errorf("scheduled heating %s: occupancy: %w", id, err)
			}
			if ok {
				prevComfort := false
				if hist, hok := c.history[id]; hok {
					if last, lok := hist.Last(); lok {
						prevComfort = HeatingMode(last.Value) == HeatingComfort
					}
				}
				on := occ.Value >= comfortOnThreshold
				stayOn := prevComfort && occ.Value >= comfortOffThreshold
				if on || stayOn {
					return timeseries.DataPoint[float64]{Value: float64(HeatingComfort), Timestamp: occ.Timestamp}, nil
				}
			}
		}

		return timeseries.DataPoint[float64]{Value: float64(HeatingEnergySaving), Timestamp: c.Now()}, nil
	})
}
