package homestate

import (
	"context"
	"fmt"
	"math"

	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// DewPoint computes the Magnus-Tetens dew point from a temperature and a
// relative humidity DataPoint, timestamped at the later of the two.
func DewPoint(temperature, humidity timeseries.DataPoint[float64]) timeseries.DataPoint[float64] {
	ts := temperature.Timestamp
	if humidity.Timestamp.After(ts) {
		ts = humidity.Timestamp
	}
	return timeseries.DataPoint[float64]{Value: calculateDewPoint(temperature.Value, humidity.Value), Timestamp: ts}
}

func calculateDewPoint(t, r float64) float64 {
	a, b := 7.5, 237.3
	if t < 0 {
		a, b = 7.6, 240.7
	}
	sdd := 6.1078 * math.Pow(10, (a*t)/(b+t))
	dd := sdd * (r / 100.0)
	v := math.Log10(dd / 6.1078)
	return (b * v) / (a - v)
}

// absolute humidity constants, per the molar-mass form of the ideal gas
// law applied to water vapor.
const (
	absHumidityMW = 18.016 // molecular weight of water vapor, kg/kmol
	absHumidityGK = 8314.3 // universal gas constant, J/(kmol*K)
	absHumidityT0 = 273.15 // 0C in Kelvin
)

// AbsoluteHumidity computes the absolute humidity (g/m3) from a
// temperature and a relative humidity DataPoint, timestamped at the
// later of the two.
func AbsoluteHumidity(temperature, humidity timeseries.DataPoint[float64]) timeseries.DataPoint[float64] {
	ts := temperature.Timestamp
	if humidity.Timestamp.After(ts) {
		ts = humidity.Timestamp
	}
	return timeseries.DataPoint[float64]{Value: calculateAbsoluteHumidity(temperature.Value, humidity.Value), Timestamp: ts}
}

func calculateAbsoluteHumidity(t, r float64) float64 {
	a, b := 7.5, 237.3
	if t < 0 {
		a, b = 7.6, 240.7
	}
	sdd := 6.1078 * math.Pow(10, (a*t)/(b+t))
	dd := sdd * (r / 100.0)
	tk := t + absHumidityT0
	return math.Pow(10, 5) * absHumidityMW / absHumidityGK * dd / tk
}

// RegisterDewPoint wires id to a calculator computing the dew point
// from a persistent temperature/humidity pair, the form RegisterRiskOfMould
// expects its dewPointID argument to resolve to.
func RegisterDewPoint(reg *Registry, id string, temperatureID, humidityID extid.ID) {
	reg.Register(id, func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error) {
		temp, err := c.GetPersistent(ctx, temperatureID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("dew point %s: temperature: %w", id, err)
		}
		humidity, err := c.GetPersistent(ctx, humidityID)
		if err != nil {
			return timeseries.DataPoint[float64]{}, fmt.Errorf("dew point %s: humidity: %w", id, err)
		}
		return DewPoint(temp, humidity), nil
	})
}

// boolToF64 / f64ToBool round-trip a bool through the float64 DataPoint
// machinery every calculator in this package shares, since the generic
// store only persists float64 series.
func boolToF64(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func f64ToBool(v float64) bool { return v != 0 }
