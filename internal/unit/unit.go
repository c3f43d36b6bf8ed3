// Package unit wraps every scalar quantity the home-state model passes
// around behind a typed newtype, so a °C is never silently added to a
// percentage. Conversion to/from float64 is always explicit.
package unit

import "fmt"

// Celsius is a temperature in degrees Celsius.
type Celsius float64

func (c Celsius) Float64() float64 { return float64(c) }
func (c Celsius) String() string   { return fmt.Sprintf("%.2f °C", float64(c)) }

// Percent is a relative-humidity-style percentage in [0,100].
type Percent float64

func (p Percent) Float64() float64 { return float64(p) }
func (p Percent) String() string   { return fmt.Sprintf("%.2f %%", float64(p)) }

// Watt is instantaneous power.
type Watt float64

func (w Watt) Float64() float64 { return float64(w) }
func (w Watt) String() string   { return fmt.Sprintf("%.0f W", float64(w)) }

// KiloWattHours is accumulated energy. Addition is meaningful, so it gets
// a method rather than relying on bare float arithmetic at call sites.
type KiloWattHours float64

func (k KiloWattHours) Float64() float64 { return float64(k) }
func (k KiloWattHours) String() string   { return fmt.Sprintf("%g kWh", float64(k)) }
func (k KiloWattHours) Add(o KiloWattHours) KiloWattHours { return k + o }

// KiloCubicMeters is accumulated water/gas volume.
type KiloCubicMeters float64

func (k KiloCubicMeters) Float64() float64 { return float64(k) }
func (k KiloCubicMeters) String() string   { return fmt.Sprintf("%g m³·10⁻³", float64(k)) }

// AbsoluteHumidity is water vapor density in grams per cubic meter.
type AbsoluteHumidity float64

func (a AbsoluteHumidity) Float64() float64 { return float64(a) }
func (a AbsoluteHumidity) String() string   { return fmt.Sprintf("%.2f g/m³", float64(a)) }

// HeatingUnit is an abstract demand unit for radiator valve state.
type HeatingUnit float64

func (h HeatingUnit) Float64() float64 { return float64(h) }
func (h HeatingUnit) String() string   { return fmt.Sprintf("%g VBE", float64(h)) }

// Probability is a value in [0,1]. Multiplying by a bare float64 clamps
// the result to [0,1]; multiplying two Probabilities does not (mirrors
// the asymmetric Mul impls in the calculator this is ported from: a
// probability composed with another probability is itself always a
// legal probability by construction, but scaling by an arbitrary scalar
// is not, so only that direction clamps).
type Probability float64

func (p Probability) Float64() float64 { return float64(p) }
func (p Probability) String() string   { return fmt.Sprintf("%.4f", float64(p)) }

// Scale multiplies by a bare scalar and clamps the result into [0,1].
func (p Probability) Scale(f float64) Probability {
	v := float64(p) * f
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return Probability(v)
}

// Times multiplies two probabilities without clamping; the product of
// two values already in [0,1] is itself in [0,1].
func (p Probability) Times(o Probability) Probability { return Probability(float64(p) * float64(o)) }

func (p Probability) Add(o Probability) Probability { return p + o }

// Inv is the complement probability, 1-p.
func (p Probability) Inv() Probability { return 1 - p }

// Clamp forces an out-of-domain Probability back into [0,1] instead of
// panicking; there is no panic path for out-of-domain conversions
// anywhere in this package.
func (p Probability) Clamp() Probability {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
