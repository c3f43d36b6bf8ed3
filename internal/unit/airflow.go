package unit

import "fmt"

// FanSpeed is the magnitude on the one-sided speed ladder Silent..Turbo.
type FanSpeed int

const (
	SpeedSilent FanSpeed = iota + 1
	SpeedLow
	SpeedMedium
	SpeedHigh
	SpeedTurbo
)

func (s FanSpeed) String() string {
	switch s {
	case SpeedSilent:
		return "Silent"
	case SpeedLow:
		return "Low"
	case SpeedMedium:
		return "Medium"
	case SpeedHigh:
		return "High"
	case SpeedTurbo:
		return "Turbo"
	default:
		return "Unknown"
	}
}

// FanAirflow is Off, Forward(speed) or Reverse(speed). It encodes onto the
// signed integer ladder {Off=0, Fwd Silent..Turbo = 1..5, Rev Silent..Turbo
// = -1..-5} so it can travel through the same numeric tag storage every
// other persistent value does.
type FanAirflow struct {
	// Off is true iff neither Forward nor Reverse is set.
	Reverse bool
	Speed   FanSpeed // zero value means Off
}

var Off = FanAirflow{}

func Forward(s FanSpeed) FanAirflow { return FanAirflow{Reverse: false, Speed: s} }
func ReverseSpeed(s FanSpeed) FanAirflow { return FanAirflow{Reverse: true, Speed: s} }

func (a FanAirflow) IsOff() bool { return a.Speed == 0 }

// Float64 encodes onto the signed ladder.
func (a FanAirflow) Float64() float64 {
	if a.IsOff() {
		return 0
	}
	v := float64(a.Speed)
	if a.Reverse {
		return -v
	}
	return v
}

// FanAirflowFromFloat64 decodes the signed ladder, out-of-domain values
// clamp to the nearest legal band rather than panicking. Zero decodes to
// Off.
func FanAirflowFromFloat64(f float64) FanAirflow {
	if f == 0 {
		return Off
	}
	reverse := f < 0
	mag := f
	if reverse {
		mag = -mag
	}
	speed := FanSpeed(int(mag + 0.5))
	if speed < SpeedSilent {
		speed = SpeedSilent
	}
	if speed > SpeedTurbo {
		speed = SpeedTurbo
	}
	return FanAirflow{Reverse: reverse, Speed: speed}
}

func (a FanAirflow) String() string {
	if a.IsOff() {
		return "Off"
	}
	dir := "Forward"
	if a.Reverse {
		dir = "Reverse"
	}
	return fmt.Sprintf("%s(%s)", dir, a.Speed)
}

// AllFanAirflows enumerates every representable variant, used by the
// round-trip test in the testable-properties list.
func AllFanAirflows() []FanAirflow {
	out := []FanAirflow{Off}
	for s := SpeedSilent; s <= SpeedTurbo; s++ {
		out = append(out, Forward(s), ReverseSpeed(s))
	}
	return out
}

// Switch is a boolean value encoded as 1.0/0.0 on the wire.
type Switch bool

func (s Switch) Float64() float64 {
	if s {
		return 1
	}
	return 0
}

func SwitchFromFloat64(f float64) Switch { return f != 0 }

func (s Switch) String() string {
	if s {
		return "on"
	}
	return "off"
}
