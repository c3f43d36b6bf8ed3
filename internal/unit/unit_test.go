package unit

import "testing"

func TestFanAirflowRoundTrip(t *testing.T) {
	for _, a := range AllFanAirflows() {
		got := FanAirflowFromFloat64(a.Float64())
		if got != a {
			t.Fatalf("round trip broke for %v: got %v (f=%v)", a, got, a.Float64())
		}
	}
}

func TestFanAirflowOffDecodesZero(t *testing.T) {
	if got := FanAirflowFromFloat64(0); !got.IsOff() {
		t.Fatalf("expected Off, got %v", got)
	}
}

func TestProbabilityScaleClampsOnScalarSide(t *testing.T) {
	p := Probability(0.6)
	if got := p.Scale(3); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if got := p.Scale(-3); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestProbabilityTimesDoesNotClamp(t *testing.T) {
	p := Probability(0.5)
	q := Probability(0.5)
	if got := p.Times(q); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestDisplayFormats(t *testing.T) {
	if got := Celsius(21.5).String(); got != "21.50 °C" {
		t.Fatalf("got %q", got)
	}
	if got := Watt(800).String(); got != "800 W" {
		t.Fatalf("got %q", got)
	}
}
