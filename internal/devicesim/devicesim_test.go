package devicesim

import (
	"encoding/json"
	"testing"
)

func TestReadingZigbeeShapeIsFlatNumericFields(t *testing.T) {
	s := &Simulator{protocol: ProtocolZigbee}
	var fields map[string]float64
	if err := json.Unmarshal(s.reading(), &fields); err != nil {
		t.Fatalf("expected flat numeric fields, got unmarshal error: %v", err)
	}
	if _, ok := fields["temperature"]; !ok {
		t.Fatal("expected a temperature field")
	}
	if _, ok := fields["humidity"]; !ok {
		t.Fatal("expected a humidity field")
	}
}

func TestReadingTasmotaShapeIsFlatFields(t *testing.T) {
	s := &Simulator{protocol: ProtocolTasmota}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(s.reading(), &fields); err != nil {
		t.Fatalf("expected flat field map, got unmarshal error: %v", err)
	}
	if _, ok := fields["Temperature"]; !ok {
		t.Fatal("expected a Temperature field")
	}
	if _, ok := fields["Humidity"]; !ok {
		t.Fatal("expected a Humidity field")
	}
}

func TestReadingUnknownProtocolReturnsNil(t *testing.T) {
	s := &Simulator{protocol: Protocol("bogus")}
	if got := s.reading(); got != nil {
		t.Fatalf("expected nil payload for an unknown protocol, got %q", got)
	}
}
