package mqttbridge

import (
	"context"
	"encoding/json"
	"testing"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/ingest"
)

func newTestTasmota() (*Tasmota, *capturingPublisher) {
	conn, pub := testConn()
	channels := map[string][]string{"kitchen_kettle": {"power", "Energy.Power"}}
	tm := NewTasmota(testLogger(), conn, "tasmota", channels)
	return tm, pub
}

func TestTasmotaDeviceFromTopicParsesTeleAndStat(t *testing.T) {
	tm, _ := newTestTasmota()

	id, ok := tm.deviceFromTopic("tasmota/tele/kitchen_kettle/SENSOR", "/tele/", "/SENSOR")
	if !ok || id != "kitchen_kettle" {
		t.Fatalf("got id=%q ok=%v", id, ok)
	}
	if _, ok := tm.deviceFromTopic("other/tele/kitchen_kettle/SENSOR", "/tele/", "/SENSOR"); ok {
		t.Fatal("expected no match for a foreign topic prefix")
	}
}

func TestTasmotaToIncomingDataPowerChannel(t *testing.T) {
	tm, _ := newTestTasmota()
	on := true
	msg := tasmotaMsg{deviceID: "kitchen_kettle", power: &on}

	data, err := tm.ToIncomingData("kitchen_kettle", "power", msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(data))
	}
	sv := data[0].(ingest.StateValue)
	if sv.Value != 1 {
		t.Fatalf("expected power-on to encode as 1, got %v", sv.Value)
	}
}

func TestTasmotaToIncomingDataSensorChannel(t *testing.T) {
	tm, _ := newTestTasmota()
	msg := tasmotaMsg{deviceID: "kitchen_kettle", sensor: map[string]json.RawMessage{
		"Energy.Power": json.RawMessage(`42.5`),
	}}

	data, err := tm.ToIncomingData("kitchen_kettle", "Energy.Power", msg)
	if err != nil {
		t.Fatal(err)
	}
	sv := data[0].(ingest.StateValue)
	if sv.Value != 42.5 {
		t.Fatalf("expected 42.5, got %v", sv.Value)
	}
}

func TestTasmotaExecutePublishesOnOffToPower1Topic(t *testing.T) {
	tm, pub := newTestTasmota()

	handled, err := tm.Execute(context.Background(), command.Command{Type: command.TypeSetPower, Device: "kitchen_kettle", PowerOn: true})
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Fatal("expected the owned device's power command to be claimed")
	}
	if pub.last().Topic != "tasmota/cmnd/kitchen_kettle/Power1" {
		t.Fatalf("unexpected topic: %s", pub.last().Topic)
	}
	if string(pub.last().Payload) != "ON" {
		t.Fatalf("expected ON payload, got %q", pub.last().Payload)
	}

	if _, err := tm.Execute(context.Background(), command.Command{Type: command.TypeSetPower, Device: "kitchen_kettle", PowerOn: false}); err != nil {
		t.Fatal(err)
	}
	if string(pub.last().Payload) != "OFF" {
		t.Fatalf("expected OFF payload, got %q", pub.last().Payload)
	}
}

func TestTasmotaExecuteDeclinesUnownedDeviceAndOtherTypes(t *testing.T) {
	tm, pub := newTestTasmota()

	handled, err := tm.Execute(context.Background(), command.Command{Type: command.TypeSetPower, Device: "unknown_plug", PowerOn: true})
	if err != nil {
		t.Fatal(err)
	}
	if handled {
		t.Fatal("expected an unowned device to be declined")
	}

	handled, err = tm.Execute(context.Background(), command.Command{Type: command.TypeSetHeating, Device: "kitchen_kettle"})
	if err != nil {
		t.Fatal(err)
	}
	if handled {
		t.Fatal("expected a command type Tasmota doesn't handle to be declined")
	}
	if pub.count() != 0 {
		t.Fatal("expected no publishes for declined commands")
	}
}
