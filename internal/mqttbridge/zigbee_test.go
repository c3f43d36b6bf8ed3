package mqttbridge

import (
	"context"
	"encoding/json"
	"testing"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/ingest"
)

func newTestZigbee() (*Zigbee, *capturingPublisher) {
	conn, pub := testConn()
	channels := map[string][]string{"bedroom_trv": {ChannelTemperature}}
	z := NewZigbee(testLogger(), conn, "zigbee2mqtt", channels)
	return z, pub
}

func TestZigbeeDeviceIDIsTopicSuffix(t *testing.T) {
	z, _ := newTestZigbee()
	id, ok := z.DeviceID(zigbeeMsg{deviceID: "bedroom_trv"})
	if !ok || id != "bedroom_trv" {
		t.Fatalf("got id=%q ok=%v", id, ok)
	}
	if _, ok := z.DeviceID(zigbeeMsg{}); ok {
		t.Fatal("expected no device id for an empty message")
	}
}

func TestZigbeeToIncomingDataExtractsNamedField(t *testing.T) {
	z, _ := newTestZigbee()
	msg := zigbeeMsg{deviceID: "bedroom_trv", fields: map[string]json.RawMessage{
		"temperature": json.RawMessage(`21.3`),
	}}

	data, err := z.ToIncomingData("bedroom_trv", ChannelTemperature, msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(data))
	}
	sv := data[0].(ingest.StateValue)
	if sv.Value != 21.3 {
		t.Fatalf("expected 21.3, got %v", sv.Value)
	}
}

func TestZigbeeToIncomingDataMissingFieldIsIgnored(t *testing.T) {
	z, _ := newTestZigbee()
	msg := zigbeeMsg{deviceID: "bedroom_trv", fields: map[string]json.RawMessage{}}

	data, err := z.ToIncomingData("bedroom_trv", ChannelTemperature, msg)
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Fatalf("expected no data for a missing field, got %v", data)
	}
}

func TestZigbeeExecuteHeatModePublishesSetpoint(t *testing.T) {
	z, pub := newTestZigbee()
	cmd := command.Command{Type: command.TypeSetHeating, Device: "bedroom_trv", Heating: command.HeatingMode{Mode: "heat", Temperature: 21}}

	handled, err := z.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Fatal("expected the owned device's heating command to be claimed")
	}
	if pub.last().Topic != "zigbee2mqtt/bedroom_trv/set" {
		t.Fatalf("unexpected topic: %s", pub.last().Topic)
	}

	var set zigbeeSetCommand
	if err := json.Unmarshal(pub.last().Payload, &set); err != nil {
		t.Fatal(err)
	}
	if set.OccupiedHeatingSetpoint == nil || *set.OccupiedHeatingSetpoint != 21 {
		t.Fatalf("expected occupied_heating_setpoint=21, got %+v", set)
	}
}

func TestZigbeeExecuteAutoModeOmitsSetpoint(t *testing.T) {
	z, pub := newTestZigbee()
	cmd := command.Command{Type: command.TypeSetHeating, Device: "bedroom_trv", Heating: command.HeatingMode{Mode: "auto"}}

	if _, err := z.Execute(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(pub.last().Payload, &raw); err != nil {
		t.Fatal(err)
	}
	if _, present := raw["occupied_heating_setpoint"]; present {
		t.Fatal("expected occupied_heating_setpoint to be absent in auto mode")
	}
}

func TestZigbeeExecuteDeclinesUnownedDevice(t *testing.T) {
	z, pub := newTestZigbee()
	cmd := command.Command{Type: command.TypeSetHeating, Device: "kitchen_trv", Heating: command.HeatingMode{Mode: "heat", Temperature: 19}}

	handled, err := z.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if handled {
		t.Fatal("expected an unowned device to be declined")
	}
	if pub.count() != 0 {
		t.Fatal("expected no publish for a declined command")
	}
}

func TestZigbeeExecuteAmbientTemperatureEncodesCentiDegrees(t *testing.T) {
	z, pub := newTestZigbee()
	cmd := command.Command{Type: command.TypeSetThermostatAmbientTemperature, Device: "bedroom_trv", AmbientTemperature: 21.37}

	if _, err := z.Execute(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	var set zigbeeSetCommand
	if err := json.Unmarshal(pub.last().Payload, &set); err != nil {
		t.Fatal(err)
	}
	if set.ExternalMeasuredRoomSensor == nil || *set.ExternalMeasuredRoomSensor != 2137 {
		t.Fatalf("expected 2137 centi-degrees, got %+v", set)
	}
}
