package mqttbridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/ingest"
)

// The Channel* constants name the fields this bridge extracts out of a z2m
// device-state payload; Device/Channels config decides which of these
// actually apply to a given device.
const (
	ChannelTemperature = "temperature"
	ChannelHumidity    = "humidity"
	ChannelOccupancy   = "occupancy"
	ChannelContact     = "contact"
)

// zigbeeMsg is one z2m device-state publish: the raw topic suffix (the
// device id) plus its decoded JSON body, kept generic since z2m payload
// shape varies per device model.
type zigbeeMsg struct {
	deviceID string
	fields   map[string]json.RawMessage
}

// Zigbee bridges a zigbee2mqtt gateway: state topics under eventTopic,
// command topics under eventTopic/{device}/set.
type Zigbee struct {
	log        *slog.Logger
	conn       *Conn
	eventTopic string
	channels   map[string][]string // device id -> channels this bridge reads
	msgCh      chan zigbeeMsg
}

func NewZigbee(log *slog.Logger, conn *Conn, eventTopic string, channels map[string][]string) *Zigbee {
	return &Zigbee{
		log:        log.With(slog.String("component", "zigbee_bridge")),
		conn:       conn,
		eventTopic: eventTopic,
		channels:   channels,
		msgCh:      make(chan zigbeeMsg, 64),
	}
}

// Start subscribes to {event_topic}/# per spec.md §6; the device id is
// the topic suffix after event_topic/, with the literal "set" suffix
// (our own command topic) ignored.
func (z *Zigbee) Start() error {
	return z.conn.Subscribe(z.eventTopic+"/#", func(_ mqtt.Client, m mqtt.Message) {
		deviceID := strings.TrimPrefix(m.Topic(), z.eventTopic+"/")
		if deviceID == "" || strings.HasSuffix(deviceID, "/set") {
			return
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(m.Payload(), &fields); err != nil {
			z.log.Warn("malformed zigbee payload", slog.String("device_id", deviceID), slog.Any("error", err))
			return
		}
		z.msgCh <- zigbeeMsg{deviceID: deviceID, fields: fields}
	})
}

func (z *Zigbee) Name() string { return "zigbee" }

func (z *Zigbee) Recv(ctx context.Context) (zigbeeMsg, bool, error) {
	select {
	case <-ctx.Done():
		return zigbeeMsg{}, false, ctx.Err()
	case m, ok := <-z.msgCh:
		return m, ok, nil
	}
}

func (z *Zigbee) DeviceID(msg zigbeeMsg) (string, bool) {
	if msg.deviceID == "" {
		return "", false
	}
	return msg.deviceID, true
}

func (z *Zigbee) Channels(deviceID string) []string {
	return z.channels[deviceID]
}

func (z *Zigbee) ToIncomingData(deviceID, channel string, msg zigbeeMsg) ([]ingest.Data, error) {
	raw, ok := msg.fields[channel]
	if !ok {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	id := extid.New("zigbee_sensor", extid.Nested(deviceID, channel))
	return []ingest.Data{ingest.StateValue{ID: id, Value: v, At: clock.Now()}}, nil
}

// zigbeeSetCommand is the {event_topic}/{device}/set payload per
// spec.md §6: occupied_heating_setpoint absent means auto mode,
// external_measured_room_sensor is an integer centi-degree override.
type zigbeeSetCommand struct {
	OccupiedHeatingSetpoint    *float64 `json:"occupied_heating_setpoint,omitempty"`
	WindowOpenExternal         *bool    `json:"window_open_external,omitempty"`
	ExternalMeasuredRoomSensor *int     `json:"external_measured_room_sensor,omitempty"`
}

// Execute implements dispatch.Executor for thermostat commands this
// bridge owns.
func (z *Zigbee) Execute(ctx context.Context, cmd command.Command) (bool, error) {
	if _, owned := z.channels[cmd.Device]; !owned {
		return false, nil
	}

	var set zigbeeSetCommand
	switch cmd.Type {
	case command.TypeSetHeating:
		if cmd.Heating.Mode == "heat" {
			temp := cmd.Heating.Temperature
			set.OccupiedHeatingSetpoint = &temp
		}
		// auto/off: leave OccupiedHeatingSetpoint nil, matching "absent => auto-mode".
	case command.TypeSetThermostatAmbientTemperature:
		centi := int(cmd.AmbientTemperature * 100)
		set.ExternalMeasuredRoomSensor = &centi
	default:
		return false, nil
	}

	payload, err := json.Marshal(set)
	if err != nil {
		return true, err
	}
	if err := z.conn.Publish(ctx, z.eventTopic+"/"+cmd.Device+"/set", payload); err != nil {
		return true, err
	}
	return true, nil
}
