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

// tasmotaMsg is one tele/SENSOR or stat/POWER publish.
type tasmotaMsg struct {
	deviceID string
	power    *bool // set for a stat/POWER message, nil for a tele/SENSOR one
	sensor   map[string]json.RawMessage
}

// Tasmota bridges Tasmota smart plugs: sensor telemetry on
// tele/{device}/SENSOR, power acks on stat/{device}/POWER, switch
// commands on cmnd/{device}/Power1.
type Tasmota struct {
	log        *slog.Logger
	conn       *Conn
	eventTopic string
	channels   map[string][]string
	msgCh      chan tasmotaMsg
}

func NewTasmota(log *slog.Logger, conn *Conn, eventTopic string, channels map[string][]string) *Tasmota {
	return &Tasmota{
		log:        log.With(slog.String("component", "tasmota_bridge")),
		conn:       conn,
		eventTopic: eventTopic,
		channels:   channels,
		msgCh:      make(chan tasmotaMsg, 64),
	}
}

// Start subscribes to both the telemetry and the power-ack topics.
func (t *Tasmota) Start() error {
	if err := t.conn.Subscribe(t.eventTopic+"/tele/+/SENSOR", t.handleSensor); err != nil {
		return err
	}
	return t.conn.Subscribe(t.eventTopic+"/stat/+/POWER", t.handlePower)
}

func (t *Tasmota) handleSensor(_ mqtt.Client, m mqtt.Message) {
	deviceID, ok := t.deviceFromTopic(m.Topic(), "/tele/", "/SENSOR")
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Payload(), &fields); err != nil {
		t.log.Warn("malformed tasmota sensor payload", slog.String("device_id", deviceID), slog.Any("error", err))
		return
	}
	t.msgCh <- tasmotaMsg{deviceID: deviceID, sensor: fields}
}

func (t *Tasmota) handlePower(_ mqtt.Client, m mqtt.Message) {
	deviceID, ok := t.deviceFromTopic(m.Topic(), "/stat/", "/POWER")
	if !ok {
		return
	}
	on := strings.EqualFold(string(m.Payload()), "ON")
	t.msgCh <- tasmotaMsg{deviceID: deviceID, power: &on}
}

func (t *Tasmota) deviceFromTopic(topic, prefixSeg, suffixSeg string) (string, bool) {
	rest := strings.TrimPrefix(topic, t.eventTopic+prefixSeg)
	if rest == topic || !strings.HasSuffix(rest, suffixSeg) {
		return "", false
	}
	return strings.TrimSuffix(rest, suffixSeg), true
}

func (t *Tasmota) Name() string { return "tasmota" }

func (t *Tasmota) Recv(ctx context.Context) (tasmotaMsg, bool, error) {
	select {
	case <-ctx.Done():
		return tasmotaMsg{}, false, ctx.Err()
	case m, ok := <-t.msgCh:
		return m, ok, nil
	}
}

func (t *Tasmota) DeviceID(msg tasmotaMsg) (string, bool) {
	if msg.deviceID == "" {
		return "", false
	}
	return msg.deviceID, true
}

func (t *Tasmota) Channels(deviceID string) []string {
	return t.channels[deviceID]
}

func (t *Tasmota) ToIncomingData(deviceID, channel string, msg tasmotaMsg) ([]ingest.Data, error) {
	if channel == "power" {
		if msg.power == nil {
			return nil, nil
		}
		value := 0.0
		if *msg.power {
			value = 1.0
		}
		id := extid.New("tasmota_power", deviceID)
		return []ingest.Data{ingest.StateValue{ID: id, Value: value, At: clock.Now()}}, nil
	}

	raw, ok := msg.sensor[channel]
	if !ok {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	id := extid.New("tasmota_sensor", extid.Nested(deviceID, channel))
	return []ingest.Data{ingest.StateValue{ID: id, Value: v, At: clock.Now()}}, nil
}

// Execute implements dispatch.Executor: SetPower commands become
// cmnd/{device}/Power1 ON/OFF writes.
func (t *Tasmota) Execute(ctx context.Context, cmd command.Command) (bool, error) {
	if cmd.Type != command.TypeSetPower {
		return false, nil
	}
	if _, owned := t.channels[cmd.Device]; !owned {
		return false, nil
	}
	payload := "OFF"
	if cmd.PowerOn {
		payload = "ON"
	}
	if err := t.conn.Publish(ctx, t.eventTopic+"/cmnd/"+cmd.Device+"/Power1", []byte(payload)); err != nil {
		return true, err
	}
	return true, nil
}
