package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/dispatch"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
	"nrgchamp/homectl/internal/ingest"
)

// registrationGap separates successive accessory-registration publishes,
// per the 100ms gap spec.md calls for.
const registrationGap = 100 * time.Millisecond

// homekitWireMsg is the {"name","service_name","characteristic","value"}
// shape used on both {base}/from/... and {base}/to/set.
type homekitWireMsg struct {
	Name           string  `json:"name"`
	ServiceName    string  `json:"service_name"`
	Characteristic string  `json:"characteristic"`
	Value          float64 `json:"value"`
}

// homekitMsg is one message handed to Homekit's ingest.Source pipeline:
// either a sensor reading (Resolved=false, straight off the wire) or an
// already-debounced user trigger (Resolved=true, synthesized after the
// debounce window elapses).
type homekitMsg struct {
	homekitWireMsg
	Resolved bool
}

// TriggerServices lists which service names on {base}/from are user
// intents (buttons, switches) rather than passive sensor readings; a
// device whose service isn't listed here is treated as a sensor.
type TriggerServices map[string]bool

// Homekit bridges a HomeKit MQTT add-on: sensor/trigger ingestion on
// {base}/from/..., command + accessory-registration publishing on
// {base}/to/...
type Homekit struct {
	log     *slog.Logger
	conn    *Conn
	base    string
	devices map[string]string // accessory name -> command.Target.Device this accessory controls
	sinks   TriggerServices

	debouncer *dispatch.Debouncer
	msgCh     chan homekitMsg
}

// NewHomekit wires a bridge over base (e.g. "homekit2mqtt"); devices maps
// accessory names this bridge owns to the command.Target.Device key the
// planner/dispatcher address them by.
func NewHomekit(log *slog.Logger, conn *Conn, base string, devices map[string]string, triggerServices TriggerServices) *Homekit {
	h := &Homekit{
		log:     log.With(slog.String("component", "homekit_bridge")),
		conn:    conn,
		base:    base,
		devices: devices,
		sinks:   triggerServices,
		msgCh:   make(chan homekitMsg, 64),
	}
	h.debouncer = dispatch.NewDebouncer(h.emitResolvedTrigger)
	return h
}

// Start subscribes to the inbound topic; messages arrive on msgCh via
// Recv for sensor readings, or are debounced first for trigger services.
func (h *Homekit) Start() error {
	return h.conn.Subscribe(h.base+"/from/#", func(_ mqtt.Client, m mqtt.Message) {
		var w homekitWireMsg
		if err := json.Unmarshal(m.Payload(), &w); err != nil {
			h.log.Warn("malformed homekit payload", slog.String("topic", m.Topic()), slog.Any("error", err))
			return
		}
		if h.sinks[w.ServiceName] {
			h.debouncer.Trigger(context.Background(), dispatch.TriggerKey{Name: w.Name, Service: w.ServiceName, Characteristic: w.Characteristic}, w.Value)
			return
		}
		h.msgCh <- homekitMsg{homekitWireMsg: w}
	})
}

func (h *Homekit) emitResolvedTrigger(ctx context.Context, key dispatch.TriggerKey, value float64) {
	h.msgCh <- homekitMsg{
		homekitWireMsg: homekitWireMsg{Name: key.Name, ServiceName: key.Service, Characteristic: key.Characteristic, Value: value},
		Resolved:       true,
	}
}

// Name implements ingest.Source.
func (h *Homekit) Name() string { return "homekit" }

// Recv implements ingest.Source.
func (h *Homekit) Recv(ctx context.Context) (homekitMsg, bool, error) {
	select {
	case <-ctx.Done():
		return homekitMsg{}, false, ctx.Err()
	case m, ok := <-h.msgCh:
		return m, ok, nil
	}
}

// DeviceID implements ingest.Source: the accessory name doubles as the
// device id.
func (h *Homekit) DeviceID(msg homekitMsg) (string, bool) {
	if msg.Name == "" {
		return "", false
	}
	return msg.Name, true
}

// Channels implements ingest.Source; this bridge has no per-characteristic
// routing table, every characteristic on an owned accessory is relevant.
func (h *Homekit) Channels(deviceID string) []string {
	if _, ok := h.devices[deviceID]; !ok {
		return nil
	}
	return []string{"*"}
}

// ToIncomingData implements ingest.Source.
func (h *Homekit) ToIncomingData(deviceID, channel string, msg homekitMsg) ([]ingest.Data, error) {
	if msg.Resolved {
		target := fmt.Sprintf("homekit::%s::%s::%s", msg.Name, msg.ServiceName, msg.Characteristic)
		return []ingest.Data{ingest.UserTrigger{Trigger: homestate.UserTrigger{
			Target: target, Value: msg.Value, Timestamp: clock.Now(),
		}}}, nil
	}
	id := extid.New("homekit_sensor", extid.Nested(deviceID, msg.Characteristic))
	return []ingest.Data{ingest.StateValue{ID: id, Value: msg.Value, At: clock.Now()}}, nil
}

// Execute implements dispatch.Executor: claims any command whose device
// this bridge owns, and writes it as a HomeKit characteristic set.
func (h *Homekit) Execute(ctx context.Context, cmd command.Command) (bool, error) {
	name, owned := h.accessoryFor(cmd)
	if !owned {
		return false, nil
	}

	wire, err := toHomekitWrite(name, cmd)
	if err != nil {
		return true, err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return true, err
	}
	if err := h.conn.Publish(ctx, h.base+"/to/set", payload); err != nil {
		return true, err
	}
	return true, nil
}

func (h *Homekit) accessoryFor(cmd command.Command) (string, bool) {
	for name, device := range h.devices {
		if device == cmd.Device {
			return name, true
		}
	}
	return "", false
}

func toHomekitWrite(name string, cmd command.Command) (homekitWireMsg, error) {
	switch cmd.Type {
	case command.TypeSetPower, command.TypeSetEnergySaving:
		value := 0.0
		if cmd.PowerOn {
			value = 1.0
		}
		return homekitWireMsg{Name: name, ServiceName: "Switch", Characteristic: "On", Value: value}, nil
	case command.TypeSetThermostatAmbientTemperature:
		return homekitWireMsg{Name: name, ServiceName: "TemperatureSensor", Characteristic: "CurrentTemperature", Value: cmd.AmbientTemperature}, nil
	default:
		return homekitWireMsg{}, fmt.Errorf("homekit bridge: unsupported command type %q", cmd.Type)
	}
}

// RegistrationPayload builds the wire payload for registering one
// characteristic of an accessory: the first characteristic of a service
// goes to {base}/to/add, later ones to {base}/to/add/service. Per
// testable property 12, the payload carries name/service_name/service
// plus the characteristic itself mapped to the literal string "default".
func RegistrationPayload(name, serviceName, characteristic string) map[string]string {
	return map[string]string{
		"name":         name,
		"service_name": serviceName,
		"service":      serviceName,
		characteristic: "default",
	}
}

// RegisterAccessory publishes one add message per characteristic, the
// first to {base}/to/add and the rest to {base}/to/add/service, with a
// 100ms gap between each publish.
func (h *Homekit) RegisterAccessory(ctx context.Context, name, serviceName string, characteristics []string) error {
	for i, ch := range characteristics {
		topic := h.base + "/to/add/service"
		if i == 0 {
			topic = h.base + "/to/add"
		}
		payload, err := json.Marshal(RegistrationPayload(name, serviceName, ch))
		if err != nil {
			return err
		}
		if err := h.conn.Publish(ctx, topic, payload); err != nil {
			return err
		}
		if i < len(characteristics)-1 {
			time.Sleep(registrationGap)
		}
	}
	return nil
}
