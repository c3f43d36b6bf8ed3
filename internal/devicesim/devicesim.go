// Package devicesim publishes synthetic telemetry in this repo's wire
// shapes (zigbee2mqtt device-state JSON, Tasmota SENSOR/POWER JSON), for
// driving internal/ingest and internal/mqttbridge end-to-end without real
// hardware. Adapted from device/internal/{simulator,generator,sensor}.go's
// ticker-driven publisher, generalized from that file's single hardcoded
// temperature/humidity reading to the two protocol shapes this bridge set
// actually speaks.
package devicesim

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Protocol selects which wire shape a Simulator publishes.
type Protocol string

const (
	ProtocolZigbee  Protocol = "zigbee"
	ProtocolTasmota Protocol = "tasmota"
)

// Simulator publishes one synthetic device's readings to a broker on a
// fixed interval, the same ticker/quit-channel shape as the teacher's.
type Simulator struct {
	client   mqtt.Client
	protocol Protocol
	device   string
	topic    string
	ticker   *time.Ticker
	quit     chan struct{}
}

// New dials brokerAddr directly (no resiliency breaker; a simulator is a
// development aid, not a production ingestion path) and returns a
// Simulator ready to Start.
func New(brokerAddr, device string, protocol Protocol, eventTopic string, interval time.Duration) (*Simulator, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID("homectl-devicesim-" + device)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	var topic string
	switch protocol {
	case ProtocolZigbee:
		topic = eventTopic + "/" + device
	case ProtocolTasmota:
		topic = eventTopic + "/tele/" + device + "/SENSOR"
	default:
		return nil, fmt.Errorf("devicesim: unknown protocol %q", protocol)
	}

	return &Simulator{
		client:   client,
		protocol: protocol,
		device:   device,
		topic:    topic,
		ticker:   time.NewTicker(interval),
		quit:     make(chan struct{}),
	}, nil
}

// Start begins publishing readings at the configured interval until Stop
// is called.
func (s *Simulator) Start() {
	go func() {
		for {
			select {
			case <-s.quit:
				return
			case <-s.ticker.C:
				payload := s.reading()
				s.client.Publish(s.topic, 0, false, payload)
			}
		}
	}()
}

// Stop halts publishing and disconnects from the broker.
func (s *Simulator) Stop() {
	close(s.quit)
	s.ticker.Stop()
	s.client.Disconnect(250)
}

func (s *Simulator) reading() []byte {
	switch s.protocol {
	case ProtocolZigbee:
		payload, _ := json.Marshal(map[string]float64{
			"temperature": 18 + rand.Float64()*10,
			"humidity":    30 + rand.Float64()*40,
		})
		return payload
	case ProtocolTasmota:
		// Flat top-level fields: handleSensor unmarshals tele/SENSOR
		// payloads straight into a field-name -> raw JSON map, no
		// per-device-model nesting to flatten.
		payload, _ := json.Marshal(map[string]any{
			"Time":        time.Now().Format(time.RFC3339),
			"Temperature": 18 + rand.Float64()*10,
			"Humidity":    30 + rand.Float64()*40,
		})
		return payload
	default:
		return nil
	}
}
