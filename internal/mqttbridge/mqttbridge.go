// Package mqttbridge runs the three MQTT integrations (C9 sources and
// C10 executors for external devices): a HomeKit bridge, a Zigbee (z2m)
// bridge, and a Tasmota bridge, all built on one paho connection idiom
// adapted from the device simulator's NewSimulator/Start/Stop lifecycle.
package mqttbridge

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nrgchamp/homectl/internal/resiliency"
)

// Conn is one paho client plus a breaker-wrapped publish path, shared by
// every bridge dialled against the same broker.
type Conn struct {
	log    *slog.Logger
	client mqtt.Client
	pub    *resiliency.CBPublisher
}

// Dial connects to brokerAddr (e.g. "tcp://localhost:1883") under
// clientID, exactly as the simulator does: build options, connect, wait
// on the token, surface the error instead of panicking on failure.
func Dial(brokerAddr, clientID string, cfg resiliency.Config, log *slog.Logger) (*Conn, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerAddr, token.Error())
	}

	c := &Conn{log: log.With(slog.String("broker", brokerAddr)), client: client}
	c.pub = resiliency.NewCBPublisher(clientID, cfg, log, rawPublisher{client})
	return c, nil
}

// rawPublisher adapts mqtt.Client to resiliency.Publisher.
type rawPublisher struct{ client mqtt.Client }

func (r rawPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := r.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// Publish sends payload on topic through the breaker-wrapped publisher.
func (c *Conn) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.pub.Publish(ctx, topic, payload)
}

// Subscribe registers handler for topic at qos 0, matching the teacher's
// fire-and-forget subscription style.
func (c *Conn) Subscribe(topic string, handler mqtt.MessageHandler) error {
	token := c.client.Subscribe(topic, 0, handler)
	token.Wait()
	return token.Error()
}

// Disconnect drains in-flight work for up to 250ms before closing,
// mirroring the simulator's Stop.
func (c *Conn) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Conn) State() resiliency.State { return c.pub.State() }
