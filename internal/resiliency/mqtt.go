package resiliency

import (
	"context"
	"log/slog"
)

// Publisher is the minimal shape mqttbridge's paho wrapper exposes;
// kept narrow so this package doesn't depend on paho directly.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// CBPublisher wraps a Publisher (an MQTT broker connection to z2m,
// Tasmota, or a HomeKit bridge) behind a breaker, with no probe: MQTT
// has no cheap standalone health check, so recovery is purely
// ResetTimeout-paced retries.
type CBPublisher struct {
	inner Publisher
	brk   *Breaker
}

func NewCBPublisher(name string, cfg Config, log *slog.Logger, inner Publisher) *CBPublisher {
	return &CBPublisher{inner: inner, brk: New(name, cfg, log, nil)}
}

func (p *CBPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.brk.Execute(ctx, func(ctx context.Context) error {
		return p.inner.Publish(ctx, topic, payload)
	})
}

func (p *CBPublisher) State() State { return p.brk.State() }
