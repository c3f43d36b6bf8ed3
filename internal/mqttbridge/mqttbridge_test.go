package mqttbridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"nrgchamp/homectl/internal/resiliency"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// capturingPublisher is a resiliency.Publisher fake that records every
// publish, standing in for a real broker connection in tests.
type capturingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	fail  error
}

type publishCall struct {
	Topic   string
	Payload []byte
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.fail != nil {
		return p.fail
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (p *capturingPublisher) last() publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// testConn builds a Conn backed by a capturingPublisher instead of a
// real paho client, for exercising each bridge's outbound Execute path.
func testConn() (*Conn, *capturingPublisher) {
	pub := &capturingPublisher{}
	conn := &Conn{
		log: testLogger(),
		pub: resiliency.NewCBPublisher("test", resiliency.DefaultConfig(), testLogger(), pub),
	}
	return conn, pub
}

var errPublish = errors.New("publish failed")
