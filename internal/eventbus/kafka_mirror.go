package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTopics names the durable topic each in-process Topic mirrors to,
// matching spec.md's kafka.state_changed/state_updated/command_added
// naming.
type KafkaTopics struct {
	StateChanged string
	StateUpdated string
	CommandAdded string
}

// Mirror forwards every event published on a Bus to a durable Kafka
// topic, so a consumer outside this process can observe state/command
// activity without polling the SQLite stores directly. Adapted from
// kafkabus.Bus's Reader/Writer construction, collapsed into the single
// producer-side direction this daemon needs.
type Mirror struct {
	log     *slog.Logger
	writers map[Topic]*kafka.Writer
}

// NewMirror dials one kafka.Writer per configured topic. A Topic absent
// from topics (empty string) is mirrored to nothing.
func NewMirror(brokers []string, topics KafkaTopics, log *slog.Logger) *Mirror {
	m := &Mirror{log: log.With(slog.String("component", "eventbus_kafka_mirror")), writers: make(map[Topic]*kafka.Writer)}
	for topic, name := range map[Topic]string{
		StateChanged: topics.StateChanged,
		StateUpdated: topics.StateUpdated,
		CommandAdded: topics.CommandAdded,
	} {
		if name == "" {
			continue
		}
		m.writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        name,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		}
	}
	return m
}

// Run subscribes to every mirrored topic on bus and forwards each event
// as JSON until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context, bus *Bus) {
	for topic, w := range m.writers {
		go m.forward(ctx, bus.Subscribe(topic), w)
	}
	<-ctx.Done()
}

func (m *Mirror) forward(ctx context.Context, events <-chan Event, w *kafka.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				m.log.Error("marshal event for kafka mirror", slog.Any("error", err))
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = w.WriteMessages(writeCtx, kafka.Message{Key: []byte(ev.Key), Value: payload, Time: time.Now()})
			cancel()
			if err != nil {
				m.log.Warn("kafka mirror write failed", slog.String("topic", w.Topic), slog.Any("error", err))
			}
		}
	}
}

// Close closes every underlying writer.
func (m *Mirror) Close() error {
	var firstErr error
	for _, w := range m.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
