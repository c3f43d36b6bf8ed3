package eventbus

import (
	"log/slog"
	"testing"
)

func TestNewMirrorOnlyDialsConfiguredTopics(t *testing.T) {
	log := slog.Default()
	m := NewMirror([]string{"localhost:9092"}, KafkaTopics{StateChanged: "homectl.state_changed"}, log)
	defer m.Close()

	if _, ok := m.writers[StateChanged]; !ok {
		t.Fatalf("expected a writer for state_changed")
	}
	if _, ok := m.writers[StateUpdated]; ok {
		t.Fatalf("expected no writer for unconfigured state_updated topic")
	}
	if _, ok := m.writers[CommandAdded]; ok {
		t.Fatalf("expected no writer for unconfigured command_added topic")
	}
}

func TestNewMirrorWithNoTopicsDialsNothing(t *testing.T) {
	m := NewMirror([]string{"localhost:9092"}, KafkaTopics{}, slog.Default())
	defer m.Close()

	if len(m.writers) != 0 {
		t.Fatalf("expected no writers, got %d", len(m.writers))
	}
}
