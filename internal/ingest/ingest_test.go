package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
)

type fakeMsg struct {
	device string
	value  float64
	fail   bool
}

type fakeSource struct {
	queue []fakeMsg
	pos   int
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Recv(ctx context.Context) (fakeMsg, bool, error) {
	if s.pos >= len(s.queue) {
		return fakeMsg{}, false, nil
	}
	m := s.queue[s.pos]
	s.pos++
	return m, true, nil
}

func (s *fakeSource) DeviceID(msg fakeMsg) (string, bool) {
	if msg.device == "" {
		return "", false
	}
	return msg.device, true
}

func (s *fakeSource) Channels(deviceID string) []string { return []string{"temperature"} }

func (s *fakeSource) ToIncomingData(deviceID, channel string, msg fakeMsg) ([]Data, error) {
	if msg.fail {
		return nil, errors.New("bad payload")
	}
	return []Data{StateValue{ID: extid.New("temperature", deviceID), Value: msg.value, At: clock.Now()}}, nil
}

type recordingApplier struct {
	states []StateValue
}

func (a *recordingApplier) AddState(ctx context.Context, id extid.ID, value float64, at clock.DateTime) error {
	a.states = append(a.states, StateValue{ID: id, Value: value, At: at})
	return nil
}
func (a *recordingApplier) AddUserTrigger(ctx context.Context, trig homestate.UserTrigger) error {
	return nil
}
func (a *recordingApplier) AddItemAvailability(ctx context.Context, source, item string, seen clock.DateTime) error {
	return nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunnerAppliesAndSkipsParseErrors(t *testing.T) {
	source := &fakeSource{queue: []fakeMsg{
		{device: "living_room", value: 20.0},
		{device: "living_room", value: 21.0, fail: true},
		{device: "", value: 99.0}, // ignored: no device id
	}}
	applier := &recordingApplier{}
	r := NewRunner[fakeMsg](testLogger(), source, applier)

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(applier.states) != 1 {
		t.Fatalf("expected exactly one applied state (the bad payload and no-device message are both skipped), got %d", len(applier.states))
	}
	if applier.states[0].Value != 20.0 {
		t.Fatalf("expected value 20.0, got %v", applier.states[0].Value)
	}
}

func TestReplayInitialLoadDrainsLIFO(t *testing.T) {
	source := &fakeSource{}
	applier := &recordingApplier{}
	r := NewRunner[fakeMsg](testLogger(), source, applier)

	batch := []fakeMsg{
		{device: "kitchen", value: 1.0},
		{device: "kitchen", value: 2.0},
		{device: "kitchen", value: 3.0},
	}
	r.ReplayInitialLoad(context.Background(), batch)

	if len(applier.states) != 3 {
		t.Fatalf("expected all 3 batch entries applied, got %d", len(applier.states))
	}
	if applier.states[0].Value != 3.0 {
		t.Fatalf("expected newest entry (3.0) applied first, got %v", applier.states[0].Value)
	}
	if applier.states[2].Value != 1.0 {
		t.Fatalf("expected oldest entry (1.0) applied last, got %v", applier.states[2].Value)
	}
}
