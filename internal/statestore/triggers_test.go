package statestore

import (
	"context"
	"testing"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
)

func TestAddUserTriggerNeverDedups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := clock.Now()

	trig := homestate.UserTrigger{Target: "homekit::Living Room::Switch::On", Value: 1, Timestamp: now}
	if err := s.AddUserTrigger(ctx, trig); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	trig.Timestamp = now.Add(clock.Seconds(1))
	if err := s.AddUserTrigger(ctx, trig); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}

	got, err := s.AllUserTriggersSince(ctx, now.Add(clock.Seconds(-1)))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both identical triggers retained, got %d", len(got))
	}
}

func TestAllUserTriggersSinceExcludesOlder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := clock.Now()

	old := homestate.UserTrigger{Target: "a", Value: 1, Timestamp: now.Add(clock.Hours(-2))}
	recent := homestate.UserTrigger{Target: "b", Value: 1, Timestamp: now}
	if err := s.AddUserTrigger(ctx, old); err != nil {
		t.Fatalf("insert old failed: %v", err)
	}
	if err := s.AddUserTrigger(ctx, recent); err != nil {
		t.Fatalf("insert recent failed: %v", err)
	}

	got, err := s.AllUserTriggersSince(ctx, now.Add(clock.Hours(-1)))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].Target != "b" {
		t.Fatalf("expected only the recent trigger, got %+v", got)
	}
}

func TestAddStateDiscardsDedupFlag(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := extid.New("temperature", "dedup_test")
	now := clock.Now()

	if err := s.AddState(ctx, id, 1.0, now); err != nil {
		t.Fatalf("first AddState failed: %v", err)
	}
	if err := s.AddState(ctx, id, 1.0, now.Add(clock.Minutes(1))); err != nil {
		t.Fatalf("deduped AddState should still report nil error, got %v", err)
	}
}

func TestAddItemAvailabilityMarksSeen(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := clock.Now()

	if err := s.AddItemAvailability(ctx, "zigbee", "sensor-1", now); err != nil {
		t.Fatalf("mark seen failed: %v", err)
	}

	stale, err := s.StaleItems(ctx, now.Add(clock.Minutes(1)))
	if err != nil {
		t.Fatalf("stale items query failed: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected item not yet stale, got %+v", stale)
	}
}
