// Package snapshot drives one tick of the derived-state calculation
// (C8): acquire the previous snapshot, build a fresh calculation
// context against the persistent store and recent user triggers, force
// every registered derived id to evaluate, and fold the result into the
// next snapshot.
package snapshot

import (
	"context"
	"time"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/homestate"
	"nrgchamp/homectl/internal/timeseries"
)

// TriggerLookback bounds how far back user triggers are loaded into a
// new calculation context; a trigger older than this can no longer
// affect a scheduled-heating-mode override or similar.
const TriggerLookback = 48 * time.Hour

// Snapshot is the full set of derived-state frames carried from one
// tick to the next, keyed by derived id.
type Snapshot struct {
	Derived map[string]*timeseries.DataFrame[float64]
}

// Empty is the starting snapshot for a freshly started process.
func Empty() *Snapshot {
	return &Snapshot{Derived: make(map[string]*timeseries.DataFrame[float64])}
}

// UserTriggerSource loads every user-originated trigger request created
// at or after since.
type UserTriggerSource interface {
	AllUserTriggersSince(ctx context.Context, since clock.DateTime) ([]homestate.UserTrigger, error)
}

// Calculator runs ticks against one registry of derived-state
// calculators and one persistent store.
type Calculator struct {
	Registry *homestate.Registry
	Store    homestate.PersistentStore
	Triggers UserTriggerSource

	// DerivedIDs is every registered derived id, preloaded eagerly each
	// tick so the resulting snapshot always has a fresh point for all of
	// them, not just the ones some other component happened to read.
	DerivedIDs []string
}

// Tick computes the next snapshot: load recent user triggers, build a
// context seeded with prev's history, force-evaluate every derived id,
// and fold into a snapshot retained to planningWindow.
func (c *Calculator) Tick(ctx context.Context, prev *Snapshot, planningWindow clock.Duration) (*Snapshot, error) {
	if prev == nil {
		prev = Empty()
	}
	now := clock.Now()

	triggers, err := c.Triggers.AllUserTriggersSince(ctx, now.Add(clock.FromStd(-TriggerLookback)))
	if err != nil {
		return nil, err
	}
	triggerMap := make(map[string]homestate.UserTrigger, len(triggers))
	for _, trig := range triggers {
		if existing, ok := triggerMap[trig.Target]; !ok || trig.Timestamp.After(existing.Timestamp) {
			triggerMap[trig.Target] = trig
		}
	}

	calcCtx := homestate.NewContext(c.Registry, c.Store, now, prev.Derived, triggerMap)

	for _, id := range c.DerivedIDs {
		if _, _, err := calcCtx.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	return &Snapshot{Derived: calcCtx.IntoSnapshot(planningWindow)}, nil
}
