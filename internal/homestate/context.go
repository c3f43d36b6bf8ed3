// Package homestate is the derived-state calculator (C7): pure functions
// from a StateCalculationContext (persistent readings + user triggers +
// the previous tick's derived history) to a DataPoint for every derived
// home-state variant, memoised within one context/tick.
package homestate

import (
	"context"
	"fmt"
	"sync"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// PersistentStore is the subset of internal/statestore's API the
// calculators read through; kept as a narrow interface so this package
// never imports the storage layer directly.
type PersistentStore interface {
	Current(ctx context.Context, id extid.ID) (timeseries.DataPoint[float64], error)
	Series(ctx context.Context, id extid.ID, r clock.DateTimeRange, interp timeseries.Interpolator[float64]) (*timeseries.TimeSeries[float64], error)
}

// UserTrigger is one user-originated intent, keyed by its target.
type UserTrigger struct {
	Target    string
	Value     float64
	Timestamp clock.DateTime
}

// Calculator computes a derived DataPoint for one id, given the context
// it can recursively `Get` other ids from.
type Calculator func(ctx context.Context, c *Context) (timeseries.DataPoint[float64], error)

// Registry maps a derived id's string key to its calculator. The daemon
// builds a single process-wide registry once at startup
// (daemon.buildDerivedState).
type Registry struct {
	calculators map[string]Calculator
	persistent  map[string]extid.ID // never populated; persistent ids are read through Context.GetPersistent
}

func NewRegistry() *Registry {
	return &Registry{calculators: make(map[string]Calculator)}
}

func (r *Registry) Register(id string, calc Calculator) {
	r.calculators[id] = calc
}

// Context is built once per tick from history + fresh persistent frames
// + recent user triggers, per §4.7-4.8.
type Context struct {
	registry *Registry
	store    PersistentStore
	now      clock.DateTime

	history      map[string]*timeseries.DataFrame[float64]
	userTriggers map[string]UserTrigger

	mu      sync.Mutex
	current map[string]timeseries.DataPoint[float64]
	calling map[string]bool
}

// NewContext builds a calculation context. history is the previous
// tick's final derived frames (possibly nil on the first tick);
// userTriggers is every user-trigger request within the last 48h keyed
// by target.
func NewContext(registry *Registry, store PersistentStore, now clock.DateTime, history map[string]*timeseries.DataFrame[float64], userTriggers map[string]UserTrigger) *Context {
	if history == nil {
		history = make(map[string]*timeseries.DataFrame[float64])
	}
	if userTriggers == nil {
		userTriggers = make(map[string]UserTrigger)
	}
	return &Context{
		registry:     registry,
		store:        store,
		now:          now,
		history:      history,
		userTriggers: userTriggers,
		current:      make(map[string]timeseries.DataPoint[float64]),
		calling:      make(map[string]bool),
	}
}

func (c *Context) Now() clock.DateTime { return c.now }

// GetPersistent fetches the latest persistent sample directly from the
// store, bypassing memoisation (persistent ids are cheap and always
// consistent within a tick since the store's cache is invalidated
// synchronously on write).
func (c *Context) GetPersistent(ctx context.Context, id extid.ID) (timeseries.DataPoint[float64], error) {
	return c.store.Current(ctx, id)
}

// Get is the memoised fetch for a derived id: dispatches to its
// registered calculator on first access and caches the result so
// recursive calculators (and repeat callers) observe a consistent
// snapshot for the rest of this tick.
func (c *Context) Get(ctx context.Context, id string) (timeseries.DataPoint[float64], bool, error) {
	c.mu.Lock()
	if dp, ok := c.current[id]; ok {
		c.mu.Unlock()
		return dp, true, nil
	}
	if c.calling[id] {
		// Re-entrant call during this id's own calculation: the
		// dependency graph is static and acyclic by construction, so
		// this should never happen outside of a test mistake. Surface
		// it loudly instead of deadlocking.
		c.mu.Unlock()
		return timeseries.DataPoint[float64]{}, false, fmt.Errorf("cyclic dependency detected computing %s", id)
	}
	calc, ok := c.registry.calculators[id]
	if !ok {
		c.mu.Unlock()
		return timeseries.DataPoint[float64]{}, false, nil
	}
	c.calling[id] = true
	c.mu.Unlock()

	dp, err := calc(ctx, c)

	c.mu.Lock()
	delete(c.calling, id)
	if err != nil {
		c.mu.Unlock()
		return timeseries.DataPoint[float64]{}, false, err
	}
	dp.Timestamp = c.clampTimestamp(id, dp.Timestamp)
	c.current[id] = dp
	c.mu.Unlock()
	return dp, true, nil
}

// clampTimestamp enforces the discipline in §4.7: a freshly calculated
// derived DataPoint's timestamp never exceeds now, and if a history
// frame exists for id, never lands at or before that frame's last
// timestamp. Otherwise timestamps could silently rewind (breaking dedup)
// or land in the future (breaking age-based checks).
func (c *Context) clampTimestamp(id string, ts clock.DateTime) clock.DateTime {
	if ts.After(c.now) {
		return c.now
	}
	if hist, ok := c.history[id]; ok {
		if last, ok := hist.Last(); ok && !ts.After(last.Timestamp) {
			return c.now
		}
	}
	return ts
}

// AllSince returns a DataFrame of id's values since t: for persistent
// ids, a direct store slice with boundary context; for derived ids, the
// history frame with one freshly-computed current point appended,
// re-trimmed to [t, now].
func (c *Context) AllSince(ctx context.Context, id string, persistentID *extid.ID, t clock.DateTime) (*timeseries.DataFrame[float64], error) {
	r := clock.NewRange(t, c.now)
	if persistentID != nil {
		ts, err := c.store.Series(ctx, *persistentID, r, timeseries.LastSeen[float64]())
		if err != nil {
			return nil, err
		}
		return ts.Frame, nil
	}

	dp, ok, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hist := c.history[id]
	if hist == nil {
		hist = timeseries.Empty[float64]()
	}
	pts := hist.Points()
	if ok {
		pts = append(pts, dp)
	}
	frame := timeseries.New(pts)
	trimmed, _ := timeseries.RetainRangeWithContextBefore(frame, r, timeseries.LastSeen[float64](), timeseries.LastSeen[float64]())
	return trimmed, nil
}

// PersistentSeries fetches a raw sensor series directly from the store
// since the given instant, without going through the derived-id history
// machinery; calculators that read another persistent series over a
// window (rather than just its latest point) use this.
func (c *Context) PersistentSeries(ctx context.Context, id extid.ID, since clock.DateTime, interp timeseries.Interpolator[float64]) (*timeseries.TimeSeries[float64], error) {
	return c.store.Series(ctx, id, clock.NewRange(since, c.now), interp)
}

// AllOfLast is AllSince(id, now - d).
func (c *Context) AllOfLast(ctx context.Context, id string, persistentID *extid.ID, d clock.Duration) (*timeseries.DataFrame[float64], error) {
	return c.AllSince(ctx, id, persistentID, c.now.Add(clock.FromStd(-d.Std())))
}

// UserTrigger returns the latest user-trigger request for target, if any.
func (c *Context) UserTrigger(target string) (UserTrigger, bool) {
	t, ok := c.userTriggers[target]
	return t, ok
}

// IntoSnapshot folds every derived id's history + the point computed
// this tick into the new snapshot frame, retained to the planning window
// with context-before preserved (§4.8 step 4).
func (c *Context) IntoSnapshot(planningWindow clock.Duration) map[string]*timeseries.DataFrame[float64] {
	out := make(map[string]*timeseries.DataFrame[float64], len(c.current))
	r := clock.NewRange(c.now.Add(clock.FromStd(-planningWindow.Std())), c.now)
	for id, dp := range c.current {
		hist := c.history[id]
		if hist == nil {
			hist = timeseries.Empty[float64]()
		}
		pts := append(hist.Points(), dp)
		frame := timeseries.New(pts)
		trimmed, _ := timeseries.RetainRangeWithContextBefore(frame, r, timeseries.LastSeen[float64](), timeseries.LastSeen[float64]())
		out[id] = trimmed
	}
	return out
}
