// Package planner runs the goal/action planner (C11): for every
// configured goal it decides, action by action, whether that action's
// controlled target should be started or stopped this tick, claiming
// each target through a ResourceLock so a start always wins a
// simultaneous stop on the same target.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/command"
)

// shortCircuitWindow: a command this recent on the action's target is
// still settling, so its trigger alone decides is_fulfilled/is_running
// without re-evaluating preconditions.
const shortCircuitWindow = 30 * time.Second

// triggerLookback bounds how far back a Start trigger is still
// considered "last started", matching the reflected-in-state check.
const triggerLookback = 48 * time.Hour

// Tri is a tri-state bool: known true, known false, or undecided.
type Tri int

const (
	TriUnknown Tri = iota
	TriTrue
	TriFalse
)

func triOf(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

func (t Tri) String() string {
	switch t {
	case TriTrue:
		return "yes"
	case TriFalse:
		return "no"
	default:
		return "-"
	}
}

// ActionExecutionTrigger classifies the source of the latest command on
// an action's controlled target.
type ActionExecutionTrigger int

const (
	TriggerNone ActionExecutionTrigger = iota
	TriggerStart
	TriggerStop
	TriggerOther
)

// ActionExecution is the command-side half of an Action: which target
// it controls and which commands start/stop it. An action with no
// StopCommand can only ever be started and held (e.g. a notification);
// one with no StartCommand exists purely to claim a lock.
type ActionExecution struct {
	Name         string
	Target       command.Target
	StartCommand *command.Command
	StopCommand  *command.Command
}

func StartOnly(name string, start command.Command) ActionExecution {
	return ActionExecution{Name: name, Target: start.Target(), StartCommand: &start}
}

// StartAndStop builds an execution whose start and stop commands should
// target the same resource. If they don't, the start command's target
// wins; callers should treat that as a configuration bug.
func StartAndStop(name string, start, stop command.Command) ActionExecution {
	return ActionExecution{Name: name, Target: start.Target(), StartCommand: &start, StopCommand: &stop}
}

// LockOnly builds an execution that only ever claims target, never
// issuing a command itself (used by actions whose "start"/"stop" is a
// side effect performed outside the command log).
func LockOnly(name string, target command.Target) ActionExecution {
	return ActionExecution{Name: name, Target: target}
}

func (e ActionExecution) startSource() command.Source {
	return command.SystemSource(fmt.Sprintf("planning:%s:start", e.Name))
}

func (e ActionExecution) stopSource() command.Source {
	return command.SystemSource(fmt.Sprintf("planning:%s:stop", e.Name))
}

func (e ActionExecution) toTrigger(source command.Source) ActionExecutionTrigger {
	switch source {
	case e.startSource():
		return TriggerStart
	case e.stopSource():
		return TriggerStop
	default:
		return TriggerOther
	}
}

func (e ActionExecution) latestTriggerSince(ctx context.Context, store *command.Store, since clock.DateTime) (ActionExecutionTrigger, error) {
	exec, err := store.GetLatestCommand(ctx, e.Target, since)
	if err != nil {
		return TriggerNone, err
	}
	if exec == nil {
		return TriggerNone, nil
	}
	return e.toTrigger(exec.Source), nil
}

// isReflectedInState reports whether this execution's start command is
// currently visible in state. TriUnknown means the action has no start
// command at all, so "is it running" is undecided rather than false.
func (e ActionExecution) isReflectedInState(ctx context.Context, reflected command.ReflectedChecker) (Tri, error) {
	if e.StartCommand == nil {
		return TriUnknown, nil
	}
	ok, err := reflected(ctx, *e.StartCommand)
	if err != nil {
		return TriUnknown, err
	}
	return triOf(ok), nil
}

// Action is one controllable behaviour attached to a goal. T is
// whatever read-only state snapshot PreconditionsFulfilled needs.
type Action[T any] interface {
	fmt.Stringer
	PreconditionsFulfilled(ctx context.Context, api T) (bool, error)
	Execution() ActionExecution
}

// GoalActions pairs a goal with the ordered list of actions that serve
// it. Order across the whole config matters: earlier actions claim
// resource locks first, first come first served.
type GoalActions[G comparable, T any] struct {
	Goal    G
	Actions []Action[T]
}

// ActionResult is one action's planning outcome, kept around for
// tracing and for the unchanged-since-last-tick comparison.
type ActionResult struct {
	Action          string
	ShouldBeStarted bool
	ShouldBeStopped bool
	IsGoalActive    bool
	Locked          bool
	IsFulfilled     Tri
	IsRunning       Tri
}

type actionDecision[T any] struct {
	action Action[T]
	result ActionResult
}

// resourceLock tracks which command.Targets have already been claimed
// this tick. Config order decides who gets there first.
type resourceLock struct {
	claimed map[command.Target]bool
}

func newResourceLock() *resourceLock {
	return &resourceLock{claimed: make(map[command.Target]bool)}
}

func (r *resourceLock) isLocked(t command.Target) bool { return r.claimed[t] }
func (r *resourceLock) lock(t command.Target)          { r.claimed[t] = true }

// Tracer records a planning tick's results, distinct from the command
// log itself, for later inspection.
type Tracer interface {
	AddPlanningTrace(ctx context.Context, results []ActionResult) error
}

// Planner runs one goal/action config repeatedly, remembering the last
// tick's results so it only logs and traces when something changed.
type Planner[G comparable, T any] struct {
	log       *slog.Logger
	store     *command.Store
	reflected command.ReflectedChecker
	tracer    Tracer

	mu          sync.Mutex
	lastResults []ActionResult
}

func New[G comparable, T any](log *slog.Logger, store *command.Store, reflected command.ReflectedChecker, tracer Tracer) *Planner[G, T] {
	return &Planner[G, T]{
		log:       log.With(slog.String("component", "planner")),
		store:     store,
		reflected: reflected,
		tracer:    tracer,
	}
}

// Tick evaluates config against activeGoals and api, then starts/stops
// every action that decided to change state.
func (p *Planner[G, T]) Tick(ctx context.Context, activeGoals []G, config []GoalActions[G, T], api T) {
	decisions, results := p.findNextActions(ctx, activeGoals, config, api)

	if p.resultsChanged(results) {
		p.log.Info("planning result changed", slog.Int("actions", len(results)))
		if p.tracer != nil {
			if err := p.tracer.AddPlanningTrace(ctx, results); err != nil {
				p.log.Error("log planning trace", slog.Any("error", err))
			}
		}
	}

	for _, d := range decisions {
		p.execute(ctx, d)
	}
}

func (p *Planner[G, T]) resultsChanged(results []ActionResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Equal(p.lastResults, results) {
		return false
	}
	p.lastResults = slices.Clone(results)
	return true
}

func (p *Planner[G, T]) execute(ctx context.Context, d actionDecision[T]) {
	exec := d.action.Execution()

	if d.result.ShouldBeStarted {
		if exec.StartCommand == nil {
			p.log.Error("action should start but has no start command configured", slog.String("action", d.action.String()))
		} else {
			p.log.Info("starting action", slog.String("action", d.action.String()))
			correlation := fmt.Sprintf("planning:%s:start:%s", d.action.String(), clock.Now())
			if _, err := p.store.Execute(ctx, *exec.StartCommand, exec.startSource(), correlation, p.reflected); err != nil {
				p.log.Error("starting action failed", slog.String("action", d.action.String()), slog.Any("error", err))
			}
		}
	}

	if d.result.ShouldBeStopped {
		if exec.StopCommand == nil {
			p.log.Error("action should stop but has no stop command configured", slog.String("action", d.action.String()))
		} else {
			p.log.Info("stopping action", slog.String("action", d.action.String()))
			correlation := fmt.Sprintf("planning:%s:stop:%s", d.action.String(), clock.Now())
			if _, err := p.store.Execute(ctx, *exec.StopCommand, exec.stopSource(), correlation, p.reflected); err != nil {
				p.log.Error("stopping action failed", slog.String("action", d.action.String()), slog.Any("error", err))
			}
		}
	}
}

// findNextActions is the sorting-order-matters core: config is walked in
// order, first pass decides starts (locking their target immediately),
// second pass decides stops gated by whatever the first pass already
// locked, so a start always wins a simultaneous stop on the same
// target.
func (p *Planner[G, T]) findNextActions(ctx context.Context, activeGoals []G, config []GoalActions[G, T], api T) ([]actionDecision[T], []ActionResult) {
	lock := newResourceLock()
	decisions := make([]actionDecision[T], 0)

	for _, ga := range config {
		active := slices.Contains(activeGoals, ga.Goal)

		for _, action := range ga.Actions {
			result := ActionResult{Action: action.String(), IsGoalActive: active}
			exec := action.Execution()

			if lock.isLocked(exec.Target) {
				result.Locked = true
				decisions = append(decisions, actionDecision[T]{action: action, result: result})
				continue
			}

			fulfilled, running := getFulfilledAndRunningState(ctx, p.log, action, api, p.store, p.reflected)
			result.IsFulfilled = triOf(fulfilled)
			result.IsRunning = running

			if active && fulfilled {
				lock.lock(exec.Target)
				result.ShouldBeStarted = running == TriFalse
			}
			if !active || !fulfilled {
				result.ShouldBeStopped = running == TriTrue
			}

			decisions = append(decisions, actionDecision[T]{action: action, result: result})
		}
	}

	for i := range decisions {
		if !decisions[i].result.ShouldBeStopped {
			continue
		}
		target := decisions[i].action.Execution().Target
		if lock.isLocked(target) {
			decisions[i].result.ShouldBeStopped = false
			decisions[i].result.Locked = true
		} else {
			lock.lock(target)
		}
	}

	results := make([]ActionResult, len(decisions))
	for i, d := range decisions {
		results[i] = d.result
	}
	return decisions, results
}

func getFulfilledAndRunningState[T any](ctx context.Context, log *slog.Logger, action Action[T], api T, store *command.Store, reflected command.ReflectedChecker) (bool, Tri) {
	exec := action.Execution()
	now := clock.Now()

	latest, err := exec.latestTriggerSince(ctx, store, now.Add(clock.FromStd(-shortCircuitWindow)))
	if err != nil {
		log.Warn("error getting latest trigger of action, assuming not running", slog.String("action", action.String()), slog.Any("error", err))
		latest = TriggerNone
	}
	switch latest {
	case TriggerStart:
		return true, TriTrue
	case TriggerStop:
		return false, TriFalse
	}

	fulfilled, err := action.PreconditionsFulfilled(ctx, api)
	if err != nil {
		log.Warn("error checking preconditions of action, assuming not fulfilled", slog.String("action", action.String()), slog.Any("error", err))
		fulfilled = false
	}

	wasStartedLast, err := exec.latestTriggerSince(ctx, store, now.Add(clock.FromStd(-triggerLookback)))
	if err != nil {
		log.Warn("error checking running state of action, assuming not running", slog.String("action", action.String()), slog.Any("error", err))
		wasStartedLast = TriggerNone
	}

	isReflected, err := exec.isReflectedInState(ctx, reflected)
	if err != nil {
		log.Warn("error checking running state of action, assuming not running", slog.String("action", action.String()), slog.Any("error", err))
		isReflected = TriUnknown
	}

	var running Tri
	switch {
	case wasStartedLast == TriggerStart && isReflected == TriTrue:
		running = TriTrue
	case isReflected == TriUnknown:
		running = TriUnknown
	default:
		running = TriFalse
	}

	return fulfilled, running
}
