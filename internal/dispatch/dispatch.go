// Package dispatch runs the command dispatcher (C10): claim one pending
// command, walk a chain of executors until one claims it, and settle
// its terminal state.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/eventbus"
)

// FallbackInterval bounds how long the dispatcher sleeps waiting for a
// command_added broadcast before polling anyway.
const FallbackInterval = 15 * time.Second

// Executor claims a command if it recognizes its type/device, performs
// the side effect, and reports whether it was the right executor.
// Ok(false) means "not mine, try the next one" and must not be confused
// with a handled failure.
type Executor interface {
	Execute(ctx context.Context, cmd command.Command) (bool, error)
	Name() string
}

// Dispatcher runs the single-worker claim loop.
type Dispatcher struct {
	log       *slog.Logger
	store     *command.Store
	bus       *eventbus.Bus
	executors []Executor
}

func New(log *slog.Logger, store *command.Store, bus *eventbus.Bus, executors ...Executor) *Dispatcher {
	return &Dispatcher{
		log:       log.With(slog.String("component", "dispatcher")),
		store:     store,
		bus:       bus,
		executors: executors,
	}
}

// Run blocks until ctx is cancelled, processing one command per
// iteration and skipping the wait whenever a command was actually
// found, per §4.10 step 5.
func (d *Dispatcher) Run(ctx context.Context) error {
	sub := d.bus.Subscribe(eventbus.CommandAdded)
	for {
		processed, err := d.processOne(ctx)
		if err != nil {
			d.log.Error("dispatch iteration failed", slog.Any("error", err))
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub:
		case <-time.After(FallbackInterval):
		}
	}
}

func (d *Dispatcher) processOne(ctx context.Context) (bool, error) {
	exec, err := d.store.GetCommandForProcessing(ctx)
	if err != nil {
		return false, err
	}
	if exec == nil {
		return false, nil
	}

	log := d.log.With(slog.Int64("command_id", exec.ID), slog.String("correlation_id", exec.CorrelationID))

	for _, executor := range d.executors {
		handled, err := executor.Execute(ctx, exec.Command)
		if err != nil {
			log.Error("executor failed", slog.String("executor", executor.Name()), slog.Any("error", err))
			if serr := d.store.SetCommandStateError(ctx, exec.ID, err.Error()); serr != nil {
				return true, serr
			}
			return true, nil
		}
		if handled {
			log.Info("command executed", slog.String("executor", executor.Name()))
			return true, d.store.SetCommandStateSuccess(ctx, exec.ID)
		}
	}

	log.Warn("no executor claimed command, leaving in progress")
	return true, nil
}
