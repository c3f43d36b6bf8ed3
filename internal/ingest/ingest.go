// Package ingest runs the incoming pipeline (C9): each integration
// (z2m, Tasmota, HomeKit, energy meters, HTTP ingestion) implements
// Source, and one Runner per source translates its messages into
// state/trigger/availability writes without ever dying on a bad
// payload.
package ingest

import (
	"context"
	"log/slog"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
)

// Data is the sum type a Source's ToIncomingData produces.
type Data interface{ isIncomingData() }

type StateValue struct {
	ID    extid.ID
	Value float64
	At    clock.DateTime
}

func (StateValue) isIncomingData() {}

type UserTrigger struct {
	Trigger homestate.UserTrigger
}

func (UserTrigger) isIncomingData() {}

type ItemAvailability struct {
	Source, Item string
	Seen         clock.DateTime
}

func (ItemAvailability) isIncomingData() {}

// Source abstracts one integration: a suspending receive loop plus pure
// translation steps, generic over its own wire message type Msg.
type Source[Msg any] interface {
	// Name identifies this source for logging.
	Name() string
	// Recv suspends until the next message, or returns ok=false once the
	// underlying transport is closed.
	Recv(ctx context.Context) (msg Msg, ok bool, err error)
	// DeviceID extracts the originating device id, or ok=false to ignore
	// the message entirely (e.g. a message this bridge doesn't own).
	DeviceID(msg Msg) (deviceID string, ok bool)
	// Channels is a config-driven lookup of which logical channels this
	// device reports on; empty means "ignore this device".
	Channels(deviceID string) []string
	// ToIncomingData parses msg on channel ch into zero or more Data
	// values.
	ToIncomingData(deviceID, channel string, msg Msg) ([]Data, error)
}

// Applier is the domain API incoming data is applied through.
type Applier interface {
	AddState(ctx context.Context, id extid.ID, value float64, at clock.DateTime) error
	AddUserTrigger(ctx context.Context, trig homestate.UserTrigger) error
	AddItemAvailability(ctx context.Context, source, item string, seen clock.DateTime) error
}

// Runner drives one Source's live loop.
type Runner[Msg any] struct {
	log     *slog.Logger
	source  Source[Msg]
	applier Applier
}

func NewRunner[Msg any](log *slog.Logger, source Source[Msg], applier Applier) *Runner[Msg] {
	return &Runner[Msg]{log: log.With(slog.String("source", source.Name())), source: source, applier: applier}
}

// Run loops recv/translate/apply until the source closes or ctx is
// cancelled. Parse and apply errors are logged and never stop the loop.
func (r *Runner[Msg]) Run(ctx context.Context) error {
	for {
		msg, ok, err := r.source.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("recv error", slog.Any("error", err))
			continue
		}
		if !ok {
			return nil
		}
		r.handle(ctx, msg)
	}
}

// ReplayInitialLoad applies a bounded batch of "current state" messages
// LIFO (newest physical entry first) before the live loop starts, so a
// device that reported twice during the initial load settles on its
// newest value rather than its oldest.
func (r *Runner[Msg]) ReplayInitialLoad(ctx context.Context, batch []Msg) {
	for i := len(batch) - 1; i >= 0; i-- {
		r.handle(ctx, batch[i])
	}
}

func (r *Runner[Msg]) handle(ctx context.Context, msg Msg) {
	deviceID, ok := r.source.DeviceID(msg)
	if !ok {
		return
	}
	channels := r.source.Channels(deviceID)
	if len(channels) == 0 {
		return
	}

	for _, ch := range channels {
		data, err := r.source.ToIncomingData(deviceID, ch, msg)
		if err != nil {
			r.log.Warn("parse failed", slog.String("device_id", deviceID), slog.String("channel", ch), slog.Any("error", err))
			continue
		}
		for _, d := range data {
			if err := r.apply(ctx, d); err != nil {
				r.log.Warn("apply failed", slog.String("device_id", deviceID), slog.Any("error", err))
			}
		}
	}
}

func (r *Runner[Msg]) apply(ctx context.Context, d Data) error {
	switch v := d.(type) {
	case StateValue:
		return r.applier.AddState(ctx, v.ID, v.Value, v.At)
	case UserTrigger:
		return r.applier.AddUserTrigger(ctx, v.Trigger)
	case ItemAvailability:
		return r.applier.AddItemAvailability(ctx, v.Source, v.Item, v.Seen)
	default:
		return nil
	}
}
