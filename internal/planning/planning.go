// Package planning configures internal/planner's generic goal/action
// machinery for this installation's concrete domain: one heating goal
// per zone (which of its tiers — comfort, energy saving, sleep — should
// be the active setpoint, decided entirely by the zone's scheduled
// heating mode), one ventilation goal per room prone to condensation,
// and a notification action for a window left open. Every action reads
// its precondition straight out of the same *homestate.Context the
// snapshot calculator just built, so planning never re-derives state it
// doesn't own.
package planning

import (
	"context"
	"fmt"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/homestate"
	"nrgchamp/homectl/internal/planner"
)

// API is the read-only view every configured Action evaluates its
// precondition against.
type API = *homestate.Context

// ZoneHeatingConfig binds one zone's scheduled heating mode to the
// device it controls and the setpoint each tier should hold.
type ZoneHeatingConfig struct {
	Zone             string
	ModeID           string
	Device           string
	ComfortTemp      float64
	EnergySavingTemp float64
	SleepTemp        float64
}

// zoneHeatingAction starts/stops a single (zone, tier) setpoint. Three
// of these share one zone and one command.Target (the zone's device),
// so the planner's resource lock guarantees at most one tier wins a
// given tick even though HeatingMode only ever equals one tier at a
// time anyway — the lock is what makes a future tier overlap safe to
// add without re-deriving precedence here.
type zoneHeatingAction struct {
	name   string
	modeID string
	tier   homestate.HeatingMode
	device string
	temp   float64
}

func (a *zoneHeatingAction) String() string { return a.name }

func (a *zoneHeatingAction) PreconditionsFulfilled(ctx context.Context, api API) (bool, error) {
	point, ok, err := api.Get(ctx, a.modeID)
	if err != nil {
		return false, fmt.Errorf("read heating mode %s: %w", a.modeID, err)
	}
	if !ok {
		return false, nil
	}
	return homestate.HeatingMode(point.Value) == a.tier, nil
}

func (a *zoneHeatingAction) Execution() planner.ActionExecution {
	start := command.Command{
		Type:    command.TypeSetHeating,
		Device:  a.device,
		Heating: command.HeatingMode{Mode: "heat", Temperature: a.temp},
	}
	stop := command.Command{
		Type:    command.TypeSetHeating,
		Device:  a.device,
		Heating: command.HeatingMode{Mode: "off"},
	}
	return planner.StartAndStop(a.name, start, stop)
}

// BuildHeatingGoals turns every configured zone into a goal whose
// actions are its comfort/energy-saving/sleep tiers, in that order.
func BuildHeatingGoals(zones []ZoneHeatingConfig) []planner.GoalActions[string, API] {
	out := make([]planner.GoalActions[string, API], 0, len(zones))
	for _, z := range zones {
		actions := []planner.Action[API]{
			&zoneHeatingAction{name: z.Zone + ":comfort", modeID: z.ModeID, tier: homestate.HeatingComfort, device: z.Device, temp: z.ComfortTemp},
			&zoneHeatingAction{name: z.Zone + ":energy_saving", modeID: z.ModeID, tier: homestate.HeatingEnergySaving, device: z.Device, temp: z.EnergySavingTemp},
			&zoneHeatingAction{name: z.Zone + ":sleep", modeID: z.ModeID, tier: homestate.HeatingSleep, device: z.Device, temp: z.SleepTemp},
		}
		out = append(out, planner.GoalActions[string, API]{Goal: z.Zone, Actions: actions})
	}
	return out
}

// FanVentilationConfig binds a room's risk-of-mould derived id to the
// fan device that should run while the risk stays above threshold.
type FanVentilationConfig struct {
	Room      string
	RiskID    string
	Device    string
	Airflow   float64
	Threshold float64
}

type fanVentilationAction struct {
	name      string
	riskID    string
	device    string
	airflow   float64
	threshold float64
}

func (a *fanVentilationAction) String() string { return a.name }

func (a *fanVentilationAction) PreconditionsFulfilled(ctx context.Context, api API) (bool, error) {
	point, ok, err := api.Get(ctx, a.riskID)
	if err != nil {
		return false, fmt.Errorf("read mould risk %s: %w", a.riskID, err)
	}
	return ok && point.Value >= a.threshold, nil
}

func (a *fanVentilationAction) Execution() planner.ActionExecution {
	start := command.Command{Type: command.TypeControlFan, Device: a.device, Airflow: a.airflow}
	stop := command.Command{Type: command.TypeControlFan, Device: a.device, Airflow: 0}
	return planner.StartAndStop(a.name, start, stop)
}

// BuildVentilationGoals turns every configured room into its own goal,
// separate from the heating goals so a mould-risk fan and a zone
// thermostat never fight over the resource lock.
func BuildVentilationGoals(rooms []FanVentilationConfig) []planner.GoalActions[string, API] {
	out := make([]planner.GoalActions[string, API], 0, len(rooms))
	for _, r := range rooms {
		action := &fanVentilationAction{name: r.Room + ":ventilation", riskID: r.RiskID, device: r.Device, airflow: r.Airflow, threshold: r.Threshold}
		out = append(out, planner.GoalActions[string, API]{Goal: r.Room + ":ventilation", Actions: []planner.Action[API]{action}})
	}
	return out
}

// WindowOpenNotifyConfig binds a derived "window open too long" signal
// to the push notification that should fire while it holds.
type WindowOpenNotifyConfig struct {
	Room         string
	SignalID     string
	Recipient    string
	Notification string
}

type windowOpenNotifyAction struct {
	name         string
	signalID     string
	recipient    string
	notification string
}

func (a *windowOpenNotifyAction) String() string { return a.name }

func (a *windowOpenNotifyAction) PreconditionsFulfilled(ctx context.Context, api API) (bool, error) {
	point, ok, err := api.Get(ctx, a.signalID)
	if err != nil {
		return false, fmt.Errorf("read window signal %s: %w", a.signalID, err)
	}
	return ok && point.Value >= 0.5, nil
}

// Execution has no stop command: a push notification isn't a device
// state to hold, just a one-shot fired while the signal stays true. The
// freshness window in command.Store.Execute keeps it from repeating on
// every tick.
func (a *windowOpenNotifyAction) Execution() planner.ActionExecution {
	start := command.Command{Type: command.TypePushNotify, Recipient: a.recipient, Notification: a.notification}
	return planner.StartOnly(a.name, start)
}

// BuildNotifyGoals turns every configured reminder into its own goal.
func BuildNotifyGoals(reminders []WindowOpenNotifyConfig) []planner.GoalActions[string, API] {
	out := make([]planner.GoalActions[string, API], 0, len(reminders))
	for _, r := range reminders {
		action := &windowOpenNotifyAction{name: r.Room + ":window_open_notify", signalID: r.SignalID, recipient: r.Recipient, notification: r.Notification}
		out = append(out, planner.GoalActions[string, API]{Goal: r.Room + ":window_open_notify", Actions: []planner.Action[API]{action}})
	}
	return out
}

// ActiveGoalNames returns every goal name from config, unconditionally
// active: each action's own precondition already encodes whether it
// should be running (the matching HeatingMode tier, the mould risk
// threshold, the notification signal), so a goal being "active" here
// only ever gates the stop-on-deactivation path, which these domains
// don't otherwise need.
func ActiveGoalNames(config []planner.GoalActions[string, API]) []string {
	out := make([]string, len(config))
	for i, ga := range config {
		out[i] = ga.Goal
	}
	return out
}
