// Package command implements the append-only command log (C6): the
// state machine, supersession, idempotency/freshness dedup, and the
// per-target cache the dispatcher and planner both read through.
package command

import (
	"encoding/json"
	"fmt"
	"time"

	"nrgchamp/homectl/internal/clock"
)

// Target identifies the controlled resource a Command acts on, with
// payload fields (desired value, notification body, ...) dropped. Two
// commands with the same Target compete for the same at-most-one-
// in-flight slot.
type Target struct {
	Type         string
	Device       string
	Recipient    string
	Notification string
}

func (t Target) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", t.Type, t.Device, t.Recipient, t.Notification)
}

// HeatingMode is the payload of a SetHeating command.
type HeatingMode struct {
	Mode        string // "auto", "off", "heat"
	Temperature float64
	Until       time.Time
}

// Command is the sum type of every outgoing instruction the planner or
// the HTTP surface can append to the log. Exactly one of the payload
// fields is meaningful, selected by Type.
type Command struct {
	Type string

	// SetPower / SetEnergySaving / ControlFan / SetThermostatAmbientTemperature target
	Device string

	PowerOn            bool        // set_power, set_energy_saving
	Heating            HeatingMode // set_heating
	Airflow            float64     // control_fan, encoded per unit.FanAirflow
	AmbientTemperature float64     // set_thermostat_ambient_temperature

	Recipient    string // push_notify
	Notification string // push_notify
	Action       string // push_notify: "notify" | "dismiss"
}

const (
	TypeSetPower                       = "set_power"
	TypeSetHeating                     = "set_heating"
	TypePushNotify                     = "push_notify"
	TypeSetEnergySaving                = "set_energy_saving"
	TypeControlFan                     = "control_fan"
	TypeSetThermostatAmbientTemperature = "set_thermostat_ambient_temperature"
)

// Target projects Command onto its CommandTarget, dropping payload.
func (c Command) Target() Target {
	switch c.Type {
	case TypePushNotify:
		return Target{Type: c.Type, Recipient: c.Recipient, Notification: c.Notification}
	default:
		return Target{Type: c.Type, Device: c.Device}
	}
}

// jsonShape is the wire representation matching the canonical
// snake_case shapes in §6.
type jsonShape struct {
	Type               string  `json:"type"`
	Device             string  `json:"device,omitempty"`
	PowerOn            *bool   `json:"power_on,omitempty"`
	Mode               string  `json:"mode,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Until              *string `json:"until,omitempty"`
	Airflow            *float64 `json:"airflow,omitempty"`
	AmbientTemperature *float64 `json:"ambient_temperature,omitempty"`
	Recipient          string  `json:"recipient,omitempty"`
	Notification       string  `json:"notification,omitempty"`
	Action             string  `json:"action,omitempty"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	s := jsonShape{Type: c.Type}
	switch c.Type {
	case TypeSetPower:
		s.Device = c.Device
		s.PowerOn = &c.PowerOn
	case TypeSetHeating:
		s.Device = c.Device
		s.Mode = c.Heating.Mode
		if c.Heating.Mode == "heat" {
			s.Temperature = &c.Heating.Temperature
			until := c.Heating.Until.UTC().Format(time.RFC3339)
			s.Until = &until
		}
	case TypePushNotify:
		s.Recipient = c.Recipient
		s.Notification = c.Notification
		s.Action = c.Action
	case TypeSetEnergySaving:
		s.Device = c.Device
		s.PowerOn = &c.PowerOn
	case TypeControlFan:
		s.Device = c.Device
		s.Airflow = &c.Airflow
	case TypeSetThermostatAmbientTemperature:
		s.Device = c.Device
		s.AmbientTemperature = &c.AmbientTemperature
	}
	return json.Marshal(s)
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var s jsonShape
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Command{Type: s.Type, Device: s.Device, Recipient: s.Recipient, Notification: s.Notification, Action: s.Action}
	if s.PowerOn != nil {
		c.PowerOn = *s.PowerOn
	}
	if s.Mode != "" {
		c.Heating.Mode = s.Mode
	}
	if s.Temperature != nil {
		c.Heating.Temperature = *s.Temperature
	}
	if s.Until != nil {
		if t, err := time.Parse(time.RFC3339, *s.Until); err == nil {
			c.Heating.Until = t
		}
	}
	if s.Airflow != nil {
		c.Airflow = *s.Airflow
	}
	if s.AmbientTemperature != nil {
		c.AmbientTemperature = *s.AmbientTemperature
	}
	return nil
}

// Equal compares two commands by their wire representation, used by the
// idempotency check ("same command payload").
func Equal(a, b Command) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// Source is System(key) for planner-originated commands or User(key) for
// HTTP/HomeKit-originated ones.
type Source struct {
	Kind string // "system" | "user"
	Key  string
}

func SystemSource(key string) Source { return Source{Kind: "system", Key: key} }
func UserSource(key string) Source   { return Source{Kind: "user", Key: key} }

// State is the command's position in Pending -> InProgress -> {Success, Error}.
type State string

const (
	Pending    State = "pending"
	InProgress State = "in_progress"
	Success    State = "success"
	Error      State = "error"
)

// Execution is one row of the command log.
type Execution struct {
	ID            int64
	Command       Command
	State         State
	ErrorMessage  string
	Created       clock.DateTime
	Source        Source
	CorrelationID string
}

// Result of Store.Execute.
type Result string

const (
	Triggered Result = "triggered"
	Skipped   Result = "skipped"
)
