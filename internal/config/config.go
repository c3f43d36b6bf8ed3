// Package config loads the daemon's structured configuration: a TOML
// baseline file overlaid with a handful of deployment-time environment
// variables, adapted from Tutu-Engine-tutuengine's nested config struct
// and mape's env-overlay idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"nrgchamp/homectl/internal/extid"
)

// Config is the whole daemon configuration tree.
type Config struct {
	Node    NodeConfig    `toml:"node"`
	HTTP    HTTPConfig    `toml:"http"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	Kafka   KafkaConfig   `toml:"kafka"`
	Labels  LabelsConfig  `toml:"labels"`
	Planner PlannerConfig `toml:"planner"`

	Zones      []ZoneConfig      `toml:"zone"`
	MouldRooms []MouldRoomConfig `toml:"mould_room"`
}

// IDRef is the TOML-friendly spelling of an extid.ID, since TOML has no
// native tuple type to decode directly into one.
type IDRef struct {
	Type    string `toml:"type"`
	Variant string `toml:"variant"`
}

// ToExtID converts the TOML-decoded pair into the internal identifier type.
func (r IDRef) ToExtID() extid.ID { return extid.New(r.Type, r.Variant) }

// EveningWindowConfig names one daily window (minutes since midnight)
// during which a zone should prefer its comfort tier over energy saving.
type EveningWindowConfig struct {
	StartMinute int `toml:"start_minute"`
	EndMinute   int `toml:"end_minute"`
}

// ZoneConfig describes one heated zone of the installation: the derived
// scheduled-heating-mode id that drives it, the device it controls, the
// setpoints for each tier, and the signals that mode calculation reads.
type ZoneConfig struct {
	Name   string `toml:"name"`
	ModeID string `toml:"mode_id"`
	Device string `toml:"device"`

	ComfortTemp      float64 `toml:"comfort_temp"`
	EnergySavingTemp float64 `toml:"energy_saving_temp"`
	SleepTemp        float64 `toml:"sleep_temp"`

	AwayID               IDRef   `toml:"away_id"`
	WindowOpenedID       IDRef   `toml:"window_opened_id"`
	OccupancyPresenceIDs []IDRef `toml:"occupancy_presence_ids"`
	ManualOverrideTarget string  `toml:"manual_override_target"`

	EveningWindows []EveningWindowConfig `toml:"evening_window"`
}

// MouldRoomConfig describes one room prone to condensation: the derived
// risk-of-mould id, the humidity/dew-point signals it's computed from,
// the reference rooms its dew point is compared against, and the fan it
// should drive once the risk crosses threshold.
type MouldRoomConfig struct {
	Name                 string   `toml:"name"`
	RiskID               string   `toml:"risk_id"`
	TemperatureID        IDRef    `toml:"temperature_id"`
	HumidityID           IDRef    `toml:"humidity_id"`
	DewPointID           string   `toml:"dew_point_id"`
	ReferenceDewPointIDs []string `toml:"reference_dew_point_ids"`
	FanDevice            string   `toml:"fan_device"`
	FanAirflow           float64  `toml:"fan_airflow"`
	Threshold            float64  `toml:"threshold"`
}

// NodeConfig identifies this controller instance.
type NodeConfig struct {
	ID string `toml:"id"`
}

// HTTPConfig controls the admin HTTP surface (internal/httpapi).
type HTTPConfig struct {
	Bind string `toml:"bind"`
}

// StorageConfig controls where the SQLite-backed stores keep their files.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// LoggingConfig controls internal/logging.
type LoggingConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// BreakerConfig mirrors resiliency.Config's fields for TOML round-tripping.
type BreakerConfig struct {
	MaxFailures      int `toml:"max_failures"`
	ResetTimeoutSecs int `toml:"reset_timeout_seconds"`
	SuccessesToClose int `toml:"successes_to_close"`
}

// BridgeConfig is the per-protocol device/channel ownership map handed to
// an internal/mqttbridge source. Devices maps a HomeKit accessory name
// to the device id commands address it by; Channels maps a device id to the list of
// channels it reports (Zigbee/Tasmota).
type BridgeConfig struct {
	Base            string              `toml:"base"`
	Devices         map[string]string   `toml:"devices"`
	Channels        map[string][]string `toml:"channels"`
	TriggerServices []string            `toml:"trigger_services"`
}

// MQTTConfig controls the broker connection and the three protocol bridges.
type MQTTConfig struct {
	BrokerAddr string        `toml:"broker_addr"`
	ClientID   string        `toml:"client_id"`
	Breaker    BreakerConfig `toml:"breaker"`
	Homekit    BridgeConfig  `toml:"homekit"`
	Zigbee     BridgeConfig  `toml:"zigbee"`
	Tasmota    BridgeConfig  `toml:"tasmota"`
}

// KafkaConfig controls the optional durable event-bus mirror.
type KafkaConfig struct {
	Brokers           []string `toml:"brokers"`
	StateChangedTopic string   `toml:"state_changed_topic"`
	StateUpdatedTopic string   `toml:"state_updated_topic"`
	CommandAddedTopic string   `toml:"command_added_topic"`
}

// LabelsConfig resolves the external label names used on the energy
// ingestion endpoints to the device ids / room names recorded internally.
type LabelsConfig struct {
	HeatingDevices map[string]string `toml:"heating_devices"`
	WaterRooms     map[string]string `toml:"water_rooms"`
}

// PlannerConfig controls the periodic snapshot/planning loops.
type PlannerConfig struct {
	SnapshotIntervalSeconds int `toml:"snapshot_interval_seconds"`
	TickIntervalSeconds     int `toml:"tick_interval_seconds"`
}

// Default returns a runnable configuration with no devices registered;
// callers are expected to overlay a TOML file describing their actual
// installation before starting the daemon.
func Default() Config {
	return Config{
		Node: NodeConfig{ID: "homectl"},
		HTTP: HTTPConfig{Bind: ":8080"},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			File:  "./data/homectl.log",
			Level: "info",
		},
		MQTT: MQTTConfig{
			BrokerAddr: "tcp://localhost:1883",
			ClientID:   "homectl",
			Breaker: BreakerConfig{
				MaxFailures:      5,
				ResetTimeoutSecs: 30,
				SuccessesToClose: 1,
			},
			Homekit: BridgeConfig{Base: "homekit"},
			Zigbee:  BridgeConfig{Base: "zigbee2mqtt"},
			Tasmota: BridgeConfig{Base: "tasmota"},
		},
		Kafka: KafkaConfig{
			StateChangedTopic: "homectl.state_changed",
			StateUpdatedTopic: "homectl.state_updated",
			CommandAddedTopic: "homectl.command_added",
		},
		Planner: PlannerConfig{
			SnapshotIntervalSeconds: 60,
			TickIntervalSeconds:     30,
		},
	}
}

// Load reads path, overlaying it on top of Default(); a missing file is
// not an error, matching Tutu-Engine-tutuengine's LoadConfig behavior of
// falling back to defaults when the file doesn't exist yet. Environment
// variables are then applied on top for the handful of settings that
// commonly vary per deployment rather than per installation.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config %s: %w", path, err)
	}

	applyEnvOverlay(&cfg)
	return cfg, nil
}

// Save writes cfg to path, creating its parent directory if needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func applyEnvOverlay(cfg *Config) {
	cfg.HTTP.Bind = getEnv("HOMECTL_HTTP_BIND", cfg.HTTP.Bind)
	cfg.Storage.DataDir = getEnv("HOMECTL_DATA_DIR", cfg.Storage.DataDir)
	cfg.MQTT.BrokerAddr = getEnv("HOMECTL_MQTT_BROKER", cfg.MQTT.BrokerAddr)
	cfg.MQTT.ClientID = getEnv("HOMECTL_MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.Logging.Level = getEnv("HOMECTL_LOG_LEVEL", cfg.Logging.Level)
	if brokers := os.Getenv("HOMECTL_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers, ",")
	}
	cfg.Planner.TickIntervalSeconds = getEnvInt("HOMECTL_TICK_INTERVAL_SECONDS", cfg.Planner.TickIntervalSeconds)
	cfg.Planner.SnapshotIntervalSeconds = getEnvInt("HOMECTL_SNAPSHOT_INTERVAL_SECONDS", cfg.Planner.SnapshotIntervalSeconds)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
