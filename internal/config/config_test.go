package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Bind != ":8080" {
		t.Fatalf("expected default bind, got %q", cfg.HTTP.Bind)
	}
	if cfg.MQTT.Breaker.MaxFailures != 5 {
		t.Fatalf("expected default breaker max failures 5, got %d", cfg.MQTT.Breaker.MaxFailures)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "homectl.toml")

	cfg := Default()
	cfg.Node.ID = "living-room-controller"
	cfg.MQTT.Homekit.Devices = map[string]string{"thermostat-1": "Living Room Thermostat"}
	cfg.Labels.WaterRooms = map[string]string{"Bad": "Bathroom"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Node.ID != "living-room-controller" {
		t.Fatalf("expected round-tripped node id, got %q", loaded.Node.ID)
	}
	if loaded.MQTT.Homekit.Devices["thermostat-1"] != "Living Room Thermostat" {
		t.Fatalf("expected round-tripped device map, got %+v", loaded.MQTT.Homekit.Devices)
	}
	if loaded.Labels.WaterRooms["Bad"] != "Bathroom" {
		t.Fatalf("expected round-tripped label map, got %+v", loaded.Labels.WaterRooms)
	}
}

func TestZonesAndMouldRoomsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "homectl.toml")

	cfg := Default()
	cfg.Zones = []ZoneConfig{{
		Name:             "living_room",
		ModeID:           "living_room_mode",
		Device:           "living_room_radiator",
		ComfortTemp:      21,
		EnergySavingTemp: 18,
		SleepTemp:        17,
		AwayID:           IDRef{Type: "away", Variant: "living_room"},
		WindowOpenedID:   IDRef{Type: "window_opened", Variant: "living_room"},
		OccupancyPresenceIDs: []IDRef{
			{Type: "presence", Variant: "living_room::couch"},
		},
		EveningWindows: []EveningWindowConfig{{StartMinute: 1080, EndMinute: 1410}},
	}}
	cfg.MouldRooms = []MouldRoomConfig{{
		Name:                 "bathroom",
		RiskID:               "bathroom_mould_risk",
		TemperatureID:        IDRef{Type: "temperature", Variant: "bathroom"},
		HumidityID:           IDRef{Type: "humidity", Variant: "bathroom"},
		DewPointID:           "bathroom_dew_point",
		ReferenceDewPointIDs: []string{"living_room_dew_point", "bedroom_dew_point"},
		FanDevice:            "bathroom_fan",
		FanAirflow:           3,
		Threshold:            0.7,
	}}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Zones) != 1 || loaded.Zones[0].Device != "living_room_radiator" {
		t.Fatalf("expected round-tripped zone, got %+v", loaded.Zones)
	}
	if got := loaded.Zones[0].AwayID.ToExtID(); got.Type != "away" || got.Variant != "living_room" {
		t.Fatalf("expected round-tripped away id, got %+v", got)
	}
	if len(loaded.Zones[0].OccupancyPresenceIDs) != 1 {
		t.Fatalf("expected round-tripped presence ids, got %+v", loaded.Zones[0].OccupancyPresenceIDs)
	}
	if len(loaded.Zones[0].EveningWindows) != 1 || loaded.Zones[0].EveningWindows[0].EndMinute != 1410 {
		t.Fatalf("expected round-tripped evening window, got %+v", loaded.Zones[0].EveningWindows)
	}
	if len(loaded.MouldRooms) != 1 || loaded.MouldRooms[0].FanDevice != "bathroom_fan" {
		t.Fatalf("expected round-tripped mould room, got %+v", loaded.MouldRooms)
	}
	if len(loaded.MouldRooms[0].ReferenceDewPointIDs) != 2 {
		t.Fatalf("expected round-tripped reference dew point ids, got %+v", loaded.MouldRooms[0].ReferenceDewPointIDs)
	}
}

func TestEnvOverlayWinsOverFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "homectl.toml")
	if err := Save(Default(), path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	t.Setenv("HOMECTL_HTTP_BIND", ":9090")
	t.Setenv("HOMECTL_MQTT_BROKER", "tcp://broker.local:1883")
	t.Setenv("HOMECTL_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("HOMECTL_TICK_INTERVAL_SECONDS", "15")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTP.Bind != ":9090" {
		t.Fatalf("expected overlaid bind, got %q", cfg.HTTP.Bind)
	}
	if cfg.MQTT.BrokerAddr != "tcp://broker.local:1883" {
		t.Fatalf("expected overlaid broker addr, got %q", cfg.MQTT.BrokerAddr)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "kafka-1:9092" || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("expected split/trimmed kafka brokers, got %+v", cfg.Kafka.Brokers)
	}
	if cfg.Planner.TickIntervalSeconds != 15 {
		t.Fatalf("expected overlaid tick interval, got %d", cfg.Planner.TickIntervalSeconds)
	}
}

func TestGetEnvIntFallsBackOnUnparsableValue(t *testing.T) {
	t.Setenv("HOMECTL_TEST_INT", "not-a-number")
	if got := getEnvInt("HOMECTL_TEST_INT", 42); got != 42 {
		t.Fatalf("expected fallback default 42, got %d", got)
	}
}

func TestSplitAndTrimIgnoresEmptyEntries(t *testing.T) {
	got := splitAndTrim(" a , ,b ,", ",")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split result: %+v", got)
	}
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "homectl.toml")
	if err := Save(Default(), path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}
