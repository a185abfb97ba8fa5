package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if config.X.StepPerMM != 20 || config.X.SpeedMin != 10 || config.X.SpeedMax != 250 || config.X.SpeedAccel != 50 {
		t.Errorf("Unexpected axis defaults: %+v", config.X)
	}
	if config.QueueCapacity != 10 || config.RepeatDuration() != time.Second {
		t.Errorf("Unexpected controller defaults: queue %d repeat %v", config.QueueCapacity, config.RepeatDuration())
	}
	if config.EEPROMAddress != 0x50 {
		t.Errorf("Expected EEPROM at 0x50, got 0x%x", config.EEPROMAddress)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	config, err := LoadConfig([]byte(`{
		"x": {"step_pin": 20, "dir_pin": 21, "step_per_mm": 40, "speed_max": 100},
		"repeat_duration_ms": 5000
	}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.X.StepPin != 20 || config.X.StepPerMM != 40 || config.X.SpeedMax != 100 {
		t.Errorf("X not applied: %+v", config.X)
	}
	// Fields absent from the JSON keep their defaults
	if config.X.SpeedMin != 10 || config.Y.StepPin != 4 {
		t.Errorf("Defaults lost: x=%+v y=%+v", config.X, config.Y)
	}
	if config.RepeatDurationMS != 5000 {
		t.Errorf("Expected repeat 5000, got %d", config.RepeatDurationMS)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	if _, err := LoadConfig([]byte(`{"x": `)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *MachineConfig)
		errSub string
	}{
		{"zero step_per_mm", func(c *MachineConfig) { c.Y.StepPerMM = 0 }, "step_per_mm"},
		{"min above max", func(c *MachineConfig) { c.Z.SpeedMin = 300 }, "speed_min"},
		{"duplicate pin", func(c *MachineConfig) { c.PumpPin = c.X.DirPin }, "pin 3"},
		{"no queue", func(c *MachineConfig) { c.QueueCapacity = 0 }, "queue_capacity"},
		{"tiny eeprom", func(c *MachineConfig) { c.EEPROMSize = 32 }, "eeprom_size"},
	}

	for _, test := range tests {
		config := DefaultConfig()
		test.mutate(config)
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), test.errSub) {
			t.Errorf("%s: expected error containing %q, got %v", test.name, test.errSub, err)
		}
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.json")
	if err := os.WriteFile(path, []byte(`{"pump_pin": 25}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DISPENSER_REPEAT_MS", "250")
	t.Setenv("DISPENSER_SERIAL", "/dev/ttyACM0")
	t.Setenv("DISPENSER_BAUD", "not-a-number")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.PumpPin != 25 {
		t.Errorf("Expected pump pin 25, got %d", config.PumpPin)
	}
	if config.RepeatDurationMS != 250 {
		t.Errorf("Expected env repeat 250, got %d", config.RepeatDurationMS)
	}
	if config.Host.Serial != "/dev/ttyACM0" {
		t.Errorf("Expected env serial, got %q", config.Host.Serial)
	}
	if config.Host.Baud != 115200 {
		t.Errorf("Invalid env baud should keep default, got %d", config.Host.Baud)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	log, err := HostConfig{LogLevel: "debug", LogFormat: "json"}.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter, got %T", log.Formatter)
	}

	if _, err := (HostConfig{LogLevel: "loud"}).NewLogger(); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := (HostConfig{LogLevel: "info", LogFormat: "xml"}).NewLogger(); err == nil {
		t.Error("Expected error for unknown format")
	}
}
