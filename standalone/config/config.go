package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"dispenser/core"
	"dispenser/standalone/stepgen"
	"dispenser/standalone/store"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AxisConfig represents configuration for a single axis
type AxisConfig struct {
	StepPin    core.GPIOPin `json:"step_pin"`
	DirPin     core.GPIOPin `json:"dir_pin"`
	InvertDir  bool         `json:"invert_dir"`
	StepPerMM  uint32       `json:"step_per_mm"`
	SpeedMin   uint32       `json:"speed_min"`   // distance units/s
	SpeedMax   uint32       `json:"speed_max"`   // distance units/s
	SpeedAccel uint32       `json:"speed_accel"` // distance units/s^2
}

// HostConfig holds settings for the host-side tools, normally taken from
// the environment
type HostConfig struct {
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"` // "text" or "json"
	Serial      string `json:"serial"`
	Baud        int    `json:"baud"`
	MetricsAddr string `json:"metrics_addr"`
	MQTTBroker  string `json:"mqtt_broker"`
	MQTTTopic   string `json:"mqtt_topic"`
	EEPROMFile  string `json:"eeprom_file"`
}

// MachineConfig represents the complete machine configuration
type MachineConfig struct {
	X AxisConfig `json:"x"`
	Y AxisConfig `json:"y"`
	Z AxisConfig `json:"z"`

	PumpPin    core.GPIOPin `json:"pump_pin"`
	InvertPump bool         `json:"invert_pump"`

	EEPROMAddress    uint16 `json:"eeprom_address"`
	EEPROMSize       int    `json:"eeprom_size"` // bytes
	PageWriteDelayMS uint32 `json:"page_write_delay_ms"`

	RepeatDurationMS  uint32 `json:"repeat_duration_ms"`
	DefaultDurationMS uint32 `json:"default_duration_ms"`
	QueueCapacity     int    `json:"queue_capacity"`
	PulseWidthUS      uint32 `json:"pulse_width_us"`

	Host HostConfig `json:"host"`
}

// Load reads the JSON file at path over the defaults (or just the
// defaults when path is empty), then applies environment overrides from
// the process environment and an optional .env file
func Load(path string) (*MachineConfig, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "Config: Load(): read %s", path)
		}
		if config, err = LoadConfig(data); err != nil {
			return nil, errors.Wrapf(err, "Config: Load(): parse %s", path)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig parses a JSON configuration over DefaultConfig
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	config := DefaultConfig()

	if err := json.Unmarshal(jsonData, config); err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(config)

	return config, nil
}

// applyDefaults fills in values where zero means "not set"
func applyDefaults(config *MachineConfig) {
	if config.EEPROMAddress == 0 {
		config.EEPROMAddress = store.DefaultAddress
	}
	if config.EEPROMSize == 0 {
		config.EEPROMSize = store.AT24C32Size
	}
	if config.RepeatDurationMS == 0 {
		config.RepeatDurationMS = 1000
	}
	if config.DefaultDurationMS == 0 {
		config.DefaultDurationMS = 1000
	}
	if config.QueueCapacity == 0 {
		config.QueueCapacity = 10
	}
	if config.PulseWidthUS == 0 {
		config.PulseWidthUS = 10
	}
	if config.Host.LogLevel == "" {
		config.Host.LogLevel = "info"
	}
	if config.Host.LogFormat == "" {
		config.Host.LogFormat = "text"
	}
	if config.Host.Baud == 0 {
		config.Host.Baud = 115200
	}
	if config.Host.MQTTTopic == "" {
		config.Host.MQTTTopic = "dispenser/events"
	}
}

// applyEnv overrides settings from DISPENSER_* variables
func applyEnv(config *MachineConfig) {
	config.RepeatDurationMS = uint32(getEnvInt("DISPENSER_REPEAT_MS", int(config.RepeatDurationMS)))

	h := &config.Host
	h.LogLevel = getEnv("DISPENSER_LOG_LEVEL", h.LogLevel)
	h.LogFormat = getEnv("DISPENSER_LOG_FORMAT", h.LogFormat)
	h.Serial = getEnv("DISPENSER_SERIAL", h.Serial)
	h.Baud = getEnvInt("DISPENSER_BAUD", h.Baud)
	h.MetricsAddr = getEnv("DISPENSER_METRICS_ADDR", h.MetricsAddr)
	h.MQTTBroker = getEnv("DISPENSER_MQTT_BROKER", h.MQTTBroker)
	h.MQTTTopic = getEnv("DISPENSER_MQTT_TOPIC", h.MQTTTopic)
	h.EEPROMFile = getEnv("DISPENSER_EEPROM_FILE", h.EEPROMFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil && v >= 0 {
			return v
		}
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Warn("ignoring invalid integer")
	}
	return defaultValue
}

// Validate checks the configuration for values the machine cannot run with
func (c *MachineConfig) Validate() error {
	pins := map[core.GPIOPin]string{c.PumpPin: "pump"}
	claim := func(pin core.GPIOPin, owner string) error {
		if prev, ok := pins[pin]; ok {
			return errors.Errorf("Config: pin %d used by both %s and %s", pin, prev, owner)
		}
		pins[pin] = owner
		return nil
	}

	for _, axis := range []struct {
		name string
		cfg  AxisConfig
	}{{"x", c.X}, {"y", c.Y}, {"z", c.Z}} {
		if axis.cfg.StepPerMM == 0 {
			return errors.Errorf("Config: axis %s: step_per_mm must be positive", axis.name)
		}
		if axis.cfg.SpeedMin > axis.cfg.SpeedMax {
			return errors.Errorf("Config: axis %s: speed_min %d above speed_max %d",
				axis.name, axis.cfg.SpeedMin, axis.cfg.SpeedMax)
		}
		if err := claim(axis.cfg.StepPin, axis.name+" step"); err != nil {
			return err
		}
		if err := claim(axis.cfg.DirPin, axis.name+" dir"); err != nil {
			return err
		}
	}

	if c.QueueCapacity < 1 {
		return errors.Errorf("Config: queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if c.EEPROMSize < 2*store.PageSize {
		return errors.Errorf("Config: eeprom_size %d holds no records", c.EEPROMSize)
	}
	return nil
}

// Stepper converts the axis settings to a stepper configuration
func (a AxisConfig) Stepper(pulseWidth time.Duration) stepgen.Config {
	return stepgen.Config{
		StepPin:    a.StepPin,
		DirPin:     a.DirPin,
		InvertDir:  a.InvertDir,
		StepPerMM:  a.StepPerMM,
		SpeedMin:   a.SpeedMin,
		SpeedMax:   a.SpeedMax,
		SpeedAccel: a.SpeedAccel,
		PulseWidth: pulseWidth,
	}
}

// PulseWidth returns the step pulse high time
func (c *MachineConfig) PulseWidth() time.Duration {
	return time.Duration(c.PulseWidthUS) * time.Microsecond
}

// RepeatDuration returns the initial wait between sweeps
func (c *MachineConfig) RepeatDuration() time.Duration {
	return time.Duration(c.RepeatDurationMS) * time.Millisecond
}

// StoreConfig returns the persistent store settings for capacity records
func (c *MachineConfig) StoreConfig(capacity int) store.Config {
	return store.Config{
		Capacity:   capacity,
		WriteDelay: time.Duration(c.PageWriteDelayMS) * time.Millisecond,
	}
}

// NewLogger builds a logger from the host log settings
func (h HostConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(h.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "Config: log level")
	}

	log := logrus.New()
	log.SetLevel(level)
	switch h.LogFormat {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("Config: unknown log format %q", h.LogFormat)
	}
	return log, nil
}

func defaultAxis(step, dir core.GPIOPin) AxisConfig {
	return AxisConfig{
		StepPin:    step,
		DirPin:     dir,
		StepPerMM:  stepgen.DefaultStepPerMM,
		SpeedMin:   stepgen.DefaultSpeedMin,
		SpeedMax:   stepgen.DefaultSpeedMax,
		SpeedAccel: stepgen.DefaultSpeedAccel,
	}
}

// DefaultConfig returns the stock three-axis dispenser wiring
func DefaultConfig() *MachineConfig {
	config := &MachineConfig{
		X:                defaultAxis(2, 3),
		Y:                defaultAxis(4, 5),
		Z:                defaultAxis(6, 7),
		PumpPin:          15,
		PageWriteDelayMS: 10,
	}
	applyDefaults(config)
	return config
}
