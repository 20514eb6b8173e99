// Package config holds the cooker daemon configuration. Values come from
// built-in defaults, an optional YAML file, and command-line flags, in
// increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/cooker/internal/gpio"
	"github.com/sweeney/cooker/internal/logic"
	"github.com/sweeney/cooker/internal/sensor"
)

// Relay transports.
const (
	RelayHTTP = "http"
	RelayMQTT = "mqtt"
	RelayNone = "none"
)

// Display drivers.
const (
	DisplaySSD1306 = "ssd1306"
	DisplayLog     = "log"
)

// Restart strategies after a fault.
const (
	RebootDevice = "device"
	RebootExit   = "exit"
)

// Config is the full daemon configuration.
type Config struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	HTTPAddr string `yaml:"http"`

	// DataDir holds the crash snapshot.
	DataDir string `yaml:"data_dir"`
	// LogDir is where numbered CSV logs are written (the SD card mount).
	LogDir string `yaml:"log_dir"`

	Reboot string `yaml:"reboot"`

	Sensor  SensorConfig  `yaml:"sensor"`
	PID     PIDConfig     `yaml:"pid"`
	Relay   RelayConfig   `yaml:"relay"`
	Pins    PinConfig     `yaml:"pins"`
	Display DisplayConfig `yaml:"display"`

	LogInterval       time.Duration `yaml:"log_interval"`
	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
}

// SensorConfig configures the temperature probe and its retry policy.
type SensorConfig struct {
	Dir          string        `yaml:"dir"`
	ID           string        `yaml:"id"`
	Interval     time.Duration `yaml:"interval"`
	Retries      int           `yaml:"retries"`
	RetryInitial time.Duration `yaml:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max"`
	MaxFailures  int           `yaml:"max_failures"`
}

// PIDConfig holds the controller gains.
type PIDConfig struct {
	Kp       float64       `yaml:"kp"`
	Ki       float64       `yaml:"ki"`
	Kd       float64       `yaml:"kd"`
	Interval time.Duration `yaml:"interval"`
}

// RelayConfig selects and configures the smart plug transport.
type RelayConfig struct {
	Transport string        `yaml:"transport"`
	Host      string        `yaml:"host"`   // http transport
	Device    string        `yaml:"device"` // mqtt transport, Tasmota topic
	Timeout   time.Duration `yaml:"timeout"`
}

// PinConfig holds BCM pin numbers.
type PinConfig struct {
	Chip       string `yaml:"chip"`
	EncoderCLK int    `yaml:"encoder_clk"`
	EncoderDT  int    `yaml:"encoder_dt"`
	Button     int    `yaml:"button"`
	Buzzer     int    `yaml:"buzzer"`
}

// DisplayConfig selects the status display.
type DisplayConfig struct {
	Driver string `yaml:"driver"`
	Bus    string `yaml:"bus"` // I2C bus name, "" for the first one
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		Broker:   "tcp://192.168.1.200:1883",
		ClientID: "cooker",
		HTTPAddr: ":80",
		DataDir:  "/var/lib/cooker",
		LogDir:   "/media/sd",
		Reboot:   RebootDevice,
		Sensor: SensorConfig{
			Dir:          sensor.DefaultW1Dir,
			Interval:     250 * time.Millisecond,
			Retries:      3,
			RetryInitial: 10 * time.Millisecond,
			RetryMax:     50 * time.Millisecond,
			MaxFailures:  20,
		},
		PID: PIDConfig{
			Kp:       logic.DefaultKp,
			Ki:       logic.DefaultKi,
			Kd:       logic.DefaultKd,
			Interval: 250 * time.Millisecond,
		},
		Relay: RelayConfig{
			Transport: RelayHTTP,
			Host:      "192.168.1.50",
			Device:    "tasmota",
			Timeout:   2 * time.Second,
		},
		Pins: PinConfig{
			Chip:       gpio.DefaultChip,
			EncoderCLK: gpio.DefaultPinEncoderCLK,
			EncoderDT:  gpio.DefaultPinEncoderDT,
			Button:     gpio.DefaultPinButton,
			Buzzer:     gpio.DefaultPinBuzzer,
		},
		Display: DisplayConfig{
			Driver: DisplaySSD1306,
		},
		LogInterval:       time.Second,
		TelemetryInterval: time.Second,
	}
}

// Load reads a YAML file on top of the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"sensor.interval":    c.Sensor.Interval,
		"pid.interval":       c.PID.Interval,
		"log_interval":       c.LogInterval,
		"telemetry_interval": c.TelemetryInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.Sensor.Retries < 1 {
		return fmt.Errorf("sensor.retries must be at least 1, got %d", c.Sensor.Retries)
	}
	if c.Sensor.MaxFailures < 1 {
		return fmt.Errorf("sensor.max_failures must be at least 1, got %d", c.Sensor.MaxFailures)
	}
	if c.Sensor.RetryInitial <= 0 || c.Sensor.RetryMax < c.Sensor.RetryInitial {
		return fmt.Errorf("sensor retry interval %v..%v is invalid", c.Sensor.RetryInitial, c.Sensor.RetryMax)
	}

	switch c.Relay.Transport {
	case RelayHTTP:
		if c.Relay.Host == "" {
			return errors.New("relay.host is required for the http transport")
		}
	case RelayMQTT:
		if c.Relay.Device == "" {
			return errors.New("relay.device is required for the mqtt transport")
		}
		if c.Broker == "" {
			return errors.New("broker is required for the mqtt relay transport")
		}
	case RelayNone:
	default:
		return fmt.Errorf("unknown relay transport %q", c.Relay.Transport)
	}

	switch c.Display.Driver {
	case DisplaySSD1306, DisplayLog:
	default:
		return fmt.Errorf("unknown display driver %q", c.Display.Driver)
	}

	switch c.Reboot {
	case RebootDevice, RebootExit:
	default:
		return fmt.Errorf("unknown reboot strategy %q", c.Reboot)
	}
	return nil
}

// RelayDescription is a short human-readable form of the relay target.
func (c Config) RelayDescription() string {
	switch c.Relay.Transport {
	case RelayHTTP:
		return "http://" + c.Relay.Host
	case RelayMQTT:
		return "mqtt:cmnd/" + c.Relay.Device + "/POWER"
	}
	return c.Relay.Transport
}

// PathFromArgs finds the value of -config in args without parsing the rest.
func PathFromArgs(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Bind registers flags on fs. Each flag defaults to the current value in
// cfg, so parsing fs afterwards only changes what is given on the command line.
func Bind(fs *flag.FlagSet, cfg *Config) {
	fs.String("config", "", "YAML config file (flags override its values)")

	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "MQTT client id")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the crash snapshot")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for CSV cook logs")
	fs.StringVar(&cfg.Reboot, "reboot", cfg.Reboot, `Fault restart strategy ("device" or "exit")`)

	fs.StringVar(&cfg.Sensor.Dir, "w1-dir", cfg.Sensor.Dir, "1-Wire sysfs device directory")
	fs.StringVar(&cfg.Sensor.ID, "probe", cfg.Sensor.ID, "DS18B20 id (empty for the first found)")
	fs.DurationVar(&cfg.Sensor.Interval, "sensor-interval", cfg.Sensor.Interval, "Temperature sampling interval")
	fs.IntVar(&cfg.Sensor.MaxFailures, "sensor-max-failures", cfg.Sensor.MaxFailures, "Consecutive failed samples before a fault")

	fs.Float64Var(&cfg.PID.Kp, "kp", cfg.PID.Kp, "PID proportional gain")
	fs.Float64Var(&cfg.PID.Ki, "ki", cfg.PID.Ki, "PID integral gain")
	fs.Float64Var(&cfg.PID.Kd, "kd", cfg.PID.Kd, "PID derivative gain")
	fs.DurationVar(&cfg.PID.Interval, "pid-interval", cfg.PID.Interval, "PID step interval")

	fs.StringVar(&cfg.Relay.Transport, "relay", cfg.Relay.Transport, `Relay transport ("http", "mqtt" or "none")`)
	fs.StringVar(&cfg.Relay.Host, "relay-host", cfg.Relay.Host, "Tasmota plug host for the http transport")
	fs.StringVar(&cfg.Relay.Device, "relay-device", cfg.Relay.Device, "Tasmota topic for the mqtt transport")
	fs.DurationVar(&cfg.Relay.Timeout, "relay-timeout", cfg.Relay.Timeout, "Relay command timeout")

	fs.StringVar(&cfg.Pins.Chip, "gpio-chip", cfg.Pins.Chip, "GPIO character device")
	fs.IntVar(&cfg.Pins.EncoderCLK, "pin-clk", cfg.Pins.EncoderCLK, "BCM pin for encoder CLK")
	fs.IntVar(&cfg.Pins.EncoderDT, "pin-dt", cfg.Pins.EncoderDT, "BCM pin for encoder DT")
	fs.IntVar(&cfg.Pins.Button, "pin-button", cfg.Pins.Button, "BCM pin for the run/stop switch")
	fs.IntVar(&cfg.Pins.Buzzer, "pin-buzzer", cfg.Pins.Buzzer, "BCM pin for the buzzer")

	fs.StringVar(&cfg.Display.Driver, "display", cfg.Display.Driver, `Display driver ("ssd1306" or "log")`)
	fs.StringVar(&cfg.Display.Bus, "i2c-bus", cfg.Display.Bus, "I2C bus for the OLED")

	fs.DurationVar(&cfg.LogInterval, "log-interval", cfg.LogInterval, "CSV row interval while running")
	fs.DurationVar(&cfg.TelemetryInterval, "telemetry-interval", cfg.TelemetryInterval, "MQTT telemetry interval while running")
}
