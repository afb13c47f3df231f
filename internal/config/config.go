// Package config loads the button-sensor daemon configuration.
//
// Defaults come from DefaultConfig, a YAML file may replace any of them, and
// command-line flags override both through FlagOverrides. MQTT credentials
// are read from the environment (optionally populated from a .env file).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/sampler"
)

// Config is the top-level YAML configuration.
type Config struct {
	Button   ButtonConfig   `yaml:"button"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Bindings BindingsConfig `yaml:"bindings"`

	HeartbeatMS int `yaml:"heartbeat_ms"`
}

// ButtonConfig holds the gesture thresholds in milliseconds.
type ButtonConfig struct {
	Name              string `yaml:"name"`
	ClickTimeMS       int    `yaml:"click_time_ms"`
	DoubleClickTimeMS int    `yaml:"double_click_time_ms"`
	HoldTimeMS        int    `yaml:"hold_time_ms"`
	HoldRepeatMS      int    `yaml:"hold_repeat_ms"`
}

// GPIOConfig selects the input line and how its level is read.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
	Bias      string `yaml:"bias"`
}

// SamplerConfig controls how often the input is sampled.
type SamplerConfig struct {
	Mode           string `yaml:"mode"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	BurstCount     int    `yaml:"burst_count"`
}

// MQTTConfig holds the broker connection and topic settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	// Addr is the status server listen address; empty disables it.
	Addr string `yaml:"addr"`
}

// LoggingConfig sets the minimum slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DispatchMode selects how gestures reach the configured actions.
type DispatchMode string

const (
	// DispatchRegistry only fires explicitly bound counts.
	DispatchRegistry DispatchMode = "registry"
	// DispatchHooks fires one generic click and one generic hold action for every count.
	DispatchHooks DispatchMode = "hooks"
	// DispatchChain fires bound counts, falling back to the generic actions.
	DispatchChain DispatchMode = "chain"
)

// DispatchConfig picks the dispatch strategy and its generic actions.
type DispatchConfig struct {
	Mode DispatchMode `yaml:"mode"`
	// Action names used by the hooks strategy.
	ClickAction string `yaml:"click_action"`
	HoldAction  string `yaml:"hold_action"`
}

// BindingsConfig maps click and hold counts to action names.
//
//	bindings:
//	  clicks: {1: toggle, 2: next}
//	  holds:  {0: volume_up, 1: volume_down}
type BindingsConfig struct {
	Clicks map[int]string `yaml:"clicks"`
	Holds  map[int]string `yaml:"holds"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	lc := logic.DefaultConfig()
	gc := gpio.DefaultOptions()
	return Config{
		Button: ButtonConfig{
			Name:              "button",
			ClickTimeMS:       int(lc.ClickTime.Milliseconds()),
			DoubleClickTimeMS: int(lc.DoubleClickTime.Milliseconds()),
			HoldTimeMS:        int(lc.HoldTime.Milliseconds()),
			HoldRepeatMS:      int(lc.HoldRepeat.Milliseconds()),
		},
		GPIO: GPIOConfig{
			Chip:      gc.Chip,
			Pin:       gc.Pin,
			ActiveLow: gc.ActiveLow,
			Bias:      string(gc.Bias),
		},
		Sampler: SamplerConfig{
			Mode:           string(sampler.ModeEdge),
			PollIntervalMS: 10,
			BurstCount:     sampler.DefaultBurstCount,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "button-sensor",
			TopicPrefix: "home/button",
			BufferSize:  100,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Dispatch: DispatchConfig{
			Mode:        DispatchRegistry,
			ClickAction: "click",
			HoldAction:  "hold",
		},
		HeartbeatMS: int((15 * time.Minute).Milliseconds()),
	}
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML config bytes on top of the defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// Environment variables read by LoadEnv.
const (
	EnvMQTTUsername = "MQTT_USERNAME"
	EnvMQTTPassword = "MQTT_PASSWORD"
)

// LoadEnv loads variables from the given .env files (missing files are not
// an error) and applies MQTT credentials from the environment to cfg.
func LoadEnv(cfg *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(ExpandPath(f)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if v := os.Getenv(EnvMQTTUsername); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		cfg.MQTT.Password = v
	}
	return nil
}

// FlagOverrides holds values from command-line flags. Each override is only
// applied if its pointer is non-nil, even when it points at a zero value.
type FlagOverrides struct {
	Pin          *int
	Chip         *string
	SamplerMode  *string
	PollInterval *time.Duration
	Broker       *string
	HTTPAddr     *string
	LogLevel     *string
	Heartbeat    *time.Duration
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Pin != nil {
		cfg.GPIO.Pin = *o.Pin
	}
	if o.Chip != nil {
		cfg.GPIO.Chip = *o.Chip
	}
	if o.SamplerMode != nil {
		cfg.Sampler.Mode = *o.SamplerMode
	}
	if o.PollInterval != nil {
		cfg.Sampler.PollIntervalMS = int(o.PollInterval.Milliseconds())
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.Heartbeat != nil {
		cfg.HeartbeatMS = int(o.Heartbeat.Milliseconds())
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Gesture thresholds are deliberately not checked: degenerate values are
// the caller's choice.
func (c *Config) Validate() error {
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must not be empty")
	}
	if c.GPIO.Pin < 0 {
		return errors.New("gpio.pin must be >= 0")
	}
	if _, err := gpio.ParseBias(c.GPIO.Bias); err != nil {
		return fmt.Errorf("gpio.bias: %w", err)
	}

	if _, err := sampler.ParseMode(c.Sampler.Mode); err != nil {
		return fmt.Errorf("sampler.mode: %w", err)
	}
	if c.Sampler.PollIntervalMS <= 0 {
		return errors.New("sampler.poll_interval_ms must be > 0")
	}
	if c.Sampler.BurstCount <= 0 {
		return errors.New("sampler.burst_count must be > 0")
	}

	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must not be empty")
	}
	u, err := url.Parse(c.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker: unsupported scheme %q", u.Scheme)
	}
	if c.MQTT.TopicPrefix == "" {
		return errors.New("mqtt.topic_prefix must not be empty")
	}
	if c.MQTT.BufferSize < 0 {
		return errors.New("mqtt.buffer_size must be >= 0")
	}

	switch c.Dispatch.Mode {
	case DispatchRegistry, DispatchHooks, DispatchChain:
	default:
		return fmt.Errorf("dispatch.mode must be %q, %q or %q", DispatchRegistry, DispatchHooks, DispatchChain)
	}
	for n, name := range c.Bindings.Clicks {
		if n < 1 {
			return fmt.Errorf("bindings.clicks: count %d must be >= 1", n)
		}
		if name == "" {
			return fmt.Errorf("bindings.clicks[%d] is empty", n)
		}
	}
	for n, name := range c.Bindings.Holds {
		if n < 0 {
			return fmt.Errorf("bindings.holds: count %d must be >= 0", n)
		}
		if name == "" {
			return fmt.Errorf("bindings.holds[%d] is empty", n)
		}
	}

	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.HeartbeatMS < 0 {
		return errors.New("heartbeat_ms must be >= 0")
	}
	return nil
}

// ToLogicConfig converts the millisecond thresholds.
func (c *Config) ToLogicConfig() logic.Config {
	return logic.Config{
		ClickTime:       ms(c.Button.ClickTimeMS),
		DoubleClickTime: ms(c.Button.DoubleClickTimeMS),
		HoldTime:        ms(c.Button.HoldTimeMS),
		HoldRepeat:      ms(c.Button.HoldRepeatMS),
	}
}

// ToGPIOOptions converts the gpio section. Call Validate first.
func (c *Config) ToGPIOOptions() gpio.Options {
	return gpio.Options{
		Chip:      c.GPIO.Chip,
		Pin:       c.GPIO.Pin,
		ActiveLow: c.GPIO.ActiveLow,
		Bias:      gpio.Bias(c.GPIO.Bias),
	}
}

// PollInterval returns the sampler tick period.
func (c *Config) PollInterval() time.Duration {
	return ms(c.Sampler.PollIntervalMS)
}

// BurstWindow is how long an edge-mode burst keeps sampling after release.
func (c *Config) BurstWindow() time.Duration {
	return time.Duration(c.Sampler.BurstCount) * c.PollInterval()
}

// Heartbeat returns the heartbeat interval, 0 when disabled.
func (c *Config) Heartbeat() time.Duration {
	return ms(c.HeartbeatMS)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
