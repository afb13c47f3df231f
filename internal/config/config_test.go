package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, logic.DefaultConfig(), cfg.ToLogicConfig())
	assert.Equal(t, gpio.DefaultOptions(), cfg.ToGPIOOptions())
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, time.Second, cfg.BurstWindow())
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat())
	assert.Equal(t, "home/button", cfg.MQTT.TopicPrefix)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
button:
  name: desk
  hold_repeat_ms: 250
gpio:
  pin: 27
  active_low: false
  bias: pull-down
sampler:
  mode: poll
dispatch:
  mode: chain
bindings:
  clicks:
    1: toggle
    2: next
  holds:
    0: volume_up
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "desk", cfg.Button.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.ToLogicConfig().HoldRepeat)
	// Untouched keys keep their defaults.
	assert.Equal(t, 25*time.Millisecond, cfg.ToLogicConfig().ClickTime)
	assert.Equal(t, 27, cfg.GPIO.Pin)
	assert.False(t, cfg.GPIO.ActiveLow)
	assert.Equal(t, gpio.BiasPullDown, cfg.ToGPIOOptions().Bias)
	assert.Equal(t, "poll", cfg.Sampler.Mode)
	assert.Equal(t, DispatchChain, cfg.Dispatch.Mode)
	assert.Equal(t, map[int]string{1: "toggle", 2: "next"}, cfg.Bindings.Clicks)
	assert.Equal(t, map[int]string{0: "volume_up"}, cfg.Bindings.Holds)
}

func TestParseEmptyDocumentGivesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("button:\n  clik_time_ms: 10\n"))
	assert.Error(t, err)
}

func TestParseRejectsTrailingDocument(t *testing.T) {
	_, err := Parse([]byte("heartbeat_ms: 0\n---\nheartbeat_ms: 5\n"))
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "button.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt:\n  broker: tcp://broker:1883\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "button.yaml"), ExpandPath("~/button.yaml"))
	assert.Equal(t, "/etc/button.yaml", ExpandPath("/etc/button.yaml"))
	assert.Equal(t, "rel/~/x", ExpandPath("rel/~/x"))
}

func TestFlagOverrides(t *testing.T) {
	pin := 0
	mode := "poll"
	poll := 5 * time.Millisecond
	hb := time.Duration(0)

	cfg := DefaultConfig()
	FlagOverrides{
		Pin:          &pin,
		SamplerMode:  &mode,
		PollInterval: &poll,
		Heartbeat:    &hb,
	}.Apply(&cfg)

	assert.Equal(t, 0, cfg.GPIO.Pin, "zero values still override")
	assert.Equal(t, "poll", cfg.Sampler.Mode)
	assert.Equal(t, 5, cfg.Sampler.PollIntervalMS)
	assert.Equal(t, 0, cfg.HeartbeatMS)
	assert.Equal(t, DefaultConfig().MQTT, cfg.MQTT, "nil overrides leave values alone")

	FlagOverrides{}.Apply(nil)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty chip", func(c *Config) { c.GPIO.Chip = "" }},
		{"negative pin", func(c *Config) { c.GPIO.Pin = -1 }},
		{"bad bias", func(c *Config) { c.GPIO.Bias = "floating" }},
		{"bad sampler mode", func(c *Config) { c.Sampler.Mode = "interrupt" }},
		{"zero poll interval", func(c *Config) { c.Sampler.PollIntervalMS = 0 }},
		{"zero burst", func(c *Config) { c.Sampler.BurstCount = 0 }},
		{"empty broker", func(c *Config) { c.MQTT.Broker = "" }},
		{"bad broker scheme", func(c *Config) { c.MQTT.Broker = "http://broker:1883" }},
		{"empty topic prefix", func(c *Config) { c.MQTT.TopicPrefix = "" }},
		{"negative buffer", func(c *Config) { c.MQTT.BufferSize = -1 }},
		{"bad dispatch mode", func(c *Config) { c.Dispatch.Mode = "broadcast" }},
		{"zero click binding", func(c *Config) { c.Bindings.Clicks = map[int]string{0: "x"} }},
		{"empty click binding", func(c *Config) { c.Bindings.Clicks = map[int]string{1: ""} }},
		{"negative hold binding", func(c *Config) { c.Bindings.Holds = map[int]string{-1: "x"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"negative heartbeat", func(c *Config) { c.HeartbeatMS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDegenerateThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Button.ClickTimeMS = 0
	cfg.Button.HoldTimeMS = 0
	assert.NoError(t, cfg.Validate())
}

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnv(t *testing.T) {
	unsetenv(t, EnvMQTTUsername)
	unsetenv(t, EnvMQTTPassword)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MQTT_USERNAME=sensor\nMQTT_PASSWORD=hunter2\n"), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, LoadEnv(&cfg, filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "sensor", cfg.MQTT.Username)
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
}

func TestLoadEnvDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv(EnvMQTTUsername, "from-env")
	unsetenv(t, EnvMQTTPassword)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MQTT_USERNAME=from-file\n"), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, LoadEnv(&cfg, path))
	assert.Equal(t, "from-env", cfg.MQTT.Username)
	assert.Empty(t, cfg.MQTT.Password)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
