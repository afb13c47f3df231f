// Command button-sensor recognises click and hold gestures on a GPIO button
// and publishes them, and the actions bound to them, to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/button-sensor/internal/action"
	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/console"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/sampler"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

// statusRefresh is how often MQTT connectivity is copied into the tracker.
const statusRefresh = time.Second

type options struct {
	configPath string
	envFile    string
	printState bool
	console    bool
	overrides  config.FlagOverrides
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	envFile := flag.String("env", ".env", "dotenv file with MQTT credentials")
	pin := flag.Int("pin", gpio.DefaultPin, "GPIO line offset of the button")
	chip := flag.String("chip", gpio.DefaultChip, "GPIO chip")
	mode := flag.String("mode", string(sampler.ModeEdge), "Sampler mode (edge or poll)")
	poll := flag.Duration("poll", 10*time.Millisecond, "Sampling interval")
	broker := flag.String("broker", "tcp://127.0.0.1:1883", "MQTT broker address")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	logLevel := flag.String("log-level", "info", "Log level (error, warn, info, debug)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	printState := flag.Bool("print-state", false, "Print the current button state and exit")
	useConsole := flag.Bool("console", false, "Drive the button from an interactive console instead of GPIO")

	flag.Parse()

	opts := options{
		configPath: *configPath,
		envFile:    *envFile,
		printState: *printState,
		console:    *useConsole,
	}
	// Only flags given on the command line override the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pin":
			opts.overrides.Pin = pin
		case "chip":
			opts.overrides.Chip = chip
		case "mode":
			opts.overrides.SamplerMode = mode
		case "poll":
			opts.overrides.PollInterval = poll
		case "broker":
			opts.overrides.Broker = broker
		case "http":
			opts.overrides.HTTPAddr = httpAddr
		case "log-level":
			opts.overrides.LogLevel = logLevel
		case "heartbeat":
			opts.overrides.Heartbeat = heartbeat
		}
	})

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, err
		}
	}
	if err := config.LoadEnv(&cfg, opts.envFile); err != nil {
		return cfg, err
	}
	opts.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// In console mode log lines are printed above the prompt.
	var (
		logOut io.Writer = os.Stdout
		prompt *console.Prompt
	)
	if opts.console {
		prompt, err = console.NewPrompt()
		if err != nil {
			return err
		}
		defer prompt.Close()
		logOut = prompt.Log
	}
	logger := cfg.NewLogger(logOut)
	slog.SetDefault(logger)

	// Initialize input
	var (
		reader gpio.Reader
		level  *console.Level
	)
	if opts.console {
		level = console.NewLevel()
		reader = level
	} else {
		r, err := gpio.NewRealReader(cfg.ToGPIOOptions())
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		reader = r
	}
	defer reader.Close()

	// Print state mode
	if opts.printState {
		pressed, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("%s: %s\n", cfg.Button.Name, stateString(pressed))
		return nil
	}

	if w := cfg.BurstWindow(); cfg.Sampler.Mode == string(sampler.ModeEdge) && w <= cfg.ToLogicConfig().DoubleClickTime {
		logger.Warn("edge burst window does not outlast the double-click window; click runs may not finalise",
			"burst_window", w, "double_click", cfg.ToLogicConfig().DoubleClickTime)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		Topics:     mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		ButtonName: cfg.Button.Name,
		BufferSize: cfg.MQTT.BufferSize,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), trackerConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Start HTTP status server
	var hub gestureBroadcaster
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger)
		hub = srv.Hub()
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http server error", "error", err)
			}
		}()
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	dispatcher, err := action.NewBuilder(publisher, time.Now).Build(cfg.Dispatch, cfg.Bindings)
	if err != nil {
		return err
	}
	button := logic.NewButton(cfg.ToLogicConfig(), dispatcher,
		logic.WithLogger(logger),
		logic.WithName(cfg.Button.Name),
	)

	smp, err := sampler.New(reader, button, sampler.Mode(cfg.Sampler.Mode),
		newSampleSink(button, tracker, publisher, hub, cfg.Button.Name, logger),
		sampler.WithLogger(logger),
		sampler.WithBurstCount(cfg.Sampler.BurstCount),
	)
	if err != nil {
		return err
	}

	logger.Info("started",
		"name", cfg.Button.Name,
		"chip", cfg.GPIO.Chip,
		"pin", cfg.GPIO.Pin,
		"mode", cfg.Sampler.Mode,
		"poll", cfg.PollInterval(),
		"dispatch", cfg.Dispatch.Mode,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat(),
		"console", opts.console,
	)

	if opts.console {
		c := console.New(level, tracker, prompt.Stdout())
		go c.Run(ctx, cancel, prompt)
	}

	sampleTicker := time.NewTicker(cfg.PollInterval())
	defer sampleTicker.Stop()
	refreshTicker := time.NewTicker(statusRefresh)
	defer refreshTicker.Stop()
	var heartbeatC <-chan time.Time
	if hb := cfg.Heartbeat(); hb > 0 {
		t := time.NewTicker(hb)
		defer t.Stop()
		heartbeatC = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	l := &loop{
		sampler:    smp,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		logger:     logger,
		now:        time.Now,
	}
	return l.run(ctx, sampleTicker.C, heartbeatC, refreshTicker.C, sigCh)
}

func trackerConfig(cfg config.Config) status.Config {
	lc := cfg.ToLogicConfig()
	return status.Config{
		ButtonName:    cfg.Button.Name,
		ClickMs:       lc.ClickTime.Milliseconds(),
		DoubleClickMs: lc.DoubleClickTime.Milliseconds(),
		HoldMs:        lc.HoldTime.Milliseconds(),
		HoldRepeatMs:  lc.HoldRepeat.Milliseconds(),
		SamplerMode:   cfg.Sampler.Mode,
		PollMs:        cfg.PollInterval().Milliseconds(),
		DispatchMode:  string(cfg.Dispatch.Mode),
		HeartbeatMs:   cfg.Heartbeat().Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		TopicPrefix:   mqtt.NewTopics(cfg.MQTT.TopicPrefix).Prefix(),
		HTTPAddr:      cfg.HTTP.Addr,
	}
}

// gestureBroadcaster is the websocket hub as seen by the sampler sink.
type gestureBroadcaster interface {
	BroadcastGesture(name string, ev logic.Event)
}

// newSampleSink returns the sampler callback: it refreshes the tracker after
// every sample and fans fired gestures out to MQTT and the websocket feed.
// hub may be nil.
func newSampleSink(button status.ButtonView, tracker *status.Tracker, publisher mqtt.Publisher, hub gestureBroadcaster, name string, logger *slog.Logger) sampler.SampleFunc {
	return func(now time.Time, ev *logic.Event) {
		tracker.Observe(button, ev)
		if ev == nil {
			return
		}
		logger.Info("gesture", "event", ev.Type, "count", ev.Count, "repeat", ev.Repeat)
		if err := publisher.Publish(*ev); err != nil {
			// Don't crash on publish failure
			logger.Warn("publish error", "event", ev.Type, "error", err)
		}
		if hub != nil {
			hub.BroadcastGesture(name, *ev)
		}
	}
}

// loop owns the daemon lifecycle around a running sampler.
type loop struct {
	sampler    *sampler.Sampler
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	logger     *slog.Logger
	now        func() time.Time
}

// run publishes STARTUP, samples on sampleTick until a signal arrives or ctx
// is cancelled, then stops the sampler and publishes SHUTDOWN. heartbeat may
// be nil to disable heartbeats.
func (l *loop) run(ctx context.Context, sampleTick, heartbeat, refresh <-chan time.Time, sig <-chan os.Signal) error {
	l.publishSystem(mqtt.EventStartup, "")

	sctx, stop := context.WithCancel(ctx)
	defer stop()
	samplerDone := make(chan error, 1)
	go func() { samplerDone <- l.sampler.Run(sctx, sampleTick) }()

	var reason string
	for reason == "" {
		select {
		case s := <-sig:
			l.logger.Info("shutting down", "signal", s)
			reason = signalName(s)

		case <-ctx.Done():
			l.logger.Info("shutting down", "reason", "console exit")
			reason = reasonConsole

		case err := <-samplerDone:
			if ctx.Err() != nil {
				// Cancelled from outside; the sampler just got there first.
				l.publishSystem(mqtt.EventShutdown, reasonConsole)
				return nil
			}
			if err == nil {
				err = errors.New("sampler stopped")
			}
			l.publishSystem(mqtt.EventShutdown, reasonSamplerError)
			return err

		case <-refresh:
			l.refreshMQTT()

		case <-heartbeat:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			snap := l.publishSystem(mqtt.EventHeartbeat, "")
			l.logger.Info("heartbeat",
				"uptime", snap.Uptime().Truncate(time.Second),
				"clicks", snap.Counts.Clicks,
				"holds", snap.Counts.Holds,
				"faults", snap.Counts.Faults,
			)
		}
	}

	stop()
	if err := <-samplerDone; err != nil {
		l.logger.Warn("sampler stopped with error", "error", err)
	}
	l.publishSystem(mqtt.EventShutdown, reason)
	return nil
}

// Shutdown reasons other than signal names.
const (
	reasonConsole      = "CONSOLE_EXIT"
	reasonSamplerError = "SAMPLER_ERROR"
)

func (l *loop) refreshMQTT() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last state.
func (l *loop) publishSystem(event, reason string) status.Snapshot {
	l.refreshMQTT()
	snap := l.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(se); err != nil {
		l.logger.Warn("failed to publish system event", "event", event, "error", err)
	} else {
		l.logger.Info("published system event", "event", event, "reason", reason)
	}
	return snap
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(pressed bool) string {
	if pressed {
		return string(logic.StateDown)
	}
	return string(logic.StateUp)
}
