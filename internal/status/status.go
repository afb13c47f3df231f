// Package status provides a thread-safe status tracker for the button-sensor daemon.
// The sampler goroutine writes to it; HTTP handlers, the console and the
// heartbeat read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing platform code from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	ButtonName    string
	ClickMs       int64
	DoubleClickMs int64
	HoldMs        int64
	HoldRepeatMs  int64
	SamplerMode   string
	PollMs        int64
	DispatchMode  string
	HeartbeatMs   int64
	Broker        string
	TopicPrefix   string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and owns its maps, so it is safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Held          bool
	Pressed       bool
	PendingClicks int
	Counts        logic.EventCounts
	LastGesture   *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// ButtonView is the read side of a logic.Button.
type ButtonView interface {
	CurrentState() logic.State
	IsHeld() bool
	IsPressed() bool
	PendingClicks() int
	EventCountsSnapshot() logic.EventCounts
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateUp,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Observe copies the button state and, when ev is non-nil, records it as
// the last gesture. Called from the sampling goroutine after every sample.
func (t *Tracker) Observe(b ButtonView, ev *logic.Event) {
	counts := b.EventCountsSnapshot()
	state := b.CurrentState()
	held := b.IsHeld()
	pressed := b.IsPressed()
	pending := b.PendingClicks()

	t.mu.Lock()
	t.snap.State = state
	t.snap.Held = held
	t.snap.Pressed = pressed
	t.snap.PendingClicks = pending
	t.snap.Counts = counts
	if ev != nil {
		e := *ev
		t.snap.LastGesture = &e
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()

	s.Counts = s.Counts.Clone()
	if s.LastGesture != nil {
		e := *s.LastGesture
		s.LastGesture = &e
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	s.Now = now()
	return s
}
