// Package logic contains the pure gesture recognition for a single push button.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"maps"
	"time"
)

// State represents the debounced state of the button.
type State string

const (
	StateDown State = "DOWN"
	StateUp   State = "UP"
)

// GestureType identifies a classified interaction.
type GestureType string

const (
	GestureClick GestureType = "CLICK"
	GestureHold  GestureType = "HOLD"
)

// Config holds the timing thresholds of a Button. Zero or negative values are
// accepted and simply yield degenerate behaviour (ClickTime=0 disables debouncing).
type Config struct {
	// Minimum dwell before an edge is trusted (debounce window).
	ClickTime time.Duration
	// Max gap between clicks for them to be counted as one run.
	DoubleClickTime time.Duration
	// Dwell while pressed before the press becomes a hold.
	HoldTime time.Duration
	// Interval between repeated hold firings, 0 = no repeat.
	HoldRepeat time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		ClickTime:       25 * time.Millisecond,
		DoubleClickTime: 200 * time.Millisecond,
		HoldTime:        time.Second,
	}
}

// Event is a fired gesture.
type Event struct {
	Timestamp time.Time
	Type      GestureType
	// Clicks in the run for CLICK, clicks preceding the hold for HOLD.
	Count int
	// Repeat is set on hold firings after the first one.
	Repeat bool
}

// EventCounts tracks fired gestures since startup.
type EventCounts struct {
	Clicks  int
	Holds   int
	Repeats int
	Faults  int
	// Keyed by Event.Count.
	ClicksByCount map[int]int
	HoldsByCount  map[int]int
}

// Clone returns a deep copy, safe to hand to other goroutines.
func (c EventCounts) Clone() EventCounts {
	c.ClicksByCount = maps.Clone(c.ClicksByCount)
	c.HoldsByCount = maps.Clone(c.HoldsByCount)
	return c
}
