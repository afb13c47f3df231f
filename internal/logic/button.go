package logic

import (
	"log/slog"
	"math"
	"time"
)

// Button turns raw pressed/released samples into click and hold gestures.
//
// It has no timers of its own: Update must be called repeatedly, also while
// the input is unchanged, so that pending click runs and hold repeats can be
// resolved by elapsed time. A caller that stops calling Update freezes the
// gesture state until the next call.
//
// Button is not safe for concurrent use; at most one Update may run at a time.
type Button struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *slog.Logger
	clock      func() time.Time
	name       string

	pressed bool // logical state, flips on every raw edge
	held    bool
	down    bool // debounced state
	last    time.Time
	started bool
	clicks  int

	counts EventCounts
}

// Option configures a Button.
type Option func(*Button)

// WithLogger sets the logger used to report handler faults.
func WithLogger(l *slog.Logger) Option {
	return func(b *Button) { b.logger = l }
}

// WithClock sets the clock read when Update is called with a zero time.
func WithClock(clock func() time.Time) Option {
	return func(b *Button) { b.clock = clock }
}

// WithName names the button in log output.
func WithName(name string) Option {
	return func(b *Button) { b.name = name }
}

// NewButton creates a Button with the given thresholds. d may be nil, in
// which case gestures are only returned from Update.
func NewButton(cfg Config, d Dispatcher, opts ...Option) *Button {
	b := &Button{
		cfg:        cfg,
		dispatcher: d,
		logger:     slog.Default(),
		clock:      time.Now,
		name:       "button",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update feeds one raw sample taken at now. A zero now reads the Button's clock.
// It returns the gesture fired by this call, if any, after it has been dispatched.
func (b *Button) Update(pressed bool, now time.Time) *Event {
	if now.IsZero() {
		now = b.clock()
	}

	dt := time.Duration(math.MaxInt64)
	if b.started {
		dt = now.Sub(b.last)
	}

	if dt > b.cfg.ClickTime {
		b.down = pressed
	}

	var ev *Event
	if !b.pressed {
		if pressed {
			// Press edge. Entering a press never fires.
			b.transition(now)
			b.pressed = true
		} else if b.clicks > 0 && dt > b.cfg.DoubleClickTime {
			ev = &Event{Timestamp: now, Type: GestureClick, Count: b.clicks}
			b.clicks = 0
		}
	} else {
		if pressed {
			if b.held {
				if b.cfg.HoldRepeat > 0 && dt > b.cfg.HoldRepeat {
					b.transition(now)
					ev = &Event{Timestamp: now, Type: GestureHold, Count: b.clicks, Repeat: true}
				}
			} else if dt > b.cfg.HoldTime {
				b.held = true
				b.transition(now)
				ev = &Event{Timestamp: now, Type: GestureHold, Count: b.clicks}
			}
		} else {
			// Release edge.
			if b.held {
				b.clicks = 0
			} else if dt > b.cfg.ClickTime {
				b.clicks++
			}
			b.pressed = false
			b.held = false
			b.transition(now)
		}
	}

	if ev != nil {
		b.fire(*ev)
	}
	return ev
}

func (b *Button) transition(now time.Time) {
	b.last = now
	b.started = true
}

func (b *Button) fire(ev Event) {
	switch {
	case ev.Type == GestureClick:
		b.counts.Clicks++
		b.counts.ClicksByCount = increment(b.counts.ClicksByCount, ev.Count)
	case ev.Repeat:
		b.counts.Repeats++
	default:
		b.counts.Holds++
		b.counts.HoldsByCount = increment(b.counts.HoldsByCount, ev.Count)
	}

	if !safeDispatch(b.logger, b.name, b.dispatcher, ev) {
		b.counts.Faults++
	}
}

func increment(m map[int]int, k int) map[int]int {
	if m == nil {
		m = make(map[int]int)
	}
	m[k]++
	return m
}

// Press is Update(true) at the current clock time.
func (b *Button) Press() *Event {
	return b.Update(true, time.Time{})
}

// Release is Update(false) at the current clock time.
func (b *Button) Release() *Event {
	return b.Update(false, time.Time{})
}

// IsDown reports the debounced state.
func (b *Button) IsDown() bool {
	return b.down
}

// IsUp is the inverse of IsDown.
func (b *Button) IsUp() bool {
	return !b.down
}

// IsHeld reports whether the current press has become a hold.
func (b *Button) IsHeld() bool {
	return b.held
}

// IsPressed reports the logical, non-debounced state.
func (b *Button) IsPressed() bool {
	return b.pressed
}

// PendingClicks returns the clicks counted but not yet fired.
func (b *Button) PendingClicks() int {
	return b.clicks
}

// CurrentState returns the debounced state.
func (b *Button) CurrentState() State {
	if b.down {
		return StateDown
	}
	return StateUp
}

// Name returns the button name used in logs and payloads.
func (b *Button) Name() string {
	return b.name
}

// Config returns the thresholds the button was created with.
func (b *Button) Config() Config {
	return b.cfg
}

// EventCountsSnapshot returns a copy of the gesture counters.
func (b *Button) EventCountsSnapshot() EventCounts {
	return b.counts.Clone()
}
