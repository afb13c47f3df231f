// Package sampler feeds raw button levels into the gesture state machine.
//
// The state machine only makes progress when it is called, so the sampler
// keeps calling it: on every tick in poll mode, or in edge mode for a bounded
// burst of ticks after each edge interrupt.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

// Mode selects how samples are taken.
type Mode string

const (
	// ModePoll samples on every tick.
	ModePoll Mode = "poll"
	// ModeEdge idles until an edge, then samples on every tick until the
	// button has been released for BurstCount consecutive samples.
	ModeEdge Mode = "edge"
)

// ParseMode validates a mode name from configuration.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePoll, ModeEdge:
		return m, nil
	default:
		return "", fmt.Errorf("invalid sampler mode %q (must be poll or edge)", s)
	}
}

// DefaultBurstCount matches a 1s burst at a 10ms poll interval.
const DefaultBurstCount = 100

// Updater is the part of the gesture state machine the sampler drives.
type Updater interface {
	Update(pressed bool, now time.Time) *logic.Event
	IsPressed() bool
}

// SampleFunc is called after every sample with the gesture it fired, if any.
// It runs on the sampling goroutine, so it may query the Updater.
type SampleFunc func(now time.Time, ev *logic.Event)

// Sampler reads a gpio.Reader and drives an Updater.
type Sampler struct {
	reader     gpio.Reader
	edges      <-chan struct{}
	button     Updater
	mode       Mode
	burstCount int
	onSample   SampleFunc
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger for read errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// WithClock sets the clock used to timestamp samples.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithBurstCount sets the number of released samples taken after an edge
// before the sampler goes idle again. Ignored in poll mode.
func WithBurstCount(n int) Option {
	return func(s *Sampler) { s.burstCount = n }
}

// New creates a Sampler. Edge mode requires reader to implement gpio.EdgeReader.
func New(reader gpio.Reader, button Updater, mode Mode, onSample SampleFunc, opts ...Option) (*Sampler, error) {
	s := &Sampler{
		reader:     reader,
		button:     button,
		mode:       mode,
		burstCount: DefaultBurstCount,
		onSample:   onSample,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch mode {
	case ModePoll:
	case ModeEdge:
		er, ok := reader.(gpio.EdgeReader)
		if !ok {
			return nil, fmt.Errorf("sampler: edge mode needs an edge-capable reader, got %T", reader)
		}
		s.edges = er.Edges()
		if s.burstCount <= 0 {
			return nil, fmt.Errorf("sampler: burst count must be > 0, got %d", s.burstCount)
		}
	default:
		return nil, fmt.Errorf("sampler: unknown mode %q", mode)
	}
	return s, nil
}

// Run samples until ctx is cancelled. tick paces the samples; the caller
// owns it (usually a time.Ticker at the poll interval).
func (s *Sampler) Run(ctx context.Context, tick <-chan time.Time) error {
	if s.mode == ModePoll {
		return s.runPoll(ctx, tick)
	}
	return s.runEdge(ctx, tick)
}

func (s *Sampler) runPoll(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.Sample()
		}
	}
}

func (s *Sampler) runEdge(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.edges:
		}

		remaining := s.burstCount
		s.Sample()
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
			s.Sample()
			if s.button.IsPressed() {
				remaining = s.burstCount
			} else {
				remaining--
			}
		}
		// Edges seen during the burst are already accounted for.
		drain(s.edges)
		s.logger.Debug("sampler idle")
	}
}

// Sample takes one reading and feeds it to the button. Read errors are
// logged and the sample is skipped.
func (s *Sampler) Sample() {
	pressed, err := s.reader.Read()
	if err != nil {
		s.logger.Warn("gpio read error", "error", err)
		return
	}

	now := s.now()
	ev := s.button.Update(pressed, now)
	if s.onSample != nil {
		s.onSample(now, ev)
	}
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
