package console

import (
	"sync/atomic"
)

// Level is a software input line: a gpio.EdgeReader whose level is set by
// the console instead of a pin. It works with both sampler modes.
type Level struct {
	pressed atomic.Bool
	edges   chan struct{}
}

// NewLevel returns a released Level.
func NewLevel() *Level {
	return &Level{edges: make(chan struct{}, 1)}
}

// Set changes the level and signals an edge if it changed.
func (l *Level) Set(pressed bool) {
	if l.pressed.Swap(pressed) == pressed {
		return
	}
	select {
	case l.edges <- struct{}{}:
	default:
	}
}

// Read returns the current level. It never fails.
func (l *Level) Read() (bool, error) {
	return l.pressed.Load(), nil
}

// Edges signals level changes. Bursts coalesce.
func (l *Level) Edges() <-chan struct{} {
	return l.edges
}

// Close is a no-op; the edges channel stays open.
func (l *Level) Close() error {
	return nil
}
