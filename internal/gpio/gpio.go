// Package gpio provides push-button input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Reader reads the logical state of a button line.
type Reader interface {
	// Read returns true while the button is pressed. Active-low wiring is
	// already accounted for.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// EdgeReader is a Reader that also reports edges on the line.
type EdgeReader interface {
	Reader

	// Edges receives a value after one or more edges since the last receive.
	Edges() <-chan struct{}
}

// Bias selects the line's internal resistor.
type Bias string

const (
	// BiasPullUp enables the internal pull-up resistor.
	BiasPullUp Bias = "pull-up"
	// BiasPullDown enables the internal pull-down resistor.
	BiasPullDown Bias = "pull-down"
	// BiasNone leaves the line floating; use with an external resistor.
	BiasNone Bias = "none"
)

// ParseBias validates a bias name from configuration.
func ParseBias(s string) (Bias, error) {
	switch b := Bias(s); b {
	case BiasPullUp, BiasPullDown, BiasNone:
		return b, nil
	default:
		return "", fmt.Errorf("invalid bias %q (must be pull-up, pull-down or none)", s)
	}
}

// Options describes how a button is wired.
type Options struct {
	Chip      string
	Pin       int
	ActiveLow bool
	Bias      Bias
}

// Defaults for a button between a BCM pin and ground.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)

// DefaultOptions returns the wiring of a button that shorts the pin to ground.
func DefaultOptions() Options {
	return Options{
		Chip:      DefaultChip,
		Pin:       DefaultPin,
		ActiveLow: true,
		Bias:      BiasPullUp,
	}
}

// notify performs a non-blocking send so edge bursts coalesce.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
