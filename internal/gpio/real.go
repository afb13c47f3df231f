//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads a button from actual hardware using Linux GPIO character device.
type RealReader struct {
	line  *gpiocdev.Line
	bias  Bias
	edges chan struct{}
}

// NewRealReader requests the button line as an input with both-edge detection.
func NewRealReader(opts Options) (*RealReader, error) {
	r := &RealReader{
		bias:  opts.Bias,
		edges: make(chan struct{}, 1),
	}

	reqOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		reqBias(opts.Bias),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			notify(r.edges)
		}),
	}
	if opts.ActiveLow {
		reqOpts = append(reqOpts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(opts.Chip, opts.Pin, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s: %w", opts.Pin, opts.Chip, err)
	}
	r.line = line
	return r, nil
}

func reqBias(b Bias) gpiocdev.LineReqOption {
	switch b {
	case BiasPullDown:
		return gpiocdev.WithPullDown
	case BiasNone:
		return gpiocdev.WithBiasDisabled
	default:
		return gpiocdev.WithPullUp
	}
}

func configBias(b Bias) gpiocdev.LineConfigOption {
	switch b {
	case BiasPullDown:
		return gpiocdev.WithPullDown
	case BiasNone:
		return gpiocdev.WithBiasDisabled
	default:
		return gpiocdev.WithPullUp
	}
}

// Read returns true while the button is pressed. The line is requested
// active-low when configured so, so a logical 1 always means pressed.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Edges receives after any edge on the line.
func (r *RealReader) Edges() <-chan struct{} {
	return r.edges
}

// Close releases GPIO resources.
// The line is reconfigured as a plain input with its bias before closing so
// the pin is left in a defined state.
func (r *RealReader) Close() error {
	if r.line == nil {
		return nil
	}

	var errs []error
	if err := r.line.Reconfigure(gpiocdev.AsInput, configBias(r.bias)); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close button pin: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
