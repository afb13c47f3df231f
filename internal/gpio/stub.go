//go:build !linux

package gpio

import "errors"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(opts Options) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Edges never receives on non-Linux platforms.
func (r *RealReader) Edges() <-chan struct{} {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
