//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevPins is not available on non-Linux platforms.
type CdevPins struct{ unsupported }

// NewCdevPins returns an error on non-Linux platforms.
func NewCdevPins(chipName string) (*CdevPins, error) {
	return nil, errUnsupported
}

// Woken never delivers on non-Linux platforms.
func (p *CdevPins) Woken() <-chan struct{} {
	return nil
}

// RpioPins is not available on non-Linux platforms.
type RpioPins struct{ unsupported }

// NewRpioPins returns an error on non-Linux platforms.
func NewRpioPins() (*RpioPins, error) {
	return nil, errUnsupported
}

// Woken never delivers on non-Linux platforms.
func (p *RpioPins) Woken() <-chan struct{} {
	return nil
}

type unsupported struct{}

func (unsupported) Read(int) (bool, error) { return true, errUnsupported }
func (unsupported) Write(int, bool) error { return errUnsupported }
func (unsupported) Input(int, Pull) error { return errUnsupported }
func (unsupported) Output(int, bool) error { return errUnsupported }
func (unsupported) Watch(int, func(bool)) error { return ErrWatchUnsupported }
func (unsupported) EnableWake(int) error { return errUnsupported }
func (unsupported) Close() error { return nil }
