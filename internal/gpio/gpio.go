// Package gpio provides local GPIO line access with hardware abstraction.
// The cdev backend uses the Linux GPIO character device, the rpio backend
// uses memory-mapped BCM283x registers, and the fake allows testing without
// hardware.
package gpio

import "errors"

// Pull selects the input bias for a line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
)

// ErrWatchUnsupported is returned by backends that cannot deliver edge events.
var ErrWatchUnsupported = errors.New("gpio: edge watch not supported by backend")

// Pins reads and drives local GPIO lines by offset.
// Levels are raw electrical levels: true = high.
type Pins interface {
	// Read returns the live level of the line. Lines that were never
	// configured are requested as inputs first.
	Read(pin int) (bool, error)

	// Write drives an output line. The line must be an output.
	Write(pin int, high bool) error

	// Input configures the line as an input with the given bias.
	Input(pin int, pull Pull) error

	// Output configures the line as an output driven to the initial level.
	Output(pin int, high bool) error

	// Watch requests edge events on the line. onEdge runs on the
	// backend's event goroutine with the level the line moved to (low =
	// true) and must only touch atomic state.
	Watch(pin int, onEdge func(low bool)) error

	// EnableWake arms the line as a wake source (active low).
	EnableWake(pin int) error

	// Close releases all lines.
	Close() error
}
