package port

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// PCA9555 register pointers. Each pointer addresses a pair of 8-bit
// registers that are read or written in one transaction.
const (
	regInput  byte = 0x00
	regOutput byte = 0x02
	regConfig byte = 0x06

	// DefaultAddress is the expander's address with A0..A2 tied low.
	DefaultAddress uint16 = 0x20
)

// ErrNoExpander is returned when the expander does not answer at startup.
var ErrNoExpander = errors.New("port: expander not detected")

// Expander caches the input and output registers of a 16-bit I2C port
// expander. Every bus transaction is a single Tx so the device's register
// pointer is never left half-written.
//
// Only the consumer goroutine may call methods other than HandleInterrupt.
type Expander struct {
	dev *i2c.Dev
	log logrus.FieldLogger

	in      [2]uint8
	out     [2]uint8
	prev    uint16
	changed uint16

	irq       bool
	lineLow   func() bool
	allowRead atomic.Bool
	armed     atomic.Bool
}

// NewExpander returns an expander at addr on bus. Call Init before use.
func NewExpander(bus i2c.Bus, addr uint16, log logrus.FieldLogger) *Expander {
	return &Expander{
		dev: &i2c.Dev{Bus: bus, Addr: addr},
		log: log.WithField("addr", fmt.Sprintf("0x%02x", addr)),
	}
}

// Probe checks that the device acknowledges its address.
func (e *Expander) Probe() error {
	if err := e.dev.Tx([]byte{regOutput}, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrNoExpander, err)
	}
	return nil
}

// Init probes the device, configures the given outputs and seeds the input
// cache from a full register read.
func (e *Expander) Init(outputs []Output) error {
	if err := e.Probe(); err != nil {
		e.log.WithError(err).Error("port expander not found")
		return err
	}
	e.log.Info("port expander found")

	m := outputMasks(outputs, NewMasks())
	if err := e.writeMasks(m); err != nil {
		return err
	}

	var buf [2]byte
	if err := e.dev.Tx([]byte{regInput}, buf[:]); err != nil {
		return fmt.Errorf("read input registers: %w", err)
	}
	e.in = buf
	e.prev = word(buf)
	e.changed = 0
	return nil
}

// EnableInterrupt switches the expander to interrupt-driven refresh.
// Refresh then only reads the bus after HandleInterrupt, while bits are
// still unsettled, or while lineLow reports the interrupt line asserted.
// lineLow may be nil when the line level cannot be sampled.
//
// The first refresh always reads, since the line may have latched low
// before the edge handler was installed.
func (e *Expander) EnableInterrupt(lineLow func() bool) {
	e.irq = true
	e.lineLow = lineLow
	e.armed.Store(true)
	e.allowRead.Store(true)
}

// HandleInterrupt is called from the interrupt line's edge handler.
// lineLow is the level of the line when the edge was delivered; spurious
// edges with the line already high are ignored. The interrupt stays
// disarmed until a refresh finds every bit settled.
func (e *Expander) HandleInterrupt(lineLow bool) {
	if !lineLow {
		return
	}
	if e.armed.CompareAndSwap(true, false) {
		e.allowRead.Store(true)
	}
}

// Refresh reads the input registers and updates the cache. A bit that
// changed since the previous refresh keeps its cached value for one more
// cycle; unchanged bits are taken as read.
//
// On a bus error the cache is left untouched and, in interrupt mode, another
// refresh is requested.
func (e *Expander) Refresh() error {
	if e.irq && !e.allowRead.Swap(false) && e.changed == 0 {
		return nil
	}

	var buf [2]byte
	if err := e.dev.Tx([]byte{regInput}, buf[:]); err != nil {
		if e.irq {
			e.allowRead.Store(true)
		}
		return fmt.Errorf("read input registers: %w", err)
	}

	curr := word(buf)
	e.changed = e.prev ^ curr
	stable := word(e.in)&e.changed | ^e.changed&curr
	e.in = split(stable)
	e.prev = curr

	if e.irq && e.changed == 0 {
		e.rearm()
	}
	return nil
}

// rearm re-enables the interrupt. The chip holds its line low until the
// inputs are read, so an edge that arrived while disarmed is recovered
// from the line level.
func (e *Expander) rearm() {
	e.armed.Store(true)
	if e.lineLow != nil {
		e.HandleInterrupt(e.lineLow())
	}
}

// Input returns the cached level of ch. Non-expander channels read high.
func (e *Expander) Input(ch Channel) bool {
	if !ch.IsExpander() {
		return true
	}
	return e.in[ch.register()]&(1<<ch.bit()) != 0
}

// Inputs returns the cached input registers.
func (e *Expander) Inputs() [2]uint8 {
	return e.in
}

// Outputs returns the cached output registers.
func (e *Expander) Outputs() [2]uint8 {
	return e.out
}

// Unsettled returns the bits that changed in the last refresh.
func (e *Expander) Unsettled() uint16 {
	return e.changed
}

// SetOutput changes one bit of the output registers and writes both bytes.
// The cache only changes once the device has accepted the write.
func (e *Expander) SetOutput(ch Channel, level bool) error {
	if !ch.IsExpander() {
		return nil
	}
	next := e.out
	if level {
		next[ch.register()] |= 1 << ch.bit()
	} else {
		next[ch.register()] &^= 1 << ch.bit()
	}
	if err := e.dev.Tx([]byte{regOutput, next[0], next[1]}, nil); err != nil {
		return fmt.Errorf("write output registers: %w", err)
	}
	e.out = next
	return nil
}

// Shutdown turns the given channels into outputs at their idle level, keeping
// the current latch of every other channel, then reads the inputs once more
// so a latched interrupt cannot wake the host straight back up.
// The masks written are returned even when part of the sequence failed.
func (e *Expander) Shutdown(outputs []Output) (Masks, error) {
	var errs []error
	base := NewMasks()

	var buf [2]byte
	if err := e.dev.Tx([]byte{regOutput}, buf[:]); err != nil {
		errs = append(errs, fmt.Errorf("read output registers: %w", err))
	} else {
		base.State = word(buf)
	}

	m := outputMasks(outputs, base)
	if err := e.writeMasks(m); err != nil {
		errs = append(errs, err)
	}

	if err := e.dev.Tx([]byte{regInput}, buf[:]); err != nil {
		errs = append(errs, fmt.Errorf("read input registers: %w", err))
	} else {
		e.in = buf
		e.prev = word(buf)
		e.changed = 0
	}
	return m, errors.Join(errs...)
}

// writeMasks writes the direction registers, then the output latches.
// Latches of input channels are ignored by the device.
func (e *Expander) writeMasks(m Masks) error {
	e.log.WithFields(logrus.Fields{"io": fmt.Sprintf("%04x", m.IO), "state": fmt.Sprintf("%04x", m.State)}).Debug("writing expander masks")

	io := split(m.IO)
	if err := e.dev.Tx([]byte{regConfig, io[0], io[1]}, nil); err != nil {
		return fmt.Errorf("write config registers: %w", err)
	}
	state := split(m.State)
	if err := e.dev.Tx([]byte{regOutput, state[0], state[1]}, nil); err != nil {
		return fmt.Errorf("write output registers: %w", err)
	}
	e.out = state
	return nil
}

func word(b [2]uint8) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func split(w uint16) [2]uint8 {
	return [2]uint8{uint8(w), uint8(w >> 8)}
}
