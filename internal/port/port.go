// Package port routes logical channel reads and writes to local GPIO lines
// or to the bits of a 16-bit I2C port expander.
package port

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/soundbox-buttons/internal/gpio"
)

// Port is the channel abstraction used by the input pipeline.
// It is not safe for concurrent use; only the consumer goroutine calls it.
type Port struct {
	pins    gpio.Pins
	exp     *Expander
	maxGPIO Channel
	amps    map[Channel]string
	log     logrus.FieldLogger
}

// Options configures a Port.
type Options struct {
	// MaxGPIO is the highest local GPIO offset. Zero means DefaultMaxGPIO.
	MaxGPIO Channel

	// Amplifiers names the enable channels whose changes are logged.
	Amplifiers map[Channel]string
}

// New returns a port over pins and exp. exp may be nil for boards without
// an expander.
func New(pins gpio.Pins, exp *Expander, opts Options, log logrus.FieldLogger) *Port {
	if opts.MaxGPIO == 0 {
		opts.MaxGPIO = DefaultMaxGPIO
	}
	return &Port{
		pins:    pins,
		exp:     exp,
		maxGPIO: opts.MaxGPIO,
		amps:    opts.Amplifiers,
		log:     log.WithField("component", "port"),
	}
}

// Expander returns the expander in use, or nil when running GPIO-only.
func (p *Port) Expander() *Expander {
	return p.exp
}

// Kind classifies ch for this board.
func (p *Port) Kind(ch Channel) Kind {
	if ch.IsExpander() && p.exp == nil {
		return KindInvalid
	}
	return ch.Kind(p.maxGPIO)
}

// Init drives the configured outputs to their idle level and brings up the
// expander. A missing expander is logged and the port continues GPIO-only.
func (p *Port) Init(outputs []Output) error {
	var errs []error
	for _, o := range outputs {
		if o.Channel.Kind(p.maxGPIO) != KindGPIO {
			continue
		}
		if err := p.pins.Output(int(o.Channel), o.Invert); err != nil {
			errs = append(errs, fmt.Errorf("init output %s: %w", o.Name, err))
		}
	}

	if p.exp != nil {
		if err := p.exp.Init(outputs); err != nil {
			if errors.Is(err, ErrNoExpander) {
				p.log.Warn("continuing without port expander")
				p.exp = nil
			} else {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// EnableInterrupt watches the expander's interrupt line on the given GPIO
// channel. Without an edge-capable backend the expander stays polled.
func (p *Port) EnableInterrupt(line Channel) error {
	if p.exp == nil {
		return nil
	}
	if line.Kind(p.maxGPIO) != KindGPIO {
		return fmt.Errorf("interrupt line %s is not a gpio channel", line)
	}
	if err := p.pins.Input(int(line), gpio.PullUp); err != nil {
		return err
	}
	if err := p.pins.Watch(int(line), p.exp.HandleInterrupt); err != nil {
		return fmt.Errorf("watch interrupt line %s: %w", line, err)
	}
	p.exp.EnableInterrupt(func() bool {
		// An unreadable line counts as asserted, which falls back to polling.
		high, err := p.pins.Read(int(line))
		return err != nil || !high
	})
	p.log.WithField("channel", line).Info("expander interrupt enabled")
	return nil
}

// ConfigureInput sets the bias of a GPIO input: pull-up for active-low
// buttons, none for active-high. Expander inputs need no setup.
func (p *Port) ConfigureInput(ch Channel, activeHigh bool) error {
	if ch.Kind(p.maxGPIO) != KindGPIO {
		return nil
	}
	pull := gpio.PullUp
	if activeHigh {
		pull = gpio.PullNone
	}
	return p.pins.Input(int(ch), pull)
}

// Refresh updates the expander input cache. Errors are logged and leave
// the cache unchanged.
func (p *Port) Refresh() {
	if p.exp == nil {
		return
	}
	if err := p.exp.Refresh(); err != nil {
		p.log.WithError(err).Error("expander refresh failed")
	}
}

// Read returns the level of ch. GPIO channels are read live, expander
// channels from the cache. Invalid channels and failed reads return true,
// which an active-low button sees as "not pressed".
func (p *Port) Read(ch Channel) bool {
	switch p.Kind(ch) {
	case KindGPIO:
		v, err := p.pins.Read(int(ch))
		if err != nil {
			p.log.WithError(err).WithField("channel", ch).Error("gpio read failed")
			return true
		}
		return v
	case KindExpander:
		return p.exp.Input(ch)
	}
	return true
}

// Write drives ch to level. With initialize set, a GPIO channel is first
// configured as an output. Writes to invalid channels are ignored.
func (p *Port) Write(ch Channel, level, initialize bool) error {
	var err error
	switch p.Kind(ch) {
	case KindGPIO:
		if initialize {
			err = p.pins.Output(int(ch), level)
		} else {
			err = p.pins.Write(int(ch), level)
		}
	case KindExpander:
		err = p.exp.SetOutput(ch, level)
	default:
		return nil
	}
	if err != nil {
		p.log.WithError(err).WithField("channel", ch).Error("write failed")
		return err
	}
	p.announce(ch, level)
	return nil
}

func (p *Port) announce(ch Channel, level bool) {
	name, ok := p.amps[ch]
	if !ok {
		return
	}
	state := "off"
	if level {
		state = "on"
	}
	p.log.WithField("channel", ch).Infof("%s %s", name, state)
}

// Shutdown puts every given output into its idle level for deep sleep and
// clears pending expander interrupts. The expander masks written are
// returned; without an expander they are the power-on defaults.
func (p *Port) Shutdown(outputs []Output) (Masks, error) {
	var errs []error
	for _, o := range outputs {
		if o.Channel.Kind(p.maxGPIO) != KindGPIO {
			continue
		}
		if err := p.pins.Output(int(o.Channel), o.Invert); err != nil {
			errs = append(errs, fmt.Errorf("shutdown output %s: %w", o.Name, err))
		}
	}

	m := NewMasks()
	if p.exp != nil {
		var err error
		if m, err = p.exp.Shutdown(outputs); err != nil {
			errs = append(errs, err)
		}
		p.log.WithFields(logrus.Fields{
			"io":    fmt.Sprintf("%04x", m.IO),
			"state": fmt.Sprintf("%04x", m.State),
		}).Info("expander shut down")
	}
	return m, errors.Join(errs...)
}
