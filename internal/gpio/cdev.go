//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevPins drives lines through the Linux GPIO character device.
type CdevPins struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	wake  chan struct{}
}

// NewCdevPins opens the named chip, e.g. "gpiochip0".
func NewCdevPins(chipName string) (*CdevPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &CdevPins{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
		wake:  make(chan struct{}, 1),
	}, nil
}

// request (re)requests a line with the given options, releasing any
// previous request for the same offset.
func (p *CdevPins) request(pin int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	if l, ok := p.lines[pin]; ok {
		l.Close()
		delete(p.lines, pin)
	}
	l, err := p.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}
	p.lines[pin] = l
	return l, nil
}

func bias(pull Pull) gpiocdev.LineReqOption {
	if pull == PullUp {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithBiasDisabled
}

// Read returns the live level of the line.
func (p *CdevPins) Read(pin int) (bool, error) {
	l, ok := p.lines[pin]
	if !ok {
		var err error
		if l, err = p.request(pin, gpiocdev.AsInput); err != nil {
			return true, err
		}
	}
	v, err := l.Value()
	if err != nil {
		return true, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Write drives the line, requesting it as an output if needed.
func (p *CdevPins) Write(pin int, high bool) error {
	l, ok := p.lines[pin]
	if !ok {
		return p.Output(pin, high)
	}
	if err := l.SetValue(level(high)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Input configures the line as an input.
func (p *CdevPins) Input(pin int, pull Pull) error {
	_, err := p.request(pin, gpiocdev.AsInput, bias(pull))
	return err
}

// Output configures the line as an output.
func (p *CdevPins) Output(pin int, high bool) error {
	_, err := p.request(pin, gpiocdev.AsOutput(level(high)))
	return err
}

// Watch requests edge events with the internal pull-up enabled. Both edges
// are requested so onEdge sees the level the line moved to.
func (p *CdevPins) Watch(pin int, onEdge func(low bool)) error {
	_, err := p.request(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			onEdge(evt.Type == gpiocdev.LineEventFallingEdge)
		}),
	)
	return err
}

// EnableWake arms falling-edge detection on the line. A wake edge is
// delivered on Woken.
func (p *CdevPins) EnableWake(pin int) error {
	return p.Watch(pin, func(low bool) {
		if !low {
			return
		}
		select {
		case p.wake <- struct{}{}:
		default:
		}
	})
}

// Woken delivers one value per wake edge; extra edges are dropped.
func (p *CdevPins) Woken() <-chan struct{} {
	return p.wake
}

// Close reconfigures every line back to an input before releasing it, so
// nothing is left driven after the process exits.
func (p *CdevPins) Close() error {
	var errs []error
	for pin, l := range p.lines {
		if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	p.lines = make(map[int]*gpiocdev.Line)
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
