//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// wakePoll is how often armed wake lines are checked for a latched edge.
const wakePoll = 20 * time.Millisecond

// RpioPins drives BCM283x lines through memory-mapped registers. It cannot
// deliver edge callbacks, so expander interrupts fall back to polling and
// wake edges are picked up from the event detect latch.
type RpioPins struct {
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	armed map[int]bool
	once  sync.Once
}

// NewRpioPins maps the GPIO register block.
func NewRpioPins() (*RpioPins, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}
	return &RpioPins{
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		armed: make(map[int]bool),
	}, nil
}

// Read returns the live level of the line.
func (p *RpioPins) Read(pin int) (bool, error) {
	return rpio.Pin(pin).Read() == rpio.High, nil
}

// Write drives the line.
func (p *RpioPins) Write(pin int, high bool) error {
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

// Input configures the line as an input.
func (p *RpioPins) Input(pin int, pull Pull) error {
	rp := rpio.Pin(pin)
	rp.Input()
	if pull == PullUp {
		rp.PullUp()
	} else {
		rp.PullOff()
	}
	return nil
}

// Output configures the line as an output.
func (p *RpioPins) Output(pin int, high bool) error {
	rpio.Pin(pin).Output()
	return p.Write(pin, high)
}

// Watch is not available with the rpio backend.
func (p *RpioPins) Watch(pin int, onEdge func(low bool)) error {
	return ErrWatchUnsupported
}

// EnableWake enables hardware falling-edge detection on the line. A
// detected edge is delivered on Woken.
func (p *RpioPins) EnableWake(pin int) error {
	rp := rpio.Pin(pin)
	rp.Input()
	rp.PullUp()
	rp.Detect(rpio.FallEdge)
	rp.EdgeDetected() // clear a stale latch
	select {
	case <-p.wake:
	default:
	}

	p.mu.Lock()
	p.armed[pin] = true
	p.mu.Unlock()
	p.once.Do(func() { go p.pollWake() })
	return nil
}

// Woken delivers one value per wake edge; extra edges are dropped.
func (p *RpioPins) Woken() <-chan struct{} {
	return p.wake
}

func (p *RpioPins) pollWake() {
	t := time.NewTicker(wakePoll)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
		}
		p.mu.Lock()
		for pin := range p.armed {
			if rpio.Pin(pin).EdgeDetected() {
				select {
				case p.wake <- struct{}{}:
				default:
				}
			}
		}
		p.mu.Unlock()
	}
}

// Close stops wake polling and unmaps the register block.
func (p *RpioPins) Close() error {
	p.mu.Lock()
	for pin := range p.armed {
		rpio.Pin(pin).Detect(rpio.NoEdge)
	}
	p.armed = map[int]bool{}
	p.mu.Unlock()
	close(p.done)
	return rpio.Close()
}
