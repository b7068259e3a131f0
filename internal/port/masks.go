package port

// Masks is the direction/state register pair written to the expander.
// An IO bit of 0 makes the channel an output; its State bit is the level
// driven on it.
type Masks struct {
	IO    uint16
	State uint16
}

// NewMasks returns the power-on configuration: every channel an input,
// every output latch low.
func NewMasks() Masks {
	return Masks{IO: 0xFFFF}
}

// ConfigureOutput makes ch an output driven high when invert is set and low
// otherwise. Non-expander channels are ignored.
func (m *Masks) ConfigureOutput(ch Channel, invert bool) {
	if !ch.IsExpander() {
		return
	}
	if invert {
		m.State |= ch.word()
	} else {
		m.State &^= ch.word()
	}
	m.IO &^= ch.word()
}

// IsOutput reports whether ch is configured as an output.
func (m Masks) IsOutput(ch Channel) bool {
	return ch.IsExpander() && m.IO&ch.word() == 0
}

// Level reports the latched level of ch.
func (m Masks) Level(ch Channel) bool {
	return ch.IsExpander() && m.State&ch.word() != 0
}

// Output is a channel the port drives at startup and at shutdown.
type Output struct {
	Name    string
	Channel Channel
	// Invert drives the channel high in its idle state, for boards with
	// inverted power logic.
	Invert bool
}

func outputMasks(outputs []Output, base Masks) Masks {
	m := base
	for _, o := range outputs {
		m.ConfigureOutput(o.Channel, o.Invert)
	}
	return m
}
