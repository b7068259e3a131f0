package port

import "strconv"

// Channel identifies a logical input or output.
//
//	0..maxGPIO  local GPIO line
//	100..107    expander register 0, bit 0..7
//	108..115    expander register 1, bit 0..7
//
// Anything else is invalid: reads as "not pressed", writes are ignored.
type Channel uint8

const (
	// Disabled is the conventional channel for an unused slot.
	Disabled Channel = 99

	// DefaultMaxGPIO is the highest GPIO offset on the reference board.
	DefaultMaxGPIO Channel = 39

	ExpanderFirst Channel = 100
	ExpanderLast  Channel = 115
)

// Kind is the routing class of a channel.
type Kind int

const (
	KindInvalid Kind = iota
	KindGPIO
	KindExpander
)

func (k Kind) String() string {
	switch k {
	case KindGPIO:
		return "gpio"
	case KindExpander:
		return "expander"
	}
	return "invalid"
}

// Kind classifies c for a board whose GPIO range ends at maxGPIO.
func (c Channel) Kind(maxGPIO Channel) Kind {
	switch {
	case c <= maxGPIO:
		return KindGPIO
	case c.IsExpander():
		return KindExpander
	}
	return KindInvalid
}

// IsExpander reports whether c addresses a bit of the port expander.
func (c Channel) IsExpander() bool {
	return c >= ExpanderFirst && c <= ExpanderLast
}

// register returns which 8-bit expander register holds c.
func (c Channel) register() int {
	return int(c-ExpanderFirst) / 8
}

// bit returns the bit of c within its register.
func (c Channel) bit() uint {
	return uint(c-ExpanderFirst) % 8
}

// word returns the bit of c within the combined 16-bit register pair.
func (c Channel) word() uint16 {
	return 1 << (c - ExpanderFirst)
}

func (c Channel) String() string {
	return strconv.Itoa(int(c))
}
