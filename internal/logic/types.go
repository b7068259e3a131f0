// Package logic contains the pure button logic: debounce classification and
// command dispatch. It has no hardware or OS dependencies; time is always
// injected as a tick.Millis value.
package logic

import (
	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/tick"
)

// Button holds the configuration and classification state of one button.
// Levels follow the active-low convention: true = not pressed.
type Button struct {
	Name string
	// Enabled is false for slots without a usable channel. Disabled
	// buttons are never sampled and never pressed.
	Enabled bool
	Short   command.Command
	Long    command.Command

	CurrentState bool
	LastState    bool
	IsPressed    bool
	IsReleased   bool

	FirstPressedTimestamp tick.Millis
	LastPressedTimestamp  tick.Millis
	LastReleasedTimestamp tick.Millis

	// repeats counts long-press periods already emitted for a held
	// volume button.
	repeats uint32
}

// Set is the fixed-size collection of buttons, indexed from zero.
type Set struct {
	buttons []Button
}

// NewSet copies buttons into a set with every button released.
func NewSet(buttons []Button) *Set {
	s := &Set{buttons: make([]Button, len(buttons))}
	copy(s.buttons, buttons)
	for i := range s.buttons {
		b := &s.buttons[i]
		b.CurrentState = true
		b.LastState = true
		b.IsPressed = false
		b.IsReleased = false
		b.repeats = 0
	}
	return s
}

// Len returns the number of buttons.
func (s *Set) Len() int {
	return len(s.buttons)
}

// At returns button i.
func (s *Set) At(i int) *Button {
	return &s.buttons[i]
}

// Snapshot returns a copy of every button.
func (s *Set) Snapshot() []Button {
	out := make([]Button, len(s.buttons))
	copy(out, s.buttons)
	return out
}

// ShutdownButton returns the index of the first button whose long press
// puts the device to sleep, or -1.
func (s *Set) ShutdownButton() int {
	for i := range s.buttons {
		if s.buttons[i].Enabled && s.buttons[i].Long.IsSleep() {
			return i
		}
	}
	return -1
}

// Pair is an unordered pair of button indexes, stored with A < B.
type Pair struct {
	A, B int
}

// NewPair returns the normalized pair of a and b.
func NewPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Chords maps button pairs to the command fired when both are pressed.
type Chords map[Pair]command.Command

// Kind is how an action was resolved.
type Kind string

const (
	KindShort  Kind = "SHORT"
	KindLong   Kind = "LONG"
	KindRepeat Kind = "REPEAT"
	KindChord  Kind = "CHORD"
)

// Action is a resolved user action.
type Action struct {
	Kind    Kind
	Command command.Command
	// Button is the index of the button, or the lower index of a chord.
	Button int
	// Other is the higher index of a chord, -1 otherwise.
	Other int
}
