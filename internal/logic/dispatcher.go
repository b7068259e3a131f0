package logic

import (
	"time"

	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/tick"
)

// Dispatcher resolves classified buttons into at most one action per tick.
type Dispatcher struct {
	longPress uint32
	chords    Chords
}

// NewDispatcher creates a dispatcher with the given long-press threshold and
// chord table.
func NewDispatcher(longPress time.Duration, chords Chords) *Dispatcher {
	return &Dispatcher{
		longPress: uint32(longPress / time.Millisecond),
		chords:    chords,
	}
}

// LongPress returns the long-press threshold in milliseconds.
func (d *Dispatcher) LongPress() uint32 {
	return d.longPress
}

// Dispatch resolves the buttons at now. Chords take priority over single
// buttons, and buttons are resolved in index order. It returns false when
// nothing is to be emitted this tick; a matched action mapped to Nothing is
// consumed and not reported.
func (d *Dispatcher) Dispatch(set *Set, now tick.Millis) (Action, bool) {
	if a, ok := d.chord(set); ok {
		return a, a.Command != command.Nothing
	}

	for i := range set.buttons {
		b := &set.buttons[i]
		if !b.Enabled || !b.IsPressed {
			continue
		}
		if a, ok := d.single(b, now); ok && a.Command != command.Nothing {
			a.Button = i
			a.Other = -1
			return a, true
		}
	}
	return Action{}, false
}

// chord finds the first configured pair, in index order, with both buttons
// pressed.
func (d *Dispatcher) chord(set *Set) (Action, bool) {
	if len(d.chords) == 0 {
		return Action{}, false
	}
	n := len(set.buttons)
	for i := 0; i < n; i++ {
		if !set.buttons[i].Enabled || !set.buttons[i].IsPressed {
			continue
		}
		for j := i + 1; j < n; j++ {
			if !set.buttons[j].Enabled || !set.buttons[j].IsPressed {
				continue
			}
			cmd, ok := d.chords[Pair{A: i, B: j}]
			if !ok {
				continue
			}
			set.buttons[i].IsPressed = false
			set.buttons[j].IsPressed = false
			return Action{Kind: KindChord, Command: cmd, Button: i, Other: j}, true
		}
	}
	return Action{}, false
}

// single resolves one pressed button. The boolean reports whether the
// button produced an action, even one mapped to Nothing.
func (d *Dispatcher) single(b *Button, now tick.Millis) (Action, bool) {
	if released(b) {
		b.IsPressed = false
		held := tick.Elapsed(b.LastReleasedTimestamp, b.LastPressedTimestamp)
		if held < d.longPress {
			return Action{Kind: KindShort, Command: b.Short}, true
		}
		// Sleep fires on release only, so the device does not wake
		// straight back up from the still-held button.
		if b.Long.IsSleep() {
			return Action{Kind: KindLong, Command: b.Long}, true
		}
		return Action{}, false
	}

	held := tick.Elapsed(now, b.LastPressedTimestamp)
	switch {
	case b.Long.IsVolume():
		if held < d.longPress || d.longPress == 0 {
			return Action{}, false
		}
		periods := held / d.longPress
		if periods <= b.repeats {
			return Action{}, false
		}
		b.repeats = periods
		return Action{Kind: KindRepeat, Command: b.Long}, true
	case b.Long.IsSleep():
		return Action{}, false
	case held > d.longPress:
		b.IsPressed = false
		return Action{Kind: KindLong, Command: b.Long}, true
	}
	return Action{}, false
}

// released reports whether a release was accepted after the current press.
func released(b *Button) bool {
	return int32(b.LastReleasedTimestamp-b.LastPressedTimestamp) > 0
}
