package logic

import (
	"time"

	"github.com/sweeney/soundbox-buttons/internal/tick"
)

// Classifier turns sampled button levels into debounced press and release
// edges.
type Classifier struct {
	debounce uint32
}

// NewClassifier creates a classifier that accepts an edge only when at
// least debounce has passed since the last accepted press.
func NewClassifier(debounce time.Duration) *Classifier {
	return &Classifier{debounce: uint32(debounce / time.Millisecond)}
}

// Classify processes the CurrentState of every enabled button sampled at
// now.
func (c *Classifier) Classify(set *Set, now tick.Millis) {
	for i := range set.buttons {
		b := &set.buttons[i]
		if !b.Enabled {
			continue
		}
		c.classify(b, now)
	}
}

func (c *Classifier) classify(b *Button, now tick.Millis) {
	// LastState follows the raw level every tick, accepted or not.
	defer func() { b.LastState = b.CurrentState }()

	if b.CurrentState == b.LastState {
		return
	}
	if tick.Elapsed(now, b.LastPressedTimestamp) < c.debounce {
		return
	}

	if !b.CurrentState {
		b.IsPressed = true
		b.IsReleased = false
		b.LastPressedTimestamp = now
		if b.FirstPressedTimestamp == 0 {
			b.FirstPressedTimestamp = now
		}
		b.repeats = 0
		return
	}

	b.IsReleased = true
	b.LastReleasedTimestamp = now
	b.FirstPressedTimestamp = 0
}
