// Package status provides a thread-safe status tracker for the button daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/soundbox-buttons/internal/input"
	"github.com/sweeney/soundbox-buttons/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleMs    int64
	DebounceMs  int64
	LongPressMs int64
	Broker      string
	HTTPPort    string
	Board       string
	GPIO        string
}

// Counts tracks emitted commands by kind since startup.
type Counts struct {
	Short  int
	Long   int
	Repeat int
	Chord  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Input         input.Snapshot
	LastEvent     *input.Event
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the latest pipeline state. The caller must not modify it
// afterwards.
func (t *Tracker) Update(in input.Snapshot) {
	t.mu.Lock()
	t.snap.Input = in
	t.mu.Unlock()
}

// Execute records an emitted command. It implements input.Executor and
// never fails.
func (t *Tracker) Execute(ev input.Event) error {
	ev.Buttons = append([]string(nil), ev.Buttons...)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastEvent = &ev
	switch ev.Kind {
	case logic.KindShort:
		t.snap.Counts.Short++
	case logic.KindLong:
		t.snap.Counts.Long++
	case logic.KindRepeat:
		t.snap.Counts.Repeat++
	case logic.KindChord:
		t.snap.Counts.Chord++
	}
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
