package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/natefinch/lumberjack.v2"
	"gotest.tools/v3/poll"

	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/config"
	"github.com/sweeney/soundbox-buttons/internal/gpio"
	"github.com/sweeney/soundbox-buttons/internal/input"
	"github.com/sweeney/soundbox-buttons/internal/mqtt"
	"github.com/sweeney/soundbox-buttons/internal/port"
	"github.com/sweeney/soundbox-buttons/internal/status"
	"github.com/sweeney/soundbox-buttons/internal/tick"
)

const board = `
expander: {enabled: false}
debounce: 50ms
long_press: 500ms
wake_channel: 6
buttons:
  - {name: next, channel: 5, short: NEXTTRACK, long: LASTTRACK}
  - {name: rotary, channel: 6, short: MEASUREBATTERY, long: SLEEPMODE}
  - {name: spare, channel: 106, short: STOP}
outputs:
  - {name: power, channel: 13, invert: true, role: power}
shutdown_outputs:
  - {name: power, channel: 13, invert: true, role: power}
  - {name: led, channel: 14, role: led}
`

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestBoardName(t *testing.T) {
	if got := boardName(""); got != "soundbox" {
		t.Errorf("default board: got %q, want soundbox", got)
	}
	if got := boardName("/etc/soundbox/kitchen.yaml"); got != "kitchen" {
		t.Errorf("board file: got %q, want kitchen", got)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level: got %v, want debug", log.GetLevel())
	}

	if _, err := newLogger("loud", ""); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLoggerRotatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.log")
	log, err := newLogger("info", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lj, ok := log.Out.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("expected lumberjack output, got %T", log.Out)
	}
	if lj.Filename != path {
		t.Errorf("Filename: got %q, want %q", lj.Filename, path)
	}
}

func TestOpenPinsUnknownBackend(t *testing.T) {
	if _, _, err := openPins("sysfs", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSleepRequest(t *testing.T) {
	ch := make(chan struct{}, 1)
	req := sleepRequest(ch)

	req.Execute(input.Event{Command: command.NextTrack})
	if len(ch) != 0 {
		t.Fatal("non-sleep command must not request sleep")
	}

	req.Execute(input.Event{Command: command.SleepMode})
	req.Execute(input.Event{Command: command.SleepMode})
	if len(ch) != 1 {
		t.Errorf("expected one pending sleep request, got %d", len(ch))
	}
}

func TestPrintState(t *testing.T) {
	cfg, err := config.Parse([]byte(board))
	if err != nil {
		t.Fatalf("parse board: %v", err)
	}
	log, _ := test.NewNullLogger()
	pins := gpio.NewFakePins()
	pins.Set(5, false)
	p := port.New(pins, nil, port.Options{MaxGPIO: cfg.MaxGPIO}, log)

	var buf bytes.Buffer
	printState(&buf, &cfg, p)

	want := "next (5): pressed\nrotary (6): released\nspare (106): disabled\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
	if pins.Pulls[5] != gpio.PullUp {
		t.Error("expected pull-up on button line")
	}
}

// --- daemon loop tests ---

type harness struct {
	d       *daemon
	pins    *gpio.FakePins
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	clock   clockwork.FakeClock
	sample  *tick.Signal

	tick   chan time.Time
	sig    chan os.Signal
	locks  chan bool
	sleeps chan struct{}
	woken  chan struct{}
	errCh  chan error
	locked bool
}

func newHarness(t *testing.T, pub *mqtt.FakePublisher) *harness {
	t.Helper()
	return startHarness(t, pub, make(chan struct{}))
}

// startHarness runs the daemon loop with the given wake channel; nil
// models a backend that cannot report wake edges.
func startHarness(t *testing.T, pub *mqtt.FakePublisher, woken chan struct{}) *harness {
	t.Helper()
	cfg, err := config.Parse([]byte(board))
	if err != nil {
		t.Fatalf("parse board: %v", err)
	}

	log, _ := test.NewNullLogger()
	h := &harness{
		pins:    gpio.NewFakePins(),
		pub:     pub,
		tracker: status.NewTracker(time.Now(), status.Config{}),
		clock:   clockwork.NewFakeClock(),
		sample:  &tick.Signal{},
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal, 1),
		locks:   make(chan bool),
		sleeps:  make(chan struct{}, 1),
		woken:   woken,
		errCh:   make(chan error, 1),
	}

	p := port.New(h.pins, nil, port.Options{MaxGPIO: cfg.MaxGPIO}, log)
	ctrl := input.New(&cfg, p, h.sample, tick.NewClock(h.clock),
		input.Executors{h.tracker, mqtt.Executor{Publisher: pub}, sleepRequest(h.sleeps)},
		log)
	if err := ctrl.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	h.clock.Advance(time.Second)

	h.d = &daemon{
		ctrl:    ctrl,
		pins:    h.pins,
		wake:    cfg.WakeChannel,
		pub:     pub,
		conn:    pub,
		tracker: h.tracker,
		log:     log,
	}
	go func() {
		h.errCh <- h.d.run(h.tick, h.sig, h.locks, h.sleeps, h.woken)
	}()
	return h
}

// pass runs one sampled pipeline pass 10ms later without waiting for it.
func (h *harness) pass() {
	h.clock.Advance(10 * time.Millisecond)
	h.sample.Give()
	h.tick <- time.Time{}
}

// step runs n passes. Each is followed by a lock message carrying the
// current lock state, which returns only once the pass has completed.
func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.pass()
		h.locks <- h.locked
	}
}

func (h *harness) press(pin int) {
	h.pins.Set(pin, false)
	h.step(10)
	h.pins.Set(pin, true)
	h.step(2)
}

func (h *harness) stop(t *testing.T, s os.Signal) {
	t.Helper()
	h.sig <- s
	select {
	case err := <-h.errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func (h *harness) waitForSystem(t *testing.T, event string) {
	t.Helper()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		for _, e := range h.pub.Systems() {
			if e == event {
				return poll.Success()
			}
		}
		return poll.Continue("waiting for %s, have %v", event, h.pub.Systems())
	}, poll.WithTimeout(5*time.Second))
}

func TestRunShortPressPublished(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	h := newHarness(t, pub)

	h.press(5)
	h.stop(t, syscall.SIGTERM)

	got := pub.Commands()
	if len(got) != 1 || got[0] != "NEXTTRACK" {
		t.Errorf("commands: got %v, want [NEXTTRACK]", got)
	}
	snap := h.tracker.Snapshot()
	if snap.Counts.Short != 1 {
		t.Errorf("Counts.Short: got %d, want 1", snap.Counts.Short)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if len(snap.Input.Buttons) != 3 {
		t.Errorf("expected 3 buttons in status, got %d", len(snap.Input.Buttons))
	}
}

func TestRunShutdownParksOutputs(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := newHarness(t, pub)

	h.step(3)
	h.stop(t, syscall.SIGTERM)

	if got := pub.Systems(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Fatalf("system events: got %v, want [SHUTDOWN]", got)
	}
	se := pub.SystemEvents[0]
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
	if !strings.Contains(string(pub.SystemPayloads[0]), `"event":"SHUTDOWN"`) {
		t.Errorf("payload missing event: %s", pub.SystemPayloads[0])
	}

	if !h.pins.Outputs[14] || h.pins.Levels[14] {
		t.Error("expected led parked as low output")
	}
	if !h.pins.Levels[13] {
		t.Error("expected inverted power parked high")
	}
	if len(h.pins.Wakes) != 1 || h.pins.Wakes[0] != 6 {
		t.Errorf("wakes: got %v, want [6]", h.pins.Wakes)
	}
}

func TestRunShutdownSIGINT(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := newHarness(t, pub)

	h.stop(t, syscall.SIGINT)

	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("expected one SHUTDOWN with reason SIGINT, got %+v", pub.SystemEvents)
	}
}

func TestRunLockFromBroker(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := newHarness(t, pub)

	h.locked = true
	h.step(1)
	h.press(5)

	if got := pub.Commands(); len(got) != 0 {
		t.Errorf("locked controls published %v", got)
	}
	if !h.tracker.Snapshot().Input.Locked {
		t.Error("expected status to report lock")
	}

	h.locked = false
	h.step(1)
	h.press(5)
	h.stop(t, syscall.SIGTERM)

	if got := pub.Commands(); len(got) != 1 || got[0] != "NEXTTRACK" {
		t.Errorf("commands after unlock: got %v, want [NEXTTRACK]", got)
	}
}

func TestRunPublishErrorKeepsRunning(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	h := newHarness(t, pub)

	h.press(5)
	h.press(5)
	h.stop(t, syscall.SIGTERM)

	if got := h.tracker.Snapshot().Counts.Short; got != 2 {
		t.Errorf("Counts.Short: got %d, want 2", got)
	}
	if got := pub.Systems(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Errorf("system events: got %v, want [SHUTDOWN]", got)
	}
}

func TestRunSleepAndWake(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := newHarness(t, pub)

	h.pins.Set(6, false)
	h.step(60)
	if got := pub.Commands(); len(got) != 0 {
		t.Fatalf("sleep must not fire while held, got %v", got)
	}

	h.pins.Set(6, true)
	h.pass()
	h.waitForSystem(t, "SLEEP")

	if len(h.pins.Wakes) != 1 || h.pins.Wakes[0] != 6 {
		t.Errorf("wakes: got %v, want [6]", h.pins.Wakes)
	}
	if !h.pins.Outputs[14] {
		t.Error("expected led parked while asleep")
	}

	h.woken <- struct{}{}
	h.waitForSystem(t, "WAKE")

	h.press(5)
	h.stop(t, syscall.SIGTERM)

	got := pub.Commands()
	if len(got) != 2 || got[0] != "SLEEPMODE" || got[1] != "NEXTTRACK" {
		t.Errorf("commands: got %v, want [SLEEPMODE NEXTTRACK]", got)
	}
	systems := pub.Systems()
	want := []string{"SLEEP", "WAKE", "SHUTDOWN"}
	if strings.Join(systems, ",") != strings.Join(want, ",") {
		t.Errorf("system events: got %v, want %v", systems, want)
	}
	if !h.pins.Levels[13] {
		t.Error("expected power restored after wake")
	}
}

func TestRunSignalWhileAsleep(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := newHarness(t, pub)

	h.pins.Set(6, false)
	h.step(60)
	h.pins.Set(6, true)
	h.pass()
	h.waitForSystem(t, "SLEEP")

	h.stop(t, syscall.SIGINT)

	systems := pub.Systems()
	if len(systems) != 2 || systems[1] != "SHUTDOWN" {
		t.Fatalf("system events: got %v, want [SLEEP SHUTDOWN]", systems)
	}
	if pub.SystemEvents[1].Reason != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", pub.SystemEvents[1].Reason)
	}
	if len(h.pins.Wakes) != 1 {
		t.Errorf("expected board parked once, wakes %v", h.pins.Wakes)
	}
}

func TestRunSleepWithoutWakeSource(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := startHarness(t, pub, nil)

	h.pins.Set(6, false)
	h.step(60)
	h.pins.Set(6, true)
	h.step(1)

	// A blocked sleep would stall these passes.
	h.press(5)
	if len(h.sleeps) != 0 {
		t.Error("sleep request not consumed")
	}
	h.stop(t, syscall.SIGTERM)

	got := pub.Commands()
	if len(got) != 2 || got[0] != "SLEEPMODE" || got[1] != "NEXTTRACK" {
		t.Errorf("commands: got %v, want [SLEEPMODE NEXTTRACK]", got)
	}
	if systems := pub.Systems(); len(systems) != 1 || systems[0] != "SHUTDOWN" {
		t.Errorf("system events: got %v, want [SHUTDOWN]", systems)
	}
	if len(h.pins.Wakes) != 1 {
		t.Errorf("expected board parked only at shutdown, wakes %v", h.pins.Wakes)
	}
}
