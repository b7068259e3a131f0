package gpio

import (
	"errors"
	"testing"
)

func TestFakePinsDefaultHigh(t *testing.T) {
	f := NewFakePins()

	v, err := f.Read(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Error("unconfigured pin should read high")
	}
}

func TestFakePinsOutput(t *testing.T) {
	f := NewFakePins()

	if err := f.Output(13, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Outputs[13] {
		t.Error("pin 13 should be an output")
	}
	if err := f.Write(13, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := f.Read(13)
	if v {
		t.Error("expected low after Write(false)")
	}

	f.Input(13, PullUp)
	if f.Outputs[13] {
		t.Error("pin 13 should no longer be an output")
	}
	if f.Pulls[13] != PullUp {
		t.Errorf("expected PullUp, got %v", f.Pulls[13])
	}
}

func TestFakePinsReadError(t *testing.T) {
	f := NewFakePins()
	f.ReadError = errors.New("simulated error")

	v, err := f.Read(1)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if !v {
		t.Error("failed read should report high")
	}
}

func TestFakePinsWatch(t *testing.T) {
	f := NewFakePins()
	calls := 0
	var lastLow bool
	if err := f.Watch(36, func(low bool) { calls++; lastLow = low }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Fall(36)
	if calls != 1 {
		t.Errorf("expected 1 handler call, got %d", calls)
	}
	if !lastLow {
		t.Error("falling edge should report low")
	}
	v, _ := f.Read(36)
	if v {
		t.Error("line should be low after Fall")
	}

	f.Bounce(36)
	if calls != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls)
	}
	if lastLow {
		t.Error("bounce should report high")
	}

	// Lines without a watch just change level.
	f.Fall(5)
	if calls != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls)
	}
}

func TestFakePinsWatchError(t *testing.T) {
	f := NewFakePins()
	f.WatchError = ErrWatchUnsupported

	err := f.Watch(36, func(bool) {})
	if !errors.Is(err, ErrWatchUnsupported) {
		t.Errorf("expected ErrWatchUnsupported, got %v", err)
	}
}

func TestFakePinsClose(t *testing.T) {
	f := NewFakePins()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
