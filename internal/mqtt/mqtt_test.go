package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/input"
	"github.com/sweeney/soundbox-buttons/internal/logic"
)

func sampleEvent() input.Event {
	return input.Event{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Command:   command.VolumeUp,
		Kind:      logic.KindRepeat,
		Buttons:   []string{"volume_up"},
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	data, err := FormatPayload(sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"command":{"timestamp":"2026-03-01T12:00:00Z","code":176,"name":"VOLUMEUP","kind":"REPEAT","buttons":["volume_up"]}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestFormatPayloadChord(t *testing.T) {
	ev := input.Event{
		Timestamp: time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600)),
		Command:   command.ToggleWifi,
		Kind:      logic.KindChord,
		Buttons:   []string{"next", "previous"},
	}
	data, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Command.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", p.Command.Timestamp)
	}
	if p.Command.Name != "TOGGLE_WIFI_STATUS" || p.Command.Kind != "CHORD" {
		t.Errorf("unexpected payload: %+v", p.Command)
	}
	if len(p.Command.Buttons) != 2 {
		t.Errorf("expected 2 buttons, got %v", p.Command.Buttons)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	data, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-03-01T12:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	data, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Unix(0, 0), Event: "OFFLINE"})
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	data, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(raw) {
		t.Errorf("expected raw payload, got %s", data)
	}
}

func TestParseLock(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"ON", true, false},
		{"on\n", true, false},
		{"true", true, false},
		{"1", true, false},
		{"OFF", false, false},
		{"false", false, false},
		{"unlock", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := ParseLock([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLock(%q): unexpected error state %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLock(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestExecutorPublishes(t *testing.T) {
	f := NewFakePublisher()
	var exec input.Executor = Executor{Publisher: f}

	if err := exec.Execute(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Commands(); len(got) != 1 || got[0] != "VOLUMEUP" {
		t.Errorf("expected [VOLUMEUP], got %v", got)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated system error")

	if err := f.Publish(sampleEvent()); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected system publish error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherSystemAndClose(t *testing.T) {
	f := NewFakePublisher()
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("expected retained STARTUP, got %+v", f.SystemEvents)
	}
	if f.IsConnected() {
		t.Error("fake should start disconnected")
	}
	f.Close()
	if !f.Closed {
		t.Error("expected Closed after Close")
	}
}
