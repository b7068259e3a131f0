// Package mqtt publishes emitted commands and lifecycle events to an MQTT
// broker, and receives the controls lock.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/soundbox-buttons/internal/input"
)

// TopicCommands is the MQTT topic for emitted commands.
const TopicCommands = "soundbox/buttons/commands"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "soundbox/buttons/system"

// TopicLock carries the controls lock: ON locks, OFF unlocks.
const TopicLock = "soundbox/buttons/lock"

// Publisher publishes commands and lifecycle events.
type Publisher interface {
	// Publish sends an emitted command to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(ev input.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Executor hands emitted commands to a Publisher.
type Executor struct {
	Publisher Publisher
}

// Execute implements input.Executor.
func (e Executor) Execute(ev input.Event) error {
	return e.Publisher.Publish(ev)
}

// SystemEvent is a lifecycle event such as STARTUP or SHUTDOWN.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the JSON body of a command message.
type Payload struct {
	Command CommandPayload `json:"command"`
}

// CommandPayload describes one emitted command.
type CommandPayload struct {
	Timestamp string   `json:"timestamp"`
	Code      uint8    `json:"code"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Buttons   []string `json:"buttons"`
}

// FormatPayload creates the JSON payload for an emitted command.
func FormatPayload(ev input.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Command: CommandPayload{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Code:      uint8(ev.Command),
			Name:      ev.Command.String(),
			Kind:      string(ev.Kind),
			Buttons:   ev.Buttons,
		},
	})
}

// SystemPayload is the body of simple system events (OFFLINE, RECONNECTED)
// that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// ParseLock decodes a lock message.
func ParseLock(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1", "LOCK":
		return true, nil
	case "OFF", "FALSE", "0", "UNLOCK":
		return false, nil
	}
	return false, fmt.Errorf("invalid lock payload %q", payload)
}
