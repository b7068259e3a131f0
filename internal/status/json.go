package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string        `json:"event,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Locked         bool          `json:"locked"`
	ShutdownButton string        `json:"shutdown_button,omitempty"`
	Buttons        []ButtonJSON  `json:"buttons"`
	LastCommand    *CommandJSON  `json:"last_command,omitempty"`
	Counts         CountsJSON    `json:"command_counts"`
	Expander       *ExpanderJSON `json:"expander,omitempty"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	StartTime      string        `json:"start_time"`
	Timestamp      string        `json:"timestamp"`
	MQTT           MQTTStatus    `json:"mqtt"`
	Config         ConfigJSON    `json:"config"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Name    string `json:"name"`
	Channel uint8  `json:"channel"`
	Enabled bool   `json:"enabled"`
	Pressed bool   `json:"pressed"`
}

// CommandJSON is the JSON representation of the last emitted command.
type CommandJSON struct {
	Timestamp string   `json:"timestamp"`
	Name      string   `json:"name"`
	Code      uint8    `json:"code"`
	Kind      string   `json:"kind"`
	Buttons   []string `json:"buttons"`
}

// CountsJSON is the JSON representation of command counts.
type CountsJSON struct {
	Short  int `json:"short"`
	Long   int `json:"long"`
	Repeat int `json:"repeat"`
	Chord  int `json:"chord"`
}

// ExpanderJSON reports the cached expander registers as hex words.
type ExpanderJSON struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs    int64  `json:"sample_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	LongPressMs int64  `json:"long_press_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Board       string `json:"board"`
	GPIO        string `json:"gpio"`
}

func hexWord(b [2]uint8) string {
	return fmt.Sprintf("%02x%02x", b[1], b[0])
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Locked:        snap.Input.Locked,
		Buttons:       make([]ButtonJSON, len(snap.Input.Buttons)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Short:  snap.Counts.Short,
			Long:   snap.Counts.Long,
			Repeat: snap.Counts.Repeat,
			Chord:  snap.Counts.Chord,
		},
		Config: ConfigJSON{
			SampleMs:    snap.Config.SampleMs,
			DebounceMs:  snap.Config.DebounceMs,
			LongPressMs: snap.Config.LongPressMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Board:       snap.Config.Board,
			GPIO:        snap.Config.GPIO,
		},
	}

	for i, b := range snap.Input.Buttons {
		inner.Buttons[i] = ButtonJSON{
			Name:    b.Name,
			Channel: uint8(b.Channel),
			Enabled: b.Enabled,
			Pressed: b.Pressed,
		}
	}
	if i := snap.Input.ShutdownButton; i >= 0 && i < len(snap.Input.Buttons) {
		inner.ShutdownButton = snap.Input.Buttons[i].Name
	}
	if ev := snap.LastEvent; ev != nil {
		inner.LastCommand = &CommandJSON{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Name:      ev.Command.String(),
			Code:      uint8(ev.Command),
			Kind:      string(ev.Kind),
			Buttons:   ev.Buttons,
		}
	}
	if snap.Input.Expander {
		inner.Expander = &ExpanderJSON{
			Input:  hexWord(snap.Input.ExpanderIn),
			Output: hexWord(snap.Input.ExpanderOut),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
