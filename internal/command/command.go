// Package command defines the discrete player command codes emitted by the
// button pipeline. Codes are opaque to the pipeline except for the sleep and
// volume classes, which change how long presses resolve.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Command is a discrete command code handed to the command executor.
type Command uint8

const (
	Nothing Command = 0

	// Settings
	LockButtons           Command = 100
	SleepTimer15          Command = 101
	SleepTimer30          Command = 102
	SleepTimer60          Command = 103
	SleepTimer120         Command = 104
	SleepAfterEndOfTrack  Command = 105
	SleepAfterEndOfList   Command = 106
	SleepAfter5Tracks     Command = 107
	RepeatPlaylist        Command = 110
	RepeatTrack           Command = 111
	DimLEDsNightMode      Command = 120
	ToggleWifi            Command = 130
	ToggleBluetoothSink   Command = 140
	ToggleBluetoothSource Command = 141
	ToggleMode            Command = 142
	EnableFTPServer       Command = 150
	TellIPAddress         Command = 151
	TellCurrentTime       Command = 152

	// Player
	PlayPause      Command = 170
	PrevTrack      Command = 171
	NextTrack      Command = 172
	FirstTrack     Command = 173
	LastTrack      Command = 174
	VolumeInit     Command = 175
	VolumeUp       Command = 176
	VolumeDown     Command = 177
	MeasureBattery Command = 178
	SleepMode      Command = 179
	SeekForwards   Command = 180
	SeekBackwards  Command = 181
	Stop           Command = 182
	RestartSystem  Command = 183

	buttonBase Command = 200
	// MaxButtonID is the highest button index with passthrough commands.
	MaxButtonID = 8
)

var names = map[Command]string{
	Nothing:               "NOTHING",
	LockButtons:           "LOCK_BUTTONS",
	SleepTimer15:          "SLEEP_TIMER_15",
	SleepTimer30:          "SLEEP_TIMER_30",
	SleepTimer60:          "SLEEP_TIMER_60",
	SleepTimer120:         "SLEEP_TIMER_120",
	SleepAfterEndOfTrack:  "SLEEP_AFTER_END_OF_TRACK",
	SleepAfterEndOfList:   "SLEEP_AFTER_END_OF_PLAYLIST",
	SleepAfter5Tracks:     "SLEEP_AFTER_5_TRACKS",
	RepeatPlaylist:        "REPEAT_PLAYLIST",
	RepeatTrack:           "REPEAT_TRACK",
	DimLEDsNightMode:      "DIMM_LEDS_NIGHTMODE",
	ToggleWifi:            "TOGGLE_WIFI_STATUS",
	ToggleBluetoothSink:   "TOGGLE_BLUETOOTH_SINK_MODE",
	ToggleBluetoothSource: "TOGGLE_BLUETOOTH_SOURCE_MODE",
	ToggleMode:            "TOGGLE_MODE",
	EnableFTPServer:       "ENABLE_FTP_SERVER",
	TellIPAddress:         "TELL_IP_ADDRESS",
	TellCurrentTime:       "TELL_CURRENT_TIME",
	PlayPause:             "PLAYPAUSE",
	PrevTrack:             "PREVTRACK",
	NextTrack:             "NEXTTRACK",
	FirstTrack:            "FIRSTTRACK",
	LastTrack:             "LASTTRACK",
	VolumeInit:            "VOLUMEINIT",
	VolumeUp:              "VOLUMEUP",
	VolumeDown:            "VOLUMEDOWN",
	MeasureBattery:        "MEASUREBATTERY",
	SleepMode:             "SLEEPMODE",
	SeekForwards:          "SEEK_FORWARDS",
	SeekBackwards:         "SEEK_BACKWARDS",
	Stop:                  "STOP",
	RestartSystem:         "RESTARTSYSTEM",
}

var byName map[string]Command

func init() {
	byName = make(map[string]Command, len(names)+2*(MaxButtonID+1))
	for c, n := range names {
		byName[n] = c
	}
	for i := 0; i <= MaxButtonID; i++ {
		byName[ButtonShort(i).String()] = ButtonShort(i)
		byName[ButtonLong(i).String()] = ButtonLong(i)
	}
}

// ButtonShort returns the passthrough command for a short press of button i.
func ButtonShort(i int) Command {
	return buttonBase + Command(2*i)
}

// ButtonLong returns the passthrough command for a long press of button i.
func ButtonLong(i int) Command {
	return buttonBase + Command(2*i+1)
}

// IsSleep reports whether c puts the device into deep sleep.
func (c Command) IsSleep() bool {
	return c == SleepMode
}

// IsVolume reports whether c is a repeating volume step.
func (c Command) IsVolume() bool {
	return c == VolumeUp || c == VolumeDown
}

func (c Command) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	if c >= buttonBase && c <= ButtonLong(MaxButtonID) {
		id := int(c-buttonBase) / 2
		if (c-buttonBase)%2 == 0 {
			return fmt.Sprintf("BUTTON_%d_SHORT", id)
		}
		return fmt.Sprintf("BUTTON_%d_LONG", id)
	}
	return "CMD_" + strconv.Itoa(int(c))
}

// Parse accepts a command name (case-insensitive, optional CMD_ prefix) or a
// decimal code.
func Parse(s string) (Command, error) {
	s = strings.TrimSpace(s)
	key := strings.TrimPrefix(strings.ToUpper(s), "CMD_")
	if n, err := strconv.ParseUint(key, 10, 8); err == nil {
		return Command(n), nil
	}
	if c, ok := byName[key]; ok {
		return c, nil
	}
	return Nothing, fmt.Errorf("unknown command %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalYAML lets board files use either names or numeric codes.
func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: command must be a scalar", value.Line)
	}
	v, err := Parse(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = v
	return nil
}
