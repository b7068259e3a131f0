// Package config loads the board description: which buttons exist, where they
// are wired, what they do, and which outputs the port drives.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/logic"
	"github.com/sweeney/soundbox-buttons/internal/port"
)

//go:embed soundbox.yaml
var soundbox []byte

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid board config")

// Role tags an output channel.
type Role string

const (
	RoleAmplifier       Role = "amplifier"
	RolePower           Role = "power"
	RoleLED             Role = "led"
	RoleHeadphoneDetect Role = "headphone_detect"
)

// Config is a board description.
type Config struct {
	MaxGPIO         port.Channel  `yaml:"max_gpio"`
	SamplePeriod    time.Duration `yaml:"sample_period"`
	Debounce        time.Duration `yaml:"debounce"`
	LongPress       time.Duration `yaml:"long_press"`
	Expander        Expander      `yaml:"expander"`
	WakeChannel     port.Channel  `yaml:"wake_channel"`
	Buttons         []Button      `yaml:"buttons"`
	Chords          []Chord       `yaml:"chords"`
	Outputs         []Output      `yaml:"outputs"`
	ShutdownOutputs []Output      `yaml:"shutdown_outputs"`
}

// Expander describes the I2C port expander.
type Expander struct {
	Enabled bool   `yaml:"enabled"`
	Address uint16 `yaml:"address"`
	// Interrupt is the GPIO wired to the expander's INT pin. Disabled
	// means the expander is polled every sample.
	Interrupt port.Channel `yaml:"interrupt"`
}

// Button is one button slot.
type Button struct {
	Name       string          `yaml:"name"`
	Channel    port.Channel    `yaml:"channel"`
	ActiveHigh bool            `yaml:"active_high"`
	Short      command.Command `yaml:"short"`
	Long       command.Command `yaml:"long"`
}

// Chord maps a pair of button indexes to a command.
type Chord struct {
	Buttons [2]int          `yaml:"buttons"`
	Command command.Command `yaml:"command"`
}

// Output is a channel driven by the port.
type Output struct {
	Name    string       `yaml:"name"`
	Channel port.Channel `yaml:"channel"`
	Invert  bool         `yaml:"invert"`
	Role    Role         `yaml:"role"`
}

func base() Config {
	return Config{
		MaxGPIO:      port.DefaultMaxGPIO,
		SamplePeriod: 10 * time.Millisecond,
		Debounce:     50 * time.Millisecond,
		LongPress:    700 * time.Millisecond,
		Expander: Expander{
			Address:   port.DefaultAddress,
			Interrupt: port.Disabled,
		},
		WakeChannel: port.Disabled,
	}
}

// Default returns the soundbox board.
func Default() Config {
	c, err := Parse(soundbox)
	if err != nil {
		panic(fmt.Sprintf("built-in board config: %v", err))
	}
	return c
}

// Load reads a board file. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read board config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a board file. Keys that are not set keep
// their built-in defaults; unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	c := base()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks timing, chord indexes and output names.
func (c *Config) Validate() error {
	if c.MaxGPIO >= port.Disabled {
		return fmt.Errorf("%w: max_gpio %d overlaps reserved channels", ErrInvalid, c.MaxGPIO)
	}
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("%w: sample_period must be positive", ErrInvalid)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative", ErrInvalid)
	}
	if c.LongPress < time.Millisecond {
		return fmt.Errorf("%w: long_press must be at least 1ms", ErrInvalid)
	}

	seen := make(map[logic.Pair]bool, len(c.Chords))
	for i, ch := range c.Chords {
		a, b := ch.Buttons[0], ch.Buttons[1]
		if a < 0 || b < 0 || a >= len(c.Buttons) || b >= len(c.Buttons) {
			return fmt.Errorf("%w: chord %d: button index out of range", ErrInvalid, i)
		}
		if a == b {
			return fmt.Errorf("%w: chord %d: buttons must differ", ErrInvalid, i)
		}
		p := logic.NewPair(a, b)
		if seen[p] {
			return fmt.Errorf("%w: chord %d: duplicate pair %d,%d", ErrInvalid, i, p.A, p.B)
		}
		seen[p] = true
	}

	for _, set := range [][]Output{c.Outputs, c.ShutdownOutputs} {
		names := make(map[string]bool, len(set))
		for i, o := range set {
			if o.Name == "" {
				return fmt.Errorf("%w: output %d has no name", ErrInvalid, i)
			}
			if names[o.Name] {
				return fmt.Errorf("%w: duplicate output %q", ErrInvalid, o.Name)
			}
			names[o.Name] = true
		}
	}
	return nil
}

// LogicButtons returns the button set description. Buttons on channels
// this board cannot read are disabled.
func (c *Config) LogicButtons() []logic.Button {
	out := make([]logic.Button, len(c.Buttons))
	for i, b := range c.Buttons {
		out[i] = logic.Button{
			Name:    b.Name,
			Enabled: c.Readable(b.Channel),
			Short:   b.Short,
			Long:    b.Long,
		}
	}
	return out
}

// Readable reports whether ch can be read on this board.
func (c *Config) Readable(ch port.Channel) bool {
	switch ch.Kind(c.MaxGPIO) {
	case port.KindGPIO:
		return true
	case port.KindExpander:
		return c.Expander.Enabled
	}
	return false
}

// ChordTable returns the chords as a lookup table.
func (c *Config) ChordTable() logic.Chords {
	t := make(logic.Chords, len(c.Chords))
	for _, ch := range c.Chords {
		t[logic.NewPair(ch.Buttons[0], ch.Buttons[1])] = ch.Command
	}
	return t
}

// PortOutputs returns the outputs driven at startup.
func (c *Config) PortOutputs() []port.Output {
	return portOutputs(c.Outputs)
}

// PortShutdownOutputs returns the outputs driven before deep sleep.
func (c *Config) PortShutdownOutputs() []port.Output {
	return portOutputs(c.ShutdownOutputs)
}

// Amplifiers returns the amplifier enable channels by name.
func (c *Config) Amplifiers() map[port.Channel]string {
	m := make(map[port.Channel]string)
	for _, o := range c.Outputs {
		if o.Role == RoleAmplifier {
			m[o.Channel] = o.Name
		}
	}
	return m
}

func portOutputs(in []Output) []port.Output {
	out := make([]port.Output, len(in))
	for i, o := range in {
		out[i] = port.Output{Name: o.Name, Channel: o.Channel, Invert: o.Invert}
	}
	return out
}
