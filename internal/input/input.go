// Package input drives the button pipeline: sample, classify, dispatch,
// execute. Controller.Cyclic is the single entry point called by the
// consumer goroutine.
package input

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/soundbox-buttons/internal/command"
	"github.com/sweeney/soundbox-buttons/internal/config"
	"github.com/sweeney/soundbox-buttons/internal/logic"
	"github.com/sweeney/soundbox-buttons/internal/port"
	"github.com/sweeney/soundbox-buttons/internal/tick"
)

// Event is a command emitted by the pipeline, with the buttons that
// produced it.
type Event struct {
	Timestamp time.Time
	Command   command.Command
	Kind      logic.Kind
	Buttons   []string
}

// Executor carries out emitted commands.
type Executor interface {
	Execute(ev Event) error
}

// Executors fans an event out to several executors in order.
type Executors []Executor

// Execute runs every executor and joins their errors.
func (es Executors) Execute(ev Event) error {
	var errs []error
	for _, e := range es {
		if err := e.Execute(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WakeRegistrar arms a GPIO line as a deep-sleep wake source.
type WakeRegistrar interface {
	EnableWake(pin int) error
}

// ButtonStatus is the externally visible state of one button.
type ButtonStatus struct {
	Name    string
	Channel port.Channel
	Enabled bool
	Pressed bool
}

// Snapshot is a copy of the pipeline state for diagnostics.
type Snapshot struct {
	Buttons        []ButtonStatus
	Locked         bool
	ShutdownButton int
	Expander       bool
	ExpanderIn     [2]uint8
	ExpanderOut    [2]uint8
}

// Controller owns the button set and runs one pipeline pass per call.
// Everything except SetLocked and Locked must be called from one goroutine.
type Controller struct {
	cfg        *config.Config
	port       *port.Port
	set        *logic.Set
	classifier *logic.Classifier
	dispatcher *logic.Dispatcher
	signal     *tick.Signal
	millis     *tick.Clock
	now        func() time.Time
	exec       Executor
	locked     atomic.Bool
	log        logrus.FieldLogger
}

// New creates a controller for the board described by cfg. signal is given
// by the sampler; millis timestamps button edges.
func New(cfg *config.Config, p *port.Port, signal *tick.Signal, millis *tick.Clock, exec Executor, log logrus.FieldLogger) *Controller {
	return &Controller{
		cfg:        cfg,
		port:       p,
		set:        logic.NewSet(cfg.LogicButtons()),
		classifier: logic.NewClassifier(cfg.Debounce),
		dispatcher: logic.NewDispatcher(cfg.LongPress, cfg.ChordTable()),
		signal:     signal,
		millis:     millis,
		now:        time.Now,
		exec:       exec,
		log:        log.WithField("component", "input"),
	}
}

// Init drives the startup outputs, brings up the expander and configures
// every button input. A missing expander or interrupt line is not fatal.
func (c *Controller) Init() error {
	if err := c.port.Init(c.cfg.PortOutputs()); err != nil {
		return err
	}

	for i, b := range c.cfg.Buttons {
		if !c.set.At(i).Enabled {
			c.log.WithField("button", b.Name).Debug("button disabled")
			continue
		}
		if err := c.port.ConfigureInput(b.Channel, b.ActiveHigh); err != nil {
			c.log.WithError(err).WithField("button", b.Name).Error("configure button input")
		}
	}

	if c.cfg.Expander.Enabled && c.cfg.Expander.Interrupt != port.Disabled {
		if err := c.port.EnableInterrupt(c.cfg.Expander.Interrupt); err != nil {
			c.log.WithError(err).Warn("expander interrupt unavailable, polling instead")
		}
	}

	if i := c.set.ShutdownButton(); i >= 0 {
		c.log.WithField("button", c.cfg.Buttons[i].Name).Info("shutdown button")
	}
	return nil
}

// SetLocked enables or disables the controls lock. While locked, buttons
// are neither sampled nor dispatched; the expander keeps refreshing.
func (c *Controller) SetLocked(locked bool) {
	if c.locked.Swap(locked) != locked {
		c.log.WithField("locked", locked).Info("controls lock changed")
	}
}

// Locked reports whether the controls lock is on.
func (c *Controller) Locked() bool {
	return c.locked.Load()
}

// Cyclic runs one pipeline pass. Buttons are only sampled when the sampler
// has fired since the last pass; dispatch runs every pass.
func (c *Controller) Cyclic() {
	now := c.millis.Now()

	if c.signal.Take() {
		c.port.Refresh()
		if !c.Locked() {
			c.sample()
			c.classifier.Classify(c.set, now)
		}
	}

	if c.Locked() {
		return
	}
	a, ok := c.dispatcher.Dispatch(c.set, now)
	if !ok {
		return
	}
	c.emit(a)
}

func (c *Controller) sample() {
	for i, b := range c.cfg.Buttons {
		btn := c.set.At(i)
		if !btn.Enabled {
			continue
		}
		// true = not pressed, whatever the wiring.
		btn.CurrentState = c.port.Read(b.Channel) != b.ActiveHigh
	}
}

func (c *Controller) emit(a logic.Action) {
	ev := Event{
		Timestamp: c.now(),
		Command:   a.Command,
		Kind:      a.Kind,
		Buttons:   []string{c.set.At(a.Button).Name},
	}
	if a.Other >= 0 {
		ev.Buttons = append(ev.Buttons, c.set.At(a.Other).Name)
	}

	log := c.log.WithFields(logrus.Fields{
		"command": a.Command,
		"kind":    a.Kind,
		"button":  ev.Buttons,
	})
	log.Info("command")
	if c.exec == nil {
		return
	}
	if err := c.exec.Execute(ev); err != nil {
		log.WithError(err).Error("execute command")
	}
}

// Shutdown parks the outputs for deep sleep and clears any latched
// expander interrupt. Call it last, right before powering down.
func (c *Controller) Shutdown() (port.Masks, error) {
	m, err := c.port.Shutdown(c.cfg.PortShutdownOutputs())
	if err != nil {
		c.log.WithError(err).Error("port shutdown")
	}
	return m, err
}

// RegisterWake arms ch as the wake source. Only GPIO channels can wake the
// host; anything else, and any registrar failure, is logged and ignored.
func (c *Controller) RegisterWake(r WakeRegistrar, ch port.Channel) {
	log := c.log.WithField("channel", ch)
	if ch.Kind(c.cfg.MaxGPIO) != port.KindGPIO {
		log.Error("wake channel is not a gpio")
		return
	}
	if err := r.EnableWake(int(ch)); err != nil {
		log.WithError(err).Error("register wake source")
		return
	}
	log.Info("wake source registered")
}

// Snapshot copies the current pipeline state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Buttons:        make([]ButtonStatus, c.set.Len()),
		Locked:         c.Locked(),
		ShutdownButton: c.set.ShutdownButton(),
	}
	for i, b := range c.set.Snapshot() {
		s.Buttons[i] = ButtonStatus{
			Name:    b.Name,
			Channel: c.cfg.Buttons[i].Channel,
			Enabled: b.Enabled,
			Pressed: b.IsPressed,
		}
	}
	if exp := c.port.Expander(); exp != nil {
		s.Expander = true
		s.ExpanderIn = exp.Inputs()
		s.ExpanderOut = exp.Outputs()
	}
	return s
}
