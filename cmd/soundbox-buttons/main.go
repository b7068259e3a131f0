// Command soundbox-buttons samples the soundbox front buttons and publishes
// the resulting player commands to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/soundbox-buttons/internal/config"
	"github.com/sweeney/soundbox-buttons/internal/gpio"
	"github.com/sweeney/soundbox-buttons/internal/input"
	"github.com/sweeney/soundbox-buttons/internal/mqtt"
	"github.com/sweeney/soundbox-buttons/internal/port"
	"github.com/sweeney/soundbox-buttons/internal/status"
	"github.com/sweeney/soundbox-buttons/internal/tick"
	"github.com/sweeney/soundbox-buttons/internal/web"
)

type options struct {
	configPath string
	loop       time.Duration
	broker     string
	httpAddr   string
	backend    string
	chip       string
	i2cBus     string
	printState bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML board file (empty for the built-in soundbox board)")
	flag.DurationVar(&opts.loop, "loop", 5*time.Millisecond, "Consumer loop period")
	flag.StringVar(&opts.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&opts.backend, "gpio", "cdev", "GPIO backend: cdev or rpio")
	flag.StringVar(&opts.chip, "gpio-chip", "gpiochip0", "GPIO character device (cdev backend)")
	flag.StringVar(&opts.i2cBus, "i2c-bus", "", "I2C bus name or number (empty for the first bus)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "Log to this file with rotation (empty for stderr)")
	flag.BoolVar(&opts.printState, "print-state", false, "Print current button levels and exit")

	flag.Parse()

	log, err := newLogger(*logLevel, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := run(opts, log); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}

func newLogger(level, file string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if file != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log, nil
}

func openPins(backend, chip string) (gpio.Pins, <-chan struct{}, error) {
	switch backend {
	case "cdev":
		p, err := gpio.NewCdevPins(chip)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Woken(), nil
	case "rpio":
		p, err := gpio.NewRpioPins()
		if err != nil {
			return nil, nil, err
		}
		return p, p.Woken(), nil
	}
	return nil, nil, fmt.Errorf("unknown gpio backend %q", backend)
}

// openExpander returns nil, and the port runs GPIO-only, when the board has
// no expander or no I2C bus can be opened.
func openExpander(cfg *config.Config, busName string, log logrus.FieldLogger) (*port.Expander, io.Closer) {
	if !cfg.Expander.Enabled {
		return nil, nil
	}
	if _, err := host.Init(); err != nil {
		log.WithError(err).Error("init i2c host drivers")
		return nil, nil
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		log.WithError(err).WithField("bus", busName).Error("open i2c bus")
		return nil, nil
	}
	return port.NewExpander(bus, cfg.Expander.Address, log.WithField("component", "expander")), bus
}

func boardName(path string) string {
	if path == "" {
		return "soundbox"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func run(opts options, log *logrus.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pins, woken, err := openPins(opts.backend, opts.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	exp, bus := openExpander(&cfg, opts.i2cBus, log)
	if bus != nil {
		defer bus.Close()
	}
	p := port.New(pins, exp, port.Options{MaxGPIO: cfg.MaxGPIO, Amplifiers: cfg.Amplifiers()}, log.WithField("component", "port"))

	if opts.printState {
		defer pins.Close()
		if err := p.Init(cfg.PortOutputs()); err != nil {
			return fmt.Errorf("init port: %w", err)
		}
		printState(os.Stdout, &cfg, p)
		return nil
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:    cfg.SamplePeriod.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		LongPressMs: cfg.LongPress.Milliseconds(),
		Broker:      opts.broker,
		HTTPPort:    opts.httpAddr,
		Board:       boardName(opts.configPath),
		GPIO:        opts.backend,
	})

	locks := make(chan bool, 1)
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker: opts.broker,
		OnLock: func(locked bool) {
			select {
			case locks <- locked:
			default:
				log.WithField("locked", locked).Warn("lock change dropped")
			}
		},
	}, log)
	if err != nil {
		pins.Close()
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	clock := clockwork.NewRealClock()
	sample := &tick.Signal{}
	sleeps := make(chan struct{}, 1)
	ctrl := input.New(&cfg, p, sample, tick.NewClock(clock),
		input.Executors{tracker, mqtt.Executor{Publisher: publisher}, sleepRequest(sleeps)},
		log)
	if err := ctrl.Init(); err != nil {
		pins.Close()
		return fmt.Errorf("init buttons: %w", err)
	}
	tracker.Update(ctrl.Snapshot())

	d := &daemon{
		ctrl:    ctrl,
		pins:    pins,
		wake:    cfg.WakeChannel,
		pub:     publisher,
		conn:    publisher,
		tracker: tracker,
		log:     log.WithField("component", "daemon"),
	}
	d.publishSystem("STARTUP", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("http server error")
			}
		}()
		log.WithField("addr", opts.httpAddr).Info("http status server listening")
	}
	sampler := tick.NewSampler(clock, cfg.SamplePeriod, sample)
	go sampler.Run(ctx)

	log.WithFields(logrus.Fields{
		"sample":     cfg.SamplePeriod,
		"debounce":   cfg.Debounce,
		"long_press": cfg.LongPress,
		"loop":       opts.loop,
		"broker":     opts.broker,
		"gpio":       opts.backend,
	}).Info("started")

	ticker := time.NewTicker(opts.loop)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Lines stay as parked by Shutdown; the kernel releases them on exit.
	return d.run(ticker.C, sigCh, locks, sleeps, woken)
}

// sleepRequest turns an emitted sleep command into a request on the channel.
type sleepRequest chan<- struct{}

// Execute implements input.Executor.
func (s sleepRequest) Execute(ev input.Event) error {
	if !ev.Command.IsSleep() {
		return nil
	}
	select {
	case s <- struct{}{}:
	default:
	}
	return nil
}

// daemon owns the consumer goroutine: every pipeline pass, the controls
// lock, sleep and shutdown happen on it.
type daemon struct {
	ctrl    *input.Controller
	pins    input.WakeRegistrar
	wake    port.Channel
	pub     mqtt.Publisher
	conn    mqtt.ConnectionStatus
	tracker *status.Tracker
	log     logrus.FieldLogger
}

func (d *daemon) run(tick <-chan time.Time, sig <-chan os.Signal, locks <-chan bool, sleeps <-chan struct{}, woken <-chan struct{}) error {
	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.log.WithField("signal", reason).Info("shutting down")
			d.park()
			d.publishSystem("SHUTDOWN", reason)
			return nil

		case locked := <-locks:
			d.ctrl.SetLocked(locked)

		case <-sleeps:
			if s, ok := d.sleep(sig, woken); !ok {
				reason := signalName(s)
				d.log.WithField("signal", reason).Info("shutting down while asleep")
				d.publishSystem("SHUTDOWN", reason)
				return nil
			}

		case <-tick:
			d.ctrl.Cyclic()
			d.tracker.Update(d.ctrl.Snapshot())
			if d.conn != nil {
				d.tracker.SetMQTTConnected(d.conn.IsConnected())
			}
		}
	}
}

// park leaves the outputs in their sleep state and arms the wake line.
func (d *daemon) park() {
	m, err := d.ctrl.Shutdown()
	if err == nil {
		d.log.WithFields(logrus.Fields{
			"io":    fmt.Sprintf("0x%04x", m.IO),
			"state": fmt.Sprintf("0x%04x", m.State),
		}).Info("outputs parked")
	}
	if d.wake != port.Disabled {
		d.ctrl.RegisterWake(d.pins, d.wake)
	}
	d.tracker.Update(d.ctrl.Snapshot())
}

// sleep parks the board and blocks until the wake line falls or a signal
// arrives. It reports false, with the signal, if the daemon should exit.
// Without a wake source the request is refused and the board stays awake.
func (d *daemon) sleep(sig <-chan os.Signal, woken <-chan struct{}) (os.Signal, bool) {
	if woken == nil || d.wake == port.Disabled {
		d.log.WithField("wake_channel", d.wake).Warn("no wake source, ignoring sleep request")
		return nil, true
	}
	d.log.Info("going to sleep")
	d.park()
	d.publishSystem("SLEEP", "")

	select {
	case s := <-sig:
		return s, false
	case <-woken:
	}

	d.log.Info("woken")
	if err := d.ctrl.Init(); err != nil {
		d.log.WithError(err).Error("reinit after wake")
	}
	d.tracker.Update(d.ctrl.Snapshot())
	d.publishSystem("WAKE", "")
	return nil, true
}

func (d *daemon) publishSystem(event, reason string) {
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	log := d.log.WithField("event", event)
	if err := d.pub.PublishSystem(ev); err != nil {
		log.WithError(err).Error("failed to publish system event")
		return
	}
	log.Info("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printState writes one line per button with its live level.
func printState(w io.Writer, cfg *config.Config, p *port.Port) {
	for _, b := range cfg.Buttons {
		if p.Kind(b.Channel) == port.KindInvalid {
			fmt.Fprintf(w, "%s (%v): disabled\n", b.Name, b.Channel)
			continue
		}
		if err := p.ConfigureInput(b.Channel, b.ActiveHigh); err != nil {
			fmt.Fprintf(w, "%s (%v): %v\n", b.Name, b.Channel, err)
			continue
		}
		state := "released"
		if p.Read(b.Channel) == b.ActiveHigh {
			state = "pressed"
		}
		fmt.Fprintf(w, "%s (%v): %s\n", b.Name, b.Channel, state)
	}
}
