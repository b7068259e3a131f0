package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/soundbox-buttons/internal/input"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 64

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int

	// OnLock, if set, receives lock changes from TopicLock.
	OnLock func(locked bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	onLock func(bool)
	log    logrus.FieldLogger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. A broker that
// is unreachable at startup is not an error; the client keeps retrying and
// messages are buffered meanwhile.
func NewRealPublisher(opts Options, log logrus.FieldLogger) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "soundbox-buttons"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	log = log.WithFields(logrus.Fields{"component": "mqtt", "broker": opts.Broker})

	p := &RealPublisher{
		onLock: opts.OnLock,
		log:    log,
		buf:    newRingBuffer(opts.BufferSize, log),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("connection lost")
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn("broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Info("connected")

	if p.onLock != nil {
		c.Subscribe(TopicLock, 1, func(_ paho.Client, m paho.Message) {
			locked, err := ParseLock(m.Payload())
			if err != nil {
				p.log.WithError(err).Warn("ignoring lock message")
				return
			}
			p.onLock(locked)
		})
	}

	p.mu.Lock()
	pending := p.buf.drain()
	p.mu.Unlock()
	if len(pending) > 0 {
		p.log.WithField("count", len(pending)).Info("replaying buffered messages")
	}
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Publish sends an emitted command to the broker.
func (p *RealPublisher) Publish(ev input.Event) error {
	payload, err := FormatPayload(ev)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicCommands, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish hands m to the client without waiting for the broker. The
// acknowledgement is awaited on its own goroutine so a slow broker never
// stalls button sampling.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.buffer(m)
		return nil
	}
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	go p.await(token, m)
	return nil
}

// await logs the outcome of an in-flight publish. A message the client
// rejected is buffered again for the next reconnect; one still unacknowledged
// after publishTimeout is left to the client.
func (p *RealPublisher) await(token paho.Token, m bufferedMsg) {
	log := p.log.WithField("topic", m.topic)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		log.Warn("publish not acknowledged")
		return
	}
	if err := token.Error(); err != nil {
		log.WithError(err).Error("publish failed, buffering")
		p.buffer(m)
	}
}

func (p *RealPublisher) buffer(m bufferedMsg) {
	p.mu.Lock()
	p.buf.push(m)
	p.mu.Unlock()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns how many messages wait for the connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
