package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/button-sensor/internal/action"
	"github.com/sweeney/button-sensor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string

	Topics Topics
	// ButtonName is included in gesture payloads.
	ButtonName string
	// BufferSize is the number of messages kept while disconnected.
	BufferSize int

	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	Logger *slog.Logger
	Clock  func() time.Time
}

func (o *Options) setDefaults() {
	if o.ClientID == "" {
		o.ClientID = "button-sensor"
	}
	if o.Topics == (Topics{}) {
		o.Topics = NewTopics(DefaultTopicPrefix)
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed after reconnecting.
type RealPublisher struct {
	client paho.Client
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	everUp    bool
	// replaying keeps new messages queued behind the buffer until it has
	// been flushed after a connect.
	replaying bool

	inflight sync.WaitGroup
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker is told to publish SHUTDOWN/MQTT_DISCONNECT on the system topic
// if the connection drops without a clean Close.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	opts.setDefaults()
	p := newPublisher(nil, opts)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: opts.Clock(),
		Event:     EventShutdown,
		Reason:    ReasonMQTTDisconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(opts.Topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		// With ConnectRetry the client keeps trying in the background;
		// messages are buffered until it gets through.
		p.logger.Warn("mqtt connect timed out, retrying in background", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(client paho.Client, opts Options) *RealPublisher {
	opts.setDefaults()
	return &RealPublisher{
		client: client,
		opts:   opts,
		logger: opts.Logger,
		buffer: newRingBuffer(opts.BufferSize, opts.Logger),
	}
}

// onConnect runs on every successful (re)connection. Messages buffered
// while the link was down go out oldest first; anything published during
// the replay is queued behind them. RECONNECTED follows the backlog.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	p.connected = true
	p.replaying = true
	buffered := p.buffer.len()
	if reconnect {
		if msg, err := p.systemMsg(SystemEvent{Timestamp: p.opts.Clock(), Event: EventReconnected}); err == nil {
			p.buffer.push(msg)
		} else {
			p.logger.Warn("mqtt format reconnected failed", "error", err)
		}
	}
	dropped := p.buffer.droppedTotal()
	p.mu.Unlock()

	if reconnect {
		p.logger.Info("mqtt reconnected", "broker", p.opts.Broker, "buffered", buffered, "dropped_total", dropped)
	} else {
		p.logger.Info("mqtt connected", "broker", p.opts.Broker, "buffered", buffered, "dropped_total", dropped)
	}

	for {
		p.mu.Lock()
		if !p.connected {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		pending := p.buffer.drainAll()
		if len(pending) == 0 {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for _, msg := range pending {
			if err := p.send(msg); err != nil {
				p.logger.Warn("mqtt replay failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warn("mqtt connection lost", "error", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Publish sends a gesture to the events topic. It does not wait for the
// broker; delivery failures are logged.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(p.opts.ButtonName, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.opts.Topics.Events, payload: payload}, false)
}

// PublishAction sends an action to the actions topic. Actions are published
// from gesture handlers on the sampling goroutine, so it does not wait for
// the broker's acknowledgement; delivery failures are logged.
func (p *RealPublisher) PublishAction(a action.Action) error {
	payload, err := FormatActionPayload(a)
	if err != nil {
		return fmt.Errorf("format action payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.opts.Topics.Actions, payload: payload, qos: 1}, false)
}

// PublishSystem sends a system lifecycle event to the system topic.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	msg, err := p.systemMsg(event)
	if err != nil {
		return err
	}
	return p.publish(msg, true)
}

// systemMsg formats a lifecycle event. QoS 1 (at-least-once).
func (p *RealPublisher) systemMsg(event SystemEvent) (bufferedMsg, error) {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return bufferedMsg{}, fmt.Errorf("format system payload: %w", err)
	}
	return bufferedMsg{topic: p.opts.Topics.System, payload: payload, qos: 1, retained: event.Retained}, nil
}

// publish buffers msg while disconnected or replaying. Otherwise it sends,
// waiting for the broker only when wait is set.
func (p *RealPublisher) publish(msg bufferedMsg, wait bool) error {
	p.mu.Lock()
	if !p.connected || p.replaying {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	if !wait {
		// Counted under the lock so Close waits for it.
		p.inflight.Add(1)
		p.mu.Unlock()
		p.sendAsync(msg)
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		return fmt.Errorf("publish to %s: %w", msg.topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// sendAsync hands msg to the client and watches the token in the background.
// The caller has already added it to inflight.
func (p *RealPublisher) sendAsync(msg bufferedMsg) {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go func() {
		defer p.inflight.Done()
		t := time.NewTimer(p.opts.PublishTimeout)
		defer t.Stop()
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				p.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
			}
		case <-t.C:
			p.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", errPublishTimeout)
		}
	}()
}

var errPublishTimeout = errors.New("timeout")

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	p.connected = false
	unsent := p.buffer.len()
	p.mu.Unlock()
	if unsent > 0 {
		p.logger.Warn("mqtt closing with unsent messages", "count", unsent)
	}
	p.inflight.Wait()
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
