package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"switchbot-meter/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// State is the JSON document published for a meter after every poll cycle.
// Only monitored metrics that have a value are present.
type State struct {
	Meter       string    `json:"meter"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	Battery     *float64  `json:"battery_pct,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Temperature *float64  `json:"temperature_c,omitempty"`
}

type Availability struct {
	Meter    string    `json:"meter"`
	LastSeen time.Time `json:"last_seen"`
	Healthy  bool      `json:"healthy"`
}

// Slug turns a hardware address into a topic segment: "E2:7C:4A:11:22:33" -> "e27c4a112233".
func Slug(address string) string {
	return strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(address))
}

func StateTopic(prefix, address string) string {
	return fmt.Sprintf("%s/%s/state", prefix, Slug(address))
}

func AvailabilityTopic(prefix, address string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, Slug(address))
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Broker marks the meter unavailable if the gateway drops off.
	will, err := json.Marshal(Availability{Meter: cfg.MeterMAC, Healthy: false})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}
	opts.SetBinaryWill(AvailabilityTopic(cfg.MQTTTopicPrefix, cfg.MeterMAC), will, 1, true)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	// Fast path.
	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true) paho keeps retrying internally.
	token := c.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishState publishes the meter state document.
func (c *Client) PublishState(state State) error {
	if state.Timestamp.IsZero() {
		state.Timestamp = time.Now()
	}
	if state.Meter == "" {
		state.Meter = c.cfg.MeterMAC
	}
	topic := StateTopic(c.cfg.MQTTTopicPrefix, state.Meter)
	return c.publish(topic, false, state)
}

// PublishAvailability publishes the retained availability document.
func (c *Client) PublishAvailability(a Availability) error {
	if a.Meter == "" {
		a.Meter = c.cfg.MeterMAC
	}
	topic := AvailabilityTopic(c.cfg.MQTTTopicPrefix, a.Meter)
	return c.publish(topic, true, a)
}

func (c *Client) publish(topic string, retained bool, v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		c.logger.Error("mqtt publish failed", "topic", topic, "error", token.Error())
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}

	c.logger.Debug("mqtt published", "topic", topic, "retained", retained)
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
// After Disconnect, Connect() will return "client stopped".
func (c *Client) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
