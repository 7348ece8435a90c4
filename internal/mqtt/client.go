package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bilbercode/ezviz-bridge/internal/config"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	defaultTimeout = 10 * time.Second
	disconnectWait = 250
)

// MessageHandler is called for every message on a subscribed topic. Each message gets its own
// goroutine, so a handler may block and may publish.
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	topic   string
	handler MessageHandler
}

type Client struct {
	client            pahomqtt.Client
	qos               byte
	timeout           time.Duration
	availabilityTopic string

	subMu         sync.RWMutex
	subscriptions map[string]subscription
}

// Connect dials the broker. The availability topic receives "online" on every (re)connect and
// "offline" as the last will.
func Connect(cfg config.MQTTConfig, availabilityTopic string) (*Client, error) {
	c := &Client{
		qos:               cfg.QoS,
		timeout:           cfg.ConnectTimeout,
		availabilityTopic: availabilityTopic,
		subscriptions:     make(map[string]subscription),
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	opts := c.options(cfg)
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, c.timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) options(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ezviz-bridge-" + uuid.NewString()[:8]
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(c.timeout).
		SetCleanSession(true).
		SetOrderMatters(false)

	if c.availabilityTopic != "" {
		opts.SetWill(c.availabilityTopic, PayloadOffline, c.qos, true)
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		log.Info("connected to mqtt broker")
		if c.availabilityTopic != "" {
			client.Publish(c.availabilityTopic, c.qos, true, PayloadOnline)
		}
		c.restoreSubscriptions()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.WithError(err).Warn("lost connection to mqtt broker")
	})
	return opts
}

func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic. Subscriptions are restored after a reconnect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.qos, wrap(handler))
	if !token.WaitTimeout(c.timeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, c.timeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.availabilityTopic != "" && c.client.IsConnectionOpen() {
		token := c.client.Publish(c.availabilityTopic, c.qos, true, PayloadOffline)
		token.WaitTimeout(c.timeout)
	}
	c.client.Disconnect(disconnectWait)
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subscriptions, topic)
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, c.qos, wrap(sub.handler))
	}
}

func wrap(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("topic", msg.Topic()).Errorf("mqtt handler panicked: %v", r)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}
