package mqttbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/logging"
)

const (
	// defaultConnectTimeout is the maximum time to wait for initial connection
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect
	defaultDisconnectQuiesce = 1000 // milliseconds

	defaultKeepAlive         = 60 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
)

// Status payloads published on Topics.Status
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrConnectionFailed is returned when the broker cannot be reached
var ErrConnectionFailed = errors.New("mqtt connection failed")

// MessageHandler receives messages for a subscribed topic
type MessageHandler func(topic string, payload []byte)

// Broker is the MQTT surface the bridge needs
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Close()
}

// BrokerConfig describes how to reach the broker
type BrokerConfig struct {
	URL      string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// PahoBroker is a Broker backed by paho.mqtt.golang. It sets a retained
// offline will on the status topic, announces online on every (re)connect
// and restores subscriptions after a reconnect.
type PahoBroker struct {
	client      pahomqtt.Client
	statusTopic string

	mu            sync.Mutex
	subscriptions map[string]subscription
}

// ConnectPaho connects to the broker described by cfg
func ConnectPaho(cfg BrokerConfig, topics Topics) (*PahoBroker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: no broker URL configured", ErrConnectionFailed)
	}

	b := &PahoBroker{
		statusTopic:   topics.Status(),
		subscriptions: make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnectDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(b.statusTopic, StatusOffline, 1, true)
	// Handlers run in delivery order on paho's router goroutine, so they
	// must return quickly. The bridge only queues work from them.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		b.restoreSubscriptions(c)
		c.Publish(b.statusTopic, 1, true, StatusOnline)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logging.Warn("MQTT connection lost", zap.Error(err))
	})

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logging.Info("Connected to MQTT broker",
		zap.String("broker", cfg.URL),
		zap.String("client_id", cfg.ClientID),
	)
	return b, nil
}

// Publish sends payload to topic and waits for the broker to acknowledge it
func (b *PahoBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("publish to %s: timeout after %v", topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription survives reconnects.
func (b *PahoBroker) Subscribe(topic string, qos byte, handler MessageHandler) error {
	b.mu.Lock()
	b.subscriptions[topic] = subscription{qos: qos, handler: handler}
	b.mu.Unlock()

	token := b.client.Subscribe(topic, qos, wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("subscribe to %s: timeout after %v", topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// Close publishes a graceful offline status and disconnects
func (b *PahoBroker) Close() {
	if b.client.IsConnected() {
		token := b.client.Publish(b.statusTopic, 1, true, StatusOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}
	b.client.Disconnect(defaultDisconnectQuiesce)
}

func (b *PahoBroker) restoreSubscriptions(c pahomqtt.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, sub := range b.subscriptions {
		c.Subscribe(topic, sub.qos, wrapHandler(sub.handler))
	}
}

// wrapHandler adapts handler to paho and recovers from panics in it
func wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("MQTT handler panic recovered",
					zap.String("topic", msg.Topic()),
					zap.Any("panic", r),
				)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}
