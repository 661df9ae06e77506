// Package mqttbus wraps github.com/eclipse/paho.mqtt.golang behind a
// small Publish/Subscribe surface: a stable client id across
// reconnects, and handlers registered as plain (topic string,
// payload []byte) callbacks rather than the library's native message
// type.
package mqttbus

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Handler receives a message delivered on a subscribed topic.
type Handler func(topic string, payload []byte)

// Client is a thin wrapper around a paho client: connect once, resolve
// a stable id, and expose Publish/Subscribe without leaking the
// library's mqtt.Message type into callers.
type Client struct {
	inner  mqtt.Client
	logger *log.Logger
}

// Config describes how to reach the broker.
type Config struct {
	Host       string
	Port       int
	ClientID   string // if empty, one is generated and kept stable for the process lifetime
	Username   string
	Password   string
	KeepAlive  time.Duration
	MaxRetryIv time.Duration
}

// Connect dials the broker and blocks until CONNACK or the connect
// token's error. The returned Client auto-reconnects on disconnect;
// callers carry no local replay state across reconnects.
func Connect(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "vigil-" + uuid.NewString()[:8]
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	retryIv := cfg.MaxRetryIv
	if retryIv <= 0 {
		retryIv = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(retryIv)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("[mqtt] connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Printf("[mqtt] connected as %s", clientID)
	})

	inner := mqtt.NewClient(opts)
	token := inner.Connect()
	if ok := token.WaitTimeout(30 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect: timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &Client{inner: inner, logger: logger}, nil
}

// Publish sends payload to topic with the given QoS. retain is almost
// always false in this system: detection and event messages must not
// be retained by the broker.
func (c *Client) Publish(topic string, qos byte, retain bool, payload []byte) error {
	token := c.inner.Publish(topic, qos, retain, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers handler on topic (which may contain MQTT
// wildcards, e.g. "vision/+/detections"). The underlying message's
// payload is copied before handler returns so it is never retained by
// paho's internal buffer across calls.
func (c *Client) Subscribe(topic string, qos byte, handler Handler) error {
	token := c.inner.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		payload := append([]byte(nil), msg.Payload()...)
		handler(msg.Topic(), payload)
	})
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the connection, waiting up to
// quiesceMillis for in-flight work to drain.
func (c *Client) Disconnect(quiesceMillis uint) {
	c.inner.Disconnect(quiesceMillis)
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	return c.inner.IsConnected()
}
