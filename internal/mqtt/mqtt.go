// Package mqtt publishes device state changes to an MQTT broker.
//
// Each device gets a retained state topic, <prefix>/devices/<device_id>/state,
// so a subscriber sees the last known state as soon as it connects. The
// service's own liveness is published retained on <prefix>/status with a
// last-will fallback.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	stateQoS       = 1
	quiesceMillis  = 250
)

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrNotConnected     = errors.New("mqtt: not connected")
)

// DeviceState is the payload published on a device state topic.
type DeviceState struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	GPIONumber int       `json:"gpio_number"`
	IsOn       bool      `json:"is_on"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends device state events.
type Publisher interface {
	PublishState(ctx context.Context, s DeviceState) error
	Close()
}

// Options configures Connect.
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Client is a Publisher backed by a paho client.
type Client struct {
	client pahomqtt.Client
	prefix string
	logger *slog.Logger
}

// Connect dials the broker and announces the service online. The connection
// reconnects on its own after the first success.
func Connect(opts Options, logger *slog.Logger) (*Client, error) {
	c := &Client{prefix: opts.TopicPrefix, logger: logger}

	po := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(60*time.Second).
		SetWill(c.statusTopic(), statusPayload("offline"), stateQoS, true)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	po.SetOnConnectHandler(func(pc pahomqtt.Client) {
		logger.Info("mqtt connected", "broker", opts.Broker)
		pc.Publish(c.statusTopic(), stateQoS, true, statusPayload("online"))
	})
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", opts.Broker, "error", err)
	})

	c.client = pahomqtt.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// StateTopic returns the retained topic for deviceID.
func (c *Client) StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/state", c.prefix, deviceID)
}

func (c *Client) statusTopic() string {
	return c.prefix + "/status"
}

// PublishState publishes s retained at QoS 1 and waits for the broker ack,
// bounded by ctx and an internal timeout.
func (c *Client) PublishState(ctx context.Context, s DeviceState) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPublishFailed, err)
	}

	token := c.client.Publish(c.StateTopic(s.DeviceID), stateQoS, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-time.After(publishTimeout):
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close announces a graceful shutdown and disconnects.
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Publish(c.statusTopic(), stateQoS, true, statusPayload("offline")).WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(quiesceMillis)
}

func statusPayload(status string) string {
	return fmt.Sprintf(`{"status":%q,"timestamp":%q}`, status, time.Now().UTC().Format(time.RFC3339))
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishState(context.Context, DeviceState) error { return nil }
func (Nop) Close()                                          {}
