package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"rescue/internal/platform/config"
)

type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTSink publishes each event as JSON on one topic.
type MQTTSink struct {
	cli     pahoClient
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTSink connects to the broker. It returns nil when no broker is
// configured.
func NewMQTTSink(cfg config.MQTT, logger *slog.Logger) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warn("reconnecting to mqtt broker", "broker", cfg.Broker)
	}

	c := newMQTTClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return &MQTTSink{cli: c, topic: cfg.Topic, qos: cfg.QoS, timeout: cfg.Timeout}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	tok := s.cli.Publish(s.topic, s.qos, false, payload)
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return errors.New("mqtt publish timeout")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close disconnects after giving in-flight messages 250ms.
func (s *MQTTSink) Close() {
	s.cli.Disconnect(250)
}
