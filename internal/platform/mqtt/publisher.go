// Package mqtt publishes call-board events to an MQTT broker for hardware
// call displays mounted at the pickup area.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// tokenPublisher is the part of paho.Client the publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type Publisher struct {
	client tokenPublisher
	qos    byte
	close  func()
	logger zerolog.Logger
}

// Connect dials the broker. Paho reconnects on its own after a drop;
// publishes made while disconnected fail and are logged by the caller.
func Connect(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	logger = logger.With().Str("component", "mqtt").Logger()

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Msg("broker connection lost")
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("connected to broker")
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	p := newPublisher(client, cfg.QoS, logger)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newPublisher(client tokenPublisher, qos byte, logger zerolog.Logger) *Publisher {
	return &Publisher{client: client, qos: qos, close: func() {}, logger: logger}
}

// Publish sends payload to topic and waits for the broker acknowledgement
// or ctx, whichever comes first.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.close()
}
