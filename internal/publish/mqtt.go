package publish

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
)

// MQTTConfig holds MQTT client settings
type MQTTConfig struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	QoS            byte
}

// DefaultMQTTConfig returns default MQTT settings for broker
func DefaultMQTTConfig(broker string) MQTTConfig {
	return MQTTConfig{
		Broker:         broker,
		ClientID:       "aegis-compliance",
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
		QoS:            1,
	}
}

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes payloads to an MQTT broker
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqttClient
	closed atomic.Bool
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}

	log := logger.WithComponent("mqtt_publisher")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	log.Info().Str("broker", cfg.Broker).Msg("connected to mqtt broker")
	return &MQTTPublisher{cfg: cfg, client: client}, nil
}

// Publish sends payload and waits for the broker acknowledgement
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	token := p.client.Publish(topic, p.cfg.QoS, false, payload)

	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		metrics.PublishedMessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish to %s: %w", topic, ErrPublishTimeout)
	case <-ctx.Done():
		metrics.PublishedMessagesTotal.WithLabelValues("failed").Inc()
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		metrics.PublishedMessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.PublishedMessagesTotal.WithLabelValues("success").Inc()
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.client.Disconnect(250)
	return nil
}
