// Package mqtt implements the MQTT transport for audiobridge.
//
// The transport subscribes to <topic_prefix># and hands every delivery to the
// dispatch handler. paho runs handlers on its network goroutine, so the
// handler must return quickly; audiobridge passes the queue's Enqueue.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/message"
	"github.com/nadzzz/audiobridge/internal/transport"
)

const disconnectQuiesce = 250 // milliseconds

// Transport implements transport.Transport over MQTT.
type Transport struct {
	cfg    config.MQTTConfig
	client paho.Client
}

// New creates a new MQTT transport.
func New(cfg config.MQTTConfig) *Transport {
	return &Transport{cfg: cfg}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "mqtt" }

// Subscription returns the subscribed topic filter.
func (t *Transport) Subscription() string { return t.cfg.TopicPrefix + "#" }

// Listen connects to the broker and subscribes. The subscription is renewed
// on every reconnect. It blocks until the context is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	onMessage := func(_ paho.Client, m paho.Message) {
		msg := toMessage(m)
		if err := handler(ctx, msg); err != nil {
			slog.Warn("mqtt message not accepted", "message_id", msg.ID, "topic", msg.Topic, "error", err)
		}
	}

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(t.cfg.ClientID).
		SetUsername(t.cfg.Username).
		SetPassword(t.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			tok := c.Subscribe(t.Subscription(), t.cfg.QoS, onMessage)
			tok.Wait()
			if err := tok.Error(); err != nil {
				slog.Error("mqtt subscribe failed", "topic", t.Subscription(), "error", err)
				return
			}
			slog.Info("mqtt subscribed", "broker", t.cfg.Broker, "topic", t.Subscription())
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("mqtt connection lost", "broker", t.cfg.Broker, "error", err)
		})

	t.client = paho.NewClient(opts)
	slog.Info("mqtt transport connecting", "broker", t.cfg.Broker, "client_id", t.cfg.ClientID)

	tok := t.client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		return nil
	}

	<-ctx.Done()
	return nil
}

// Close disconnects from the MQTT broker.
func (t *Transport) Close() error {
	if t.client != nil && t.client.IsConnectionOpen() {
		t.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

// toMessage copies a paho delivery into a message envelope.
func toMessage(m paho.Message) *message.Message {
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())
	msg := message.New("mqtt", m.Topic(), payload)
	msg.Retained = m.Retained()
	return msg
}
