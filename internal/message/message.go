// Package message defines the envelope flowing from transports into the dispatcher.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single (topic, payload) delivery from any transport.
type Message struct {
	// ID is a unique identifier for this delivery (UUID), used for log correlation.
	ID string `json:"id"`

	// Source identifies the transport that received it (e.g., "mqtt", "http", "cli").
	Source string `json:"source"`

	// Topic is the full pub/sub topic, including the subscribed prefix.
	Topic string `json:"topic"`

	// Payload is the raw message body.
	Payload []byte `json:"payload,omitempty"`

	// Retained is true when the broker redelivered a stored value on subscribe.
	// It is informational only; the dispatcher does not branch on it.
	Retained bool `json:"retained,omitempty"`

	// Timestamp is when the message was received.
	Timestamp time.Time `json:"timestamp"`
}

// New creates a message with a fresh ID and the current time.
func New(source, topic string, payload []byte) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Source:    source,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Text returns the payload decoded as a UTF-8 string.
func (m *Message) Text() string {
	return string(m.Payload)
}
