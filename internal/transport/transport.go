// Package transport defines the interface for pluggable message ingress.
//
// Each transport (MQTT, HTTP) delivers (topic, payload) pairs to a Handler.
// Transports never wait for playback; the handler they are given enqueues
// onto the dispatch queue.
package transport

import (
	"context"

	"github.com/nadzzz/audiobridge/internal/message"
)

// Handler accepts an incoming message. A non-nil error means the message was
// not accepted (for example, the queue is full).
type Handler func(ctx context.Context, msg *message.Message) error

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "mqtt", "http").
	Name() string

	// Listen starts accepting incoming messages and delivers them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport.
	Close() error
}
