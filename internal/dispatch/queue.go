package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nadzzz/audiobridge/internal/message"
)

// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
var ErrQueueFull = errors.New("dispatch queue full")

// HandleFunc processes one message.
type HandleFunc func(ctx context.Context, msg *message.Message) error

// Queue serializes messages from every transport onto one worker.
type Queue struct {
	ch     chan *message.Message
	handle HandleFunc
}

// NewQueue creates a queue holding up to size pending messages.
func NewQueue(size int, handle HandleFunc) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan *message.Message, size), handle: handle}
}

// Enqueue adds msg to the backlog without blocking. It has the transport
// handler signature so transports can deliver straight into the queue.
func (q *Queue) Enqueue(ctx context.Context, msg *message.Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		slog.Warn("dispatch queue full, dropping message", "message_id", msg.ID, "topic", msg.Topic)
		return ErrQueueFull
	}
}

// Len returns the number of pending messages.
func (q *Queue) Len() int { return len(q.ch) }

// Run handles queued messages in arrival order until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(q.ch); n > 0 {
				slog.Info("dispatch queue stopped", "dropped", n)
			}
			return
		case msg := <-q.ch:
			_ = q.handle(ctx, msg)
		}
	}
}
