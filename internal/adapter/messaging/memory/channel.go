// Package memory provides an in-process usecase.MessageChannel for single
// instance deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/iho/cashflow/internal/usecase"
)

const defaultBuffer = 1024

// Channel is a buffered, per-queue message channel. A handler error puts
// the message back on its queue; when the buffer is full it waits in an
// overflow list that is drained before the buffer.
type Channel struct {
	mu     sync.Mutex
	queues map[string]*queue
	buffer int
}

type queue struct {
	ch chan []byte

	mu       sync.Mutex
	overflow [][]byte
}

// NewChannel creates a Channel whose queues hold up to buffer messages.
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Channel{
		queues: make(map[string]*queue),
		buffer: buffer,
	}
}

func (c *Channel) queue(name string) *queue {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[name]
	if !ok {
		q = &queue{ch: make(chan []byte, c.buffer)}
		c.queues[name] = q
	}
	return q
}

// Publish enqueues a copy of payload. It blocks while the queue is full.
func (c *Channel) Publish(ctx context.Context, queue string, payload []byte) error {
	msg := append([]byte(nil), payload...)
	select {
	case c.queue(queue).ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe delivers messages of queue to handler one at a time until ctx
// is cancelled.
func (c *Channel) Subscribe(ctx context.Context, queue string, handler usecase.MessageHandler) error {
	q := c.queue(queue)
	for {
		msg, ok := q.popOverflow()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg = <-q.ch:
			}
		}

		if err := handler(ctx, msg); err != nil {
			q.requeue(msg)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Len returns the number of messages waiting in queue.
func (c *Channel) Len(queue string) int {
	q := c.queue(queue)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.overflow)
}

// requeue never blocks the consumer and never drops msg.
func (q *queue) requeue(msg []byte) {
	select {
	case q.ch <- msg:
	default:
		q.mu.Lock()
		q.overflow = append(q.overflow, msg)
		q.mu.Unlock()
	}
}

func (q *queue) popOverflow() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.overflow) == 0 {
		return nil, false
	}
	msg := q.overflow[0]
	q.overflow = q.overflow[1:]
	return msg, true
}
