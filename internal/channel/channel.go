// Package channel carries replication messages from the Model to the Renderer.
// Delivery is in send order, exactly once, with one producer and one consumer.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// DefaultBuffer is the number of in-flight messages before Send blocks.
const DefaultBuffer = 4096

// ErrClosed is returned by Send and Recv after Close.
var ErrClosed = errors.New("channel closed")

// Envelope wraps a message with its position in the stream.
type Envelope struct {
	Session uuid.UUID
	Seq     uint64
	Msg     protocol.Message
}

// Channel is an ordered message stream. Send validates per-entity ordering
// so a violation is caught at the producer rather than at the consumer.
type Channel struct {
	session uuid.UUID
	queue   chan Envelope
	done    chan struct{}

	mu       sync.Mutex
	seq      uint64
	closed   bool
	created  map[ids.ID]ids.Kind
	disposed map[ids.ID]struct{}
}

// New creates a channel with the given buffer size.
func New(buffer int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Channel{
		session:  uuid.New(),
		queue:    make(chan Envelope, buffer),
		done:     make(chan struct{}),
		created:  make(map[ids.ID]ids.Kind),
		disposed: make(map[ids.ID]struct{}),
	}
}

// Session returns the id stamped on every envelope of this channel.
func (c *Channel) Session() uuid.UUID {
	return c.session
}

// Send validates and enqueues an owned copy of msg. It blocks while the
// buffer is full.
func (c *Channel) Send(ctx context.Context, msg protocol.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.check(msg); err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq++
	env := Envelope{Session: c.session, Seq: c.seq, Msg: msg.Clone()}
	c.mu.Unlock()

	select {
	case c.queue <- env:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// check enforces create-before-use and nothing-after-dispose.
// A repeated dispose is let through; the consumer treats it as a no-op.
func (c *Channel) check(msg protocol.Message) error {
	id := msg.Target()
	if msg.Op() == protocol.OpControl {
		return nil
	}

	kind, known := c.created[id]
	_, gone := c.disposed[id]

	switch msg.Op() {
	case protocol.OpCreate:
		if known {
			return ids.Protocol(msg.Kind(), id, "create", "duplicate create")
		}
		c.created[id] = msg.Kind()
	case protocol.OpUpdate:
		if !known {
			return ids.Protocol(msg.Kind(), id, "update", "update before create")
		}
		if gone {
			return ids.Protocol(msg.Kind(), id, "update", "update after dispose")
		}
		if kind != msg.Kind() {
			return ids.Protocol(msg.Kind(), id, "update", "id was created as %s", kind)
		}
	case protocol.OpDispose:
		if !known {
			return ids.Protocol(msg.Kind(), id, "dispose", "dispose before create")
		}
		c.disposed[id] = struct{}{}
	}
	return nil
}

// Recv blocks until a message is available.
func (c *Channel) Recv(ctx context.Context) (Envelope, error) {
	select {
	case env := <-c.queue:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-c.done:
		// Drain what was sent before Close.
		select {
		case env := <-c.queue:
			return env, nil
		default:
			return Envelope{}, ErrClosed
		}
	}
}

// TryRecv returns the next message without blocking.
func (c *Channel) TryRecv() (Envelope, bool) {
	select {
	case env := <-c.queue:
		return env, true
	default:
		return Envelope{}, false
	}
}

// Drain returns up to max queued messages without blocking. max <= 0 means all.
func (c *Channel) Drain(max int) []Envelope {
	var out []Envelope
	for max <= 0 || len(out) < max {
		env, ok := c.TryRecv()
		if !ok {
			break
		}
		out = append(out, env)
	}
	return out
}

// Len returns the number of queued messages.
func (c *Channel) Len() int {
	return len(c.queue)
}

// Close stops further sends. Messages already queued can still be received.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
