package physics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/logger"
)

// ErrSinkFull is returned when an in-process sink cannot take more packets
// without blocking the renderer.
var ErrSinkFull = errors.New("physics sink full")

// Sink receives collider geometry. Implementations must not block.
type Sink interface {
	SetColliderGeometry(p *ColliderGeometry) error
}

// Discard drops everything.
type Discard struct{}

func (Discard) SetColliderGeometry(*ColliderGeometry) error { return nil }

// ChannelSink hands encoded packets to a physics goroutine.
type ChannelSink struct {
	packets chan []byte
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{packets: make(chan []byte, buffer)}
}

// SetColliderGeometry enqueues p without blocking.
func (s *ChannelSink) SetColliderGeometry(p *ColliderGeometry) error {
	select {
	case s.packets <- p.Encode():
		return nil
	default:
		return fmt.Errorf("%w: node %s", ErrSinkFull, p.Node)
	}
}

// Packets is the receiving end.
func (s *ChannelSink) Packets() <-chan []byte {
	return s.packets
}

// Close ends the stream.
func (s *ChannelSink) Close() {
	close(s.packets)
}

// Consume decodes packets until the sink is closed or ctx ends.
func (s *ChannelSink) Consume(ctx context.Context, fn func(*ColliderGeometry)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-s.packets:
			if !ok {
				return nil
			}
			p, err := DecodeColliderGeometry(buf)
			if err != nil {
				return err
			}
			fn(p)
		}
	}
}

// ConnSink writes packets to a physics process over a stream connection.
// Each packet is preceded by its length as a uint32.
type ConnSink struct {
	conn net.Conn
	mu   sync.Mutex
}

// Dial connects to a physics process.
func Dial(network, addr string) (*ConnSink, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return NewConnSink(conn), nil
}

// NewConnSink wraps an established connection.
func NewConnSink(conn net.Conn) *ConnSink {
	return &ConnSink{conn: conn}
}

// SetColliderGeometry writes p to the connection.
func (s *ConnSink) SetColliderGeometry(p *ColliderGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	data := p.Encode()
	frame := make([]byte, 4+len(data))
	writeUint32(frame, 0, uint32(len(data)))
	copy(frame[4:], data)
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("sending collider geometry for %s: %w", p.Node, err)
	}
	logger.Debug("collider geometry sent", zap.Stringer("node", p.Node), zap.Int("bytes", len(frame)))
	return nil
}

// Close closes the connection.
func (s *ConnSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// ReadFrame reads one length-prefixed packet written by ConnSink.
func ReadFrame(r io.Reader) (*ColliderGeometry, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, readUint32(size[:], 0))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return DecodeColliderGeometry(buf)
}
