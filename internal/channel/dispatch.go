package channel

import (
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Handler applies one message.
type Handler func(msg protocol.Message) error

type route struct {
	kind ids.Kind
	op   protocol.Op
}

// Dispatcher routes messages to handlers by entity kind and operation.
type Dispatcher struct {
	handlers map[route]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[route]Handler)}
}

// Register installs the handler for kind/op, replacing any previous one.
func (d *Dispatcher) Register(kind ids.Kind, op protocol.Op, h Handler) {
	d.handlers[route{kind, op}] = h
}

// Dispatch runs the handler for msg. A message nobody handles is a
// protocol violation: the producer sent something the consumer cannot apply.
func (d *Dispatcher) Dispatch(msg protocol.Message) error {
	h, ok := d.handlers[route{msg.Kind(), msg.Op()}]
	if !ok {
		return ids.Protocol(msg.Kind(), msg.Target(), msg.Op().String(), "no handler")
	}
	return h(msg)
}
