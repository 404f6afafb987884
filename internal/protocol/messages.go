// Package protocol defines the messages the Model sends to the Renderer.
// Every entity kind uses the same three operations: create, update, dispose.
package protocol

import (
	"fmt"

	"github.com/Faultbox/scenemirror/internal/ids"
)

// Op is a replication operation.
type Op uint8

const (
	OpCreate Op = iota
	OpUpdate
	OpDispose
	OpControl
)

var opNames = [...]string{"create", "update", "dispose", "control"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// Definition is the full description of a newly created entity.
type Definition interface {
	Kind() ids.Kind
	clone() Definition
}

// Patch is a partial update of an existing entity.
type Patch interface {
	Kind() ids.Kind
	clone() Patch
}

// Message is one unit of replication traffic.
type Message interface {
	Kind() ids.Kind
	Op() Op
	Target() ids.ID
	// Clone returns a copy that shares no buffers with the original.
	Clone() Message
}

// Create introduces a new entity.
type Create struct {
	ID  ids.ID
	Def Definition
}

func (m *Create) Kind() ids.Kind { return m.Def.Kind() }
func (m *Create) Op() Op         { return OpCreate }
func (m *Create) Target() ids.ID { return m.ID }

func (m *Create) Clone() Message {
	return &Create{ID: m.ID, Def: m.Def.clone()}
}

// Update changes fields of an existing entity.
type Update struct {
	ID    ids.ID
	Patch Patch
}

func (m *Update) Kind() ids.Kind { return m.Patch.Kind() }
func (m *Update) Op() Op         { return OpUpdate }
func (m *Update) Target() ids.ID { return m.ID }

func (m *Update) Clone() Message {
	return &Update{ID: m.ID, Patch: m.Patch.clone()}
}

// Dispose ends an entity's life. It is the last message referencing ID.
type Dispose struct {
	ID         ids.ID
	EntityKind ids.Kind
}

func (m *Dispose) Kind() ids.Kind { return m.EntityKind }
func (m *Dispose) Op() Op         { return OpDispose }
func (m *Dispose) Target() ids.ID { return m.ID }

func (m *Dispose) Clone() Message {
	c := *m
	return &c
}

// ShowVisuals toggles debug collider wireframes. It references no entity.
type ShowVisuals struct {
	Show bool
}

func (m *ShowVisuals) Kind() ids.Kind { return ids.KindNone }
func (m *ShowVisuals) Op() Op         { return OpControl }
func (m *ShowVisuals) Target() ids.ID { return ids.None }

func (m *ShowVisuals) Clone() Message {
	c := *m
	return &c
}

// Describe formats a message for logs.
func Describe(m Message) string {
	if m.Op() == OpControl {
		return fmt.Sprintf("control %T", m)
	}
	return fmt.Sprintf("%s %s %s", m.Op(), m.Kind(), m.Target())
}
