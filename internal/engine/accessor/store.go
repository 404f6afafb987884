// Package accessor holds typed numeric buffers keyed by id. Buffers are
// read-only once stored and are shared by every mesh that references them.
package accessor

import (
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Store maps accessor ids to their buffers.
type Store struct {
	items map[ids.ID]*protocol.AccessorDef
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[ids.ID]*protocol.AccessorDef)}
}

// Add stores def under id. Adding an id twice is a protocol violation.
func (s *Store) Add(id ids.ID, def *protocol.AccessorDef) error {
	if _, ok := s.items[id]; ok {
		return ids.Protocol(ids.KindAccessor, id, "create", "duplicate create")
	}
	if def.Component == protocol.Float32 && len(def.Floats)%def.ItemSize() != 0 {
		return ids.Protocol(ids.KindAccessor, id, "create", "%d floats is not a multiple of item size %d", len(def.Floats), def.ItemSize())
	}
	s.items[id] = def
	return nil
}

// Get returns the accessor for id.
func (s *Store) Get(id ids.ID) (*protocol.AccessorDef, bool) {
	a, ok := s.items[id]
	return a, ok
}

// Require returns the accessor for id or a missing-dependency error naming
// the entity (kind, owner) that needed it.
func (s *Store) Require(kind ids.Kind, owner ids.ID, op string, id ids.ID) (*protocol.AccessorDef, error) {
	a, ok := s.items[id]
	if !ok {
		return nil, ids.Missing(kind, owner, op, ids.KindAccessor, id)
	}
	return a, nil
}

// Remove drops id. It returns false if id was not stored.
func (s *Store) Remove(id ids.ID) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Len returns the number of stored accessors.
func (s *Store) Len() int {
	return len(s.items)
}
