// Package ids issues the opaque identifiers that are the only references
// allowed to cross the Model/Renderer boundary.
package ids

import (
	"fmt"
	"sync"
)

// Kind is the entity kind an ID was issued for.
type Kind uint8

const (
	KindNone Kind = iota
	KindNode
	KindMesh
	KindMaterial
	KindTexture
	KindAccessor
	KindAnimation
)

var kindNames = [...]string{
	KindNone:      "none",
	KindNode:      "node",
	KindMesh:      "mesh",
	KindMaterial:  "material",
	KindTexture:   "texture",
	KindAccessor:  "accessor",
	KindAnimation: "animation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ID identifies a replicated entity. The zero ID means "none".
type ID uint64

// None is the absent ID.
const None ID = 0

// Valid reports whether id refers to an entity.
func (id ID) Valid() bool {
	return id != None
}

func (id ID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// Registry hands out IDs. IDs are unique across all kinds for the lifetime
// of the registry and are never reused after retirement.
type Registry struct {
	mu      sync.Mutex
	next    ID
	kinds   map[ID]Kind
	retired map[ID]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:   make(map[ID]Kind),
		retired: make(map[ID]struct{}),
	}
}

// New issues a fresh ID for kind.
func (r *Registry) New(kind Kind) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.kinds[r.next] = kind
	return r.next
}

// Kind returns the kind id was issued for, or KindNone if it was never issued.
func (r *Registry) Kind(id ID) Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kinds[id]
}

// Live reports whether id was issued and has not been retired.
func (r *Registry) Live(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[id]; !ok {
		return false
	}
	_, gone := r.retired[id]
	return !gone
}

// Retire marks id as disposed. It returns false if id was already retired
// or never issued.
func (r *Registry) Retire(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[id]; !ok {
		return false
	}
	if _, gone := r.retired[id]; gone {
		return false
	}
	r.retired[id] = struct{}{}
	return true
}

// Count returns the number of IDs issued so far.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.next)
}
