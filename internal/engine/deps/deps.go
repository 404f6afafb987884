// Package deps is the dependency table the renderer uses for derived state.
//
// Each derived computation registers the source fields it reads. Touching a
// source marks its dependents dirty; Flush recomputes every dirty entry once,
// in the order it was first marked.
package deps

import (
	"fmt"

	"github.com/Faultbox/scenemirror/internal/ids"
)

// Field names a source property a derived value can depend on.
type Field uint8

const (
	// FieldPresence changes when an entity is created or disposed.
	FieldPresence Field = iota
	FieldWorld
	FieldMesh
	FieldCollider
	// FieldMorphables changes when the morphable objects anywhere under a
	// node change.
	FieldMorphables
)

func (f Field) String() string {
	switch f {
	case FieldPresence:
		return "presence"
	case FieldWorld:
		return "world"
	case FieldMesh:
		return "mesh"
	case FieldCollider:
		return "collider"
	case FieldMorphables:
		return "morphables"
	}
	return fmt.Sprintf("field(%d)", f)
}

// Source is one field of one entity.
type Source struct {
	ID    ids.ID
	Field Field
}

// DerivedKind classifies derived computations.
type DerivedKind uint8

const (
	DerivedSkeleton DerivedKind = iota
	DerivedColliderVisual
	// DerivedMorphTracks is keyed by animation id.
	DerivedMorphTracks
)

func (k DerivedKind) String() string {
	switch k {
	case DerivedSkeleton:
		return "skeleton"
	case DerivedColliderVisual:
		return "collider-visual"
	case DerivedMorphTracks:
		return "morph-tracks"
	}
	return fmt.Sprintf("derived(%d)", k)
}

// Derived identifies one derived computation. Key is owned by whoever
// registers it; the renderer uses object refs and node ids.
type Derived struct {
	Kind DerivedKind
	Key  uint64
}

func (d Derived) String() string {
	return fmt.Sprintf("%s/%d", d.Kind, d.Key)
}

// Table maps sources to the derived values that read them.
type Table struct {
	dependents map[Source]map[Derived]struct{}
	sources    map[Derived][]Source
	dirty      map[Derived]struct{}
	order      []Derived
}

// New creates an empty table.
func New() *Table {
	return &Table{
		dependents: make(map[Source]map[Derived]struct{}),
		sources:    make(map[Derived][]Source),
		dirty:      make(map[Derived]struct{}),
	}
}

// Depend replaces the source set of d. Calling it again re-subscribes d,
// dropping any source not listed.
func (t *Table) Depend(d Derived, sources ...Source) {
	t.unsubscribe(d)
	if len(sources) == 0 {
		return
	}
	list := make([]Source, len(sources))
	copy(list, sources)
	t.sources[d] = list
	for _, s := range list {
		set, ok := t.dependents[s]
		if !ok {
			set = make(map[Derived]struct{})
			t.dependents[s] = set
		}
		set[d] = struct{}{}
	}
}

// Sources returns the current source set of d.
func (t *Table) Sources(d Derived) []Source {
	return t.sources[d]
}

// Forget removes d from the table, including any pending dirty mark.
func (t *Table) Forget(d Derived) {
	t.unsubscribe(d)
	if _, ok := t.dirty[d]; ok {
		delete(t.dirty, d)
		for i, o := range t.order {
			if o == d {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

func (t *Table) unsubscribe(d Derived) {
	for _, s := range t.sources[d] {
		if set, ok := t.dependents[s]; ok {
			delete(set, d)
			if len(set) == 0 {
				delete(t.dependents, s)
			}
		}
	}
	delete(t.sources, d)
}

// Touch marks every dependent of s dirty and returns how many were newly marked.
func (t *Table) Touch(s Source) int {
	n := 0
	for d := range t.dependents[s] {
		if t.Mark(d) {
			n++
		}
	}
	return n
}

// Mark flags d for recompute. It reports false if d was already dirty.
func (t *Table) Mark(d Derived) bool {
	if _, ok := t.dirty[d]; ok {
		return false
	}
	t.dirty[d] = struct{}{}
	t.order = append(t.order, d)
	return true
}

// Dirty reports whether d awaits recompute.
func (t *Table) Dirty(d Derived) bool {
	_, ok := t.dirty[d]
	return ok
}

// Pending returns the number of dirty entries.
func (t *Table) Pending() int {
	return len(t.order)
}

// Flush recomputes dirty entries in mark order. Entries marked during the
// flush are processed in the same call. Errors do not stop the flush; the
// first one is returned.
func (t *Table) Flush(recompute func(Derived) error) error {
	var first error
	for len(t.order) > 0 {
		d := t.order[0]
		t.order = t.order[1:]
		delete(t.dirty, d)
		if err := recompute(d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
