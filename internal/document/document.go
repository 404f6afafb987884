// Package document is the in-memory scene document the Model replays from.
// Definitions reference each other through document-local handles which
// Replay maps to registry ids.
package document

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Entry is one named definition.
type Entry[T any] struct {
	Name   string
	Handle ids.ID
	Def    T
}

// Document is an ordered set of definitions. Handles are issued by the Add
// methods and are only meaningful inside the document.
type Document struct {
	Name       string
	Accessors  []Entry[*protocol.AccessorDef]
	Textures   []Entry[*protocol.TextureDef]
	Materials  []Entry[*protocol.MaterialDef]
	Meshes     []Entry[*protocol.MeshDef]
	Nodes      []Entry[*protocol.NodeDef]
	Animations []Entry[*protocol.AnimationDef]

	next ids.ID
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{Name: name}
}

func (d *Document) handle() ids.ID {
	d.next++
	return d.next
}

// AddAccessor appends an accessor and returns its handle.
func (d *Document) AddAccessor(name string, def *protocol.AccessorDef) ids.ID {
	h := d.handle()
	d.Accessors = append(d.Accessors, Entry[*protocol.AccessorDef]{Name: name, Handle: h, Def: def})
	return h
}

// AddTexture appends a texture and returns its handle.
func (d *Document) AddTexture(name string, def *protocol.TextureDef) ids.ID {
	h := d.handle()
	d.Textures = append(d.Textures, Entry[*protocol.TextureDef]{Name: name, Handle: h, Def: def})
	return h
}

// AddMaterial appends a material and returns its handle.
func (d *Document) AddMaterial(name string, def *protocol.MaterialDef) ids.ID {
	h := d.handle()
	d.Materials = append(d.Materials, Entry[*protocol.MaterialDef]{Name: name, Handle: h, Def: def})
	return h
}

// AddMesh appends a mesh and returns its handle.
func (d *Document) AddMesh(name string, def *protocol.MeshDef) ids.ID {
	h := d.handle()
	d.Meshes = append(d.Meshes, Entry[*protocol.MeshDef]{Name: name, Handle: h, Def: def})
	return h
}

// AddNode appends a node and returns its handle. Nodes may be added in any
// order; Replay creates parents first.
func (d *Document) AddNode(name string, def *protocol.NodeDef) ids.ID {
	h := d.handle()
	d.Nodes = append(d.Nodes, Entry[*protocol.NodeDef]{Name: name, Handle: h, Def: def})
	return h
}

// AddAnimation appends an animation and returns its handle.
func (d *Document) AddAnimation(name string, def *protocol.AnimationDef) ids.ID {
	h := d.handle()
	d.Animations = append(d.Animations, Entry[*protocol.AnimationDef]{Name: name, Handle: h, Def: def})
	return h
}

// Len returns the number of definitions.
func (d *Document) Len() int {
	return len(d.Accessors) + len(d.Textures) + len(d.Materials) +
		len(d.Meshes) + len(d.Nodes) + len(d.Animations)
}

// Key normalizes an entity name for lookup. Names from different exporters
// differ in Unicode composition and case; both are folded away.
func Key(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
