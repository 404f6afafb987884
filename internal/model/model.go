// Package model holds the authoritative scene state. Every mutation is
// applied locally first and then sent to the renderer as a message.
package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/logger"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Sender delivers messages to the renderer in order. *channel.Channel
// implements it.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// node is the model-side record of a node.
type node struct {
	def      protocol.NodeDef
	children []ids.ID
}

// Model is driven from a single goroutine.
type Model struct {
	reg *ids.Registry
	out Sender
	log *zap.Logger

	nodes    map[ids.ID]*node
	defs     map[ids.ID]protocol.Definition
	disposed int
}

// New creates a model that sends through out.
func New(out Sender) *Model {
	return &Model{
		reg:   ids.NewRegistry(),
		out:   out,
		log:   logger.Named("model"),
		nodes: make(map[ids.ID]*node),
		defs:  make(map[ids.ID]protocol.Definition),
	}
}

// Registry returns the id registry.
func (m *Model) Registry() *ids.Registry {
	return m.reg
}

func (m *Model) send(ctx context.Context, msg protocol.Message) error {
	if err := m.out.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", protocol.Describe(msg), err)
	}
	m.log.Debug("sent", zap.String("msg", protocol.Describe(msg)))
	return nil
}

func (m *Model) create(ctx context.Context, def protocol.Definition) (ids.ID, error) {
	id := m.reg.New(def.Kind())
	msg := &protocol.Create{ID: id, Def: def}
	// Keep an owned copy so later patches never touch the caller's value.
	m.defs[id] = msg.Clone().(*protocol.Create).Def
	if err := m.send(ctx, msg); err != nil {
		return ids.None, err
	}
	return id, nil
}

// CreateAccessor registers a typed buffer.
func (m *Model) CreateAccessor(ctx context.Context, def *protocol.AccessorDef) (ids.ID, error) {
	return m.create(ctx, def)
}

// CreateTexture registers a texture.
func (m *Model) CreateTexture(ctx context.Context, def *protocol.TextureDef) (ids.ID, error) {
	return m.create(ctx, def)
}

// CreateMaterial registers a material.
func (m *Model) CreateMaterial(ctx context.Context, def *protocol.MaterialDef) (ids.ID, error) {
	return m.create(ctx, def)
}

// CreateMesh registers a mesh.
func (m *Model) CreateMesh(ctx context.Context, def *protocol.MeshDef) (ids.ID, error) {
	return m.create(ctx, def)
}

// CreateAnimation registers an animation.
func (m *Model) CreateAnimation(ctx context.Context, def *protocol.AnimationDef) (ids.ID, error) {
	return m.create(ctx, def)
}

// CreateNode adds a node. The parent, when set, must be a live node.
func (m *Model) CreateNode(ctx context.Context, def *protocol.NodeDef) (ids.ID, error) {
	if def.Parent.Valid() {
		if _, ok := m.nodes[def.Parent]; !ok {
			return ids.None, ids.Protocol(ids.KindNode, ids.None, "create", "parent %s is not a live node", def.Parent)
		}
	}
	id := m.reg.New(ids.KindNode)
	msg := &protocol.Create{ID: id, Def: def}
	n := &node{def: *msg.Clone().(*protocol.Create).Def.(*protocol.NodeDef)}
	m.nodes[id] = n
	m.defs[id] = &n.def
	if def.Parent.Valid() {
		p := m.nodes[def.Parent]
		p.children = append(p.children, id)
	}
	if err := m.send(ctx, msg); err != nil {
		return ids.None, err
	}
	return id, nil
}

// Node returns a copy of the current definition of a node.
func (m *Model) Node(id ids.ID) (protocol.NodeDef, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return protocol.NodeDef{}, false
	}
	def := n.def
	if def.Collider != nil {
		c := *def.Collider
		def.Collider = &c
	}
	return def, true
}

// Children returns the direct children of a node.
func (m *Model) Children(id ids.ID) []ids.ID {
	n, ok := m.nodes[id]
	if !ok {
		return nil
	}
	return append([]ids.ID(nil), n.children...)
}

// Definition returns the last sent definition of a non-node entity.
func (m *Model) Definition(id ids.ID) (protocol.Definition, bool) {
	d, ok := m.defs[id]
	return d, ok
}

// Live reports whether id names an entity that has not been disposed.
func (m *Model) Live(id ids.ID) bool {
	return m.reg.Live(id)
}

func (m *Model) liveNode(id ids.ID, op string) (*node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, ids.Protocol(ids.KindNode, id, op, "not a live node")
	}
	return n, nil
}

// UpdateNode applies a partial update. A parent change is validated for
// cycles before anything is sent.
func (m *Model) UpdateNode(ctx context.Context, id ids.ID, p *protocol.NodePatch) error {
	n, err := m.liveNode(id, "update")
	if err != nil {
		return err
	}
	if parent, ok := p.Parent.Get(); ok && parent != n.def.Parent {
		if err := m.checkParent(id, parent); err != nil {
			return err
		}
		m.unlink(id, n.def.Parent)
		if parent.Valid() {
			pn := m.nodes[parent]
			pn.children = append(pn.children, id)
		}
		n.def.Parent = parent
	}

	if v, ok := p.Name.Get(); ok {
		n.def.Name = v
	}
	if v, ok := p.Translation.Get(); ok {
		n.def.Transform.Translation = v
	}
	if v, ok := p.Rotation.Get(); ok {
		n.def.Transform.Rotation = v
	}
	if v, ok := p.Scale.Get(); ok {
		n.def.Transform.Scale = v
	}
	if v, ok := p.Mesh.Get(); ok {
		n.def.Mesh = v
	}
	if v, ok := p.Material.Get(); ok {
		n.def.Material = v
	}
	if v, ok := p.Collider.Get(); ok {
		if v == nil {
			n.def.Collider = nil
		} else {
			c := *v
			n.def.Collider = &c
		}
	}
	if v, ok := p.Hidden.Get(); ok {
		n.def.Hidden = v
	}
	return m.send(ctx, &protocol.Update{ID: id, Patch: p})
}

// checkParent rejects a parent that is not a live node or that would make
// node its own ancestor.
func (m *Model) checkParent(id, parent ids.ID) error {
	const op = "set parent"
	if !parent.Valid() {
		return nil
	}
	if _, ok := m.nodes[parent]; !ok {
		return ids.Protocol(ids.KindNode, id, op, "parent %s is not a live node", parent)
	}
	for p := parent; p.Valid(); p = m.nodes[p].def.Parent {
		if p == id {
			return ids.Protocol(ids.KindNode, id, op, "parent %s would create a cycle", parent)
		}
	}
	return nil
}

func (m *Model) unlink(id, parent ids.ID) {
	pn, ok := m.nodes[parent]
	if !ok {
		return
	}
	for i, c := range pn.children {
		if c == id {
			pn.children = append(pn.children[:i], pn.children[i+1:]...)
			return
		}
	}
}

// SetParent moves node under parent; ids.None moves it to the root.
func (m *Model) SetParent(ctx context.Context, id, parent ids.ID) error {
	return m.UpdateNode(ctx, id, &protocol.NodePatch{Parent: protocol.Some(parent)})
}

// SetTransform replaces a node's local transform.
func (m *Model) SetTransform(ctx context.Context, id ids.ID, tr protocol.TRS) error {
	return m.UpdateNode(ctx, id, &protocol.NodePatch{
		Translation: protocol.Some(tr.Translation),
		Rotation:    protocol.Some(tr.Rotation),
		Scale:       protocol.Some(tr.Scale),
	})
}

// SetCollider sets or, with nil, clears a node's collider.
func (m *Model) SetCollider(ctx context.Context, id ids.ID, c *protocol.ColliderDef) error {
	return m.UpdateNode(ctx, id, &protocol.NodePatch{Collider: protocol.Some(c)})
}

// SetMaterial overrides the material of every primitive of a node.
func (m *Model) SetMaterial(ctx context.Context, id, material ids.ID) error {
	return m.UpdateNode(ctx, id, &protocol.NodePatch{Material: protocol.Some(material)})
}

func (m *Model) liveDef(kind ids.Kind, id ids.ID, op string) (protocol.Definition, error) {
	d, ok := m.defs[id]
	if !ok || d.Kind() != kind || !m.reg.Live(id) {
		return nil, ids.Protocol(kind, id, op, "not a live %s", kind)
	}
	return d, nil
}

// UpdateMaterial applies a partial material update.
func (m *Model) UpdateMaterial(ctx context.Context, id ids.ID, p *protocol.MaterialPatch) error {
	d, err := m.liveDef(ids.KindMaterial, id, "update")
	if err != nil {
		return err
	}
	def := d.(*protocol.MaterialDef)
	if v, ok := p.Name.Get(); ok {
		def.Name = v
	}
	if v, ok := p.BaseColor.Get(); ok {
		def.BaseColor = v
	}
	if v, ok := p.Metallic.Get(); ok {
		def.Metallic = v
	}
	if v, ok := p.Roughness.Get(); ok {
		def.Roughness = v
	}
	if v, ok := p.Emissive.Get(); ok {
		def.Emissive = v
	}
	if v, ok := p.NormalScale.Get(); ok {
		def.NormalScale = v
	}
	if v, ok := p.OcclusionStrength.Get(); ok {
		def.OcclusionStrength = v
	}
	if v, ok := p.AlphaMode.Get(); ok {
		def.AlphaMode = v
	}
	if v, ok := p.AlphaCutoff.Get(); ok {
		def.AlphaCutoff = v
	}
	if v, ok := p.DoubleSided.Get(); ok {
		def.DoubleSided = v
	}
	for slot, opt := range p.Textures {
		if v, ok := opt.Get(); ok {
			def.Textures[slot] = v
		}
	}
	return m.send(ctx, &protocol.Update{ID: id, Patch: p})
}

// UpdateMesh applies a partial mesh update.
func (m *Model) UpdateMesh(ctx context.Context, id ids.ID, p *protocol.MeshPatch) error {
	d, err := m.liveDef(ids.KindMesh, id, "update")
	if err != nil {
		return err
	}
	def := d.(*protocol.MeshDef)
	if v, ok := p.Name.Get(); ok {
		def.Name = v
	}
	if v, ok := p.Shape.Get(); ok {
		def.Shape = v
	}
	if v, ok := p.Material.Get(); ok {
		def.Material = v
	}
	if v, ok := p.Weights.Get(); ok {
		def.Weights = v
	}
	return m.send(ctx, &protocol.Update{ID: id, Patch: p})
}

// Dispose disposes an entity. A node takes its descendants with it, each
// disposed explicitly and children first. Disposing an entity twice is a
// no-op.
func (m *Model) Dispose(ctx context.Context, id ids.ID) error {
	if !m.reg.Live(id) {
		return nil
	}
	kind := m.reg.Kind(id)
	if kind == ids.KindNode {
		n := m.nodes[id]
		for _, c := range append([]ids.ID(nil), n.children...) {
			if err := m.Dispose(ctx, c); err != nil {
				return err
			}
		}
		m.unlink(id, n.def.Parent)
		delete(m.nodes, id)
	}
	m.reg.Retire(id)
	delete(m.defs, id)
	m.disposed++
	return m.send(ctx, &protocol.Dispose{ID: id, EntityKind: kind})
}

// ShowVisuals toggles collider wireframes on the renderer.
func (m *Model) ShowVisuals(ctx context.Context, show bool) error {
	return m.send(ctx, &protocol.ShowVisuals{Show: show})
}

// Stats counts live entities.
type Stats struct {
	Issued   int
	Nodes    int
	Disposed int
}

// Stats returns current counters.
func (m *Model) Stats() Stats {
	return Stats{Issued: m.reg.Count(), Nodes: len(m.nodes), Disposed: m.disposed}
}
