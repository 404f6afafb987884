package renderer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/engine/collider"
	"github.com/Faultbox/scenemirror/internal/engine/deps"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// nodeState is the renderer's view of one node.
type nodeState struct {
	id       ids.ID
	obj      *scenegraph.Object
	parent   ids.ID
	mesh     ids.ID
	material ids.ID
	collider *protocol.ColliderDef
	shape    *collider.Shape
	prims    []*scenegraph.Object

	// placeholder is set for a joint created ahead of its node.
	placeholder bool
}

func (r *Renderer) createNode(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	def := m.Def.(*protocol.NodeDef)
	const op = "create"

	parentRef, err := r.parentRef(m.ID, op, def.Parent)
	if err != nil {
		return err
	}

	st, exists := r.nodes[m.ID]
	switch {
	case exists && !st.placeholder:
		return ids.Protocol(ids.KindNode, m.ID, op, "duplicate create")
	case exists:
		// Adopt the bone created ahead of this node.
		st.placeholder = false
		r.skeletons.Adopt(m.ID)
		if st.obj.Parent != parentRef {
			if _, err := r.graph.SetParent(st.obj.Ref, parentRef); err != nil {
				return ids.Protocol(ids.KindNode, m.ID, op, "%v", err)
			}
			r.requeue(st.obj)
		}
	default:
		obj, err := r.graph.Create(scenegraph.KindGroup, m.ID, parentRef)
		if err != nil {
			return ids.Protocol(ids.KindNode, m.ID, op, "%v", err)
		}
		st = &nodeState{id: m.ID, obj: obj}
		r.nodes[m.ID] = st
		r.queue.Push(obj.Ref)
	}

	st.parent = def.Parent
	st.obj.Name = def.Name
	st.obj.Visible = !def.Hidden
	tr := def.Transform
	r.graph.SetLocal(st.obj.Ref, math.V3(tr.Translation), math.Q(tr.Rotation), math.V3(tr.Scale))
	r.deps.Touch(deps.Source{ID: m.ID, Field: deps.FieldPresence})

	if def.Collider != nil {
		c := *def.Collider
		st.collider = &c
		r.watchCollider(st)
	}

	// A missing override still builds the node; it draws with the mesh or
	// default material and the error aborts only the override.
	var matErr error
	st.material = def.Material
	if def.Material.Valid() {
		if _, matErr = r.materials.Resolve(ids.KindNode, m.ID, op, def.Material); matErr != nil {
			st.material = ids.None
		}
	}
	if err := r.setMesh(st, def.Mesh, op); err != nil {
		return err
	}
	return matErr
}

// parentRef maps a parent node id to its object. Referencing a node that
// was never created is a protocol violation.
func (r *Renderer) parentRef(node ids.ID, op string, parent ids.ID) (scenegraph.Ref, error) {
	if !parent.Valid() {
		return scenegraph.RootRef, nil
	}
	p, ok := r.nodes[parent]
	if !ok || p.placeholder {
		return scenegraph.NoRef, ids.Protocol(ids.KindNode, node, op, "parent %s not created", parent)
	}
	return p.obj.Ref, nil
}

func (r *Renderer) updateNode(msg protocol.Message) error {
	m := msg.(*protocol.Update)
	p := m.Patch.(*protocol.NodePatch)
	const op = "update"

	st, ok := r.nodes[m.ID]
	if !ok || st.placeholder {
		return unbuilt(ids.KindNode, m.ID, op)
	}

	if v, ok := p.Name.Get(); ok {
		st.obj.Name = v
	}
	if v, ok := p.Hidden.Get(); ok {
		st.obj.Visible = !v
	}
	if v, ok := p.Parent.Get(); ok && v != st.parent {
		if err := r.reparent(st, v); err != nil {
			return err
		}
	}
	if v, ok := p.Translation.Get(); ok {
		r.graph.SetPosition(st.obj.Ref, math.V3(v))
	}
	if v, ok := p.Rotation.Get(); ok {
		r.graph.SetRotation(st.obj.Ref, math.Q(v))
	}
	if v, ok := p.Scale.Get(); ok {
		r.graph.SetScale(st.obj.Ref, math.V3(v))
	}
	if v, ok := p.Collider.Get(); ok {
		if v == nil {
			st.collider = nil
			r.dropCollider(st)
		} else {
			c := *v
			st.collider = &c
			r.watchCollider(st)
			r.deps.Touch(deps.Source{ID: st.id, Field: deps.FieldCollider})
		}
	}

	var firstErr error
	if v, ok := p.Material.Get(); ok && v != st.material {
		if v.Valid() {
			if _, err := r.materials.Resolve(ids.KindNode, m.ID, op, v); err != nil {
				firstErr = err
				v = st.material
			}
		}
		st.material = v
		for _, prim := range st.prims {
			if err := r.bindMaterial(prim); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if v, ok := p.Mesh.Get(); ok && v != st.mesh {
		if err := r.setMesh(st, v, op); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reparent moves st under parent keeping its world position and rotation.
func (r *Renderer) reparent(st *nodeState, parent ids.ID) error {
	const op = "set parent"
	ref, err := r.parentRef(st.id, op, parent)
	if err != nil {
		return err
	}
	r.touchMorphables(st.obj)
	if _, err := r.graph.SetParent(st.obj.Ref, ref); err != nil {
		return ids.Protocol(ids.KindNode, st.id, op, "%v", err)
	}
	st.parent = parent
	r.touchMorphables(st.obj)
	r.requeue(st.obj)
	if st.collider != nil {
		r.watchCollider(st)
		r.deps.Touch(deps.Source{ID: st.id, Field: deps.FieldWorld})
	}
	return nil
}

// requeue puts obj back in the attach queue after a parent change. A queued
// object may be waiting on its old parent; a live subtree moved under a
// parent that is not live yet was detached and must wait for the new one.
func (r *Renderer) requeue(obj *scenegraph.Object) {
	switch {
	case r.queue.Queued(obj.Ref):
		r.queue.Requeue(obj.Ref)
	case !obj.Attached:
		r.queue.Push(obj.Ref)
	}
	for _, d := range r.graph.Descendants(obj.Ref) {
		if !d.Attached {
			r.queue.Push(d.Ref)
		}
	}
}

func (r *Renderer) disposeNode(msg protocol.Message) error {
	st, ok := r.nodes[msg.Target()]
	if !ok || st.placeholder {
		// Already gone with an ancestor, disposed twice, or never built.
		return nil
	}
	if parent, ok := r.graph.Get(st.obj.Parent); ok {
		r.touchMorphables(parent)
	}
	r.disposeObjects(r.graph.Dispose(st.obj.Ref))
	return nil
}

// disposeObjects releases every bookkeeping entry of objects removed from
// the graph, parents first.
func (r *Renderer) disposeObjects(gone []*scenegraph.Object) {
	for _, o := range gone {
		r.queue.Remove(o.Ref)
		switch o.Kind {
		case scenegraph.KindGroup, scenegraph.KindBone:
			st, ok := r.nodes[o.Source]
			if !ok || st.obj != o {
				continue
			}
			r.dropCollider(st)
			delete(r.nodes, o.Source)
			if !st.placeholder {
				r.retire(o.Source)
			}
			// Skins using this node as a joint lose their binding.
			r.deps.Touch(deps.Source{ID: o.Source, Field: deps.FieldPresence})
			r.log.Debug("node disposed", zap.Stringer("id", o.Source))
		case scenegraph.KindPrimitive, scenegraph.KindSkinnedPrimitive:
			r.forgetPrimitive(o)
		}
	}
}

// Joint implements skeleton.Joints.
func (r *Renderer) Joint(id ids.ID) (*scenegraph.Object, bool) {
	st, ok := r.nodes[id]
	if !ok {
		return nil, false
	}
	return st.obj, true
}

// NewJoint implements skeleton.Factory: it creates a bone under the root for
// a joint whose node has not been created yet. The node's create adopts it.
func (r *Renderer) NewJoint(id ids.ID) (*scenegraph.Object, error) {
	obj, err := r.graph.Create(scenegraph.KindBone, id, scenegraph.RootRef)
	if err != nil {
		return nil, err
	}
	r.nodes[id] = &nodeState{id: id, obj: obj, placeholder: true}
	r.queue.Push(obj.Ref)
	return obj, nil
}

// DropJoint implements skeleton.Factory: it disposes a bone created ahead of
// its node once no skin references it. Adopted joints are left alone.
func (r *Renderer) DropJoint(id ids.ID) {
	st, ok := r.nodes[id]
	if !ok || !st.placeholder {
		return
	}
	r.disposeObjects(r.graph.Dispose(st.obj.Ref))
}

// Target implements animation.Targets.
func (r *Renderer) Target(node ids.ID) (*scenegraph.Object, bool) {
	return r.Object(node)
}

// Morphables implements animation.Targets.
func (r *Renderer) Morphables(node ids.ID) []*scenegraph.Object {
	st, ok := r.nodes[node]
	if !ok {
		return nil
	}
	var out []*scenegraph.Object
	for _, o := range r.graph.Descendants(st.obj.Ref) {
		if o.Morphable() {
			out = append(out, o)
		}
	}
	return out
}
