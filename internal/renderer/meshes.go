package renderer

import (
	"github.com/Faultbox/scenemirror/internal/engine/deps"
	"github.com/Faultbox/scenemirror/internal/engine/geometry"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// meshState holds the built parts of a mesh. Nodes instantiate clones of
// the parts so every primitive object owns its geometry.
type meshState struct {
	id    ids.ID
	def   *protocol.MeshDef
	parts []geometry.Part
	users map[ids.ID]struct{}
}

// primState tracks one primitive object.
type primState struct {
	obj  *scenegraph.Object
	node ids.ID
	mesh ids.ID
	part geometry.Part
	// base is the material the primitive asked for before node overrides
	// and variant fixups.
	base ids.ID
	// bound is the base material id the current binding derives from.
	bound ids.ID
}

func (r *Renderer) createMesh(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	def := m.Def.(*protocol.MeshDef)
	if _, ok := r.meshes[m.ID]; ok {
		return ids.Protocol(ids.KindMesh, m.ID, "create", "duplicate create")
	}
	parts, err := geometry.Build(m.ID, def, r.accessors)
	if err != nil {
		return err
	}
	r.meshes[m.ID] = &meshState{id: m.ID, def: def, parts: parts, users: make(map[ids.ID]struct{})}
	return nil
}

func (r *Renderer) updateMesh(msg protocol.Message) error {
	m := msg.(*protocol.Update)
	p := m.Patch.(*protocol.MeshPatch)
	ms, ok := r.meshes[m.ID]
	if !ok {
		return unbuilt(ids.KindMesh, m.ID, "update")
	}

	def := *ms.def
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
	parts, err := geometry.Build(m.ID, &def, r.accessors)
	if err != nil {
		return err
	}
	ms.def = &def
	ms.parts = parts

	var firstErr error
	for node := range ms.users {
		st := r.nodes[node]
		if err := r.instantiate(st, ms, "update mesh"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Renderer) disposeMesh(msg protocol.Message) error {
	ms, ok := r.meshes[msg.Target()]
	if !ok {
		return nil
	}
	for node := range ms.users {
		if st, ok := r.nodes[node]; ok {
			r.clearPrimitives(st)
			st.mesh = ids.None
			r.deps.Touch(deps.Source{ID: node, Field: deps.FieldMesh})
		}
	}
	delete(r.meshes, ms.id)
	return nil
}

// setMesh binds mesh to a node, replacing its primitives.
func (r *Renderer) setMesh(st *nodeState, mesh ids.ID, op string) error {
	if old, ok := r.meshes[st.mesh]; ok {
		delete(old.users, st.id)
	}
	r.clearPrimitives(st)
	st.mesh = ids.None
	defer r.deps.Touch(deps.Source{ID: st.id, Field: deps.FieldMesh})

	if !mesh.Valid() {
		return nil
	}
	ms, ok := r.meshes[mesh]
	if !ok {
		return ids.Missing(ids.KindNode, st.id, op, ids.KindMesh, mesh)
	}
	st.mesh = mesh
	ms.users[st.id] = struct{}{}
	return r.instantiate(st, ms, op)
}

// instantiate rebuilds st's primitive objects from the mesh parts.
func (r *Renderer) instantiate(st *nodeState, ms *meshState, op string) error {
	r.clearPrimitives(st)
	defer r.touchMorphables(st.obj)

	var firstErr error
	for _, part := range ms.parts {
		obj, err := r.graph.Create(scenegraph.KindPrimitive, ms.id, st.obj.Ref)
		if err != nil {
			return ids.Protocol(ids.KindNode, st.id, op, "%v", err)
		}
		obj.Name = ms.def.Name
		obj.Geometry = part.Geometry.Clone()
		if n := obj.Geometry.MorphTargetCount(); n > 0 {
			obj.MorphWeights = make([]float32, n)
			copy(obj.MorphWeights, ms.def.Weights)
		}

		ps := &primState{obj: obj, node: st.id, mesh: ms.id, part: part, base: part.Material}
		r.prims[obj.Ref] = ps
		st.prims = append(st.prims, obj)
		r.queue.Push(obj.Ref)

		if err := r.bindMaterial(obj); err != nil && firstErr == nil {
			firstErr = err
		}
		if part.Skin != nil {
			r.deps.Depend(skeletonKey(obj), jointSources(part.Skin)...)
			if _, err := r.skeletons.Register(obj, ms.id, part.Skin); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func skeletonKey(obj *scenegraph.Object) deps.Derived {
	return deps.Derived{Kind: deps.DerivedSkeleton, Key: uint64(obj.Ref)}
}

func jointSources(skin *protocol.SkinDef) []deps.Source {
	out := make([]deps.Source, len(skin.Joints))
	for i, j := range skin.Joints {
		out[i] = deps.Source{ID: j, Field: deps.FieldPresence}
	}
	return out
}

// clearPrimitives disposes st's primitive objects.
func (r *Renderer) clearPrimitives(st *nodeState) {
	prims := st.prims
	if len(prims) == 0 {
		return
	}
	st.prims = nil
	for _, prim := range prims {
		r.disposeObjects(r.graph.Dispose(prim.Ref))
	}
	r.touchMorphables(st.obj)
}

// forgetPrimitive drops every bookkeeping entry of a disposed primitive.
func (r *Renderer) forgetPrimitive(obj *scenegraph.Object) {
	ps, ok := r.prims[obj.Ref]
	if !ok {
		return
	}
	if set, ok := r.users[ps.bound]; ok {
		delete(set, obj.Ref)
	}
	r.skeletons.Forget(obj.Ref)
	r.deps.Forget(skeletonKey(obj))
	delete(r.prims, obj.Ref)
	if st, ok := r.nodes[ps.node]; ok {
		for i, p := range st.prims {
			if p == obj {
				st.prims = append(st.prims[:i], st.prims[i+1:]...)
				break
			}
		}
	}
}

// bindMaterial binds the material variant a primitive needs: the node's
// override or the primitive's own material, patched for the geometry.
func (r *Renderer) bindMaterial(obj *scenegraph.Object) error {
	ps, ok := r.prims[obj.Ref]
	if !ok {
		return nil
	}
	want := ps.base
	if st, ok := r.nodes[ps.node]; ok && st.material.Valid() {
		want = st.material
	}

	base, err := r.materials.Resolve(ids.KindNode, ps.node, "bind material", want)
	if err != nil {
		// Keep the primitive drawable with the default material.
		want = ids.None
		base = r.materials.Fallback()
	}
	key := geometry.Prepare(obj.Geometry, base)
	bound, verr := r.materials.Variant(base, key)
	if verr != nil {
		return verr
	}

	if set, ok := r.users[ps.bound]; ok {
		delete(set, obj.Ref)
	}
	ps.bound = want
	set, ok := r.users[want]
	if !ok {
		set = make(map[scenegraph.Ref]struct{})
		r.users[want] = set
	}
	set[obj.Ref] = struct{}{}
	obj.Material = bound
	return err
}

// rebindUsers re-derives the binding of every primitive bound to material.
func (r *Renderer) rebindUsers(material ids.ID) error {
	refs := make([]scenegraph.Ref, 0, len(r.users[material]))
	for ref := range r.users[material] {
		refs = append(refs, ref)
	}
	var firstErr error
	for _, ref := range refs {
		if obj, ok := r.graph.Get(ref); ok {
			if err := r.bindMaterial(obj); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
