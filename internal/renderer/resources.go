package renderer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

func (r *Renderer) createAccessor(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	return r.accessors.Add(m.ID, m.Def.(*protocol.AccessorDef))
}

// disposeAccessor drops the buffer. Geometry already built from it keeps
// its own copy.
func (r *Renderer) disposeAccessor(msg protocol.Message) error {
	r.accessors.Remove(msg.Target())
	return nil
}

func (r *Renderer) createTexture(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	return r.materials.AddTexture(m.ID, m.Def.(*protocol.TextureDef))
}

func (r *Renderer) disposeTexture(msg protocol.Message) error {
	r.materials.RemoveTexture(msg.Target())
	return nil
}

func (r *Renderer) createMaterial(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	return r.materials.Add(m.ID, m.Def.(*protocol.MaterialDef))
}

// updateMaterial patches the base material and rebinds its primitives: a
// newly bound occlusion or normal map can change the variant they need.
func (r *Renderer) updateMaterial(msg protocol.Message) error {
	m := msg.(*protocol.Update)
	if _, ok := r.materials.Get(m.ID); !ok {
		return unbuilt(ids.KindMaterial, m.ID, "update")
	}
	if err := r.materials.Update(m.ID, m.Patch.(*protocol.MaterialPatch)); err != nil {
		return err
	}
	return r.rebindUsers(m.ID)
}

// disposeMaterial disposes a base material and its variants. Primitives that
// used it fall back to the default material.
func (r *Renderer) disposeMaterial(msg protocol.Message) error {
	id := msg.Target()
	if !r.materials.Remove(id) {
		return nil
	}
	for _, ps := range r.prims {
		if ps.base == id {
			ps.base = ids.None
		}
	}
	for _, st := range r.nodes {
		if st.material == id {
			st.material = ids.None
		}
	}
	if n := len(r.users[id]); n > 0 {
		r.log.Debug("material disposed while bound", zap.Stringer("id", id), zap.Int("primitives", n))
	}
	err := r.rebindUsers(id)
	delete(r.users, id)
	return err
}
