package document

import (
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// The remap helpers copy a definition with every handle replaced by the
// issued id. The document itself is never modified.

func (r *Result) material(def *protocol.MaterialDef) *protocol.MaterialDef {
	c := *def
	for i, ref := range def.Textures {
		if ref != nil {
			t := *ref
			t.Texture = r.ID(ref.Texture)
			c.Textures[i] = &t
		}
	}
	return &c
}

func (r *Result) attrs(m map[protocol.Attribute]ids.ID) map[protocol.Attribute]ids.ID {
	if m == nil {
		return nil
	}
	out := make(map[protocol.Attribute]ids.ID, len(m))
	for k, h := range m {
		out[k] = r.ID(h)
	}
	return out
}

func (r *Result) mesh(def *protocol.MeshDef) *protocol.MeshDef {
	c := *def
	c.Material = r.ID(def.Material)
	c.Weights = append([]float32(nil), def.Weights...)
	set, ok := def.Shape.(*protocol.PrimitiveSet)
	if !ok {
		return &c
	}

	out := &protocol.PrimitiveSet{Primitives: make([]protocol.PrimitiveDef, len(set.Primitives))}
	for i, p := range set.Primitives {
		q := p
		q.Attributes = r.attrs(p.Attributes)
		q.Indices = r.ID(p.Indices)
		q.Material = r.ID(p.Material)
		if p.Targets != nil {
			q.Targets = make([]map[protocol.Attribute]ids.ID, len(p.Targets))
			for j, t := range p.Targets {
				q.Targets[j] = r.attrs(t)
			}
		}
		if p.Skin != nil {
			s := &protocol.SkinDef{
				Joints:              make([]ids.ID, len(p.Skin.Joints)),
				InverseBindMatrices: r.ID(p.Skin.InverseBindMatrices),
			}
			for j, h := range p.Skin.Joints {
				s.Joints[j] = r.ID(h)
			}
			q.Skin = s
		}
		out.Primitives[i] = q
	}
	c.Shape = out
	return &c
}

func (r *Result) node(def *protocol.NodeDef) *protocol.NodeDef {
	c := *def
	c.Parent = r.ID(def.Parent)
	c.Mesh = r.ID(def.Mesh)
	c.Material = r.ID(def.Material)
	if def.Collider != nil {
		col := *def.Collider
		c.Collider = &col
	}
	return &c
}

func (r *Result) animation(def *protocol.AnimationDef) *protocol.AnimationDef {
	c := *def
	c.Channels = make([]protocol.ChannelDef, len(def.Channels))
	for i, ch := range def.Channels {
		ch.Target = r.ID(ch.Target)
		ch.Input = r.ID(ch.Input)
		ch.Output = r.ID(ch.Output)
		c.Channels[i] = ch
	}
	return &c
}
