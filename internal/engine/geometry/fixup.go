package geometry

import (
	"github.com/Faultbox/scenemirror/internal/engine/material"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Prepare derives the variant key a primitive needs from its final attribute
// set and the base material it binds. The only mutation is to g: when an
// occlusion map is bound and there is no second UV channel, UV0 is
// duplicated into UV1. The base material is never touched.
func Prepare(g *Geometry, base *material.Material) material.VariantKey {
	key := material.VariantKey{Material: base.ID}

	if base.Map(protocol.SlotOcclusion) != nil {
		if uv0, ok := g.Attributes[protocol.AttrUV0]; ok && !g.Has(protocol.AttrUV1) {
			g.Attributes[protocol.AttrUV1] = &Attribute{
				Data:       append([]float32(nil), uv0.Data...),
				ItemSize:   uv0.ItemSize,
				Normalized: uv0.Normalized,
			}
		}
		key.UV2 = g.Has(protocol.AttrUV1)
	}

	if !g.Has(protocol.AttrNormal) {
		key.FlatShading = true
	}

	if g.Has(protocol.AttrColor) {
		key.VertexColors = true
	}

	if base.Map(protocol.SlotNormal) != nil && !g.Has(protocol.AttrTangent) {
		key.FlippedTangent = true
	}
	return key
}
