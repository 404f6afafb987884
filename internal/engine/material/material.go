// Package material turns material definitions into renderer-side materials
// and caches structurally patched variants of them.
package material

import (
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Texture is the renderer-side texture object.
type Texture struct {
	ID       ids.ID
	Name     string
	Image    string
	Width    int
	Height   int
	Sampler  protocol.Sampler
	Disposed bool
}

// Binding attaches a shared texture to a material slot.
type Binding struct {
	Texture *Texture
	Info    protocol.TextureInfo
}

// Material is the renderer-side material. Base materials mirror a
// MaterialDef; variants are clones with runtime-only fixups applied.
type Material struct {
	ID                ids.ID
	Name              string
	BaseColor         [4]float32
	Metallic          float32
	Roughness         float32
	Emissive          [3]float32
	NormalScale       [2]float32
	OcclusionStrength float32
	AlphaMode         protocol.AlphaMode
	AlphaCutoff       float32
	DoubleSided       bool
	Maps              [5]*Binding

	// Runtime-only state driven by geometry, never set on a base material.
	UV2            bool
	FlatShading    bool
	VertexColors   bool
	FlippedTangent bool

	// Version increments whenever the material changes and needs re-upload.
	Version  int
	Variant  bool
	Disposed bool
}

// NewDefault returns the fallback material used when a primitive names none.
func NewDefault(baseColor [4]float32) *Material {
	def := protocol.DefaultMaterialDef()
	def.Name = "default"
	def.BaseColor = baseColor
	m := &Material{}
	m.apply(&def, nil)
	return m
}

// Map returns the binding for slot, or nil.
func (m *Material) Map(slot protocol.Slot) *Binding {
	return m.Maps[slot]
}

// apply copies every factor of def. Textures are resolved through lookup.
func (m *Material) apply(def *protocol.MaterialDef, lookup func(ids.ID) *Texture) {
	m.Name = def.Name
	m.BaseColor = def.BaseColor
	m.Metallic = def.Metallic
	m.Roughness = def.Roughness
	m.Emissive = def.Emissive
	m.NormalScale = [2]float32{def.NormalScale, def.NormalScale}
	m.OcclusionStrength = def.OcclusionStrength
	m.AlphaMode = def.AlphaMode
	m.AlphaCutoff = def.AlphaCutoff
	m.DoubleSided = def.DoubleSided
	for i, ref := range def.Textures {
		m.Maps[i] = nil
		if ref != nil && lookup != nil {
			m.Maps[i] = &Binding{Texture: lookup(ref.Texture), Info: ref.Info}
		}
	}
	m.Version++
}
