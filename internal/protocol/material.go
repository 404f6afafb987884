package protocol

import "github.com/Faultbox/scenemirror/internal/ids"

// AlphaMode controls how base color alpha is interpreted.
type AlphaMode uint8

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

// Wrap is a texture addressing mode.
type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClamp
	WrapMirror
)

// Filter is a texture filtering mode.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
	FilterLinearMipmapLinear
	FilterNearestMipmapNearest
)

// Sampler holds texture sampling parameters.
type Sampler struct {
	WrapS     Wrap
	WrapT     Wrap
	MagFilter Filter
	MinFilter Filter
}

// TextureInfo describes how a material slot samples its texture.
type TextureInfo struct {
	TexCoord int
	Sampler  Sampler
}

// TextureRef binds a texture to a material slot.
type TextureRef struct {
	Texture ids.ID
	Info    TextureInfo
}

// Slot names a material texture slot.
type Slot uint8

const (
	SlotBaseColor Slot = iota
	SlotMetallicRoughness
	SlotNormal
	SlotOcclusion
	SlotEmissive
	slotCount
)

var slotNames = [...]string{"baseColor", "metallicRoughness", "normal", "occlusion", "emissive"}

func (s Slot) String() string {
	if s < slotCount {
		return slotNames[s]
	}
	return "unknown"
}

// Slots lists every texture slot.
func Slots() []Slot {
	return []Slot{SlotBaseColor, SlotMetallicRoughness, SlotNormal, SlotOcclusion, SlotEmissive}
}

// MaterialDef is a PBR metallic-roughness material.
type MaterialDef struct {
	Name              string
	BaseColor         [4]float32
	Metallic          float32
	Roughness         float32
	Emissive          [3]float32
	NormalScale       float32
	OcclusionStrength float32
	AlphaMode         AlphaMode
	AlphaCutoff       float32
	DoubleSided       bool
	Textures          [slotCount]*TextureRef
}

// DefaultMaterialDef returns the factor defaults of an unspecified material.
func DefaultMaterialDef() MaterialDef {
	return MaterialDef{
		BaseColor:         [4]float32{1, 1, 1, 1},
		Metallic:          1,
		Roughness:         1,
		NormalScale:       1,
		OcclusionStrength: 1,
		AlphaCutoff:       0.5,
	}
}

func (*MaterialDef) Kind() ids.Kind { return ids.KindMaterial }

func (d *MaterialDef) clone() Definition {
	c := *d
	for i, ref := range d.Textures {
		if ref != nil {
			r := *ref
			c.Textures[i] = &r
		}
	}
	return &c
}

// MaterialPatch updates a material. Textures holds one optional per slot;
// Some(nil) unbinds the slot.
type MaterialPatch struct {
	Name              Optional[string]
	BaseColor         Optional[[4]float32]
	Metallic          Optional[float32]
	Roughness         Optional[float32]
	Emissive          Optional[[3]float32]
	NormalScale       Optional[float32]
	OcclusionStrength Optional[float32]
	AlphaMode         Optional[AlphaMode]
	AlphaCutoff       Optional[float32]
	DoubleSided       Optional[bool]
	Textures          [slotCount]Optional[*TextureRef]
}

func (*MaterialPatch) Kind() ids.Kind { return ids.KindMaterial }

func (p *MaterialPatch) clone() Patch {
	c := *p
	for i, opt := range p.Textures {
		if opt.Value != nil {
			r := *opt.Value
			c.Textures[i].Value = &r
		}
	}
	return &c
}

// TextureDef is an image handle plus default sampler.
type TextureDef struct {
	Name    string
	Image   string
	Width   int
	Height  int
	Sampler Sampler
}

func (*TextureDef) Kind() ids.Kind { return ids.KindTexture }

func (d *TextureDef) clone() Definition {
	c := *d
	return &c
}
