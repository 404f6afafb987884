package protocol

import "github.com/Faultbox/scenemirror/internal/ids"

// Attribute names a per-vertex attribute.
type Attribute string

const (
	AttrPosition Attribute = "POSITION"
	AttrNormal   Attribute = "NORMAL"
	AttrTangent  Attribute = "TANGENT"
	AttrUV0      Attribute = "TEXCOORD_0"
	AttrUV1      Attribute = "TEXCOORD_1"
	AttrColor    Attribute = "COLOR_0"
	AttrJoints   Attribute = "JOINTS_0"
	AttrWeights  Attribute = "WEIGHTS_0"
)

// DrawMode is the primitive topology.
type DrawMode uint8

const (
	ModeTriangles DrawMode = iota
	ModeTriangleStrip
	ModeTriangleFan
	ModeLines
	ModeLineStrip
	ModeLineLoop
	ModePoints
)

// Shape is the geometry source of a mesh: one of *Box, *Sphere, *Cylinder
// or *PrimitiveSet.
type Shape interface {
	isShape()
	cloneShape() Shape
}

// Box is a parametric box centered on the origin.
type Box struct {
	Size           [3]float32
	WidthSegments  int
	HeightSegments int
	DepthSegments  int
}

// Sphere is a parametric UV sphere.
type Sphere struct {
	Radius         float32
	WidthSegments  int
	HeightSegments int
}

// Cylinder is a parametric cylinder along Y, centered on the origin.
type Cylinder struct {
	RadiusTop      float32
	RadiusBottom   float32
	Height         float32
	RadialSegments int
}

// PrimitiveSet is a mesh assembled from accessors.
type PrimitiveSet struct {
	Primitives []PrimitiveDef
}

func (*Box) isShape()          {}
func (*Sphere) isShape()       {}
func (*Cylinder) isShape()     {}
func (*PrimitiveSet) isShape() {}

func (b *Box) cloneShape() Shape      { c := *b; return &c }
func (s *Sphere) cloneShape() Shape   { c := *s; return &c }
func (c *Cylinder) cloneShape() Shape { d := *c; return &d }

func (p *PrimitiveSet) cloneShape() Shape {
	c := &PrimitiveSet{Primitives: make([]PrimitiveDef, len(p.Primitives))}
	for i := range p.Primitives {
		c.Primitives[i] = p.Primitives[i].clone()
	}
	return c
}

// SkinDef binds a primitive to an ordered joint list.
type SkinDef struct {
	Joints              []ids.ID
	InverseBindMatrices ids.ID
}

// PrimitiveDef is one draw call worth of geometry.
type PrimitiveDef struct {
	Attributes map[Attribute]ids.ID
	Indices    ids.ID
	Material   ids.ID
	Mode       DrawMode
	// Targets holds one attribute set per morph target. Only POSITION,
	// NORMAL and TANGENT deltas are meaningful.
	Targets []map[Attribute]ids.ID
	Skin    *SkinDef
}

func (p PrimitiveDef) clone() PrimitiveDef {
	c := p
	c.Attributes = cloneAttrs(p.Attributes)
	if p.Targets != nil {
		c.Targets = make([]map[Attribute]ids.ID, len(p.Targets))
		for i, t := range p.Targets {
			c.Targets[i] = cloneAttrs(t)
		}
	}
	if p.Skin != nil {
		s := *p.Skin
		s.Joints = append([]ids.ID(nil), p.Skin.Joints...)
		c.Skin = &s
	}
	return c
}

func cloneAttrs(m map[Attribute]ids.ID) map[Attribute]ids.ID {
	if m == nil {
		return nil
	}
	out := make(map[Attribute]ids.ID, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MeshDef creates a mesh. Material applies to parametric shapes; primitives
// carry their own. Weights are the default morph target weights.
type MeshDef struct {
	Name     string
	Shape    Shape
	Material ids.ID
	Weights  []float32
}

func (*MeshDef) Kind() ids.Kind { return ids.KindMesh }

func (d *MeshDef) clone() Definition {
	c := *d
	if d.Shape != nil {
		c.Shape = d.Shape.cloneShape()
	}
	c.Weights = append([]float32(nil), d.Weights...)
	return &c
}

// MeshPatch updates a mesh.
type MeshPatch struct {
	Name     Optional[string]
	Shape    Optional[Shape]
	Material Optional[ids.ID]
	Weights  Optional[[]float32]
}

func (*MeshPatch) Kind() ids.Kind { return ids.KindMesh }

func (p *MeshPatch) clone() Patch {
	c := *p
	if p.Shape.Value != nil {
		c.Shape.Value = p.Shape.Value.cloneShape()
	}
	c.Weights.Value = append([]float32(nil), p.Weights.Value...)
	return &c
}
