package protocol

import "github.com/Faultbox/scenemirror/internal/ids"

// TRS is a local transform: translation, rotation quaternion [x y z w], scale.
type TRS struct {
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
}

// IdentityTRS returns the transform with no translation, rotation or scale.
func IdentityTRS() TRS {
	return TRS{
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
}

// ShapeKind selects a collider shape.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	ShapeCylinder
	ShapeHull
	ShapeTrimesh
	ShapeAuto
)

var shapeNames = [...]string{"box", "sphere", "capsule", "cylinder", "hull", "trimesh", "auto"}

func (s ShapeKind) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// Baked reports whether the physics side needs vertex data for this shape
// instead of an analytic primitive.
func (s ShapeKind) Baked() bool {
	return s == ShapeHull || s == ShapeTrimesh
}

// ColliderDef describes a physics collider attached to a node.
// For ShapeAuto the concrete shape is Auto and its dimensions are derived
// from the node's mesh bounds and accumulated scale.
type ColliderDef struct {
	Shape ShapeKind
	Auto  ShapeKind
	// Size is the full extent of a box.
	Size   [3]float32
	Radius float32
	// Height is the full height of a capsule or cylinder.
	Height float32
}

// Resolved returns the shape that is actually built, following Auto.
func (c ColliderDef) Resolved() ShapeKind {
	if c.Shape == ShapeAuto {
		return c.Auto
	}
	return c.Shape
}

// NodeDef creates a node. Parent None attaches to the implicit root.
type NodeDef struct {
	Name      string
	Parent    ids.ID
	Transform TRS
	Mesh      ids.ID
	Material  ids.ID
	Collider  *ColliderDef
	Hidden    bool
}

func (*NodeDef) Kind() ids.Kind { return ids.KindNode }

func (d *NodeDef) clone() Definition {
	c := *d
	if d.Collider != nil {
		col := *d.Collider
		c.Collider = &col
	}
	return &c
}

// NodePatch updates a node. Unset fields are left untouched.
type NodePatch struct {
	Name        Optional[string]
	Parent      Optional[ids.ID]
	Translation Optional[[3]float32]
	Rotation    Optional[[4]float32]
	Scale       Optional[[3]float32]
	Mesh        Optional[ids.ID]
	Material    Optional[ids.ID]
	Collider    Optional[*ColliderDef]
	Hidden      Optional[bool]
}

func (*NodePatch) Kind() ids.Kind { return ids.KindNode }

func (p *NodePatch) clone() Patch {
	c := *p
	if p.Collider.Value != nil {
		col := *p.Collider.Value
		c.Collider.Value = &col
	}
	return &c
}
