// Package collider turns collider definitions into concrete shapes and
// debug wireframes.
package collider

import (
	"github.com/Faultbox/scenemirror/internal/engine/geometry"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

const opResolve = "resolve collider"

// Shape is a collider with concrete dimensions in world units.
type Shape struct {
	Kind protocol.ShapeKind
	// Size is the full box extent.
	Size   math.Vec3
	Radius float32
	// Height is the full height along Y, caps included for capsules.
	Height float32
	// Center offsets the shape from the node origin.
	Center math.Vec3

	// Positions and Indices are set for baked shapes. Indices is nil for hulls.
	Positions []float32
	Indices   []uint32
}

// Baked reports whether the shape carries vertex data for the physics side.
func (s Shape) Baked() bool {
	return s.Kind.Baked()
}

// Source is the mesh data an auto or baked collider is derived from.
type Source struct {
	// Geometries are the node's primitives in node-local space.
	Geometries []*geometry.Geometry
	// Scale is the node's accumulated global scale.
	Scale math.Vec3
}

func (src Source) bounds() (geometry.Bounds, bool) {
	var b geometry.Bounds
	found := false
	for _, g := range src.Geometries {
		if g == nil || g.VertexCount() == 0 {
			continue
		}
		if !found {
			b = g.Bounds
			found = true
			continue
		}
		b = b.Union(g.Bounds)
	}
	return b, found
}

// Resolve produces the concrete shape of def for node. Explicit analytic
// shapes are taken as given. Auto shapes are fitted to the mesh bounds
// multiplied by the global scale on each axis, so non-uniform scale stretches
// them accordingly. It reports false when the shape needs mesh data that the
// node does not have yet.
func Resolve(node ids.ID, def protocol.ColliderDef, src Source) (Shape, bool, error) {
	kind := def.Resolved()
	if def.Shape == protocol.ShapeAuto && kind == protocol.ShapeAuto {
		return Shape{}, false, ids.Invalid(ids.KindNode, node, opResolve, "auto collider needs a concrete auto kind")
	}

	if def.Shape != protocol.ShapeAuto && !kind.Baked() {
		return explicit(node, def)
	}

	if kind.Baked() {
		s, ok := bake(kind, src)
		return s, ok, nil
	}

	b, ok := src.bounds()
	if !ok {
		return Shape{}, false, nil
	}
	scale := src.Scale.Abs()
	size := b.Size().Mul(scale)
	s := Shape{Kind: kind, Center: b.Center().Mul(src.Scale)}
	switch kind {
	case protocol.ShapeBox:
		s.Size = size
	case protocol.ShapeSphere:
		s.Radius = math.Max(size.X, math.Max(size.Y, size.Z)) / 2
	case protocol.ShapeCapsule, protocol.ShapeCylinder:
		s.Radius = math.Max(size.X, size.Z) / 2
		s.Height = size.Y
	default:
		return Shape{}, false, ids.Invalid(ids.KindNode, node, opResolve, "unsupported auto kind %s", kind)
	}
	return s, true, nil
}

func explicit(node ids.ID, def protocol.ColliderDef) (Shape, bool, error) {
	s := Shape{Kind: def.Shape, Size: math.V3(def.Size), Radius: def.Radius, Height: def.Height}
	switch def.Shape {
	case protocol.ShapeBox:
		if s.Size.X < 0 || s.Size.Y < 0 || s.Size.Z < 0 {
			return Shape{}, false, ids.Invalid(ids.KindNode, node, opResolve, "negative box size %v", def.Size)
		}
	case protocol.ShapeSphere, protocol.ShapeCapsule, protocol.ShapeCylinder:
		if s.Radius < 0 || s.Height < 0 {
			return Shape{}, false, ids.Invalid(ids.KindNode, node, opResolve, "negative radius or height")
		}
	default:
		return Shape{}, false, ids.Invalid(ids.KindNode, node, opResolve, "unknown shape %s", def.Shape)
	}
	return s, true, nil
}

// bake flattens every primitive into one scaled vertex buffer. Trimeshes
// keep triangle indices; hulls only need the point cloud.
func bake(kind protocol.ShapeKind, src Source) (Shape, bool) {
	s := Shape{Kind: kind}
	var base uint32
	for _, g := range src.Geometries {
		if g == nil {
			continue
		}
		pos := g.Positions()
		if len(pos) == 0 {
			continue
		}
		for i := 0; i+2 < len(pos); i += 3 {
			s.Positions = append(s.Positions, pos[i]*src.Scale.X, pos[i+1]*src.Scale.Y, pos[i+2]*src.Scale.Z)
		}
		if kind == protocol.ShapeTrimesh {
			n := uint32(len(pos) / 3)
			if g.Index != nil {
				for _, idx := range g.Index {
					s.Indices = append(s.Indices, base+idx)
				}
			} else {
				for i := uint32(0); i < n; i++ {
					s.Indices = append(s.Indices, base+i)
				}
			}
			base += n
		}
	}
	if len(s.Positions) == 0 {
		return Shape{}, false
	}
	return s, true
}
