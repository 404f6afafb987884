// Package geometry builds renderer geometry buffers from parametric shapes
// or accessor-backed primitives.
package geometry

import (
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Attribute is a flat per-vertex buffer.
type Attribute struct {
	Data       []float32
	ItemSize   int
	Normalized bool
}

// Count returns the number of vertices in the buffer.
func (a *Attribute) Count() int {
	if a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

func (a *Attribute) clone() *Attribute {
	return &Attribute{Data: append([]float32(nil), a.Data...), ItemSize: a.ItemSize, Normalized: a.Normalized}
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Size returns the extent along each axis.
func (b Bounds) Size() math.Vec3 {
	return math.Vec3{X: b.Max[0] - b.Min[0], Y: b.Max[1] - b.Min[1], Z: b.Max[2] - b.Min[2]}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return math.Vec3{X: (b.Max[0] + b.Min[0]) / 2, Y: (b.Max[1] + b.Min[1]) / 2, Z: (b.Max[2] + b.Min[2]) / 2}
}

// Union returns the box enclosing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	for k := 0; k < 3; k++ {
		b.Min[k] = math.Min(b.Min[k], o.Min[k])
		b.Max[k] = math.Max(b.Max[k], o.Max[k])
	}
	return b
}

// Geometry is the GPU-facing buffer set of one primitive.
type Geometry struct {
	Attributes map[protocol.Attribute]*Attribute
	// Index is nil for non-indexed draws.
	Index []uint32
	Mode  protocol.DrawMode

	// MorphAttributes holds one buffer per target for each morphed attribute.
	MorphAttributes map[protocol.Attribute][]*Attribute
	// MorphTargetsRelative is set when morph buffers are deltas.
	MorphTargetsRelative bool

	Bounds   Bounds
	Disposed bool
}

func newGeometry() *Geometry {
	return &Geometry{
		Attributes:      make(map[protocol.Attribute]*Attribute),
		MorphAttributes: make(map[protocol.Attribute][]*Attribute),
	}
}

// NewLines wraps a line-list position buffer, two vertices per segment.
func NewLines(positions []float32) *Geometry {
	g := newGeometry()
	g.Set(protocol.AttrPosition, positions, 3)
	g.Mode = protocol.ModeLines
	g.ComputeBounds()
	return g
}

// Has reports whether the geometry carries attr.
func (g *Geometry) Has(attr protocol.Attribute) bool {
	_, ok := g.Attributes[attr]
	return ok
}

// Set stores a buffer for attr.
func (g *Geometry) Set(attr protocol.Attribute, data []float32, itemSize int) {
	g.Attributes[attr] = &Attribute{Data: data, ItemSize: itemSize}
}

// VertexCount returns the number of vertices described by POSITION.
func (g *Geometry) VertexCount() int {
	if pos, ok := g.Attributes[protocol.AttrPosition]; ok {
		return pos.Count()
	}
	return 0
}

// MorphTargetCount returns the number of morph targets.
func (g *Geometry) MorphTargetCount() int {
	n := 0
	for _, list := range g.MorphAttributes {
		n = math.Max(n, len(list))
	}
	return n
}

// Positions returns the raw POSITION buffer.
func (g *Geometry) Positions() []float32 {
	if pos, ok := g.Attributes[protocol.AttrPosition]; ok {
		return pos.Data
	}
	return nil
}

// ComputeBounds recalculates Bounds from POSITION.
func (g *Geometry) ComputeBounds() {
	b := Bounds{
		Min: [3]float32{1e10, 1e10, 1e10},
		Max: [3]float32{-1e10, -1e10, -1e10},
	}
	pos := g.Positions()
	if len(pos) < 3 {
		g.Bounds = Bounds{}
		return
	}
	for i := 0; i+2 < len(pos); i += 3 {
		for k := 0; k < 3; k++ {
			b.Min[k] = math.Min(b.Min[k], pos[i+k])
			b.Max[k] = math.Max(b.Max[k], pos[i+k])
		}
	}
	g.Bounds = b
}

// Clone returns a deep copy. The copy is never disposed.
func (g *Geometry) Clone() *Geometry {
	c := newGeometry()
	for name, a := range g.Attributes {
		c.Attributes[name] = a.clone()
	}
	for name, list := range g.MorphAttributes {
		out := make([]*Attribute, len(list))
		for i, a := range list {
			out[i] = a.clone()
		}
		c.MorphAttributes[name] = out
	}
	if g.Index != nil {
		c.Index = append([]uint32(nil), g.Index...)
	}
	c.Mode = g.Mode
	c.MorphTargetsRelative = g.MorphTargetsRelative
	c.Bounds = g.Bounds
	return c
}

// Dispose releases the geometry. Disposing twice is a no-op.
func (g *Geometry) Dispose() bool {
	if g.Disposed {
		return false
	}
	g.Disposed = true
	return true
}
