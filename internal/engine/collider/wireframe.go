package collider

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// CircleSegments is the number of line segments per circle.
const CircleSegments = 24

// BoxWireframeVertexCount is the number of vertices of a box wireframe (12 edges × 2).
const BoxWireframeVertexCount = 24

// Wireframe returns line-list vertices [x, y, z] outlining s, centered on
// s.Center.
func Wireframe(s Shape) []float32 {
	var out []float32
	switch s.Kind {
	case protocol.ShapeBox:
		h := s.Size.Scale(0.5)
		out = boxLines(h.Scale(-1), h)
	case protocol.ShapeSphere:
		out = circle(nil, s.Radius, 0, axisY)
		out = circle(out, s.Radius, 0, axisX)
		out = circle(out, s.Radius, 0, axisZ)
	case protocol.ShapeCylinder:
		out = tube(nil, s.Radius, s.Height/2)
	case protocol.ShapeCapsule:
		half := math.Max(s.Height/2-s.Radius, 0)
		out = tube(nil, s.Radius, half)
		out = arc(out, s.Radius, half, axisZ)
		out = arc(out, s.Radius, half, axisX)
	case protocol.ShapeTrimesh:
		out = triangleEdges(s.Positions, s.Indices)
	case protocol.ShapeHull:
		out = pointBounds(s.Positions)
	}
	return offset(out, s.Center)
}

// boxLines creates the 12 edges of an axis-aligned box.
func boxLines(lo, hi math.Vec3) []float32 {
	minX, minY, minZ := lo.X, lo.Y, lo.Z
	maxX, maxY, maxZ := hi.X, hi.Y, hi.Z
	return []float32{
		// Bottom face
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

type axis uint8

const (
	axisX axis = iota
	axisY
	axisZ
)

// point maps circle coordinates (a, b) onto the plane normal to ax, shifted by h along ax.
func point(ax axis, a, b, h float32) (float32, float32, float32) {
	switch ax {
	case axisX:
		return h, a, b
	case axisY:
		return a, h, b
	default:
		return a, b, h
	}
}

// circle appends a full circle of radius r normal to ax, at height h along ax.
func circle(out []float32, r, h float32, ax axis) []float32 {
	return arcRange(out, r, h, ax, 0, 2*math32.Pi, CircleSegments)
}

func arcRange(out []float32, r, h float32, ax axis, from, to float32, segments int) []float32 {
	step := (to - from) / float32(segments)
	for i := 0; i < segments; i++ {
		a0 := from + step*float32(i)
		a1 := a0 + step
		x0, y0, z0 := point(ax, r*math32.Cos(a0), r*math32.Sin(a0), h)
		x1, y1, z1 := point(ax, r*math32.Cos(a1), r*math32.Sin(a1), h)
		out = append(out, x0, y0, z0, x1, y1, z1)
	}
	return out
}

// tube appends two horizontal rings at ±half and four vertical struts.
func tube(out []float32, r, half float32) []float32 {
	out = circle(out, r, half, axisY)
	out = circle(out, r, -half, axisY)
	for i := 0; i < 4; i++ {
		a := float32(i) * math32.Pi / 2
		x, z := r*math32.Cos(a), r*math32.Sin(a)
		out = append(out, x, -half, z, x, half, z)
	}
	return out
}

// arc appends the two hemispherical caps of a capsule in the plane normal to ax.
func arc(out []float32, r, half float32, ax axis) []float32 {
	segments := CircleSegments / 2
	start := len(out)
	out = arcRange(out, r, 0, ax, 0, math32.Pi, segments)
	out = arcRange(out, r, 0, ax, math32.Pi, 2*math32.Pi, segments)
	// Lift the upper half and lower the bottom half onto the cylinder ends.
	for i := start + 1; i < len(out); i += 3 {
		if out[i] >= 0 {
			out[i] += half
		} else {
			out[i] -= half
		}
	}
	return out
}

func triangleEdges(positions []float32, indices []uint32) []float32 {
	var out []float32
	vertex := func(i uint32) []float32 { return positions[i*3 : i*3+3] }
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := vertex(indices[t]), vertex(indices[t+1]), vertex(indices[t+2])
		out = append(out, a...)
		out = append(out, b...)
		out = append(out, b...)
		out = append(out, c...)
		out = append(out, c...)
		out = append(out, a...)
	}
	return out
}

func pointBounds(positions []float32) []float32 {
	if len(positions) < 3 {
		return nil
	}
	lo := math.Vec3{X: positions[0], Y: positions[1], Z: positions[2]}
	hi := lo
	for i := 3; i+2 < len(positions); i += 3 {
		lo = math.Vec3{X: math.Min(lo.X, positions[i]), Y: math.Min(lo.Y, positions[i+1]), Z: math.Min(lo.Z, positions[i+2])}
		hi = math.Vec3{X: math.Max(hi.X, positions[i]), Y: math.Max(hi.Y, positions[i+1]), Z: math.Max(hi.Z, positions[i+2])}
	}
	return boxLines(lo, hi)
}

func offset(v []float32, c math.Vec3) []float32 {
	if c == (math.Vec3{}) {
		return v
	}
	for i := 0; i+2 < len(v); i += 3 {
		v[i] += c.X
		v[i+1] += c.Y
		v[i+2] += c.Z
	}
	return v
}
