package geometry

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Default tessellation used when a shape leaves a parameter at zero.
const (
	DefaultSphereWidthSegments  = 32
	DefaultSphereHeightSegments = 16
	DefaultRadialSegments       = 32
)

type builder struct {
	positions []float32
	normals   []float32
	uvs       []float32
	indices   []uint32
	count     uint32
}

func (b *builder) vertex(x, y, z, nx, ny, nz, u, v float32) uint32 {
	b.positions = append(b.positions, x, y, z)
	b.normals = append(b.normals, nx, ny, nz)
	b.uvs = append(b.uvs, u, v)
	b.count++
	return b.count - 1
}

func (b *builder) geometry() *Geometry {
	g := newGeometry()
	g.Set(protocol.AttrPosition, b.positions, 3)
	g.Set(protocol.AttrNormal, b.normals, 3)
	g.Set(protocol.AttrUV0, b.uvs, 2)
	g.Index = b.indices
	g.Mode = protocol.ModeTriangles
	g.ComputeBounds()
	return g
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultF(v, def float32) float32 {
	if v <= 0 {
		return def
	}
	return v
}

// NewBox tessellates a box centered on the origin.
func NewBox(p protocol.Box) *Geometry {
	w := orDefaultF(p.Size[0], 1)
	h := orDefaultF(p.Size[1], 1)
	d := orDefaultF(p.Size[2], 1)
	ws := orDefault(p.WidthSegments, 1)
	hs := orDefault(p.HeightSegments, 1)
	ds := orDefault(p.DepthSegments, 1)

	b := &builder{}
	// Axis indices: 0=x 1=y 2=z.
	b.plane(2, 1, 0, -1, -1, d, h, w, ds, hs)
	b.plane(2, 1, 0, 1, -1, d, h, -w, ds, hs)
	b.plane(0, 2, 1, 1, 1, w, d, h, ws, ds)
	b.plane(0, 2, 1, 1, -1, w, d, -h, ws, ds)
	b.plane(0, 1, 2, 1, -1, w, h, d, ws, hs)
	b.plane(0, 1, 2, -1, -1, w, h, -d, ws, hs)
	return b.geometry()
}

// plane emits one face of a box. u and v are the in-plane axes, w the
// normal axis; depth carries the sign of the face.
func (b *builder) plane(u, v, w int, udir, vdir, width, height, depth float32, gridX, gridY int) {
	segW := width / float32(gridX)
	segH := height / float32(gridY)
	start := b.count
	gridX1 := uint32(gridX + 1)

	normalW := float32(1)
	if depth < 0 {
		normalW = -1
	}

	for iy := 0; iy <= gridY; iy++ {
		y := float32(iy)*segH - height/2
		for ix := 0; ix <= gridX; ix++ {
			x := float32(ix)*segW - width/2
			var pos, nrm [3]float32
			pos[u] = x * udir
			pos[v] = y * vdir
			pos[w] = depth / 2
			nrm[w] = normalW
			b.vertex(pos[0], pos[1], pos[2], nrm[0], nrm[1], nrm[2],
				float32(ix)/float32(gridX), 1-float32(iy)/float32(gridY))
		}
	}

	for iy := uint32(0); iy < uint32(gridY); iy++ {
		for ix := uint32(0); ix < uint32(gridX); ix++ {
			a := start + ix + gridX1*iy
			bb := start + ix + gridX1*(iy+1)
			c := start + (ix + 1) + gridX1*(iy+1)
			d := start + (ix + 1) + gridX1*iy
			b.indices = append(b.indices, a, bb, d, bb, c, d)
		}
	}
}

// NewSphere tessellates a UV sphere centered on the origin.
func NewSphere(p protocol.Sphere) *Geometry {
	r := orDefaultF(p.Radius, 1)
	ws := max(orDefault(p.WidthSegments, DefaultSphereWidthSegments), 3)
	hs := max(orDefault(p.HeightSegments, DefaultSphereHeightSegments), 2)

	b := &builder{}
	grid := make([][]uint32, hs+1)
	for iy := 0; iy <= hs; iy++ {
		v := float32(iy) / float32(hs)

		// Pole vertices shift their u so the seam texture lines up.
		var uOffset float32
		switch iy {
		case 0:
			uOffset = 0.5 / float32(ws)
		case hs:
			uOffset = -0.5 / float32(ws)
		}

		row := make([]uint32, ws+1)
		for ix := 0; ix <= ws; ix++ {
			u := float32(ix) / float32(ws)
			sinT := math32.Sin(v * math32.Pi)
			x := -r * math32.Cos(u*2*math32.Pi) * sinT
			y := r * math32.Cos(v*math32.Pi)
			z := r * math32.Sin(u*2*math32.Pi) * sinT
			row[ix] = b.vertex(x, y, z, x/r, y/r, z/r, u+uOffset, 1-v)
		}
		grid[iy] = row
	}

	for iy := 0; iy < hs; iy++ {
		for ix := 0; ix < ws; ix++ {
			a := grid[iy][ix+1]
			bb := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			if iy != 0 {
				b.indices = append(b.indices, a, bb, d)
			}
			if iy != hs-1 {
				b.indices = append(b.indices, bb, c, d)
			}
		}
	}
	return b.geometry()
}

// NewCylinder tessellates a capped cylinder along Y, centered on the origin.
func NewCylinder(p protocol.Cylinder) *Geometry {
	rt := p.RadiusTop
	rb := p.RadiusBottom
	if rt <= 0 && rb <= 0 {
		rt, rb = 1, 1
	}
	h := orDefaultF(p.Height, 1)
	rs := max(orDefault(p.RadialSegments, DefaultRadialSegments), 3)
	half := h / 2
	slope := (rb - rt) / h

	b := &builder{}
	rows := [2][]uint32{}
	for y := 0; y <= 1; y++ {
		v := float32(y)
		radius := v*(rb-rt) + rt
		row := make([]uint32, rs+1)
		for x := 0; x <= rs; x++ {
			u := float32(x) / float32(rs)
			theta := u * 2 * math32.Pi
			sinT, cosT := math32.Sin(theta), math32.Cos(theta)
			nl := math32.Sqrt(sinT*sinT + slope*slope + cosT*cosT)
			row[x] = b.vertex(radius*sinT, -v*h+half, radius*cosT,
				sinT/nl, slope/nl, cosT/nl, u, 1-v)
		}
		rows[y] = row
	}
	for x := 0; x < rs; x++ {
		a, bb := rows[0][x], rows[1][x]
		c, d := rows[1][x+1], rows[0][x+1]
		b.indices = append(b.indices, a, bb, d, bb, c, d)
	}

	if rt > 0 {
		b.cap(true, rt, half, rs)
	}
	if rb > 0 {
		b.cap(false, rb, half, rs)
	}
	return b.geometry()
}

func (b *builder) cap(top bool, radius, half float32, segments int) {
	sign := float32(-1)
	if top {
		sign = 1
	}

	centerStart := b.count
	for x := 1; x <= segments; x++ {
		b.vertex(0, half*sign, 0, 0, sign, 0, 0.5, 0.5)
	}
	centerEnd := b.count

	for x := 0; x <= segments; x++ {
		theta := float32(x) / float32(segments) * 2 * math32.Pi
		sinT, cosT := math32.Sin(theta), math32.Cos(theta)
		b.vertex(radius*sinT, half*sign, radius*cosT, 0, sign, 0,
			cosT*0.5+0.5, sinT*0.5*sign+0.5)
	}

	for x := uint32(0); x < uint32(segments); x++ {
		c := centerStart + x
		i := centerEnd + x
		if top {
			b.indices = append(b.indices, i, i+1, c)
		} else {
			b.indices = append(b.indices, i+1, i, c)
		}
	}
}
