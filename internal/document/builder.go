package document

import (
	"fmt"
	"math/rand/v2"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Color adds a plain material.
func (d *Document) Color(name string, rgba [4]float32) ids.ID {
	def := protocol.DefaultMaterialDef()
	def.Name = name
	def.BaseColor = rgba
	def.Metallic = 0
	def.Roughness = 0.8
	return d.AddMaterial(name, &def)
}

// BoxMesh adds a box mesh.
func (d *Document) BoxMesh(name string, size [3]float32, material ids.ID) ids.ID {
	return d.AddMesh(name, &protocol.MeshDef{Name: name, Shape: &protocol.Box{Size: size}, Material: material})
}

// SphereMesh adds a sphere mesh.
func (d *Document) SphereMesh(name string, radius float32, material ids.ID) ids.ID {
	return d.AddMesh(name, &protocol.MeshDef{
		Name:     name,
		Shape:    &protocol.Sphere{Radius: radius, WidthSegments: 16, HeightSegments: 12},
		Material: material,
	})
}

// Group adds an empty node at translation.
func (d *Document) Group(name string, parent ids.ID, translation [3]float32) ids.ID {
	return d.Instance(name, parent, ids.None, translation)
}

// Instance adds a node drawing mesh at translation.
func (d *Document) Instance(name string, parent, mesh ids.ID, translation [3]float32) ids.ID {
	tr := protocol.IdentityTRS()
	tr.Translation = translation
	return d.AddNode(name, &protocol.NodeDef{Name: name, Parent: parent, Mesh: mesh, Transform: tr})
}

// SetCollider attaches a collider to a node already in the document.
func (d *Document) SetCollider(node ids.ID, c protocol.ColliderDef) bool {
	for _, e := range d.Nodes {
		if e.Handle == node {
			e.Def.Collider = &c
			return true
		}
	}
	return false
}

// SkinnedStrip adds a vertical strip of quads skinned to a chain of bones
// one unit apart, rooted at parent. It returns the strip node and the
// joint nodes from the base up.
func (d *Document) SkinnedStrip(name string, parent ids.ID, bones int, material ids.ID) (ids.ID, []ids.ID) {
	if bones < 1 {
		bones = 1
	}
	joints := make([]ids.ID, bones)
	prev := parent
	for i := range joints {
		y := float32(1)
		if i == 0 {
			y = 0
		}
		joints[i] = d.Group(fmt.Sprintf("%s.bone%d", name, i), prev, [3]float32{0, y, 0})
		prev = joints[i]
	}

	levels := bones + 1
	pos := make([]float32, 0, levels*6)
	jointIdx := make([]uint32, 0, levels*8)
	weights := make([]float32, 0, levels*8)
	for k := 0; k < levels; k++ {
		j := uint32(min(k, bones-1))
		for _, x := range []float32{-0.25, 0.25} {
			pos = append(pos, x, float32(k), 0)
			jointIdx = append(jointIdx, j, 0, 0, 0)
			weights = append(weights, 1, 0, 0, 0)
		}
	}
	var index []uint32
	for k := 0; k < bones; k++ {
		a := uint32(2 * k)
		index = append(index, a, a+1, a+2, a+1, a+3, a+2)
	}
	ibm := make([]float32, 0, 16*bones)
	for i := 0; i < bones; i++ {
		m := math.Translate(0, -float32(i), 0)
		ibm = append(ibm, m[:]...)
	}

	prim := protocol.PrimitiveDef{
		Attributes: map[protocol.Attribute]ids.ID{
			protocol.AttrPosition: d.AddAccessor(name+".position", protocol.FloatAccessor(protocol.Vec3, pos)),
			protocol.AttrJoints:   d.AddAccessor(name+".joints", &protocol.AccessorDef{Type: protocol.Vec4, Component: protocol.Uint16, Ints: jointIdx}),
			protocol.AttrWeights:  d.AddAccessor(name+".weights", protocol.FloatAccessor(protocol.Vec4, weights)),
		},
		Indices:  d.AddAccessor(name+".index", protocol.IndexAccessor(index)),
		Material: material,
		Skin: &protocol.SkinDef{
			Joints:              joints,
			InverseBindMatrices: d.AddAccessor(name+".ibm", protocol.FloatAccessor(protocol.Mat4, ibm)),
		},
	}
	mesh := d.AddMesh(name, &protocol.MeshDef{Name: name, Shape: &protocol.PrimitiveSet{Primitives: []protocol.PrimitiveDef{prim}}})
	return d.Instance(name, parent, mesh, [3]float32{}), joints
}

// Spin adds a looping clip turning target once around Y every period
// seconds.
func (d *Document) Spin(name string, target ids.ID, period float32) ids.ID {
	const steps = 4
	times := make([]float32, 0, steps+1)
	quats := make([]float32, 0, 4*(steps+1))
	for i := 0; i <= steps; i++ {
		f := float32(i) / steps
		q := math.QuatFromAxisAngle(math.Vec3{Y: 1}, f*2*math.Pi)
		times = append(times, f*period)
		quats = append(quats, q.X, q.Y, q.Z, q.W)
	}
	return d.AddAnimation(name, &protocol.AnimationDef{Name: name, Channels: []protocol.ChannelDef{{
		Target:        target,
		Path:          protocol.PathRotation,
		Input:         d.AddAccessor(name+".time", protocol.FloatAccessor(protocol.Scalar, times)),
		Output:        d.AddAccessor(name+".rotation", protocol.FloatAccessor(protocol.Vec4, quats)),
		Interpolation: protocol.InterpLinear,
	}}})
}

// Bounce adds a clip moving target up by height and back with a cubic
// spline over period seconds.
func (d *Document) Bounce(name string, target ids.ID, height, period float32) ids.ID {
	// Each key is in-tangent, value, out-tangent.
	values := []float32{
		0, 0, 0, 0, 0, 0, 0, height * 2, 0,
		0, 0, 0, 0, height, 0, 0, 0, 0,
		0, -height * 2, 0, 0, 0, 0, 0, 0, 0,
	}
	return d.AddAnimation(name, &protocol.AnimationDef{Name: name, Channels: []protocol.ChannelDef{{
		Target:        target,
		Path:          protocol.PathTranslation,
		Input:         d.AddAccessor(name+".time", protocol.FloatAccessor(protocol.Scalar, []float32{0, period / 2, period})),
		Output:        d.AddAccessor(name+".translation", protocol.FloatAccessor(protocol.Vec3, values)),
		Interpolation: protocol.InterpCubicSpline,
	}}})
}

// Scene generates a demo document: size nodes in a random tree drawing
// boxes and spheres, a collider on every third node, a skinned strip and
// two clips. The same seed yields the same document.
func Scene(size int, seed uint64) *Document {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	d := New("scene")

	palette := []ids.ID{
		d.Color("red", [4]float32{0.8, 0.1, 0.1, 1}),
		d.Color("green", [4]float32{0.1, 0.7, 0.2, 1}),
		d.Color("blue", [4]float32{0.1, 0.3, 0.9, 1}),
	}
	meshes := []ids.ID{
		d.BoxMesh("box", [3]float32{1, 1, 1}, palette[0]),
		d.SphereMesh("sphere", 0.5, palette[1]),
	}
	colliders := []protocol.ColliderDef{
		{Shape: protocol.ShapeAuto, Auto: protocol.ShapeBox},
		{Shape: protocol.ShapeAuto, Auto: protocol.ShapeSphere},
		{Shape: protocol.ShapeCapsule, Radius: 0.4, Height: 1.5},
		{Shape: protocol.ShapeTrimesh},
	}

	root := d.Group("root", ids.None, [3]float32{})
	nodes := []ids.ID{root}
	for i := 0; i < size; i++ {
		parent := nodes[rng.IntN(len(nodes))]
		offset := [3]float32{rng.Float32()*4 - 2, rng.Float32() * 2, rng.Float32()*4 - 2}
		n := d.Instance(fmt.Sprintf("node%d", i), parent, meshes[rng.IntN(len(meshes))], offset)
		if i%3 == 0 {
			d.SetCollider(n, colliders[rng.IntN(len(colliders))])
		}
		nodes = append(nodes, n)
	}

	strip, _ := d.SkinnedStrip("tail", root, 3, palette[2])
	d.Spin("spin", nodes[len(nodes)-1], 4)
	d.Bounce("bounce", strip, 1, 2)
	return d
}
