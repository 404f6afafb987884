package geometry

import (
	"sort"

	"github.com/Faultbox/scenemirror/internal/engine/accessor"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

var morphable = []protocol.Attribute{protocol.AttrPosition, protocol.AttrNormal, protocol.AttrTangent}

// Part is one built primitive of a mesh.
type Part struct {
	Geometry *Geometry
	Material ids.ID
	Skin     *protocol.SkinDef
}

// Build materializes every primitive of a mesh definition. mesh is the
// owning mesh id, used in error reports.
func Build(mesh ids.ID, def *protocol.MeshDef, store *accessor.Store) ([]Part, error) {
	switch shape := def.Shape.(type) {
	case *protocol.Box:
		return []Part{{Geometry: NewBox(*shape), Material: def.Material}}, nil
	case *protocol.Sphere:
		return []Part{{Geometry: NewSphere(*shape), Material: def.Material}}, nil
	case *protocol.Cylinder:
		return []Part{{Geometry: NewCylinder(*shape), Material: def.Material}}, nil
	case *protocol.PrimitiveSet:
		parts := make([]Part, 0, len(shape.Primitives))
		for i := range shape.Primitives {
			prim := &shape.Primitives[i]
			g, err := Assemble(mesh, prim, store)
			if err != nil {
				return nil, err
			}
			parts = append(parts, Part{Geometry: g, Material: prim.Material, Skin: prim.Skin})
		}
		return parts, nil
	case nil:
		return nil, ids.Invalid(ids.KindMesh, mesh, "create", "mesh has no shape")
	default:
		return nil, ids.Invalid(ids.KindMesh, mesh, "create", "unknown shape %T", shape)
	}
}

// Assemble builds geometry for one primitive attribute by attribute.
// Indices are optional; morph targets are stored as relative deltas.
func Assemble(mesh ids.ID, prim *protocol.PrimitiveDef, store *accessor.Store) (*Geometry, error) {
	if _, ok := prim.Attributes[protocol.AttrPosition]; !ok {
		return nil, ids.Invalid(ids.KindMesh, mesh, "create", "primitive has no POSITION attribute")
	}

	g := newGeometry()
	g.Mode = prim.Mode

	for _, name := range sortedAttrs(prim.Attributes) {
		acc, err := store.Require(ids.KindMesh, mesh, "create", prim.Attributes[name])
		if err != nil {
			return nil, err
		}
		g.Attributes[name] = &Attribute{
			Data:       acc.AsFloats(),
			ItemSize:   acc.ItemSize(),
			Normalized: acc.Normalized,
		}
	}

	if prim.Indices.Valid() {
		acc, err := store.Require(ids.KindMesh, mesh, "create", prim.Indices)
		if err != nil {
			return nil, err
		}
		g.Index = acc.AsUints()
	}

	if err := assembleMorphTargets(g, mesh, prim, store); err != nil {
		return nil, err
	}

	switch g.Mode {
	case protocol.ModeTriangleStrip, protocol.ModeTriangleFan:
		g.Index = toTriangles(g.Index, g.VertexCount(), g.Mode)
		g.Mode = protocol.ModeTriangles
	}

	g.ComputeBounds()
	return g, nil
}

// assembleMorphTargets fills parallel per-target lists. A target that omits
// an attribute another target provides gets a zero delta buffer.
func assembleMorphTargets(g *Geometry, mesh ids.ID, prim *protocol.PrimitiveDef, store *accessor.Store) error {
	if len(prim.Targets) == 0 {
		return nil
	}
	for _, name := range morphable {
		used := false
		for _, target := range prim.Targets {
			if _, ok := target[name]; ok {
				used = true
				break
			}
		}
		base, hasBase := g.Attributes[name]
		if !used || !hasBase {
			continue
		}

		list := make([]*Attribute, len(prim.Targets))
		for i, target := range prim.Targets {
			id, ok := target[name]
			if !ok {
				list[i] = &Attribute{Data: make([]float32, len(base.Data)), ItemSize: base.ItemSize}
				continue
			}
			acc, err := store.Require(ids.KindMesh, mesh, "create", id)
			if err != nil {
				return err
			}
			list[i] = &Attribute{Data: acc.AsFloats(), ItemSize: acc.ItemSize()}
		}
		g.MorphAttributes[name] = list
	}
	g.MorphTargetsRelative = true
	return nil
}

// toTriangles rewrites strip and fan topology as a triangle list.
func toTriangles(index []uint32, vertexCount int, mode protocol.DrawMode) []uint32 {
	if index == nil {
		index = make([]uint32, vertexCount)
		for i := range index {
			index[i] = uint32(i)
		}
	}
	if len(index) < 3 {
		return nil
	}

	out := make([]uint32, 0, (len(index)-2)*3)
	if mode == protocol.ModeTriangleFan {
		for i := 1; i < len(index)-1; i++ {
			out = append(out, index[0], index[i], index[i+1])
		}
		return out
	}
	for i := 0; i < len(index)-2; i++ {
		if i%2 == 0 {
			out = append(out, index[i], index[i+1], index[i+2])
		} else {
			out = append(out, index[i+2], index[i+1], index[i])
		}
	}
	return out
}

func sortedAttrs(m map[protocol.Attribute]ids.ID) []protocol.Attribute {
	names := make([]protocol.Attribute, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
