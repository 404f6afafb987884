package document

import (
	"context"
	"fmt"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/model"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Result maps document handles and names to the ids the Model issued.
type Result struct {
	IDs   map[ids.ID]ids.ID
	Names map[string]ids.ID
}

// Lookup returns the id of the entity named name.
func (r *Result) Lookup(name string) (ids.ID, bool) {
	id, ok := r.Names[Key(name)]
	return id, ok
}

// ID returns the id issued for a document handle, or ids.None.
func (r *Result) ID(handle ids.ID) ids.ID {
	return r.IDs[handle]
}

func (r *Result) bind(name string, handle, id ids.ID) {
	r.IDs[handle] = id
	if name != "" {
		r.Names[Key(name)] = id
	}
}

// Replay creates every definition of doc through m. Buffers, textures and
// materials come first, then meshes without skins, then nodes parents
// first. Skinned meshes reference nodes as joints, so they are created after
// the nodes and bound to their nodes with an update. Animations come last.
func Replay(ctx context.Context, doc *Document, m *model.Model) (*Result, error) {
	res := &Result{IDs: make(map[ids.ID]ids.ID), Names: make(map[string]ids.ID)}

	for _, e := range doc.Accessors {
		id, err := m.CreateAccessor(ctx, e.Def)
		if err != nil {
			return res, fmt.Errorf("accessor %q: %w", e.Name, err)
		}
		res.bind(e.Name, e.Handle, id)
	}
	for _, e := range doc.Textures {
		id, err := m.CreateTexture(ctx, e.Def)
		if err != nil {
			return res, fmt.Errorf("texture %q: %w", e.Name, err)
		}
		res.bind(e.Name, e.Handle, id)
	}
	for _, e := range doc.Materials {
		id, err := m.CreateMaterial(ctx, res.material(e.Def))
		if err != nil {
			return res, fmt.Errorf("material %q: %w", e.Name, err)
		}
		res.bind(e.Name, e.Handle, id)
	}

	skinned := make(map[ids.ID]bool)
	for _, e := range doc.Meshes {
		if hasSkin(e.Def) {
			skinned[e.Handle] = true
			continue
		}
		if err := res.createMesh(ctx, m, e); err != nil {
			return res, err
		}
	}

	order, err := topological(doc.Nodes)
	if err != nil {
		return res, err
	}
	var late []Entry[*protocol.NodeDef]
	for _, e := range order {
		def := res.node(e.Def)
		if skinned[e.Def.Mesh] {
			def.Mesh = ids.None
			late = append(late, e)
		}
		id, err := m.CreateNode(ctx, def)
		if err != nil {
			return res, fmt.Errorf("node %q: %w", e.Name, err)
		}
		res.bind(e.Name, e.Handle, id)
	}

	for _, e := range doc.Meshes {
		if !skinned[e.Handle] {
			continue
		}
		if err := res.createMesh(ctx, m, e); err != nil {
			return res, err
		}
	}
	for _, e := range late {
		patch := &protocol.NodePatch{Mesh: protocol.Some(res.ID(e.Def.Mesh))}
		if err := m.UpdateNode(ctx, res.ID(e.Handle), patch); err != nil {
			return res, fmt.Errorf("node %q: %w", e.Name, err)
		}
	}

	for _, e := range doc.Animations {
		id, err := m.CreateAnimation(ctx, res.animation(e.Def))
		if err != nil {
			return res, fmt.Errorf("animation %q: %w", e.Name, err)
		}
		res.bind(e.Name, e.Handle, id)
	}
	return res, nil
}

func (r *Result) createMesh(ctx context.Context, m *model.Model, e Entry[*protocol.MeshDef]) error {
	id, err := m.CreateMesh(ctx, r.mesh(e.Def))
	if err != nil {
		return fmt.Errorf("mesh %q: %w", e.Name, err)
	}
	r.bind(e.Name, e.Handle, id)
	return nil
}

func hasSkin(def *protocol.MeshDef) bool {
	set, ok := def.Shape.(*protocol.PrimitiveSet)
	if !ok {
		return false
	}
	for _, p := range set.Primitives {
		if p.Skin != nil {
			return true
		}
	}
	return false
}

// topological orders nodes so every parent precedes its children. A parent
// handle outside the document or a parent cycle is an error.
func topological(nodes []Entry[*protocol.NodeDef]) ([]Entry[*protocol.NodeDef], error) {
	byHandle := make(map[ids.ID]int, len(nodes))
	for i, e := range nodes {
		byHandle[e.Handle] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	out := make([]Entry[*protocol.NodeDef], 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("node %q: parent cycle", nodes[i].Name)
		}
		state[i] = visiting
		if p := nodes[i].Def.Parent; p.Valid() {
			j, ok := byHandle[p]
			if !ok {
				return fmt.Errorf("node %q: parent handle %s not in document", nodes[i].Name, p)
			}
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		out = append(out, nodes[i])
		return nil
	}
	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
