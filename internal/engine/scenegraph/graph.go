package scenegraph

import (
	"fmt"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Graph is the arena of renderer objects.
type Graph struct {
	objects map[Ref]*Object
	next    Ref

	// OnWorldChanged is called when an object's world transform is
	// invalidated. It fires once per clean-to-dirty transition.
	OnWorldChanged func(o *Object)
}

// New creates a graph holding only the root.
func New() *Graph {
	g := &Graph{
		objects: make(map[Ref]*Object),
		next:    RootRef,
	}
	root := g.alloc(KindGroup, ids.None, NoRef)
	root.Name = "root"
	root.Attached = true
	return g
}

func (g *Graph) alloc(kind Kind, source ids.ID, parent Ref) *Object {
	o := &Object{
		Ref:        g.next,
		Kind:       kind,
		Source:     source,
		Parent:     parent,
		Rotation:   math.QuatIdentity(),
		Scale:      math.Vec3{X: 1, Y: 1, Z: 1},
		Visible:    true,
		world:      math.Identity(),
		worldDirty: true,
	}
	g.objects[o.Ref] = o
	g.next++
	return o
}

// Root returns the scene root.
func (g *Graph) Root() *Object {
	return g.objects[RootRef]
}

// Get returns the live object for ref.
func (g *Graph) Get(ref Ref) (*Object, bool) {
	o, ok := g.objects[ref]
	return o, ok
}

// Len returns the number of live objects, root included.
func (g *Graph) Len() int {
	return len(g.objects)
}

// Create allocates a detached object whose logical parent is parent.
// It becomes part of the live graph only once Attach succeeds.
func (g *Graph) Create(kind Kind, source ids.ID, parent Ref) (*Object, error) {
	p, ok := g.objects[parent]
	if !ok {
		return nil, fmt.Errorf("parent ref %d does not exist", parent)
	}
	o := g.alloc(kind, source, parent)
	p.Children = append(p.Children, o.Ref)
	return o, nil
}

// CanAttach reports whether ref's parent is already reachable from the root.
func (g *Graph) CanAttach(ref Ref) bool {
	o, ok := g.objects[ref]
	if !ok {
		return false
	}
	p, ok := g.objects[o.Parent]
	return ok && p.Attached
}

// Attach links ref into the live graph. Descendants whose own attach
// already ran stay as they are; the caller attaches pending children.
func (g *Graph) Attach(ref Ref) bool {
	if !g.CanAttach(ref) {
		return false
	}
	g.objects[ref].Attached = true
	return true
}

// Detach removes ref and its subtree from the live graph without disposing it.
func (g *Graph) Detach(ref Ref) {
	g.walk(ref, func(o *Object) { o.Attached = false })
}

// walk visits ref and every descendant, parents first.
func (g *Graph) walk(ref Ref, fn func(o *Object)) {
	o, ok := g.objects[ref]
	if !ok {
		return
	}
	fn(o)
	for _, c := range o.Children {
		g.walk(c, fn)
	}
}

// Descendants returns every object below ref, parents first.
func (g *Graph) Descendants(ref Ref) []*Object {
	var out []*Object
	g.walk(ref, func(o *Object) {
		if o.Ref != ref {
			out = append(out, o)
		}
	})
	return out
}

// Ancestors returns the chain from ref's parent up to and including the root.
func (g *Graph) Ancestors(ref Ref) []*Object {
	var out []*Object
	o, ok := g.objects[ref]
	for ok && o.Parent != NoRef {
		o, ok = g.objects[o.Parent]
		if ok {
			out = append(out, o)
		}
	}
	return out
}

// IsAncestor reports whether a is an ancestor of b.
func (g *Graph) IsAncestor(a, b Ref) bool {
	for _, o := range g.Ancestors(b) {
		if o.Ref == a {
			return true
		}
	}
	return false
}

// SetLocal replaces the local transform of ref.
func (g *Graph) SetLocal(ref Ref, position math.Vec3, rotation math.Quat, scale math.Vec3) {
	o, ok := g.objects[ref]
	if !ok {
		return
	}
	o.Position = position
	o.Rotation = rotation
	o.Scale = scale
	g.invalidate(o)
}

// SetPosition, SetRotation and SetScale change one local component.
func (g *Graph) SetPosition(ref Ref, v math.Vec3) {
	if o, ok := g.objects[ref]; ok {
		o.Position = v
		g.invalidate(o)
	}
}

func (g *Graph) SetRotation(ref Ref, q math.Quat) {
	if o, ok := g.objects[ref]; ok {
		o.Rotation = q
		g.invalidate(o)
	}
}

func (g *Graph) SetScale(ref Ref, v math.Vec3) {
	if o, ok := g.objects[ref]; ok {
		o.Scale = v
		g.invalidate(o)
	}
}

// invalidate marks o and its subtree as needing a world recompute.
func (g *Graph) invalidate(o *Object) {
	g.walk(o.Ref, func(d *Object) {
		if d.worldDirty {
			return
		}
		d.worldDirty = true
		if g.OnWorldChanged != nil {
			g.OnWorldChanged(d)
		}
	})
}

// World returns the world matrix of ref, composing local transforms along
// the ancestor chain.
func (g *Graph) World(ref Ref) math.Mat4 {
	o, ok := g.objects[ref]
	if !ok {
		return math.Identity()
	}
	if !o.worldDirty {
		return o.world
	}
	local := o.Local()
	if o.Parent == NoRef {
		o.world = local
	} else {
		o.world = g.World(o.Parent).Mul(local)
	}
	o.worldDirty = false
	return o.world
}

// WorldPosition returns the world-space origin of ref.
func (g *Graph) WorldPosition(ref Ref) math.Vec3 {
	return g.World(ref).Position()
}

// WorldRotation returns the world-space rotation of ref.
func (g *Graph) WorldRotation(ref Ref) math.Quat {
	_, r, _ := g.World(ref).Decompose()
	return r
}

// WorldScale returns the accumulated scale of ref, the product of the
// local scale factors along the ancestor chain.
func (g *Graph) WorldScale(ref Ref) math.Vec3 {
	o, ok := g.objects[ref]
	if !ok {
		return math.Vec3{X: 1, Y: 1, Z: 1}
	}
	s := o.Scale
	for _, a := range g.Ancestors(ref) {
		s = s.Mul(a.Scale)
	}
	return s
}

// WorldToLocal converts a world-space point into ref's local space.
func (g *Graph) WorldToLocal(ref Ref, p math.Vec3) math.Vec3 {
	return g.World(ref).Inverse().TransformPoint(p)
}

// SetParent moves ref under newParent, recomputing its local transform so
// its world position and rotation are unchanged. If ref was live but the new
// parent is not yet reachable, ref is detached and SetParent returns false so
// the caller can queue it for attachment again.
func (g *Graph) SetParent(ref, newParent Ref) (bool, error) {
	o, ok := g.objects[ref]
	if !ok {
		return false, fmt.Errorf("ref %d does not exist", ref)
	}
	p, ok := g.objects[newParent]
	if !ok {
		return false, fmt.Errorf("parent ref %d does not exist", newParent)
	}
	if ref == newParent || g.IsAncestor(ref, newParent) {
		return false, fmt.Errorf("ref %d cannot be parented under its own descendant %d", ref, newParent)
	}

	worldPos := g.WorldPosition(ref)
	worldRot := g.WorldRotation(ref)

	if old, ok := g.objects[o.Parent]; ok {
		old.Children = removeRef(old.Children, ref)
	}
	o.Parent = newParent
	p.Children = append(p.Children, ref)

	o.Position = g.WorldToLocal(newParent, worldPos)
	o.Rotation = g.WorldRotation(newParent).Inverse().Mul(worldRot).Normalize()
	g.invalidate(o)

	if o.Attached && !p.Attached {
		g.Detach(ref)
		return false, nil
	}
	return o.Attached, nil
}

// Dispose removes ref and its whole subtree from the arena and returns the
// disposed objects, parents first. The root cannot be disposed. Disposing a
// ref that is already gone returns nil.
func (g *Graph) Dispose(ref Ref) []*Object {
	if ref == RootRef {
		return nil
	}
	o, ok := g.objects[ref]
	if !ok {
		return nil
	}
	if p, ok := g.objects[o.Parent]; ok {
		p.Children = removeRef(p.Children, ref)
	}

	var out []*Object
	g.walk(ref, func(d *Object) { out = append(out, d) })
	for _, d := range out {
		d.Disposed = true
		d.Attached = false
		if d.Geometry != nil {
			d.Geometry.Dispose()
		}
		delete(g.objects, d.Ref)
	}
	return out
}

func removeRef(list []Ref, ref Ref) []Ref {
	for i, r := range list {
		if r == ref {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
