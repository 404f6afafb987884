package collider

import (
	"github.com/Faultbox/scenemirror/internal/engine/geometry"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Visual is the debug wireframe of one node's collider.
type Visual struct {
	Node   ids.ID
	Shape  Shape
	Object *scenegraph.Object
}

// Visualizer owns collider wireframes. Wireframes hang off the scene root
// and follow their node's world position and rotation; they never affect the
// node or its materials.
type Visualizer struct {
	graph   *scenegraph.Graph
	visuals map[ids.ID]*Visual
	show    bool
}

// NewVisualizer creates a visualizer with the given initial visibility.
func NewVisualizer(graph *scenegraph.Graph, show bool) *Visualizer {
	return &Visualizer{
		graph:   graph,
		visuals: make(map[ids.ID]*Visual),
		show:    show,
	}
}

// Set replaces node's wireframe with one built from shape.
func (v *Visualizer) Set(node ids.ID, shape Shape) (*Visual, error) {
	v.Remove(node)
	obj, err := v.graph.Create(scenegraph.KindVisual, node, scenegraph.RootRef)
	if err != nil {
		return nil, err
	}
	obj.Name = "collider:" + shape.Kind.String()
	obj.Geometry = geometry.NewLines(Wireframe(shape))
	obj.Visible = v.show
	v.graph.Attach(obj.Ref)

	vis := &Visual{Node: node, Shape: shape, Object: obj}
	v.visuals[node] = vis
	return vis, nil
}

// Place moves node's wireframe to a world pose. Scale is already part of
// the shape dimensions.
func (v *Visualizer) Place(node ids.ID, position math.Vec3, rotation math.Quat) {
	vis, ok := v.visuals[node]
	if !ok {
		return
	}
	v.graph.SetLocal(vis.Object.Ref, position, rotation, math.Vec3{X: 1, Y: 1, Z: 1})
}

// Get returns node's wireframe.
func (v *Visualizer) Get(node ids.ID) (*Visual, bool) {
	vis, ok := v.visuals[node]
	return vis, ok
}

// Remove disposes node's wireframe. Removing a node without one is a no-op.
func (v *Visualizer) Remove(node ids.ID) bool {
	vis, ok := v.visuals[node]
	if !ok {
		return false
	}
	v.graph.Dispose(vis.Object.Ref)
	delete(v.visuals, node)
	return true
}

// Show sets the visibility of every wireframe, current and future.
func (v *Visualizer) Show(show bool) {
	v.show = show
	for _, vis := range v.visuals {
		vis.Object.Visible = show
	}
}

// Shown reports the current visibility.
func (v *Visualizer) Shown() bool {
	return v.show
}

// Len returns the number of wireframes.
func (v *Visualizer) Len() int {
	return len(v.visuals)
}
