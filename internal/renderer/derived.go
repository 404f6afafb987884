package renderer

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/engine/collider"
	"github.com/Faultbox/scenemirror/internal/engine/deps"
	"github.com/Faultbox/scenemirror/internal/engine/geometry"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/physics"
)

func colliderKey(node ids.ID) deps.Derived {
	return deps.Derived{Kind: deps.DerivedColliderVisual, Key: uint64(node)}
}

// watchCollider (re)subscribes a node's collider to the fields it is derived
// from and schedules a recompute. Ancestor transforms reach it through the
// node's own world field.
func (r *Renderer) watchCollider(st *nodeState) {
	key := colliderKey(st.id)
	r.deps.Depend(key,
		deps.Source{ID: st.id, Field: deps.FieldWorld},
		deps.Source{ID: st.id, Field: deps.FieldMesh},
		deps.Source{ID: st.id, Field: deps.FieldCollider},
	)
	r.deps.Mark(key)
}

// dropCollider removes a node's collider visual and its subscription.
func (r *Renderer) dropCollider(st *nodeState) {
	r.deps.Forget(colliderKey(st.id))
	r.visuals.Remove(st.id)
	st.shape = nil
}

// flush recomputes every derived value marked dirty since the last flush.
func (r *Renderer) flush() error {
	return r.deps.Flush(func(d deps.Derived) error {
		switch d.Kind {
		case deps.DerivedSkeleton:
			obj, ok := r.graph.Get(scenegraph.Ref(d.Key))
			if !ok {
				return nil
			}
			bound, err := r.skeletons.Resolve(obj)
			if bound {
				r.log.Debug("skeleton bound", zap.Uint64("object", d.Key), zap.Int("bones", len(obj.Skeleton.Bones)))
			}
			return err
		case deps.DerivedColliderVisual:
			return r.recomputeCollider(ids.ID(d.Key))
		case deps.DerivedMorphTracks:
			r.rebindMorph(ids.ID(d.Key))
		}
		return nil
	})
}

// recomputeCollider resolves a node's collider shape. A changed shape
// rebuilds the wireframe and, for baked shapes, resends geometry to physics.
// The wireframe then follows the node's world pose.
func (r *Renderer) recomputeCollider(node ids.ID) error {
	st, ok := r.nodes[node]
	if !ok || st.collider == nil {
		r.visuals.Remove(node)
		return nil
	}

	src := collider.Source{Geometries: geometries(st.prims), Scale: r.graph.WorldScale(st.obj.Ref)}
	shape, ok, err := collider.Resolve(node, *st.collider, src)
	if err != nil {
		return err
	}
	if !ok {
		r.visuals.Remove(node)
		st.shape = nil
		return nil
	}

	if st.shape == nil || !reflect.DeepEqual(*st.shape, shape) {
		st.shape = &shape
		if _, err := r.visuals.Set(node, shape); err != nil {
			return err
		}
		if shape.Baked() {
			pkt := &physics.ColliderGeometry{Node: node, Positions: shape.Positions, Indices: shape.Indices}
			if err := r.physics.SetColliderGeometry(pkt); err != nil {
				r.log.Warn("collider geometry not delivered", zap.Stringer("node", node), zap.Error(err))
			}
		}
	}
	r.visuals.Place(node, r.graph.WorldPosition(st.obj.Ref), r.graph.WorldRotation(st.obj.Ref))
	return nil
}

// geometries returns the geometry of every primitive of a node.
func geometries(prims []*scenegraph.Object) []*geometry.Geometry {
	out := make([]*geometry.Geometry, 0, len(prims))
	for _, p := range prims {
		out = append(out, p.Geometry)
	}
	return out
}
