package skeleton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenemirror/internal/engine/accessor"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// world is a minimal joint source backed by a graph.
type world struct {
	graph  *scenegraph.Graph
	joints map[ids.ID]*scenegraph.Object
}

func newWorld() *world {
	return &world{graph: scenegraph.New(), joints: make(map[ids.ID]*scenegraph.Object)}
}

func (w *world) Joint(id ids.ID) (*scenegraph.Object, bool) {
	o, ok := w.joints[id]
	return o, ok
}

func (w *world) NewJoint(id ids.ID) (*scenegraph.Object, error) {
	o, err := w.graph.Create(scenegraph.KindBone, id, scenegraph.RootRef)
	if err != nil {
		return nil, err
	}
	w.joints[id] = o
	return o, nil
}

func (w *world) DropJoint(id ids.ID) {
	if o, ok := w.joints[id]; ok {
		w.graph.Dispose(o.Ref)
		delete(w.joints, id)
	}
}

func (w *world) addNode(t *testing.T, id ids.ID, pos math.Vec3) {
	t.Helper()
	o, err := w.graph.Create(scenegraph.KindGroup, id, scenegraph.RootRef)
	require.NoError(t, err)
	o.Position = pos
	w.joints[id] = o
}

const (
	meshID    ids.ID = 50
	inverseID ids.ID = 60
)

func fixture(t *testing.T) (*accessor.Store, *protocol.SkinDef) {
	t.Helper()
	store := accessor.NewStore()
	data := make([]float32, 0, 48)
	for i := 0; i < 3; i++ {
		m := math.Translate(float32(-i), 0, 0)
		data = append(data, m[:]...)
	}
	require.NoError(t, store.Add(inverseID, protocol.FloatAccessor(protocol.Mat4, data)))
	return store, &protocol.SkinDef{Joints: []ids.ID{10, 11, 12}, InverseBindMatrices: inverseID}
}

func target(t *testing.T, w *world) *scenegraph.Object {
	t.Helper()
	o, err := w.graph.Create(scenegraph.KindPrimitive, meshID, scenegraph.RootRef)
	require.NoError(t, err)
	return o
}

func boneSources(w *world, s *scenegraph.Skeleton) []ids.ID {
	out := make([]ids.ID, len(s.Bones))
	for i, ref := range s.Bones {
		o, _ := w.graph.Get(ref)
		out[i] = o.Source
	}
	return out
}

func TestBindWhenAllJointsPresent(t *testing.T) {
	store, skin := fixture(t)
	w := newWorld()
	for i, id := range skin.Joints {
		w.addNode(t, id, math.Vec3{X: float32(i)})
	}
	prim := target(t, w)

	r := New(store, w, nil)
	bound, err := r.Register(prim, meshID, skin)
	require.NoError(t, err)
	require.True(t, bound)

	assert.Equal(t, scenegraph.KindSkinnedPrimitive, prim.Kind)
	assert.Equal(t, skin.Joints, boneSources(w, prim.Skeleton))
	for _, id := range skin.Joints {
		assert.Equal(t, scenegraph.KindBone, w.joints[id].Kind, "joint %s converted to bone", id)
	}

	// Each bone sits where its inverse bind matrix undoes it.
	for _, m := range Pose(w.graph, prim.Skeleton) {
		assert.True(t, m.ApproxEqual(math.Identity(), 1e-6))
	}
}

func TestBindIsIdempotent(t *testing.T) {
	store, skin := fixture(t)
	w := newWorld()
	for _, id := range skin.Joints {
		w.addNode(t, id, math.Vec3{})
	}
	prim := target(t, w)
	r := New(store, w, nil)

	_, err := r.Register(prim, meshID, skin)
	require.NoError(t, err)
	first := *prim.Skeleton

	bound, err := r.Resolve(prim)
	require.NoError(t, err)
	assert.True(t, bound)
	assert.Equal(t, first, *prim.Skeleton)
}

func TestPartialArrivalMatchesAllAtOnce(t *testing.T) {
	store, skin := fixture(t)

	all := newWorld()
	for _, id := range skin.Joints {
		all.addNode(t, id, math.Vec3{})
	}
	allPrim := target(t, all)
	_, err := New(store, all, nil).Register(allPrim, meshID, skin)
	require.NoError(t, err)

	late := newWorld()
	latePrim := target(t, late)
	r := New(store, late, nil)
	late.addNode(t, 11, math.Vec3{})

	bound, err := r.Register(latePrim, meshID, skin)
	require.NoError(t, err)
	assert.False(t, bound)
	assert.Nil(t, latePrim.Skeleton)

	late.addNode(t, 12, math.Vec3{})
	bound, err = r.Resolve(latePrim)
	require.NoError(t, err)
	assert.False(t, bound)

	late.addNode(t, 10, math.Vec3{})
	bound, err = r.Resolve(latePrim)
	require.NoError(t, err)
	require.True(t, bound)

	assert.Equal(t, boneSources(all, allPrim.Skeleton), boneSources(late, latePrim.Skeleton))
	assert.Equal(t, allPrim.Skeleton.InverseBind, latePrim.Skeleton.InverseBind)
}

func TestEagerJointCreation(t *testing.T) {
	store, skin := fixture(t)
	w := newWorld()
	w.addNode(t, 10, math.Vec3{})
	prim := target(t, w)

	r := New(store, w, w)
	bound, err := r.Register(prim, meshID, skin)
	require.NoError(t, err)
	assert.True(t, bound)
	assert.Len(t, w.joints, 3)
	assert.Equal(t, scenegraph.KindBone, w.joints[12].Kind)
}

func TestMissingInverseBindAccessor(t *testing.T) {
	w := newWorld()
	w.addNode(t, 10, math.Vec3{})
	prim := target(t, w)

	r := New(accessor.NewStore(), w, nil)
	_, err := r.Register(prim, meshID, &protocol.SkinDef{Joints: []ids.ID{10}, InverseBindMatrices: 77})
	require.Error(t, err)
	assert.True(t, ids.IsMissing(err))
	assert.Contains(t, err.Error(), "#50")
}

func TestNoInverseBindMeansIdentity(t *testing.T) {
	w := newWorld()
	w.addNode(t, 10, math.Vec3{})
	prim := target(t, w)

	r := New(accessor.NewStore(), w, nil)
	bound, err := r.Register(prim, meshID, &protocol.SkinDef{Joints: []ids.ID{10}})
	require.NoError(t, err)
	require.True(t, bound)
	assert.Equal(t, []math.Mat4{math.Identity()}, prim.Skeleton.InverseBind)

	r.Forget(prim.Ref)
	assert.Zero(t, r.Len())
}

func TestPlaceholdersDroppedWithLastSkin(t *testing.T) {
	store, skin := fixture(t)
	w := newWorld()
	w.addNode(t, 10, math.Vec3{})
	first := target(t, w)
	second := target(t, w)

	r := New(store, w, w)
	_, err := r.Register(first, meshID, skin)
	require.NoError(t, err)
	_, err = r.Register(second, meshID, skin)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Placeholders())

	// Node 11 arrives and takes over its bone.
	r.Adopt(11)
	assert.Equal(t, 1, r.Placeholders())

	r.Forget(first.Ref)
	_, ok := w.joints[12]
	assert.True(t, ok, "still referenced by the second skin")

	r.Forget(second.Ref)
	_, ok = w.joints[12]
	assert.False(t, ok)
	_, ok = w.joints[11]
	assert.True(t, ok, "adopted joints stay")
	_, ok = w.joints[10]
	assert.True(t, ok, "joints that had a node stay")
	assert.Zero(t, r.Placeholders())
}
