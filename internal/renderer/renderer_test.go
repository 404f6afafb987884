package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenemirror/internal/channel"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/logger"
	"github.com/Faultbox/scenemirror/internal/physics"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// tickClock advances by step on every read, so each attach costs one step.
type tickClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newTestRenderer(t *testing.T, opts Options, sink physics.Sink) *Renderer {
	t.Helper()
	logger.Nop()
	if opts.Clock == nil {
		opts.Clock = &tickClock{}
	}
	if opts.AttachBudget == 0 {
		opts.AttachBudget = time.Hour
	}
	return New(opts, sink)
}

func apply(t *testing.T, r *Renderer, msgs ...protocol.Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, r.Apply(m), protocol.Describe(m))
	}
}

func create(id ids.ID, def protocol.Definition) *protocol.Create {
	return &protocol.Create{ID: id, Def: def}
}

func node(parent, mesh ids.ID) *protocol.NodeDef {
	return &protocol.NodeDef{Parent: parent, Mesh: mesh, Transform: protocol.IdentityTRS()}
}

func materialDef(color [4]float32) *protocol.MaterialDef {
	def := protocol.DefaultMaterialDef()
	def.BaseColor = color
	return &def
}

var (
	red  = [4]float32{1, 0, 0, 1}
	blue = [4]float32{0, 0, 1, 1}
)

// triangle is a position accessor for a primitive without normals.
func triangle() *protocol.AccessorDef {
	return protocol.FloatAccessor(protocol.Vec3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
}

func primitives(pos, mat ids.ID, skin *protocol.SkinDef) *protocol.MeshDef {
	return &protocol.MeshDef{Shape: &protocol.PrimitiveSet{Primitives: []protocol.PrimitiveDef{{
		Attributes: map[protocol.Attribute]ids.ID{protocol.AttrPosition: pos},
		Material:   mat,
		Skin:       skin,
	}}}}
}

func onlyPrim(t *testing.T, r *Renderer, n ids.ID) *scenegraph.Object {
	t.Helper()
	prims := r.Primitives(n)
	require.Len(t, prims, 1)
	return prims[0]
}

func TestEndToEndMaterialBinding(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)

	const (
		pos    ids.ID = 1
		matM   ids.ID = 2
		matC   ids.ID = 3
		box    ids.ID = 4
		flat   ids.ID = 5
		nodeA  ids.ID = 6
		nodeB  ids.ID = 7
		nodeC  ids.ID = 8
		nodeD  ids.ID = 9
	)
	apply(t, r,
		create(pos, triangle()),
		create(matM, materialDef(red)),
		create(matC, materialDef(blue)),
		create(box, &protocol.MeshDef{Shape: &protocol.Box{Size: [3]float32{1, 1, 1}}, Material: matM}),
		create(flat, primitives(pos, matM, nil)),
		create(nodeA, node(ids.None, box)),
		create(nodeB, node(nodeA, flat)),
	)
	c := node(ids.None, box)
	c.Material = matC
	apply(t, r, create(nodeC, c))

	base, ok := r.Material(matM)
	require.True(t, ok)

	// The box has normals and no vertex colors: the base material itself.
	assert.Same(t, base, onlyPrim(t, r, nodeA).Material)

	// No normals: a flat-shading clone of M.
	bound := r.BoundMaterial(onlyPrim(t, r, nodeB))
	require.NotSame(t, base, bound)
	assert.True(t, bound.Variant)
	assert.True(t, bound.FlatShading)
	assert.Equal(t, red, bound.BaseColor)
	assert.False(t, base.FlatShading, "base material stays pristine")

	// The node override wins over the mesh material.
	other, ok := r.Material(matC)
	require.True(t, ok)
	assert.Same(t, other, onlyPrim(t, r, nodeC).Material)

	// The same base and fixups share one variant.
	apply(t, r, create(nodeD, node(ids.None, flat)))
	assert.Same(t, bound, onlyPrim(t, r, nodeD).Material)
	assert.Equal(t, 1, r.Stats().Materials.Variants)

	// A material patch reaches the variant.
	apply(t, r, &protocol.Update{ID: matM, Patch: &protocol.MaterialPatch{BaseColor: protocol.Some(blue)}})
	assert.Equal(t, blue, r.BoundMaterial(onlyPrim(t, r, nodeB)).BaseColor)
}

func TestMaterialDisposeFallsBackToDefault(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	apply(t, r,
		create(1, materialDef(red)),
		create(2, &protocol.MeshDef{Shape: &protocol.Box{}, Material: 1}),
		create(3, node(ids.None, 2)),
		&protocol.Dispose{ID: 1, EntityKind: ids.KindMaterial},
	)
	assert.Same(t, r.DefaultMaterial(), onlyPrim(t, r, 3).Material)
	_, ok := r.Material(1)
	assert.False(t, ok)
}

func TestReparentPreservesWorldPose(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)

	p1 := node(ids.None, ids.None)
	p1.Transform.Translation = [3]float32{1, 2, 3}
	p1.Transform.Rotation = math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.7).Array()
	p2 := node(ids.None, ids.None)
	p2.Transform.Translation = [3]float32{-4, 0, 2}
	p2.Transform.Rotation = math.QuatFromAxisAngle(math.Vec3{X: 1}, -1.1).Array()
	p2.Transform.Scale = [3]float32{2, 2, 2}
	child := node(1, ids.None)
	child.Transform.Translation = [3]float32{0.5, -1, 0}
	child.Transform.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.3).Array()

	apply(t, r, create(1, p1), create(2, p2), create(3, child))
	obj, ok := r.Object(3)
	require.True(t, ok)

	g := r.Graph()
	wantPos := g.WorldPosition(obj.Ref)
	wantRot := g.WorldRotation(obj.Ref)

	apply(t, r, &protocol.Update{ID: 3, Patch: &protocol.NodePatch{Parent: protocol.Some[ids.ID](2)}})
	p2obj, _ := r.Object(2)
	assert.Equal(t, p2obj.Ref, obj.Parent)
	assert.True(t, g.WorldPosition(obj.Ref).ApproxEqual(wantPos, 1e-4))
	assert.True(t, g.WorldRotation(obj.Ref).SameRotation(wantRot, 1e-4))

	// Back to the root.
	apply(t, r, &protocol.Update{ID: 3, Patch: &protocol.NodePatch{Parent: protocol.Some(ids.None)}})
	assert.Equal(t, scenegraph.RootRef, obj.Parent)
	assert.True(t, g.WorldPosition(obj.Ref).ApproxEqual(wantPos, 1e-4))
}

func TestDisposeCascadesAndRepeatsAsNoOp(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	apply(t, r,
		create(1, &protocol.MeshDef{Shape: &protocol.Sphere{Radius: 1}}),
		create(2, node(ids.None, 1)),
		create(3, node(2, 1)),
	)
	before := r.Stats().Objects

	dispose := &protocol.Dispose{ID: 2, EntityKind: ids.KindNode}
	apply(t, r, dispose)
	_, ok := r.Object(3)
	assert.False(t, ok, "children go with their parent")
	assert.Equal(t, before-4, r.Stats().Objects)

	assert.NoError(t, r.Apply(dispose))
	assert.NoError(t, r.Apply(&protocol.Dispose{ID: 3, EntityKind: ids.KindNode}))
}

func TestUnknownParentIsFatal(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	err := r.Apply(create(5, node(99, ids.None)))
	require.Error(t, err)
	assert.True(t, Fatal(err))

	err = r.Apply(&protocol.Update{ID: 7, Patch: &protocol.NodePatch{Name: protocol.Some("x")}})
	assert.True(t, Fatal(err))
}

func TestMissingDependenciesAreNotFatal(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)

	tex := materialDef(red)
	tex.Textures[protocol.SlotBaseColor] = &protocol.TextureRef{Texture: 40}
	err := r.Apply(create(1, tex))
	require.Error(t, err)
	assert.True(t, ids.IsMissing(err))
	assert.False(t, Fatal(err))

	apply(t, r, create(2, &protocol.MeshDef{Shape: &protocol.Box{}}))
	n := node(ids.None, 2)
	n.Material = 1
	err = r.Apply(create(3, n))
	require.Error(t, err)
	assert.True(t, ids.IsMissing(err))

	// The node exists and draws with the default material.
	assert.Same(t, r.DefaultMaterial(), onlyPrim(t, r, 3).Material)
	assert.Equal(t, 2, r.Stats().Errors)
}

func skinnedScene(t *testing.T, r *Renderer) (joints []ids.ID) {
	t.Helper()
	joints = []ids.ID{10, 11}
	apply(t, r,
		create(1, triangle()),
		create(2, primitives(1, ids.None, &protocol.SkinDef{Joints: joints})),
		create(3, node(ids.None, 2)),
	)
	return joints
}

func TestSkeletonWithEagerJoints(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	joints := skinnedScene(t, r)

	prim := onlyPrim(t, r, 3)
	require.NotNil(t, prim.Skeleton)
	assert.Equal(t, scenegraph.KindSkinnedPrimitive, prim.Kind)
	placeholder := prim.Skeleton.Bones[0]

	// The late node adopts its placeholder bone.
	parent := node(3, ids.None)
	apply(t, r, create(joints[0], parent), create(joints[1], node(joints[0], ids.None)))
	j0, _ := r.Object(joints[0])
	j1, _ := r.Object(joints[1])
	assert.Equal(t, placeholder, j0.Ref)
	assert.Equal(t, []scenegraph.Ref{j0.Ref, j1.Ref}, prim.Skeleton.Bones)
	assert.Equal(t, scenegraph.KindBone, j1.Kind)
}

func TestSkeletonWaitsForLateJoints(t *testing.T) {
	opts := DefaultOptions()
	opts.EagerJoints = false
	r := newTestRenderer(t, opts, nil)
	joints := skinnedScene(t, r)

	prim := onlyPrim(t, r, 3)
	assert.Nil(t, prim.Skeleton)

	apply(t, r, create(joints[0], node(ids.None, ids.None)))
	assert.Nil(t, prim.Skeleton, "binding needs every joint")

	apply(t, r, create(joints[1], node(ids.None, ids.None)))
	require.NotNil(t, prim.Skeleton)
	assert.Len(t, prim.Skeleton.Bones, 2)
	assert.Equal(t, scenegraph.KindSkinnedPrimitive, prim.Kind)

	// Losing a joint clears the binding.
	apply(t, r, &protocol.Dispose{ID: joints[1], EntityKind: ids.KindNode})
	assert.Nil(t, prim.Skeleton)
}

func TestAttachIsSpreadOverFrames(t *testing.T) {
	opts := DefaultOptions()
	opts.Clock = &tickClock{step: time.Millisecond}
	opts.AttachBudget = 2 * time.Millisecond
	r := newTestRenderer(t, opts, nil)

	const count = 10
	for i := ids.ID(1); i <= count; i++ {
		parent := ids.None
		if i > 1 {
			parent = i / 2
		}
		apply(t, r, create(i, node(parent, ids.None)))
	}

	frames := 0
	for r.Stats().Pending+r.Stats().Waiting > 0 {
		frames++
		require.Less(t, frames, 100)
		st := r.Frame(16 * time.Millisecond)
		assert.LessOrEqual(t, st.Attached, 2)
		for i := ids.ID(1); i <= count; i++ {
			obj, _ := r.Object(i)
			if obj.Attached {
				parent, _ := r.Graph().Get(obj.Parent)
				assert.True(t, parent.Attached, "node %s attached before its parent", i)
			}
		}
	}
	assert.GreaterOrEqual(t, frames, count/2)
	for i := ids.ID(1); i <= count; i++ {
		obj, _ := r.Object(i)
		assert.True(t, obj.Attached)
	}
}

func TestColliderVisuals(t *testing.T) {
	sink := physics.NewChannelSink(4)
	r := newTestRenderer(t, DefaultOptions(), sink)

	auto := node(ids.None, 1)
	auto.Transform.Scale = [3]float32{2, 1, 1}
	auto.Collider = &protocol.ColliderDef{Shape: protocol.ShapeAuto, Auto: protocol.ShapeBox}
	mesh := node(ids.None, 1)
	mesh.Collider = &protocol.ColliderDef{Shape: protocol.ShapeTrimesh}

	apply(t, r,
		create(1, &protocol.MeshDef{Shape: &protocol.Box{Size: [3]float32{1, 1, 1}}}),
		create(2, auto),
		create(3, mesh),
	)

	vis, ok := r.Visual(2)
	require.True(t, ok)
	assert.InDelta(t, 2, vis.Shape.Size.X, 1e-5)
	assert.InDelta(t, 1, vis.Shape.Size.Y, 1e-5)
	assert.False(t, vis.Object.Visible)
	assert.Equal(t, scenegraph.RootRef, vis.Object.Parent)

	select {
	case buf := <-sink.Packets():
		pkt, err := physics.DecodeColliderGeometry(buf)
		require.NoError(t, err)
		assert.Equal(t, ids.ID(3), pkt.Node)
		assert.NotEmpty(t, pkt.Indices)
	default:
		t.Fatal("no collider geometry sent for trimesh")
	}

	// The wireframe follows its node.
	apply(t, r, &protocol.Update{ID: 2, Patch: &protocol.NodePatch{Translation: protocol.Some([3]float32{0, 5, 0})}})
	assert.InDelta(t, 5, vis.Object.Position.Y, 1e-5)

	// Toggling visibility leaves the node's own rendering alone.
	prim := onlyPrim(t, r, 2)
	mat := prim.Material
	apply(t, r, &protocol.ShowVisuals{Show: true})
	assert.True(t, vis.Object.Visible)
	assert.Same(t, mat, prim.Material)
	assert.True(t, prim.Visible)

	// Clearing the collider removes the wireframe.
	apply(t, r, &protocol.Update{ID: 2, Patch: &protocol.NodePatch{Collider: protocol.Some[*protocol.ColliderDef](nil)}})
	_, ok = r.Visual(2)
	assert.False(t, ok)
}

func TestAnimationAutoPlayAndDispose(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	apply(t, r,
		create(1, protocol.FloatAccessor(protocol.Scalar, []float32{0, 1})),
		create(2, protocol.FloatAccessor(protocol.Vec3, []float32{0, 0, 0, 2, 0, 0})),
		create(3, node(ids.None, ids.None)),
		create(4, &protocol.AnimationDef{Name: "slide", Channels: []protocol.ChannelDef{{
			Target: 3, Path: protocol.PathTranslation, Input: 1, Output: 2,
		}}}),
	)

	clip, ok := r.Clip(4)
	require.True(t, ok)
	assert.Equal(t, float32(1), clip.Duration)
	a, _ := r.Action(4)
	assert.True(t, a.Playing)

	r.Frame(500 * time.Millisecond)
	obj, _ := r.Object(3)
	assert.InDelta(t, 1, obj.Position.X, 1e-5)

	apply(t, r, &protocol.Dispose{ID: 4, EntityKind: ids.KindAnimation})
	_, ok = r.Clip(4)
	assert.False(t, ok)
	r.Frame(250 * time.Millisecond)
	assert.InDelta(t, 1, obj.Position.X, 1e-5, "a disposed clip no longer drives its target")
}

func TestAnimationMissingTarget(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	apply(t, r,
		create(1, protocol.FloatAccessor(protocol.Scalar, []float32{0, 1})),
		create(2, protocol.FloatAccessor(protocol.Vec3, []float32{0, 0, 0, 2, 0, 0})),
	)
	err := r.Apply(create(4, &protocol.AnimationDef{Channels: []protocol.ChannelDef{{
		Target: 9, Path: protocol.PathTranslation, Input: 1, Output: 2,
	}}}))
	require.Error(t, err)
	assert.False(t, Fatal(err))
}

func TestPumpStopsAtFatal(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	ch := channel.New(8)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, create(1, node(ids.None, ids.None))))
	require.NoError(t, ch.Send(ctx, create(2, node(42, ids.None))))
	require.NoError(t, ch.Send(ctx, create(3, node(ids.None, ids.None))))

	n, err := r.Pump(ch, 0)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, ch.Len())
}

func TestRunAppliesUntilClosed(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	ch := channel.New(8)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, create(1, node(ids.None, ids.None))))
	require.NoError(t, ch.Send(ctx, create(2, node(1, ids.None))))
	require.NoError(t, ch.Send(ctx, &protocol.ShowVisuals{Show: true}))
	ch.Close()

	require.NoError(t, r.Run(ctx, ch))
	assert.Equal(t, 2, r.Stats().Nodes)
	assert.Equal(t, 3, r.Stats().Applied)
}

func TestPlaceholderJointsGoWithTheirSkin(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	before := r.Stats().Objects
	joints := skinnedScene(t, r)
	for _, j := range joints {
		_, ok := r.Object(j)
		require.True(t, ok, "joint %s created ahead of its node", j)
	}

	apply(t, r,
		&protocol.Dispose{ID: 3, EntityKind: ids.KindNode},
		&protocol.Dispose{ID: 2, EntityKind: ids.KindMesh},
	)
	for _, j := range joints {
		_, ok := r.Object(j)
		assert.False(t, ok, "unadopted joint %s outlived its skin", j)
	}
	assert.Zero(t, r.Stats().Nodes)
	assert.Equal(t, before, r.Stats().Objects)

	// The joint id was never created, so a real create still works.
	apply(t, r, create(joints[0], node(ids.None, ids.None)))
	_, ok := r.Object(joints[0])
	assert.True(t, ok)
}

func TestAdoptedJointsSurviveTheirSkin(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	joints := skinnedScene(t, r)
	apply(t, r, create(joints[0], node(ids.None, ids.None)))

	apply(t, r, &protocol.Dispose{ID: 3, EntityKind: ids.KindNode})
	_, ok := r.Object(joints[0])
	assert.True(t, ok)
	_, ok = r.Object(joints[1])
	assert.False(t, ok)
	assert.Equal(t, 1, r.Stats().Nodes)
}

func TestLifecycleViolations(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)

	err := r.Apply(&protocol.Dispose{ID: 42, EntityKind: ids.KindNode})
	require.Error(t, err)
	assert.True(t, Fatal(err), "dispose of an id never created")

	apply(t, r, create(1, node(ids.None, ids.None)))
	dispose := &protocol.Dispose{ID: 1, EntityKind: ids.KindNode}
	apply(t, r, dispose, dispose)

	err = r.Apply(&protocol.Update{ID: 1, Patch: &protocol.NodePatch{Name: protocol.Some("late")}})
	assert.True(t, Fatal(err), "update after dispose")
	err = r.Apply(create(1, node(ids.None, ids.None)))
	assert.True(t, Fatal(err), "ids are never reused")

	// A create that failed still counts as created.
	err = r.Apply(create(2, primitives(99, ids.None, nil)))
	require.Error(t, err)
	require.False(t, Fatal(err))
	err = r.Apply(&protocol.Update{ID: 2, Patch: &protocol.MeshPatch{Name: protocol.Some("m")}})
	require.Error(t, err)
	assert.False(t, Fatal(err))
	assert.NoError(t, r.Apply(&protocol.Dispose{ID: 2, EntityKind: ids.KindMesh}))

	// A joint bone made ahead of its node is not the node.
	skinned := newTestRenderer(t, DefaultOptions(), nil)
	joints := skinnedScene(t, skinned)
	err = skinned.Apply(&protocol.Dispose{ID: joints[0], EntityKind: ids.KindNode})
	assert.True(t, Fatal(err))
	err = skinned.Apply(create(5, node(joints[1], ids.None)))
	assert.True(t, Fatal(err), "parent exists only as a placeholder")
}

func morphMesh(pos, delta ids.ID) *protocol.MeshDef {
	def := primitives(pos, ids.None, nil)
	def.Shape.(*protocol.PrimitiveSet).Primitives[0].Targets = []map[protocol.Attribute]ids.ID{
		{protocol.AttrPosition: delta},
	}
	return def
}

func TestMorphTracksFollowMeshChanges(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), nil)
	apply(t, r,
		create(1, triangle()),
		create(2, protocol.FloatAccessor(protocol.Vec3, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1})),
		create(3, morphMesh(1, 2)),
		create(4, morphMesh(1, 2)),
		create(5, node(ids.None, 3)),
		create(6, protocol.FloatAccessor(protocol.Scalar, []float32{0, 1})),
		create(7, protocol.FloatAccessor(protocol.Scalar, []float32{0, 1})),
		create(8, &protocol.AnimationDef{Name: "blend", Channels: []protocol.ChannelDef{{
			Target: 5, Path: protocol.PathWeights, Input: 6, Output: 7,
		}}}),
	)

	r.Frame(500 * time.Millisecond)
	assert.InDeltaSlice(t, []float32{0.5}, onlyPrim(t, r, 5).MorphWeights, 1e-5)

	// New primitives pick up the clip at its current time.
	apply(t, r, &protocol.Update{ID: 5, Patch: &protocol.NodePatch{Mesh: protocol.Some[ids.ID](4)}})
	prim := onlyPrim(t, r, 5)
	assert.InDeltaSlice(t, []float32{0.5}, prim.MorphWeights, 1e-5)
	r.Frame(250 * time.Millisecond)
	assert.InDeltaSlice(t, []float32{0.75}, prim.MorphWeights, 1e-5)

	// So do primitives rebuilt by a mesh update, and meshes on child nodes.
	apply(t, r,
		&protocol.Update{ID: 4, Patch: &protocol.MeshPatch{Name: protocol.Some("rebuilt")}},
		create(9, node(5, 3)),
	)
	r.Frame(100 * time.Millisecond)
	assert.InDeltaSlice(t, []float32{0.85}, onlyPrim(t, r, 5).MorphWeights, 1e-5)
	assert.InDeltaSlice(t, []float32{0.85}, onlyPrim(t, r, 9).MorphWeights, 1e-5)

	clip, ok := r.Clip(8)
	require.True(t, ok)
	assert.Len(t, clip.Tracks, 2)
}
