package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/model"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

type recorder struct {
	msgs []protocol.Message
}

func (r *recorder) Send(_ context.Context, msg protocol.Message) error {
	r.msgs = append(r.msgs, msg.Clone())
	return nil
}

func TestKeyFoldsCaseAndComposition(t *testing.T) {
	assert.Equal(t, Key("Bone.L"), Key("bone.l"))
	// "é" precomposed and as e + combining acute.
	assert.Equal(t, Key("café"), Key("café"))
	assert.Equal(t, Key("Straße"), Key("STRASSE"))
	assert.Equal(t, Key("arm"), Key("  arm "))
}

func TestReplayCreatesParentsFirst(t *testing.T) {
	d := New("t")
	// The child is added before its parent.
	child := d.AddNode("child", &protocol.NodeDef{Parent: 3, Transform: protocol.IdentityTRS()})
	mat := d.Color("Red", [4]float32{1, 0, 0, 1})
	parent := d.Group("parent", ids.None, [3]float32{1, 0, 0})
	require.Equal(t, ids.ID(3), parent)

	rec := &recorder{}
	m := model.New(rec)
	res, err := Replay(context.Background(), d, m)
	require.NoError(t, err)

	pid, ok := res.Lookup("PARENT")
	require.True(t, ok)
	cid := res.ID(child)
	def, ok := m.Node(cid)
	require.True(t, ok)
	assert.Equal(t, pid, def.Parent)
	assert.Less(t, pid, cid)

	mid, ok := res.Lookup("red")
	require.True(t, ok)
	assert.Equal(t, res.ID(mat), mid)
	assert.Len(t, rec.msgs, 3)
}

func TestReplayRejectsBadParents(t *testing.T) {
	d := New("t")
	d.AddNode("a", &protocol.NodeDef{Parent: 2})
	d.AddNode("b", &protocol.NodeDef{Parent: 1})
	_, err := Replay(context.Background(), d, model.New(&recorder{}))
	assert.ErrorContains(t, err, "cycle")

	d = New("t")
	d.AddNode("a", &protocol.NodeDef{Parent: 9})
	_, err = Replay(context.Background(), d, model.New(&recorder{}))
	assert.ErrorContains(t, err, "not in document")
}

func TestReplayRemapsHandles(t *testing.T) {
	d := New("t")
	mat := d.Color("blue", [4]float32{0, 0, 1, 1})
	strip, joints := d.SkinnedStrip("tail", ids.None, 2, mat)
	clip := d.Bounce("bounce", strip, 1, 2)

	rec := &recorder{}
	m := model.New(rec)
	res, err := Replay(context.Background(), d, m)
	require.NoError(t, err)

	// The skinned mesh follows its joints and is bound with an update.
	var mesh *protocol.MeshDef
	var bound bool
	for _, msg := range rec.msgs {
		switch v := msg.(type) {
		case *protocol.Create:
			if md, ok := v.Def.(*protocol.MeshDef); ok {
				mesh = md
			}
		case *protocol.Update:
			p := v.Patch.(*protocol.NodePatch)
			got, ok := p.Mesh.Get()
			bound = ok && got.Valid() && v.ID == res.ID(strip)
		}
	}
	require.NotNil(t, mesh)
	assert.True(t, bound)

	prim := mesh.Shape.(*protocol.PrimitiveSet).Primitives[0]
	require.NotNil(t, prim.Skin)
	assert.Equal(t, []ids.ID{res.ID(joints[0]), res.ID(joints[1])}, prim.Skin.Joints)
	assert.Equal(t, res.ID(mat), prim.Material)
	for attr, id := range prim.Attributes {
		assert.Equal(t, ids.KindAccessor, m.Registry().Kind(id), attr)
	}

	def, ok := m.Definition(res.ID(clip))
	require.True(t, ok)
	assert.Equal(t, res.ID(strip), def.(*protocol.AnimationDef).Channels[0].Target)

	// The document keeps its own handles.
	docPrim := d.Meshes[0].Def.Shape.(*protocol.PrimitiveSet).Primitives[0]
	assert.Equal(t, joints, docPrim.Skin.Joints)
}

func TestSceneIsDeterministic(t *testing.T) {
	a := Scene(20, 7)
	b := Scene(20, 7)
	require.Equal(t, a.Len(), b.Len())
	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i].Def.Parent, b.Nodes[i].Def.Parent)
		assert.Equal(t, a.Nodes[i].Def.Transform, b.Nodes[i].Def.Transform)
	}

	res, err := Replay(context.Background(), a, model.New(&recorder{}))
	require.NoError(t, err)
	_, ok := res.Lookup("tail.bone2")
	assert.True(t, ok)
	assert.Len(t, a.Animations, 2)
}
