// Package skeleton binds skinned primitives to their joint bones.
package skeleton

import (
	"github.com/Faultbox/scenemirror/internal/engine/accessor"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

const opBind = "bind skin"

// Joints looks up the renderer object of a joint node.
type Joints interface {
	Joint(id ids.ID) (*scenegraph.Object, bool)
}

// Factory creates a joint object ahead of its node's create message and
// drops it again once no skin needs it.
type Factory interface {
	NewJoint(id ids.ID) (*scenegraph.Object, error)
	DropJoint(id ids.ID)
}

type binding struct {
	mesh ids.ID
	skin *protocol.SkinDef
}

// Resolver tracks skinned primitives and binds each once all of its joints
// exist. Resolving is idempotent and may be repeated whenever a joint arrives.
type Resolver struct {
	accessors *accessor.Store
	joints    Joints
	factory   Factory
	skins     map[scenegraph.Ref]binding
	// placeholders maps a joint created by the factory to the skinned
	// primitives referencing it, until its node adopts it.
	placeholders map[ids.ID]map[scenegraph.Ref]struct{}
}

// New creates a resolver. A nil factory disables eager joint creation, in
// which case primitives wait until every joint node has been created.
func New(accessors *accessor.Store, joints Joints, factory Factory) *Resolver {
	return &Resolver{
		accessors: accessors,
		joints:    joints,
		factory:   factory,
		skins:     make(map[scenegraph.Ref]binding),

		placeholders: make(map[ids.ID]map[scenegraph.Ref]struct{}),
	}
}

// Register records the skin of target, creates missing joints when a
// factory is set, and attempts a bind.
func (r *Resolver) Register(target *scenegraph.Object, mesh ids.ID, skin *protocol.SkinDef) (bool, error) {
	r.skins[target.Ref] = binding{mesh: mesh, skin: skin}
	if r.factory != nil {
		for _, j := range skin.Joints {
			if _, ok := r.joints.Joint(j); !ok {
				if _, err := r.factory.NewJoint(j); err != nil {
					return false, err
				}
				r.placeholders[j] = make(map[scenegraph.Ref]struct{})
			}
			if users, ok := r.placeholders[j]; ok {
				users[target.Ref] = struct{}{}
			}
		}
	}
	return r.Resolve(target)
}

// Adopt records that joint's node has been created, so the joint object is
// no longer dropped with the skins that asked for it.
func (r *Resolver) Adopt(joint ids.ID) {
	delete(r.placeholders, joint)
}

// Placeholders returns the number of joints created ahead of their node.
func (r *Resolver) Placeholders() int {
	return len(r.placeholders)
}

// Skin returns the registered skin of ref.
func (r *Resolver) Skin(ref scenegraph.Ref) (*protocol.SkinDef, bool) {
	b, ok := r.skins[ref]
	return b.skin, ok
}

// Forget drops ref's registration. Placeholder joints no other skin
// references are handed back to the factory.
func (r *Resolver) Forget(ref scenegraph.Ref) {
	b, ok := r.skins[ref]
	if !ok {
		return
	}
	delete(r.skins, ref)
	for _, j := range b.skin.Joints {
		users, ok := r.placeholders[j]
		if !ok {
			continue
		}
		delete(users, ref)
		if len(users) == 0 {
			delete(r.placeholders, j)
			r.factory.DropJoint(j)
		}
	}
}

// Len returns the number of registered skinned primitives.
func (r *Resolver) Len() int {
	return len(r.skins)
}

// Resolve binds target's skeleton if every joint is present, replacing any
// previous binding, and clears the binding otherwise. It reports whether
// target is now bound. Missing joints are not an error; a missing inverse
// bind matrix accessor is.
func (r *Resolver) Resolve(target *scenegraph.Object) (bool, error) {
	b, ok := r.skins[target.Ref]
	if !ok {
		return false, nil
	}

	inverse, err := r.inverseBind(b)
	if err != nil {
		return false, err
	}

	bones := make([]scenegraph.Ref, len(b.skin.Joints))
	complete := true
	for i, j := range b.skin.Joints {
		obj, ok := r.joints.Joint(j)
		if !ok {
			complete = false
			continue
		}
		obj.Kind = scenegraph.KindBone
		bones[i] = obj.Ref
	}
	if !complete {
		target.Skeleton = nil
		return false, nil
	}

	target.Kind = scenegraph.KindSkinnedPrimitive
	target.Skeleton = &scenegraph.Skeleton{Bones: bones, InverseBind: inverse}
	return true, nil
}

func (r *Resolver) inverseBind(b binding) ([]math.Mat4, error) {
	out := make([]math.Mat4, len(b.skin.Joints))
	if !b.skin.InverseBindMatrices.Valid() {
		for i := range out {
			out[i] = math.Identity()
		}
		return out, nil
	}
	acc, err := r.accessors.Require(ids.KindMesh, b.mesh, opBind, b.skin.InverseBindMatrices)
	if err != nil {
		return nil, err
	}
	if acc.Type != protocol.Mat4 {
		return nil, ids.Invalid(ids.KindMesh, b.mesh, opBind, "inverse bind accessor %s is %s, want mat4", b.skin.InverseBindMatrices, acc.Type)
	}
	data := acc.AsFloats()
	if len(data) < len(out)*16 {
		return nil, ids.Invalid(ids.KindMesh, b.mesh, opBind, "%d inverse bind matrices for %d joints", len(data)/16, len(out))
	}
	for i := range out {
		out[i] = math.Mat4FromSlice(data, i*16)
	}
	return out, nil
}

// Pose returns the joint matrices of s: each bone's world matrix times its
// inverse bind matrix.
func Pose(g *scenegraph.Graph, s *scenegraph.Skeleton) []math.Mat4 {
	out := make([]math.Mat4, len(s.Bones))
	for i, bone := range s.Bones {
		out[i] = g.World(bone).Mul(s.InverseBind[i])
	}
	return out
}
