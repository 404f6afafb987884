package renderer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/engine/animation"
	"github.com/Faultbox/scenemirror/internal/engine/deps"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// createAnimation compiles the clip, caches it by id and, with auto-play on,
// starts it immediately.
func (r *Renderer) createAnimation(msg protocol.Message) error {
	m := msg.(*protocol.Create)
	if _, ok := r.mixer.Action(m.ID); ok {
		return ids.Protocol(ids.KindAnimation, m.ID, "create", "duplicate create")
	}
	clip, err := animation.Compile(m.ID, m.Def.(*protocol.AnimationDef), r.accessors, r)
	if err != nil {
		return err
	}
	r.mixer.Add(clip, r.opts.AutoPlay)
	r.watchMorph(clip)
	r.log.Debug("clip compiled",
		zap.Stringer("id", m.ID),
		zap.String("name", clip.Name),
		zap.Int("tracks", len(clip.Tracks)),
		zap.Float32("duration", clip.Duration))
	return nil
}

// disposeAnimation stops and uncaches the clip.
func (r *Renderer) disposeAnimation(msg protocol.Message) error {
	r.deps.Forget(morphKey(msg.Target()))
	r.mixer.Remove(msg.Target())
	return nil
}

func morphKey(anim ids.ID) deps.Derived {
	return deps.Derived{Kind: deps.DerivedMorphTracks, Key: uint64(anim)}
}

// watchMorph subscribes a clip's weights tracks to the morphable objects
// under their targets.
func (r *Renderer) watchMorph(clip *animation.Clip) {
	targets := clip.MorphTargets()
	if len(targets) == 0 {
		return
	}
	sources := make([]deps.Source, len(targets))
	for i, node := range targets {
		sources[i] = deps.Source{ID: node, Field: deps.FieldMorphables}
	}
	r.deps.Depend(morphKey(clip.ID), sources...)
}

// rebindMorph points a clip's weights tracks at the current morphable
// objects and writes the current sample into them.
func (r *Renderer) rebindMorph(anim ids.ID) {
	a, ok := r.mixer.Action(anim)
	if !ok {
		return
	}
	n := a.Clip.Rebind(r)
	r.mixer.Refresh(anim)
	r.log.Debug("morph tracks rebound", zap.Stringer("id", anim), zap.Int("tracks", n))
}

// touchMorphables notifies clips targeting obj or any of its ancestors that
// the morphable objects below them changed.
func (r *Renderer) touchMorphables(obj *scenegraph.Object) {
	for obj != nil && obj.Ref != scenegraph.RootRef {
		if obj.Kind == scenegraph.KindGroup || obj.Kind == scenegraph.KindBone {
			r.deps.Touch(deps.Source{ID: obj.Source, Field: deps.FieldMorphables})
		}
		parent, ok := r.graph.Get(obj.Parent)
		if !ok {
			break
		}
		obj = parent
	}
}

// PlayAnimation restarts a cached clip.
func (r *Renderer) PlayAnimation(id ids.ID) bool {
	return r.mixer.Play(id)
}

// StopAnimation halts a cached clip.
func (r *Renderer) StopAnimation(id ids.ID) bool {
	return r.mixer.Stop(id)
}
