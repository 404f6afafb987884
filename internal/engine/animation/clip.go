// Package animation compiles animation definitions into keyframe tracks and
// plays them against renderer objects.
package animation

import (
	"github.com/Faultbox/scenemirror/internal/engine/accessor"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

const opCompile = "compile"

// Track drives one property of one renderer object.
type Track struct {
	Target        scenegraph.Ref
	Path          protocol.Path
	Times         []float32
	Values        []float32
	ValueSize     int
	Interpolation protocol.Interpolation

	interp Interpolant
}

// NewTrack builds a track and its interpolant. For cubic splines the value
// size is a third of the per-key float count, since each key stores an
// in-tangent, a value and an out-tangent.
func NewTrack(target scenegraph.Ref, path protocol.Path, times, values []float32, interp protocol.Interpolation) *Track {
	t := &Track{
		Target:        target,
		Path:          path,
		Times:         times,
		Values:        values,
		Interpolation: interp,
	}
	if len(times) > 0 {
		t.ValueSize = len(values) / len(times)
	}
	if interp == protocol.InterpCubicSpline {
		t.ValueSize /= 3
	}

	rotation := path == protocol.PathRotation
	switch {
	case interp == protocol.InterpStep:
		t.interp = NewStep(times, values, t.ValueSize)
	case interp == protocol.InterpCubicSpline && rotation:
		t.interp = NewQuaternionCubicSpline(times, values)
	case interp == protocol.InterpCubicSpline:
		t.interp = NewCubicSpline(times, values, t.ValueSize)
	case rotation:
		t.interp = NewQuaternionLinear(times, values)
	default:
		t.interp = NewLinear(times, values, t.ValueSize)
	}
	return t
}

// Duration is the time of the last key.
func (t *Track) Duration() float32 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1]
}

// Evaluate samples the track at time into out, which must hold ValueSize floats.
func (t *Track) Evaluate(time float32, out []float32) {
	if t.ValueSize == 0 {
		return
	}
	t.interp.Evaluate(time, out)
}

// Clip is a compiled animation.
type Clip struct {
	ID       ids.ID
	Name     string
	Duration float32
	Tracks   []*Track
	// Morph keeps the weights channels so their tracks can follow the
	// morphable objects under each target.
	Morph []MorphChannel
}

// MorphChannel is a compiled weights channel.
type MorphChannel struct {
	Target        ids.ID
	Times         []float32
	Values        []float32
	Interpolation protocol.Interpolation
}

// MorphTargets returns the nodes whose morphable objects the clip drives.
func (c *Clip) MorphTargets() []ids.ID {
	out := make([]ids.ID, 0, len(c.Morph))
	for _, mc := range c.Morph {
		out = append(out, mc.Target)
	}
	return out
}

// Rebind rebuilds the weights tracks against the morphable objects
// currently under each target and returns how many there are. Other tracks
// are kept.
func (c *Clip) Rebind(targets Targets) int {
	tracks := make([]*Track, 0, len(c.Tracks))
	for _, t := range c.Tracks {
		if t.Path != protocol.PathWeights {
			tracks = append(tracks, t)
		}
	}
	n := 0
	for _, mc := range c.Morph {
		for _, obj := range targets.Morphables(mc.Target) {
			tracks = append(tracks, NewTrack(obj.Ref, protocol.PathWeights, mc.Times, mc.Values, mc.Interpolation))
			n++
		}
	}
	c.Tracks = tracks
	return n
}

// Targets resolves channel targets to renderer objects.
type Targets interface {
	// Target returns the object of a node.
	Target(node ids.ID) (*scenegraph.Object, bool)
	// Morphables returns every object under node that carries morph targets.
	Morphables(node ids.ID) []*scenegraph.Object
}

// Compile converts def into a clip. A weights channel produces one track per
// morphable object under its target and none if there is no such object;
// Rebind refreshes those tracks when the objects change.
func Compile(id ids.ID, def *protocol.AnimationDef, store *accessor.Store, targets Targets) (*Clip, error) {
	clip := &Clip{ID: id, Name: def.Name}
	for _, ch := range def.Channels {
		input, err := store.Require(ids.KindAnimation, id, opCompile, ch.Input)
		if err != nil {
			return nil, err
		}
		output, err := store.Require(ids.KindAnimation, id, opCompile, ch.Output)
		if err != nil {
			return nil, err
		}
		node, ok := targets.Target(ch.Target)
		if !ok {
			return nil, ids.Missing(ids.KindAnimation, id, opCompile, ids.KindNode, ch.Target)
		}

		times := input.AsFloats()
		values := output.AsFloats()
		if len(times) == 0 {
			return nil, ids.Invalid(ids.KindAnimation, id, opCompile, "channel on %s has no keyframes", ch.Target)
		}
		perKey := len(values) / len(times)
		if perKey == 0 || len(values)%len(times) != 0 {
			return nil, ids.Invalid(ids.KindAnimation, id, opCompile, "%d output values for %d keyframes", len(values), len(times))
		}
		if ch.Interpolation == protocol.InterpCubicSpline && perKey%3 != 0 {
			return nil, ids.Invalid(ids.KindAnimation, id, opCompile, "cubic spline key of %d values is not tangent/value/tangent", perKey)
		}

		size := perKey
		if ch.Interpolation == protocol.InterpCubicSpline {
			size /= 3
		}
		if want := pathSize(ch.Path); want != 0 && size != want {
			return nil, ids.Invalid(ids.KindAnimation, id, opCompile, "%s channel on %s has value size %d, want %d", ch.Path, ch.Target, size, want)
		}

		if ch.Path == protocol.PathWeights {
			clip.Morph = append(clip.Morph, MorphChannel{
				Target:        ch.Target,
				Times:         times,
				Values:        values,
				Interpolation: ch.Interpolation,
			})
			continue
		}
		clip.Tracks = append(clip.Tracks, NewTrack(node.Ref, ch.Path, times, values, ch.Interpolation))
	}

	clip.Rebind(targets)

	for _, t := range clip.Tracks {
		if d := t.Duration(); d > clip.Duration {
			clip.Duration = d
		}
	}
	for _, mc := range clip.Morph {
		if d := mc.Times[len(mc.Times)-1]; d > clip.Duration {
			clip.Duration = d
		}
	}
	return clip, nil
}

// pathSize is the value size a path requires, or zero when it depends on the
// target (morph weights).
func pathSize(p protocol.Path) int {
	switch p {
	case protocol.PathTranslation, protocol.PathScale:
		return 3
	case protocol.PathRotation:
		return 4
	}
	return 0
}
