package animation

import (
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/logger"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Action is the playback state of one clip.
type Action struct {
	Clip    *Clip
	Time    float32
	Loop    bool
	Playing bool
}

// Mixer caches compiled clips by animation id and advances the playing ones.
type Mixer struct {
	graph   *scenegraph.Graph
	actions map[ids.ID]*Action
	order   []ids.ID
	scratch []float32
}

// NewMixer creates a mixer writing into graph.
func NewMixer(graph *scenegraph.Graph) *Mixer {
	return &Mixer{
		graph:   graph,
		actions: make(map[ids.ID]*Action),
	}
}

// Add caches clip, replacing any previous clip with the same id, and starts
// it when play is set.
func (m *Mixer) Add(clip *Clip, play bool) *Action {
	if _, ok := m.actions[clip.ID]; !ok {
		m.order = append(m.order, clip.ID)
	}
	a := &Action{Clip: clip, Loop: true, Playing: play}
	m.actions[clip.ID] = a
	if play {
		m.apply(a)
	}
	return a
}

// Action returns the cached action of an animation.
func (m *Mixer) Action(id ids.ID) (*Action, bool) {
	a, ok := m.actions[id]
	return a, ok
}

// Play restarts a cached clip from the beginning.
func (m *Mixer) Play(id ids.ID) bool {
	a, ok := m.actions[id]
	if !ok {
		return false
	}
	a.Time = 0
	a.Playing = true
	return true
}

// Stop halts a clip without dropping it from the cache.
func (m *Mixer) Stop(id ids.ID) bool {
	a, ok := m.actions[id]
	if !ok {
		return false
	}
	a.Playing = false
	return true
}

// Remove stops and uncaches a clip. Removing an unknown id is a no-op.
func (m *Mixer) Remove(id ids.ID) bool {
	if _, ok := m.actions[id]; !ok {
		return false
	}
	delete(m.actions, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Refresh writes a playing clip's current values again, typically after
// its tracks were rebound to new objects.
func (m *Mixer) Refresh(id ids.ID) bool {
	a, ok := m.actions[id]
	if !ok || !a.Playing {
		return false
	}
	m.apply(a)
	return true
}

// Len returns the number of cached clips.
func (m *Mixer) Len() int {
	return len(m.actions)
}

// Playing returns the number of clips currently playing.
func (m *Mixer) Playing() int {
	n := 0
	for _, a := range m.actions {
		if a.Playing {
			n++
		}
	}
	return n
}

// Update advances every playing clip by dt seconds and writes the sampled
// values into their targets.
func (m *Mixer) Update(dt float32) {
	for _, id := range m.order {
		a := m.actions[id]
		if !a.Playing {
			continue
		}
		a.Time += dt
		if d := a.Clip.Duration; a.Time > d {
			switch {
			case a.Loop && d > 0:
				a.Time = math32.Mod(a.Time, d)
			default:
				a.Time = d
				a.Playing = false
			}
		}
		m.apply(a)
	}
}

func (m *Mixer) apply(a *Action) {
	for _, t := range a.Clip.Tracks {
		obj, ok := m.graph.Get(t.Target)
		if !ok {
			continue
		}
		if cap(m.scratch) < t.ValueSize {
			m.scratch = make([]float32, t.ValueSize)
		}
		v := m.scratch[:t.ValueSize]
		t.Evaluate(a.Time, v)
		m.write(obj, t, v)
	}
}

func (m *Mixer) write(obj *scenegraph.Object, t *Track, v []float32) {
	switch t.Path {
	case protocol.PathTranslation:
		m.graph.SetPosition(obj.Ref, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case protocol.PathRotation:
		m.graph.SetRotation(obj.Ref, math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}.Normalize())
	case protocol.PathScale:
		m.graph.SetScale(obj.Ref, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case protocol.PathWeights:
		if len(obj.MorphWeights) != len(v) {
			obj.MorphWeights = make([]float32, len(v))
		}
		copy(obj.MorphWeights, v)
	default:
		logger.Warn("animation track with unknown path", zap.Stringer("path", t.Path))
	}
}
