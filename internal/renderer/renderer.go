// Package renderer applies replication messages to the renderer-side scene.
// It owns the id -> object map and is driven from a single goroutine.
package renderer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/channel"
	"github.com/Faultbox/scenemirror/internal/engine/accessor"
	"github.com/Faultbox/scenemirror/internal/engine/animation"
	"github.com/Faultbox/scenemirror/internal/engine/attach"
	"github.com/Faultbox/scenemirror/internal/engine/collider"
	"github.com/Faultbox/scenemirror/internal/engine/deps"
	"github.com/Faultbox/scenemirror/internal/engine/material"
	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/engine/skeleton"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/logger"
	"github.com/Faultbox/scenemirror/internal/physics"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Options configures a Renderer.
type Options struct {
	// DefaultMaterial is bound to primitives without a material. It is
	// never disposed.
	DefaultMaterial *material.Material
	// AttachBudget caps per-frame attach work.
	AttachBudget time.Duration
	// Clock measures attach cost. Nil uses the wall clock.
	Clock attach.Clock
	// AutoPlay starts clips as soon as they compile.
	AutoPlay bool
	// ShowVisuals is the initial collider wireframe visibility.
	ShowVisuals bool
	// EagerJoints creates skin joints as bones before their node arrives.
	EagerJoints bool
}

// DefaultOptions returns the options used by the demo: auto-play and eager
// joints on, visuals off, white default material.
func DefaultOptions() Options {
	return Options{
		DefaultMaterial: material.NewDefault([4]float32{1, 1, 1, 1}),
		AttachBudget:    attach.DefaultBudget,
		AutoPlay:        true,
		EagerJoints:     true,
	}
}

// Renderer mirrors the Model's scene.
type Renderer struct {
	opts Options
	log  *zap.Logger

	dispatch  *channel.Dispatcher
	graph     *scenegraph.Graph
	accessors *accessor.Store
	materials *material.Store
	queue     *attach.Queue
	deps      *deps.Table
	skeletons *skeleton.Resolver
	mixer     *animation.Mixer
	visuals   *collider.Visualizer
	physics   physics.Sink

	nodes  map[ids.ID]*nodeState
	meshes map[ids.ID]*meshState
	prims  map[scenegraph.Ref]*primState
	// users maps a base material id to the primitives bound to it.
	users map[ids.ID]map[scenegraph.Ref]struct{}
	// created holds ids whose create was applied, built or not; retired
	// holds ids disposed directly or with an ancestor.
	created map[ids.ID]struct{}
	retired map[ids.ID]struct{}

	applied int
	errors  int
}

// New creates a renderer. sink receives baked collider geometry; nil
// discards it.
func New(opts Options, sink physics.Sink) *Renderer {
	if opts.DefaultMaterial == nil {
		opts.DefaultMaterial = material.NewDefault([4]float32{1, 1, 1, 1})
	}
	if sink == nil {
		sink = physics.Discard{}
	}

	r := &Renderer{
		opts:      opts,
		log:       logger.Named("renderer"),
		dispatch:  channel.NewDispatcher(),
		graph:     scenegraph.New(),
		accessors: accessor.NewStore(),
		materials: material.NewStore(opts.DefaultMaterial),
		deps:      deps.New(),
		physics:   sink,
		nodes:     make(map[ids.ID]*nodeState),
		meshes:    make(map[ids.ID]*meshState),
		prims:     make(map[scenegraph.Ref]*primState),
		users:     make(map[ids.ID]map[scenegraph.Ref]struct{}),
		created:   make(map[ids.ID]struct{}),
		retired:   make(map[ids.ID]struct{}),
	}
	r.queue = attach.New(r.graph, opts.AttachBudget, opts.Clock)
	r.mixer = animation.NewMixer(r.graph)
	r.visuals = collider.NewVisualizer(r.graph, opts.ShowVisuals)

	var factory skeleton.Factory
	if opts.EagerJoints {
		factory = r
	}
	r.skeletons = skeleton.New(r.accessors, r, factory)

	r.graph.OnWorldChanged = func(o *scenegraph.Object) {
		if o.Kind == scenegraph.KindGroup || o.Kind == scenegraph.KindBone {
			r.deps.Touch(deps.Source{ID: o.Source, Field: deps.FieldWorld})
		}
	}

	r.registerHandlers()
	return r
}

func (r *Renderer) registerHandlers() {
	d := r.dispatch
	d.Register(ids.KindAccessor, protocol.OpCreate, r.createAccessor)
	d.Register(ids.KindAccessor, protocol.OpDispose, r.disposeAccessor)
	d.Register(ids.KindTexture, protocol.OpCreate, r.createTexture)
	d.Register(ids.KindTexture, protocol.OpDispose, r.disposeTexture)
	d.Register(ids.KindMaterial, protocol.OpCreate, r.createMaterial)
	d.Register(ids.KindMaterial, protocol.OpUpdate, r.updateMaterial)
	d.Register(ids.KindMaterial, protocol.OpDispose, r.disposeMaterial)
	d.Register(ids.KindMesh, protocol.OpCreate, r.createMesh)
	d.Register(ids.KindMesh, protocol.OpUpdate, r.updateMesh)
	d.Register(ids.KindMesh, protocol.OpDispose, r.disposeMesh)
	d.Register(ids.KindNode, protocol.OpCreate, r.createNode)
	d.Register(ids.KindNode, protocol.OpUpdate, r.updateNode)
	d.Register(ids.KindNode, protocol.OpDispose, r.disposeNode)
	d.Register(ids.KindAnimation, protocol.OpCreate, r.createAnimation)
	d.Register(ids.KindAnimation, protocol.OpDispose, r.disposeAnimation)
	d.Register(ids.KindNone, protocol.OpControl, r.control)
}

// Fatal reports whether err must stop the message loop. Protocol
// violations are fatal; missing dependencies and invalid definitions only
// abort the entity they concern.
func Fatal(err error) bool {
	return ids.IsProtocol(err)
}

// Apply applies one message and recomputes derived state it invalidated.
// Non-fatal errors are logged with the offending entity and returned.
func (r *Renderer) Apply(msg protocol.Message) error {
	err := r.admit(msg)
	if err == nil {
		err = r.dispatch.Dispatch(msg)
		r.track(msg)
	}
	if ferr := r.flush(); err == nil {
		err = ferr
	}
	r.applied++
	if err == nil {
		return nil
	}

	r.errors++
	fields := []zap.Field{zap.String("msg", protocol.Describe(msg)), zap.Error(err)}
	var ee *ids.EntityError
	if errors.As(err, &ee) {
		fields = append(fields, zap.Stringer("kind", ee.Kind), zap.Stringer("id", ee.ID))
	}
	if Fatal(err) {
		r.log.Error("protocol violation", fields...)
	} else {
		r.log.Error("entity aborted", fields...)
	}
	return err
}

// admit checks msg against the lifecycle of its id: a create comes first
// and once, a dispose comes last. A repeated dispose is let through and
// does nothing.
func (r *Renderer) admit(msg protocol.Message) error {
	id := msg.Target()
	_, created := r.created[id]
	_, retired := r.retired[id]
	op := msg.Op()
	switch {
	case op == protocol.OpControl:
		return nil
	case op == protocol.OpCreate && retired:
		return ids.Protocol(msg.Kind(), id, "create", "create after dispose")
	case op == protocol.OpCreate && created:
		return ids.Protocol(msg.Kind(), id, "create", "duplicate create")
	case op == protocol.OpUpdate && retired:
		return ids.Protocol(msg.Kind(), id, "update", "update after dispose")
	case op == protocol.OpUpdate && !created:
		return ids.Protocol(msg.Kind(), id, "update", "update before create")
	case op == protocol.OpDispose && !created && !retired:
		return ids.Protocol(msg.Kind(), id, "dispose", "dispose before create")
	}
	return nil
}

func (r *Renderer) track(msg protocol.Message) {
	switch msg.Op() {
	case protocol.OpCreate:
		r.created[msg.Target()] = struct{}{}
	case protocol.OpDispose:
		r.retire(msg.Target())
	}
}

func (r *Renderer) retire(id ids.ID) {
	delete(r.created, id)
	r.retired[id] = struct{}{}
}

// unbuilt reports an update or use of an entity whose create was applied
// but failed, so nothing was built for it.
func unbuilt(kind ids.Kind, id ids.ID, op string) error {
	return ids.Invalid(kind, id, op, "entity was not built")
}

// Pump applies every message currently queued on ch, up to max (max <= 0
// means all). It stops at the first fatal error and returns it, leaving the
// rest queued. Other errors are logged by Apply and skipped.
func (r *Renderer) Pump(ch *channel.Channel, max int) (int, error) {
	n := 0
	for max <= 0 || n < max {
		env, ok := ch.TryRecv()
		if !ok {
			break
		}
		n++
		if err := r.Apply(env.Msg); err != nil && Fatal(err) {
			return n, err
		}
	}
	return n, nil
}

// Run applies messages until ctx ends, ch is closed, or a fatal error occurs.
// It is the blocking alternative to Pump for a renderer that has no frame loop.
func (r *Renderer) Run(ctx context.Context, ch *channel.Channel) error {
	for {
		env, err := ch.Recv(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				return nil
			}
			return err
		}
		if err := r.Apply(env.Msg); err != nil && Fatal(err) {
			return err
		}
	}
}

// FrameStats summarizes one frame.
type FrameStats struct {
	Attached int
	Pending  int
	Waiting  int
}

// Frame attaches queued objects within budget, advances animation by dt
// seconds and recomputes derived state.
func (r *Renderer) Frame(dt time.Duration) FrameStats {
	attached := r.queue.Drain()
	r.mixer.Update(float32(dt.Seconds()))
	if err := r.flush(); err != nil {
		r.errors++
		r.log.Error("derived state", zap.Error(err))
	}
	return FrameStats{
		Attached: attached,
		Pending:  r.queue.Pending(),
		Waiting:  r.queue.Waiting(),
	}
}

// ShowVisuals toggles collider wireframes.
func (r *Renderer) ShowVisuals(show bool) {
	r.visuals.Show(show)
}

// SetAttachBudget changes the per-frame attach budget.
func (r *Renderer) SetAttachBudget(d time.Duration) {
	r.queue.SetBudget(d)
}

func (r *Renderer) control(msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.ShowVisuals:
		r.ShowVisuals(m.Show)
		return nil
	}
	return ids.Protocol(ids.KindNone, ids.None, "control", "unknown control %T", msg)
}

// Stats is a snapshot of renderer state.
type Stats struct {
	Applied   int
	Errors    int
	Nodes     int
	Objects   int
	Meshes    int
	Accessors int
	Materials material.Stats
	Clips     int
	Playing   int
	Visuals   int
	Pending   int
	Waiting   int
}

// Stats returns current counters.
func (r *Renderer) Stats() Stats {
	return Stats{
		Applied:   r.applied,
		Errors:    r.errors,
		Nodes:     len(r.nodes),
		Objects:   r.graph.Len(),
		Meshes:    len(r.meshes),
		Accessors: r.accessors.Len(),
		Materials: r.materials.Stats(),
		Clips:     r.mixer.Len(),
		Playing:   r.mixer.Playing(),
		Visuals:   r.visuals.Len(),
		Pending:   r.queue.Pending(),
		Waiting:   r.queue.Waiting(),
	}
}

// Graph exposes the scene graph for inspection.
func (r *Renderer) Graph() *scenegraph.Graph {
	return r.graph
}

// Root returns the scene root.
func (r *Renderer) Root() *scenegraph.Object {
	return r.graph.Root()
}

// Object returns the renderer object of a node.
func (r *Renderer) Object(node ids.ID) (*scenegraph.Object, bool) {
	st, ok := r.nodes[node]
	if !ok {
		return nil, false
	}
	return st.obj, true
}

// Primitives returns the primitive objects built for a node's mesh.
func (r *Renderer) Primitives(node ids.ID) []*scenegraph.Object {
	st, ok := r.nodes[node]
	if !ok {
		return nil
	}
	return append([]*scenegraph.Object(nil), st.prims...)
}

// BoundMaterial returns the material bound to a primitive object.
func (r *Renderer) BoundMaterial(prim *scenegraph.Object) *material.Material {
	return prim.Material
}

// Material returns a base material.
func (r *Renderer) Material(id ids.ID) (*material.Material, bool) {
	return r.materials.Get(id)
}

// DefaultMaterial returns the fallback material.
func (r *Renderer) DefaultMaterial() *material.Material {
	return r.materials.Fallback()
}

// Clip returns the compiled clip of an animation.
func (r *Renderer) Clip(id ids.ID) (*animation.Clip, bool) {
	a, ok := r.mixer.Action(id)
	if !ok {
		return nil, false
	}
	return a.Clip, true
}

// Action returns the playback state of an animation.
func (r *Renderer) Action(id ids.ID) (*animation.Action, bool) {
	return r.mixer.Action(id)
}

// Visual returns a node's collider wireframe.
func (r *Renderer) Visual(node ids.ID) (*collider.Visual, bool) {
	return r.visuals.Get(node)
}
