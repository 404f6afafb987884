// Package app wires the demo: a Model goroutine replays a generated scene
// and mutates it while the Renderer mirrors it frame by frame.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/scenemirror/internal/channel"
	"github.com/Faultbox/scenemirror/internal/config"
	"github.com/Faultbox/scenemirror/internal/document"
	"github.com/Faultbox/scenemirror/internal/engine/material"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/logger"
	"github.com/Faultbox/scenemirror/internal/model"
	"github.com/Faultbox/scenemirror/internal/physics"
	"github.com/Faultbox/scenemirror/internal/protocol"
	"github.com/Faultbox/scenemirror/internal/renderer"
)

// App is the demo instance.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	ch       *channel.Channel
	model    *model.Model
	renderer *renderer.Renderer
	sink     physics.Sink
	reload   chan *config.Config

	frames int
}

// New creates the demo. With a physics address configured, baked collider
// geometry is streamed there; otherwise it is consumed locally and logged.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:    cfg,
		log:    logger.Named("app"),
		ch:     channel.New(cfg.Channel.Buffer),
		reload: make(chan *config.Config, 1),
	}

	if cfg.Demo.PhysicsAddr != "" {
		conn, err := physics.Dial("tcp", cfg.Demo.PhysicsAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect physics: %w", err)
		}
		a.sink = conn
	} else {
		a.sink = physics.NewChannelSink(64)
	}

	a.model = model.New(a.ch)
	a.renderer = renderer.New(RendererOptions(cfg), a.sink)

	a.log.Info("demo initialized",
		zap.Stringer("session", a.ch.Session()),
		zap.Int("scene_size", cfg.Demo.SceneSize),
		zap.Duration("attach_budget", cfg.Renderer.AttachBudget.Std()))
	return a, nil
}

// RendererOptions maps the renderer section of cfg.
func RendererOptions(cfg *config.Config) renderer.Options {
	opts := renderer.DefaultOptions()
	opts.DefaultMaterial = material.NewDefault(cfg.Renderer.DefaultColor)
	opts.AttachBudget = cfg.Renderer.AttachBudget.Std()
	opts.AutoPlay = cfg.Renderer.AutoPlay
	opts.ShowVisuals = cfg.Renderer.ShowVisuals
	opts.EagerJoints = cfg.Renderer.EagerJoints
	return opts
}

// Reload hands a new config to the frame loop. Only the live toggles apply:
// the attach budget and collider visuals.
func (a *App) Reload(cfg *config.Config) {
	select {
	case a.reload <- cfg:
	default:
		// Drop the stale one.
		select {
		case <-a.reload:
		default:
		}
		a.reload <- cfg
	}
}

// Renderer returns the renderer.
func (a *App) Renderer() *renderer.Renderer {
	return a.renderer
}

// Run starts the Model goroutine and runs the frame loop until the
// configured frame count is reached, ctx ends, or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	produced := make(chan error, 1)
	go func() {
		defer a.ch.Close()
		produced <- a.produce(ctx)
	}()

	if cs, ok := a.sink.(*physics.ChannelSink); ok {
		go cs.Consume(ctx, func(p *physics.ColliderGeometry) {
			a.log.Debug("collider geometry",
				zap.Stringer("node", p.Node),
				zap.Int("vertices", len(p.Positions)/3),
				zap.Int("indices", len(p.Indices)))
		})
	}

	interval := a.cfg.Demo.FrameInterval.Std()
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Info("starting frame loop")
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-produced:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("model error: %w", err)
			}
			produced = nil
		case cfg := <-a.reload:
			a.renderer.SetAttachBudget(cfg.Renderer.AttachBudget.Std())
			a.renderer.ShowVisuals(cfg.Renderer.ShowVisuals)
			a.log.Info("config applied",
				zap.Duration("attach_budget", cfg.Renderer.AttachBudget.Std()),
				zap.Bool("show_visuals", cfg.Renderer.ShowVisuals))
		case now := <-ticker.C:
			dt := now.Sub(lastTime)
			lastTime = now

			if _, err := a.renderer.Pump(a.ch, 0); err != nil {
				return fmt.Errorf("renderer stopped: %w", err)
			}
			st := a.renderer.Frame(dt)
			a.frames++

			frameCount++
			if time.Since(fpsTimer) >= time.Second {
				a.log.Debug("fps",
					zap.Int("count", frameCount),
					zap.Int("attached", st.Attached),
					zap.Int("pending", st.Pending),
					zap.Int("waiting", st.Waiting))
				frameCount = 0
				fpsTimer = time.Now()
			}

			if n := a.cfg.Demo.Frames; n > 0 && a.frames >= n {
				return nil
			}
		}
	}
}

// produce replays the generated scene and then mutates it until ctx ends or
// the script runs out.
func (a *App) produce(ctx context.Context) error {
	doc := document.Scene(a.cfg.Demo.SceneSize, a.cfg.Demo.Seed)
	res, err := document.Replay(ctx, doc, a.model)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	a.log.Info("scene replayed", zap.Int("definitions", doc.Len()), zap.Int("ids", a.model.Registry().Count()))

	nodes := make([]ids.ID, 0, len(doc.Nodes))
	for _, e := range doc.Nodes {
		nodes = append(nodes, res.ID(e.Handle))
	}
	var materials []ids.ID
	for _, e := range doc.Materials {
		materials = append(materials, res.ID(e.Handle))
	}
	return a.script(ctx, rand.New(rand.NewPCG(a.cfg.Demo.Seed, 1)), nodes, materials)
}

// script performs one random mutation per frame interval.
func (a *App) script(ctx context.Context, rng *rand.Rand, nodes, materials []ids.ID) error {
	interval := a.cfg.Demo.FrameInterval.Std()
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	steps := a.cfg.Demo.Frames
	if steps <= 0 {
		steps = 1 << 30
	}

	for step := 0; step < steps && len(nodes) > 1; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		n := nodes[rng.IntN(len(nodes))]
		if !a.model.Live(n) {
			continue
		}
		var err error
		switch rng.IntN(6) {
		case 0:
			p := nodes[rng.IntN(len(nodes))]
			if !a.model.Live(p) {
				p = ids.None
			}
			err = a.model.SetParent(ctx, n, p)
			if ids.IsProtocol(err) {
				// Would create a cycle; try another move next step.
				err = nil
			}
		case 1:
			tr, _ := a.model.Node(n)
			t := tr.Transform
			t.Translation[1] += rng.Float32() - 0.5
			err = a.model.SetTransform(ctx, n, t)
		case 2:
			err = a.model.SetMaterial(ctx, n, materials[rng.IntN(len(materials))])
		case 3:
			err = a.model.SetCollider(ctx, n, &protocol.ColliderDef{Shape: protocol.ShapeAuto, Auto: protocol.ShapeCapsule})
		case 4:
			err = a.model.ShowVisuals(ctx, rng.IntN(2) == 0)
		case 5:
			if step%10 == 0 {
				err = a.model.Dispose(ctx, n)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close releases the physics connection and logs final counters.
func (a *App) Close() {
	st := a.renderer.Stats()
	a.log.Info("closing demo",
		zap.Int("frames", a.frames),
		zap.Int("applied", st.Applied),
		zap.Int("errors", st.Errors),
		zap.Int("nodes", st.Nodes),
		zap.Int("objects", st.Objects),
		zap.Int("variants", st.Materials.Variants),
		zap.Int("visuals", st.Visuals))

	switch s := a.sink.(type) {
	case *physics.ChannelSink:
		s.Close()
	case *physics.ConnSink:
		s.Close()
	}
}
