package render

import (
	"context"
	"fmt"
	"log/slog"

	"meshspin/internal/asset"
	"meshspin/internal/config"
	"meshspin/internal/content"
	"meshspin/internal/gpu"
)

type EventKind int

const (
	EventQuit EventKind = iota + 1
	// EventResize reports a new framebuffer size. Handlers re-query the
	// window rather than trusting the payload, which may be stale by the
	// time it is processed.
	EventResize
)

type Event struct {
	Kind          EventKind
	Width, Height int
}

// Window is the part of the OS window the loop needs.
type Window interface {
	// Size returns the framebuffer size in pixels.
	Size() (width, height int)
	// PollEvents returns the events received since the last call.
	PollEvents() []Event
	// Show makes the window visible.
	Show()
}

// App owns the GPU resources of the demo and runs its loop.
type App struct {
	dev      gpu.Device
	window   Window
	res      *ResourceSet
	targets  *Targets
	renderer *Renderer
	clock    Clock
	log      *slog.Logger
}

// LoadScene reads the mesh and texture selected by scene.
func LoadScene(res *content.Resolver, scene config.Scene) (*asset.Mesh, *asset.PixelBuffer, error) {
	var mesh *asset.Mesh
	switch scene.Mesh {
	case config.MeshQuad:
		mesh = asset.Quad()
	case config.MeshCube:
		mesh = asset.Cube()
	default:
		m, err := asset.LoadMesh(res.Model(scene.Model))
		if err != nil {
			return nil, nil, err
		}
		mesh = m
	}
	px, err := asset.LoadImagePixels(res.Image(scene.Texture), 4)
	if err != nil {
		return nil, nil, err
	}
	return mesh, px, nil
}

// NewApp loads the scene, uploads it to dev and creates the render targets
// for the current window size. The window is shown once everything is in
// place.
func NewApp(dev gpu.Device, window Window, res *content.Resolver, scene config.Scene, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("Using GPU device", "driver", dev.Driver())

	mesh, px, err := LoadScene(res, scene)
	if err != nil {
		return nil, err
	}
	log.Debug("Scene loaded", "vertices", len(mesh.Vertices), "indices", len(mesh.Indices),
		"texture", scene.Texture, "width", px.Width, "height", px.Height)

	rs, err := NewResourceSet(dev, res, mesh, px, ResourceOptions{
		VertexShader:   scene.VertexShader,
		FragmentShader: scene.FragmentShader,
		TextureName:    scene.Texture,
		SampleCount:    gpu.SampleCount(scene.SampleCount),
		DepthTarget:    scene.DepthTarget,
		MVPUniform:     scene.MVPUniform,
	})
	if err != nil {
		return nil, err
	}
	w, h := window.Size()
	targets, err := NewTargets(dev, rs, w, h)
	if err != nil {
		rs.Release()
		return nil, err
	}
	window.Show()

	return &App{
		dev:      dev,
		window:   window,
		res:      rs,
		targets:  targets,
		renderer: NewRenderer(dev, rs, targets, window),
		clock:    NewClock(),
		log:      log,
	}, nil
}

// SetClock replaces the tick source.
func (a *App) SetClock(c Clock) { a.clock = c }

// Targets exposes the render targets.
func (a *App) Targets() *Targets { return a.targets }

// HandleEvent applies ev and reports whether the loop should stop.
func (a *App) HandleEvent(ev Event) (quit bool, err error) {
	switch ev.Kind {
	case EventQuit:
		return true, nil
	case EventResize:
		w, h := a.window.Size()
		if err := a.targets.Resize(w, h); err != nil {
			return false, err
		}
		a.log.Debug("Render targets recreated", "width", w, "height", h, "generation", a.targets.Generation())
	}
	return false, nil
}

// DrawFrame renders one frame at the current clock time.
func (a *App) DrawFrame() error {
	return a.renderer.Frame(a.clock.Ticks())
}

// Run draws frames until a quit event arrives or ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("Entering main loop")
	for {
		if err := ctx.Err(); err != nil {
			a.log.Info("Stopping", "reason", context.Cause(ctx))
			return nil
		}
		for _, ev := range a.window.PollEvents() {
			quit, err := a.HandleEvent(ev)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
		if err := a.DrawFrame(); err != nil {
			return fmt.Errorf("draw frame: %w", err)
		}
	}
}

// Close waits for the GPU and releases the targets, then the resource
// set. The device itself belongs to the caller.
func (a *App) Close() error {
	err := a.dev.WaitIdle()
	a.targets.Release()
	a.res.Release()
	if err != nil {
		return fmt.Errorf("wait for GPU idle: %w", err)
	}
	return nil
}
