package render

import (
	"fmt"
	"log/slog"

	"meshspin/internal/gpu"
)

// Targets owns the swapchain-sized textures: the multisampled color target
// (absent when rendering single-sampled) and the depth/stencil target
// (absent when depth is disabled).
type Targets struct {
	dev         gpu.Device
	colorFormat gpu.TextureFormat
	depthFormat gpu.TextureFormat
	samples     gpu.SampleCount
	hasDepth    bool

	color *gpu.Slot[gpu.Texture]
	depth *gpu.Slot[gpu.Texture]

	width, height int
	generation    int
}

// NewTargets creates the targets for a width x height window matching the
// formats of rs.
func NewTargets(dev gpu.Device, rs *ResourceSet, width, height int) (*Targets, error) {
	t := &Targets{
		dev:         dev,
		colorFormat: rs.ColorFormat,
		depthFormat: rs.DepthFormat,
		samples:     rs.SampleCount,
		hasDepth:    rs.HasDepth,
		color:       gpu.NewSlot[gpu.Texture](dev),
		depth:       gpu.NewSlot[gpu.Texture](dev),
	}
	if err := t.Resize(width, height); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

// Resize recreates both targets at width x height. Each old texture is
// released before its replacement is created. A zero-sized window keeps
// the current targets; the next non-zero size recreates them.
func (t *Targets) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		slog.Debug("Ignoring resize to empty window", "width", width, "height", height)
		return nil
	}
	if t.samples > gpu.SampleCount1 {
		_, err := t.color.Replace(func() (gpu.Texture, error) {
			return t.dev.CreateTexture(&gpu.TextureCreateInfo{
				Name:        "MSAA Texture",
				Format:      t.colorFormat,
				Usage:       gpu.TextureUsageColorTarget,
				Width:       uint32(width),
				Height:      uint32(height),
				NumLevels:   1,
				SampleCount: t.samples,
			})
		})
		if err != nil {
			return fmt.Errorf("couldn't create MSAA texture: %w", err)
		}
	}
	if t.hasDepth {
		_, err := t.depth.Replace(func() (gpu.Texture, error) {
			return t.dev.CreateTexture(&gpu.TextureCreateInfo{
				Name:        "Depth Stencil Texture",
				Format:      t.depthFormat,
				Usage:       gpu.TextureUsageDepthStencilTarget,
				Width:       uint32(width),
				Height:      uint32(height),
				NumLevels:   1,
				SampleCount: t.samples,
			})
		})
		if err != nil {
			return fmt.Errorf("couldn't create depth stencil texture: %w", err)
		}
	}
	t.width, t.height = width, height
	t.generation++
	return nil
}

// Color returns the multisampled color target, if any.
func (t *Targets) Color() (gpu.Texture, bool) { return t.color.Get() }

// Depth returns the depth/stencil target, if any.
func (t *Targets) Depth() (gpu.Texture, bool) { return t.depth.Get() }

// Size returns the dimensions the targets were last created with.
func (t *Targets) Size() (width, height int) { return t.width, t.height }

// Generation counts successful recreations, starting at 1 after
// NewTargets.
func (t *Targets) Generation() int { return t.generation }

func (t *Targets) Release() {
	t.color.Release()
	t.depth.Release()
}
