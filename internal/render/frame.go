package render

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"meshspin/internal/gpu"
)

// ClearColor fills the color target before the mesh is drawn.
var ClearColor = gpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}

// Renderer records and submits one command buffer per frame.
type Renderer struct {
	dev     gpu.Device
	res     *ResourceSet
	targets *Targets
	window  Window
}

func NewRenderer(dev gpu.Device, res *ResourceSet, targets *Targets, window Window) *Renderer {
	return &Renderer{dev: dev, res: res, targets: targets, window: window}
}

// Frame draws the mesh at time ticks. When no swapchain texture is
// available the command buffer is submitted empty.
func (r *Renderer) Frame(ticks uint64) error {
	cb, err := r.dev.AcquireCommandBuffer()
	if err != nil {
		return fmt.Errorf("couldn't acquire GPU command buffer: %w", err)
	}
	swapchain, err := cb.WaitAndAcquireSwapchainTexture()
	if err != nil {
		// The command buffer is still handed back so it is not leaked.
		_ = cb.Submit()
		return fmt.Errorf("couldn't acquire swapchain texture: %w", err)
	}
	if swapchain != nil {
		r.record(cb, swapchain, ticks)
	}
	if err := cb.Submit(); err != nil {
		return fmt.Errorf("couldn't submit GPU command buffer: %w", err)
	}
	return nil
}

func (r *Renderer) record(cb gpu.CommandBuffer, swapchain gpu.Texture, ticks uint64) {
	color := gpu.ColorTargetInfo{
		Texture:    swapchain,
		ClearColor: ClearColor,
		LoadOp:     gpu.LoadOpClear,
		StoreOp:    gpu.StoreOpStore,
	}
	if msaa, ok := r.targets.Color(); ok {
		color.Texture = msaa
		color.StoreOp = gpu.StoreOpResolve
		color.ResolveTexture = swapchain
	}
	var depth *gpu.DepthStencilTargetInfo
	if tex, ok := r.targets.Depth(); ok {
		depth = &gpu.DepthStencilTargetInfo{
			Texture:        tex,
			ClearDepth:     1,
			LoadOp:         gpu.LoadOpClear,
			StoreOp:        gpu.StoreOpDontCare,
			StencilLoadOp:  gpu.LoadOpDontCare,
			StencilStoreOp: gpu.StoreOpDontCare,
		}
	}

	if r.res.HasUniform {
		mvp := ModelViewProjection(ticks, r.aspect(swapchain))
		cb.PushVertexUniformData(0, matrixBytes(&mvp))
	}

	pass := cb.BeginRenderPass([]gpu.ColorTargetInfo{color}, depth)
	pass.BindGraphicsPipeline(r.res.Pipeline)
	pass.BindVertexBuffers(0, []gpu.BufferBinding{{Buffer: r.res.VertexBuffer}})
	pass.BindIndexBuffer(gpu.BufferBinding{Buffer: r.res.IndexBuffer}, gpu.IndexElementSize32Bit)
	pass.BindFragmentSamplers(0, []gpu.TextureSamplerBinding{{Texture: r.res.Texture, Sampler: r.res.Sampler}})
	pass.DrawIndexedPrimitives(r.res.IndexCount, 1, 0, 0, 0)
	pass.End()
}

// aspect uses the window size, falling back to the swapchain texture
// while the window reports no area.
func (r *Renderer) aspect(swapchain gpu.Texture) float32 {
	w, h := r.window.Size()
	if w <= 0 || h <= 0 {
		w, h = int(swapchain.Width()), int(swapchain.Height())
	}
	if h == 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// matrixBytes views m as the 64 bytes of a column-major float4x4.
func matrixBytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m)), unsafe.Sizeof(*m))
}
