package gputest

import (
	"slices"

	"meshspin/internal/gpu"
)

// CommandBuffer records everything issued on it.
type CommandBuffer struct {
	dev *Device

	Swapchain    *Texture
	CopyPasses   []*CopyPass
	RenderPasses []*RenderPass
	Uniforms     []Uniform
	Submitted    bool

	uniform map[uint32][]byte
}

// Uniform is one PushVertexUniformData call.
type Uniform struct {
	Slot uint32
	Data []byte
}

type BufferUpload struct {
	Src gpu.TransferBufferLocation
	Dst gpu.BufferRegion
}

type TextureUpload struct {
	Src gpu.TextureTransferInfo
	Dst gpu.TextureRegion
}

type CopyPass struct {
	Buffers  []BufferUpload
	Textures []TextureUpload
	Ended    bool
}

// Draw is one DrawIndexedPrimitives call with the state bound at that
// moment.
type Draw struct {
	NumIndices    uint32
	NumInstances  uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32

	Pipeline gpu.GraphicsPipeline
	// Uniforms holds the vertex uniform data per slot at draw time.
	Uniforms map[uint32][]byte
}

type RenderPass struct {
	Colors   []gpu.ColorTargetInfo
	Depth    *gpu.DepthStencilTargetInfo
	Pipeline gpu.GraphicsPipeline
	Vertex   []gpu.BufferBinding
	Index    gpu.BufferBinding
	IndexFmt gpu.IndexElementSize
	Samplers []gpu.TextureSamplerBinding
	Draws    []Draw
	Ended    bool

	cb *CommandBuffer
}

func (cb *CommandBuffer) WaitAndAcquireSwapchainTexture() (gpu.Texture, error) {
	if err := cb.dev.fail("WaitAndAcquireSwapchainTexture"); err != nil {
		return nil, err
	}
	if cb.dev.SwapchainUnavailable {
		return nil, nil
	}
	cb.Swapchain = &Texture{
		resource: cb.dev.newResource("Swapchain Texture"),
		Info: gpu.TextureCreateInfo{
			Format:      cb.dev.SwapchainFormat,
			Usage:       gpu.TextureUsageColorTarget,
			Width:       cb.dev.SwapchainWidth,
			Height:      cb.dev.SwapchainHeight,
			NumLevels:   1,
			SampleCount: gpu.SampleCount1,
		},
		Swapchain: true,
	}
	return cb.Swapchain, nil
}

func (cb *CommandBuffer) PushVertexUniformData(slot uint32, data []byte) {
	if cb.uniform == nil {
		cb.uniform = make(map[uint32][]byte)
	}
	d := slices.Clone(data)
	cb.uniform[slot] = d
	cb.Uniforms = append(cb.Uniforms, Uniform{Slot: slot, Data: d})
}

func (cb *CommandBuffer) BeginCopyPass() gpu.CopyPass {
	cp := &CopyPass{}
	cb.CopyPasses = append(cb.CopyPasses, cp)
	return cp
}

func (cb *CommandBuffer) BeginRenderPass(colors []gpu.ColorTargetInfo, depth *gpu.DepthStencilTargetInfo) gpu.RenderPass {
	rp := &RenderPass{Colors: slices.Clone(colors), cb: cb}
	if depth != nil {
		d := *depth
		rp.Depth = &d
	}
	for _, c := range colors {
		cb.checkLive(c.Texture, "color target")
		if c.ResolveTexture != nil {
			cb.checkLive(c.ResolveTexture, "resolve target")
		}
	}
	if depth != nil {
		cb.checkLive(depth.Texture, "depth target")
	}
	cb.RenderPasses = append(cb.RenderPasses, rp)
	return rp
}

func (cb *CommandBuffer) checkLive(r gpu.Resource, role string) {
	if r == nil {
		cb.dev.violate("nil %s", role)
		return
	}
	if t, ok := r.(*Texture); ok && t.Swapchain {
		if t != cb.Swapchain {
			cb.dev.violate("%s uses a swapchain texture from another command buffer", role)
		}
		return
	}
	if !cb.dev.live[r] {
		cb.dev.violate("%s %q used after release", role, r.Name())
	}
}

// references reports whether any recorded command uses r.
func (cb *CommandBuffer) references(r gpu.Resource) bool {
	for _, cp := range cb.CopyPasses {
		for _, u := range cp.Buffers {
			if u.Src.TransferBuffer == r || u.Dst.Buffer == r {
				return true
			}
		}
		for _, u := range cp.Textures {
			if u.Src.TransferBuffer == r || u.Dst.Texture == r {
				return true
			}
		}
	}
	for _, rp := range cb.RenderPasses {
		for _, c := range rp.Colors {
			if c.Texture == r || c.ResolveTexture == r {
				return true
			}
		}
		if rp.Depth != nil && rp.Depth.Texture == r {
			return true
		}
		if rp.Pipeline == r || rp.Index.Buffer == r {
			return true
		}
		for _, b := range rp.Vertex {
			if b.Buffer == r {
				return true
			}
		}
		for _, s := range rp.Samplers {
			if s.Texture == r || s.Sampler == r {
				return true
			}
		}
	}
	return false
}

func (cb *CommandBuffer) Submit() error {
	d := cb.dev
	d.closeCommandBuffer(cb)
	if cb.Submitted {
		d.violate("command buffer submitted twice")
	}
	if err := d.fail("Submit"); err != nil {
		return err
	}
	for _, cp := range cb.CopyPasses {
		if !cp.Ended {
			d.violate("copy pass not ended before submit")
		}
		for _, u := range cp.Buffers {
			cb.execBuffer(u)
		}
		for _, u := range cp.Textures {
			cb.execTexture(u)
		}
	}
	for _, rp := range cb.RenderPasses {
		if !rp.Ended {
			d.violate("render pass not ended before submit")
		}
	}
	cb.Submitted = true
	d.Submissions = append(d.Submissions, cb)
	return nil
}

func (cb *CommandBuffer) execBuffer(u BufferUpload) {
	src := u.Src.TransferBuffer.(*TransferBuffer)
	dst := u.Dst.Buffer.(*Buffer)
	cb.checkLive(src, "upload source")
	cb.checkLive(dst, "upload destination")
	if src.Mapped {
		cb.dev.violate("transfer buffer %q still mapped at submit", src.Label)
	}
	end := int(u.Src.Offset) + int(u.Dst.Size)
	if end > len(src.Data) || int(u.Dst.Offset+u.Dst.Size) > len(dst.Data) {
		cb.dev.violate("buffer upload out of range into %q", dst.Label)
		return
	}
	copy(dst.Data[u.Dst.Offset:], src.Data[u.Src.Offset:end])
}

func (cb *CommandBuffer) execTexture(u TextureUpload) {
	src := u.Src.TransferBuffer.(*TransferBuffer)
	dst := u.Dst.Texture.(*Texture)
	cb.checkLive(src, "upload source")
	cb.checkLive(dst, "upload destination")
	if src.Mapped {
		cb.dev.violate("transfer buffer %q still mapped at submit", src.Label)
	}
	rowPixels := u.Src.PixelsPerRow
	if rowPixels == 0 {
		rowPixels = u.Dst.W
	}
	for y := uint32(0); y < u.Dst.H; y++ {
		from := int(u.Src.Offset) + int(y*rowPixels*4)
		to := int(((u.Dst.Y+y)*dst.Info.Width + u.Dst.X) * 4)
		n := int(u.Dst.W * 4)
		if from+n > len(src.Data) || to+n > len(dst.Data) {
			cb.dev.violate("texture upload out of range into %q", dst.Label)
			return
		}
		copy(dst.Data[to:to+n], src.Data[from:from+n])
	}
}

func (cp *CopyPass) UploadToBuffer(src gpu.TransferBufferLocation, dst gpu.BufferRegion) {
	cp.Buffers = append(cp.Buffers, BufferUpload{Src: src, Dst: dst})
}

func (cp *CopyPass) UploadToTexture(src gpu.TextureTransferInfo, dst gpu.TextureRegion) {
	cp.Textures = append(cp.Textures, TextureUpload{Src: src, Dst: dst})
}

func (cp *CopyPass) End() { cp.Ended = true }

func (rp *RenderPass) BindGraphicsPipeline(p gpu.GraphicsPipeline) {
	rp.cb.checkLive(p, "pipeline")
	rp.Pipeline = p
}

func (rp *RenderPass) BindVertexBuffers(firstSlot uint32, bindings []gpu.BufferBinding) {
	for _, b := range bindings {
		rp.cb.checkLive(b.Buffer, "vertex buffer")
	}
	rp.Vertex = slices.Clone(bindings)
}

func (rp *RenderPass) BindIndexBuffer(binding gpu.BufferBinding, size gpu.IndexElementSize) {
	rp.cb.checkLive(binding.Buffer, "index buffer")
	rp.Index = binding
	rp.IndexFmt = size
}

func (rp *RenderPass) BindFragmentSamplers(firstSlot uint32, bindings []gpu.TextureSamplerBinding) {
	for _, b := range bindings {
		rp.cb.checkLive(b.Texture, "sampled texture")
		rp.cb.checkLive(b.Sampler, "sampler")
	}
	rp.Samplers = slices.Clone(bindings)
}

func (rp *RenderPass) DrawIndexedPrimitives(numIndices, numInstances, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if rp.Pipeline == nil {
		rp.cb.dev.violate("draw without a bound pipeline")
	}
	uniforms := make(map[uint32][]byte, len(rp.cb.uniform))
	for k, v := range rp.cb.uniform {
		uniforms[k] = v
	}
	rp.Draws = append(rp.Draws, Draw{
		NumIndices:    numIndices,
		NumInstances:  numInstances,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
		Pipeline:      rp.Pipeline,
		Uniforms:      uniforms,
	})
}

func (rp *RenderPass) End() { rp.Ended = true }
