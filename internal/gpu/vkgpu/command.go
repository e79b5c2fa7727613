package vkgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

var errSubmitted = errors.New("command buffer already submitted")

type commandBuffer struct {
	d   *Device
	sub *submission

	image      *texture
	imageIndex uint32
	acquire    vulkan.Semaphore
	// presented is set once a render pass leaves image ready to present.
	presented bool

	uniforms [maxUniformSlots][uniformSlotSize]byte
	uniformN [maxUniformSlots]int
	done     bool
}

func (d *Device) AcquireCommandBuffer() (gpu.CommandBuffer, error) {
	d.collect()
	sub, err := d.nextSubmission()
	if err != nil {
		return nil, err
	}
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(sub.cmd, &beginInfo); res != vulkan.Success {
		d.free = append(d.free, sub)
		return nil, fmt.Errorf("begin command buffer: %w", vulkan.Error(res))
	}
	d.recording++
	return &commandBuffer{d: d, sub: sub}, nil
}

func (d *Device) nextSubmission() (*submission, error) {
	if n := len(d.free); n > 0 {
		sub := d.free[n-1]
		d.free = d.free[:n-1]
		return sub, nil
	}
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmds := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(d.device, &allocInfo, cmds); res != vulkan.Success {
		return nil, fmt.Errorf("allocate command buffer: %w", vulkan.Error(res))
	}
	fenceInfo := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	var fence vulkan.Fence
	if res := vulkan.CreateFence(d.device, &fenceInfo, nil, &fence); res != vulkan.Success {
		vulkan.FreeCommandBuffers(d.device, d.commandPool, 1, cmds)
		return nil, fmt.Errorf("create fence: %w", vulkan.Error(res))
	}
	return &submission{cmd: cmds[0], fence: fence}, nil
}

func (d *Device) acquireSemaphore() (vulkan.Semaphore, error) {
	if n := len(d.semaphores); n > 0 {
		s := d.semaphores[n-1]
		d.semaphores = d.semaphores[:n-1]
		return s, nil
	}
	semInfo := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	var s vulkan.Semaphore
	if res := vulkan.CreateSemaphore(d.device, &semInfo, nil, &s); res != vulkan.Success {
		return vulkan.Semaphore(vulkan.NullHandle), fmt.Errorf("create image available semaphore: %w", vulkan.Error(res))
	}
	return s, nil
}

// throttle blocks until fewer than maxFramesInFlight submissions are
// pending on the GPU.
func (d *Device) throttle() error {
	for len(d.inflight) >= maxFramesInFlight {
		oldest := d.inflight[0]
		if res := vulkan.WaitForFences(d.device, 1, []vulkan.Fence{oldest.fence}, vulkan.True, vulkan.MaxUint64); res != vulkan.Success {
			return fmt.Errorf("wait for frame fence: %w", vulkan.Error(res))
		}
		d.collect()
	}
	return nil
}

func (cb *commandBuffer) WaitAndAcquireSwapchainTexture() (gpu.Texture, error) {
	d := cb.d
	if cb.image != nil {
		return cb.image, nil
	}
	if err := d.throttle(); err != nil {
		return nil, err
	}
	w, h := d.window.GetFramebufferSize()
	if w == 0 || h == 0 {
		return nil, nil
	}
	if d.swapchainStale(w, h) {
		if err := d.recreateSwapchain(); err != nil {
			return nil, err
		}
		if d.sc.handle == vulkan.Swapchain(vulkan.NullHandle) {
			return nil, nil
		}
	}

	sem, err := d.acquireSemaphore()
	if err != nil {
		return nil, err
	}
	var index uint32
	res := vulkan.AcquireNextImage(d.device, d.sc.handle, vulkan.MaxUint64, sem, vulkan.Fence(vulkan.NullHandle), &index)
	switch res {
	case vulkan.Success:
	case vulkan.Suboptimal:
		// Usable this frame, rebuilt on the next acquire.
		d.resized = true
	case vulkan.ErrorOutOfDate:
		d.semaphores = append(d.semaphores, sem)
		d.resized = true
		return nil, nil
	default:
		d.semaphores = append(d.semaphores, sem)
		return nil, fmt.Errorf("acquire next image: %w", vulkan.Error(res))
	}
	cb.acquire = sem
	cb.imageIndex = index
	cb.image = d.sc.textures[index]
	cb.image.layout = vulkan.ImageLayoutUndefined
	return cb.image, nil
}

func (cb *commandBuffer) PushVertexUniformData(slot uint32, data []byte) {
	if slot >= maxUniformSlots {
		cb.d.log.Warn("Uniform slot out of range", "slot", slot)
		return
	}
	n := copy(cb.uniforms[slot][:], data)
	if n < len(data) {
		cb.d.log.Warn("Uniform data truncated", "slot", slot, "size", len(data), "max", uniformSlotSize)
	}
	cb.uniformN[slot] = n
}

func (cb *commandBuffer) BeginCopyPass() gpu.CopyPass {
	return &copyPass{cb: cb}
}

func (cb *commandBuffer) Submit() error {
	d := cb.d
	if cb.done {
		return errSubmitted
	}
	cb.done = true
	d.recording--
	cmd := cb.sub.cmd

	if cb.image != nil && !cb.presented {
		transitionImage(cmd, cb.image, vulkan.ImageLayoutPresentSrc)
	}
	if res := vulkan.EndCommandBuffer(cmd); res != vulkan.Success {
		d.abandon(cb)
		return fmt.Errorf("end command buffer: %w", vulkan.Error(res))
	}

	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vulkan.CommandBuffer{cmd},
	}
	if cb.image != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vulkan.Semaphore{cb.acquire}
		submitInfo.PWaitDstStageMask = []vulkan.PipelineStageFlags{
			vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vulkan.Semaphore{d.sc.renderFinished[cb.imageIndex]}
	}
	d.serial++
	cb.sub.serial = d.serial
	cb.sub.acquire = cb.acquire
	if res := vulkan.QueueSubmit(d.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, cb.sub.fence); res != vulkan.Success {
		d.abandon(cb)
		return fmt.Errorf("queue submit: %w", vulkan.Error(res))
	}
	d.inflight = append(d.inflight, cb.sub)

	if cb.image != nil {
		presentInfo := vulkan.PresentInfo{
			SType:              vulkan.StructureTypePresentInfo,
			WaitSemaphoreCount: 1,
			PWaitSemaphores:    []vulkan.Semaphore{d.sc.renderFinished[cb.imageIndex]},
			SwapchainCount:     1,
			PSwapchains:        []vulkan.Swapchain{d.sc.handle},
			PImageIndices:      []uint32{cb.imageIndex},
		}
		switch res := vulkan.QueuePresent(d.presentQueue, &presentInfo); res {
		case vulkan.Success:
		case vulkan.Suboptimal, vulkan.ErrorOutOfDate:
			d.resized = true
		default:
			return fmt.Errorf("queue present: %w", vulkan.Error(res))
		}
	}
	d.collect()
	return nil
}

// abandon returns the resources of a command buffer that never reached the
// queue. A signaled acquire semaphore cannot be reused and is destroyed.
func (d *Device) abandon(cb *commandBuffer) {
	if cb.acquire != vulkan.Semaphore(vulkan.NullHandle) {
		vulkan.DestroySemaphore(d.device, cb.acquire, nil)
		cb.acquire = vulkan.Semaphore(vulkan.NullHandle)
	}
	cb.sub.acquire = vulkan.Semaphore(vulkan.NullHandle)
	vulkan.ResetCommandBuffer(cb.sub.cmd, 0)
	d.free = append(d.free, cb.sub)
}

// transitionImage records a layout transition of t to layout.
func transitionImage(cmd vulkan.CommandBuffer, t *texture, layout vulkan.ImageLayout) {
	if t.layout == layout {
		return
	}
	srcAccess, srcStage := layoutAccess(t.layout)
	dstAccess, dstStage := layoutAccess(layout)
	if layout == vulkan.ImageLayoutPresentSrc {
		dstStage = vulkan.PipelineStageFlags(vulkan.PipelineStageBottomOfPipeBit)
	}
	if t.layout == vulkan.ImageLayoutUndefined && t.swapchain {
		// Ordered after the acquire semaphore wait.
		srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	}
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           t.layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: t.aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vulkan.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
	t.layout = layout
}

type copyPass struct {
	cb      *commandBuffer
	buffers bool
}

func (cp *copyPass) UploadToBuffer(src gpu.TransferBufferLocation, dst gpu.BufferRegion) {
	tb := src.TransferBuffer.(*transferBuffer)
	b := dst.Buffer.(*buffer)
	region := vulkan.BufferCopy{
		SrcOffset: vulkan.DeviceSize(src.Offset),
		DstOffset: vulkan.DeviceSize(dst.Offset),
		Size:      vulkan.DeviceSize(dst.Size),
	}
	vulkan.CmdCopyBuffer(cp.cb.sub.cmd, tb.buf, b.buf, 1, []vulkan.BufferCopy{region})
	cp.buffers = true
}

func (cp *copyPass) UploadToTexture(src gpu.TextureTransferInfo, dst gpu.TextureRegion) {
	tb := src.TransferBuffer.(*transferBuffer)
	t := dst.Texture.(*texture)
	cmd := cp.cb.sub.cmd
	transitionImage(cmd, t, vulkan.ImageLayoutTransferDstOptimal)
	region := vulkan.BufferImageCopy{
		BufferOffset:      vulkan.DeviceSize(src.Offset),
		BufferRowLength:   src.PixelsPerRow,
		BufferImageHeight: src.RowsPerLayer,
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask: t.aspect,
			LayerCount: 1,
		},
		ImageOffset: vulkan.Offset3D{X: int32(dst.X), Y: int32(dst.Y)},
		ImageExtent: vulkan.Extent3D{Width: dst.W, Height: dst.H, Depth: 1},
	}
	vulkan.CmdCopyBufferToImage(cmd, tb.buf, t.image, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
	transitionImage(cmd, t, vulkan.ImageLayoutShaderReadOnlyOptimal)
}

// End makes buffer uploads visible to vertex input.
func (cp *copyPass) End() {
	if !cp.buffers {
		return
	}
	barrier := vulkan.MemoryBarrier{
		SType:         vulkan.StructureTypeMemoryBarrier,
		SrcAccessMask: vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessVertexAttributeReadBit | vulkan.AccessIndexReadBit),
	}
	vulkan.CmdPipelineBarrier(cp.cb.sub.cmd,
		vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
		vulkan.PipelineStageFlags(vulkan.PipelineStageVertexInputBit),
		0, 1, []vulkan.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

type renderPass struct {
	cb       *commandBuffer
	pipeline *pipeline
	samplers [maxSamplers]gpu.TextureSamplerBinding
	failed   bool
}

func (cb *commandBuffer) BeginRenderPass(colors []gpu.ColorTargetInfo, depth *gpu.DepthStencilTargetInfo) gpu.RenderPass {
	d := cb.d
	rp := &renderPass{cb: cb}
	if len(colors) == 0 || len(colors) > maxColorTargets {
		d.log.Error("Render pass needs between 1 and 4 color targets", "count", len(colors))
		rp.failed = true
		return rp
	}

	var key renderPassKey
	var fbKey framebufferKey
	var resolveViews []vulkan.ImageView
	var resolves []*texture
	width, height := ^uint32(0), ^uint32(0)
	fit := func(t *texture) {
		width = min(width, t.width)
		height = min(height, t.height)
	}

	key.numColors = len(colors)
	for i, c := range colors {
		t := c.Texture.(*texture)
		fit(t)
		final := vulkan.ImageLayoutColorAttachmentOptimal
		if t.swapchain {
			final = vulkan.ImageLayoutPresentSrc
		}
		initial := t.layout
		if c.LoadOp != gpu.LoadOpLoad {
			initial = vulkan.ImageLayoutUndefined
		}
		key.colors[i] = attachmentKey{
			format:  t.vkFormat,
			samples: sampleBits(t.samples),
			load:    loadOp(c.LoadOp),
			store:   storeOp(c.StoreOp),
			initial: initial,
			final:   final,
		}
		fbKey.views[fbKey.numViews] = t.view
		fbKey.numViews++

		if c.StoreOp == gpu.StoreOpResolve && c.ResolveTexture != nil {
			r := c.ResolveTexture.(*texture)
			final := vulkan.ImageLayoutColorAttachmentOptimal
			if r.swapchain {
				final = vulkan.ImageLayoutPresentSrc
			}
			key.resolves[i] = attachmentKey{
				format:  r.vkFormat,
				samples: vulkan.SampleCount1Bit,
				load:    vulkan.AttachmentLoadOpDontCare,
				store:   vulkan.AttachmentStoreOpStore,
				initial: vulkan.ImageLayoutUndefined,
				final:   final,
			}
			resolveViews = append(resolveViews, r.view)
			resolves = append(resolves, r)
		}
	}
	for _, v := range resolveViews {
		fbKey.views[fbKey.numViews] = v
		fbKey.numViews++
	}

	var depthTex *texture
	if depth != nil && depth.Texture != nil {
		depthTex = depth.Texture.(*texture)
		fit(depthTex)
		initial := depthTex.layout
		if depth.LoadOp != gpu.LoadOpLoad {
			initial = vulkan.ImageLayoutUndefined
		}
		key.hasDepth = true
		key.depth = attachmentKey{
			format:       depthTex.vkFormat,
			samples:      sampleBits(depthTex.samples),
			load:         loadOp(depth.LoadOp),
			store:        storeOp(depth.StoreOp),
			stencilLoad:  loadOp(depth.StencilLoadOp),
			stencilStore: storeOp(depth.StencilStoreOp),
			initial:      initial,
			final:        vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		}
		if !depthTex.format.HasStencil() {
			key.depth.stencilLoad = vulkan.AttachmentLoadOpDontCare
			key.depth.stencilStore = vulkan.AttachmentStoreOpDontCare
		}
		fbKey.views[fbKey.numViews] = depthTex.view
		fbKey.numViews++
	}

	pass, err := d.renderPass(key)
	if err != nil {
		d.log.Error("Render pass unavailable", "err", err)
		rp.failed = true
		return rp
	}
	fbKey.pass = pass
	fbKey.width, fbKey.height = width, height
	fb, err := d.framebuffer(fbKey)
	if err != nil {
		d.log.Error("Framebuffer unavailable", "err", err)
		rp.failed = true
		return rp
	}

	// Clear values follow attachment order: colors, resolves, depth.
	clears := make([]vulkan.ClearValue, 0, fbKey.numViews)
	for _, c := range colors {
		clears = append(clears, vulkan.NewClearValue([]float32{c.ClearColor.R, c.ClearColor.G, c.ClearColor.B, c.ClearColor.A}))
	}
	for range resolves {
		clears = append(clears, vulkan.ClearValue{})
	}
	if depthTex != nil {
		clears = append(clears, vulkan.NewClearDepthStencil(depth.ClearDepth, 0))
	}

	extent := vulkan.Extent2D{Width: width, Height: height}
	beginInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	cmd := cb.sub.cmd
	vulkan.CmdBeginRenderPass(cmd, &beginInfo, vulkan.SubpassContentsInline)

	// A negative height keeps +Y up in clip space.
	vulkan.CmdSetViewport(cmd, 0, 1, []vulkan.Viewport{{
		X:        0,
		Y:        float32(height),
		Width:    float32(width),
		Height:   -float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vulkan.CmdSetScissor(cmd, 0, 1, []vulkan.Rect2D{{Extent: extent}})

	for i, c := range colors {
		t := c.Texture.(*texture)
		t.layout = key.colors[i].final
		if t == cb.image {
			cb.presented = true
		}
	}
	for _, r := range resolves {
		r.layout = vulkan.ImageLayoutColorAttachmentOptimal
		if r.swapchain {
			r.layout = vulkan.ImageLayoutPresentSrc
		}
		if r == cb.image {
			cb.presented = true
		}
	}
	if depthTex != nil {
		depthTex.layout = vulkan.ImageLayoutDepthStencilAttachmentOptimal
	}
	return rp
}

func (rp *renderPass) BindGraphicsPipeline(p gpu.GraphicsPipeline) {
	if rp.failed {
		return
	}
	rp.pipeline = p.(*pipeline)
	vulkan.CmdBindPipeline(rp.cb.sub.cmd, vulkan.PipelineBindPointGraphics, rp.pipeline.handle)
}

func (rp *renderPass) BindVertexBuffers(firstSlot uint32, bindings []gpu.BufferBinding) {
	if rp.failed || len(bindings) == 0 {
		return
	}
	bufs := make([]vulkan.Buffer, len(bindings))
	offsets := make([]vulkan.DeviceSize, len(bindings))
	for i, b := range bindings {
		bufs[i] = b.Buffer.(*buffer).buf
		offsets[i] = vulkan.DeviceSize(b.Offset)
	}
	vulkan.CmdBindVertexBuffers(rp.cb.sub.cmd, firstSlot, uint32(len(bufs)), bufs, offsets)
}

func (rp *renderPass) BindIndexBuffer(binding gpu.BufferBinding, size gpu.IndexElementSize) {
	if rp.failed {
		return
	}
	vulkan.CmdBindIndexBuffer(rp.cb.sub.cmd, binding.Buffer.(*buffer).buf, vulkan.DeviceSize(binding.Offset), indexType(size))
}

func (rp *renderPass) BindFragmentSamplers(firstSlot uint32, bindings []gpu.TextureSamplerBinding) {
	for i, b := range bindings {
		slot := firstSlot + uint32(i)
		if slot >= maxSamplers {
			rp.cb.d.log.Warn("Sampler slot out of range", "slot", slot)
			return
		}
		rp.samplers[slot] = b
	}
}

func (rp *renderPass) DrawIndexedPrimitives(numIndices, numInstances, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if rp.failed {
		return
	}
	p := rp.pipeline
	if p == nil {
		rp.cb.d.log.Error("Draw without a bound pipeline")
		return
	}
	cmd := rp.cb.sub.cmd
	for slot := uint32(0); slot < p.uniformSlots; slot++ {
		n := rp.cb.uniformN[slot]
		if n == 0 {
			continue
		}
		data := rp.cb.uniforms[slot]
		vulkan.CmdPushConstants(cmd, p.layout, vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
			slot*uniformSlotSize, uint32(n), unsafe.Pointer(&data[0]))
	}
	if p.numSamplers > 0 {
		key := descriptorKey{layout: p.setLayout, n: int(p.numSamplers)}
		for i := 0; i < key.n; i++ {
			b := rp.samplers[i]
			if b.Texture == nil || b.Sampler == nil {
				rp.cb.d.log.Error("Draw with an unbound sampler slot", "slot", i)
				return
			}
			key.textures[i] = b.Texture.(*texture)
			key.samplers[i] = b.Sampler.(*sampler)
		}
		set, err := rp.cb.d.descriptorSet(key)
		if err != nil {
			rp.cb.d.log.Error("Descriptor set unavailable", "err", err)
			return
		}
		vulkan.CmdBindDescriptorSets(cmd, vulkan.PipelineBindPointGraphics, p.layout, 0, 1, []vulkan.DescriptorSet{set}, 0, nil)
	}
	vulkan.CmdDrawIndexed(cmd, numIndices, numInstances, firstIndex, vertexOffset, firstInstance)
}

func (rp *renderPass) End() {
	if rp.failed {
		return
	}
	vulkan.CmdEndRenderPass(rp.cb.sub.cmd)
}
