// Package gpu defines the explicit command-buffer GPU API the renderer is
// written against.
//
// Resources are created by a Device and must be handed back to
// Device.Release before the device is destroyed. Commands are recorded into a
// CommandBuffer, grouped in copy passes and render passes, and take effect
// only after CommandBuffer.Submit. Objects released after a submission that
// references them stay alive inside the implementation until that
// submission completes, so callers may release staging memory right after
// Submit returns.
package gpu

// Resource is any object created by a Device.
type Resource interface {
	// Name returns the debug label given at creation.
	Name() string
}

// Buffer is device-resident linear storage.
type Buffer interface {
	Resource
	Size() uint32
}

// TransferBuffer is CPU-mappable staging memory.
type TransferBuffer interface {
	Resource
	Size() uint32
}

// Texture is a device-resident image.
type Texture interface {
	Resource
	Width() uint32
	Height() uint32
	Format() TextureFormat
	SampleCount() SampleCount
}

// Sampler is an immutable texture filtering configuration.
type Sampler interface {
	Resource
}

// Shader is a compiled shader stage.
type Shader interface {
	Resource
	Stage() ShaderStage
}

// GraphicsPipeline is a fixed rendering configuration.
type GraphicsPipeline interface {
	Resource
}

// Device is the GPU execution context.
type Device interface {
	// Driver returns the name of the backend in use.
	Driver() string

	// ShaderFormats returns the set of binary formats the device accepts.
	ShaderFormats() ShaderFormat

	// SwapchainTextureFormat returns the format of the presentable images.
	SwapchainTextureFormat() TextureFormat

	// TextureSupportsFormat reports whether format can be used for a 2D
	// texture with the given usage.
	TextureSupportsFormat(format TextureFormat, usage TextureUsage) bool

	// TextureSupportsSampleCount reports whether format can be
	// multisampled with count samples.
	TextureSupportsSampleCount(format TextureFormat, count SampleCount) bool

	CreateShader(info *ShaderCreateInfo) (Shader, error)
	CreateGraphicsPipeline(info *GraphicsPipelineCreateInfo) (GraphicsPipeline, error)
	CreateBuffer(info *BufferCreateInfo) (Buffer, error)
	CreateTexture(info *TextureCreateInfo) (Texture, error)
	CreateSampler(info *SamplerCreateInfo) (Sampler, error)
	CreateTransferBuffer(info *TransferBufferCreateInfo) (TransferBuffer, error)

	// MapTransferBuffer returns the CPU view of tb. The slice is valid
	// until UnmapTransferBuffer.
	MapTransferBuffer(tb TransferBuffer) ([]byte, error)
	UnmapTransferBuffer(tb TransferBuffer)

	// AcquireCommandBuffer returns a command buffer ready for recording.
	AcquireCommandBuffer() (CommandBuffer, error)

	// Release gives r back to the device. Releasing the same resource
	// twice is a programming error.
	Release(r Resource)

	// WaitIdle blocks until every submitted command buffer completed.
	WaitIdle() error

	// Destroy tears the device down. All resources must have been
	// released before.
	Destroy()
}

// CommandBuffer records commands for a single submission.
type CommandBuffer interface {
	// WaitAndAcquireSwapchainTexture blocks until a presentable image is
	// available. It returns a nil Texture and a nil error when no image
	// can be used this frame, e.g. while the window is minimized.
	WaitAndAcquireSwapchainTexture() (Texture, error)

	// PushVertexUniformData sets uniform data for the vertex stage. The
	// data applies to draws recorded after the call.
	PushVertexUniformData(slot uint32, data []byte)

	BeginCopyPass() CopyPass
	BeginRenderPass(colors []ColorTargetInfo, depth *DepthStencilTargetInfo) RenderPass

	// Submit hands the command buffer to the GPU and presents the
	// acquired swapchain texture, if any. The command buffer must not
	// be used afterwards.
	Submit() error
}

// CopyPass records upload commands.
type CopyPass interface {
	UploadToBuffer(src TransferBufferLocation, dst BufferRegion)
	UploadToTexture(src TextureTransferInfo, dst TextureRegion)
	End()
}

// RenderPass records draw commands against a fixed set of targets.
type RenderPass interface {
	BindGraphicsPipeline(p GraphicsPipeline)
	BindVertexBuffers(firstSlot uint32, bindings []BufferBinding)
	BindIndexBuffer(binding BufferBinding, size IndexElementSize)
	BindFragmentSamplers(firstSlot uint32, bindings []TextureSamplerBinding)
	DrawIndexedPrimitives(numIndices, numInstances, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	End()
}
