package render

import (
	"fmt"
	"log/slog"

	"meshspin/internal/asset"
	"meshspin/internal/content"
	"meshspin/internal/gpu"
)

// ResourceOptions configures NewResourceSet.
type ResourceOptions struct {
	VertexShader   string
	FragmentShader string
	// TextureName labels the texture, usually its file name.
	TextureName string
	// SampleCount is the requested multisample count; the device may
	// lower it.
	SampleCount gpu.SampleCount
	DepthTarget bool
	MVPUniform  bool
}

// ResourceSet is everything a frame needs besides the swapchain-sized
// targets.
type ResourceSet struct {
	Pipeline     gpu.GraphicsPipeline
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	Texture      gpu.Texture
	Sampler      gpu.Sampler

	IndexCount  uint32
	ColorFormat gpu.TextureFormat
	DepthFormat gpu.TextureFormat
	SampleCount gpu.SampleCount
	HasDepth    bool
	HasUniform  bool

	dev   gpu.Device
	scope *gpu.Scope
}

// VertexLayout describes asset.Vertex on buffer slot 0.
func VertexLayout() ([]gpu.VertexBufferDescription, []gpu.VertexAttribute) {
	buffers := []gpu.VertexBufferDescription{{
		Slot:      0,
		Pitch:     asset.VertexStride,
		InputRate: gpu.VertexInputRateVertex,
	}}
	attrs := []gpu.VertexAttribute{
		{Location: 0, BufferSlot: 0, Format: gpu.VertexElementFloat3, Offset: asset.PositionOffset},
		{Location: 1, BufferSlot: 0, Format: gpu.VertexElementFloat2, Offset: asset.UVOffset},
	}
	return buffers, attrs
}

// NewResourceSet creates the pipeline, sampler, texture and mesh buffers
// and uploads mesh and pixels. On error nothing stays allocated.
func NewResourceSet(dev gpu.Device, res *content.Resolver, mesh *asset.Mesh, px *asset.PixelBuffer, opts ResourceOptions) (*ResourceSet, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("mesh has %d vertices and %d indices", len(mesh.Vertices), len(mesh.Indices))
	}

	rs := &ResourceSet{
		IndexCount:  uint32(len(mesh.Indices)),
		ColorFormat: dev.SwapchainTextureFormat(),
		HasDepth:    opts.DepthTarget,
		HasUniform:  opts.MVPUniform,
		dev:         dev,
	}
	scope := gpu.NewScope(dev)
	defer scope.Close()
	rs.scope = scope

	want := opts.SampleCount
	if want == 0 {
		want = gpu.SampleCount1
	}
	rs.SampleCount = gpu.SelectSampleCount(dev, rs.ColorFormat, want)
	if rs.SampleCount != want {
		slog.Warn("Sample count not supported, falling back", "requested", int(want), "using", int(rs.SampleCount))
	}

	if opts.DepthTarget {
		f, err := gpu.SelectDepthStencilFormat(dev)
		if err != nil {
			return nil, err
		}
		rs.DepthFormat = f
	}

	if err := rs.createPipeline(res, opts); err != nil {
		return nil, err
	}

	sampler, err := dev.CreateSampler(&gpu.SamplerCreateInfo{
		Name:         "Linear Clamp Sampler",
		MinFilter:    gpu.FilterLinear,
		MagFilter:    gpu.FilterLinear,
		MipmapMode:   gpu.SamplerMipmapModeLinear,
		AddressModeU: gpu.SamplerAddressModeClampToEdge,
		AddressModeV: gpu.SamplerAddressModeClampToEdge,
		AddressModeW: gpu.SamplerAddressModeClampToEdge,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create GPU sampler: %w", err)
	}
	rs.Sampler = rs.scope.Hold(sampler).(gpu.Sampler)

	name := opts.TextureName
	if name == "" {
		name = "Texture"
	}
	tex, err := dev.CreateTexture(&gpu.TextureCreateInfo{
		Name:        name,
		Format:      gpu.TextureFormatR8G8B8A8Unorm,
		Usage:       gpu.TextureUsageSampler,
		Width:       uint32(px.Width),
		Height:      uint32(px.Height),
		NumLevels:   1,
		SampleCount: gpu.SampleCount1,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create GPU texture: %w", err)
	}
	rs.Texture = rs.scope.Hold(tex).(gpu.Texture)

	vb, err := dev.CreateBuffer(&gpu.BufferCreateInfo{
		Name:  "Vertex Buffer",
		Usage: gpu.BufferUsageVertex,
		Size:  mesh.VertexBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create vertex buffer: %w", err)
	}
	rs.VertexBuffer = rs.scope.Hold(vb).(gpu.Buffer)

	ib, err := dev.CreateBuffer(&gpu.BufferCreateInfo{
		Name:  "Index Buffer",
		Usage: gpu.BufferUsageIndex,
		Size:  mesh.IndexBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create index buffer: %w", err)
	}
	rs.IndexBuffer = rs.scope.Hold(ib).(gpu.Buffer)

	st := NewStager(dev)
	st.AddBuffer(rs.VertexBuffer, mesh.VertexData())
	st.AddBuffer(rs.IndexBuffer, mesh.IndexData())
	st.AddTexture(rs.Texture, px)
	if err := st.Flush(); err != nil {
		return nil, fmt.Errorf("upload scene: %w", err)
	}

	rs.scope = scope.Move()
	return rs, nil
}

func (rs *ResourceSet) createPipeline(res *content.Resolver, opts ResourceOptions) error {
	// Shaders are only needed until the pipeline exists.
	shaders := gpu.NewScope(rs.dev)
	defer shaders.Close()

	var uniforms uint32
	if opts.MVPUniform {
		uniforms = 1
	}
	vs, err := res.LoadShader(rs.dev, opts.VertexShader, gpu.ShaderStageVertex, content.ShaderResources{UniformBuffers: uniforms})
	if err != nil {
		return err
	}
	shaders.Hold(vs)
	fs, err := res.LoadShader(rs.dev, opts.FragmentShader, gpu.ShaderStageFragment, content.ShaderResources{Samplers: 1})
	if err != nil {
		return err
	}
	shaders.Hold(fs)

	buffers, attrs := VertexLayout()
	info := &gpu.GraphicsPipelineCreateInfo{
		Name:             "Mesh Pipeline",
		VertexShader:     vs,
		FragmentShader:   fs,
		VertexBuffers:    buffers,
		VertexAttributes: attrs,
		SampleCount:      rs.SampleCount,
		Target: gpu.GraphicsPipelineTargetInfo{
			ColorFormats: []gpu.TextureFormat{rs.ColorFormat},
		},
	}
	if opts.DepthTarget {
		info.DepthStencil = gpu.DepthStencilState{
			CompareOp:        gpu.CompareOpLess,
			EnableDepthTest:  true,
			EnableDepthWrite: true,
		}
		info.Target.DepthStencilFormat = rs.DepthFormat
		info.Target.HasDepthStencilTarget = true
	}
	p, err := rs.dev.CreateGraphicsPipeline(info)
	if err != nil {
		return fmt.Errorf("couldn't create GPU graphics pipeline: %w", err)
	}
	rs.Pipeline = rs.scope.Hold(p).(gpu.GraphicsPipeline)
	return nil
}

// Release gives every member back to the device. It is safe to call more
// than once.
func (rs *ResourceSet) Release() {
	rs.scope.Close()
}
