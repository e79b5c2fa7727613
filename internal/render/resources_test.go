package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshspin/internal/asset"
	"meshspin/internal/gpu"
	"meshspin/internal/gpu/gputest"
	"meshspin/internal/render"
)

func resourceOptions() render.ResourceOptions {
	scene := quadScene()
	return render.ResourceOptions{
		VertexShader:   scene.VertexShader,
		FragmentShader: scene.FragmentShader,
		TextureName:    scene.Texture,
		SampleCount:    gpu.SampleCount4,
		DepthTarget:    true,
		MVPUniform:     true,
	}
}

func loadPixels(t *testing.T) *asset.PixelBuffer {
	t.Helper()
	px, err := asset.LoadImagePixels(newContent(t).Image(textureFile), 4)
	require.NoError(t, err)
	return px
}

func TestVertexLayout(t *testing.T) {
	buffers, attrs := render.VertexLayout()
	require.Len(t, buffers, 1)
	assert.Equal(t, uint32(20), buffers[0].Pitch)
	assert.Equal(t, gpu.VertexInputRateVertex, buffers[0].InputRate)
	assert.Equal(t, []gpu.VertexAttribute{
		{Location: 0, BufferSlot: 0, Format: gpu.VertexElementFloat3, Offset: 0},
		{Location: 1, BufferSlot: 0, Format: gpu.VertexElementFloat2, Offset: 12},
	}, attrs)
}

func TestNewResourceSet(t *testing.T) {
	dev := gputest.New()
	res := newContent(t)
	mesh := asset.Quad()
	px := loadPixels(t)

	rs, err := render.NewResourceSet(dev, res, mesh, px, resourceOptions())
	require.NoError(t, err)

	assert.Equal(t, uint32(6), rs.IndexCount)
	assert.Equal(t, gpu.TextureFormatB8G8R8A8Unorm, rs.ColorFormat)
	assert.Equal(t, gpu.TextureFormatD24UnormS8Uint, rs.DepthFormat)
	assert.Equal(t, gpu.SampleCount4, rs.SampleCount)

	p := rs.Pipeline.(*gputest.Pipeline)
	assert.Equal(t, gpu.SampleCount4, p.Info.SampleCount)
	assert.Equal(t, gpu.DepthStencilState{CompareOp: gpu.CompareOpLess, EnableDepthTest: true, EnableDepthWrite: true}, p.Info.DepthStencil)
	assert.Equal(t, []gpu.TextureFormat{gpu.TextureFormatB8G8R8A8Unorm}, p.Info.Target.ColorFormats)
	assert.True(t, p.Info.Target.HasDepthStencilTarget)
	assert.Equal(t, gpu.TextureFormatD24UnormS8Uint, p.Info.Target.DepthStencilFormat)

	vs := p.Info.VertexShader.(*gputest.Shader)
	fs := p.Info.FragmentShader.(*gputest.Shader)
	assert.Equal(t, gpu.ShaderStageVertex, vs.Info.Stage)
	assert.Equal(t, uint32(1), vs.Info.NumUniformBuffers)
	assert.Equal(t, gpu.ShaderStageFragment, fs.Info.Stage)
	assert.Equal(t, uint32(1), fs.Info.NumSamplers)
	assert.Equal(t, "main", vs.Info.Entrypoint)
	assert.False(t, dev.IsLive(vs), "shaders are released once the pipeline exists")
	assert.False(t, dev.IsLive(fs))

	s := rs.Sampler.(*gputest.Sampler)
	assert.Equal(t, gpu.FilterLinear, s.Info.MinFilter)
	assert.Equal(t, gpu.FilterLinear, s.Info.MagFilter)
	assert.Equal(t, gpu.SamplerMipmapModeLinear, s.Info.MipmapMode)
	assert.Equal(t, gpu.SamplerAddressModeClampToEdge, s.Info.AddressModeU)
	assert.Equal(t, gpu.SamplerAddressModeClampToEdge, s.Info.AddressModeV)
	assert.Equal(t, gpu.SamplerAddressModeClampToEdge, s.Info.AddressModeW)

	tex := rs.Texture.(*gputest.Texture)
	assert.Equal(t, textureFile, tex.Name())
	assert.Equal(t, gpu.TextureFormatR8G8B8A8Unorm, tex.Info.Format)
	assert.Equal(t, px.Pixels, tex.Data)

	assert.Equal(t, mesh.VertexData(), rs.VertexBuffer.(*gputest.Buffer).Data)
	assert.Equal(t, mesh.IndexData(), rs.IndexBuffer.(*gputest.Buffer).Data)
	assert.Equal(t, uint32(4*20), rs.VertexBuffer.Size())
	assert.Equal(t, uint32(6*4), rs.IndexBuffer.Size())

	var names []string
	for _, r := range dev.Live() {
		names = append(names, r.Name())
	}
	assert.ElementsMatch(t, []string{"Mesh Pipeline", "Linear Clamp Sampler", textureFile, "Vertex Buffer", "Index Buffer"}, names)

	rs.Release()
	rs.Release()
	assert.Empty(t, dev.Live())
	assert.Empty(t, dev.Violations)
}

func TestNewResourceSetOptions(t *testing.T) {
	dev := gputest.New()
	opts := resourceOptions()
	opts.DepthTarget = false
	opts.MVPUniform = false
	opts.SampleCount = gpu.SampleCount1

	rs, err := render.NewResourceSet(dev, newContent(t), asset.Quad(), loadPixels(t), opts)
	require.NoError(t, err)
	defer rs.Release()

	p := rs.Pipeline.(*gputest.Pipeline)
	assert.False(t, p.Info.Target.HasDepthStencilTarget)
	assert.False(t, p.Info.DepthStencil.EnableDepthTest)
	assert.Zero(t, p.Info.VertexShader.(*gputest.Shader).Info.NumUniformBuffers)
	assert.Equal(t, gpu.SampleCount1, rs.SampleCount)
	assert.False(t, rs.HasDepth)
	assert.False(t, rs.HasUniform)
}

func TestNewResourceSetFallbacks(t *testing.T) {
	dev := gputest.New()
	dev.DepthFormats = map[gpu.TextureFormat]bool{gpu.TextureFormatD32FloatS8Uint: true}
	dev.SampleCounts = map[gpu.SampleCount]bool{gpu.SampleCount2: true}

	rs, err := render.NewResourceSet(dev, newContent(t), asset.Quad(), loadPixels(t), resourceOptions())
	require.NoError(t, err)
	defer rs.Release()

	assert.Equal(t, gpu.TextureFormatD32FloatS8Uint, rs.DepthFormat)
	assert.Equal(t, gpu.SampleCount2, rs.SampleCount)
}

func TestNewResourceSetUnsupported(t *testing.T) {
	t.Run("depth", func(t *testing.T) {
		dev := gputest.New()
		dev.DepthFormats = nil
		_, err := render.NewResourceSet(dev, newContent(t), asset.Quad(), loadPixels(t), resourceOptions())
		require.ErrorIs(t, err, gpu.ErrUnsupportedDepthFormat)
		assert.Empty(t, dev.Live())
	})
	t.Run("shader format", func(t *testing.T) {
		dev := gputest.New()
		dev.Formats = 0
		_, err := render.NewResourceSet(dev, newContent(t), asset.Quad(), loadPixels(t), resourceOptions())
		require.ErrorIs(t, err, gpu.ErrUnsupportedShaderFormat)
		assert.Empty(t, dev.Live())
	})
	t.Run("empty mesh", func(t *testing.T) {
		dev := gputest.New()
		_, err := render.NewResourceSet(dev, newContent(t), &asset.Mesh{}, loadPixels(t), resourceOptions())
		require.Error(t, err)
		assert.Empty(t, dev.Created)
	})
}

func TestNewResourceSetReleasesOnFailure(t *testing.T) {
	ops := []string{
		"CreateShader",
		"CreateGraphicsPipeline",
		"CreateSampler",
		"CreateTexture",
		"CreateBuffer",
		"CreateTransferBuffer",
		"MapTransferBuffer",
		"AcquireCommandBuffer",
		"Submit",
	}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			dev := gputest.New()
			dev.Fail = map[string]error{op: nil}
			rs, err := render.NewResourceSet(dev, newContent(t), asset.Quad(), loadPixels(t), resourceOptions())
			require.ErrorIs(t, err, gputest.ErrInjected)
			assert.Nil(t, rs)
			assert.Empty(t, dev.Live())
			assert.Empty(t, dev.Violations)
		})
	}
}
