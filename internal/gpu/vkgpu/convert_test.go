package vkgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

func TestTextureFormatMapping(t *testing.T) {
	for f, vf := range textureFormats {
		assert.Equal(t, vf, vkFormat(f), "%v", f)
		assert.Equal(t, f, fromVkFormat(vf), "%v", f)
	}
	assert.Equal(t, vulkan.FormatUndefined, vkFormat(gpu.TextureFormatInvalid))
	assert.Equal(t, gpu.TextureFormatInvalid, fromVkFormat(vulkan.FormatR16g16b16a16Sfloat))
}

func TestSampleBits(t *testing.T) {
	assert.Equal(t, vulkan.SampleCount1Bit, sampleBits(0))
	assert.Equal(t, vulkan.SampleCount1Bit, sampleBits(gpu.SampleCount1))
	assert.Equal(t, vulkan.SampleCount2Bit, sampleBits(gpu.SampleCount2))
	assert.Equal(t, vulkan.SampleCount4Bit, sampleBits(gpu.SampleCount4))
	assert.Equal(t, vulkan.SampleCount8Bit, sampleBits(gpu.SampleCount8))
}

func TestAttachmentOps(t *testing.T) {
	assert.Equal(t, vulkan.AttachmentLoadOpClear, loadOp(gpu.LoadOpClear))
	assert.Equal(t, vulkan.AttachmentLoadOpLoad, loadOp(gpu.LoadOpLoad))
	assert.Equal(t, vulkan.AttachmentLoadOpDontCare, loadOp(gpu.LoadOpDontCare))
	assert.Equal(t, vulkan.AttachmentStoreOpStore, storeOp(gpu.StoreOpStore))
	assert.Equal(t, vulkan.AttachmentStoreOpDontCare, storeOp(gpu.StoreOpDontCare))
	// The multisampled source of a resolve is discarded.
	assert.Equal(t, vulkan.AttachmentStoreOpDontCare, storeOp(gpu.StoreOpResolve))
}

func TestSamplerAndPipelineEnums(t *testing.T) {
	assert.Equal(t, vulkan.CompareOpLess, compareOp(gpu.CompareOpLess))
	assert.Equal(t, vulkan.CompareOpAlways, compareOp(gpu.CompareOp(42)))
	assert.Equal(t, vulkan.FilterLinear, filter(gpu.FilterLinear))
	assert.Equal(t, vulkan.SamplerMipmapModeLinear, mipmapMode(gpu.SamplerMipmapModeLinear))
	assert.Equal(t, vulkan.SamplerAddressModeClampToEdge, addressMode(gpu.SamplerAddressModeClampToEdge))
	assert.Equal(t, vulkan.SamplerAddressModeRepeat, addressMode(gpu.SamplerAddressModeRepeat))
	assert.Equal(t, vulkan.IndexTypeUint32, indexType(gpu.IndexElementSize32Bit))
	assert.Equal(t, vulkan.IndexTypeUint16, indexType(gpu.IndexElementSize16Bit))
	assert.Equal(t, vulkan.FormatR32g32b32Sfloat, vertexFormat(gpu.VertexElementFloat3))
	assert.Equal(t, vulkan.FormatR32g32Sfloat, vertexFormat(gpu.VertexElementFloat2))
}

func TestAspectAndUsage(t *testing.T) {
	assert.Equal(t, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), aspectOf(gpu.TextureFormatR8G8B8A8Unorm))
	assert.Equal(t, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit), aspectOf(gpu.TextureFormatD32Float))
	assert.Equal(t, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit|vulkan.ImageAspectStencilBit),
		aspectOf(gpu.TextureFormatD24UnormS8Uint))

	msaa := imageUsage(&gpu.TextureCreateInfo{Usage: gpu.TextureUsageColorTarget, SampleCount: gpu.SampleCount4})
	assert.NotZero(t, msaa&vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit))
	assert.NotZero(t, msaa&vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit))

	sampled := imageUsage(&gpu.TextureCreateInfo{Usage: gpu.TextureUsageSampler, SampleCount: gpu.SampleCount1})
	assert.NotZero(t, sampled&vulkan.ImageUsageFlags(vulkan.ImageUsageTransferDstBit))
	assert.Zero(t, sampled&vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit))

	assert.Equal(t, vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit),
		formatFeatures(gpu.TextureUsageDepthStencilTarget))
}

func TestPipelineRenderPassKey(t *testing.T) {
	info := &gpu.GraphicsPipelineCreateInfo{
		SampleCount: gpu.SampleCount4,
		Target: gpu.GraphicsPipelineTargetInfo{
			ColorFormats:          []gpu.TextureFormat{gpu.TextureFormatB8G8R8A8Unorm},
			DepthStencilFormat:    gpu.TextureFormatD24UnormS8Uint,
			HasDepthStencilTarget: true,
		},
	}
	key := pipelineRenderPassKey(info)
	assert.Equal(t, 1, key.numColors)
	assert.Equal(t, vulkan.SampleCount4Bit, key.colors[0].samples)
	assert.True(t, key.resolves[0].used())
	assert.Equal(t, vulkan.SampleCount1Bit, key.resolves[0].samples)
	assert.True(t, key.hasDepth)
	assert.Equal(t, vulkan.FormatD24UnormS8Uint, key.depth.format)
	assert.Equal(t, vulkan.SampleCount4Bit, key.depth.samples)

	info.SampleCount = gpu.SampleCount1
	info.Target.HasDepthStencilTarget = false
	key = pipelineRenderPassKey(info)
	assert.False(t, key.resolves[0].used())
	assert.False(t, key.hasDepth)
}

func TestAttachmentDescriptionDefaultsStencil(t *testing.T) {
	desc := attachmentKey{format: vulkan.FormatB8g8r8a8Unorm, load: vulkan.AttachmentLoadOpClear}.description()
	assert.Equal(t, vulkan.AttachmentLoadOpDontCare, desc.StencilLoadOp)
	assert.Equal(t, vulkan.AttachmentStoreOpDontCare, desc.StencilStoreOp)
}

func TestCacheKeys(t *testing.T) {
	tex := &texture{name: "a"}
	other := &texture{name: "b"}
	smp := &sampler{name: "s"}
	key := descriptorKey{n: 1}
	key.textures[0] = tex
	key.samplers[0] = smp
	assert.True(t, key.uses(tex))
	assert.True(t, key.uses(smp))
	assert.False(t, key.uses(other))

	fb := framebufferKey{numViews: 1}
	fb.views[0] = vulkan.ImageView(vulkan.NullHandle)
	assert.True(t, fb.has(vulkan.ImageView(vulkan.NullHandle)))
}

func TestChooseSwapSurfaceFormat(t *testing.T) {
	formats := []vulkan.SurfaceFormat{
		{Format: vulkan.FormatR8g8b8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
	}
	assert.Equal(t, vulkan.FormatB8g8r8a8Unorm, chooseSwapSurfaceFormat(formats).Format)
	assert.Equal(t, vulkan.FormatB8g8r8a8Srgb, chooseSwapSurfaceFormat(formats[:2]).Format)
	assert.Equal(t, vulkan.FormatR8g8b8a8Unorm, chooseSwapSurfaceFormat(formats[:1]).Format)
}

func TestChooseSwapPresentMode(t *testing.T) {
	assert.Equal(t, vulkan.PresentModeMailbox,
		chooseSwapPresentMode([]vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox}))
	assert.Equal(t, vulkan.PresentModeFifo,
		chooseSwapPresentMode([]vulkan.PresentMode{vulkan.PresentModeImmediate}))
}

func TestLayoutAccess(t *testing.T) {
	access, stage := layoutAccess(vulkan.ImageLayoutTransferDstOptimal)
	assert.Equal(t, vulkan.AccessFlags(vulkan.AccessTransferWriteBit), access)
	assert.Equal(t, vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit), stage)

	access, stage = layoutAccess(vulkan.ImageLayoutUndefined)
	assert.Zero(t, access)
	assert.Equal(t, vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit), stage)
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, "main\x00", safeString("main\x00"))
	assert.Equal(t, "\x00", safeString(""))
	assert.Equal(t, []string{"a\x00", "b\x00"}, safeStrings([]string{"a", "b\x00"}))
}

func TestSpirvWords(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0}
	words := spirvWords(code[:])
	assert.Equal(t, []uint32{0x07230203, 1}, words)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint64(5), clamp(1, 5, 10))
	assert.Equal(t, uint64(10), clamp(11, 5, 10))
	assert.Equal(t, uint64(7), clamp(7, 5, 10))
}
