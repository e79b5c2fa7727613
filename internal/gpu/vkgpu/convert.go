package vkgpu

import (
	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

var textureFormats = map[gpu.TextureFormat]vulkan.Format{
	gpu.TextureFormatR8G8B8A8Unorm:     vulkan.FormatR8g8b8a8Unorm,
	gpu.TextureFormatB8G8R8A8Unorm:     vulkan.FormatB8g8r8a8Unorm,
	gpu.TextureFormatB8G8R8A8UnormSRGB: vulkan.FormatB8g8r8a8Srgb,
	gpu.TextureFormatD32Float:          vulkan.FormatD32Sfloat,
	gpu.TextureFormatD24UnormS8Uint:    vulkan.FormatD24UnormS8Uint,
	gpu.TextureFormatD32FloatS8Uint:    vulkan.FormatD32SfloatS8Uint,
}

func vkFormat(f gpu.TextureFormat) vulkan.Format {
	if v, ok := textureFormats[f]; ok {
		return v
	}
	return vulkan.FormatUndefined
}

func fromVkFormat(v vulkan.Format) gpu.TextureFormat {
	for f, vf := range textureFormats {
		if vf == v {
			return f
		}
	}
	return gpu.TextureFormatInvalid
}

func sampleBits(c gpu.SampleCount) vulkan.SampleCountFlagBits {
	switch c {
	case gpu.SampleCount2:
		return vulkan.SampleCount2Bit
	case gpu.SampleCount4:
		return vulkan.SampleCount4Bit
	case gpu.SampleCount8:
		return vulkan.SampleCount8Bit
	}
	return vulkan.SampleCount1Bit
}

func vertexFormat(f gpu.VertexElementFormat) vulkan.Format {
	switch f {
	case gpu.VertexElementFloat2:
		return vulkan.FormatR32g32Sfloat
	case gpu.VertexElementFloat3:
		return vulkan.FormatR32g32b32Sfloat
	case gpu.VertexElementFloat4:
		return vulkan.FormatR32g32b32a32Sfloat
	}
	return vulkan.FormatUndefined
}

func inputRate(r gpu.VertexInputRate) vulkan.VertexInputRate {
	if r == gpu.VertexInputRateInstance {
		return vulkan.VertexInputRateInstance
	}
	return vulkan.VertexInputRateVertex
}

var compareOps = [...]vulkan.CompareOp{
	gpu.CompareOpNever:          vulkan.CompareOpNever,
	gpu.CompareOpLess:           vulkan.CompareOpLess,
	gpu.CompareOpEqual:          vulkan.CompareOpEqual,
	gpu.CompareOpLessOrEqual:    vulkan.CompareOpLessOrEqual,
	gpu.CompareOpGreater:        vulkan.CompareOpGreater,
	gpu.CompareOpNotEqual:       vulkan.CompareOpNotEqual,
	gpu.CompareOpGreaterOrEqual: vulkan.CompareOpGreaterOrEqual,
	gpu.CompareOpAlways:         vulkan.CompareOpAlways,
}

func compareOp(op gpu.CompareOp) vulkan.CompareOp {
	if int(op) < 0 || int(op) >= len(compareOps) {
		return vulkan.CompareOpAlways
	}
	return compareOps[op]
}

func filter(f gpu.Filter) vulkan.Filter {
	if f == gpu.FilterLinear {
		return vulkan.FilterLinear
	}
	return vulkan.FilterNearest
}

func mipmapMode(m gpu.SamplerMipmapMode) vulkan.SamplerMipmapMode {
	if m == gpu.SamplerMipmapModeLinear {
		return vulkan.SamplerMipmapModeLinear
	}
	return vulkan.SamplerMipmapModeNearest
}

func addressMode(m gpu.SamplerAddressMode) vulkan.SamplerAddressMode {
	switch m {
	case gpu.SamplerAddressModeMirroredRepeat:
		return vulkan.SamplerAddressModeMirroredRepeat
	case gpu.SamplerAddressModeClampToEdge:
		return vulkan.SamplerAddressModeClampToEdge
	}
	return vulkan.SamplerAddressModeRepeat
}

func loadOp(op gpu.LoadOp) vulkan.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpLoad:
		return vulkan.AttachmentLoadOpLoad
	case gpu.LoadOpClear:
		return vulkan.AttachmentLoadOpClear
	}
	return vulkan.AttachmentLoadOpDontCare
}

// storeOp maps op for the attachment itself; a resolved multisample
// attachment is not kept.
func storeOp(op gpu.StoreOp) vulkan.AttachmentStoreOp {
	if op == gpu.StoreOpStore {
		return vulkan.AttachmentStoreOpStore
	}
	return vulkan.AttachmentStoreOpDontCare
}

func indexType(s gpu.IndexElementSize) vulkan.IndexType {
	if s == gpu.IndexElementSize16Bit {
		return vulkan.IndexTypeUint16
	}
	return vulkan.IndexTypeUint32
}

func aspectOf(f gpu.TextureFormat) vulkan.ImageAspectFlags {
	switch {
	case f.HasStencil():
		return vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit | vulkan.ImageAspectStencilBit)
	case f.IsDepth():
		return vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit)
	}
	return vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit)
}

func imageUsage(info *gpu.TextureCreateInfo) vulkan.ImageUsageFlags {
	var u vulkan.ImageUsageFlagBits
	if info.Usage&gpu.TextureUsageSampler != 0 {
		u |= vulkan.ImageUsageSampledBit | vulkan.ImageUsageTransferDstBit
	}
	if info.Usage&gpu.TextureUsageColorTarget != 0 {
		u |= vulkan.ImageUsageColorAttachmentBit
	}
	if info.Usage&gpu.TextureUsageDepthStencilTarget != 0 {
		u |= vulkan.ImageUsageDepthStencilAttachmentBit
	}
	if info.SampleCount > gpu.SampleCount1 && info.Usage&gpu.TextureUsageSampler == 0 {
		u |= vulkan.ImageUsageTransientAttachmentBit
	}
	return vulkan.ImageUsageFlags(u)
}

// formatFeatures returns the optimal-tiling features usage needs.
func formatFeatures(usage gpu.TextureUsage) vulkan.FormatFeatureFlags {
	var f vulkan.FormatFeatureFlagBits
	if usage&gpu.TextureUsageSampler != 0 {
		f |= vulkan.FormatFeatureSampledImageBit
	}
	if usage&gpu.TextureUsageColorTarget != 0 {
		f |= vulkan.FormatFeatureColorAttachmentBit
	}
	if usage&gpu.TextureUsageDepthStencilTarget != 0 {
		f |= vulkan.FormatFeatureDepthStencilAttachmentBit
	}
	return vulkan.FormatFeatureFlags(f)
}

// layoutAccess returns the access mask and pipeline stage that last touch
// an image in layout l.
func layoutAccess(l vulkan.ImageLayout) (vulkan.AccessFlags, vulkan.PipelineStageFlags) {
	switch l {
	case vulkan.ImageLayoutTransferDstOptimal:
		return vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
	case vulkan.ImageLayoutShaderReadOnlyOptimal:
		return vulkan.AccessFlags(vulkan.AccessShaderReadBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit)
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	case vulkan.ImageLayoutDepthStencilAttachmentOptimal:
		return vulkan.AccessFlags(vulkan.AccessDepthStencilAttachmentWriteBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageEarlyFragmentTestsBit | vulkan.PipelineStageLateFragmentTestsBit)
	case vulkan.ImageLayoutPresentSrc:
		return 0, vulkan.PipelineStageFlags(vulkan.PipelineStageBottomOfPipeBit)
	}
	return 0, vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit)
}

// safeString null-terminates s for the C API.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func clamp(val, min, max uint64) uint64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
