package vkgpu

import (
	"fmt"

	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

func (d *Device) CreateGraphicsPipeline(info *gpu.GraphicsPipelineCreateInfo) (gpu.GraphicsPipeline, error) {
	vs, ok := info.VertexShader.(*shader)
	if !ok || vs.stage != gpu.ShaderStageVertex {
		return nil, fmt.Errorf("%s: missing vertex shader", info.Name)
	}
	fs, ok := info.FragmentShader.(*shader)
	if !ok || fs.stage != gpu.ShaderStageFragment {
		return nil, fmt.Errorf("%s: missing fragment shader", info.Name)
	}
	if n := len(info.Target.ColorFormats); n == 0 || n > maxColorTargets {
		return nil, fmt.Errorf("%s: %d color targets", info.Name, n)
	}

	p := &pipeline{
		name:         info.Name,
		numSamplers:  fs.numSamplers,
		uniformSlots: vs.uniformSlots,
	}
	ok = false
	defer func() {
		if !ok {
			d.destroyPipelineObjects(p)
		}
	}()

	bindings := make([]vulkan.DescriptorSetLayoutBinding, fs.numSamplers)
	for i := range bindings {
		bindings[i] = vulkan.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit),
		}
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if res := vulkan.CreateDescriptorSetLayout(d.device, &layoutInfo, nil, &p.setLayout); res != vulkan.Success {
		return nil, fmt.Errorf("%s: create descriptor set layout: %w", info.Name, vulkan.Error(res))
	}

	pipelineLayoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:          vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vulkan.DescriptorSetLayout{p.setLayout},
	}
	if vs.uniformSlots > 0 {
		pipelineLayoutInfo.PushConstantRangeCount = 1
		pipelineLayoutInfo.PPushConstantRanges = []vulkan.PushConstantRange{{
			StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
			Size:       uniformSlotSize * vs.uniformSlots,
		}}
	}
	if res := vulkan.CreatePipelineLayout(d.device, &pipelineLayoutInfo, nil, &p.layout); res != vulkan.Success {
		return nil, fmt.Errorf("%s: create pipeline layout: %w", info.Name, vulkan.Error(res))
	}

	renderPass, err := d.renderPass(pipelineRenderPassKey(info))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}

	shaderStages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vs.module,
			PName:  safeString(vs.entrypoint),
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fs.module,
			PName:  safeString(fs.entrypoint),
		},
	}

	vertexBindings := make([]vulkan.VertexInputBindingDescription, len(info.VertexBuffers))
	for i, vb := range info.VertexBuffers {
		vertexBindings[i] = vulkan.VertexInputBindingDescription{
			Binding:   vb.Slot,
			Stride:    vb.Pitch,
			InputRate: inputRate(vb.InputRate),
		}
	}
	attributes := make([]vulkan.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributes[i] = vulkan.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.BufferSlot,
			Format:   vertexFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(vertexBindings)),
		PVertexBindingDescriptions:      vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkan.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vulkan.False,
	}

	// Viewport and scissor are set per render pass.
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates: []vulkan.DynamicState{
			vulkan.DynamicStateViewport,
			vulkan.DynamicStateScissor,
		},
	}

	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             vulkan.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
		FrontFace:               vulkan.FrontFaceCounterClockwise,
		DepthBiasEnable:         vulkan.False,
	}

	samples := info.SampleCount
	if samples == 0 {
		samples = gpu.SampleCount1
	}
	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleBits(samples),
	}

	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(info.DepthStencil.EnableDepthTest),
		DepthWriteEnable:      vkBool(info.DepthStencil.EnableDepthWrite),
		DepthCompareOp:        compareOp(info.DepthStencil.CompareOp),
		DepthBoundsTestEnable: vulkan.False,
		StencilTestEnable:     vulkan.False,
	}

	blend := make([]vulkan.PipelineColorBlendAttachmentState, len(info.Target.ColorFormats))
	for i := range blend {
		blend[i] = vulkan.PipelineColorBlendAttachmentState{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
			BlendEnable:    vulkan.False,
		}
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blend)),
		PAttachments:    blend,
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              p.layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}
	if info.Target.HasDepthStencilTarget {
		pipelineInfo.PDepthStencilState = &depthStencil
	}

	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(d.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		return nil, fmt.Errorf("%s: create graphics pipeline: %w", info.Name, vulkan.Error(res))
	}
	p.handle = pipelines[0]
	ok = true
	d.live++
	return p, nil
}

// destroyPipelineObjects cleans up after a failed pipeline creation.
func (d *Device) destroyPipelineObjects(p *pipeline) {
	if p.handle != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(d.device, p.handle, nil)
	}
	if p.layout != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(d.device, p.layout, nil)
	}
	if p.setLayout != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
		vulkan.DestroyDescriptorSetLayout(d.device, p.setLayout, nil)
	}
}

// pipelineRenderPassKey describes a render pass compatible with every pass
// the pipeline will be used in. Only formats and sample counts matter for
// compatibility.
func pipelineRenderPassKey(info *gpu.GraphicsPipelineCreateInfo) renderPassKey {
	samples := info.SampleCount
	if samples == 0 {
		samples = gpu.SampleCount1
	}
	var key renderPassKey
	key.numColors = len(info.Target.ColorFormats)
	for i, f := range info.Target.ColorFormats {
		key.colors[i] = attachmentKey{
			format:  vkFormat(f),
			samples: sampleBits(samples),
			load:    vulkan.AttachmentLoadOpClear,
			store:   vulkan.AttachmentStoreOpStore,
			initial: vulkan.ImageLayoutUndefined,
			final:   vulkan.ImageLayoutColorAttachmentOptimal,
		}
		if samples > gpu.SampleCount1 {
			key.resolves[i] = attachmentKey{
				format:  vkFormat(f),
				samples: vulkan.SampleCount1Bit,
				load:    vulkan.AttachmentLoadOpDontCare,
				store:   vulkan.AttachmentStoreOpStore,
				initial: vulkan.ImageLayoutUndefined,
				final:   vulkan.ImageLayoutColorAttachmentOptimal,
			}
		}
	}
	if info.Target.HasDepthStencilTarget {
		key.hasDepth = true
		key.depth = attachmentKey{
			format:       vkFormat(info.Target.DepthStencilFormat),
			samples:      sampleBits(samples),
			load:         vulkan.AttachmentLoadOpClear,
			store:        vulkan.AttachmentStoreOpDontCare,
			stencilLoad:  vulkan.AttachmentLoadOpDontCare,
			stencilStore: vulkan.AttachmentStoreOpDontCare,
			initial:      vulkan.ImageLayoutUndefined,
			final:        vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	return key
}

func vkBool(b bool) vulkan.Bool32 {
	if b {
		return vulkan.True
	}
	return vulkan.False
}
