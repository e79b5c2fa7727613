package vkgpu

import (
	"fmt"

	"github.com/vulkan-go/vulkan"
)

type attachmentKey struct {
	format       vulkan.Format
	samples      vulkan.SampleCountFlagBits
	load         vulkan.AttachmentLoadOp
	store        vulkan.AttachmentStoreOp
	stencilLoad  vulkan.AttachmentLoadOp
	stencilStore vulkan.AttachmentStoreOp
	initial      vulkan.ImageLayout
	final        vulkan.ImageLayout
}

func (k attachmentKey) used() bool { return k.format != vulkan.FormatUndefined }

func (k attachmentKey) description() vulkan.AttachmentDescription {
	stencilLoad, stencilStore := k.stencilLoad, k.stencilStore
	if k.stencilLoad == 0 && k.stencilStore == 0 {
		stencilLoad = vulkan.AttachmentLoadOpDontCare
		stencilStore = vulkan.AttachmentStoreOpDontCare
	}
	return vulkan.AttachmentDescription{
		Format:         k.format,
		Samples:        k.samples,
		LoadOp:         k.load,
		StoreOp:        k.store,
		StencilLoadOp:  stencilLoad,
		StencilStoreOp: stencilStore,
		InitialLayout:  k.initial,
		FinalLayout:    k.final,
	}
}

// renderPassKey identifies a cached VkRenderPass.
type renderPassKey struct {
	numColors int
	colors    [maxColorTargets]attachmentKey
	resolves  [maxColorTargets]attachmentKey
	depth     attachmentKey
	hasDepth  bool
}

type framebufferKey struct {
	pass          vulkan.RenderPass
	views         [2*maxColorTargets + 1]vulkan.ImageView
	numViews      int
	width, height uint32
}

func (k *framebufferKey) has(view vulkan.ImageView) bool {
	for _, v := range k.views[:k.numViews] {
		if v == view {
			return true
		}
	}
	return false
}

// descriptorKey identifies a descriptor set holding one combined image
// sampler per fragment sampler slot.
type descriptorKey struct {
	layout   vulkan.DescriptorSetLayout
	n        int
	textures [maxSamplers]*texture
	samplers [maxSamplers]*sampler
}

func (k *descriptorKey) uses(r any) bool {
	for i := 0; i < k.n; i++ {
		if any(k.textures[i]) == r || any(k.samplers[i]) == r {
			return true
		}
	}
	return false
}

func (d *Device) renderPass(key renderPassKey) (vulkan.RenderPass, error) {
	if rp, ok := d.renderPasses[key]; ok {
		return rp, nil
	}

	var attachments []vulkan.AttachmentDescription
	colorRefs := make([]vulkan.AttachmentReference, key.numColors)
	for i := range colorRefs {
		colorRefs[i] = vulkan.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}
		attachments = append(attachments, key.colors[i].description())
	}

	var resolveRefs []vulkan.AttachmentReference
	for i := 0; i < key.numColors; i++ {
		if key.resolves[i].used() {
			resolveRefs = make([]vulkan.AttachmentReference, key.numColors)
			break
		}
	}
	for i := range resolveRefs {
		if !key.resolves[i].used() {
			resolveRefs[i] = vulkan.AttachmentReference{Attachment: vulkan.AttachmentUnused}
			continue
		}
		resolveRefs[i] = vulkan.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}
		attachments = append(attachments, key.resolves[i].description())
	}

	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(key.numColors),
		PColorAttachments:    colorRefs,
		PResolveAttachments:  resolveRefs,
	}
	if key.hasDepth {
		subpass.PDepthStencilAttachment = &vulkan.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, key.depth.description())
	}

	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}
	var rp vulkan.RenderPass
	if res := vulkan.CreateRenderPass(d.device, &createInfo, nil, &rp); res != vulkan.Success {
		return vulkan.RenderPass(vulkan.NullHandle), fmt.Errorf("create render pass: %w", vulkan.Error(res))
	}
	d.renderPasses[key] = rp
	return rp, nil
}

func (d *Device) framebuffer(key framebufferKey) (vulkan.Framebuffer, error) {
	if fb, ok := d.framebuffers[key]; ok {
		return fb, nil
	}
	createInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      key.pass,
		AttachmentCount: uint32(key.numViews),
		PAttachments:    key.views[:key.numViews],
		Width:           key.width,
		Height:          key.height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(d.device, &createInfo, nil, &fb); res != vulkan.Success {
		return vulkan.Framebuffer(vulkan.NullHandle), fmt.Errorf("create framebuffer: %w", vulkan.Error(res))
	}
	d.framebuffers[key] = fb
	return fb, nil
}

// dropFramebuffers destroys the cached framebuffers that reference view.
func (d *Device) dropFramebuffers(view vulkan.ImageView) {
	for key, fb := range d.framebuffers {
		if key.has(view) {
			vulkan.DestroyFramebuffer(d.device, fb, nil)
			delete(d.framebuffers, key)
		}
	}
}

func (d *Device) descriptorSet(key descriptorKey) (vulkan.DescriptorSet, error) {
	if set, ok := d.descriptorSets[key]; ok {
		return set, nil
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vulkan.DescriptorSetLayout{key.layout},
	}
	var set vulkan.DescriptorSet
	if res := vulkan.AllocateDescriptorSets(d.device, &allocInfo, &set); res != vulkan.Success {
		return vulkan.DescriptorSet(vulkan.NullHandle), fmt.Errorf("allocate descriptor set: %w", vulkan.Error(res))
	}

	writes := make([]vulkan.WriteDescriptorSet, key.n)
	for i := range writes {
		writes[i] = vulkan.WriteDescriptorSet{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vulkan.DescriptorImageInfo{{
				Sampler:     key.samplers[i].sampler,
				ImageView:   key.textures[i].view,
				ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
			}},
		}
	}
	vulkan.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
	d.descriptorSets[key] = set
	return set, nil
}

func (d *Device) dropDescriptorSets(match func(descriptorKey) bool) {
	for key, set := range d.descriptorSets {
		if match(key) {
			vulkan.FreeDescriptorSets(d.device, d.descriptorPool, 1, &set)
			delete(d.descriptorSets, key)
		}
	}
}
