package vkgpu

import (
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

type buffer struct {
	name   string
	size   uint32
	buf    vulkan.Buffer
	memory vulkan.DeviceMemory
}

func (b *buffer) Name() string { return b.name }
func (b *buffer) Size() uint32 { return b.size }

type transferBuffer struct {
	name   string
	size   uint32
	buf    vulkan.Buffer
	memory vulkan.DeviceMemory
	mapped bool
}

func (b *transferBuffer) Name() string { return b.name }
func (b *transferBuffer) Size() uint32 { return b.size }

type texture struct {
	name     string
	image    vulkan.Image
	memory   vulkan.DeviceMemory
	view     vulkan.ImageView
	format   gpu.TextureFormat
	vkFormat vulkan.Format
	width    uint32
	height   uint32
	samples  gpu.SampleCount
	aspect   vulkan.ImageAspectFlags
	// layout is the layout the image is in once every recorded command
	// has executed.
	layout    vulkan.ImageLayout
	swapchain bool
}

func (t *texture) Name() string                 { return t.name }
func (t *texture) Width() uint32                { return t.width }
func (t *texture) Height() uint32               { return t.height }
func (t *texture) Format() gpu.TextureFormat    { return t.format }
func (t *texture) SampleCount() gpu.SampleCount { return t.samples }

type shader struct {
	name         string
	module       vulkan.ShaderModule
	stage        gpu.ShaderStage
	entrypoint   string
	numSamplers  uint32
	uniformSlots uint32
}

func (s *shader) Name() string           { return s.name }
func (s *shader) Stage() gpu.ShaderStage { return s.stage }

type sampler struct {
	name    string
	sampler vulkan.Sampler
}

func (s *sampler) Name() string { return s.name }

type pipeline struct {
	name         string
	handle       vulkan.Pipeline
	layout       vulkan.PipelineLayout
	setLayout    vulkan.DescriptorSetLayout
	numSamplers  uint32
	uniformSlots uint32
}

func (p *pipeline) Name() string { return p.name }

func (d *Device) CreateBuffer(info *gpu.BufferCreateInfo) (gpu.Buffer, error) {
	usage := vulkan.BufferUsageTransferDstBit
	if info.Usage&gpu.BufferUsageVertex != 0 {
		usage |= vulkan.BufferUsageVertexBufferBit
	}
	if info.Usage&gpu.BufferUsageIndex != 0 {
		usage |= vulkan.BufferUsageIndexBufferBit
	}
	buf, mem, err := d.createBuffer(vulkan.DeviceSize(info.Size), vulkan.BufferUsageFlags(usage), vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	d.live++
	return &buffer{name: info.Name, size: info.Size, buf: buf, memory: mem}, nil
}

func (d *Device) CreateTransferBuffer(info *gpu.TransferBufferCreateInfo) (gpu.TransferBuffer, error) {
	buf, mem, err := d.createBuffer(vulkan.DeviceSize(info.Size),
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	d.live++
	return &transferBuffer{name: info.Name, size: info.Size, buf: buf, memory: mem}, nil
}

func (d *Device) MapTransferBuffer(tb gpu.TransferBuffer) ([]byte, error) {
	b := tb.(*transferBuffer)
	if b.mapped {
		return nil, fmt.Errorf("map %s: already mapped", b.name)
	}
	var data unsafe.Pointer
	if res := vulkan.MapMemory(d.device, b.memory, 0, vulkan.DeviceSize(b.size), 0, &data); res != vulkan.Success {
		return nil, fmt.Errorf("map %s: %w", b.name, vulkan.Error(res))
	}
	b.mapped = true
	return unsafe.Slice((*byte)(data), b.size), nil
}

func (d *Device) UnmapTransferBuffer(tb gpu.TransferBuffer) {
	b := tb.(*transferBuffer)
	if !b.mapped {
		return
	}
	vulkan.UnmapMemory(d.device, b.memory)
	b.mapped = false
}

func (d *Device) CreateTexture(info *gpu.TextureCreateInfo) (gpu.Texture, error) {
	vf := vkFormat(info.Format)
	if vf == vulkan.FormatUndefined {
		return nil, fmt.Errorf("%s: unsupported format %v", info.Name, info.Format)
	}
	samples := info.SampleCount
	if samples == 0 {
		samples = gpu.SampleCount1
	}
	image, mem, err := d.createImage(info.Width, info.Height, vf, imageUsage(info), sampleBits(samples))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	aspect := aspectOf(info.Format)
	view, err := d.createImageView(image, vf, aspect)
	if err != nil {
		vulkan.DestroyImage(d.device, image, nil)
		vulkan.FreeMemory(d.device, mem, nil)
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	d.live++
	return &texture{
		name:     info.Name,
		image:    image,
		memory:   mem,
		view:     view,
		format:   info.Format,
		vkFormat: vf,
		width:    info.Width,
		height:   info.Height,
		samples:  samples,
		aspect:   aspect,
		layout:   vulkan.ImageLayoutUndefined,
	}, nil
}

func (d *Device) CreateShader(info *gpu.ShaderCreateInfo) (gpu.Shader, error) {
	if info.Format != gpu.ShaderFormatSPIRV {
		return nil, fmt.Errorf("%s: %w", info.Name, gpu.ErrUnsupportedShaderFormat)
	}
	if len(info.Code) == 0 || len(info.Code)%4 != 0 {
		return nil, fmt.Errorf("%s: SPIR-V code length %d is not a multiple of 4", info.Name, len(info.Code))
	}
	if info.NumUniformBuffers > maxUniformSlots {
		return nil, fmt.Errorf("%s: %d uniform buffers, at most %d supported", info.Name, info.NumUniformBuffers, maxUniformSlots)
	}
	if info.NumSamplers > maxSamplers {
		return nil, fmt.Errorf("%s: %d samplers, at most %d supported", info.Name, info.NumSamplers, maxSamplers)
	}
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(info.Code)),
		PCode:    spirvWords(info.Code),
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(d.device, &createInfo, nil, &module); res != vulkan.Success {
		return nil, fmt.Errorf("%s: create shader module: %w", info.Name, vulkan.Error(res))
	}
	entry := info.Entrypoint
	if entry == "" {
		entry = "main"
	}
	d.live++
	return &shader{
		name:         info.Name,
		module:       module,
		stage:        info.Stage,
		entrypoint:   entry,
		numSamplers:  info.NumSamplers,
		uniformSlots: info.NumUniformBuffers,
	}, nil
}

// spirvWords copies code into a word slice; file contents are not
// guaranteed to be 4-byte aligned.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)), code)
	return words
}

func (d *Device) Release(r gpu.Resource) {
	if r == nil {
		return
	}
	if t, ok := r.(*texture); ok && t.swapchain {
		d.log.Warn("Ignoring release of a swapchain texture", "name", t.name)
		return
	}
	serial := d.serial
	if d.recording > 0 {
		// A command buffer still being recorded may reference r.
		serial++
	}
	d.pending = append(d.pending, pendingRelease{res: r, serial: serial})
	d.live--
	d.collect()
}

// collect recycles finished submissions and destroys the resources they
// were the last users of.
func (d *Device) collect() {
	for len(d.inflight) > 0 {
		sub := d.inflight[0]
		if vulkan.GetFenceStatus(d.device, sub.fence) != vulkan.Success {
			break
		}
		d.inflight = d.inflight[1:]
		d.recycle(sub)
	}
	d.destroyRetired()
}

// retireAll treats every submission as complete. Callers wait for the
// device first.
func (d *Device) retireAll() {
	for _, sub := range d.inflight {
		d.recycle(sub)
	}
	d.inflight = nil
	d.completed = d.serial
	d.destroyRetired()
}

func (d *Device) recycle(sub *submission) {
	if sub.serial > d.completed {
		d.completed = sub.serial
	}
	vulkan.ResetFences(d.device, 1, []vulkan.Fence{sub.fence})
	vulkan.ResetCommandBuffer(sub.cmd, 0)
	if sub.acquire != vulkan.Semaphore(vulkan.NullHandle) {
		d.semaphores = append(d.semaphores, sub.acquire)
		sub.acquire = vulkan.Semaphore(vulkan.NullHandle)
	}
	d.free = append(d.free, sub)
}

func (d *Device) destroyRetired() {
	kept := d.pending[:0]
	for _, p := range d.pending {
		if p.serial <= d.completed {
			d.destroy(p.res)
		} else {
			kept = append(kept, p)
		}
	}
	d.pending = kept
}

func (d *Device) destroy(r gpu.Resource) {
	switch v := r.(type) {
	case *buffer:
		vulkan.DestroyBuffer(d.device, v.buf, nil)
		vulkan.FreeMemory(d.device, v.memory, nil)
	case *transferBuffer:
		d.UnmapTransferBuffer(v)
		vulkan.DestroyBuffer(d.device, v.buf, nil)
		vulkan.FreeMemory(d.device, v.memory, nil)
	case *texture:
		d.dropFramebuffers(v.view)
		d.dropDescriptorSets(func(k descriptorKey) bool { return k.uses(v) })
		vulkan.DestroyImageView(d.device, v.view, nil)
		vulkan.DestroyImage(d.device, v.image, nil)
		vulkan.FreeMemory(d.device, v.memory, nil)
	case *sampler:
		d.dropDescriptorSets(func(k descriptorKey) bool { return k.uses(v) })
		vulkan.DestroySampler(d.device, v.sampler, nil)
	case *shader:
		vulkan.DestroyShaderModule(d.device, v.module, nil)
	case *pipeline:
		d.dropDescriptorSets(func(k descriptorKey) bool { return k.layout == v.setLayout })
		vulkan.DestroyPipeline(d.device, v.handle, nil)
		vulkan.DestroyPipelineLayout(d.device, v.layout, nil)
		vulkan.DestroyDescriptorSetLayout(d.device, v.setLayout, nil)
	default:
		d.log.Warn("Release of unknown resource", "type", fmt.Sprintf("%T", r))
	}
}
