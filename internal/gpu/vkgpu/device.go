// Package vkgpu implements gpu.Device on Vulkan, presenting to a GLFW
// window surface.
//
// Uniform data pushed with PushVertexUniformData is delivered as push
// constants, 64 bytes per slot. Fragment samplers are combined image
// samplers in descriptor set 0, binding N for slot N.
package vkgpu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

const (
	maxFramesInFlight = 2
	// uniformSlotSize is the push constant space reserved per uniform slot.
	uniformSlotSize = 64
	maxUniformSlots = 2
	maxSamplers     = 4
	maxColorTargets = 4
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

// ErrNoSuitableDevice means no physical device can render to the surface.
var ErrNoSuitableDevice = errors.New("no suitable GPU found")

type Options struct {
	Window *glfw.Window
	// AppName is reported to the driver.
	AppName string
	// Validation enables the Khronos validation layer and routes its
	// reports to Log.
	Validation bool
	Log        *slog.Logger
}

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

// submission is a command buffer with the fence guarding its reuse.
type submission struct {
	cmd     vulkan.CommandBuffer
	fence   vulkan.Fence
	serial  uint64
	acquire vulkan.Semaphore
}

type pendingRelease struct {
	res    gpu.Resource
	serial uint64
}

// Device is a gpu.Device backed by a Vulkan logical device. It is not safe
// for concurrent use.
type Device struct {
	opts   Options
	log    *slog.Logger
	window *glfw.Window

	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	deviceName     string
	colorSamples   vulkan.SampleCountFlags
	depthSamples   vulkan.SampleCountFlags
	memProps       vulkan.PhysicalDeviceMemoryProperties
	device         vulkan.Device
	queues         queueFamilyIndices
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	commandPool    vulkan.CommandPool
	descriptorPool vulkan.DescriptorPool

	surfaceFormat vulkan.SurfaceFormat
	sc            swapchain
	resized       bool

	free       []*submission
	inflight   []*submission
	semaphores []vulkan.Semaphore
	serial     uint64
	completed  uint64
	recording  int
	pending    []pendingRelease
	live       int

	renderPasses   map[renderPassKey]vulkan.RenderPass
	framebuffers   map[framebufferKey]vulkan.Framebuffer
	descriptorSets map[descriptorKey]vulkan.DescriptorSet
}

var _ gpu.Device = (*Device)(nil)

// New creates a Vulkan device rendering to opts.Window.
func New(opts Options) (*Device, error) {
	if opts.Window == nil {
		return nil, errors.New("vkgpu: no window")
	}
	if opts.AppName == "" {
		opts.AppName = "meshspin"
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	d := &Device{
		opts:           opts,
		log:            log,
		window:         opts.Window,
		renderPasses:   make(map[renderPassKey]vulkan.RenderPass),
		framebuffers:   make(map[framebufferKey]vulkan.Framebuffer),
		descriptorSets: make(map[descriptorKey]vulkan.DescriptorSet),
	}
	if err := d.init(); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return fmt.Errorf("vulkan init: %w", err)
	}
	if err := d.createInstance(); err != nil {
		return err
	}
	if err := vulkan.InitInstance(d.instance); err != nil {
		return fmt.Errorf("vkInitInstance: %w", err)
	}
	if err := d.setupDebugCallback(); err != nil {
		return err
	}
	if err := d.createSurface(); err != nil {
		return err
	}
	if err := d.pickPhysicalDevice(); err != nil {
		return err
	}
	if err := d.createLogicalDevice(); err != nil {
		return err
	}
	if err := d.createCommandPool(); err != nil {
		return err
	}
	if err := d.createDescriptorPool(); err != nil {
		return err
	}
	support := d.querySwapchainSupport(d.physicalDevice)
	d.surfaceFormat = chooseSwapSurfaceFormat(support.formats)
	if err := d.createSwapchain(); err != nil {
		return err
	}
	d.log.Debug("Vulkan device ready", "device", d.deviceName,
		"swapchain_format", fromVkFormat(d.surfaceFormat.Format), "validation", d.opts.Validation)
	return nil
}

func (d *Device) Driver() string { return "vulkan" }

// DeviceName returns the name the driver reports for the physical device.
func (d *Device) DeviceName() string { return d.deviceName }

func (d *Device) ShaderFormats() gpu.ShaderFormat { return gpu.ShaderFormatSPIRV }

func (d *Device) SwapchainTextureFormat() gpu.TextureFormat {
	return fromVkFormat(d.surfaceFormat.Format)
}

func (d *Device) TextureSupportsFormat(format gpu.TextureFormat, usage gpu.TextureUsage) bool {
	vf := vkFormat(format)
	if vf == vulkan.FormatUndefined {
		return false
	}
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(d.physicalDevice, vf, &props)
	props.Deref()
	want := formatFeatures(usage)
	return props.OptimalTilingFeatures&want == want
}

func (d *Device) TextureSupportsSampleCount(format gpu.TextureFormat, count gpu.SampleCount) bool {
	if count == gpu.SampleCount1 {
		return true
	}
	supported := d.colorSamples
	if format.IsDepth() {
		supported = d.depthSamples
	}
	return supported&vulkan.SampleCountFlags(sampleBits(count)) != 0
}

func (d *Device) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(d.device); res != vulkan.Success {
		return fmt.Errorf("device wait idle: %w", vulkan.Error(res))
	}
	d.retireAll()
	return nil
}

// Destroy releases every Vulkan object owned by the device. It tolerates a
// partially initialized device.
func (d *Device) Destroy() {
	if d.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DeviceWaitIdle(d.device)
		d.retireAll()
		// Nothing recorded from here on can reach the GPU.
		d.completed = d.serial + 1
		d.destroyRetired()
		if d.live > 0 {
			d.log.Warn("GPU resources still alive at device destruction", "count", d.live)
		}
		for key, fb := range d.framebuffers {
			vulkan.DestroyFramebuffer(d.device, fb, nil)
			delete(d.framebuffers, key)
		}
		for key, rp := range d.renderPasses {
			vulkan.DestroyRenderPass(d.device, rp, nil)
			delete(d.renderPasses, key)
		}
		clear(d.descriptorSets)
		d.destroySwapchain()
		for _, s := range d.semaphores {
			vulkan.DestroySemaphore(d.device, s, nil)
		}
		d.semaphores = nil
		for _, sub := range d.free {
			vulkan.DestroyFence(d.device, sub.fence, nil)
		}
		d.free = nil
		if d.descriptorPool != vulkan.DescriptorPool(vulkan.NullHandle) {
			vulkan.DestroyDescriptorPool(d.device, d.descriptorPool, nil)
		}
		if d.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
			vulkan.DestroyCommandPool(d.device, d.commandPool, nil)
		}
		vulkan.DestroyDevice(d.device, nil)
		d.device = vulkan.Device(vulkan.NullHandle)
	}
	if d.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if d.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(d.instance, d.surface, nil)
		d.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if d.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(d.instance, nil)
		d.instance = vulkan.Instance(vulkan.NullHandle)
	}
}

func (d *Device) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vulkan.CreateCommandPool(d.device, &poolInfo, nil, &d.commandPool); res != vulkan.Success {
		return fmt.Errorf("create command pool: %w", vulkan.Error(res))
	}
	return nil
}

func (d *Device) createDescriptorPool() error {
	const sets = 64
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vulkan.DescriptorPoolCreateFlags(vulkan.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       sets,
		PoolSizeCount: 1,
		PPoolSizes: []vulkan.DescriptorPoolSize{{
			Type:            vulkan.DescriptorTypeCombinedImageSampler,
			DescriptorCount: sets * maxSamplers,
		}},
	}
	if res := vulkan.CreateDescriptorPool(d.device, &poolInfo, nil, &d.descriptorPool); res != vulkan.Success {
		return fmt.Errorf("create descriptor pool: %w", vulkan.Error(res))
	}
	return nil
}
