package vkgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

func (d *Device) createInstance() error {
	if d.opts.Validation && !validationLayersSupported() {
		d.log.Warn("Validation layers requested but not available")
		d.opts.Validation = false
	}

	if !glfw.VulkanSupported() {
		return errors.New("GLFW Vulkan loader not found")
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(d.opts.AppName),
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := d.window.GetRequiredInstanceExtensions()
	if d.opts.Validation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}
	extensions = safeStrings(extensions)

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if d.opts.Validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}

	if res := vulkan.CreateInstance(&createInfo, nil, &d.instance); res != vulkan.Success {
		return fmt.Errorf("create instance: %w", vulkan.Error(res))
	}
	return nil
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (d *Device) setupDebugCallback() error {
	if !d.opts.Validation {
		return nil
	}
	log := d.log.With("component", "vulkan")
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			level := slog.LevelWarn
			if flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0 {
				level = slog.LevelError
			}
			log.Log(context.Background(), level, message, "layer", layerPrefix, "code", messageCode, "flags", fmt.Sprintf("%#x", flags))
			return vulkan.False
		},
	}
	if res := vulkan.CreateDebugReportCallback(d.instance, &createInfo, nil, &d.debugCallback); res != vulkan.Success {
		return fmt.Errorf("create debug callback: %w", vulkan.Error(res))
	}
	return nil
}

func (d *Device) createSurface() error {
	surfacePtr, err := d.window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	d.surface = vulkan.SurfaceFromPointer(surfacePtr)
	return nil
}

func (d *Device) pickPhysicalDevice() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(d.instance, &count, nil); res != vulkan.Success {
		return fmt.Errorf("enumerate physical devices: %w", vulkan.Error(res))
	}
	if count == 0 {
		return ErrNoSuitableDevice
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(d.instance, &count, devices); res != vulkan.Success {
		return fmt.Errorf("enumerate physical devices list: %w", vulkan.Error(res))
	}

	var selected vulkan.PhysicalDevice
	var selectedQueues queueFamilyIndices
	bestScore := int32(-1)
	for _, dev := range devices {
		q := d.findQueueFamilies(dev)
		if !q.hasGraphics || !q.hasPresent {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		support := d.querySwapchainSupport(dev)
		if len(support.formats) == 0 || len(support.presentModes) == 0 {
			continue
		}
		if score := deviceScore(dev); score > bestScore {
			bestScore = score
			selected = dev
			selectedQueues = q
		}
	}

	if selected == (vulkan.PhysicalDevice)(unsafe.Pointer(nil)) {
		return ErrNoSuitableDevice
	}

	d.physicalDevice = selected
	d.queues = selectedQueues

	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(selected, &props)
	props.Deref()
	props.Limits.Deref()
	d.deviceName = vulkan.ToString(props.DeviceName[:])
	d.colorSamples = props.Limits.FramebufferColorSampleCounts
	d.depthSamples = props.Limits.FramebufferDepthSampleCounts

	vulkan.GetPhysicalDeviceMemoryProperties(selected, &d.memProps)
	d.memProps.Deref()
	return nil
}

func deviceScore(device vulkan.PhysicalDevice) int32 {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func (d *Device) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), d.surface, &present)
		if present == vulkan.True {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.hasGraphics && indices.hasPresent {
			break
		}
	}
	return indices
}

func (d *Device) createLogicalDevice() error {
	var queueInfos []vulkan.DeviceQueueCreateInfo
	uniqueFamilies := map[uint32]bool{
		d.queues.graphicsFamily: true,
		d.queues.presentFamily:  true,
	}
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	extensions := safeStrings(deviceExtensions)
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		PpEnabledExtensionNames: extensions,
		EnabledExtensionCount:   uint32(len(extensions)),
	}
	if d.opts.Validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}

	if res := vulkan.CreateDevice(d.physicalDevice, &createInfo, nil, &d.device); res != vulkan.Success {
		return fmt.Errorf("create logical device: %w", vulkan.Error(res))
	}

	vulkan.GetDeviceQueue(d.device, d.queues.graphicsFamily, 0, &d.graphicsQueue)
	vulkan.GetDeviceQueue(d.device, d.queues.presentFamily, 0, &d.presentQueue)
	return nil
}
