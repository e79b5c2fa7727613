package vkgpu

import (
	"fmt"
	"math"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

type swapchain struct {
	handle vulkan.Swapchain
	extent vulkan.Extent2D
	// requested is the framebuffer size the swapchain was built for; the
	// extent may differ after clamping.
	requestedW, requestedH int
	textures               []*texture
	// renderFinished is signaled by the submission rendering into the
	// image with the same index and waited on by its present.
	renderFinished []vulkan.Semaphore
}

func (d *Device) querySwapchainSupport(device vulkan.PhysicalDevice) swapchainSupport {
	var details swapchainSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, d.surface, &details.capabilities)
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, d.surface, &formatCount, nil)
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, d.surface, &formatCount, details.formats)
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, d.surface, &presentCount, nil)
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, d.surface, &presentCount, details.presentModes)
	}
	return details
}

// chooseSwapSurfaceFormat prefers 8-bit BGRA in the sRGB color space with
// a UNORM encoding, then any known format.
func chooseSwapSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, want := range []vulkan.Format{vulkan.FormatB8g8r8a8Unorm, vulkan.FormatB8g8r8a8Srgb} {
		for _, f := range available {
			if f.Format == want && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
				return f
			}
		}
	}
	for _, f := range available {
		if fromVkFormat(f.Format) != 0 {
			return f
		}
	}
	return available[0]
}

func chooseSwapPresentMode(available []vulkan.PresentMode) vulkan.PresentMode {
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

func chooseSwapExtent(caps vulkan.SurfaceCapabilities, window *glfw.Window) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	w, h := window.GetFramebufferSize()
	min := caps.MinImageExtent
	max := caps.MaxImageExtent
	return vulkan.Extent2D{
		Width:  uint32(clamp(uint64(w), uint64(min.Width), uint64(max.Width))),
		Height: uint32(clamp(uint64(h), uint64(min.Height), uint64(max.Height))),
	}
}

// createSwapchain builds the swapchain for the current framebuffer size. A
// zero-sized framebuffer leaves the device without a swapchain until the
// next acquire finds a usable size.
func (d *Device) createSwapchain() error {
	w, h := d.window.GetFramebufferSize()
	if w == 0 || h == 0 {
		return nil
	}
	support := d.querySwapchainSupport(d.physicalDevice)
	if len(support.formats) == 0 {
		return fmt.Errorf("create swapchain: surface reports no formats")
	}
	presentMode := chooseSwapPresentMode(support.presentModes)
	extent := chooseSwapExtent(support.capabilities, d.window)
	if extent.Width == 0 || extent.Height == 0 {
		return nil
	}

	imageCount := support.capabilities.MinImageCount + 1
	if support.capabilities.MaxImageCount > 0 && imageCount > support.capabilities.MaxImageCount {
		imageCount = support.capabilities.MaxImageCount
	}

	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      d.surfaceFormat.Format,
		ImageColorSpace:  d.surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     vulkan.Swapchain(vulkan.NullHandle),
	}
	if d.queues.graphicsFamily != d.queues.presentFamily {
		indices := []uint32{d.queues.graphicsFamily, d.queues.presentFamily}
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(indices))
		createInfo.PQueueFamilyIndices = indices
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	var handle vulkan.Swapchain
	if res := vulkan.CreateSwapchain(d.device, &createInfo, nil, &handle); res != vulkan.Success {
		return fmt.Errorf("create swapchain: %w", vulkan.Error(res))
	}
	d.sc = swapchain{handle: handle, extent: extent, requestedW: w, requestedH: h}

	var count uint32
	vulkan.GetSwapchainImages(d.device, handle, &count, nil)
	images := make([]vulkan.Image, count)
	vulkan.GetSwapchainImages(d.device, handle, &count, images)

	format := fromVkFormat(d.surfaceFormat.Format)
	semInfo := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	for i, img := range images {
		view, err := d.createImageView(img, d.surfaceFormat.Format, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
		if err != nil {
			d.destroySwapchain()
			return fmt.Errorf("create swapchain image view %d: %w", i, err)
		}
		d.sc.textures = append(d.sc.textures, &texture{
			name:      fmt.Sprintf("Swapchain Image %d", i),
			image:     img,
			view:      view,
			format:    format,
			vkFormat:  d.surfaceFormat.Format,
			width:     extent.Width,
			height:    extent.Height,
			samples:   1,
			aspect:    vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			swapchain: true,
		})
		var sem vulkan.Semaphore
		if res := vulkan.CreateSemaphore(d.device, &semInfo, nil, &sem); res != vulkan.Success {
			d.destroySwapchain()
			return fmt.Errorf("create render finished semaphore %d: %w", i, vulkan.Error(res))
		}
		d.sc.renderFinished = append(d.sc.renderFinished, sem)
	}
	d.resized = false
	d.log.Debug("Swapchain created", "width", extent.Width, "height", extent.Height,
		"images", len(images), "present_mode", presentMode)
	return nil
}

// swapchainStale reports whether the swapchain no longer matches the
// framebuffer of the window.
func (d *Device) swapchainStale(w, h int) bool {
	return d.resized || d.sc.handle == vulkan.Swapchain(vulkan.NullHandle) ||
		w != d.sc.requestedW || h != d.sc.requestedH
}

func (d *Device) destroySwapchain() {
	for _, t := range d.sc.textures {
		d.dropFramebuffers(t.view)
		vulkan.DestroyImageView(d.device, t.view, nil)
	}
	for _, s := range d.sc.renderFinished {
		vulkan.DestroySemaphore(d.device, s, nil)
	}
	if d.sc.handle != vulkan.Swapchain(vulkan.NullHandle) {
		vulkan.DestroySwapchain(d.device, d.sc.handle, nil)
	}
	d.sc = swapchain{}
}

func (d *Device) recreateSwapchain() error {
	if res := vulkan.DeviceWaitIdle(d.device); res != vulkan.Success {
		return fmt.Errorf("device wait idle: %w", vulkan.Error(res))
	}
	d.retireAll()
	d.destroySwapchain()
	return d.createSwapchain()
}
