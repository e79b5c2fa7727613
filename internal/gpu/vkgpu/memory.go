package vkgpu

import (
	"fmt"

	"github.com/vulkan-go/vulkan"
)

func (d *Device) findMemoryType(typeFilter uint32, properties vulkan.MemoryPropertyFlagBits) (uint32, error) {
	want := vulkan.MemoryPropertyFlags(properties)
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		memoryType := d.memProps.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type with properties %#x", properties)
}

func (d *Device) allocate(req vulkan.MemoryRequirements, properties vulkan.MemoryPropertyFlagBits) (vulkan.DeviceMemory, error) {
	typeIndex, err := d.findMemoryType(req.MemoryTypeBits, properties)
	if err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(d.device, &allocInfo, nil, &memory); res != vulkan.Success {
		return vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("allocate memory: %w", vulkan.Error(res))
	}
	return memory, nil
}

func (d *Device) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlagBits) (vulkan.Buffer, vulkan.DeviceMemory, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buffer vulkan.Buffer
	if res := vulkan.CreateBuffer(d.device, &bufferInfo, nil, &buffer); res != vulkan.Success {
		return vulkan.Buffer(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("create buffer: %w", vulkan.Error(res))
	}
	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(d.device, buffer, &memReq)
	memReq.Deref()
	memory, err := d.allocate(memReq, properties)
	if err != nil {
		vulkan.DestroyBuffer(d.device, buffer, nil)
		return vulkan.Buffer(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("buffer memory: %w", err)
	}
	if res := vulkan.BindBufferMemory(d.device, buffer, memory, 0); res != vulkan.Success {
		vulkan.DestroyBuffer(d.device, buffer, nil)
		vulkan.FreeMemory(d.device, memory, nil)
		return vulkan.Buffer(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("bind buffer memory: %w", vulkan.Error(res))
	}
	return buffer, memory, nil
}

func (d *Device) createImage(width, height uint32, format vulkan.Format, usage vulkan.ImageUsageFlags, samples vulkan.SampleCountFlagBits) (vulkan.Image, vulkan.DeviceMemory, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       samples,
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var image vulkan.Image
	if res := vulkan.CreateImage(d.device, &createInfo, nil, &image); res != vulkan.Success {
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("create image: %w", vulkan.Error(res))
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.device, image, &memReq)
	memReq.Deref()
	memory, err := d.allocate(memReq, vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vulkan.DestroyImage(d.device, image, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("image memory: %w", err)
	}
	if res := vulkan.BindImageMemory(d.device, image, memory, 0); res != vulkan.Success {
		vulkan.DestroyImage(d.device, image, nil)
		vulkan.FreeMemory(d.device, memory, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("bind image memory: %w", vulkan.Error(res))
	}
	return image, memory, nil
}

func (d *Device) createImageView(image vulkan.Image, format vulkan.Format, aspectFlags vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: aspectFlags,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(d.device, &viewInfo, nil, &view); res != vulkan.Success {
		return vulkan.ImageView(vulkan.NullHandle), fmt.Errorf("create image view: %w", vulkan.Error(res))
	}
	return view, nil
}
