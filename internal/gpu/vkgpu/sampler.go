package vkgpu

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"meshspin/internal/gpu"
)

func (d *Device) CreateSampler(info *gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(info.MagFilter),
		MinFilter:               filter(info.MinFilter),
		AddressModeU:            addressMode(info.AddressModeU),
		AddressModeV:            addressMode(info.AddressModeV),
		AddressModeW:            addressMode(info.AddressModeW),
		AnisotropyEnable:        vulkan.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareEnable:           vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              mipmapMode(info.MipmapMode),
	}
	// The handle is written by C code; keep it out of Go memory.
	var zero vulkan.Sampler
	out := (*vulkan.Sampler)(C.malloc(C.size_t(unsafe.Sizeof(zero))))
	if out == nil {
		return nil, fmt.Errorf("%s: allocate sampler handle", info.Name)
	}
	defer C.free(unsafe.Pointer(out))

	if res := vulkan.CreateSampler(d.device, &samplerInfo, nil, out); res != vulkan.Success {
		return nil, fmt.Errorf("%s: create sampler: %w", info.Name, vulkan.Error(res))
	}
	d.live++
	return &sampler{name: info.Name, sampler: *out}, nil
}
