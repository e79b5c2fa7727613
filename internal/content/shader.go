package content

import (
	"fmt"

	"meshspin/internal/gpu"
)

// ShaderResources declares how many resources of each kind a shader binds.
type ShaderResources struct {
	Samplers        uint32
	UniformBuffers  uint32
	StorageBuffers  uint32
	StorageTextures uint32
}

// LoadShader creates a shader for stage from the binary of name matching
// the first format dev supports.
func (r *Resolver) LoadShader(dev gpu.Device, name string, stage gpu.ShaderStage, res ShaderResources) (gpu.Shader, error) {
	format, err := gpu.SelectShaderFormat(dev.ShaderFormats())
	if err != nil {
		return nil, err
	}
	code, err := r.ShaderCode(name, format)
	if err != nil {
		return nil, err
	}
	shader, err := dev.CreateShader(&gpu.ShaderCreateInfo{
		Name:               name,
		Code:               code,
		Entrypoint:         format.Entrypoint(),
		Format:             format,
		Stage:              stage,
		NumSamplers:        res.Samplers,
		NumStorageTextures: res.StorageTextures,
		NumStorageBuffers:  res.StorageBuffers,
		NumUniformBuffers:  res.UniformBuffers,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s shader %s: %w", stage, name, err)
	}
	return shader, nil
}
