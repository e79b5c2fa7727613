package gpu

import "fmt"

// ShaderFormat is a bit set of shader binary formats.
type ShaderFormat uint32

const (
	ShaderFormatSPIRV ShaderFormat = 1 << iota
	ShaderFormatMSL
	ShaderFormatDXIL
)

func (f ShaderFormat) String() string {
	switch f {
	case ShaderFormatSPIRV:
		return "SPIRV"
	case ShaderFormatMSL:
		return "MSL"
	case ShaderFormatDXIL:
		return "DXIL"
	case 0:
		return "none"
	}
	return fmt.Sprintf("ShaderFormat(%#x)", uint32(f))
}

// ShaderStage selects the pipeline stage a shader runs in.
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderStage(%d)", int(s))
}

type TextureFormat int

const (
	TextureFormatInvalid TextureFormat = iota
	TextureFormatR8G8B8A8Unorm
	TextureFormatB8G8R8A8Unorm
	TextureFormatB8G8R8A8UnormSRGB
	TextureFormatD32Float
	TextureFormatD24UnormS8Uint
	TextureFormatD32FloatS8Uint
)

var textureFormatNames = map[TextureFormat]string{
	TextureFormatInvalid:           "invalid",
	TextureFormatR8G8B8A8Unorm:     "R8G8B8A8_UNORM",
	TextureFormatB8G8R8A8Unorm:     "B8G8R8A8_UNORM",
	TextureFormatB8G8R8A8UnormSRGB: "B8G8R8A8_UNORM_SRGB",
	TextureFormatD32Float:          "D32_FLOAT",
	TextureFormatD24UnormS8Uint:    "D24_UNORM_S8_UINT",
	TextureFormatD32FloatS8Uint:    "D32_FLOAT_S8_UINT",
}

func (f TextureFormat) String() string {
	if s, ok := textureFormatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("TextureFormat(%d)", int(f))
}

// IsDepth reports whether f has a depth aspect.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatD32Float || f == TextureFormatD24UnormS8Uint || f == TextureFormatD32FloatS8Uint
}

// HasStencil reports whether f has a stencil aspect.
func (f TextureFormat) HasStencil() bool {
	return f == TextureFormatD24UnormS8Uint || f == TextureFormatD32FloatS8Uint
}

type TextureUsage uint32

const (
	TextureUsageSampler TextureUsage = 1 << iota
	TextureUsageColorTarget
	TextureUsageDepthStencilTarget
)

type SampleCount int

const (
	SampleCount1 SampleCount = 1
	SampleCount2 SampleCount = 2
	SampleCount4 SampleCount = 4
	SampleCount8 SampleCount = 8
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
)

type VertexElementFormat int

const (
	VertexElementFloat2 VertexElementFormat = iota + 1
	VertexElementFloat3
	VertexElementFloat4
)

type VertexInputRate int

const (
	VertexInputRateVertex VertexInputRate = iota
	VertexInputRateInstance
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type SamplerMipmapMode int

const (
	SamplerMipmapModeNearest SamplerMipmapMode = iota
	SamplerMipmapModeLinear
)

type SamplerAddressMode int

const (
	SamplerAddressModeRepeat SamplerAddressMode = iota
	SamplerAddressModeMirroredRepeat
	SamplerAddressModeClampToEdge
)

type IndexElementSize int

const (
	IndexElementSize16Bit IndexElementSize = iota
	IndexElementSize32Bit
)

type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
	// StoreOpResolve resolves a multisampled target into
	// ColorTargetInfo.ResolveTexture at the end of the pass.
	StoreOpResolve
)

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float32
}

type ShaderCreateInfo struct {
	Name               string
	Code               []byte
	Entrypoint         string
	Format             ShaderFormat
	Stage              ShaderStage
	NumSamplers        uint32
	NumStorageTextures uint32
	NumStorageBuffers  uint32
	NumUniformBuffers  uint32
}

type VertexBufferDescription struct {
	Slot      uint32
	Pitch     uint32
	InputRate VertexInputRate
}

type VertexAttribute struct {
	Location   uint32
	BufferSlot uint32
	Format     VertexElementFormat
	Offset     uint32
}

type DepthStencilState struct {
	CompareOp        CompareOp
	EnableDepthTest  bool
	EnableDepthWrite bool
}

type GraphicsPipelineTargetInfo struct {
	ColorFormats          []TextureFormat
	DepthStencilFormat    TextureFormat
	HasDepthStencilTarget bool
}

type GraphicsPipelineCreateInfo struct {
	Name             string
	VertexShader     Shader
	FragmentShader   Shader
	VertexBuffers    []VertexBufferDescription
	VertexAttributes []VertexAttribute
	SampleCount      SampleCount
	DepthStencil     DepthStencilState
	Target           GraphicsPipelineTargetInfo
}

type BufferCreateInfo struct {
	Name  string
	Usage BufferUsage
	Size  uint32
}

type TextureCreateInfo struct {
	Name        string
	Format      TextureFormat
	Usage       TextureUsage
	Width       uint32
	Height      uint32
	NumLevels   uint32
	SampleCount SampleCount
}

type SamplerCreateInfo struct {
	Name         string
	MinFilter    Filter
	MagFilter    Filter
	MipmapMode   SamplerMipmapMode
	AddressModeU SamplerAddressMode
	AddressModeV SamplerAddressMode
	AddressModeW SamplerAddressMode
}

type TransferBufferCreateInfo struct {
	Name string
	Size uint32
}

type TransferBufferLocation struct {
	TransferBuffer TransferBuffer
	Offset         uint32
}

type BufferRegion struct {
	Buffer Buffer
	Offset uint32
	Size   uint32
}

// TextureTransferInfo describes pixel data in a transfer buffer. A zero
// PixelsPerRow means rows are tightly packed.
type TextureTransferInfo struct {
	TransferBuffer TransferBuffer
	Offset         uint32
	PixelsPerRow   uint32
	RowsPerLayer   uint32
}

type TextureRegion struct {
	Texture Texture
	X, Y    uint32
	W, H    uint32
}

type BufferBinding struct {
	Buffer Buffer
	Offset uint32
}

type TextureSamplerBinding struct {
	Texture Texture
	Sampler Sampler
}

type ColorTargetInfo struct {
	Texture        Texture
	ClearColor     Color
	LoadOp         LoadOp
	StoreOp        StoreOp
	ResolveTexture Texture
}

type DepthStencilTargetInfo struct {
	Texture        Texture
	ClearDepth     float32
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
}
