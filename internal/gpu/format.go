package gpu

// shaderFormatPreference is the order in which binary formats are tried.
var shaderFormatPreference = []ShaderFormat{
	ShaderFormatSPIRV,
	ShaderFormatMSL,
	ShaderFormatDXIL,
}

// SelectShaderFormat returns the first preferred format advertised in
// available.
func SelectShaderFormat(available ShaderFormat) (ShaderFormat, error) {
	for _, f := range shaderFormatPreference {
		if available&f != 0 {
			return f, nil
		}
	}
	return 0, ErrUnsupportedShaderFormat
}

// Entrypoint returns the shader entry point name used by binaries of
// format f.
func (f ShaderFormat) Entrypoint() string {
	if f == ShaderFormatMSL {
		return "main0"
	}
	return "main"
}

// Extension returns the file extension of compiled binaries of format f.
func (f ShaderFormat) Extension() string {
	switch f {
	case ShaderFormatSPIRV:
		return ".spv"
	case ShaderFormatMSL:
		return ".msl"
	case ShaderFormatDXIL:
		return ".dxil"
	}
	return ""
}

// DepthStencilCandidates is the probing order for depth/stencil targets.
var DepthStencilCandidates = []TextureFormat{
	TextureFormatD24UnormS8Uint,
	TextureFormatD32FloatS8Uint,
}

// SelectDepthStencilFormat probes dev for the first supported format in
// DepthStencilCandidates.
func SelectDepthStencilFormat(dev Device) (TextureFormat, error) {
	for _, f := range DepthStencilCandidates {
		if dev.TextureSupportsFormat(f, TextureUsageDepthStencilTarget) {
			return f, nil
		}
	}
	return TextureFormatInvalid, ErrUnsupportedDepthFormat
}

// SelectSampleCount returns want if dev supports it for format, otherwise
// the largest lower count that it supports. SampleCount1 is always
// accepted.
func SelectSampleCount(dev Device, format TextureFormat, want SampleCount) SampleCount {
	for c := want; c > SampleCount1; c /= 2 {
		if dev.TextureSupportsSampleCount(format, c) {
			return c
		}
	}
	return SampleCount1
}
