package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshspin/internal/gpu"
	"meshspin/internal/gpu/gputest"
)

func TestSelectShaderFormat(t *testing.T) {
	tests := []struct {
		name      string
		available gpu.ShaderFormat
		want      gpu.ShaderFormat
		wantErr   error
	}{
		{"all", gpu.ShaderFormatSPIRV | gpu.ShaderFormatMSL | gpu.ShaderFormatDXIL, gpu.ShaderFormatSPIRV, nil},
		{"msl and dxil", gpu.ShaderFormatMSL | gpu.ShaderFormatDXIL, gpu.ShaderFormatMSL, nil},
		{"dxil only", gpu.ShaderFormatDXIL, gpu.ShaderFormatDXIL, nil},
		{"spirv only", gpu.ShaderFormatSPIRV, gpu.ShaderFormatSPIRV, nil},
		{"none", 0, 0, gpu.ErrUnsupportedShaderFormat},
		{"unknown bits", 1 << 10, 0, gpu.ErrUnsupportedShaderFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gpu.SelectShaderFormat(tt.available)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectShaderFormatIsStable(t *testing.T) {
	all := gpu.ShaderFormatSPIRV | gpu.ShaderFormatMSL | gpu.ShaderFormatDXIL
	for i := 0; i < 100; i++ {
		got, err := gpu.SelectShaderFormat(all)
		require.NoError(t, err)
		require.Equal(t, gpu.ShaderFormatSPIRV, got)
	}
}

func TestShaderFormatFileLayout(t *testing.T) {
	assert.Equal(t, "main", gpu.ShaderFormatSPIRV.Entrypoint())
	assert.Equal(t, "main0", gpu.ShaderFormatMSL.Entrypoint())
	assert.Equal(t, "main", gpu.ShaderFormatDXIL.Entrypoint())

	assert.Equal(t, ".spv", gpu.ShaderFormatSPIRV.Extension())
	assert.Equal(t, ".msl", gpu.ShaderFormatMSL.Extension())
	assert.Equal(t, ".dxil", gpu.ShaderFormatDXIL.Extension())
	assert.Equal(t, "DXIL", gpu.ShaderFormatDXIL.String())
}

func TestSelectDepthStencilFormat(t *testing.T) {
	dev := gputest.New()
	f, err := gpu.SelectDepthStencilFormat(dev)
	require.NoError(t, err)
	assert.Equal(t, gpu.TextureFormatD24UnormS8Uint, f)

	dev.DepthFormats = map[gpu.TextureFormat]bool{gpu.TextureFormatD32FloatS8Uint: true}
	f, err = gpu.SelectDepthStencilFormat(dev)
	require.NoError(t, err)
	assert.Equal(t, gpu.TextureFormatD32FloatS8Uint, f)

	dev.DepthFormats = map[gpu.TextureFormat]bool{gpu.TextureFormatD32Float: true}
	_, err = gpu.SelectDepthStencilFormat(dev)
	assert.ErrorIs(t, err, gpu.ErrUnsupportedDepthFormat)
}

func TestSelectSampleCount(t *testing.T) {
	dev := gputest.New()
	assert.Equal(t, gpu.SampleCount4, gpu.SelectSampleCount(dev, dev.SwapchainFormat, gpu.SampleCount4))

	dev.SampleCounts = map[gpu.SampleCount]bool{gpu.SampleCount2: true}
	assert.Equal(t, gpu.SampleCount2, gpu.SelectSampleCount(dev, dev.SwapchainFormat, gpu.SampleCount4))

	dev.SampleCounts = map[gpu.SampleCount]bool{}
	assert.Equal(t, gpu.SampleCount1, gpu.SelectSampleCount(dev, dev.SwapchainFormat, gpu.SampleCount8))
}
