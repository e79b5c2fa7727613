package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshspin/internal/gpu"
	"meshspin/internal/gpu/gputest"
)

func writeShader(t *testing.T, base, format, file string, code []byte) {
	t.Helper()
	dir := filepath.Join(base, "Content", "Shaders", "Compiled", format)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), code, 0o644))
}

func TestResolverPaths(t *testing.T) {
	r := New("/opt/app")
	assert.Equal(t, filepath.FromSlash("/opt/app/Content/Models/viking_room.obj"), r.Model("viking_room.obj"))
	assert.Equal(t, filepath.FromSlash("/opt/app/Content/Images/viking_room.png"), r.Image("viking_room.png"))
	assert.Equal(t, filepath.FromSlash("/opt/app/Content/config.toml"), r.Config())
	assert.Equal(t,
		filepath.FromSlash("/opt/app/Content/Shaders/Compiled/SPIRV/TexturedQuad.frag.spv"),
		r.Shader("TexturedQuad.frag", gpu.ShaderFormatSPIRV))
	assert.Equal(t,
		filepath.FromSlash("/opt/app/Content/Shaders/Compiled/MSL/TexturedQuad.frag.msl"),
		r.Shader("TexturedQuad.frag", gpu.ShaderFormatMSL))
	assert.Equal(t,
		filepath.FromSlash("/opt/app/Content/Shaders/Compiled/DXIL/TexturedQuad.frag.dxil"),
		r.Shader("TexturedQuad.frag", gpu.ShaderFormatDXIL))
}

func TestLoadShaderPicksFormatAndStage(t *testing.T) {
	base := t.TempDir()
	writeShader(t, base, "SPIRV", "Mesh.vert.spv", []byte{1, 2, 3, 4})
	writeShader(t, base, "MSL", "Mesh.vert.msl", []byte("msl"))
	r := New(base)

	dev := gputest.New()
	sh, err := r.LoadShader(dev, "Mesh.vert", gpu.ShaderStageVertex, ShaderResources{UniformBuffers: 1})
	require.NoError(t, err)
	info := sh.(*gputest.Shader).Info
	assert.Equal(t, gpu.ShaderFormatSPIRV, info.Format)
	assert.Equal(t, "main", info.Entrypoint)
	assert.Equal(t, gpu.ShaderStageVertex, info.Stage)
	assert.Equal(t, uint32(1), info.NumUniformBuffers)
	assert.Equal(t, []byte{1, 2, 3, 4}, info.Code)

	dev.Formats = gpu.ShaderFormatMSL | gpu.ShaderFormatDXIL
	sh, err = r.LoadShader(dev, "Mesh.vert", gpu.ShaderStageFragment, ShaderResources{Samplers: 1})
	require.NoError(t, err)
	info = sh.(*gputest.Shader).Info
	assert.Equal(t, gpu.ShaderFormatMSL, info.Format)
	assert.Equal(t, "main0", info.Entrypoint)
	assert.Equal(t, gpu.ShaderStageFragment, info.Stage, "stage comes from the caller, not the file name")
}

func TestLoadShaderErrors(t *testing.T) {
	r := New(t.TempDir())
	dev := gputest.New()

	_, err := r.LoadShader(dev, "Missing.frag", gpu.ShaderStageFragment, ShaderResources{})
	assert.ErrorIs(t, err, ErrShaderNotFound)

	dev.Formats = 0
	_, err = r.LoadShader(dev, "Missing.frag", gpu.ShaderStageFragment, ShaderResources{})
	assert.ErrorIs(t, err, gpu.ErrUnsupportedShaderFormat)
	assert.Empty(t, dev.Created)
}

func TestFromExecutableFallsBackToWorkingDirectory(t *testing.T) {
	r, err := FromExecutable()
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	// The test binary lives in a temporary build directory without Content.
	assert.Equal(t, wd, r.Base())
}
