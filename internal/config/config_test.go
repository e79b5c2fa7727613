package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, 4, cfg.Scene.SampleCount)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	cfg, err := Load(writeConfig(t, `
log_level = "debug"

[scene]
mesh = "quad"
vertex_shader = "TexturedQuad.vert"
depth_target = false
mvp_uniform = false
`))
	require.NoError(t, err)
	assert.Equal(t, MeshQuad, cfg.Scene.Mesh)
	assert.Equal(t, "TexturedQuad.vert", cfg.Scene.VertexShader)
	assert.False(t, cfg.Scene.DepthTarget)
	assert.False(t, cfg.Scene.MVPUniform)
	assert.Equal(t, "viking_room.png", cfg.Scene.Texture, "unset keys keep defaults")
	assert.Equal(t, "Codotaku Game Engine", cfg.Window.Title)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "colour = 1\n",
		"bad mesh":     "[scene]\nmesh = \"teapot\"\n",
		"bad samples":  "[scene]\nsample_count = 3\n",
		"bad size":     "[window]\nwidth = 0\n",
		"bad level":    "log_level = \"loud\"\n",
		"syntax error": "[scene\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidationFromEnv(t *testing.T) {
	for val, want := range map[string]bool{
		"":      true,
		"0":     false,
		"false": false,
		"FALSE": false,
		"1":     true,
		"yes":   true,
	} {
		t.Setenv("VK_VALIDATION", val)
		cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
		require.NoError(t, err)
		assert.Equal(t, want, cfg.Validation, "VK_VALIDATION=%q", val)
	}
}
