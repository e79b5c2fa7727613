package render_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"meshspin/internal/config"
	"meshspin/internal/content"
	"meshspin/internal/render"
)

const textureFile = "checker.png"

// newContent builds a Content tree with SPIR-V blobs for the default
// shaders and a 2x2 texture.
func newContent(t *testing.T) *content.Resolver {
	t.Helper()
	base := t.TempDir()
	scene := config.Default().Scene

	shaders := filepath.Join(base, "Content", "Shaders", "Compiled", "SPIRV")
	require.NoError(t, os.MkdirAll(shaders, 0o755))
	for _, name := range []string{scene.VertexShader, scene.FragmentShader} {
		require.NoError(t, os.WriteFile(filepath.Join(shaders, name+".spv"), []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
	}

	images := filepath.Join(base, "Content", "Images")
	require.NoError(t, os.MkdirAll(images, 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 0, color.NRGBA{0, 255, 0, 255})
	img.Set(0, 1, color.NRGBA{0, 0, 255, 255})
	img.Set(1, 1, color.NRGBA{255, 255, 255, 128})
	f, err := os.Create(filepath.Join(images, textureFile))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	return content.New(base)
}

func quadScene() config.Scene {
	s := config.Default().Scene
	s.Mesh = config.MeshQuad
	s.Texture = textureFile
	return s
}

type fakeWindow struct {
	width, height int
	batches       [][]render.Event
	polls         int
	shown         bool
}

func newWindow() *fakeWindow {
	return &fakeWindow{width: 800, height: 600}
}

func (w *fakeWindow) Size() (int, int) { return w.width, w.height }

func (w *fakeWindow) PollEvents() []render.Event {
	w.polls++
	if len(w.batches) == 0 {
		return nil
	}
	b := w.batches[0]
	w.batches = w.batches[1:]
	return b
}

func (w *fakeWindow) Show() { w.shown = true }
