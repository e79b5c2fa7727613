package render_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshspin/internal/asset"
	"meshspin/internal/config"
	"meshspin/internal/gpu/gputest"
	"meshspin/internal/render"
)

func TestRunUntilQuit(t *testing.T) {
	dev := gputest.New()
	win := newWindow()
	app, err := render.NewApp(dev, win, newContent(t), quadScene(), nil)
	require.NoError(t, err)
	assert.True(t, win.shown)

	win.batches = [][]render.Event{
		nil,
		{{Kind: render.EventResize, Width: 1024, Height: 768}},
		{{Kind: render.EventQuit}, {Kind: render.EventResize}},
	}
	win.width, win.height = 1024, 768
	require.NoError(t, app.Run(context.Background()))

	assert.Equal(t, 3, win.polls)
	assert.Len(t, dev.Draws(), 2)
	// The resize queued after quit is never handled.
	assert.Equal(t, 2, app.Targets().Generation())

	require.NoError(t, app.Close())
	dev.Destroy()
	assert.Empty(t, dev.Violations)
}

func TestHandleEventDoesNotFallThrough(t *testing.T) {
	dev := gputest.New()
	win := newWindow()
	app := newTestApp(t, dev, win, quadScene())

	quit, err := app.HandleEvent(render.Event{Kind: render.EventQuit})
	require.NoError(t, err)
	assert.True(t, quit)
	assert.Equal(t, 1, app.Targets().Generation(), "quit must not recreate targets")

	win.width, win.height = 640, 480
	quit, err = app.HandleEvent(render.Event{Kind: render.EventResize, Width: 1, Height: 1})
	require.NoError(t, err)
	assert.False(t, quit, "resize must not quit")
	assert.Equal(t, 2, app.Targets().Generation())
	w, h := app.Targets().Size()
	assert.Equal(t, 640, w, "size is re-queried from the window")
	assert.Equal(t, 480, h)

	quit, err = app.HandleEvent(render.Event{})
	require.NoError(t, err)
	assert.False(t, quit)
}

func TestRunStopsOnCancel(t *testing.T) {
	dev := gputest.New()
	win := newWindow()
	app := newTestApp(t, dev, win, quadScene())
	submitted := len(dev.Submissions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.Run(ctx))
	assert.Zero(t, win.polls)
	assert.Len(t, dev.Submissions, submitted)
}

func TestRunReturnsFrameErrors(t *testing.T) {
	dev := gputest.New()
	app := newTestApp(t, dev, newWindow(), quadScene())
	dev.Fail = map[string]error{"Submit": nil}
	err := app.Run(context.Background())
	dev.Fail = nil
	assert.ErrorIs(t, err, gputest.ErrInjected)
}

func TestRunReturnsResizeErrors(t *testing.T) {
	dev := gputest.New()
	win := newWindow()
	app := newTestApp(t, dev, win, quadScene())
	win.batches = [][]render.Event{{{Kind: render.EventResize}}}
	dev.Fail = map[string]error{"CreateTexture": nil}
	err := app.Run(context.Background())
	dev.Fail = nil
	assert.ErrorIs(t, err, gputest.ErrInjected)
}

func TestNewAppReleasesOnFailure(t *testing.T) {
	t.Run("missing texture", func(t *testing.T) {
		dev := gputest.New()
		win := newWindow()
		scene := quadScene()
		scene.Texture = "missing.png"
		_, err := render.NewApp(dev, win, newContent(t), scene, nil)
		require.Error(t, err)
		assert.Empty(t, dev.Created)
		assert.False(t, win.shown)
	})
	t.Run("targets", func(t *testing.T) {
		dev := gputest.New()
		win := newWindow()
		win.width, win.height = 800, 600
		res := newContent(t)
		// Let the resource set through, then fail the first render target.
		dev.Fail = map[string]error{}
		_, err := render.NewApp(dev, &failingResize{fakeWindow: win, dev: dev}, res, quadScene(), nil)
		require.ErrorIs(t, err, gputest.ErrInjected)
		assert.Empty(t, dev.Live())
		assert.False(t, win.shown)
	})
}

// failingResize arms a CreateTexture failure when the app asks for the
// window size, which happens right before the targets are created.
type failingResize struct {
	*fakeWindow
	dev *gputest.Device
}

func (w *failingResize) Size() (int, int) {
	w.dev.Fail["CreateTexture"] = nil
	return w.fakeWindow.Size()
}

func TestLoadScene(t *testing.T) {
	res := newContent(t)

	scene := quadScene()
	mesh, px, err := render.LoadScene(res, scene)
	require.NoError(t, err)
	assert.Equal(t, asset.Quad(), mesh)
	assert.Equal(t, 2, px.Width)

	scene.Mesh = config.MeshCube
	mesh, _, err = render.LoadScene(res, scene)
	require.NoError(t, err)
	assert.Len(t, mesh.Indices, 36)

	scene.Mesh = config.MeshModel
	scene.Model = "tri.obj"
	_, _, err = render.LoadScene(res, scene)
	require.ErrorIs(t, err, asset.ErrMeshNotLoadable)

	models := filepath.Join(res.Base(), "Content", "Models")
	require.NoError(t, os.MkdirAll(models, 0o755))
	obj := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nf 1/1 2/2 3/3\n"
	require.NoError(t, os.WriteFile(filepath.Join(models, "tri.obj"), []byte(obj), 0o644))
	mesh, _, err = render.LoadScene(res, scene)
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
}
