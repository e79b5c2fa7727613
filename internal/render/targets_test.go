package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshspin/internal/gpu"
	"meshspin/internal/gpu/gputest"
	"meshspin/internal/render"
)

func targetFormats(samples gpu.SampleCount, depth bool) *render.ResourceSet {
	return &render.ResourceSet{
		ColorFormat: gpu.TextureFormatB8G8R8A8Unorm,
		DepthFormat: gpu.TextureFormatD24UnormS8Uint,
		SampleCount: samples,
		HasDepth:    depth,
	}
}

func TestTargetsResizeGenerations(t *testing.T) {
	dev := gputest.New()
	targets, err := render.NewTargets(dev, targetFormats(gpu.SampleCount4, true), 800, 600)
	require.NoError(t, err)
	assert.Equal(t, 1, targets.Generation())

	sizes := [][2]int{{1024, 768}, {640, 480}, {640, 480}}
	for i, size := range sizes {
		oldColor, _ := targets.Color()
		oldDepth, _ := targets.Depth()

		require.NoError(t, targets.Resize(size[0], size[1]))
		assert.Equal(t, i+2, targets.Generation())

		color, ok := targets.Color()
		require.True(t, ok)
		depth, ok := targets.Depth()
		require.True(t, ok)
		assert.False(t, dev.IsLive(oldColor))
		assert.False(t, dev.IsLive(oldDepth))

		assert.Equal(t, uint32(size[0]), color.Width())
		assert.Equal(t, uint32(size[1]), color.Height())
		assert.Equal(t, gpu.SampleCount4, color.SampleCount())
		assert.Equal(t, gpu.TextureFormatB8G8R8A8Unorm, color.Format())
		assert.Equal(t, uint32(size[0]), depth.Width())
		assert.Equal(t, gpu.TextureFormatD24UnormS8Uint, depth.Format())
		assert.Equal(t, gpu.SampleCount4, depth.SampleCount())

		assert.Len(t, dev.LiveNamed("MSAA Texture"), 1)
		assert.Len(t, dev.LiveNamed("Depth Stencil Texture"), 1)
	}

	w, h := targets.Size()
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})

	targets.Release()
	assert.Empty(t, dev.Live())
	assert.Empty(t, dev.Violations)
}

func TestTargetsIgnoreEmptyWindow(t *testing.T) {
	dev := gputest.New()
	targets, err := render.NewTargets(dev, targetFormats(gpu.SampleCount4, true), 800, 600)
	require.NoError(t, err)
	defer targets.Release()
	color, _ := targets.Color()

	require.NoError(t, targets.Resize(0, 0))
	require.NoError(t, targets.Resize(800, 0))

	after, _ := targets.Color()
	assert.Same(t, color, after)
	assert.Equal(t, 1, targets.Generation())

	require.NoError(t, targets.Resize(300, 200))
	after, _ = targets.Color()
	assert.Equal(t, uint32(300), after.Width())
}

func TestTargetsOptional(t *testing.T) {
	dev := gputest.New()
	targets, err := render.NewTargets(dev, targetFormats(gpu.SampleCount1, false), 800, 600)
	require.NoError(t, err)

	_, ok := targets.Color()
	assert.False(t, ok)
	_, ok = targets.Depth()
	assert.False(t, ok)
	require.NoError(t, targets.Resize(100, 100))
	assert.Empty(t, dev.Created)
	assert.Equal(t, 2, targets.Generation())
	targets.Release()
	assert.Empty(t, dev.Violations)
}

func TestNewTargetsFailure(t *testing.T) {
	dev := gputest.New()
	dev.Fail = map[string]error{"CreateTexture": nil}
	_, err := render.NewTargets(dev, targetFormats(gpu.SampleCount4, true), 800, 600)
	require.ErrorIs(t, err, gputest.ErrInjected)
	assert.Empty(t, dev.Live())
}
