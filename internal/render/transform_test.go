package render_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"meshspin/internal/render"
)

func TestRotationAngle(t *testing.T) {
	assert.Zero(t, render.RotationAngle(0))
	assert.Equal(t, mgl32.DegToRad(1000), render.RotationAngle(10000))
	assert.InDelta(t, 1000*math.Pi/180, render.RotationAngle(10000), 1e-4)
	assert.InDelta(t, 2*math.Pi, render.RotationAngle(3600), 1e-5)
}

func TestModelViewProjection(t *testing.T) {
	aspect := float32(800) / 600
	projection := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	mvp := render.ModelViewProjection(0, aspect)
	assert.True(t, projection.Mul4(view).ApproxEqual(mvp))

	// The origin sits two units in front of the camera whatever the
	// rotation.
	for _, ticks := range []uint64{0, 1234, 10000} {
		clip := render.ModelViewProjection(ticks, aspect).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
		assert.InDelta(t, 2, clip.W(), 1e-5)
		assert.InDelta(t, 0, clip.X(), 1e-5)
	}

	// Rotation about (0,1,1) moves a point off that axis.
	a := render.ModelViewProjection(0, aspect).Mul4x1(mgl32.Vec4{0.5, 0, 0, 1})
	b := render.ModelViewProjection(1000, aspect).Mul4x1(mgl32.Vec4{0.5, 0, 0, 1})
	assert.False(t, a.ApproxEqual(b))
}

func TestClock(t *testing.T) {
	c := render.NewClock()
	first := c.Ticks()
	assert.LessOrEqual(t, first, c.Ticks())

	fixed := render.ClockFunc(func() uint64 { return 42 })
	assert.Equal(t, uint64(42), fixed.Ticks())
}
