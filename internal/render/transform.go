package render

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
)

// Camera and animation constants.
const (
	FieldOfView = 45 // degrees
	NearPlane   = 0.1
	FarPlane    = 100
	// DegreesPerTick is the rotation speed; a tick is one millisecond.
	DegreesPerTick = 0.1
)

var (
	Eye          = mgl32.Vec3{0, 0, 2}
	Center       = mgl32.Vec3{0, 0, 0}
	Up           = mgl32.Vec3{0, 1, 0}
	RotationAxis = mgl32.Vec3{0, 1, 1}
)

// RotationAngle returns the model rotation in radians after ticks
// milliseconds.
func RotationAngle(ticks uint64) float32 {
	return mgl32.DegToRad(float32(ticks) * DegreesPerTick)
}

// ModelViewProjection returns projection * view * model for the given time
// and viewport aspect ratio.
func ModelViewProjection(ticks uint64, aspect float32) mgl32.Mat4 {
	projection := mgl32.Perspective(mgl32.DegToRad(FieldOfView), aspect, NearPlane, FarPlane)
	view := mgl32.LookAtV(Eye, Center, Up)
	model := mgl32.HomogRotate3D(RotationAngle(ticks), RotationAxis.Normalize())
	return projection.Mul4(view).Mul4(model)
}

// Clock reports elapsed milliseconds.
type Clock interface {
	Ticks() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Ticks() uint64 { return f() }

type monotonicClock struct {
	start time.Duration
}

// NewClock returns a Clock counting from now on the high resolution
// monotonic timer.
func NewClock() Clock {
	return &monotonicClock{start: hrtime.Now()}
}

func (c *monotonicClock) Ticks() uint64 {
	return uint64((hrtime.Now() - c.start) / time.Millisecond)
}
