package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/core"
)

const minDistance float32 = 0.01

/**
 * @brief An orbit camera looking at a pivot point from a distance.
 * Yaw and pitch place the eye on a sphere around the pivot.
 */
type Camera struct {
	/** @brief The point the camera looks at. */
	Pivot mgl32.Vec3
	/** @brief Distance of the eye from the pivot. Never below 0.01. */
	Distance float32
	/** @brief Angles in radians. */
	Yaw, Pitch float32
	/** @brief Vertical field of view in radians. */
	FOV    float32
	Aspect float32
	Near   float32
	Far    float32
}

func NewCamera() *Camera {
	return &Camera{
		Distance: 5.0,
		Yaw:      1.0,
		Pitch:    1.0,
		FOV:      mgl32.DegToRad(45.0),
		Aspect:   1.0,
		Near:     0.1,
		Far:      1000.0,
	}
}

// Eye is the eye offset from the pivot.
func (c *Camera) Eye() mgl32.Vec3 {
	yaw, pitch := float64(c.Yaw), float64(c.Pitch)
	cosPitch := math.Abs(math.Cos(pitch))
	return mgl32.Vec3{
		float32(math.Cos(yaw) * cosPitch),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * cosPitch),
	}.Mul(c.Distance)
}

// Position is the eye in world space.
func (c *Camera) Position() mgl32.Vec3 {
	return c.Pivot.Add(c.Eye())
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Pivot, mgl32.Vec3{0, 1, 0})
}

func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.FOV, c.Aspect, c.Near, c.Far)
}

// Matrix is projection · view.
func (c *Camera) Matrix() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

func (c *Camera) SetViewport(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

/**
 * @brief Drives a Camera from mouse input: left drag orbits,
 * right drag pans and the wheel zooms.
 */
type MouseCamera struct {
	*Camera
	Sensitivity float32
}

func NewMouseCamera(camera *Camera, sensitivity float32) *MouseCamera {
	return &MouseCamera{Camera: camera, Sensitivity: sensitivity}
}

// Update applies the input collected since the last frame.
func (m *MouseCamera) Update(input *core.InputState) {
	dx, dy := input.MouseDelta()
	switch {
	case input.IsButtonDown(core.BUTTON_LEFT) && input.WasButtonDown(core.BUTTON_LEFT):
		m.Orbit(float32(dx), float32(dy))
	case input.IsButtonDown(core.BUTTON_RIGHT) && input.WasButtonDown(core.BUTTON_RIGHT):
		m.Pan(float32(dx), float32(dy))
	}
	if s := input.Scroll(); s != 0 {
		m.Zoom(float32(s))
	}
}

// Orbit rotates the eye around the pivot.
func (m *MouseCamera) Orbit(dx, dy float32) {
	m.Yaw += dx * m.Sensitivity
	m.Pitch += dy * m.Sensitivity
}

// Pan moves the pivot in the view plane, scaled by the distance.
func (m *MouseCamera) Pan(dx, dy float32) {
	viewInv := m.View().Inv()
	delta := viewInv.Mul4x1(mgl32.Vec4{dx * m.Distance, -dy * m.Distance, 0, 0}).Vec3()
	m.Pivot = m.Pivot.Add(delta.Mul(m.Sensitivity))
}

func (m *MouseCamera) Zoom(lines float32) {
	m.Distance -= lines * 0.05
	if m.Distance <= minDistance {
		m.Distance = minDistance
	}
}
