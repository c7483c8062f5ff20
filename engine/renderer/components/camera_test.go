package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/core"
)

func TestCameraEye(t *testing.T) {
	tests := []struct {
		name       string
		yaw, pitch float32
		want       mgl32.Vec3
	}{
		{"front", 0, 0, mgl32.Vec3{5, 0, 0}},
		{"side", mgl32.DegToRad(90), 0, mgl32.Vec3{0, 0, 5}},
		{"above", 0, mgl32.DegToRad(90), mgl32.Vec3{0, 5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera()
			c.Yaw, c.Pitch = tt.yaw, tt.pitch
			if got := c.Eye(); !got.ApproxEqualThreshold(tt.want, 1e-4) {
				t.Errorf("Eye() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCameraMatrixCentersPivot(t *testing.T) {
	c := NewCamera()
	c.Pivot = mgl32.Vec3{1, 2, 3}
	clip := c.Matrix().Mul4x1(c.Pivot.Vec4(1))
	ndc := clip.Vec3().Mul(1 / clip.W())
	if !mgl32.FloatEqualThreshold(ndc.X(), 0, 1e-4) || !mgl32.FloatEqualThreshold(ndc.Y(), 0, 1e-4) {
		t.Errorf("pivot projects to %v, want the screen center", ndc)
	}
}

func TestMouseCameraZoomClamps(t *testing.T) {
	m := NewMouseCamera(NewCamera(), 0.01)
	m.Zoom(1000)
	if m.Distance != minDistance {
		t.Errorf("Distance = %v, want %v", m.Distance, minDistance)
	}
}

func TestMouseCameraDragOrbits(t *testing.T) {
	m := NewMouseCamera(NewCamera(), 0.01)
	input := core.NewInputState(nil)
	input.ProcessButton(core.BUTTON_LEFT, true)
	input.ProcessMouseMove(100, 100)
	input.Update()
	input.ProcessMouseMove(110, 95)

	yaw, pitch := m.Yaw, m.Pitch
	m.Update(input)
	if !mgl32.FloatEqualThreshold(m.Yaw, yaw+0.1, 1e-5) || !mgl32.FloatEqualThreshold(m.Pitch, pitch-0.05, 1e-5) {
		t.Errorf("yaw/pitch = %v/%v, want %v/%v", m.Yaw, m.Pitch, yaw+0.1, pitch-0.05)
	}
}

func TestMouseCameraPanKeepsDistance(t *testing.T) {
	m := NewMouseCamera(NewCamera(), 0.01)
	eye := m.Eye()
	m.Pan(10, 0)
	if m.Pivot == (mgl32.Vec3{}) {
		t.Fatal("Pan() did not move the pivot")
	}
	if !m.Eye().ApproxEqualThreshold(eye, 1e-5) {
		t.Errorf("Pan() changed the eye offset")
	}
}
