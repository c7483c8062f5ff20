package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		v, low, high, w int
	}{
		{"below", -3, 0, 10, 0},
		{"inside", 4, 0, 10, 4},
		{"above", 12, 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.low, tt.high); got != tt.w {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.low, tt.high, got, tt.w)
			}
		})
	}
	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("Clamp(1.5, 0, 1) = %f, want 1", got)
	}
}

func TestAffineOrder(t *testing.T) {
	rot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	m := Affine(mgl32.Vec3{1, 2, 3}, rot, mgl32.Vec3{2, 2, 2})

	// Scale, then rotate +X onto -Z, then translate.
	got := TransformPoint(m, mgl32.Vec3{1, 0, 0})
	want := mgl32.Vec3{1, 2, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("TransformPoint() = %v, want %v", got, want)
	}
	if tr := Translation(m); tr != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Translation() = %v, want (1,2,3)", tr)
	}
}

func TestTransformWorld(t *testing.T) {
	parent := TransformFromPosition(mgl32.Vec3{0, 0, -5})
	child := TransformFromPosition(mgl32.Vec3{1, 0, 0})
	child.Parent = parent

	got := TransformPoint(child.World(), mgl32.Vec3{})
	if !got.ApproxEqual(mgl32.Vec3{1, 0, -5}) {
		t.Errorf("World() origin = %v, want (1,0,-5)", got)
	}

	child.Translate(mgl32.Vec3{0, 1, 0})
	got = TransformPoint(child.World(), mgl32.Vec3{})
	if !got.ApproxEqual(mgl32.Vec3{1, 1, -5}) {
		t.Errorf("World() after Translate = %v, want (1,1,-5)", got)
	}

	var none *Transform
	if none.World() != mgl32.Ident4() {
		t.Error("nil Transform World() is not identity")
	}
}

func TestApproxEqualMat4(t *testing.T) {
	a := mgl32.Translate3D(1, 2, 3)
	b := a
	b[12] += 1e-6
	if !ApproxEqualMat4(a, b, 1e-4) {
		t.Error("ApproxEqualMat4() rejected a near-equal matrix")
	}
	b[0] = 2
	if ApproxEqualMat4(a, b, 1e-4) {
		t.Error("ApproxEqualMat4() accepted a different matrix")
	}
}
