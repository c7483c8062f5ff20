package portal

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	pmath "github.com/spaghettifunk/portalis/engine/math"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

func TestIntersect(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr mgl32.Vec3
		want       Direction
		hit        bool
	}{
		{"forward", mgl32.Vec3{0, 0, -0.5}, mgl32.Vec3{0, 0, 0.5}, Forward, true},
		{"backward", mgl32.Vec3{0, 0, 0.5}, mgl32.Vec3{0, 0, -0.5}, Backward, true},
		{"outside footprint", mgl32.Vec3{2, 2, -0.5}, mgl32.Vec3{2, 2, 0.5}, 0, false},
		{"same side", mgl32.Vec3{0, 0, 0.2}, mgl32.Vec3{0, 0, 0.7}, 0, false},
		{"edge of footprint", mgl32.Vec3{1, -1, -0.5}, mgl32.Vec3{1, -1, 0.5}, Forward, true},
		{"leaves footprint", mgl32.Vec3{0, 0, -0.5}, mgl32.Vec3{0, 1.5, 0.5}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, frac, hit := Intersect(tt.prev, tt.curr, 1.0)
			if hit != tt.hit || dir != tt.want {
				t.Fatalf("Intersect() = %s, %v; want %s, %v", dir, hit, tt.want, tt.hit)
			}
			if hit && (frac < 0.499 || frac > 0.501) {
				t.Errorf("Intersect() fraction = %f, want 0.5", frac)
			}
		})
	}
}

func portals(orange, blue mgl32.Mat4) [2]metadata.Portal {
	return [2]metadata.Portal{{Affine: orange}, {Affine: blue}}
}

func TestTrackerCrossingComposesBase(t *testing.T) {
	a := mgl32.Translate3D(0, 0, -5)
	b := mgl32.Translate3D(20, 0, 0)
	tr := NewTracker(mgl32.Vec3{0, 0, -4}, 1.0)

	// Not yet at the plane.
	base, crossings := tr.Update(mgl32.Vec3{0, 0, -4.5}, portals(a, b))
	if len(crossings) != 0 || base != mgl32.Ident4() {
		t.Fatalf("Update() before the plane = %v, %v; want identity and no crossing", base, crossings)
	}

	base, crossings = tr.Update(mgl32.Vec3{0, 0, -6}, portals(a, b))
	if len(crossings) != 1 || crossings[0].Portal != metadata.PortalOrange {
		t.Fatalf("crossings = %v, want one through the orange portal", crossings)
	}
	if crossings[0].Direction != Backward {
		t.Errorf("direction = %s, want backward", crossings[0].Direction)
	}
	want := b.Mul4(a.Inv())
	if !pmath.ApproxEqualMat4(base, want, 1e-5) {
		t.Errorf("base = %v, want B·A⁻¹ = %v", base, want)
	}
	if tr.Base() != base {
		t.Error("Base() does not return the updated transform")
	}
}

func TestTrackerRotatedPortal(t *testing.T) {
	a := mgl32.Translate3D(3, 0, 0).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(90)))
	b := mgl32.Translate3D(-30, 0, 0)
	tr := NewTracker(mgl32.Vec3{2.5, 0, 0}, 1.0)

	// Local +Z of a portal rotated 90° about Y points along world +X.
	base, crossings := tr.Update(mgl32.Vec3{3.5, 0, 0}, portals(a, b))
	if len(crossings) != 1 || crossings[0].Direction != Forward {
		t.Fatalf("crossings = %v, want one forward crossing", crossings)
	}
	if !pmath.ApproxEqualMat4(base, b.Mul4(a.Inv()), 1e-5) {
		t.Errorf("base = %v, want B·A⁻¹", base)
	}
}

func TestTrackerSimultaneousCrossingEarliestFirst(t *testing.T) {
	// Both planes lie on the path; orange is reached first.
	a := mgl32.Translate3D(0, 0, -1)
	b := mgl32.Translate3D(0, 0, -3)
	tr := NewTracker(mgl32.Vec3{0, 0, 0}, 1.0)

	base, crossings := tr.Update(mgl32.Vec3{0, 0, -4}, portals(a, b))
	if len(crossings) != 1 || crossings[0].Portal != metadata.PortalOrange {
		t.Fatalf("crossings = %v, want only the orange crossing", crossings)
	}
	if crossings[0].T < 0.249 || crossings[0].T > 0.251 {
		t.Errorf("T = %f, want 0.25", crossings[0].T)
	}
	// The rest of the motion starts on the blue plane and moves away from it.
	if !pmath.ApproxEqualMat4(base, mgl32.Translate3D(0, 0, -2), 1e-5) {
		t.Errorf("base = %v, want translation (0,0,-2)", base)
	}

	// Reversed order: blue is reached first.
	tr = NewTracker(mgl32.Vec3{0, 0, -4}, 1.0)
	_, crossings = tr.Update(mgl32.Vec3{0, 0, 0}, portals(a, b))
	if len(crossings) == 0 || crossings[0].Portal != metadata.PortalBlue {
		t.Fatalf("crossings = %v, want the blue crossing first", crossings)
	}
}

func TestTrackerTieResolvesOrangeFirst(t *testing.T) {
	// Both planes are reached halfway through the motion.
	a := mgl32.Translate3D(0, 0, -1)
	b := mgl32.Translate3D(1, 0, -1)
	tr := NewTracker(mgl32.Vec3{0.5, 0, 0}, 1.0)

	base, crossings := tr.Update(mgl32.Vec3{0.5, 0, -2}, portals(a, b))
	if len(crossings) != 1 || crossings[0].Portal != metadata.PortalOrange {
		t.Fatalf("crossings = %v, want only the orange crossing", crossings)
	}
	if !pmath.ApproxEqualMat4(base, Link(a, b), 1e-5) {
		t.Errorf("base = %v, want the orange link %v", base, Link(a, b))
	}
}

func TestTrackerWalksOutOfTheOtherPortal(t *testing.T) {
	a := mgl32.Translate3D(0, 0, -1)
	b := mgl32.Translate3D(0, 0, -3)
	tests := []struct {
		name      string
		from, to  mgl32.Vec3
		portal    int
		direction Direction
		wantWorld mgl32.Vec3
	}{
		{"orange backward", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -2}, metadata.PortalOrange, Backward, mgl32.Vec3{0, 0, -4}},
		{"orange forward", mgl32.Vec3{0, 0, -2}, mgl32.Vec3{0, 0, 0}, metadata.PortalOrange, Forward, mgl32.Vec3{0, 0, -2}},
		{"blue forward", mgl32.Vec3{0, 0, -3.5}, mgl32.Vec3{0, 0, -2.5}, metadata.PortalBlue, Forward, mgl32.Vec3{0, 0, -0.5}},
		{"blue backward", mgl32.Vec3{0, 0, -2.5}, mgl32.Vec3{0, 0, -3.5}, metadata.PortalBlue, Backward, mgl32.Vec3{0, 0, -1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.from, 1.0)
			_, crossings := tr.Update(tt.to, portals(a, b))
			if len(crossings) != 1 || crossings[0].Portal != tt.portal || crossings[0].Direction != tt.direction {
				t.Fatalf("crossings = %v, want portal %d %s", crossings, tt.portal, tt.direction)
			}
			if got := tr.WorldPosition(tt.to); !got.ApproxEqualThreshold(tt.wantWorld, 1e-5) {
				t.Errorf("WorldPosition() = %v, want %v", got, tt.wantWorld)
			}
		})
	}
}

func TestRegularCameraContinuousAcrossCrossing(t *testing.T) {
	a := mgl32.Translate3D(0, 0, -1).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(30)))
	b := mgl32.Translate3D(4, 0, -6).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-45)))
	view := mgl32.LookAtV(mgl32.Vec3{0, 1, 2}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	tests := []struct {
		name     string
		from, to mgl32.Vec3
		portal   int
	}{
		{"orange backward", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -2}, metadata.PortalOrange},
		{"orange forward", mgl32.Vec3{0, 0, -2}, mgl32.Vec3{0, 0, 0}, metadata.PortalOrange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.from, 1.0)
			before := RegularCamera(view, tr.Base())
			orange, _ := CameraMatrices(before, a, b)

			base, crossings := tr.Update(tt.to, portals(a, b))
			if len(crossings) != 1 || crossings[0].Portal != tt.portal {
				t.Fatalf("crossings = %v, want one through portal %d", crossings, tt.portal)
			}
			// The regular camera now shows what the portal camera showed.
			if after := RegularCamera(view, base); !pmath.ApproxEqualMat4(after, orange, 1e-4) {
				t.Errorf("regular camera after crossing = %v, want the orange portal camera %v", after, orange)
			}
		})
	}

	// Back through the blue portal the regular camera matches the blue view
	// and the base returns to identity.
	tr := NewTracker(mgl32.Vec3{0, 0, 0}, 1.0)
	tr.Update(mgl32.Vec3{0, 0, -2}, portals(a, b))
	before := RegularCamera(view, tr.Base())
	_, blue := CameraMatrices(before, a, b)
	back := pmath.TransformPoint(tr.Base().Inv(), pmath.TransformPoint(b, mgl32.Vec3{0, 0, 1}))
	through := pmath.TransformPoint(tr.Base().Inv(), pmath.TransformPoint(b, mgl32.Vec3{0, 0, -1}))
	tr = NewTracker(through, 1.0)
	tr.base = Link(a, b)
	base, crossings := tr.Update(back, portals(a, b))
	if len(crossings) != 1 || crossings[0].Portal != metadata.PortalBlue {
		t.Fatalf("crossings = %v, want one through the blue portal", crossings)
	}
	if !pmath.ApproxEqualMat4(RegularCamera(view, base), blue, 1e-4) {
		t.Errorf("regular camera after returning = %v, want the blue portal camera %v", RegularCamera(view, base), blue)
	}
	if !pmath.ApproxEqualMat4(base, mgl32.Ident4(), 1e-4) {
		t.Errorf("base after returning = %v, want identity", base)
	}
}

func TestCameraMatrices(t *testing.T) {
	eye := mgl32.Ident4()
	orange := mgl32.Translate3D(1, 0, 0)
	blue := mgl32.Translate3D(0, 0, 1)
	o, b := CameraMatrices(eye, orange, blue)
	if !pmath.ApproxEqualMat4(o, mgl32.Translate3D(1, 0, -1), 1e-6) {
		t.Errorf("orange camera = %v, want translation (1,0,-1)", o)
	}
	if !pmath.ApproxEqualMat4(b, mgl32.Translate3D(-1, 0, 1), 1e-6) {
		t.Errorf("blue camera = %v, want translation (-1,0,1)", b)
	}
}

func TestTrackerReset(t *testing.T) {
	a := mgl32.Translate3D(0, 0, -5)
	b := mgl32.Translate3D(20, 0, 0)
	tr := NewTracker(mgl32.Vec3{0, 0, -4.5}, 1.0)
	if _, crossings := tr.Update(mgl32.Vec3{0, 0, -6}, portals(a, b)); len(crossings) != 1 {
		t.Fatalf("crossings = %v, want one", crossings)
	}

	tr.Reset(mgl32.Vec3{0, 0, -6})
	if tr.Base() != mgl32.Ident4() {
		t.Errorf("Base() after Reset = %v, want identity", tr.Base())
	}
	// The reset position is the new starting point, so staying put crosses nothing.
	if _, crossings := tr.Update(mgl32.Vec3{0, 0, -6}, portals(a, b)); len(crossings) != 0 {
		t.Errorf("crossings after Reset = %v, want none", crossings)
	}
}
