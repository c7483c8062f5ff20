// Package portal follows the camera across the linked portal pair and derives
// the cameras used to draw the scene seen through each portal.
package portal

import (
	"github.com/go-gl/mathgl/mgl32"
	pmath "github.com/spaghettifunk/portalis/engine/math"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type Direction int

const (
	// Forward crosses from the back (-Z) to the front (+Z) of the portal plane.
	Forward Direction = iota + 1
	// Backward crosses from the front to the back.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "none"
}

// Crossing describes one portal traversal detected during an update.
type Crossing struct {
	Portal    int
	Direction Direction
	// Fraction of the frame's motion at which the plane was crossed.
	T float32
}

// Intersect tests a motion segment given in portal-local space against a
// square footprint of the given half extent in the XY plane. Both samples
// must lie within the footprint. z = 0 counts as the front side.
func Intersect(prev, curr mgl32.Vec3, half float32) (Direction, float32, bool) {
	if !inside(prev, half) || !inside(curr, half) {
		return 0, 0, false
	}
	zp, zc := prev.Z(), curr.Z()
	frontBefore, frontAfter := zp >= 0, zc >= 0
	if frontBefore == frontAfter {
		return 0, 0, false
	}
	t := zp / (zp - zc)
	if frontAfter {
		return Forward, t, true
	}
	return Backward, t, true
}

func inside(p mgl32.Vec3, half float32) bool {
	return pmath.Abs(p.X()) <= half && pmath.Abs(p.Y()) <= half
}

// planeEpsilon keeps a motion that starts on an exit plane from crossing it
// again.
const planeEpsilon = 1e-4

// Link maps a point in front of the entered portal to the same local point in
// front of the other one.
func Link(entered, exit mgl32.Mat4) mgl32.Mat4 {
	return exit.Mul4(entered.Inv())
}

// Tracker accumulates the base transform of every portal crossing the camera
// made so far. Base maps the tracked camera position into the world the
// camera has walked into; the regular camera views the scene through its
// inverse.
type Tracker struct {
	half float32
	last mgl32.Vec3
	base mgl32.Mat4
}

func NewTracker(initial mgl32.Vec3, halfExtent float32) *Tracker {
	return &Tracker{
		half: halfExtent,
		last: initial,
		base: mgl32.Ident4(),
	}
}

// Base is the accumulated portal transform.
func (t *Tracker) Base() mgl32.Mat4 {
	return t.base
}

// WorldPosition is where a tracked position lies after every crossing.
func (t *Tracker) WorldPosition(position mgl32.Vec3) mgl32.Vec3 {
	return pmath.TransformPoint(t.base, position)
}

// Reset forgets every crossing.
func (t *Tracker) Reset(position mgl32.Vec3) {
	t.last = position
	t.base = mgl32.Ident4()
}

// Update moves the camera to position. Each portal is crossed at most once
// per update; when both planes lie on the path the earlier one is applied
// first and only the rest of the motion, continued from the exit portal, is
// tested again. Equal fractions resolve in portal order.
//
// Entering orange, from either side, composes Link(orange, blue) onto the
// base and entering blue composes the mirror Link(blue, orange). The
// direction only tells which side the camera came out of.
func (t *Tracker) Update(position mgl32.Vec3, portals [2]metadata.Portal) (mgl32.Mat4, []Crossing) {
	var crossings []Crossing
	var done [2]bool
	from, start, moved := t.last, float32(0), false
	for {
		best := -1
		var found Crossing
		for i, p := range portals {
			if done[i] {
				continue
			}
			toLocal := p.Affine.Inv().Mul4(t.base)
			prev := pmath.TransformPoint(toLocal, from)
			curr := pmath.TransformPoint(toLocal, position)
			if moved && pmath.Abs(prev.Z()) <= planeEpsilon {
				continue
			}
			dir, frac, ok := Intersect(prev, curr, t.half)
			if !ok {
				continue
			}
			// Fraction of the whole frame's motion.
			frac = start + (1-start)*frac
			if best < 0 || frac < found.T {
				best = i
				found = Crossing{Portal: i, Direction: dir, T: frac}
			}
		}
		if best < 0 {
			break
		}
		done[best] = true
		t.base = Link(portals[best].Affine, portals[1-best].Affine).Mul4(t.base)
		crossings = append(crossings, found)
		from = t.last.Add(position.Sub(t.last).Mul(found.T))
		start, moved = found.T, true
	}
	t.last = position
	return t.base, crossings
}
