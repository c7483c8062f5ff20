package portal

import "github.com/go-gl/mathgl/mgl32"

// RegularCamera is the eye matrix once the tracker's base is applied.
func RegularCamera(view, base mgl32.Mat4) mgl32.Mat4 {
	return view.Mul4(base.Inv())
}

// CameraMatrices derives the cameras looking through each portal from the
// regular eye matrix: the orange view is eye·orange·blue⁻¹ and the blue view
// is eye·blue·orange⁻¹.
func CameraMatrices(eye, orange, blue mgl32.Mat4) (mgl32.Mat4, mgl32.Mat4) {
	orangeInv := orange.Inv()
	blueInv := blue.Inv()
	return eye.Mul4(orange).Mul4(blueInv), eye.Mul4(blue).Mul4(orangeInv)
}
