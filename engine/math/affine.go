package math

import "github.com/go-gl/mathgl/mgl32"

// Affine builds translation · rotation · scale.
func Affine(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(rotation.Mat4()).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// TransformPoint applies m to p with w = 1.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, m)
}

// Translation extracts the translation column of an affine matrix.
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

// ApproxEqualMat4 compares element-wise with an absolute tolerance.
func ApproxEqualMat4(a, b mgl32.Mat4, epsilon float32) bool {
	for i := range a {
		if Abs(a[i]-b[i]) > epsilon {
			return false
		}
	}
	return true
}
