package metadata

// NewPortalQuad builds a portal footprint in the local XY plane, facing +Z,
// spanning [-half, half] on both axes. A zero color keeps the portal invisible
// while it still writes the stencil.
func NewPortalQuad(half float32, color [3]float32) ([]Vertex, []uint16) {
	vertices := []Vertex{
		NewVertex([3]float32{-half, -half, 0}, color),
		NewVertex([3]float32{half, -half, 0}, color),
		NewVertex([3]float32{half, half, 0}, color),
		NewVertex([3]float32{-half, half, 0}, color),
	}
	// Both windings so the footprint is stamped from either side.
	indices := []uint16{0, 1, 2, 2, 3, 0, 0, 3, 2, 2, 1, 0}
	return vertices, indices
}
