package metadata

/** @brief Material rasterization method. */
type DrawType int

const (
	/** @brief Normal triangular rendering. */
	DrawTypeTriangles DrawType = iota
	/** @brief Lines in between each pair of indices. */
	DrawTypeLines
	/** @brief Point cloud. */
	DrawTypePoints
)

func (d DrawType) String() string {
	switch d {
	case DrawTypeTriangles:
		return "triangles"
	case DrawTypeLines:
		return "lines"
	case DrawTypePoints:
		return "points"
	}
	return "unknown"
}

/** @brief Texture filtering mode. */
type Sampling int

const (
	/** @brief Nearest filtering, nearest mipmaps and no anisotropy. */
	SamplingNearest Sampling = iota
	/** @brief Linear filtering, linear mipmaps and anisotropic filtering. */
	SamplingLinear
)

func (s Sampling) String() string {
	if s == SamplingLinear {
		return "linear"
	}
	return "nearest"
}

/** @brief Bytes per texel of the textures accepted by the renderer (RGBA8). */
const TextureChannels = 4
