package metadata

import (
	"encoding/binary"
	"math"
)

/** @brief Byte size of one Vertex as laid out in a vertex buffer. */
const VertexStride uint32 = 24

/** @brief Byte offset of the color attribute inside a Vertex. */
const VertexColorOffset uint32 = 12

/**
 * @brief A vertex with a position and a color, both three floats.
 * The color doubles as the texture coordinate for textured materials.
 */
type Vertex struct {
	Position [3]float32
	Color    [3]float32
}

func NewVertex(position, color [3]float32) Vertex {
	return Vertex{Position: position, Color: color}
}

// VertexBytes packs vertices the way the vertex shaders read them.
func VertexBytes(vertices []Vertex) []byte {
	out := make([]byte, 0, len(vertices)*int(VertexStride))
	for _, v := range vertices {
		for _, f := range v.Position {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		for _, f := range v.Color {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

// IndexBytes packs 16 bit indices.
func IndexBytes(indices []uint16) []byte {
	out := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}
