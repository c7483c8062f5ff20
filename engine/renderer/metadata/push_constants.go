package metadata

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

/** @brief Size of the push constant block: a mat4 and a uint32. */
const PushConstantsSize uint32 = 68

/** @brief Per draw data pushed to the vertex stage. */
type PushConstants struct {
	Model mgl32.Mat4
	/** @brief Camera slot of the base role. The shader adds gl_ViewIndex for stereo. */
	CameraIndex uint32
}

// Bytes is the column-major, little-endian layout the vertex shader declares.
func (p PushConstants) Bytes() []byte {
	out := make([]byte, 0, PushConstantsSize)
	for _, f := range p.Model {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return binary.LittleEndian.AppendUint32(out, p.CameraIndex)
}

// Mat4Bytes packs matrices column-major for uniform buffers.
func Mat4Bytes(ms ...mgl32.Mat4) []byte {
	out := make([]byte, 0, len(ms)*64)
	for _, m := range ms {
		for _, f := range m {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

/** @brief Byte size of the time uniform, one float padded to 16 bytes. */
const TimeUniformSize uint32 = 16

func TimeBytes(t float32) []byte {
	out := make([]byte, TimeUniformSize)
	binary.LittleEndian.PutUint32(out, math.Float32bits(t))
	return out
}
