package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

// Mesh owns a vertex and an index buffer.
type Mesh struct {
	Vertices   gpu.Buffer
	Indices    gpu.Buffer
	IndexCount uint32
}

func (m *Mesh) Destroy() {
	m.Vertices.Destroy()
	m.Indices.Destroy()
}

// Material is a compiled pipeline for one shader pair and topology.
type Material struct {
	Pipeline gpu.Pipeline
	DrawType metadata.DrawType
}

func (m *Material) Destroy() {
	m.Pipeline.Destroy()
}

// Texture is a sampled image with one descriptor set per frame in flight.
type Texture struct {
	Image   gpu.Image
	Sampler gpu.Sampler
	Sets    []gpu.DescriptorSet
}

func (t *Texture) Destroy() {
	t.Sampler.Destroy()
	t.Image.Destroy()
}

// newMesh copies the data into host-visible buffers sized exactly to the input.
func newMesh(device gpu.Device, vertices []metadata.Vertex, indices []uint16) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, core.InvalidDataf("mesh has no vertices")
	}
	if len(indices) == 0 {
		return nil, core.InvalidDataf("mesh has no indices")
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, core.InvalidDataf("index %d references vertex %d of %d", i, idx, len(vertices))
		}
	}

	vb, err := newHostBuffer(device, metadata.VertexBytes(vertices), gpu.BufferUsageVertex, "vertices")
	if err != nil {
		return nil, err
	}
	ib, err := newHostBuffer(device, metadata.IndexBytes(indices), gpu.BufferUsageIndex, "indices")
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	return &Mesh{Vertices: vb, Indices: ib, IndexCount: uint32(len(indices))}, nil
}

func newHostBuffer(device gpu.Device, data []byte, usage gpu.BufferUsage, label string) (gpu.Buffer, error) {
	buf, err := device.CreateBuffer(gpu.BufferDesc{
		Size:   uint64(len(data)),
		Usage:  usage,
		Memory: gpu.MemoryHostVisible,
		Label:  label,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate %s buffer", label)
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, errors.Wrapf(err, "failed to fill %s buffer", label)
	}
	return buf, nil
}

// textureExtent validates RGBA8 pixel data and derives its height.
func textureExtent(pixels []byte, width uint32) (uint32, error) {
	if width == 0 {
		return 0, core.InvalidDataf("texture width is zero")
	}
	if len(pixels) == 0 {
		return 0, core.InvalidDataf("texture has no pixels")
	}
	if len(pixels)%metadata.TextureChannels != 0 {
		return 0, core.InvalidDataf("texture byte length %d is not a multiple of %d channels", len(pixels), metadata.TextureChannels)
	}
	count := uint32(len(pixels) / metadata.TextureChannels)
	if count%width != 0 {
		return 0, core.InvalidDataf("texture pixel count %d is not a multiple of width %d", count, width)
	}
	return count / width, nil
}

// uploadTexture stages the pixels through a host-visible buffer into a
// device-local image, blocking until the transfer finished.
func uploadTexture(device gpu.Device, pixels []byte, width uint32, sampling metadata.Sampling) (gpu.Image, gpu.Sampler, error) {
	height, err := textureExtent(pixels, width)
	if err != nil {
		return nil, nil, err
	}

	staging, err := newHostBuffer(device, pixels, gpu.BufferUsageTransferSrc, "staging")
	if err != nil {
		return nil, nil, err
	}
	defer staging.Destroy()

	image, err := device.CreateImage(gpu.ImageDesc{
		Width:  width,
		Height: height,
		Layers: 1,
		Format: gpu.FormatRGBA8Srgb,
		Usage:  gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
		Label:  "texture",
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create texture image")
	}

	err = device.SubmitOnce(func(cb gpu.CommandBuffer) error {
		cb.TransitionImage(image, gpu.LayoutUndefined, gpu.LayoutTransferDst)
		cb.CopyBufferToImage(staging, image)
		cb.TransitionImage(image, gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly)
		return nil
	})
	if err != nil {
		image.Destroy()
		return nil, nil, errors.Wrap(err, "texture transfer failed")
	}

	sampler, err := device.CreateSampler(samplerDesc(sampling))
	if err != nil {
		image.Destroy()
		return nil, nil, errors.Wrap(err, "failed to create sampler")
	}
	return image, sampler, nil
}

func samplerDesc(sampling metadata.Sampling) gpu.SamplerDesc {
	if sampling == metadata.SamplingLinear {
		return gpu.SamplerDesc{Filter: gpu.FilterLinear, MipmapMode: gpu.FilterLinear, Anisotropy: true}
	}
	return gpu.SamplerDesc{Filter: gpu.FilterNearest, MipmapMode: gpu.FilterNearest}
}

func topology(d metadata.DrawType) gpu.Topology {
	switch d {
	case metadata.DrawTypeLines:
		return gpu.TopologyLineList
	case metadata.DrawTypePoints:
		return gpu.TopologyPointList
	}
	return gpu.TopologyTriangleList
}
