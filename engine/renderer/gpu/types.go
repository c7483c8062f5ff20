package gpu

import "time"

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTransferSrc
)

/** @brief Where an allocation lives. */
type MemoryClass int

const (
	/** @brief Mappable memory, used for uniforms, staging and small meshes. */
	MemoryHostVisible MemoryClass = iota
	/** @brief Fast memory the CPU cannot write directly. */
	MemoryDeviceLocal
)

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryClass
	Label  string
}

type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Srgb
	/** @brief The best combined depth+stencil format the device supports. */
	FormatDepthStencil
)

type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutShaderReadOnly:
		return "shader-read-only"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutDepthStencilAttachment:
		return "depth-stencil-attachment"
	case LayoutPresentSrc:
		return "present-src"
	}
	return "unknown"
}

type ImageDesc struct {
	Width  uint32
	Height uint32
	// Array layers, 2 for the stereo depth attachment.
	Layers uint32
	Format Format
	Usage  ImageUsage
	Memory MemoryClass
	Label  string
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type SamplerDesc struct {
	Filter     Filter
	MipmapMode Filter
	Anisotropy bool
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDesc struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

// DescriptorWrite points one binding of a set at a buffer range or at an
// image and sampler pair.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Range   uint64
	Image   Image
	Sampler Sampler
}

type RenderPassDesc struct {
	ColorFormat Format
	ClearColor  [4]float32
	// Number of multiview views, 1 disables multiview.
	Views       uint32
	FinalLayout ImageLayout
}

type FramebufferDesc struct {
	RenderPass   RenderPass
	Color        Image
	DepthStencil Image
	Width        uint32
	Height       uint32
}

type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyLineList
	TopologyPointList
)

/** @brief How a pipeline uses the stencil buffer. */
type StencilMode int

const (
	/** @brief Draw only where the stencil equals the dynamic reference. */
	StencilTestEqual StencilMode = iota
	/** @brief Always pass and replace the stencil with the dynamic reference. */
	StencilWriteReference
)

type PipelineDesc struct {
	RenderPass       RenderPass
	Layout           DescriptorSetLayout
	VertexSPIRV      []byte
	FragmentSPIRV    []byte
	Topology         Topology
	Stencil          StencilMode
	VertexStride     uint32
	ColorOffset      uint32
	PushConstantSize uint32
	Label            string
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	// Optional semaphore waited at the color output stage.
	Wait Semaphore
	// Optional semaphore signaled when the work completes.
	Signal Semaphore
	// Optional fence signaled when the work completes.
	Fence Fence
}

/** @brief Fence waits used by the renderer never block longer than this. */
const DefaultFenceTimeout = 10 * time.Second
