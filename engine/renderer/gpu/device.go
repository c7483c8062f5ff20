package gpu

import "time"

// Device creates every GPU object and submits recorded work. All calls return
// an explicit error instead of a raw API result.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateImage(desc ImageDesc) (Image, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreateDescriptorPool(desc DescriptorPoolDesc) (DescriptorPool, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateCommandBuffer() (CommandBuffer, error)

	Submit(info SubmitInfo) error
	// SubmitOnce records a single-use command buffer, submits it and blocks
	// until the GPU has executed it.
	SubmitOnce(record func(cb CommandBuffer) error) error
	WaitIdle() error
	Destroy()
}

// Swapchain is the set of images frames are presented from.
type Swapchain interface {
	Extent() (width, height uint32)
	Format() Format
	Images() []Image
	// AcquireNextImage returns core.ErrSwapchainOutOfDate when the images
	// must be recreated before rendering can continue.
	AcquireNextImage(signal Semaphore) (uint32, error)
	Present(index uint32, wait Semaphore) error
	Recreate(width, height uint32) error
	Destroy()
}

type Buffer interface {
	Size() uint64
	// Write copies data into a host-visible buffer at offset.
	Write(offset uint64, data []byte) error
	Destroy()
}

type Image interface {
	Width() uint32
	Height() uint32
	Layers() uint32
	Format() Format
	Destroy()
}

type Sampler interface {
	Destroy()
}

type Fence interface {
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type DescriptorSetLayout interface {
	Destroy()
}

type DescriptorPool interface {
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
	// Destroy releases the pool and every set allocated from it.
	Destroy()
}

type DescriptorSet interface {
	Write(writes ...DescriptorWrite) error
}

type RenderPass interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

// CommandBuffer records GPU commands. Bind calls fail when handed a destroyed
// object.
type CommandBuffer interface {
	Begin() error
	End() error
	Reset() error

	BeginRenderPass(pass RenderPass, fb Framebuffer, width, height uint32)
	EndRenderPass()
	SetViewportScissor(width, height uint32)
	BindPipeline(p Pipeline) error
	BindDescriptorSet(p Pipeline, set DescriptorSet) error
	BindVertexBuffer(b Buffer) error
	BindIndexBuffer(b Buffer) error
	PushConstants(p Pipeline, data []byte)
	SetStencilReference(ref uint32)
	// ClearDepth clears the depth aspect of the bound depth+stencil
	// attachment and leaves the stencil untouched.
	ClearDepth(width, height uint32)
	DrawIndexed(indexCount uint32)

	TransitionImage(img Image, from, to ImageLayout)
	CopyBufferToImage(src Buffer, dst Image)
	Destroy()
}
