package renderer

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/containers"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/portal"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

const (
	bindingCamera  uint32 = 0
	bindingTime    uint32 = 1
	bindingTexture uint32 = 2
)

type Options struct {
	Config core.RendererConfig
	// SPIR-V of the stencil-writing portal pipeline.
	PortalVertexSPIRV   []byte
	PortalFragmentSPIRV []byte
	// Layout the color target ends in, present for windows.
	FinalLayout gpu.ImageLayout
}

type pendingRelease struct {
	serial  uint64
	release func()
}

// Renderer turns frame packets into GPU work and owns every GPU resource
// handed out through its handles.
type Renderer struct {
	mu sync.Mutex

	cfg       core.RendererConfig
	device    gpu.Device
	swapchain gpu.Swapchain

	layout         gpu.DescriptorSetLayout
	pass           gpu.RenderPass
	portalPipeline gpu.Pipeline
	frames         *FrameSync
	targets        *Targets
	descriptors    *DescriptorAllocator
	commandBuffers []gpu.CommandBuffer
	cameraUBOs     []gpu.Buffer
	timeUBOs       []gpu.Buffer
	defaultTexture *Texture

	materials *containers.Registry[metadata.MaterialTag, *Material]
	meshes    *containers.Registry[metadata.MeshTag, *Mesh]
	textures  *containers.Registry[metadata.TextureTag, *Texture]
	pending   *containers.RingQueue[pendingRelease]

	time          float32
	width, height uint32
	resized       bool
	destroyed     bool
}

func New(backend Backend, opts Options) (*Renderer, error) {
	cfg := opts.Config
	if cfg.FramesInFlight < 2 {
		return nil, core.InvalidDataf("at least 2 frames in flight are required, got %d", cfg.FramesInFlight)
	}
	if cfg.Views != 1 && cfg.Views != 2 {
		return nil, core.InvalidDataf("1 or 2 views are supported, got %d", cfg.Views)
	}
	if opts.FinalLayout == gpu.LayoutUndefined {
		opts.FinalLayout = gpu.LayoutPresentSrc
	}

	r := &Renderer{
		cfg:       cfg,
		device:    backend.Device(),
		swapchain: backend.Swapchain(),
		materials: containers.NewRegistry[metadata.MaterialTag, *Material](),
		meshes:    containers.NewRegistry[metadata.MeshTag, *Mesh](),
		textures:  containers.NewRegistry[metadata.TextureTag, *Texture](),
		pending:   containers.NewRingQueue[pendingRelease](16),
	}
	r.width, r.height = r.swapchain.Extent()
	if err := r.initialize(opts); err != nil {
		r.Destroy()
		return nil, err
	}
	core.LogInfo("renderer initialized: %d frames in flight, %d view(s)", cfg.FramesInFlight, cfg.Views)
	return r, nil
}

func (r *Renderer) initialize(opts Options) error {
	var err error
	r.layout, err = r.device.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: bindingCamera, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
		{Binding: bindingTime, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex | gpu.ShaderStageFragment},
		{Binding: bindingTexture, Type: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create descriptor set layout")
	}

	r.pass, err = r.device.CreateRenderPass(gpu.RenderPassDesc{
		ColorFormat: r.swapchain.Format(),
		ClearColor:  r.cfg.ClearColor,
		Views:       r.cfg.Views,
		FinalLayout: opts.FinalLayout,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}

	if r.frames, err = NewFrameSync(r.device, r.cfg.FramesInFlight); err != nil {
		return err
	}
	if r.targets, err = NewTargets(r.device, r.swapchain, r.pass, r.cfg.Views); err != nil {
		return err
	}

	r.descriptors, err = NewDescriptorAllocator(r.device, r.layout, []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorUniformBuffer, Count: 2},
		{Type: gpu.DescriptorCombinedImageSampler, Count: 1},
	}, r.cfg.DescriptorBatchSize)
	if err != nil {
		return err
	}

	n := int(r.cfg.FramesInFlight)
	cameraSize := uint64(metadata.CameraRoleCount) * uint64(r.cfg.Views) * 64
	for i := 0; i < n; i++ {
		cb, err := r.device.CreateCommandBuffer()
		if err != nil {
			return errors.Wrapf(err, "failed to create command buffer %d", i)
		}
		r.commandBuffers = append(r.commandBuffers, cb)

		camera, err := r.device.CreateBuffer(gpu.BufferDesc{Size: cameraSize, Usage: gpu.BufferUsageUniform, Memory: gpu.MemoryHostVisible, Label: "camera"})
		if err != nil {
			return errors.Wrapf(err, "failed to create camera uniform %d", i)
		}
		r.cameraUBOs = append(r.cameraUBOs, camera)

		tm, err := r.device.CreateBuffer(gpu.BufferDesc{Size: uint64(metadata.TimeUniformSize), Usage: gpu.BufferUsageUniform, Memory: gpu.MemoryHostVisible, Label: "time"})
		if err != nil {
			return errors.Wrapf(err, "failed to create time uniform %d", i)
		}
		r.timeUBOs = append(r.timeUBOs, tm)
	}

	white := []byte{0xff, 0xff, 0xff, 0xff}
	if r.defaultTexture, err = r.newTexture(white, 1, metadata.SamplingNearest); err != nil {
		return errors.Wrap(err, "failed to create default texture")
	}

	r.portalPipeline, err = r.device.CreatePipeline(gpu.PipelineDesc{
		RenderPass:       r.pass,
		Layout:           r.layout,
		VertexSPIRV:      opts.PortalVertexSPIRV,
		FragmentSPIRV:    opts.PortalFragmentSPIRV,
		Topology:         gpu.TopologyTriangleList,
		Stencil:          gpu.StencilWriteReference,
		VertexStride:     metadata.VertexStride,
		ColorOffset:      metadata.VertexColorOffset,
		PushConstantSize: metadata.PushConstantsSize,
		Label:            "portal",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create portal pipeline")
	}
	return nil
}

// AddMaterial compiles a pipeline for the SPIR-V pair.
func (r *Renderer) AddMaterial(vertex, fragment []byte, drawType metadata.DrawType) (metadata.MaterialHandle, error) {
	if err := validateSPIRV("vertex", vertex); err != nil {
		return metadata.MaterialHandle{}, err
	}
	if err := validateSPIRV("fragment", fragment); err != nil {
		return metadata.MaterialHandle{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pipeline, err := r.device.CreatePipeline(gpu.PipelineDesc{
		RenderPass:       r.pass,
		Layout:           r.layout,
		VertexSPIRV:      vertex,
		FragmentSPIRV:    fragment,
		Topology:         topology(drawType),
		Stencil:          gpu.StencilTestEqual,
		VertexStride:     metadata.VertexStride,
		ColorOffset:      metadata.VertexColorOffset,
		PushConstantSize: metadata.PushConstantsSize,
		Label:            "material-" + drawType.String(),
	})
	if err != nil {
		return metadata.MaterialHandle{}, errors.Wrap(err, "failed to create material pipeline")
	}
	h := r.materials.Insert(&Material{Pipeline: pipeline, DrawType: drawType})
	core.LogDebug("material %d:%d added (%s)", h.Index(), h.Generation(), drawType)
	return h, nil
}

func validateSPIRV(stage string, code []byte) error {
	if len(code) == 0 {
		return core.InvalidDataf("%s shader bytecode is empty", stage)
	}
	if len(code)%4 != 0 {
		return core.InvalidDataf("%s shader bytecode length %d is not a multiple of 4", stage, len(code))
	}
	return nil
}

func (r *Renderer) AddMesh(vertices []metadata.Vertex, indices []uint16) (metadata.MeshHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mesh, err := newMesh(r.device, vertices, indices)
	if err != nil {
		return metadata.MeshHandle{}, err
	}
	h := r.meshes.Insert(mesh)
	core.LogDebug("mesh %d:%d added with %d vertices, %d indices", h.Index(), h.Generation(), len(vertices), len(indices))
	return h, nil
}

// AddTexture uploads RGBA8 pixels, width texels per row.
func (r *Renderer) AddTexture(pixels []byte, width uint32, sampling metadata.Sampling) (metadata.TextureHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tex, err := r.newTexture(pixels, width, sampling)
	if err != nil {
		return metadata.TextureHandle{}, err
	}
	h := r.textures.Insert(tex)
	core.LogDebug("texture %d:%d added, %dx%d %s", h.Index(), h.Generation(), tex.Image.Width(), tex.Image.Height(), sampling)
	return h, nil
}

func (r *Renderer) newTexture(pixels []byte, width uint32, sampling metadata.Sampling) (*Texture, error) {
	image, sampler, err := uploadTexture(r.device, pixels, width, sampling)
	if err != nil {
		return nil, err
	}
	tex := &Texture{Image: image, Sampler: sampler}
	for i := range r.cameraUBOs {
		set, err := r.descriptors.Pop()
		if err != nil {
			r.releaseTexture(tex)
			return nil, err
		}
		tex.Sets = append(tex.Sets, set)
		err = set.Write(
			gpu.DescriptorWrite{Binding: bindingCamera, Type: gpu.DescriptorUniformBuffer, Buffer: r.cameraUBOs[i], Range: r.cameraUBOs[i].Size()},
			gpu.DescriptorWrite{Binding: bindingTime, Type: gpu.DescriptorUniformBuffer, Buffer: r.timeUBOs[i], Range: r.timeUBOs[i].Size()},
			gpu.DescriptorWrite{Binding: bindingTexture, Type: gpu.DescriptorCombinedImageSampler, Image: image, Sampler: sampler},
		)
		if err != nil {
			r.releaseTexture(tex)
			return nil, errors.Wrap(err, "failed to write texture descriptors")
		}
	}
	return tex, nil
}

func (r *Renderer) releaseTexture(tex *Texture) {
	for _, s := range tex.Sets {
		r.descriptors.Push(s)
	}
	tex.Sets = nil
	tex.Destroy()
}

func (r *Renderer) RemoveMaterial(h metadata.MaterialHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.materials.Remove(h)
	if err != nil {
		return core.StaleHandlef("remove material: %s", err)
	}
	return r.release(m.Destroy)
}

func (r *Renderer) RemoveMesh(h metadata.MeshHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.meshes.Remove(h)
	if err != nil {
		return core.StaleHandlef("remove mesh: %s", err)
	}
	return r.release(m.Destroy)
}

func (r *Renderer) RemoveTexture(h metadata.TextureHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.textures.Remove(h)
	if err != nil {
		return core.StaleHandlef("remove texture: %s", err)
	}
	return r.release(func() { r.releaseTexture(t) })
}

// release frees a resource some in-flight frame may still read. By default
// the device is drained first; with deferred release the resource waits
// until every frame that could reference it has been retired.
func (r *Renderer) release(fn func()) error {
	if r.cfg.DeferredRelease {
		r.pending.Enqueue(pendingRelease{serial: r.frames.Serial(), release: fn})
		return nil
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for the device before releasing a resource")
	}
	fn()
	return nil
}

// collectReleases runs after the current slot's fence was waited.
func (r *Renderer) collectReleases() {
	current := r.frames.Serial()
	n := uint64(r.frames.Len())
	for {
		p, err := r.pending.Peek()
		if err != nil || p.serial+n > current {
			return
		}
		r.pending.Dequeue()
		p.release()
	}
}

// UpdateTimeValue sets the time uniform of every frame rendered from now on.
// The value is written into a frame's buffer once its fence has been waited,
// so a frame the GPU is still executing keeps the value it was submitted with.
func (r *Renderer) UpdateTimeValue(t float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return errors.AssertionFailedf("time update after destroy")
	}
	r.time = t
	return nil
}

// Resize schedules a target recreation before the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.resized = true
}

// Render acquires a target, records the frame, submits it and presents.
// A nil or skipped packet returns before any GPU work. An out of date target
// is recreated and the frame is dropped without an error.
func (r *Renderer) Render(packet *metadata.FramePacket, camera metadata.Camera) error {
	if packet == nil || packet.Skip {
		return nil
	}
	if uint32(len(camera.Views)) != r.cfg.Views {
		return core.InvalidDataf("camera has %d views, renderer draws %d", len(camera.Views), r.cfg.Views)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return errors.AssertionFailedf("render after destroy")
	}

	if r.resized {
		r.resized = false
		if err := r.recreateTargets(); err != nil {
			return err
		}
	}

	slot, frame, err := r.frames.NextFrame()
	if err != nil {
		return err
	}
	r.collectReleases()

	imageIndex, err := r.swapchain.AcquireNextImage(frame.ImageAvailable)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return r.recreateTargets()
	}
	if err != nil {
		return errors.Wrap(err, "failed to acquire target image")
	}
	target, err := r.targets.NextImage(imageIndex, frame)
	if err != nil {
		return err
	}

	if err := r.writeUniforms(slot, packet, camera); err != nil {
		return err
	}

	cb := r.commandBuffers[slot]
	if err := cb.Reset(); err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := r.record(cb, slot, target, packet); err != nil {
		return errors.Wrap(err, "failed to record frame")
	}
	if err := cb.End(); err != nil {
		return err
	}

	if err := frame.Fence.Reset(); err != nil {
		return err
	}
	err = r.device.Submit(gpu.SubmitInfo{
		CommandBuffer: cb,
		Wait:          frame.ImageAvailable,
		Signal:        frame.RenderFinished,
		Fence:         frame.Fence,
	})
	if err != nil {
		return errors.Wrap(err, "failed to submit frame")
	}

	err = r.swapchain.Present(imageIndex, frame.RenderFinished)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return r.recreateTargets()
	}
	return err
}

func (r *Renderer) recreateTargets() error {
	if err := r.targets.Recreate(r.width, r.height); err != nil {
		return errors.Wrap(err, "failed to recreate render targets")
	}
	return nil
}

// writeUniforms fills the camera buffer of slot, role-major with every view
// per role, and refreshes its time value.
func (r *Renderer) writeUniforms(slot int, packet *metadata.FramePacket, camera metadata.Camera) error {
	base := packet.Base
	if base == (mgl32.Mat4{}) {
		base = mgl32.Ident4()
	}
	views := r.cfg.Views
	mats := make([]mgl32.Mat4, uint32(metadata.CameraRoleCount)*views)
	for v := uint32(0); v < views; v++ {
		eye := portal.RegularCamera(camera.Views[v], base)
		orange, blue := portal.CameraMatrices(eye, packet.Portals[metadata.PortalOrange].Affine, packet.Portals[metadata.PortalBlue].Affine)
		mats[metadata.CameraSlot(metadata.CameraRegular, v, views)] = eye
		mats[metadata.CameraSlot(metadata.CameraOrangePortal, v, views)] = orange
		mats[metadata.CameraSlot(metadata.CameraBluePortal, v, views)] = blue
	}
	if err := r.cameraUBOs[slot].Write(0, metadata.Mat4Bytes(mats...)); err != nil {
		return errors.Wrap(err, "failed to write camera uniform")
	}
	if err := r.timeUBOs[slot].Write(0, metadata.TimeBytes(r.time)); err != nil {
		return errors.Wrap(err, "failed to write time uniform")
	}
	return nil
}

// Destroy waits for the device and releases everything in a fixed order.
// It is safe on a partially initialized renderer.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true

	if err := r.device.WaitIdle(); err != nil {
		core.LogError("wait idle before teardown: %s", err)
	}
	for !r.pending.IsEmpty() {
		p, _ := r.pending.Dequeue()
		p.release()
	}
	if r.descriptors != nil {
		r.textures.Drain(r.releaseTexture)
		if r.defaultTexture != nil {
			r.releaseTexture(r.defaultTexture)
		}
	}
	r.meshes.Drain(func(m *Mesh) { m.Destroy() })
	r.materials.Drain(func(m *Material) { m.Destroy() })
	if r.portalPipeline != nil {
		r.portalPipeline.Destroy()
	}
	if r.descriptors != nil {
		r.descriptors.Destroy()
	}
	for _, b := range r.cameraUBOs {
		b.Destroy()
	}
	for _, b := range r.timeUBOs {
		b.Destroy()
	}
	for _, cb := range r.commandBuffers {
		cb.Destroy()
	}
	if r.targets != nil {
		r.targets.Destroy()
	}
	if r.frames != nil {
		r.frames.Destroy()
	}
	if r.pass != nil {
		r.pass.Destroy()
	}
	if r.layout != nil {
		r.layout.Destroy()
	}
	core.LogInfo("renderer destroyed")
}
