// Package gputest implements the gpu façade in memory. It records every
// command, executes transfers and layout transitions on submit, and lets
// tests hold fences unsignaled.
package gputest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type Submission struct {
	Commands []Command
	Wait     gpu.Semaphore
	Signal   gpu.Semaphore
	Fence    gpu.Fence
	Once     bool
}

type Device struct {
	mu sync.Mutex

	// HoldFences keeps fences handed to Submit unsignaled until the test
	// calls Signal on them.
	HoldFences bool

	Buffers        []*Buffer
	Images         []*Image
	Samplers       []*Sampler
	Fences         []*Fence
	Pools          []*DescriptorPool
	Pipelines      []*Pipeline
	CommandBuffers []*CommandBuffer
	Submissions    []Submission
	IdleWaits      int
	Destroyed      bool
}

var _ gpu.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.Wrap(core.ErrGPU, "zero sized buffer")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{Desc: desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Wrap(core.ErrGPU, "zero sized image")
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img := &Image{Desc: desc, Layout: gpu.LayoutUndefined}
	d.Images = append(d.Images, img)
	return img, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Sampler{Desc: desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	f := NewFence(signaled)
	d.mu.Lock()
	d.Fences = append(d.Fences, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{}, nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{Bindings: bindings}, nil
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &DescriptorPool{Desc: desc}
	d.Pools = append(d.Pools, p)
	return p, nil
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	return &RenderPass{Desc: desc}, nil
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	if desc.Color == nil || desc.DepthStencil == nil {
		return nil, errors.Wrap(core.ErrGPU, "framebuffer without attachments")
	}
	return &Framebuffer{Desc: desc}, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if len(desc.VertexSPIRV) == 0 || len(desc.FragmentSPIRV) == 0 {
		return nil, errors.Wrap(core.ErrGPU, "missing shader stage")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Pipeline{Desc: desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateCommandBuffer() (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := &CommandBuffer{}
	d.CommandBuffers = append(d.CommandBuffers, cb)
	return cb, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	cb, ok := info.CommandBuffer.(*CommandBuffer)
	if !ok || cb.recording {
		return errors.Wrap(core.ErrGPU, "submitting a command buffer that is not executable")
	}
	if err := execute(cb.Commands); err != nil {
		return err
	}
	d.mu.Lock()
	d.Submissions = append(d.Submissions, Submission{
		Commands: append([]Command(nil), cb.Commands...),
		Wait:     info.Wait,
		Signal:   info.Signal,
		Fence:    info.Fence,
	})
	hold := d.HoldFences
	d.mu.Unlock()

	if f, ok := info.Fence.(*Fence); ok && !hold {
		f.Signal()
	}
	return nil
}

func (d *Device) SubmitOnce(record func(cb gpu.CommandBuffer) error) error {
	cb := &CommandBuffer{}
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}
	if err := execute(cb.Commands); err != nil {
		return err
	}
	d.mu.Lock()
	d.Submissions = append(d.Submissions, Submission{Commands: cb.Commands, Once: true})
	d.mu.Unlock()
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	d.IdleWaits++
	d.mu.Unlock()
	return nil
}

func (d *Device) Destroy() {
	d.Destroyed = true
}

// LiveBuffers counts buffers that were created and not destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.Buffers {
		if !b.Destroyed {
			n++
		}
	}
	return n
}

func (d *Device) LivePipelines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.Pipelines {
		if !p.Destroyed {
			n++
		}
	}
	return n
}

// LastSubmission returns the most recent frame submission, skipping one-shot transfers.
func (d *Device) LastSubmission() (Submission, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Submissions) - 1; i >= 0; i-- {
		if !d.Submissions[i].Once {
			return d.Submissions[i], true
		}
	}
	return Submission{}, false
}

// execute applies the transfer commands of a submitted buffer to the fake images.
func execute(cmds []Command) error {
	for _, c := range cmds {
		switch c.Op {
		case OpTransition:
			if c.Image.Layout != c.From {
				return errors.Wrapf(core.ErrGPU, "image transition from %s but image is in %s", c.From, c.Image.Layout)
			}
			c.Image.Layout = c.To
		case OpCopyBufferToImage:
			if c.Image.Layout != gpu.LayoutTransferDst {
				return errors.Wrapf(core.ErrGPU, "copy into image in layout %s", c.Image.Layout)
			}
			if c.Buffer.Destroyed {
				return errors.Wrap(core.ErrGPU, "copy from destroyed buffer")
			}
			c.Image.Pixels = append([]byte(nil), c.Buffer.Data...)
		}
	}
	return nil
}

type Buffer struct {
	Desc      gpu.BufferDesc
	Data      []byte
	Destroyed bool
}

func (b *Buffer) Size() uint64 { return b.Desc.Size }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.Destroyed {
		return errors.Wrap(core.ErrGPU, "write to destroyed buffer")
	}
	if b.Desc.Memory != gpu.MemoryHostVisible {
		return errors.Wrap(core.ErrGPU, "write to device-local buffer")
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return errors.Wrapf(core.ErrGPU, "write of %d bytes at %d overflows buffer of %d", len(data), offset, b.Desc.Size)
	}
	copy(b.Data[offset:], data)
	return nil
}

func (b *Buffer) Destroy() {
	if b.Destroyed {
		panic(errors.AssertionFailedf("buffer %q destroyed twice", b.Desc.Label))
	}
	b.Destroyed = true
}

type Image struct {
	Desc      gpu.ImageDesc
	Layout    gpu.ImageLayout
	Pixels    []byte
	Destroyed bool
}

func (i *Image) Width() uint32      { return i.Desc.Width }
func (i *Image) Height() uint32     { return i.Desc.Height }
func (i *Image) Layers() uint32     { return i.Desc.Layers }
func (i *Image) Format() gpu.Format { return i.Desc.Format }

func (i *Image) Destroy() {
	if i.Destroyed {
		panic(errors.AssertionFailedf("image %q destroyed twice", i.Desc.Label))
	}
	i.Destroyed = true
}

// Texel samples the RGBA8 texel at (x, y) with nearest filtering, the way a
// trivial fragment shader would read it.
func (i *Image) Texel(x, y uint32) [4]byte {
	var t [4]byte
	off := (y*i.Desc.Width + x) * 4
	copy(t[:], i.Pixels[off:off+4])
	return t
}

type Sampler struct {
	Desc      gpu.SamplerDesc
	Destroyed bool
}

func (s *Sampler) Destroy() { s.Destroyed = true }

type Fence struct {
	mu        sync.Mutex
	done      chan struct{}
	signaled  bool
	Destroyed bool
}

func NewFence(signaled bool) *Fence {
	f := &Fence{done: make(chan struct{})}
	if signaled {
		f.Signal()
	}
	return f
}

func (f *Fence) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.Wrap(core.ErrTimeout, "fence wait")
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *Fence) Destroy() { f.Destroyed = true }

type Semaphore struct {
	Destroyed bool
}

func (s *Semaphore) Destroy() { s.Destroyed = true }

type DescriptorSetLayout struct {
	Bindings  []gpu.DescriptorBinding
	Destroyed bool
}

func (l *DescriptorSetLayout) Destroy() { l.Destroyed = true }

type DescriptorPool struct {
	Desc      gpu.DescriptorPoolDesc
	Sets      []*DescriptorSet
	Destroyed bool
}

func (p *DescriptorPool) Allocate(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if uint32(len(p.Sets)) >= p.Desc.MaxSets {
		return nil, errors.Wrap(core.ErrGPU, "descriptor pool out of memory")
	}
	s := &DescriptorSet{Pool: p, Writes: map[uint32]gpu.DescriptorWrite{}}
	p.Sets = append(p.Sets, s)
	return s, nil
}

func (p *DescriptorPool) Destroy() { p.Destroyed = true }

type DescriptorSet struct {
	Pool   *DescriptorPool
	Writes map[uint32]gpu.DescriptorWrite
}

func (s *DescriptorSet) Write(writes ...gpu.DescriptorWrite) error {
	for _, w := range writes {
		s.Writes[w.Binding] = w
	}
	return nil
}

type RenderPass struct {
	Desc      gpu.RenderPassDesc
	Destroyed bool
}

func (r *RenderPass) Destroy() { r.Destroyed = true }

type Framebuffer struct {
	Desc      gpu.FramebufferDesc
	Destroyed bool
}

func (f *Framebuffer) Destroy() { f.Destroyed = true }

type Pipeline struct {
	Desc      gpu.PipelineDesc
	Destroyed bool
}

func (p *Pipeline) Destroy() {
	if p.Destroyed {
		panic(errors.AssertionFailedf("pipeline %q destroyed twice", p.Desc.Label))
	}
	p.Destroyed = true
}
