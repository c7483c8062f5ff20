package gputest

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type Op string

const (
	OpBeginRenderPass   Op = "begin-render-pass"
	OpEndRenderPass     Op = "end-render-pass"
	OpViewport          Op = "viewport"
	OpBindPipeline      Op = "bind-pipeline"
	OpBindDescriptorSet Op = "bind-descriptor-set"
	OpBindVertexBuffer  Op = "bind-vertex-buffer"
	OpBindIndexBuffer   Op = "bind-index-buffer"
	OpPushConstants     Op = "push-constants"
	OpStencilReference  Op = "stencil-reference"
	OpClearDepth        Op = "clear-depth"
	OpDrawIndexed       Op = "draw-indexed"
	OpTransition        Op = "transition"
	OpCopyBufferToImage Op = "copy-buffer-to-image"
)

type Command struct {
	Op          Op
	RenderPass  *RenderPass
	Framebuffer *Framebuffer
	Pipeline    *Pipeline
	Set         *DescriptorSet
	Buffer      *Buffer
	Image       *Image
	From, To    gpu.ImageLayout
	Value       uint32
	Data        []byte
}

type CommandBuffer struct {
	Commands  []Command
	recording bool
	Destroyed bool
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return errors.Wrap(core.ErrGPU, "command buffer already recording")
	}
	c.Commands = nil
	c.recording = true
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return errors.Wrap(core.ErrGPU, "command buffer not recording")
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.Commands = nil
	c.recording = false
	return nil
}

func (c *CommandBuffer) record(cmd Command) {
	if !c.recording {
		panic(errors.AssertionFailedf("%s recorded outside Begin/End", cmd.Op))
	}
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, width, height uint32) {
	c.record(Command{Op: OpBeginRenderPass, RenderPass: pass.(*RenderPass), Framebuffer: fb.(*Framebuffer)})
}

func (c *CommandBuffer) EndRenderPass() {
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) SetViewportScissor(width, height uint32) {
	c.record(Command{Op: OpViewport, Value: width})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) error {
	fp, ok := p.(*Pipeline)
	if !ok || fp.Destroyed {
		return errors.Wrap(core.ErrGPU, "bind of a destroyed pipeline")
	}
	c.record(Command{Op: OpBindPipeline, Pipeline: fp})
	return nil
}

func (c *CommandBuffer) BindDescriptorSet(p gpu.Pipeline, set gpu.DescriptorSet) error {
	fs, ok := set.(*DescriptorSet)
	if !ok || fs.Pool.Destroyed {
		return errors.Wrap(core.ErrGPU, "bind of a freed descriptor set")
	}
	c.record(Command{Op: OpBindDescriptorSet, Pipeline: p.(*Pipeline), Set: fs})
	return nil
}

func (c *CommandBuffer) BindVertexBuffer(b gpu.Buffer) error {
	fb, ok := b.(*Buffer)
	if !ok || fb.Destroyed {
		return errors.Wrap(core.ErrGPU, "bind of a destroyed vertex buffer")
	}
	c.record(Command{Op: OpBindVertexBuffer, Buffer: fb})
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer) error {
	fb, ok := b.(*Buffer)
	if !ok || fb.Destroyed {
		return errors.Wrap(core.ErrGPU, "bind of a destroyed index buffer")
	}
	c.record(Command{Op: OpBindIndexBuffer, Buffer: fb})
	return nil
}

func (c *CommandBuffer) PushConstants(p gpu.Pipeline, data []byte) {
	c.record(Command{Op: OpPushConstants, Pipeline: p.(*Pipeline), Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) SetStencilReference(ref uint32) {
	c.record(Command{Op: OpStencilReference, Value: ref})
}

func (c *CommandBuffer) ClearDepth(width, height uint32) {
	c.record(Command{Op: OpClearDepth})
}

func (c *CommandBuffer) DrawIndexed(indexCount uint32) {
	c.record(Command{Op: OpDrawIndexed, Value: indexCount})
}

func (c *CommandBuffer) TransitionImage(img gpu.Image, from, to gpu.ImageLayout) {
	c.record(Command{Op: OpTransition, Image: img.(*Image), From: from, To: to})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image) {
	c.record(Command{Op: OpCopyBufferToImage, Buffer: src.(*Buffer), Image: dst.(*Image)})
}

func (c *CommandBuffer) Destroy() { c.Destroyed = true }
