package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	context *VulkanContext
	pool    vk.CommandPool
	Handle  vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	singleUse bool
	pass      *VulkanRenderpass
}

var _ gpu.CommandBuffer = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		context: context,
		pool:    pool,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := context.locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return resultError(res, "vkAllocateCommandBuffers")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.Handle == nil {
		return
	}
	_ = v.context.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(v.context.Device.LogicalDevice, v.pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Destroy() {
	v.Free()
}

func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if v.singleUse {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		return resultError(res, "vkBeginCommandBuffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError(res, "vkEndCommandBuffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return resultError(res, "vkResetCommandBuffer")
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, width, height uint32) {
	rp := pass.(*VulkanRenderpass)
	v.pass = rp
	rp.begin(v, fb.(*VulkanFramebuffer).Handle, width, height)
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	if v.pass != nil {
		v.pass.end(v)
		v.pass = nil
	}
}

// SetViewportScissor covers the whole target. The viewport is flipped so
// clip space keeps y pointing up.
func (v *VulkanCommandBuffer) SetViewportScissor(width, height uint32) {
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(height),
		Width:    float32(width),
		Height:   -float32(height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: width, Height: height},
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (v *VulkanCommandBuffer) BindPipeline(p gpu.Pipeline) error {
	pipeline, ok := p.(*VulkanPipeline)
	if !ok || pipeline.Handle == nil {
		return core.InvalidDataf("bind of a destroyed pipeline")
	}
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
	return nil
}

func (v *VulkanCommandBuffer) BindDescriptorSet(p gpu.Pipeline, set gpu.DescriptorSet) error {
	pipeline, ok := p.(*VulkanPipeline)
	if !ok || pipeline.PipelineLayout == nil {
		return core.InvalidDataf("descriptor bind against a destroyed pipeline")
	}
	ds, ok := set.(*VulkanDescriptorSet)
	if !ok || ds.pool.Handle == nil {
		return core.InvalidDataf("bind of a released descriptor set")
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{ds.Handle}, 0, nil)
	return nil
}

func (v *VulkanCommandBuffer) BindVertexBuffer(b gpu.Buffer) error {
	buffer, ok := b.(*VulkanBuffer)
	if !ok || buffer.Handle == nil {
		return core.InvalidDataf("bind of a destroyed vertex buffer")
	}
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{buffer.Handle}, []vk.DeviceSize{0})
	return nil
}

func (v *VulkanCommandBuffer) BindIndexBuffer(b gpu.Buffer) error {
	buffer, ok := b.(*VulkanBuffer)
	if !ok || buffer.Handle == nil {
		return core.InvalidDataf("bind of a destroyed index buffer")
	}
	vk.CmdBindIndexBuffer(v.Handle, buffer.Handle, 0, vk.IndexTypeUint16)
	return nil
}

func (v *VulkanCommandBuffer) PushConstants(p gpu.Pipeline, data []byte) {
	if len(data) == 0 {
		return
	}
	pipeline := p.(*VulkanPipeline)
	vk.CmdPushConstants(v.Handle, pipeline.PipelineLayout, pipeline.PushConstantStages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) SetStencilReference(ref uint32) {
	vk.CmdSetStencilReference(v.Handle, vk.StencilFaceFlags(vk.StencilFaceFrontBit|vk.StencilFaceBackBit), ref)
}

// ClearDepth resets the depth aspect inside the running render pass. Under
// multiview a single layer clear applies to every view.
func (v *VulkanCommandBuffer) ClearDepth(width, height uint32) {
	attachment := vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	}
	attachment.ClearValue.SetDepthStencil(1.0, 0)
	rect := vk.ClearRect{
		Rect: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	vk.CmdClearAttachments(v.Handle, 1, []vk.ClearAttachment{attachment}, 1, []vk.ClearRect{rect})
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, 1, 0, 0, 0)
}

// TransitionImage records a layout barrier for the two transitions texture
// uploads need.
func (v *VulkanCommandBuffer) TransitionImage(img gpu.Image, from, to gpu.ImageLayout) {
	image := img.(*VulkanImage)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vkLayout(from),
		NewLayout:           vkLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     imageAspect(image.format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     image.layers,
		},
	}

	var sourceStage, destStage vk.PipelineStageFlagBits
	switch {
	case from == gpu.LayoutUndefined && to == gpu.LayoutTransferDst:
		// Don't care what stage the pipeline is in at the start.
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		sourceStage = vk.PipelineStageTopOfPipeBit
		destStage = vk.PipelineStageTransferBit
	case from == gpu.LayoutTransferDst && to == gpu.LayoutShaderReadOnly:
		// Transition from a transfer destination layout to a shader-readonly layout.
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		sourceStage = vk.PipelineStageTransferBit
		destStage = vk.PipelineStageFragmentShaderBit
	default:
		core.LogWarn("unsupported layout transition %s -> %s, using a full barrier", from, to)
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessMemoryWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
		sourceStage = vk.PipelineStageAllCommandsBit
		destStage = vk.PipelineStageAllCommandsBit
	}

	vk.CmdPipelineBarrier(v.Handle, vk.PipelineStageFlags(sourceStage), vk.PipelineStageFlags(destStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (v *VulkanCommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image) {
	buffer := src.(*VulkanBuffer)
	image := dst.(*VulkanImage)
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: image.width, Height: image.height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(v.Handle, buffer.Handle, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

/**
 * Allocates and begins recording a single-use command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	cb.singleUse = true
	if err := cb.Begin(); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(queue vk.Queue, queueFamilyIndex uint32) error {
	defer v.Free()
	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	return v.context.locks.SafeQueueCall(queueFamilyIndex, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return resultError(res, "vkQueueSubmit single use")
		}
		// Wait for it to finish
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			return resultError(res, "vkQueueWaitIdle")
		}
		return nil
	})
}
