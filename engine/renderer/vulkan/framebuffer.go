package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanFramebuffer struct {
	context     *VulkanContext
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func (d *VulkanDevice) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	renderpass, ok := desc.RenderPass.(*VulkanRenderpass)
	if !ok {
		return nil, errForeignObject
	}
	color, ok := desc.Color.(*VulkanImage)
	if !ok {
		return nil, errForeignObject
	}
	depth, ok := desc.DepthStencil.(*VulkanImage)
	if !ok {
		return nil, errForeignObject
	}
	outFramebuffer := &VulkanFramebuffer{
		context:     d.context,
		Attachments: []vk.ImageView{color.View, depth.View},
		Renderpass:  renderpass,
	}

	// Multiview framebuffers have a single layer; the views address the
	// array layers of the attachments.
	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.LogicalDevice, &framebufferCreateInfo, d.context.Allocator, &pFramebuffer); res != vk.Success {
		return nil, resultError(res, "vkCreateFramebuffer")
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(vfb.context.Device.LogicalDevice, vfb.Handle, vfb.context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
