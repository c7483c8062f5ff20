package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanImage struct {
	context *VulkanContext
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	width   uint32
	height  uint32
	layers  uint32
	format  gpu.Format
	vkFmt   vk.Format
	// Swapchain images are owned by the swapchain; only the view is ours.
	owned bool
}

func (vc *VulkanContext) vkFormat(format gpu.Format) vk.Format {
	switch format {
	case gpu.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatRGBA8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatBGRA8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatDepthStencil:
		return vc.Device.DepthFormat
	}
	return vk.FormatUndefined
}

func gpuFormat(format vk.Format) gpu.Format {
	switch format {
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gpu.FormatRGBA8Srgb
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatBGRA8Srgb
	}
	return gpu.FormatUndefined
}

func imageAspect(format gpu.Format) vk.ImageAspectFlags {
	if format == gpu.FormatDepthStencil {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func imageUsageFlags(usage gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&gpu.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&gpu.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if usage&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if usage&gpu.ImageUsageDepthStencilAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func (d *VulkanDevice) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	ctx := d.context
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.InvalidDataf("image `%s` has a zero extent", desc.Label)
	}
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	format := ctx.vkFormat(desc.Format)
	if format == vk.FormatUndefined {
		return nil, core.InvalidDataf("image `%s` has an unsupported format", desc.Label)
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1, // TODO: Support configurable depth.
		},
		MipLevels:     1,
		ArrayLayers:   layers,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         imageUsageFlags(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(d.LogicalDevice, &imageCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, resultError(res, "vkCreateImage `%s`", desc.Label)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, handle, &requirements)
	memory, err := ctx.allocateMemory(requirements, memoryFlags(gpu.MemoryDeviceLocal), desc.Label)
	if err != nil {
		vk.DestroyImage(d.LogicalDevice, handle, ctx.Allocator)
		return nil, err
	}
	// TODO: configurable memory offset.
	if res := vk.BindImageMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyImage(d.LogicalDevice, handle, ctx.Allocator)
		return nil, resultError(res, "vkBindImageMemory `%s`", desc.Label)
	}

	img := &VulkanImage{
		context: ctx,
		Handle:  handle,
		Memory:  memory,
		width:   desc.Width,
		height:  desc.Height,
		layers:  layers,
		format:  desc.Format,
		vkFmt:   format,
		owned:   true,
	}
	if err := img.createView(); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// wrapSwapchainImage builds a view over an image owned by the swapchain.
func wrapSwapchainImage(ctx *VulkanContext, handle vk.Image, format vk.Format, width, height, layers uint32) (*VulkanImage, error) {
	img := &VulkanImage{
		context: ctx,
		Handle:  handle,
		width:   width,
		height:  height,
		layers:  layers,
		format:  gpuFormat(format),
		vkFmt:   format,
	}
	if err := img.createView(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *VulkanImage) createView() error {
	viewType := vk.ImageViewType2d
	if img.layers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: viewType,
		Format:   img.vkFmt,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     imageAspect(img.format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     img.layers,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(img.context.Device.LogicalDevice, &viewCreateInfo, img.context.Allocator, &view); res != vk.Success {
		return resultError(res, "vkCreateImageView")
	}
	img.View = view
	return nil
}

func (img *VulkanImage) Width() uint32 {
	return img.width
}

func (img *VulkanImage) Height() uint32 {
	return img.height
}

func (img *VulkanImage) Layers() uint32 {
	return img.layers
}

func (img *VulkanImage) Format() gpu.Format {
	return img.format
}

func (img *VulkanImage) Destroy() {
	device := img.context.Device.LogicalDevice
	if img.View != nil {
		vk.DestroyImageView(device, img.View, img.context.Allocator)
		img.View = nil
	}
	if !img.owned {
		img.Handle = nil
		return
	}
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, img.context.Allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, img.context.Allocator)
		img.Memory = nil
	}
}
