package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	pmath "github.com/spaghettifunk/portalis/engine/math"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// VulkanSwapchain implements gpu.Swapchain on a window surface. With
// multiview each image carries one array layer per view.
type VulkanSwapchain struct {
	context     *VulkanContext
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent2D    vk.Extent2D
	images      []*VulkanImage
	vsync       bool
}

var _ gpu.Swapchain = (*VulkanSwapchain)(nil)

func SwapchainCreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{context: context, vsync: vsync}
	if err := swapchain.create(width, height); err != nil {
		swapchain.Destroy()
		return nil, err
	}
	return swapchain, nil
}

func (vs *VulkanSwapchain) Extent() (uint32, uint32) {
	return vs.Extent2D.Width, vs.Extent2D.Height
}

func (vs *VulkanSwapchain) Format() gpu.Format {
	return gpuFormat(vs.ImageFormat.Format)
}

func (vs *VulkanSwapchain) Images() []gpu.Image {
	out := make([]gpu.Image, len(vs.images))
	for i, img := range vs.images {
		out[i] = img
	}
	return out
}

// Recreate rebuilds the images for a new surface size. The caller waits for
// the device to go idle and releases its framebuffers first.
func (vs *VulkanSwapchain) Recreate(width, height uint32) error {
	if width == 0 || height == 0 {
		return core.InvalidDataf("cannot recreate the swapchain at %dx%d", width, height)
	}
	device := vs.context.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, vs.context.Surface, &device.SwapchainSupport); err != nil {
		return err
	}
	return vs.context.locks.SafeCall(SwapchainManagement, func() error {
		old := vs.Handle
		vs.destroyViews()
		err := vs.create(width, height)
		if old != vk.NullSwapchain {
			vk.DestroySwapchain(device.LogicalDevice, old, vs.context.Allocator)
			if vs.Handle == old {
				vs.Handle = vk.NullSwapchain
			}
		}
		return err
	})
}

func (vs *VulkanSwapchain) AcquireNextImage(signal gpu.Semaphore) (uint32, error) {
	semaphore := vk.NullSemaphore
	if s, ok := signal.(*VulkanSemaphore); ok && s != nil {
		semaphore = s.Handle
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, vk.MaxUint64, semaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, errors.Wrap(core.ErrSwapchainOutOfDate, "acquire")
	}
	return 0, resultError(result, "vkAcquireNextImageKHR")
}

// Present returns the image to the swapchain. A suboptimal or out of date
// swapchain is reported as core.ErrSwapchainOutOfDate.
func (vs *VulkanSwapchain) Present(index uint32, wait gpu.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{vs.Handle},
		PImageIndices:  []uint32{index},
	}
	if s, ok := wait.(*VulkanSemaphore); ok && s != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{s.Handle}
	}

	device := vs.context.Device
	var result vk.Result
	_ = vs.context.locks.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return errors.Wrap(core.ErrSwapchainOutOfDate, "present")
	}
	return resultError(result, "vkQueuePresentKHR")
}

func (vs *VulkanSwapchain) create(width, height uint32) error {
	context := vs.context
	support := &context.Device.SwapchainSupport

	// Choose a swap surface format. sRGB output is preferred.
	found := false
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		for _, format := range support.Formats {
			if gpuFormat(format.Format) != gpu.FormatUndefined {
				vs.ImageFormat = format
				found = true
				break
			}
		}
	}
	if !found {
		return core.GPUErrorf(false, "surface offers no supported color format")
	}

	// FIFO is always available and is the vsync mode.
	presentMode := vk.PresentModeFifo
	if !vs.vsync {
		for _, mode := range support.PresentModes {
			if mode == vk.PresentModeMailbox {
				presentMode = mode
				break
			}
		}
	}

	// Swapchain extent
	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != ^uint32(0) {
		swapchainExtent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = pmath.Clamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = pmath.Clamp(swapchainExtent.Height, min.Height, max.Height)
	if swapchainExtent.Width == 0 || swapchainExtent.Height == 0 {
		return core.InvalidDataf("surface extent is %dx%d", swapchainExtent.Width, swapchainExtent.Height)
	}

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	views := context.Views
	if views == 0 {
		views = 1
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: views,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vs.Handle,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		return resultError(res, "vkCreateSwapchainKHR")
	}
	vs.Handle = swapchainHandle
	vs.Extent2D = swapchainExtent

	// Images
	var count uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &count, nil); res != vk.Success {
		return resultError(res, "vkGetSwapchainImagesKHR")
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &count, handles); res != vk.Success {
		return resultError(res, "vkGetSwapchainImagesKHR")
	}

	// Views. Only the views are destroyed later, the images belong to the
	// swapchain.
	vs.images = make([]*VulkanImage, 0, count)
	for _, handle := range handles {
		img, err := wrapSwapchainImage(context, handle, vs.ImageFormat.Format, swapchainExtent.Width, swapchainExtent.Height, views)
		if err != nil {
			return err
		}
		vs.images = append(vs.images, img)
	}

	core.LogInfo("Swapchain created: %d images at %dx%d.", count, swapchainExtent.Width, swapchainExtent.Height)
	return nil
}

func (vs *VulkanSwapchain) destroyViews() {
	for _, img := range vs.images {
		img.Destroy()
	}
	vs.images = nil
}

func (vs *VulkanSwapchain) Destroy() {
	vs.destroyViews()
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
