package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

// TargetImage is one presentable image with its framebuffer.
type TargetImage struct {
	Image       gpu.Image
	Framebuffer gpu.Framebuffer
	// Fence of the frame that last rendered into this image, nil if none.
	inFlight gpu.Fence
}

// Targets owns the shared depth+stencil attachment and a framebuffer per
// swapchain image.
type Targets struct {
	device    gpu.Device
	swapchain gpu.Swapchain
	pass      gpu.RenderPass
	views     uint32
	depth     gpu.Image
	images    []*TargetImage
}

func NewTargets(device gpu.Device, swapchain gpu.Swapchain, pass gpu.RenderPass, views uint32) (*Targets, error) {
	t := &Targets{
		device:    device,
		swapchain: swapchain,
		pass:      pass,
		views:     views,
	}
	if err := t.build(); err != nil {
		t.release()
		return nil, err
	}
	return t, nil
}

func (t *Targets) build() error {
	width, height := t.swapchain.Extent()
	depth, err := t.device.CreateImage(gpu.ImageDesc{
		Width:  width,
		Height: height,
		Layers: t.views,
		Format: gpu.FormatDepthStencil,
		Usage:  gpu.ImageUsageDepthStencilAttachment,
		Memory: gpu.MemoryDeviceLocal,
		Label:  "depth-stencil",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create depth attachment")
	}
	t.depth = depth

	images := t.swapchain.Images()
	t.images = make([]*TargetImage, 0, len(images))
	for i, img := range images {
		if img.Layers() < t.views {
			return core.InvalidDataf("target image %d has %d layers, %d views requested", i, img.Layers(), t.views)
		}
		fb, err := t.device.CreateFramebuffer(gpu.FramebufferDesc{
			RenderPass:   t.pass,
			Color:        img,
			DepthStencil: depth,
			Width:        width,
			Height:       height,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to create framebuffer %d", i)
		}
		t.images = append(t.images, &TargetImage{Image: img, Framebuffer: fb})
	}
	core.LogDebug("%d render targets created at %dx%d", len(t.images), width, height)
	return nil
}

// NextImage waits for the frame that last used the image at index, then
// marks the image as used by frame.
func (t *Targets) NextImage(index uint32, frame *Frame) (*TargetImage, error) {
	if int(index) >= len(t.images) {
		return nil, errors.AssertionFailedf("target image %d outside %d images", index, len(t.images))
	}
	img := t.images[index]
	if img.inFlight != nil && img.inFlight != frame.Fence {
		if err := img.inFlight.Wait(gpu.DefaultFenceTimeout); err != nil {
			return nil, errors.Wrapf(err, "waiting for target image %d", index)
		}
	}
	img.inFlight = frame.Fence
	return img, nil
}

// Recreate rebuilds every target for the new extent after the device went idle.
func (t *Targets) Recreate(width, height uint32) error {
	if err := t.device.WaitIdle(); err != nil {
		return err
	}
	t.release()
	if err := t.swapchain.Recreate(width, height); err != nil {
		return errors.Wrap(err, "failed to recreate swapchain")
	}
	if err := t.build(); err != nil {
		return err
	}
	core.LogInfo("render targets recreated at %dx%d", width, height)
	return nil
}

func (t *Targets) Extent() (uint32, uint32) {
	return t.swapchain.Extent()
}

func (t *Targets) Len() int {
	return len(t.images)
}

func (t *Targets) release() {
	for _, img := range t.images {
		img.Framebuffer.Destroy()
	}
	t.images = nil
	if t.depth != nil {
		t.depth.Destroy()
		t.depth = nil
	}
}

// Destroy releases the framebuffers and the depth attachment. The swapchain
// images belong to the swapchain.
func (t *Targets) Destroy() {
	t.release()
}
