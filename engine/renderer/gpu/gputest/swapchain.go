package gputest

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type Swapchain struct {
	width, height uint32
	layers        uint32
	images        []gpu.Image
	next          uint32

	// OutOfDate makes the next acquire fail with core.ErrSwapchainOutOfDate.
	OutOfDate   bool
	Recreations int
	Presented   []uint32
	Destroyed   bool
}

var _ gpu.Swapchain = (*Swapchain)(nil)

func NewSwapchain(width, height uint32, imageCount int) *Swapchain {
	return NewLayeredSwapchain(width, height, imageCount, 1)
}

// NewLayeredSwapchain creates array images, one layer per multiview view.
func NewLayeredSwapchain(width, height uint32, imageCount int, layers uint32) *Swapchain {
	s := &Swapchain{layers: layers}
	s.build(width, height, imageCount)
	return s
}

func (s *Swapchain) build(width, height uint32, imageCount int) {
	s.width, s.height = width, height
	s.images = make([]gpu.Image, imageCount)
	for i := range s.images {
		s.images[i] = &Image{
			Desc:   gpu.ImageDesc{Width: width, Height: height, Layers: s.layers, Format: gpu.FormatBGRA8Srgb, Usage: gpu.ImageUsageColorAttachment},
			Layout: gpu.LayoutUndefined,
		}
	}
	s.next = 0
}

func (s *Swapchain) Extent() (uint32, uint32) { return s.width, s.height }
func (s *Swapchain) Format() gpu.Format       { return gpu.FormatBGRA8Srgb }
func (s *Swapchain) Images() []gpu.Image      { return s.images }

// AcquireNextImage hands out the images round-robin.
func (s *Swapchain) AcquireNextImage(signal gpu.Semaphore) (uint32, error) {
	if s.OutOfDate {
		return 0, errors.Wrap(core.ErrSwapchainOutOfDate, "acquire")
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, nil
}

func (s *Swapchain) Present(index uint32, wait gpu.Semaphore) error {
	if int(index) >= len(s.images) {
		return errors.Wrapf(core.ErrGPU, "present of image %d out of %d", index, len(s.images))
	}
	s.Presented = append(s.Presented, index)
	return nil
}

func (s *Swapchain) Recreate(width, height uint32) error {
	s.Recreations++
	s.OutOfDate = false
	s.build(width, height, len(s.images))
	return nil
}

func (s *Swapchain) Destroy() { s.Destroyed = true }
