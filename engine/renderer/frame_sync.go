package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

// Frame is one slot of the in-flight ring.
type Frame struct {
	// Signaled when the GPU finished the work submitted for this slot.
	Fence gpu.Fence
	// Signaled when the acquired image can be rendered to.
	ImageAvailable gpu.Semaphore
	// Signaled when rendering finished, gates presentation.
	RenderFinished gpu.Semaphore
}

// FrameSync is a fixed ring of frames implementing N frames in flight.
type FrameSync struct {
	frames  []*Frame
	current int
	serial  uint64
}

func NewFrameSync(device gpu.Device, count uint32) (*FrameSync, error) {
	if count < 2 {
		return nil, core.InvalidDataf("at least 2 frames in flight are required, got %d", count)
	}
	fs := &FrameSync{
		frames:  make([]*Frame, 0, count),
		current: int(count) - 1,
	}
	for i := uint32(0); i < count; i++ {
		f, err := newFrame(device)
		if err != nil {
			fs.Destroy()
			return nil, errors.Wrapf(err, "failed to create frame %d", i)
		}
		fs.frames = append(fs.frames, f)
	}
	core.LogDebug("frame synchronizer created with %d frames in flight", count)
	return fs, nil
}

func newFrame(device gpu.Device) (*Frame, error) {
	// The fence starts signaled so the first wait on every slot returns at once.
	fence, err := device.CreateFence(true)
	if err != nil {
		return nil, err
	}
	available, err := device.CreateSemaphore()
	if err != nil {
		fence.Destroy()
		return nil, err
	}
	finished, err := device.CreateSemaphore()
	if err != nil {
		fence.Destroy()
		available.Destroy()
		return nil, err
	}
	return &Frame{Fence: fence, ImageAvailable: available, RenderFinished: finished}, nil
}

// NextFrame advances the ring and blocks until the GPU is done with the work
// previously submitted for the new slot.
func (fs *FrameSync) NextFrame() (int, *Frame, error) {
	fs.current = (fs.current + 1) % len(fs.frames)
	fs.serial++
	frame := fs.Frame(fs.current)
	if err := frame.Fence.Wait(gpu.DefaultFenceTimeout); err != nil {
		return 0, nil, errors.Wrapf(err, "waiting for frame %d", fs.current)
	}
	return fs.current, frame, nil
}

// CurrentFrame is the slot returned by the last NextFrame.
func (fs *FrameSync) CurrentFrame() int {
	return fs.current
}

// Serial counts NextFrame calls. A slot's fence waited at serial s covers all
// work submitted up to serial s-Len().
func (fs *FrameSync) Serial() uint64 {
	return fs.serial
}

func (fs *FrameSync) Len() int {
	return len(fs.frames)
}

func (fs *FrameSync) Frame(slot int) *Frame {
	if slot < 0 || slot >= len(fs.frames) {
		panic(errors.AssertionFailedf("frame slot %d outside ring of %d", slot, len(fs.frames)))
	}
	return fs.frames[slot]
}

func (fs *FrameSync) Destroy() {
	for _, f := range fs.frames {
		f.Fence.Destroy()
		f.ImageAvailable.Destroy()
		f.RenderFinished.Destroy()
	}
	fs.frames = nil
}
