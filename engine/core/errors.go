package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidData rejects malformed input before any GPU resource is allocated.
	ErrInvalidData = errors.New("invalid data")
	// ErrStaleHandle is returned for handles whose registry entry was removed.
	ErrStaleHandle = errors.New("stale handle")
	// ErrSwapchainOutOfDate means the targets were recreated and the frame was dropped.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date, recreating")
	ErrGPU                = errors.New("gpu call failed")
	ErrDeviceLost         = errors.New("device lost")
	ErrTimeout            = errors.New("wait timed out")
	// ErrUnknown marks GPU results the engine has no name for.
	ErrUnknown = errors.New("unknown gpu result")
)

// InvalidDataf wraps ErrInvalidData with a formatted description.
func InvalidDataf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidData, format, args...)
}

// StaleHandlef wraps ErrStaleHandle with a formatted description.
func StaleHandlef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrStaleHandle, format, args...)
}

// GPUErrorf wraps ErrGPU, or ErrDeviceLost when lost is set.
func GPUErrorf(lost bool, format string, args ...interface{}) error {
	if lost {
		return errors.Wrapf(ErrDeviceLost, format, args...)
	}
	return errors.Wrapf(ErrGPU, format, args...)
}

// IsFatal reports whether err should end the rendering session.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrStaleHandle) &&
		!errors.Is(err, ErrSwapchainOutOfDate) &&
		!errors.Is(err, ErrInvalidData)
}
