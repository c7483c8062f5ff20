package renderer

import "github.com/spaghettifunk/portalis/engine/renderer/gpu"

// Backend is a GPU API bring-up: a device and the swapchain frames are
// presented to. Shutdown runs after the renderer released its objects.
type Backend interface {
	Device() gpu.Device
	Swapchain() gpu.Swapchain
	Shutdown()
}
