package engine

import "github.com/spaghettifunk/portalis/engine/renderer/metadata"

// Game is the set of callbacks the host loop drives. Only FnRender is
// required.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once every engine system is up. Assets are loaded here.
type Initialize func(e *Engine) error

type Update func(deltaTime float64) error

// Render fills the packet of the next frame. Leaving packet.Skip set skips
// the frame.
type Render func(packet *metadata.FramePacket, deltaTime float64) error

type OnResize func(width uint32, height uint32) error
type Shutdown func() error
