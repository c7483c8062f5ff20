package engine

import (
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/assets"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/platform"
	"github.com/spaghettifunk/portalis/engine/portal"
	"github.com/spaghettifunk/portalis/engine/renderer"
	"github.com/spaghettifunk/portalis/engine/renderer/components"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
	"github.com/spaghettifunk/portalis/engine/renderer/vulkan"
	"github.com/spaghettifunk/portalis/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	portalShader = "portal"
	// Distance between the eyes of the stereo camera.
	interpupillaryDistance float32 = 0.064
	cameraSensitivity      float32 = 0.005
)

// Engine owns the window, the renderer and the frame loop.
type Engine struct {
	currentStage Stage
	cfg          *core.Config
	gameInstance *Game
	// Also cleared from signal handlers.
	isRunning   atomic.Bool
	isSuspended bool

	events   *core.EventBus
	input    *core.InputState
	platform *platform.Platform
	backend  *vulkan.Backend
	renderer *renderer.Renderer
	jobs     *systems.JobSystem
	assets   *assets.AssetManager

	camera    *components.MouseCamera
	tracker   *portal.Tracker
	materials *MaterialLibrary

	clock    *core.Clock
	pacer    *core.FramePacer
	metrics  *core.Metrics
	width    uint32
	height   uint32
	lastTime float64
}

func New(g *Game, cfg *core.Config) (*Engine, error) {
	if g == nil || g.FnRender == nil {
		return nil, core.InvalidDataf("game has no render callback")
	}
	events := core.NewEventBus()
	input := core.NewInputState(events)
	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		gameInstance: g,
		events:       events,
		input:        input,
		platform:     platform.New(input, events),
		clock:        core.NewClock(),
		pacer:        core.NewFramePacer(cfg.Application.TargetFPS),
		metrics:      core.NewMetrics(),
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.cfg.Application.LogLevel)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	app := e.cfg.Application
	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return err
	}
	e.jobs = jobs
	e.assets = assets.NewAssetManager(e.cfg.Assets.Root, jobs)
	if e.cfg.Assets.HotReload {
		if err := e.assets.Watch(); err != nil {
			core.LogWarn("shader hot reload disabled: %s", err)
		}
	}

	backend, err := vulkan.New(e.platform, app.Name, e.cfg.Renderer)
	if err != nil {
		return errors.Wrap(err, "failed to initialize the vulkan backend")
	}
	e.backend = backend

	portalPair, err := e.assets.LoadShaderPair(portalShader)
	if err != nil {
		return errors.Wrap(err, "failed to load portal shaders")
	}
	r, err := renderer.New(backend, renderer.Options{
		Config:              e.cfg.Renderer,
		PortalVertexSPIRV:   portalPair.Vertex,
		PortalFragmentSPIRV: portalPair.Fragment,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize the renderer")
	}
	e.renderer = r
	e.materials = NewMaterialLibrary(r, e.assets)

	e.camera = components.NewMouseCamera(components.NewCamera(), cameraSensitivity)
	e.camera.SetViewport(e.width, e.height)
	e.tracker = portal.NewTracker(e.camera.Position(), e.cfg.Renderer.PortalHalfExtent)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			e.platform.WaitWhileMinimized()
			continue
		}
		if err := e.frame(); err != nil {
			e.isRunning.Store(false)
			return err
		}
	}
	return nil
}

func (e *Engine) frame() error {
	e.pacer.StartFrame()
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime

	// Asset callbacks and shader reloads touch GPU state, so they run here.
	e.jobs.Update()
	e.materials.ReloadChanged()

	e.camera.Update(e.input)
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return errors.Wrap(err, "game update failed")
		}
	}

	packet := metadata.NewFramePacket()
	if err := e.gameInstance.FnRender(packet, delta); err != nil {
		return errors.Wrap(err, "game render failed")
	}
	base, crossings := e.tracker.Update(e.camera.Position(), packet.Portals)
	for _, c := range crossings {
		core.LogDebug("Camera crossed portal %d (%s) at t=%.3f, now at %v.", c.Portal, c.Direction, c.T, e.tracker.WorldPosition(e.camera.Position()))
	}
	packet.Base = base

	if err := e.renderer.UpdateTimeValue(float32(currentTime)); err != nil {
		return err
	}
	if err := e.renderer.Render(packet, e.cameraViews()); err != nil {
		if core.IsFatal(err) {
			return err
		}
		core.LogError("frame dropped: %s", err)
	}

	e.input.Update()
	spent := e.pacer.EndFrame()
	e.metrics.Update(spent.Seconds())
	e.lastTime = currentTime
	return nil
}

// cameraViews is one matrix for a single view, or one per eye, offset
// along the view's x axis, for stereo.
func (e *Engine) cameraViews() metadata.Camera {
	if e.cfg.Renderer.Views == 1 {
		return metadata.NewCamera(e.camera.Matrix())
	}
	projection, view := e.camera.Projection(), e.camera.View()
	half := interpupillaryDistance / 2
	left := projection.Mul4(mgl32.Translate3D(half, 0, 0)).Mul4(view)
	right := projection.Mul4(mgl32.Translate3D(-half, 0, 0)).Mul4(view)
	return metadata.NewCamera(left, right)
}

// Shutdown releases everything in the opposite order of Initialize. It is
// safe after a failed Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %s", err)
		}
	}
	if e.renderer != nil {
		e.renderer.Destroy()
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Shutdown()
		e.backend = nil
	}
	if e.assets != nil {
		if err := e.assets.Close(); err != nil {
			core.LogWarn("failed to close the asset watcher: %s", err)
		}
	}
	if e.jobs != nil {
		e.jobs.Shutdown()
		e.jobs = nil
	}
	if e.platform.Window != nil {
		return e.platform.Shutdown()
	}
	return nil
}

func (e *Engine) Config() *core.Config                 { return e.cfg }
func (e *Engine) Renderer() *renderer.Renderer         { return e.renderer }
func (e *Engine) Assets() *assets.AssetManager         { return e.assets }
func (e *Engine) Materials() *MaterialLibrary          { return e.materials }
func (e *Engine) Input() *core.InputState              { return e.input }
func (e *Engine) Camera() *components.MouseCamera      { return e.camera }
func (e *Engine) Tracker() *portal.Tracker             { return e.tracker }
func (e *Engine) Metrics() *core.Metrics               { return e.metrics }
func (e *Engine) Events() *core.EventBus               { return e.events }
func (e *Engine) GetFramebufferSize() (uint32, uint32) { return e.width, e.height }

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch core.KeyCode(context.Data.U32[0]) {
	case core.KEY_ESCAPE:
		// Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case core.KEY_R:
		core.LogInfo("Resetting portal transform.")
		e.tracker.Reset(e.camera.Position())
		return true
	case core.KEY_F1:
		core.LogInfo("%.1f FPS, %.2f ms per frame.", e.metrics.FPS(), e.metrics.FrameTime())
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width, height := context.Data.U32[0], context.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.camera.SetViewport(width, height)
	e.renderer.Resize(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize: %s", err)
		}
	}
	return true
}
