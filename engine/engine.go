package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/platform"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/vulkan"
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
	// Engine released every resource
	EngineStageShutdown
)

// loopWindow is what the run loop needs from the window.
type loopWindow interface {
	PumpMessages() bool
	Extent() gpu.Extent2D
	WaitEvents()
	GetAbsoluteTime() float64
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	appConfig    ApplicationConfig
	config       config.Config
	session      uuid.UUID

	isRunning   atomic.Bool
	isSuspended bool

	platform *platform.Platform
	window   loopWindow
	backend  *vulkan.Backend
	renderer *frame.Renderer
	watcher  *config.Watcher

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
}

func New(g *Game, app ApplicationConfig) (*Engine, error) {
	cfg, err := app.load()
	if err != nil {
		core.LogError("failed to load configuration: %s", err)
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		appConfig:    app,
		config:       cfg,
		session:      uuid.New(),
		platform:     platform.New(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

// Initialize opens the window, brings up the vulkan device and the frame
// scheduler, then runs the game's initialize hook.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized")
	}
	e.currentStage = EngineStageInitializing
	core.LogInfo("session %s starting", e.session)

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.PosX, app.PosY, app.Width, app.Height); err != nil {
		return err
	}
	e.window = e.platform

	backend, err := vulkan.New(e.platform, vulkan.Options{
		ApplicationName:    app.Name,
		EnableValidation:   e.config.Renderer.Validation,
		RequireDiscreteGPU: e.config.Renderer.DiscreteGPU,
	})
	if err != nil {
		return err
	}
	e.backend = backend

	r, err := frame.NewRenderer(backend, e.platform, backend.Surface(), e.config.Frame())
	if err != nil {
		return err
	}
	e.renderer = r

	if e.appConfig.Watch && e.appConfig.ConfigPath != "" {
		w, err := config.NewWatcher(e.appConfig.ConfigPath)
		if err != nil {
			// hot reload is a convenience, the engine runs without it
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	extent := r.Extent()
	if err := e.onResized(extent.Width, extent.Height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.isRunning.Load() {
		if !e.window.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		e.pollConfig()

		extent := e.window.Extent()
		if extent.Width == 0 || extent.Height == 0 {
			if !e.isSuspended {
				core.LogInfo("Window minimized, suspending application.")
				e.isSuspended = true
			}
			e.window.WaitEvents()
			continue
		}
		if e.isSuspended {
			core.LogInfo("Window restored, resuming application.")
			e.isSuspended = false
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.window.GetAbsoluteTime()

		if err := e.tick(delta); err != nil {
			core.LogError("frame failed, shutting down: %s", err)
			runErr = err
			e.isRunning.Store(false)
			break
		}

		e.metrics.Update(e.window.GetAbsoluteTime() - frameStartTime)
		e.lastTime = currentTime
	}

	fps, frameMS := e.metrics.Frame()
	core.LogInfo("session %s stopped at %.0f fps (%.2f ms/frame)", e.session, fps, frameMS)
	return runErr
}

func (e *Engine) tick(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update failed: %w", err)
		}
	}

	before := e.renderer.Extent()
	var camera renderer.Camera
	if e.gameInstance.Camera != nil {
		camera = e.gameInstance.Camera
	}
	err := renderer.DrawFrame(e.renderer, e.gameInstance.Systems, camera, delta)
	if err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
		return err
	}
	if after := e.renderer.Extent(); after != before {
		core.LogDebug("Window resize: %d, %d", after.Width, after.Height)
		return e.onResized(after.Width, after.Height)
	}
	return nil
}

func (e *Engine) pollConfig() {
	if e.watcher == nil {
		return
	}
	select {
	case next := <-e.watcher.Updates():
		e.config, _ = applyReload(e.renderer, e.config, next)
	case err := <-e.watcher.Errors():
		core.LogWarn("ignoring config change: %s", err)
	default:
	}
}

// Stop asks the run loop to exit after the current tick. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown tears down in reverse order of Initialize, also after a failed
// Initialize or a Run that returned an error. It must be called from the
// thread that ran Run.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func (e *Engine) SessionID() uuid.UUID {
	return e.session
}

func (e *Engine) Config() config.Config {
	return e.config
}

func (e *Engine) onResized(width, height uint32) error {
	if e.gameInstance.FnOnResize == nil {
		return nil
	}
	return e.gameInstance.FnOnResize(width, height)
}
