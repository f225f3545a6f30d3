package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

type headlessWindow struct {
	extent gpu.Extent2D
	// open is how many more PumpMessages calls report the window as open.
	open int
	time float64
}

func (w *headlessWindow) PumpMessages() bool {
	if w.open <= 0 {
		return false
	}
	w.open--
	return true
}
func (w *headlessWindow) Extent() gpu.Extent2D { return w.extent }
func (w *headlessWindow) WasResized() bool     { return false }
func (w *headlessWindow) ResetResized()        {}
func (w *headlessWindow) WaitEvents()          {}
func (w *headlessWindow) GetAbsoluteTime() float64 {
	w.time += 0.001
	return w.time
}

type countingSystem struct {
	frames int
}

func (s *countingSystem) RenderShadow(*renderer.FrameInfo, frame.ShadowSlot) error { return nil }
func (s *countingSystem) Render(*renderer.FrameInfo) error {
	s.frames++
	return nil
}

// newHeadlessEngine builds an initialized engine over the fake device,
// skipping the window and vulkan startup done by Initialize.
func newHeadlessEngine(t *testing.T, g *Game, ticks int) (*Engine, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	win := &headlessWindow{extent: gpu.Extent2D{Width: 640, Height: 480}, open: ticks}
	cfg := config.Default()
	r, err := frame.NewRenderer(dev, win, dev.NewSurface(), cfg.Frame())
	require.NoError(t, err)

	return &Engine{
		currentStage: EngineStageInitialized,
		gameInstance: g,
		config:       cfg,
		window:       win,
		renderer:     r,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, dev
}

func TestRunReturnsTickErrorAndShutsDown(t *testing.T) {
	boom := errors.New("update failed")
	updates := 0
	system := &countingSystem{}
	shutdownCalled := false
	g := &Game{
		Systems: []renderer.RenderSystem{system},
		FnUpdate: func(float64) error {
			updates++
			if updates == 3 {
				return boom
			}
			return nil
		},
		FnShutdown: func() error {
			shutdownCalled = true
			return nil
		},
	}
	e, dev := newHeadlessEngine(t, g, 100)

	err := e.Run()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, updates)
	assert.Equal(t, 2, system.frames)
	assert.Equal(t, EngineStageRunning, e.currentStage)

	require.NoError(t, e.Shutdown())
	assert.True(t, shutdownCalled)
	assert.Equal(t, EngineStageShutdown, e.currentStage)
	assert.Equal(t, 0, dev.Live(gputest.KindSwapchain))
	assert.Equal(t, 0, dev.Live(gputest.KindFence))
	assert.Empty(t, dev.Violations())

	// a second shutdown is a no-op
	assert.NoError(t, e.Shutdown())
}

func TestRunEndsWhenWindowCloses(t *testing.T) {
	system := &countingSystem{}
	e, _ := newHeadlessEngine(t, &Game{Systems: []renderer.RenderSystem{system}}, 5)

	require.NoError(t, e.Run())
	assert.Equal(t, 5, system.frames)
	require.NoError(t, e.Shutdown())
}

func TestStopEndsRun(t *testing.T) {
	system := &countingSystem{}
	var e *Engine
	g := &Game{
		Systems: []renderer.RenderSystem{system},
		FnUpdate: func(float64) error {
			if system.frames == 4 {
				e.Stop()
			}
			return nil
		},
	}
	e, _ = newHeadlessEngine(t, g, 100)

	require.NoError(t, e.Run())
	// the tick that called Stop still completes
	assert.Equal(t, 5, system.frames)
	require.NoError(t, e.Shutdown())
}

func TestRunRequiresInitialize(t *testing.T) {
	e := &Engine{currentStage: EngineStageUninitialized}
	assert.Error(t, e.Run())
}
