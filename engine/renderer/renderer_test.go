package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

type window struct {
	extent  gpu.Extent2D
	resized bool
}

func (w *window) Extent() gpu.Extent2D { return w.extent }
func (w *window) WasResized() bool     { return w.resized }
func (w *window) ResetResized()        { w.resized = false }
func (w *window) WaitEvents()          {}

type camera struct {
	aspect float32
}

func (c *camera) SetAspectRatio(aspect float32) { c.aspect = aspect }

type call struct {
	shadow bool
	slot   frame.ShadowSlot
	cb     gpu.CommandBuffer
	frame  frame.FrameSlot
	maps   int
}

type recordingSystem struct {
	calls []call
	err   error
}

func (s *recordingSystem) RenderShadow(info *FrameInfo, slot frame.ShadowSlot) error {
	s.calls = append(s.calls, call{shadow: true, slot: slot, cb: info.CommandBuffer, frame: info.FrameIndex, maps: len(info.ShadowMaps)})
	return s.err
}

func (s *recordingSystem) Render(info *FrameInfo) error {
	s.calls = append(s.calls, call{cb: info.CommandBuffer, frame: info.FrameIndex, maps: len(info.ShadowMaps)})
	return s.err
}

func newScheduler(t *testing.T, shadowSlots int) (*frame.Renderer, *gputest.Device, *window) {
	t.Helper()
	dev := gputest.NewDevice()
	win := &window{extent: gpu.Extent2D{Width: 1280, Height: 720}}
	cfg := frame.DefaultConfig()
	cfg.ShadowSlots = shadowSlots
	cfg.ShadowExtent = gpu.Extent2D{Width: 256, Height: 256}
	r, err := frame.NewRenderer(dev, win, dev.NewSurface(), cfg)
	require.NoError(t, err)
	t.Cleanup(r.Destroy)
	return r, dev, win
}

func TestDrawFrameRecordsShadowsThenColor(t *testing.T) {
	r, dev, _ := newScheduler(t, 2)
	system := &recordingSystem{}
	cam := &camera{}

	require.NoError(t, DrawFrame(r, []RenderSystem{system}, cam, 0.016))

	require.Len(t, system.calls, 3)
	assert.True(t, system.calls[0].shadow)
	assert.Equal(t, frame.ShadowSlot(0), system.calls[0].slot)
	assert.True(t, system.calls[1].shadow)
	assert.Equal(t, frame.ShadowSlot(1), system.calls[1].slot)
	assert.False(t, system.calls[2].shadow)
	assert.NotEqual(t, system.calls[0].cb, system.calls[2].cb, "depth and color record into different buffers")
	for _, c := range system.calls {
		assert.Equal(t, 2, c.maps)
		assert.Equal(t, frame.FrameSlot(0), c.frame)
	}

	assert.InDelta(t, 1280.0/720.0, cam.aspect, 1e-6)
	assert.Len(t, dev.Presents(), 1)
	assert.Equal(t, frame.FrameSlot(1), r.FrameIndex())
	assert.Empty(t, dev.Violations())
}

func TestDrawFrameManyTicks(t *testing.T) {
	r, dev, _ := newScheduler(t, 2)
	systems := []RenderSystem{&recordingSystem{}, &recordingSystem{}}

	for i := 0; i < 20; i++ {
		require.NoError(t, DrawFrame(r, systems, nil, 0.016))
	}
	assert.Len(t, dev.Presents(), 20)
	assert.LessOrEqual(t, dev.MaxUnsignaledFences(), r.FramesInFlight())
	assert.Empty(t, dev.Violations())
}

func TestDrawFrameSkippedTick(t *testing.T) {
	r, dev, win := newScheduler(t, 1)
	system := &recordingSystem{}

	win.extent = gpu.Extent2D{Width: 640, Height: 480}
	win.resized = true
	err := DrawFrame(r, []RenderSystem{system}, nil, 0.016)
	assert.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.False(t, core.IsFatal(err))
	assert.Empty(t, system.calls)
	assert.Empty(t, dev.Submits())

	require.NoError(t, DrawFrame(r, []RenderSystem{system}, nil, 0.016))
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, dev.Presents()[0].Extent)
}

func TestDrawFrameOutOfDateAcquire(t *testing.T) {
	r, dev, _ := newScheduler(t, 2)
	dev.ScriptAcquire(gpu.ErrorOutOfDate)

	err := DrawFrame(r, nil, nil, 0.016)
	assert.ErrorIs(t, err, core.ErrSwapchainBooting)
	require.NoError(t, DrawFrame(r, nil, nil, 0.016))
	assert.Empty(t, dev.Violations())
}

func TestDrawFrameSystemErrorIsFatal(t *testing.T) {
	r, _, _ := newScheduler(t, 1)
	boom := errors.New("boom")
	system := &recordingSystem{err: boom}

	err := DrawFrame(r, []RenderSystem{system}, nil, 0.016)
	assert.ErrorIs(t, err, boom)
	assert.True(t, core.IsFatal(err))
}

func TestDrawFrameWithoutShadowSlots(t *testing.T) {
	r, dev, _ := newScheduler(t, 0)
	system := &recordingSystem{}

	require.NoError(t, DrawFrame(r, []RenderSystem{system}, nil, 0.016))
	require.Len(t, system.calls, 1)
	assert.False(t, system.calls[0].shadow)
	assert.Equal(t, 0, system.calls[0].maps)
	assert.Len(t, dev.Submits(), 1)
}
