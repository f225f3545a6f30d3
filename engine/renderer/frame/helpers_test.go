package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

type fakeWindow struct {
	// extents are handed out in order by Extent; the last one repeats.
	extents []gpu.Extent2D
	resized bool
	waits   int
}

func newFakeWindow(width, height uint32) *fakeWindow {
	return &fakeWindow{extents: []gpu.Extent2D{{Width: width, Height: height}}}
}

func (w *fakeWindow) Extent() gpu.Extent2D {
	e := w.extents[0]
	if len(w.extents) > 1 {
		w.extents = w.extents[1:]
	}
	return e
}

func (w *fakeWindow) WasResized() bool { return w.resized }
func (w *fakeWindow) ResetResized()    { w.resized = false }
func (w *fakeWindow) WaitEvents()      { w.waits++ }

func (w *fakeWindow) resize(width, height uint32) {
	w.extents = []gpu.Extent2D{{Width: width, Height: height}}
	w.resized = true
}

func testConfig(framesInFlight, shadowSlots int) Config {
	cfg := DefaultConfig()
	cfg.FramesInFlight = framesInFlight
	cfg.ShadowSlots = shadowSlots
	cfg.ShadowExtent = gpu.Extent2D{Width: 512, Height: 512}
	return cfg
}

func newTestRenderer(t *testing.T, cfg Config) (*Renderer, *gputest.Device, *fakeWindow) {
	t.Helper()
	dev := gputest.NewDevice()
	win := newFakeWindow(800, 600)
	r, err := NewRenderer(dev, win, dev.NewSurface(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Destroy()
	})
	return r, dev, win
}

// tick drives one full frame through every shadow slot and the color pass.
// It reports false when the tick was skipped.
func tick(t *testing.T, r *Renderer) bool {
	t.Helper()
	cb, ok, err := r.BeginFrame()
	require.NoError(t, err)
	if !ok {
		return false
	}
	for s := 0; s < r.ShadowSlotCount(); s++ {
		slot := ShadowSlot(s)
		depth, err := r.BeginDepthFrame(slot)
		require.NoError(t, err)
		require.NoError(t, r.BeginShadowRenderPass(depth, slot))
		require.NoError(t, r.EndShadowRenderPass(depth, slot))
		require.NoError(t, r.EndDepthFrame(slot))
	}
	require.NoError(t, r.BeginSwapChainRenderPass(cb))
	require.NoError(t, r.EndSwapChainRenderPass(cb))
	require.NoError(t, r.EndFrame())
	require.NoError(t, r.SubmitCommandBuffers())
	return true
}

// colorSubmits returns the submissions that carried a fence, in order.
func colorSubmits(dev *gputest.Device) []gputest.SubmitRecord {
	var out []gputest.SubmitRecord
	for _, s := range dev.Submits() {
		if s.Fence != gpu.NullFence {
			out = append(out, s)
		}
	}
	return out
}

func shadowSubmits(dev *gputest.Device) []gputest.SubmitRecord {
	var out []gputest.SubmitRecord
	for _, s := range dev.Submits() {
		if s.Fence == gpu.NullFence {
			out = append(out, s)
		}
	}
	return out
}
