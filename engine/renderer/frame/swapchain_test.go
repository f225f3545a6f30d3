package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	unorm := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	srgbOther := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceOther}

	assert.Equal(t, srgb, chooseSurfaceFormat([]gpu.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, chooseSurfaceFormat([]gpu.SurfaceFormat{unorm, srgbOther}))
	assert.Equal(t, srgbOther, chooseSurfaceFormat([]gpu.SurfaceFormat{srgbOther}))
}

func TestChoosePresentMode(t *testing.T) {
	modes := []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeImmediate}
	assert.Equal(t, gpu.PresentModeImmediate, choosePresentMode(modes, gpu.PresentModeImmediate))
	assert.Equal(t, gpu.PresentModeFifo, choosePresentMode(modes, gpu.PresentModeMailbox))
	assert.Equal(t, gpu.PresentModeFifo, choosePresentMode(nil, gpu.PresentModeMailbox))
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
		MinImageExtent: gpu.Extent2D{Width: 100, Height: 50},
		MaxImageExtent: gpu.Extent2D{Width: 2000, Height: 1000},
	}
	tests := []struct {
		name      string
		requested gpu.Extent2D
		expected  gpu.Extent2D
	}{
		{"inside", gpu.Extent2D{Width: 800, Height: 600}, gpu.Extent2D{Width: 800, Height: 600}},
		{"below minimum", gpu.Extent2D{Width: 10, Height: 10}, gpu.Extent2D{Width: 100, Height: 50}},
		{"above maximum", gpu.Extent2D{Width: 3000, Height: 1200}, gpu.Extent2D{Width: 2000, Height: 1000}},
		{"mixed", gpu.Extent2D{Width: 3000, Height: 20}, gpu.Extent2D{Width: 2000, Height: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, chooseExtent(caps, tt.requested))
		})
	}

	caps.CurrentExtent = gpu.Extent2D{Width: 1024, Height: 768}
	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 768}, chooseExtent(caps, gpu.Extent2D{Width: 10, Height: 10}))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}))
	assert.Equal(t, uint32(2), chooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
	assert.Equal(t, uint32(4), chooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 0}))
}

func newTestChain(t *testing.T, dev *gputest.Device, extent gpu.Extent2D, previous *SurfaceChain) *SurfaceChain {
	t.Helper()
	chain, err := NewSurfaceChain(dev, dev.NewSurface(), extent, SurfaceChainOptions{
		PresentMode: gpu.PresentModeMailbox,
		ClearColor:  [4]float32{0, 0, 0, 1},
	}, previous)
	require.NoError(t, err)
	return chain
}

func TestSurfaceChainResources(t *testing.T) {
	dev := gputest.NewDevice()
	chain := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)

	assert.Equal(t, 3, chain.ImageCount())
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, chain.ColorFormat())
	assert.Equal(t, gpu.FormatD32Sfloat, chain.DepthFormat())
	assert.Equal(t, gpu.PresentModeMailbox, chain.PresentMode)
	assert.InDelta(t, 800.0/600.0, chain.AspectRatio(), 1e-6)

	assert.Equal(t, 1, dev.Live(gputest.KindSwapchain))
	assert.Equal(t, 3, dev.Live(gputest.KindFramebuffer))
	assert.Equal(t, 6, dev.Live(gputest.KindImageView), "one color and one depth view per image")
	assert.Equal(t, 3, dev.Live(gputest.KindImage), "swapchain images are not owned by the chain")
	assert.Equal(t, 1, dev.Live(gputest.KindRenderPass))

	for i := 0; i < chain.ImageCount(); i++ {
		fb := chain.Framebuffer(ImageIndex(i))
		assert.Equal(t, chain.Extent(), fb.Extent)
		assert.Len(t, fb.Attachments, 2)
	}

	chain.Destroy()
	chain.Destroy()
	assert.True(t, chain.IsDestroyed())
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.Violations())
}

func TestSurfaceChainReplacesPrevious(t *testing.T) {
	dev := gputest.NewDevice()
	first := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)
	second := newTestChain(t, dev, gpu.Extent2D{Width: 1024, Height: 768}, first)
	defer second.Destroy()

	assert.True(t, first.IsDestroyed())
	assert.True(t, second.CompatibleWith(first))
	info, ok := dev.SwapchainInfo(second.Handle)
	require.True(t, ok)
	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 768}, info.Extent)
	assert.Equal(t, 1, dev.Live(gputest.KindSwapchain))
}

func TestSurfaceChainColorFormatMismatch(t *testing.T) {
	dev := gputest.NewDevice()
	first := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)

	dev.Support.Formats = []gpu.SurfaceFormat{{Format: gpu.FormatR8G8B8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}}
	_, err := NewSurfaceChain(dev, dev.NewSurface(), gpu.Extent2D{Width: 800, Height: 600}, SurfaceChainOptions{}, first)
	assert.ErrorIs(t, err, core.ErrFormatMismatch)
	assert.True(t, first.IsDestroyed())
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestSurfaceChainRejectsSurfaceWithoutFormats(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Support.Formats = nil
	_, err := NewSurfaceChain(dev, dev.NewSurface(), gpu.Extent2D{Width: 800, Height: 600}, SurfaceChainOptions{}, nil)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func TestSurfaceChainCreationFailureReleasesPartialState(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailOn("CreateFramebuffer", assert.AnError)

	_, err := NewSurfaceChain(dev, dev.NewSurface(), gpu.Extent2D{Width: 800, Height: 600}, SurfaceChainOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, dev.LiveTotal(), "live objects: %v", dev.LiveCounts())
}

func TestSurfaceChainAcquireStatuses(t *testing.T) {
	dev := gputest.NewDevice()
	chain := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)
	defer chain.Destroy()
	sync, err := NewSyncRegistry(dev, 2, chain.ImageCount())
	require.NoError(t, err)
	defer sync.Destroy()

	dev.ScriptAcquire(gpu.ErrorOutOfDate, gpu.Suboptimal, gpu.ErrorSurfaceLost)

	_, status, err := chain.AcquireNext(sync, 0)
	require.NoError(t, err)
	assert.Equal(t, AcquireOutOfDate, status)
	assert.True(t, sync.InFlight[0].IsSignaled, "acquire never resets the slot fence")

	image, status, err := chain.AcquireNext(sync, 0)
	require.NoError(t, err)
	assert.Equal(t, AcquireSuboptimal, status)
	assert.Less(t, int(image), chain.ImageCount())

	_, _, err = chain.AcquireNext(sync, 1)
	assert.ErrorIs(t, err, core.ErrSurfaceLost)
}

func TestSurfaceChainSubmitRequiresEndedBuffer(t *testing.T) {
	dev := gputest.NewDevice()
	chain := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)
	defer chain.Destroy()
	sync, err := NewSyncRegistry(dev, 1, chain.ImageCount())
	require.NoError(t, err)
	defer sync.Destroy()
	pool, err := NewCommandPool(dev, 1, 0)
	require.NoError(t, err)
	defer pool.Free()

	_, err = chain.SubmitAndPresent(sync, 0, pool.Color(0), 0, nil)
	assert.ErrorIs(t, err, core.ErrInvariant)
	assert.Empty(t, dev.Submits())
}

func TestSurfaceChainSubmitAndPresent(t *testing.T) {
	dev := gputest.NewDevice()
	chain := newTestChain(t, dev, gpu.Extent2D{Width: 800, Height: 600}, nil)
	defer chain.Destroy()
	sync, err := NewSyncRegistry(dev, 1, chain.ImageCount())
	require.NoError(t, err)
	defer sync.Destroy()
	pool, err := NewCommandPool(dev, 1, 0)
	require.NoError(t, err)
	defer pool.Free()

	image, _, err := chain.AcquireNext(sync, 0)
	require.NoError(t, err)
	cb := pool.Color(0)
	require.NoError(t, cb.Begin(dev, false))
	require.NoError(t, chain.Renderpass.Begin(dev, cb, chain.Framebuffer(image).Handle, chain.Extent()))
	require.NoError(t, chain.Renderpass.End(dev, cb))
	require.NoError(t, cb.End(dev))

	status, err := chain.SubmitAndPresent(sync, 0, cb, image, nil)
	require.NoError(t, err)
	assert.Equal(t, PresentOK, status)
	assert.Equal(t, CommandBufferStateSubmitted, cb.State)
	assert.Same(t, sync.InFlight[0], sync.ImageFence(image))

	submits := dev.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, sync.InFlight[0].Handle, submits[0].Fence)
	presents := dev.Presents()
	require.Len(t, presents, 1)
	assert.Equal(t, []gpu.Semaphore{sync.RenderFinished[0]}, presents[0].Waits)
	assert.Equal(t, uint32(image), presents[0].ImageIndex)
	assert.Empty(t, dev.Violations())

	viewports := dev.Viewports()
	require.NotEmpty(t, viewports)
	assert.Equal(t, float32(800), viewports[0].Width)
	assert.Equal(t, float32(600), viewports[0].Height)
}
