package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

type staticWindow struct{}

func (staticWindow) Extent() gpu.Extent2D { return gpu.Extent2D{Width: 800, Height: 600} }
func (staticWindow) WasResized() bool     { return false }
func (staticWindow) ResetResized()        {}
func (staticWindow) WaitEvents()          {}

func TestTestGameDrivesScheduler(t *testing.T) {
	g := NewTestGame()
	require.NoError(t, g.FnInitialize())

	dev := gputest.NewDevice()
	r, err := frame.NewRenderer(dev, staticWindow{}, dev.NewSurface(), frame.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(r.Destroy)

	for i := 0; i < 5; i++ {
		require.NoError(t, g.FnUpdate(0.016))
		require.NoError(t, renderer.DrawFrame(r, g.Systems, g.Camera, 0.016))
	}

	system := g.state.system
	assert.Equal(t, uint64(5), system.Frames())
	assert.Equal(t, uint64(5*2), system.ShadowPasses())
	assert.InDelta(t, 800.0/600.0, g.state.WorldCamera.AspectRatio(), 1e-6)
	assert.Empty(t, dev.Violations())
	require.NoError(t, g.FnShutdown())
}

func TestUpdateOrbitsCamera(t *testing.T) {
	g := NewTestGame()
	before := g.state.WorldCamera.Position
	require.NoError(t, g.FnUpdate(1))
	after := g.state.WorldCamera.Position

	assert.NotEqual(t, before, after)
	assert.InDelta(t, before.Y, after.Y, 1e-6)
	assert.InDelta(t, before.Sub(g.state.WorldCamera.Target).Length(), after.Sub(g.state.WorldCamera.Target).Length(), 1e-3)
}
