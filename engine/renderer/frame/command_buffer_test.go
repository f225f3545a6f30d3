package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

func TestCommandPoolLayout(t *testing.T) {
	dev := gputest.NewDevice()
	pool, err := NewCommandPool(dev, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, pool.FramesInFlight())
	assert.Equal(t, 2, pool.ShadowSlots())
	assert.Equal(t, 9, dev.Live(gputest.KindCommandBuffer))

	seen := map[gpu.CommandBuffer]bool{}
	for f := 0; f < 3; f++ {
		seen[pool.Color(FrameSlot(f)).Handle] = true
		for s := 0; s < 2; s++ {
			seen[pool.Depth(ShadowSlot(s), FrameSlot(f)).Handle] = true
		}
	}
	assert.Len(t, seen, 9, "every (slot, frame) pair owns its own buffer")

	pool.Free()
	pool.Free()
	assert.Equal(t, 0, dev.Live(gputest.KindCommandBuffer))
	assert.Equal(t, CommandBufferStateNotAllocated, pool.Color(0).State)
	assert.Empty(t, dev.Violations())
}

func TestCommandPoolRejectsZeroFrames(t *testing.T) {
	_, err := NewCommandPool(gputest.NewDevice(), 0, 1)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestCommandBufferStateMachine(t *testing.T) {
	dev := gputest.NewDevice()
	pool, err := NewCommandPool(dev, 1, 0)
	require.NoError(t, err)
	defer pool.Free()
	cb := pool.Color(0)

	assert.ErrorIs(t, cb.End(dev), core.ErrInvariant)
	assert.ErrorIs(t, cb.EndRenderPass(dev), core.ErrInvariant)

	require.NoError(t, cb.Begin(dev, false))
	assert.Equal(t, CommandBufferStateRecording, cb.State)
	assert.ErrorIs(t, cb.Begin(dev, false), core.ErrInvariant)

	require.NoError(t, cb.BeginRenderPass(dev, gpu.RenderPassBeginInfo{}))
	assert.Equal(t, CommandBufferStateInRenderPass, cb.State)
	assert.ErrorIs(t, cb.End(dev), core.ErrInvariant)
	require.NoError(t, cb.EndRenderPass(dev))

	require.NoError(t, cb.End(dev))
	assert.Equal(t, CommandBufferStateRecordingEnded, cb.State)
	assert.ErrorIs(t, cb.Begin(dev, false), core.ErrInvariant)

	cb.UpdateSubmitted()
	assert.Equal(t, CommandBufferStateSubmitted, cb.State)
	require.NoError(t, cb.Begin(dev, true))
	require.NoError(t, cb.End(dev))

	cb.Reset()
	assert.Equal(t, CommandBufferStateReady, cb.State)
}

func TestCommandBufferStateString(t *testing.T) {
	assert.Equal(t, "ready", CommandBufferStateReady.String())
	assert.Equal(t, "in render pass", CommandBufferStateInRenderPass.String())
	assert.Equal(t, "not allocated", CommandBufferStateNotAllocated.String())
	assert.Equal(t, "unknown", CommandBufferState(42).String())
}

func TestFrameSlotNextWraps(t *testing.T) {
	tests := []struct {
		slot     FrameSlot
		frames   int
		expected FrameSlot
	}{
		{0, 1, 0},
		{0, 2, 1},
		{1, 2, 0},
		{2, 3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.slot.Next(tt.frames))
	}
}
