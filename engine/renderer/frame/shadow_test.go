package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
)

type shadowFixture struct {
	dev     *gputest.Device
	pool    *CommandPool
	sync    *SyncRegistry
	shadows *ShadowChain
}

func newShadowFixture(t *testing.T, frames, slots int) *shadowFixture {
	t.Helper()
	dev := gputest.NewDevice()
	pool, err := NewCommandPool(dev, frames, slots)
	require.NoError(t, err)
	sync, err := NewSyncRegistry(dev, frames, 3)
	require.NoError(t, err)
	shadows, err := NewShadowChain(dev, pool, gpu.Extent2D{Width: 1024, Height: 1024}, slots)
	require.NoError(t, err)
	f := &shadowFixture{dev: dev, pool: pool, sync: sync, shadows: shadows}
	t.Cleanup(func() {
		_ = dev.WaitIdle()
		pool.Free()
		shadows.Destroy()
		sync.Destroy()
	})
	return f
}

func (f *shadowFixture) record(t *testing.T, slot ShadowSlot, frame FrameSlot) *CommandBuffer {
	t.Helper()
	cb, err := f.shadows.BeginSlot(slot, frame)
	require.NoError(t, err)
	require.NoError(t, f.shadows.BeginPass(slot, cb))
	require.NoError(t, f.shadows.EndPass(cb))
	require.NoError(t, f.shadows.EndSlot(slot))
	return cb
}

func TestShadowChainCreatesSampledTargets(t *testing.T) {
	f := newShadowFixture(t, 2, 3)

	assert.Equal(t, 3, f.shadows.SlotCount())
	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 1024}, f.shadows.Extent())
	assert.Equal(t, gpu.FormatD32Sfloat, f.shadows.DepthFormat())
	assert.Equal(t, 3, f.dev.Live(gputest.KindSampler))
	assert.Equal(t, 3, f.dev.Live(gputest.KindFramebuffer))
	assert.Equal(t, 3, f.dev.Live(gputest.KindImage))
	assert.Equal(t, 1, f.dev.Live(gputest.KindRenderPass))

	transitions := f.dev.Transitions()
	require.Len(t, transitions, 3)
	for _, tr := range transitions {
		assert.Equal(t, gpu.ImageLayoutUndefined, tr.OldLayout)
		assert.Equal(t, gpu.ImageLayoutShaderReadOnlyOptimal, tr.NewLayout)
		info, ok := f.dev.ImageInfo(tr.Image)
		require.True(t, ok)
		assert.NotZero(t, info.Usage&gpu.ImageUsageSampled)
		assert.NotZero(t, info.Usage&gpu.ImageUsageDepthStencilAttachment)
	}

	views := f.shadows.SampledViews()
	require.Len(t, views, 3)
	for _, v := range views {
		assert.NotZero(t, v.Sampler)
		assert.NotZero(t, v.View)
		assert.Equal(t, gpu.ImageLayoutShaderReadOnlyOptimal, v.Layout)
	}
}

func TestShadowChainRejectsBadArguments(t *testing.T) {
	dev := gputest.NewDevice()
	pool, err := NewCommandPool(dev, 2, 1)
	require.NoError(t, err)
	defer pool.Free()

	_, err = NewShadowChain(dev, pool, gpu.Extent2D{Width: 0, Height: 512}, 1)
	assert.ErrorIs(t, err, core.ErrInvariant)
	_, err = NewShadowChain(dev, pool, gpu.Extent2D{Width: 512, Height: 512}, 2)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestShadowChainSlotReentrancy(t *testing.T) {
	f := newShadowFixture(t, 2, 2)

	cb, err := f.shadows.BeginSlot(0, 0)
	require.NoError(t, err)
	assert.True(t, f.shadows.IsRecording(0))
	assert.Same(t, cb, f.shadows.CommandBuffer(0))
	assert.Nil(t, f.shadows.CommandBuffer(1))

	_, err = f.shadows.BeginSlot(0, 0)
	assert.ErrorIs(t, err, core.ErrInvariant)

	require.NoError(t, f.shadows.EndSlot(0))
	_, err = f.shadows.BeginSlot(0, 0)
	assert.ErrorIs(t, err, core.ErrInvariant, "a recorded slot must be submitted before it is reopened")
	assert.ErrorIs(t, f.shadows.EndSlot(1), core.ErrInvariant)
}

func TestShadowChainSubmitAllBatchesSlots(t *testing.T) {
	f := newShadowFixture(t, 2, 3)

	first := f.record(t, 2, 0)
	second := f.record(t, 0, 0)
	assert.Equal(t, []ShadowSlot{2, 0}, f.shadows.Pending())

	semaphores, err := f.shadows.SubmitAll(f.sync, f.shadows.Pending())
	require.NoError(t, err)
	require.Len(t, semaphores, 2)
	assert.Empty(t, f.shadows.Pending())
	assert.Equal(t, CommandBufferStateSubmitted, first.State)
	assert.Equal(t, CommandBufferStateSubmitted, second.State)

	submits := f.dev.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, gpu.NullFence, submits[0].Fence)
	require.Len(t, submits[0].Infos, 1)
	info := submits[0].Infos[0]
	assert.Equal(t, []gpu.CommandBuffer{first.Handle, second.Handle}, info.CommandBuffers)
	assert.Equal(t, semaphores, info.SignalSemaphores)
	assert.Empty(t, info.WaitSemaphores)

	nothing, err := f.shadows.SubmitAll(f.sync, nil)
	require.NoError(t, err)
	assert.Nil(t, nothing)
	assert.Len(t, f.dev.Submits(), 1)
}

func TestShadowChainSubmitRejectsUnfinishedSlots(t *testing.T) {
	f := newShadowFixture(t, 2, 2)

	_, err := f.shadows.BeginSlot(1, 0)
	require.NoError(t, err)
	_, err = f.shadows.SubmitAll(f.sync, []ShadowSlot{1})
	assert.ErrorIs(t, err, core.ErrInvariant)
	_, err = f.shadows.SubmitAll(f.sync, []ShadowSlot{0})
	assert.ErrorIs(t, err, core.ErrInvariant)
	assert.Empty(t, f.dev.Submits())
}

func TestShadowChainDiscard(t *testing.T) {
	f := newShadowFixture(t, 2, 2)

	open, err := f.shadows.BeginSlot(0, 1)
	require.NoError(t, err)
	require.NoError(t, f.shadows.BeginPass(0, open))
	ended := f.record(t, 1, 1)

	f.shadows.Discard()
	assert.False(t, f.shadows.IsRecording(0))
	assert.Empty(t, f.shadows.Pending())
	assert.Equal(t, CommandBufferStateReady, open.State)
	assert.Equal(t, CommandBufferStateReady, ended.State)

	f.record(t, 0, 1)
	f.record(t, 1, 1)
	_, err = f.shadows.SubmitAll(f.sync, f.shadows.Pending())
	require.NoError(t, err)
	assert.Empty(t, f.dev.Violations())
}

func TestShadowChainDiscardReportsEndFailures(t *testing.T) {
	f := newShadowFixture(t, 2, 1)
	var logs bytes.Buffer
	core.SetLogOutput(&logs)
	t.Cleanup(func() { core.SetLogOutput(nil) })

	open, err := f.shadows.BeginSlot(0, 0)
	require.NoError(t, err)
	require.NoError(t, f.shadows.BeginPass(0, open))

	f.dev.FailOn("EndCommandBuffer", errors.New("device busy"))
	f.shadows.Discard()
	f.dev.FailOn("EndCommandBuffer", nil)

	assert.Contains(t, logs.String(), "discarding shadow slot 0: failed to end command buffer")
	assert.False(t, f.shadows.IsRecording(0))
	assert.Equal(t, CommandBufferStateReady, open.State)

	f.record(t, 0, 0)
	_, err = f.shadows.SubmitAll(f.sync, f.shadows.Pending())
	require.NoError(t, err)
}

func TestShadowSampledViewOutOfRange(t *testing.T) {
	f := newShadowFixture(t, 1, 1)
	_, err := f.shadows.ShadowSampledView(-1)
	assert.ErrorIs(t, err, core.ErrInvariant)
	_, err = f.shadows.ShadowSampledView(1)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestShadowChainDestroy(t *testing.T) {
	dev := gputest.NewDevice()
	pool, err := NewCommandPool(dev, 1, 2)
	require.NoError(t, err)
	shadows, err := NewShadowChain(dev, pool, gpu.Extent2D{Width: 256, Height: 256}, 2)
	require.NoError(t, err)

	shadows.Destroy()
	shadows.Destroy()
	pool.Free()
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.Violations())
	assert.Zero(t, shadows.RenderPass())
}
