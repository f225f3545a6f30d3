package frame

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type shadowTarget struct {
	Name        string
	Depth       *Attachment
	Sampler     gpu.Sampler
	Framebuffer *Framebuffer

	recording bool
	// recorded is set between EndSlot and the batch submit.
	recorded bool
	frame    FrameSlot
}

// ShadowChain is a fixed set of offscreen depth targets rendered before the
// color pass and sampled by it. The number of targets is independent of the
// number of frames in flight and of the presentable image count.
type ShadowChain struct {
	device      gpu.Device
	pool        *CommandPool
	extent      gpu.Extent2D
	depthFormat gpu.Format

	Renderpass *Renderpass
	targets    []*shadowTarget
	pending    []ShadowSlot

	destroyed bool
}

// NewShadowChain creates slotCount depth targets of extent. Command buffers
// for each (slot, FrameSlot) pair come from pool.
func NewShadowChain(device gpu.Device, pool *CommandPool, extent gpu.Extent2D, slotCount int) (*ShadowChain, error) {
	if extent.IsZero() {
		return nil, core.Invariantf("shadow extent must be non-zero, got %dx%d", extent.Width, extent.Height)
	}
	if slotCount > pool.ShadowSlots() {
		return nil, core.Invariantf("%d shadow slots requested but the pool holds buffers for %d", slotCount, pool.ShadowSlots())
	}

	chain := &ShadowChain{device: device, pool: pool, extent: extent}
	if err := chain.create(slotCount); err != nil {
		chain.Destroy()
		return nil, err
	}
	core.LogInfo("shadow chain created: %d slots of %dx%d, format %s", slotCount, extent.Width, extent.Height, chain.depthFormat)
	return chain, nil
}

func (sc *ShadowChain) create(slotCount int) error {
	depthFormat, err := sc.device.DepthFormat()
	if err != nil {
		return fmt.Errorf("failed to find a supported depth format: %w", err)
	}
	sc.depthFormat = depthFormat

	sc.Renderpass, err = NewShadowRenderpass(sc.device, depthFormat)
	if err != nil {
		return err
	}

	for i := 0; i < slotCount; i++ {
		target := &shadowTarget{Name: fmt.Sprintf("shadow-%d-%s", i, uuid.NewString())}
		sc.targets = append(sc.targets, target)

		target.Depth, err = NewAttachment(sc.device, gpu.ImageInfo{
			Extent: sc.extent,
			Format: depthFormat,
			Usage:  gpu.ImageUsageDepthStencilAttachment | gpu.ImageUsageSampled,
			Name:   target.Name,
		}, gpu.ImageAspectDepth)
		if err != nil {
			return err
		}

		target.Sampler, err = sc.device.CreateSampler(gpu.SamplerInfo{
			MagFilter:     gpu.FilterLinear,
			MinFilter:     gpu.FilterLinear,
			AddressMode:   gpu.AddressModeClampToEdge,
			BorderColor:   gpu.BorderColorIntOpaqueBlack,
			CompareEnable: true,
			CompareOp:     gpu.CompareOpLess,
			MaxAnisotropy: 1.0,
			MinLod:        0.0,
			MaxLod:        100.0,
		})
		if err != nil {
			err = fmt.Errorf("failed to create shadow sampler %s: %w", target.Name, err)
			core.LogError(err.Error())
			return err
		}

		target.Framebuffer, err = NewFramebuffer(sc.device, sc.Renderpass, sc.extent, target.Depth.View)
		if err != nil {
			return err
		}

		// The pass expects SHADER_READ_ONLY on entry.
		if err := sc.device.TransitionImageLayout(target.Depth.Image, depthFormat,
			gpu.ImageLayoutUndefined, gpu.ImageLayoutShaderReadOnlyOptimal); err != nil {
			err = fmt.Errorf("failed to transition shadow target %s: %w", target.Name, err)
			core.LogError(err.Error())
			return err
		}
		core.LogDebug("shadow target %s ready", target.Name)
	}
	return nil
}

func (sc *ShadowChain) target(slot ShadowSlot) (*shadowTarget, error) {
	if int(slot) < 0 || int(slot) >= len(sc.targets) {
		return nil, core.Invariantf("shadow slot %d out of range (%d slots)", slot, len(sc.targets))
	}
	return sc.targets[slot], nil
}

// BeginSlot begins recording the depth command buffer of slot for frame.
// Reopening a slot before its recording was submitted is an invariant violation.
func (sc *ShadowChain) BeginSlot(slot ShadowSlot, frame FrameSlot) (*CommandBuffer, error) {
	t, err := sc.target(slot)
	if err != nil {
		return nil, err
	}
	if t.recording {
		return nil, core.Invariantf("can't begin shadow slot %d while it is already recording", slot)
	}
	if t.recorded {
		return nil, core.Invariantf("can't begin shadow slot %d again before it is submitted", slot)
	}
	cb := sc.pool.Depth(slot, frame)
	if err := cb.Begin(sc.device, false); err != nil {
		return nil, err
	}
	t.recording = true
	t.frame = frame
	return cb, nil
}

// CommandBuffer returns the buffer slot is recording into, or nil.
func (sc *ShadowChain) CommandBuffer(slot ShadowSlot) *CommandBuffer {
	t, err := sc.target(slot)
	if err != nil || !t.recording {
		return nil
	}
	return sc.pool.Depth(slot, t.frame)
}

func (sc *ShadowChain) IsRecording(slot ShadowSlot) bool {
	t, err := sc.target(slot)
	return err == nil && t.recording
}

func (sc *ShadowChain) EndSlot(slot ShadowSlot) error {
	t, err := sc.target(slot)
	if err != nil {
		return err
	}
	if !t.recording {
		return core.Invariantf("can't end shadow slot %d that is not recording", slot)
	}
	if err := sc.pool.Depth(slot, t.frame).End(sc.device); err != nil {
		return err
	}
	t.recording = false
	t.recorded = true
	sc.pending = append(sc.pending, slot)
	return nil
}

// BeginPass starts the depth-only pass of slot on cb.
func (sc *ShadowChain) BeginPass(slot ShadowSlot, cb *CommandBuffer) error {
	t, err := sc.target(slot)
	if err != nil {
		return err
	}
	return sc.Renderpass.Begin(sc.device, cb, t.Framebuffer.Handle, sc.extent)
}

func (sc *ShadowChain) EndPass(cb *CommandBuffer) error {
	return sc.Renderpass.End(sc.device, cb)
}

// Pending lists the slots ended this tick, in the order they were ended.
func (sc *ShadowChain) Pending() []ShadowSlot {
	return append([]ShadowSlot(nil), sc.pending...)
}

// SubmitAll submits the recorded depth buffers of slots as one batch without
// waits or a fence. Each submitted slot signals its depth-finished semaphore;
// the returned semaphores must be waited on by the color submission of the
// same tick. An empty slots list submits nothing.
func (sc *ShadowChain) SubmitAll(sync *SyncRegistry, slots []ShadowSlot) ([]gpu.Semaphore, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	buffers := make([]*CommandBuffer, 0, len(slots))
	for _, slot := range slots {
		t, err := sc.target(slot)
		if err != nil {
			return nil, err
		}
		if t.recording {
			return nil, core.Invariantf("shadow slot %d is still recording at submit", slot)
		}
		if !t.recorded {
			return nil, core.Invariantf("shadow slot %d was never recorded this tick", slot)
		}
		buffers = append(buffers, sc.pool.Depth(slot, t.frame))
	}

	semaphores, err := sync.DepthFinished(slots)
	if err != nil {
		return nil, err
	}
	handles := make([]gpu.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		handles[i] = cb.Handle
	}
	submit := gpu.SubmitInfo{
		CommandBuffers:   handles,
		SignalSemaphores: semaphores,
	}
	if err := sc.device.QueueSubmit([]gpu.SubmitInfo{submit}, gpu.NullFence); err != nil {
		err = fmt.Errorf("failed to submit shadow command buffers: %w", err)
		core.LogError(err.Error())
		return nil, err
	}

	for i, slot := range slots {
		buffers[i].UpdateSubmitted()
		sc.targets[slot].recorded = false
	}
	sc.pending = removeSlots(sc.pending, slots)
	return semaphores, nil
}

func removeSlots(from, remove []ShadowSlot) []ShadowSlot {
	out := from[:0]
	for _, s := range from {
		keep := true
		for _, r := range remove {
			if s == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

// Discard abandons every recording of the current tick so the slots can be
// opened again. Used when a tick is skipped after depth recording started.
func (sc *ShadowChain) Discard() {
	for i, t := range sc.targets {
		if !t.recording && !t.recorded {
			continue
		}
		cb := sc.pool.Depth(ShadowSlot(i), t.frame)
		if cb.State == CommandBufferStateInRenderPass {
			if err := cb.EndRenderPass(sc.device); err != nil {
				core.LogWarn("discarding shadow slot %d: failed to end render pass: %s", i, err)
			}
		}
		if cb.State == CommandBufferStateRecording {
			if err := cb.End(sc.device); err != nil {
				core.LogWarn("discarding shadow slot %d: failed to end command buffer: %s", i, err)
			}
		}
		cb.Reset()
		t.recording = false
		t.recorded = false
	}
	sc.pending = nil
}

// ShadowSampledView is what a render system binds to sample slot.
func (sc *ShadowChain) ShadowSampledView(slot ShadowSlot) (gpu.DescriptorImageInfo, error) {
	t, err := sc.target(slot)
	if err != nil {
		return gpu.DescriptorImageInfo{}, err
	}
	return gpu.DescriptorImageInfo{
		Sampler: t.Sampler,
		View:    t.Depth.View,
		Layout:  gpu.ImageLayoutShaderReadOnlyOptimal,
	}, nil
}

// SampledViews returns the descriptor info of every slot in slot order.
func (sc *ShadowChain) SampledViews() []gpu.DescriptorImageInfo {
	out := make([]gpu.DescriptorImageInfo, len(sc.targets))
	for i := range sc.targets {
		out[i], _ = sc.ShadowSampledView(ShadowSlot(i))
	}
	return out
}

func (sc *ShadowChain) SlotCount() int {
	return len(sc.targets)
}

func (sc *ShadowChain) Extent() gpu.Extent2D {
	return sc.extent
}

func (sc *ShadowChain) DepthFormat() gpu.Format {
	return sc.depthFormat
}

func (sc *ShadowChain) RenderPass() gpu.RenderPass {
	if sc.Renderpass == nil {
		return 0
	}
	return sc.Renderpass.Handle
}

// Destroy releases every target and the pass. Calling it again is a no-op.
func (sc *ShadowChain) Destroy() {
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, t := range sc.targets {
		if t.Framebuffer != nil {
			t.Framebuffer.Destroy(sc.device)
		}
		if t.Sampler != 0 {
			sc.device.DestroySampler(t.Sampler)
			t.Sampler = 0
		}
		if t.Depth != nil {
			t.Depth.Destroy(sc.device)
		}
	}
	if sc.Renderpass != nil {
		sc.Renderpass.Destroy(sc.device)
	}
	sc.targets = nil
	sc.pending = nil
}
