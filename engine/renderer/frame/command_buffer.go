package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferStateReady:
		return "ready"
	case CommandBufferStateRecording:
		return "recording"
	case CommandBufferStateInRenderPass:
		return "in render pass"
	case CommandBufferStateRecordingEnded:
		return "recording ended"
	case CommandBufferStateSubmitted:
		return "submitted"
	case CommandBufferStateNotAllocated:
		return "not allocated"
	}
	return "unknown"
}

type CommandBuffer struct {
	Handle gpu.CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

// Begin starts recording. A buffer may be re-recorded once its previous
// recording was submitted or discarded; the pool allows implicit resets.
func (cb *CommandBuffer) Begin(device gpu.Device, singleUse bool) error {
	if cb.State != CommandBufferStateReady && cb.State != CommandBufferStateSubmitted {
		return core.Invariantf("cannot begin command buffer in state %s", cb.State)
	}
	if err := device.BeginCommandBuffer(cb.Handle, singleUse); err != nil {
		err = fmt.Errorf("failed to begin command buffer: %w", err)
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *CommandBuffer) End(device gpu.Device) error {
	if cb.State != CommandBufferStateRecording {
		return core.Invariantf("cannot end command buffer in state %s", cb.State)
	}
	if err := device.EndCommandBuffer(cb.Handle); err != nil {
		err = fmt.Errorf("failed to end command buffer: %w", err)
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

func (cb *CommandBuffer) BeginRenderPass(device gpu.Device, info gpu.RenderPassBeginInfo) error {
	if cb.State != CommandBufferStateRecording {
		return core.Invariantf("cannot begin render pass on command buffer in state %s", cb.State)
	}
	device.CmdBeginRenderPass(cb.Handle, info)
	cb.State = CommandBufferStateInRenderPass
	return nil
}

func (cb *CommandBuffer) EndRenderPass(device gpu.Device) error {
	if cb.State != CommandBufferStateInRenderPass {
		return core.Invariantf("cannot end render pass on command buffer in state %s", cb.State)
	}
	device.CmdEndRenderPass(cb.Handle)
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = CommandBufferStateSubmitted
}

// Reset discards a recording that will never be submitted.
func (cb *CommandBuffer) Reset() {
	cb.State = CommandBufferStateReady
}

// CommandPool owns the primary command buffers of the frame core: one color
// buffer per FrameSlot and one depth buffer per (ShadowSlot, FrameSlot).
type CommandPool struct {
	device gpu.Device
	color  []*CommandBuffer
	depth  [][]*CommandBuffer
}

func NewCommandPool(device gpu.Device, framesInFlight, shadowSlots int) (*CommandPool, error) {
	if framesInFlight < 1 {
		return nil, core.Invariantf("frames in flight must be at least 1, got %d", framesInFlight)
	}
	pool := &CommandPool{device: device}

	handles, err := device.AllocateCommandBuffers(framesInFlight * (1 + shadowSlots))
	if err != nil {
		err = fmt.Errorf("failed to allocate command buffers: %w", err)
		core.LogError(err.Error())
		return nil, err
	}

	next := 0
	take := func() *CommandBuffer {
		cb := &CommandBuffer{Handle: handles[next], State: CommandBufferStateReady}
		next++
		return cb
	}
	pool.color = make([]*CommandBuffer, framesInFlight)
	for i := range pool.color {
		pool.color[i] = take()
	}
	pool.depth = make([][]*CommandBuffer, shadowSlots)
	for s := range pool.depth {
		pool.depth[s] = make([]*CommandBuffer, framesInFlight)
		for f := range pool.depth[s] {
			pool.depth[s][f] = take()
		}
	}
	core.LogDebug("allocated %d command buffers (%d frames in flight, %d shadow slots)", len(handles), framesInFlight, shadowSlots)
	return pool, nil
}

func (p *CommandPool) Color(slot FrameSlot) *CommandBuffer {
	return p.color[slot]
}

func (p *CommandPool) Depth(shadow ShadowSlot, slot FrameSlot) *CommandBuffer {
	return p.depth[shadow][slot]
}

func (p *CommandPool) FramesInFlight() int {
	return len(p.color)
}

func (p *CommandPool) ShadowSlots() int {
	return len(p.depth)
}

// Free returns every buffer to the device. Safe to call more than once.
func (p *CommandPool) Free() {
	var handles []gpu.CommandBuffer
	collect := func(cb *CommandBuffer) {
		if cb.State == CommandBufferStateNotAllocated {
			return
		}
		handles = append(handles, cb.Handle)
		cb.Handle = 0
		cb.State = CommandBufferStateNotAllocated
	}
	for _, cb := range p.color {
		collect(cb)
	}
	for _, row := range p.depth {
		for _, cb := range row {
			collect(cb)
		}
	}
	if len(handles) > 0 {
		p.device.FreeCommandBuffers(handles)
	}
}
