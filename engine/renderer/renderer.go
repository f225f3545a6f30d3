package renderer

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Camera owns its projection and view. The tick only keeps its aspect ratio
// in sync with the surface.
type Camera interface {
	SetAspectRatio(aspect float32)
}

// FrameInfo is handed to every render system for one recording.
type FrameInfo struct {
	FrameIndex    frame.FrameSlot
	FrameTime     float32
	CommandBuffer gpu.CommandBuffer
	Camera        Camera
	// ShadowMaps holds the sampled view of every shadow slot, in slot order.
	ShadowMaps []gpu.DescriptorImageInfo
}

// RenderSystem records draw commands into passes begun by the scheduler.
// Systems never begin or end passes themselves.
type RenderSystem interface {
	RenderShadow(info *FrameInfo, slot frame.ShadowSlot) error
	Render(info *FrameInfo) error
}

// FrameScheduler is the part of frame.Renderer a tick needs.
type FrameScheduler interface {
	BeginFrame() (gpu.CommandBuffer, bool, error)
	BeginDepthFrame(slot frame.ShadowSlot) (gpu.CommandBuffer, error)
	EndDepthFrame(slot frame.ShadowSlot) error
	BeginShadowRenderPass(cb gpu.CommandBuffer, slot frame.ShadowSlot) error
	EndShadowRenderPass(cb gpu.CommandBuffer, slot frame.ShadowSlot) error
	BeginSwapChainRenderPass(cb gpu.CommandBuffer) error
	EndSwapChainRenderPass(cb gpu.CommandBuffer) error
	EndFrame() error
	SubmitCommandBuffers() error

	FrameIndex() frame.FrameSlot
	AspectRatio() float32
	ShadowSlotCount() int
	ShadowSampledViews() []gpu.DescriptorImageInfo
}

var _ FrameScheduler = (*frame.Renderer)(nil)

// DrawFrame runs one tick: acquire, one depth recording per shadow slot, the
// color pass, then the batched submit and present. When the surface chain
// had to be rebuilt nothing is recorded and core.ErrSwapchainBooting is
// returned; callers just try again on the next tick.
func DrawFrame(r FrameScheduler, systems []RenderSystem, camera Camera, deltaTime float64) error {
	cb, ok, err := r.BeginFrame()
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrSwapchainBooting
	}

	if camera != nil {
		camera.SetAspectRatio(r.AspectRatio())
	}
	info := &FrameInfo{
		FrameIndex: r.FrameIndex(),
		FrameTime:  float32(deltaTime),
		Camera:     camera,
		ShadowMaps: r.ShadowSampledViews(),
	}

	for s := 0; s < r.ShadowSlotCount(); s++ {
		if err := drawShadow(r, systems, info, frame.ShadowSlot(s)); err != nil {
			return err
		}
	}

	if err := r.BeginSwapChainRenderPass(cb); err != nil {
		return err
	}
	info.CommandBuffer = cb
	for _, system := range systems {
		if err := system.Render(info); err != nil {
			return fmt.Errorf("render system failed in the color pass: %w", err)
		}
	}
	if err := r.EndSwapChainRenderPass(cb); err != nil {
		return err
	}
	if err := r.EndFrame(); err != nil {
		return err
	}
	if err := r.SubmitCommandBuffers(); err != nil {
		core.LogError("failed to submit frame %d: %s", info.FrameIndex, err)
		return err
	}
	return nil
}

func drawShadow(r FrameScheduler, systems []RenderSystem, info *FrameInfo, slot frame.ShadowSlot) error {
	depth, err := r.BeginDepthFrame(slot)
	if err != nil {
		return err
	}
	if err := r.BeginShadowRenderPass(depth, slot); err != nil {
		return err
	}
	info.CommandBuffer = depth
	for _, system := range systems {
		if err := system.RenderShadow(info, slot); err != nil {
			return fmt.Errorf("render system failed in shadow slot %d: %w", slot, err)
		}
	}
	if err := r.EndShadowRenderPass(depth, slot); err != nil {
		return err
	}
	return r.EndDepthFrame(slot)
}
