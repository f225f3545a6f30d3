package frame

import "github.com/spaghettifunk/penumbra/engine/renderer/gpu"

// FrameSlot is the CPU-side frame counter in [0, FramesInFlight). It selects
// which set of sync objects and command buffers the current tick uses.
type FrameSlot int

// Next advances the slot round-robin.
func (s FrameSlot) Next(framesInFlight int) FrameSlot {
	return FrameSlot((int(s) + 1) % framesInFlight)
}

// ImageIndex is the presentable image handed out by acquire. It indexes
// framebuffers and the in-flight image table and has no relation to FrameSlot.
type ImageIndex uint32

// ShadowSlot selects one offscreen shadow target.
type ShadowSlot int

// Window is what the scheduler needs from the platform layer.
type Window interface {
	// Extent is the current framebuffer size in pixels. It is zero while minimized.
	Extent() gpu.Extent2D
	WasResized() bool
	ResetResized()
	// WaitEvents blocks until the window system delivers an event.
	WaitEvents()
}
