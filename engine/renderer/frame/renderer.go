package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type Config struct {
	FramesInFlight int
	ShadowSlots    int
	ShadowExtent   gpu.Extent2D
	PresentMode    gpu.PresentMode
	ClearColor     [4]float32
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		ShadowSlots:    2,
		ShadowExtent:   gpu.Extent2D{Width: 2048, Height: 2048},
		PresentMode:    gpu.PresentModeMailbox,
		ClearColor:     [4]float32{0.43, 0.8, 0.92, 1.0},
	}
}

type frameState int

const (
	stateIdle frameState = iota
	stateFrameOpen
	stateColorPassOpen
	stateColorPassClosed
	stateRecorded
	stateSubmitted
)

func (s frameState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFrameOpen:
		return "frame open"
	case stateColorPassOpen:
		return "color pass open"
	case stateColorPassClosed:
		return "color pass closed"
	case stateRecorded:
		return "recorded"
	case stateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Renderer schedules one tick of GPU work: acquire, shadow depth recording,
// color recording, the batched shadow submit, the color submit and present.
// It rebuilds the surface chain when the window or surface requires it.
// All methods must be called from the thread that owns the window.
type Renderer struct {
	device  gpu.Device
	window  Window
	surface gpu.Surface
	config  Config

	chain   *SurfaceChain
	shadows *ShadowChain
	sync    *SyncRegistry
	pool    *CommandPool

	frameSlot       FrameSlot
	imageIndex      ImageIndex
	state           frameState
	recreatePending bool
	destroyed       bool
}

func NewRenderer(device gpu.Device, window Window, surface gpu.Surface, config Config) (*Renderer, error) {
	if config.FramesInFlight < 1 {
		return nil, core.Invariantf("frames in flight must be at least 1, got %d", config.FramesInFlight)
	}
	if config.ShadowSlots < 0 {
		return nil, core.Invariantf("shadow slot count must not be negative, got %d", config.ShadowSlots)
	}
	r := &Renderer{
		device:  device,
		window:  window,
		surface: surface,
		config:  config,
	}
	if err := r.create(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) create() error {
	var err error
	r.chain, err = NewSurfaceChain(r.device, r.surface, r.waitForExtent(), r.chainOptions(), nil)
	if err != nil {
		return err
	}
	r.sync, err = NewSyncRegistry(r.device, r.config.FramesInFlight, r.chain.ImageCount())
	if err != nil {
		return err
	}
	r.pool, err = NewCommandPool(r.device, r.config.FramesInFlight, r.config.ShadowSlots)
	if err != nil {
		return err
	}
	r.shadows, err = NewShadowChain(r.device, r.pool, r.config.ShadowExtent, r.config.ShadowSlots)
	return err
}

func (r *Renderer) chainOptions() SurfaceChainOptions {
	return SurfaceChainOptions{
		PresentMode: r.config.PresentMode,
		ClearColor:  r.config.ClearColor,
	}
}

// waitForExtent blocks while the window is minimized.
func (r *Renderer) waitForExtent() gpu.Extent2D {
	extent := r.window.Extent()
	for extent.IsZero() {
		r.window.WaitEvents()
		extent = r.window.Extent()
	}
	return extent
}

// BeginFrame acquires the next presentable image and begins recording the
// color command buffer of the current frame slot. When the surface chain had
// to be rebuilt first, ok is false and nothing must be recorded this tick.
func (r *Renderer) BeginFrame() (cb gpu.CommandBuffer, ok bool, err error) {
	if r.state != stateIdle {
		return 0, false, core.Invariantf("can't call BeginFrame while already in progress (%s)", r.state)
	}

	if r.window.WasResized() || r.recreatePending {
		r.window.ResetResized()
		return 0, false, r.skipTick()
	}

	image, status, err := r.chain.AcquireNext(r.sync, r.frameSlot)
	if err != nil {
		return 0, false, err
	}
	switch status {
	case AcquireOutOfDate:
		return 0, false, r.skipTick()
	case AcquireSuboptimal:
		r.recreatePending = true
	}
	r.imageIndex = image

	color := r.pool.Color(r.frameSlot)
	if err := color.Begin(r.device, false); err != nil {
		return 0, false, err
	}
	r.state = stateFrameOpen
	return color.Handle, true, nil
}

// skipTick abandons the tick and rebuilds the surface chain. The frame slot
// does not advance because no submission consumed its fence.
func (r *Renderer) skipTick() error {
	r.shadows.Discard()
	return r.RecreateSwapChain()
}

// BeginDepthFrame begins recording the depth pass of slot for the current
// frame slot. It may be called before or after BeginFrame within a tick.
func (r *Renderer) BeginDepthFrame(slot ShadowSlot) (gpu.CommandBuffer, error) {
	// The depth buffers of this frame slot may still be executing from an earlier tick.
	if err := r.sync.Wait(r.frameSlot); err != nil {
		return 0, err
	}
	cb, err := r.shadows.BeginSlot(slot, r.frameSlot)
	if err != nil {
		return 0, err
	}
	return cb.Handle, nil
}

func (r *Renderer) EndDepthFrame(slot ShadowSlot) error {
	return r.shadows.EndSlot(slot)
}

func (r *Renderer) openShadowBuffer(cb gpu.CommandBuffer, slot ShadowSlot) (*CommandBuffer, error) {
	open := r.shadows.CommandBuffer(slot)
	if open == nil {
		return nil, core.Invariantf("shadow slot %d is not recording", slot)
	}
	if open.Handle != cb {
		return nil, core.Invariantf("can't use command buffer %d for shadow slot %d, it records into %d", cb, slot, open.Handle)
	}
	return open, nil
}

func (r *Renderer) BeginShadowRenderPass(cb gpu.CommandBuffer, slot ShadowSlot) error {
	open, err := r.openShadowBuffer(cb, slot)
	if err != nil {
		return err
	}
	return r.shadows.BeginPass(slot, open)
}

func (r *Renderer) EndShadowRenderPass(cb gpu.CommandBuffer, slot ShadowSlot) error {
	open, err := r.openShadowBuffer(cb, slot)
	if err != nil {
		return err
	}
	return r.shadows.EndPass(open)
}

func (r *Renderer) colorBuffer(cb gpu.CommandBuffer) (*CommandBuffer, error) {
	color := r.pool.Color(r.frameSlot)
	if color.Handle != cb {
		return nil, core.Invariantf("can't use command buffer %d for the swapchain pass of frame %d", cb, r.frameSlot)
	}
	return color, nil
}

// BeginSwapChainRenderPass begins the color pass into the acquired image.
// Viewport and scissor always match the current surface extent.
func (r *Renderer) BeginSwapChainRenderPass(cb gpu.CommandBuffer) error {
	if r.state != stateFrameOpen {
		return core.Invariantf("can't begin swapchain render pass in state %s", r.state)
	}
	color, err := r.colorBuffer(cb)
	if err != nil {
		return err
	}
	fb := r.chain.Framebuffer(r.imageIndex)
	if err := r.chain.Renderpass.Begin(r.device, color, fb.Handle, r.chain.Extent()); err != nil {
		return err
	}
	r.state = stateColorPassOpen
	return nil
}

func (r *Renderer) EndSwapChainRenderPass(cb gpu.CommandBuffer) error {
	if r.state != stateColorPassOpen {
		return core.Invariantf("can't end swapchain render pass in state %s", r.state)
	}
	color, err := r.colorBuffer(cb)
	if err != nil {
		return err
	}
	if err := r.chain.Renderpass.End(r.device, color); err != nil {
		return err
	}
	r.state = stateColorPassClosed
	return nil
}

// EndFrame finishes recording the color command buffer.
func (r *Renderer) EndFrame() error {
	if r.state != stateFrameOpen && r.state != stateColorPassClosed {
		return core.Invariantf("can't call EndFrame in state %s", r.state)
	}
	if err := r.pool.Color(r.frameSlot).End(r.device); err != nil {
		return err
	}
	r.state = stateRecorded
	return nil
}

// SubmitCommandBuffers submits this tick's shadow batch, then the color
// buffer waiting on it, then presents. The frame slot advances once the
// submission went through. A stale chain, a resized window or a suboptimal
// acquire rebuild the chain before returning.
func (r *Renderer) SubmitCommandBuffers() error {
	if r.state != stateRecorded {
		return core.Invariantf("can't submit command buffers in state %s", r.state)
	}
	for i := 0; i < r.shadows.SlotCount(); i++ {
		if r.shadows.IsRecording(ShadowSlot(i)) {
			return core.Invariantf("shadow slot %d is still recording at submit", i)
		}
	}

	waits, err := r.shadows.SubmitAll(r.sync, r.shadows.Pending())
	if err != nil {
		return err
	}
	status, err := r.chain.SubmitAndPresent(r.sync, r.frameSlot, r.pool.Color(r.frameSlot), r.imageIndex, waits)
	if err != nil {
		return err
	}
	r.state = stateSubmitted
	r.frameSlot = r.frameSlot.Next(r.config.FramesInFlight)
	r.state = stateIdle

	if status == PresentStale || r.window.WasResized() || r.recreatePending {
		r.window.ResetResized()
		return r.RecreateSwapChain()
	}
	return nil
}

// RecreateSwapChain rebuilds the surface chain at the current window extent,
// blocking while the window is minimized. Pipelines built against the color
// render pass stay valid because the formats are required to match.
func (r *Renderer) RecreateSwapChain() error {
	if r.state != stateIdle {
		return core.Invariantf("can't recreate the swapchain in state %s", r.state)
	}
	extent := r.waitForExtent()
	if err := r.device.WaitIdle(); err != nil {
		err = fmt.Errorf("failed to wait for device idle: %w", err)
		core.LogError(err.Error())
		return err
	}

	chain, err := NewSurfaceChain(r.device, r.surface, extent, r.chainOptions(), r.chain)
	if err != nil {
		r.chain = nil
		return err
	}
	r.chain = chain
	r.sync.ResetImageTable(chain.ImageCount())
	r.recreatePending = false
	core.LogInfo("swapchain recreated at %dx%d", chain.Extent().Width, chain.Extent().Height)
	return nil
}

// RequestRecreate rebuilds the surface chain at the next idle point.
func (r *Renderer) RequestRecreate() {
	r.recreatePending = true
}

// SetPresentMode changes the preferred present mode. It takes effect with the next chain.
func (r *Renderer) SetPresentMode(mode gpu.PresentMode) {
	if r.config.PresentMode == mode {
		return
	}
	r.config.PresentMode = mode
	r.RequestRecreate()
}

// SetClearColor changes the clear colour of the swapchain pass from the next pass on.
func (r *Renderer) SetClearColor(c [4]float32) {
	r.config.ClearColor = c
	if r.chain != nil && r.chain.Renderpass != nil {
		r.chain.Renderpass.R = c[0]
		r.chain.Renderpass.G = c[1]
		r.chain.Renderpass.B = c[2]
		r.chain.Renderpass.A = c[3]
	}
}

func (r *Renderer) ColorRenderPass() gpu.RenderPass {
	return r.chain.RenderPass()
}

func (r *Renderer) ShadowRenderPass() gpu.RenderPass {
	return r.shadows.RenderPass()
}

func (r *Renderer) ShadowSampledView(slot ShadowSlot) (gpu.DescriptorImageInfo, error) {
	return r.shadows.ShadowSampledView(slot)
}

func (r *Renderer) ShadowSampledViews() []gpu.DescriptorImageInfo {
	return r.shadows.SampledViews()
}

func (r *Renderer) ShadowSlotCount() int {
	return r.shadows.SlotCount()
}

func (r *Renderer) ShadowExtent() gpu.Extent2D {
	return r.shadows.Extent()
}

func (r *Renderer) FrameIndex() FrameSlot {
	return r.frameSlot
}

func (r *Renderer) ImageIndex() ImageIndex {
	return r.imageIndex
}

func (r *Renderer) FramesInFlight() int {
	return r.config.FramesInFlight
}

func (r *Renderer) AspectRatio() float32 {
	return r.chain.AspectRatio()
}

func (r *Renderer) Extent() gpu.Extent2D {
	return r.chain.Extent()
}

func (r *Renderer) PresentMode() gpu.PresentMode {
	return r.chain.PresentMode
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != stateIdle
}

func (r *Renderer) CurrentCommandBuffer() (gpu.CommandBuffer, error) {
	if r.state == stateIdle {
		return 0, core.Invariantf("cannot get command buffer when frame not in progress")
	}
	return r.pool.Color(r.frameSlot).Handle, nil
}

// Destroy waits for the device to go idle and releases everything the
// renderer created. Calling it again is a no-op.
func (r *Renderer) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("failed to wait for device idle on shutdown: %s", err)
	}
	if r.pool != nil {
		r.pool.Free()
	}
	if r.shadows != nil {
		r.shadows.Destroy()
	}
	if r.chain != nil {
		r.chain.Destroy()
	}
	if r.sync != nil {
		r.sync.Destroy()
	}
	core.LogInfo("renderer destroyed")
}
