package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type AcquireStatus int

const (
	AcquireOK AcquireStatus = iota
	// AcquireSuboptimal means the image is usable but the chain should be rebuilt at the next idle point.
	AcquireSuboptimal
	// AcquireOutOfDate means no image was acquired and the chain must be rebuilt before rendering.
	AcquireOutOfDate
)

type PresentStatus int

const (
	PresentOK PresentStatus = iota
	// PresentStale means the frame was queued but the chain no longer matches the surface.
	PresentStale
)

type SurfaceChainOptions struct {
	// PresentMode is used when the surface supports it, FIFO otherwise.
	PresentMode gpu.PresentMode
	ClearColor  [4]float32
}

// SurfaceChain is one generation of the presentable image chain: the
// swapchain, its views, one depth attachment per image, the present render
// pass and one framebuffer per image.
type SurfaceChain struct {
	device  gpu.Device
	surface gpu.Surface
	options SurfaceChainOptions

	Handle      gpu.Swapchain
	ImageFormat gpu.SurfaceFormat
	PresentMode gpu.PresentMode

	depthFormat gpu.Format
	extent      gpu.Extent2D

	ColorAttachments []*Attachment
	DepthAttachments []*Attachment
	Renderpass       *Renderpass
	Framebuffers     []*Framebuffer

	destroyed bool
}

// NewSurfaceChain builds a chain for surface sized as close to requested as
// the surface allows. When previous is not nil its swapchain is handed to the
// driver for reuse, and previous is destroyed once the new chain exists. A new
// chain whose color or depth format differs from previous is rejected with
// core.ErrFormatMismatch.
func NewSurfaceChain(device gpu.Device, surface gpu.Surface, requested gpu.Extent2D, options SurfaceChainOptions, previous *SurfaceChain) (*SurfaceChain, error) {
	chain := &SurfaceChain{
		device:  device,
		surface: surface,
		options: options,
	}
	err := chain.create(requested, previous)
	if previous != nil {
		if err == nil && !chain.CompatibleWith(previous) {
			err = fmt.Errorf("%w: color %s -> %s, depth %s -> %s", core.ErrFormatMismatch,
				previous.ImageFormat.Format, chain.ImageFormat.Format, previous.depthFormat, chain.depthFormat)
		}
		previous.Destroy()
	}
	if err != nil {
		chain.Destroy()
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("surface chain created: %dx%d, %d images, format %s, present mode %s",
		chain.extent.Width, chain.extent.Height, len(chain.ColorAttachments), chain.ImageFormat.Format, chain.PresentMode)
	return chain, nil
}

func (sc *SurfaceChain) create(requested gpu.Extent2D, previous *SurfaceChain) error {
	support, err := sc.device.QuerySurfaceSupport(sc.surface)
	if err != nil {
		return fmt.Errorf("failed to query surface support: %w", err)
	}
	if len(support.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", core.ErrResourceCreation)
	}

	sc.ImageFormat = chooseSurfaceFormat(support.Formats)
	sc.PresentMode = choosePresentMode(support.PresentModes, sc.options.PresentMode)
	sc.extent = chooseExtent(support.Capabilities, requested)
	if sc.extent.IsZero() {
		return core.Invariantf("surface chain requested with zero extent %dx%d", sc.extent.Width, sc.extent.Height)
	}

	depthFormat, err := sc.device.DepthFormat()
	if err != nil {
		return fmt.Errorf("failed to find a supported depth format: %w", err)
	}
	sc.depthFormat = depthFormat

	info := gpu.SwapchainInfo{
		Surface:       sc.surface,
		MinImageCount: chooseImageCount(support.Capabilities),
		Format:        sc.ImageFormat,
		Extent:        sc.extent,
		PresentMode:   sc.PresentMode,
	}
	if previous != nil {
		info.OldSwapchain = previous.Handle
	}
	handle, err := sc.device.CreateSwapchain(info)
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	sc.Handle = handle

	images, err := sc.device.SwapchainImages(handle)
	if err != nil {
		return fmt.Errorf("failed to get swapchain images: %w", err)
	}

	sc.Renderpass, err = NewPresentRenderpass(sc.device, sc.ImageFormat.Format, sc.depthFormat, sc.options.ClearColor)
	if err != nil {
		return err
	}

	for i, img := range images {
		color, err := WrapSwapchainImage(sc.device, img, sc.ImageFormat.Format, sc.extent)
		if err != nil {
			return err
		}
		sc.ColorAttachments = append(sc.ColorAttachments, color)

		depth, err := NewAttachment(sc.device, gpu.ImageInfo{
			Extent: sc.extent,
			Format: sc.depthFormat,
			Usage:  gpu.ImageUsageDepthStencilAttachment,
			Name:   fmt.Sprintf("swapchain-depth-%d", i),
		}, gpu.ImageAspectDepth)
		if err != nil {
			return err
		}
		sc.DepthAttachments = append(sc.DepthAttachments, depth)

		fb, err := NewFramebuffer(sc.device, sc.Renderpass, sc.extent, color.View, depth.View)
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}
	return nil
}

func chooseSurfaceFormat(formats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, format := range formats {
		// Preferred formats
		if format.Format == gpu.FormatB8G8R8A8Srgb && format.ColorSpace == gpu.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []gpu.PresentMode, preferred gpu.PresentMode) gpu.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	// FIFO is always available.
	return gpu.PresentModeFifo
}

func chooseExtent(caps gpu.SurfaceCapabilities, requested gpu.Extent2D) gpu.Extent2D {
	extent := requested
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		extent = caps.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	extent.Width = math.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = math.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	return extent
}

func chooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// AcquireNext waits for the slot's previous work to finish and acquires the
// next presentable image, signaling the slot's image-available semaphore.
func (sc *SurfaceChain) AcquireNext(sync *SyncRegistry, slot FrameSlot) (ImageIndex, AcquireStatus, error) {
	if err := sync.Wait(slot); err != nil {
		return 0, AcquireOK, err
	}
	index, result := sc.device.AcquireNextImage(sc.Handle, gpu.MaxTimeout, sync.ImageAvailable[slot])
	switch result {
	case gpu.Success:
		return ImageIndex(index), AcquireOK, nil
	case gpu.Suboptimal:
		core.LogDebug("acquired image %d from a suboptimal swapchain", index)
		return ImageIndex(index), AcquireSuboptimal, nil
	case gpu.ErrorOutOfDate:
		core.LogDebug("swapchain out of date on acquire")
		return 0, AcquireOutOfDate, nil
	}
	err := fmt.Errorf("failed to acquire swapchain image: %w", result.Err())
	core.LogError(err.Error())
	return 0, AcquireOK, err
}

// SubmitAndPresent submits cb for slot and queues image for presentation.
// The color submission waits on image-available and on extraWaits (the
// depth-finished semaphores of this tick) and signals render-finished, which
// presentation waits on. GPU work still writing image is waited on first.
func (sc *SurfaceChain) SubmitAndPresent(sync *SyncRegistry, slot FrameSlot, cb *CommandBuffer, image ImageIndex, extraWaits []gpu.Semaphore) (PresentStatus, error) {
	if cb.State != CommandBufferStateRecordingEnded {
		return PresentOK, core.Invariantf("cannot submit command buffer in state %s", cb.State)
	}
	if err := sync.TrackImage(image, slot); err != nil {
		return PresentOK, err
	}
	if err := sync.WaitAndReset(slot); err != nil {
		return PresentOK, err
	}

	waits := make([]gpu.Semaphore, 0, len(extraWaits)+1)
	stages := make([]gpu.PipelineStageFlags, 0, len(extraWaits)+1)
	waits = append(waits, sync.ImageAvailable[slot])
	stages = append(stages, gpu.PipelineStageColorAttachmentOutput)
	for _, sem := range extraWaits {
		waits = append(waits, sem)
		stages = append(stages, gpu.PipelineStageFragmentShader)
	}

	submit := gpu.SubmitInfo{
		WaitSemaphores:   waits,
		WaitStages:       stages,
		CommandBuffers:   []gpu.CommandBuffer{cb.Handle},
		SignalSemaphores: []gpu.Semaphore{sync.RenderFinished[slot]},
	}
	if err := sc.device.QueueSubmit([]gpu.SubmitInfo{submit}, sync.InFlight[slot].Handle); err != nil {
		err = fmt.Errorf("failed to submit draw command buffer: %w", err)
		core.LogError(err.Error())
		return PresentOK, err
	}
	cb.UpdateSubmitted()

	result := sc.device.QueuePresent(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{sync.RenderFinished[slot]},
		Swapchain:      sc.Handle,
		ImageIndex:     uint32(image),
	})
	switch result {
	case gpu.Success:
		return PresentOK, nil
	case gpu.ErrorOutOfDate, gpu.Suboptimal:
		core.LogDebug("swapchain stale on present: %s", result)
		return PresentStale, nil
	}
	err := fmt.Errorf("failed to present swapchain image: %w", result.Err())
	core.LogError(err.Error())
	return PresentOK, err
}

// CompatibleWith reports whether pipelines built against other's render pass
// remain valid for this chain.
func (sc *SurfaceChain) CompatibleWith(other *SurfaceChain) bool {
	return sc.ImageFormat.Format == other.ImageFormat.Format && sc.depthFormat == other.depthFormat
}

func (sc *SurfaceChain) Extent() gpu.Extent2D {
	return sc.extent
}

func (sc *SurfaceChain) AspectRatio() float32 {
	return math.AspectRatio(sc.extent.Width, sc.extent.Height)
}

func (sc *SurfaceChain) ImageCount() int {
	return len(sc.ColorAttachments)
}

func (sc *SurfaceChain) ColorFormat() gpu.Format {
	return sc.ImageFormat.Format
}

func (sc *SurfaceChain) DepthFormat() gpu.Format {
	return sc.depthFormat
}

func (sc *SurfaceChain) RenderPass() gpu.RenderPass {
	if sc.Renderpass == nil {
		return 0
	}
	return sc.Renderpass.Handle
}

func (sc *SurfaceChain) Framebuffer(image ImageIndex) *Framebuffer {
	return sc.Framebuffers[image]
}

func (sc *SurfaceChain) IsDestroyed() bool {
	return sc.destroyed
}

// Destroy releases every resource of the chain. Calling it again is a no-op.
func (sc *SurfaceChain) Destroy() {
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, fb := range sc.Framebuffers {
		fb.Destroy(sc.device)
	}
	for _, depth := range sc.DepthAttachments {
		depth.Destroy(sc.device)
	}
	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, color := range sc.ColorAttachments {
		color.Destroy(sc.device)
	}
	if sc.Renderpass != nil {
		sc.Renderpass.Destroy(sc.device)
	}
	if sc.Handle != gpu.NullSwapchain {
		sc.device.DestroySwapchain(sc.Handle)
		sc.Handle = gpu.NullSwapchain
	}
	sc.Framebuffers = nil
	sc.DepthAttachments = nil
	sc.ColorAttachments = nil
}
