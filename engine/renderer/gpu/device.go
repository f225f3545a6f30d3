package gpu

// Device is the GPU API surface the frame core is written against.
// Creation calls return core.ErrResourceCreation (wrapped) on failure; queue and
// swapchain calls report their outcome as a Result so callers can tell stale
// surfaces apart from fatal errors.
type Device interface {
	// surface and swapchain
	QuerySurfaceSupport(surface Surface) (SurfaceSupport, error)
	DepthFormat() (Format, error)
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	// SwapchainImages returns the images owned by the swapchain. They are
	// released with the swapchain and must not be passed to DestroyImage.
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	DestroySwapchain(swapchain Swapchain)
	AcquireNextImage(swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, Result)

	// images, attachments and passes
	CreateImage(info ImageInfo) (Image, error)
	DestroyImage(image Image)
	CreateImageView(info ImageViewInfo) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(sampler Sampler)
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
	// TransitionImageLayout records, submits and waits for a one-shot layout transition.
	TransitionImageLayout(image Image, format Format, oldLayout, newLayout ImageLayout) error

	// synchronization
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFence(fence Fence, timeout uint64) Result
	ResetFence(fence Fence) error

	// command buffers
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, singleUse bool) error
	EndCommandBuffer(cb CommandBuffer) error
	CmdBeginRenderPass(cb CommandBuffer, info RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBuffer)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, extent Extent2D)

	// queue
	QueueSubmit(submits []SubmitInfo, fence Fence) error
	QueuePresent(info PresentInfo) Result
	WaitIdle() error
}
