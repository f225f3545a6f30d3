package gpu

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of 0 means the surface imposes no maximum.
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	// OldSwapchain lets the driver recycle resources of the chain being replaced.
	OldSwapchain Swapchain
}

type ImageInfo struct {
	Extent Extent2D
	Format Format
	Usage  ImageUsageFlags
	// Name is attached as a debug label when the backend supports it.
	Name string
}

type ImageViewInfo struct {
	Image  Image
	Format Format
	Aspect ImageAspectFlags
}

type AttachmentDescription struct {
	Format         Format
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
	// Layout used while the subpass references the attachment.
	Layout ImageLayout
}

type SubpassDependency struct {
	SrcSubpass    uint32
	DstSubpass    uint32
	SrcStageMask  PipelineStageFlags
	DstStageMask  PipelineStageFlags
	SrcAccessMask AccessFlags
	DstAccessMask AccessFlags
	ByRegion      bool
}

// RenderPassInfo describes a single-subpass render pass.
type RenderPassInfo struct {
	ColorAttachments []AttachmentDescription
	DepthAttachment  *AttachmentDescription
	Dependencies     []SubpassDependency
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type SamplerInfo struct {
	MagFilter     Filter
	MinFilter     Filter
	AddressMode   AddressMode
	BorderColor   BorderColor
	CompareEnable bool
	CompareOp     CompareOp
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	// IsDepth selects the depth/stencil member instead of Color.
	IsDepth bool
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearValues []ClearValue
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

// DescriptorImageInfo is what a render system binds to sample a shadow map.
type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}
