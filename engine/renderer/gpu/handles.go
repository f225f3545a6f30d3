package gpu

// Opaque handles issued by a Device. The zero value of every handle is the null handle.
type (
	Surface       uint64
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	Sampler       uint64
	RenderPass    uint64
	Framebuffer   uint64
	Semaphore     uint64
	Fence         uint64
	CommandBuffer uint64
)

const (
	NullSemaphore Semaphore = 0
	NullFence     Fence     = 0
	NullSwapchain Swapchain = 0
)

// MaxTimeout waits forever.
const MaxTimeout = ^uint64(0)

// SubpassExternal refers to commands outside the render pass in a SubpassDependency.
const SubpassExternal = ^uint32(0)

// UndefinedExtent is reported as the surface current extent when the window
// lets the swapchain decide its size.
const UndefinedExtent = ^uint32(0)

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}
