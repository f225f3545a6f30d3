package gpu

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Srgb
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR8G8B8A8Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatR32G32B32A32Uint
)

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatR32G32Sfloat:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Sfloat:
		return "R32G32B32_SFLOAT"
	case FormatR32G32B32A32Sfloat:
		return "R32G32B32A32_SFLOAT"
	case FormatR32G32B32A32Uint:
		return "R32G32B32A32_UINT"
	}
	return "UNDEFINED"
}

// Size returns the byte size of one element of a vertex attribute format, or 0.
func (f Format) Size() uint32 {
	switch f {
	case FormatR32G32Sfloat:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat, FormatR32G32B32A32Uint:
		return 16
	}
	return 0
}

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type ColorSpace int

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

type PresentMode int

const (
	PresentModeFifo PresentMode = iota
	PresentModeFifoRelaxed
	PresentModeMailbox
	PresentModeImmediate
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo_relaxed"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	}
	return "unknown"
}

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutPresentSrc
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe PipelineStageFlags = 1 << iota
	PipelineStageFragmentShader
	PipelineStageEarlyFragmentTests
	PipelineStageLateFragmentTests
	PipelineStageColorAttachmentOutput
	PipelineStageBottomOfPipe
)

type AccessFlags uint32

const (
	AccessShaderRead AccessFlags = 1 << iota
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
)

type ImageUsageFlags uint32

const (
	ImageUsageColorAttachment ImageUsageFlags = 1 << iota
	ImageUsageDepthStencilAttachment
	ImageUsageSampled
)

type ImageAspectFlags uint32

const (
	ImageAspectColor ImageAspectFlags = 1 << iota
	ImageAspectDepth
	ImageAspectStencil
)

type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode int

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeClampToBorder
	AddressModeRepeat
)

type BorderColor int

const (
	BorderColorIntOpaqueBlack BorderColor = iota
	BorderColorFloatOpaqueWhite
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpLessOrEqual
	CompareOpAlways
)
