package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:          vk.FormatUndefined,
	gpu.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	gpu.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	gpu.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	gpu.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	gpu.FormatD32Sfloat:          vk.FormatD32Sfloat,
	gpu.FormatD32SfloatS8Uint:    vk.FormatD32SfloatS8Uint,
	gpu.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
	gpu.FormatR32G32Sfloat:       vk.FormatR32g32Sfloat,
	gpu.FormatR32G32B32Sfloat:    vk.FormatR32g32b32Sfloat,
	gpu.FormatR32G32B32A32Sfloat: vk.FormatR32g32b32a32Sfloat,
	gpu.FormatR32G32B32A32Uint:   vk.FormatR32g32b32a32Uint,
}

func toVkFormat(f gpu.Format) vk.Format {
	return formats[f]
}

// fromVkFormat returns gpu.FormatUndefined for formats the frame core never asks for.
func fromVkFormat(f vk.Format) gpu.Format {
	for g, v := range formats {
		if v == f {
			return g
		}
	}
	return gpu.FormatUndefined
}

func fromVkColorSpace(c vk.ColorSpace) gpu.ColorSpace {
	if c == vk.ColorSpaceSrgbNonlinear {
		return gpu.ColorSpaceSrgbNonlinear
	}
	return gpu.ColorSpaceOther
}

func toVkPresentMode(p gpu.PresentMode) vk.PresentMode {
	switch p {
	case gpu.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	case gpu.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentModeImmediate:
		return vk.PresentModeImmediate
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(p vk.PresentMode) (gpu.PresentMode, bool) {
	switch p {
	case vk.PresentModeFifo:
		return gpu.PresentModeFifo, true
	case vk.PresentModeFifoRelaxed:
		return gpu.PresentModeFifoRelaxed, true
	case vk.PresentModeMailbox:
		return gpu.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return gpu.PresentModeImmediate, true
	}
	return 0, false
}

func toVkImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutColorAttachmentOptimal:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.ImageLayoutShaderReadOnlyOptimal:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkPipelineStages(s gpu.PipelineStageFlags) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	if s&gpu.PipelineStageTopOfPipe != 0 {
		out |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpu.PipelineStageFragmentShader != 0 {
		out |= vk.PipelineStageFragmentShaderBit
	}
	if s&gpu.PipelineStageEarlyFragmentTests != 0 {
		out |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if s&gpu.PipelineStageLateFragmentTests != 0 {
		out |= vk.PipelineStageLateFragmentTestsBit
	}
	if s&gpu.PipelineStageColorAttachmentOutput != 0 {
		out |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&gpu.PipelineStageBottomOfPipe != 0 {
		out |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(out)
}

func toVkAccess(a gpu.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlagBits
	if a&gpu.AccessShaderRead != 0 {
		out |= vk.AccessShaderReadBit
	}
	if a&gpu.AccessColorAttachmentRead != 0 {
		out |= vk.AccessColorAttachmentReadBit
	}
	if a&gpu.AccessColorAttachmentWrite != 0 {
		out |= vk.AccessColorAttachmentWriteBit
	}
	if a&gpu.AccessDepthStencilAttachmentRead != 0 {
		out |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&gpu.AccessDepthStencilAttachmentWrite != 0 {
		out |= vk.AccessDepthStencilAttachmentWriteBit
	}
	return vk.AccessFlags(out)
}

func toVkImageUsage(u gpu.ImageUsageFlags) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpu.ImageUsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	return vk.ImageUsageFlags(out)
}

func toVkAspect(a gpu.ImageAspectFlags) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&gpu.ImageAspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&gpu.ImageAspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	if a&gpu.ImageAspectStencil != 0 {
		out |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(out)
}

// aspectOf picks the aspect to transition for a format.
func aspectOf(f gpu.Format) vk.ImageAspectFlags {
	switch f {
	case gpu.FormatD32Sfloat:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func toVkLoadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case gpu.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpClear
}

func toVkStoreOp(op gpu.StoreOp) vk.AttachmentStoreOp {
	if op == gpu.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func toVkFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkAddressMode(m gpu.AddressMode) vk.SamplerAddressMode {
	switch m {
	case gpu.AddressModeClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	case gpu.AddressModeRepeat:
		return vk.SamplerAddressModeRepeat
	}
	return vk.SamplerAddressModeClampToEdge
}

func toVkBorderColor(c gpu.BorderColor) vk.BorderColor {
	if c == gpu.BorderColorFloatOpaqueWhite {
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorIntOpaqueBlack
}

func toVkCompareOp(op gpu.CompareOp) vk.CompareOp {
	switch op {
	case gpu.CompareOpLess:
		return vk.CompareOpLess
	case gpu.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func toVkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func toVkExtent(e gpu.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}
