package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// VulkanImage is an image the backend allocated memory for. Swapchain images
// are tracked with owned unset and are released with their swapchain.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Width  uint32
	Height uint32
	Format vk.Format
	Name   string

	owned     bool
	swapchain gpu.Swapchain
}

func ImageCreate(context *VulkanContext, info gpu.ImageInfo) (*VulkanImage, error) {
	img := &VulkanImage{
		Width:  info.Extent.Width,
		Height: info.Extent.Height,
		Format: toVkFormat(info.Format),
		Name:   info.Name,
		owned:  true,
	}
	logical := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        img.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         toVkImageUsage(info.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(logical, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, createError("image "+info.Name, res)
	}
	img.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(logical, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		vk.DestroyImage(logical, handle, context.Allocator)
		return nil, createError("image memory for "+info.Name, vk.ErrorOutOfDeviceMemory)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(logical, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(logical, handle, context.Allocator)
		return nil, createError("image memory for "+info.Name, res)
	}
	img.Memory = memory

	// TODO: use a memory offset once images are suballocated from a shared block.
	if res := vk.BindImageMemory(logical, handle, memory, 0); res != vk.Success {
		img.Destroy(context)
		return nil, createError("image memory binding for "+info.Name, res)
	}
	return img, nil
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	if !img.owned {
		return
	}
	logical := context.Device.LogicalDevice
	if img.Memory != nil {
		vk.FreeMemory(logical, img.Memory, context.Allocator)
		img.Memory = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(logical, img.Handle, context.Allocator)
		img.Handle = nil
	}
}

func ImageViewCreate(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		return nil, createError("image view", res)
	}
	return view, nil
}

type layoutTransition struct {
	srcAccess, dstAccess vk.AccessFlagBits
	srcStage, dstStage   vk.PipelineStageFlagBits
}

// transitionBarriers lists the layout changes the frame core performs.
func transitionBarriers(oldLayout, newLayout gpu.ImageLayout) (layoutTransition, bool) {
	switch {
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutShaderReadOnlyOptimal:
		return layoutTransition{
			dstAccess: vk.AccessShaderReadBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageFragmentShaderBit,
		}, true
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutDepthStencilAttachmentOptimal:
		return layoutTransition{
			dstAccess: vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageEarlyFragmentTestsBit,
		}, true
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutColorAttachmentOptimal:
		return layoutTransition{
			dstAccess: vk.AccessColorAttachmentWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageColorAttachmentOutputBit,
		}, true
	case oldLayout == gpu.ImageLayoutDepthStencilAttachmentOptimal && newLayout == gpu.ImageLayoutShaderReadOnlyOptimal:
		return layoutTransition{
			srcAccess: vk.AccessDepthStencilAttachmentWriteBit,
			dstAccess: vk.AccessShaderReadBit,
			srcStage:  vk.PipelineStageLateFragmentTestsBit,
			dstStage:  vk.PipelineStageFragmentShaderBit,
		}, true
	}
	return layoutTransition{}, false
}

// cmdTransitionLayout records a pipeline barrier moving img from oldLayout to newLayout.
func cmdTransitionLayout(cb vk.CommandBuffer, img *VulkanImage, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	t, ok := transitionBarriers(oldLayout, newLayout)
	if !ok {
		return core.Invariantf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(t.srcAccess),
		DstAccessMask:       vk.AccessFlags(t.dstAccess),
		OldLayout:           toVkImageLayout(oldLayout),
		NewLayout:           toVkImageLayout(newLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectOf(format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(t.srcStage),
		vk.PipelineStageFlags(t.dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}
