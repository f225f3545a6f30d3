package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	Images      []vk.Image

	// handles of Images, registered in the backend image table
	images []gpu.Image
}

// SwapchainCreate creates a swapchain for info. When info carries an old
// swapchain the driver may recycle its resources. The caller still destroys it.
func SwapchainCreate(context *VulkanContext, info gpu.SwapchainInfo, format vk.SurfaceFormat, old vk.Swapchain) (*VulkanSwapchain, error) {
	support, err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface)
	if err != nil {
		return nil, err
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      toVkExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(info.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	device := context.Device
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, createError("swapchain", res)
	}
	swapchain := &VulkanSwapchain{
		Handle:      handle,
		ImageFormat: format,
		Extent:      createInfo.ImageExtent,
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		swapchain.Destroy(context)
		return nil, callError("vkGetSwapchainImagesKHR", res)
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy(context)
		return nil, callError("vkGetSwapchainImagesKHR", res)
	}

	core.LogInfo("Swapchain created with %d images.", imageCount)
	return swapchain, nil
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	if vs.Handle == vk.NullSwapchain {
		return
	}
	// The images are owned by the swapchain and go away with it.
	vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
	vs.Handle = vk.NullSwapchain
	vs.Images = nil
}

func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailable vk.Semaphore) (uint32, gpu.Result) {
	var index uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailable, vk.NullFence, &index)
	return index, toResult(res)
}

// Present queues imageIndex for presentation once every semaphore in wait has
// been signaled.
func (vs *VulkanSwapchain) Present(context *VulkanContext, wait []vk.Semaphore, imageIndex uint32) gpu.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	_ = context.Locks.SafeQueueCall(context.Device.PresentQueueIndex, func() error {
		res = vk.QueuePresent(context.Device.PresentQueue, &presentInfo)
		return nil
	})
	return toResult(res)
}
