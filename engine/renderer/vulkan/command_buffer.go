package vulkan

import (
	vk "github.com/goki/vulkan"
)

func AllocateCommandBuffers(context *VulkanContext, count int) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        context.Device.GraphicsCommandPool,
		CommandBufferCount: uint32(count),
		Level:              vk.CommandBufferLevelPrimary,
	}
	err := context.Locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, buffers); res != vk.Success {
			return createError("command buffers", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

func FreeCommandBuffers(context *VulkanContext, buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	_ = context.Locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, uint32(len(buffers)), buffers)
		return nil
	})
}

func BeginCommandBuffer(cb vk.CommandBuffer, isSingleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cb, &beginInfo); res != vk.Success {
		return callError("vkBeginCommandBuffer", res)
	}
	return nil
}

func EndCommandBuffer(cb vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return callError("vkEndCommandBuffer", res)
	}
	return nil
}

// RunSingleUse allocates a one-shot command buffer, lets record fill it,
// submits it to the graphics queue, waits for the queue to drain and frees it.
func RunSingleUse(context *VulkanContext, record func(cb vk.CommandBuffer) error) error {
	buffers, err := AllocateCommandBuffers(context, 1)
	if err != nil {
		return err
	}
	defer FreeCommandBuffers(context, buffers)
	cb := buffers[0]

	if err := BeginCommandBuffer(cb, true); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		_ = EndCommandBuffer(cb)
		return err
	}
	if err := EndCommandBuffer(cb); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}
	return context.Locks.SafeQueueCall(context.Device.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return callError("vkQueueSubmit", res)
		}
		if res := vk.QueueWaitIdle(context.Device.GraphicsQueue); res != vk.Success {
			return callError("vkQueueWaitIdle", res)
		}
		return nil
	})
}
