package vulkan

import (
	vk "github.com/goki/vulkan"
)

// FramebufferCreate binds attachments, in render pass order, to pass.
func FramebufferCreate(context *VulkanContext, pass vk.RenderPass, width, height uint32, attachments []vk.ImageView) (vk.Framebuffer, error) {
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &framebuffer); res != vk.Success {
		return nil, createError("framebuffer", res)
	}
	return framebuffer, nil
}
