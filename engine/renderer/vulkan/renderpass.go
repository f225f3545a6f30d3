package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func attachmentDescription(a gpu.AttachmentDescription) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         toVkFormat(a.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         toVkLoadOp(a.LoadOp),
		StoreOp:        toVkStoreOp(a.StoreOp),
		StencilLoadOp:  toVkLoadOp(a.StencilLoadOp),
		StencilStoreOp: toVkStoreOp(a.StencilStoreOp),
		InitialLayout:  toVkImageLayout(a.InitialLayout),
		FinalLayout:    toVkImageLayout(a.FinalLayout),
	}
}

// RenderpassCreate builds a single subpass render pass. Color attachments come
// first, the depth attachment, if any, takes the last index.
func RenderpassCreate(context *VulkanContext, info gpu.RenderPassInfo) (vk.RenderPass, error) {
	descriptions := make([]vk.AttachmentDescription, 0, len(info.ColorAttachments)+1)
	colorReferences := make([]vk.AttachmentReference, 0, len(info.ColorAttachments))
	for i, a := range info.ColorAttachments {
		descriptions = append(descriptions, attachmentDescription(a))
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     toVkImageLayout(a.Layout),
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorReferences)),
		PColorAttachments:    colorReferences,
	}
	if info.DepthAttachment != nil {
		descriptions = append(descriptions, attachmentDescription(*info.DepthAttachment))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(descriptions) - 1),
			Layout:     toVkImageLayout(info.DepthAttachment.Layout),
		}
	}

	dependencies := make([]vk.SubpassDependency, len(info.Dependencies))
	for i, d := range info.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:    d.SrcSubpass,
			DstSubpass:    d.DstSubpass,
			SrcStageMask:  toVkPipelineStages(d.SrcStageMask),
			DstStageMask:  toVkPipelineStages(d.DstStageMask),
			SrcAccessMask: toVkAccess(d.SrcAccessMask),
			DstAccessMask: toVkAccess(d.DstAccessMask),
		}
		if d.ByRegion {
			dependencies[i].DependencyFlags = vk.DependencyFlags(vk.DependencyByRegionBit)
		}
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		PAttachments:    descriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &pass); res != vk.Success {
		return nil, createError("render pass", res)
	}
	return pass, nil
}

func RenderpassBegin(cb vk.CommandBuffer, pass vk.RenderPass, framebuffer vk.Framebuffer, extent gpu.Extent2D, clears []gpu.ClearValue) {
	clearValues := make([]vk.ClearValue, len(clears))
	for i, c := range clears {
		if c.IsDepth {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i].SetColor(c.Color[:])
		}
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toVkExtent(extent),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cb, &beginInfo, vk.SubpassContentsInline)
}
