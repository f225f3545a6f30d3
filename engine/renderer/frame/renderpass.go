package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type Renderpass struct {
	Handle     gpu.RenderPass
	R, G, B, A float32
	Depth      float32
	Stencil    uint32
	// HasColor is false for depth-only passes.
	HasColor bool
}

// NewPresentRenderpass builds the single-subpass color + depth pass used by the surface chain.
func NewPresentRenderpass(device gpu.Device, colorFormat, depthFormat gpu.Format, clearColor [4]float32) (*Renderpass, error) {
	info := gpu.RenderPassInfo{
		ColorAttachments: []gpu.AttachmentDescription{{
			Format:         colorFormat,
			LoadOp:         gpu.LoadOpClear,
			StoreOp:        gpu.StoreOpStore,
			StencilLoadOp:  gpu.LoadOpDontCare,
			StencilStoreOp: gpu.StoreOpDontCare,
			// Do not expect any particular layout before render pass starts.
			InitialLayout: gpu.ImageLayoutUndefined,
			// Transitioned to after the render pass
			FinalLayout: gpu.ImageLayoutPresentSrc,
			Layout:      gpu.ImageLayoutColorAttachmentOptimal,
		}},
		DepthAttachment: &gpu.AttachmentDescription{
			Format:         depthFormat,
			LoadOp:         gpu.LoadOpClear,
			StoreOp:        gpu.StoreOpDontCare,
			StencilLoadOp:  gpu.LoadOpDontCare,
			StencilStoreOp: gpu.StoreOpDontCare,
			InitialLayout:  gpu.ImageLayoutUndefined,
			FinalLayout:    gpu.ImageLayoutDepthStencilAttachmentOptimal,
			Layout:         gpu.ImageLayoutDepthStencilAttachmentOptimal,
		},
		Dependencies: []gpu.SubpassDependency{{
			SrcSubpass:    gpu.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  gpu.PipelineStageColorAttachmentOutput | gpu.PipelineStageEarlyFragmentTests,
			DstStageMask:  gpu.PipelineStageColorAttachmentOutput | gpu.PipelineStageEarlyFragmentTests,
			DstAccessMask: gpu.AccessColorAttachmentWrite | gpu.AccessDepthStencilAttachmentWrite,
		}},
	}
	handle, err := device.CreateRenderPass(info)
	if err != nil {
		err = fmt.Errorf("failed to create present render pass: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Renderpass{
		Handle:   handle,
		R:        clearColor[0],
		G:        clearColor[1],
		B:        clearColor[2],
		A:        clearColor[3],
		Depth:    1.0,
		HasColor: true,
	}, nil
}

// NewShadowRenderpass builds the depth-only pass rendered into shadow targets.
// The targets stay in SHADER_READ_ONLY layout outside the pass so the color
// pass can sample them.
func NewShadowRenderpass(device gpu.Device, depthFormat gpu.Format) (*Renderpass, error) {
	info := gpu.RenderPassInfo{
		DepthAttachment: &gpu.AttachmentDescription{
			Format:         depthFormat,
			LoadOp:         gpu.LoadOpClear,
			StoreOp:        gpu.StoreOpStore,
			StencilLoadOp:  gpu.LoadOpDontCare,
			StencilStoreOp: gpu.StoreOpDontCare,
			InitialLayout:  gpu.ImageLayoutShaderReadOnlyOptimal,
			FinalLayout:    gpu.ImageLayoutShaderReadOnlyOptimal,
			Layout:         gpu.ImageLayoutDepthStencilAttachmentOptimal,
		},
		Dependencies: []gpu.SubpassDependency{
			{
				// The previous tick's color pass must finish sampling before depth is written again.
				SrcSubpass:    gpu.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  gpu.PipelineStageFragmentShader,
				DstStageMask:  gpu.PipelineStageEarlyFragmentTests,
				SrcAccessMask: gpu.AccessShaderRead,
				DstAccessMask: gpu.AccessDepthStencilAttachmentWrite,
				ByRegion:      true,
			},
			{
				SrcSubpass:    0,
				DstSubpass:    gpu.SubpassExternal,
				SrcStageMask:  gpu.PipelineStageLateFragmentTests,
				DstStageMask:  gpu.PipelineStageFragmentShader,
				SrcAccessMask: gpu.AccessDepthStencilAttachmentWrite,
				DstAccessMask: gpu.AccessShaderRead,
				ByRegion:      true,
			},
		},
	}
	handle, err := device.CreateRenderPass(info)
	if err != nil {
		err = fmt.Errorf("failed to create shadow render pass: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Renderpass{Handle: handle, Depth: 1.0}, nil
}

func (rp *Renderpass) Destroy(device gpu.Device) {
	if rp.Handle != 0 {
		device.DestroyRenderPass(rp.Handle)
		rp.Handle = 0
	}
}

func (rp *Renderpass) clearValues() []gpu.ClearValue {
	depth := gpu.ClearValue{Depth: rp.Depth, Stencil: rp.Stencil, IsDepth: true}
	if !rp.HasColor {
		return []gpu.ClearValue{depth}
	}
	return []gpu.ClearValue{{Color: [4]float32{rp.R, rp.G, rp.B, rp.A}}, depth}
}

// Begin starts the pass over the whole of extent and sets a matching viewport and scissor.
func (rp *Renderpass) Begin(device gpu.Device, cb *CommandBuffer, fb gpu.Framebuffer, extent gpu.Extent2D) error {
	if err := cb.BeginRenderPass(device, gpu.RenderPassBeginInfo{
		RenderPass:  rp.Handle,
		Framebuffer: fb,
		Extent:      extent,
		ClearValues: rp.clearValues(),
	}); err != nil {
		return err
	}
	device.CmdSetViewport(cb.Handle, gpu.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	device.CmdSetScissor(cb.Handle, extent)
	return nil
}

func (rp *Renderpass) End(device gpu.Device, cb *CommandBuffer) error {
	return cb.EndRenderPass(device)
}
