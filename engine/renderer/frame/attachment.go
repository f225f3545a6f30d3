package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Attachment is an image with a single view over it. Images that belong to a
// swapchain are not owned and only their view is destroyed.
type Attachment struct {
	Image  gpu.Image
	View   gpu.ImageView
	Format gpu.Format
	Extent gpu.Extent2D
	owned  bool
}

// NewAttachment allocates a device-local image and a view of it.
func NewAttachment(device gpu.Device, info gpu.ImageInfo, aspect gpu.ImageAspectFlags) (*Attachment, error) {
	img, err := device.CreateImage(info)
	if err != nil {
		err = fmt.Errorf("failed to create image %q: %w", info.Name, err)
		core.LogError(err.Error())
		return nil, err
	}
	a := &Attachment{Image: img, Format: info.Format, Extent: info.Extent, owned: true}
	view, err := device.CreateImageView(gpu.ImageViewInfo{Image: img, Format: info.Format, Aspect: aspect})
	if err != nil {
		a.Destroy(device)
		err = fmt.Errorf("failed to create image view %q: %w", info.Name, err)
		core.LogError(err.Error())
		return nil, err
	}
	a.View = view
	return a, nil
}

// WrapSwapchainImage creates a color view over an image owned by a swapchain.
func WrapSwapchainImage(device gpu.Device, img gpu.Image, format gpu.Format, extent gpu.Extent2D) (*Attachment, error) {
	view, err := device.CreateImageView(gpu.ImageViewInfo{Image: img, Format: format, Aspect: gpu.ImageAspectColor})
	if err != nil {
		err = fmt.Errorf("failed to create swapchain image view: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Attachment{Image: img, View: view, Format: format, Extent: extent}, nil
}

func (a *Attachment) Destroy(device gpu.Device) {
	if a.View != 0 {
		device.DestroyImageView(a.View)
		a.View = 0
	}
	if a.owned && a.Image != 0 {
		device.DestroyImage(a.Image)
	}
	a.Image = 0
}

type Framebuffer struct {
	Handle      gpu.Framebuffer
	Extent      gpu.Extent2D
	Attachments []gpu.ImageView
	Renderpass  *Renderpass
}

func NewFramebuffer(device gpu.Device, renderpass *Renderpass, extent gpu.Extent2D, attachments ...gpu.ImageView) (*Framebuffer, error) {
	// Take a copy of the attachments
	views := append([]gpu.ImageView(nil), attachments...)
	handle, err := device.CreateFramebuffer(gpu.FramebufferInfo{
		RenderPass:  renderpass.Handle,
		Attachments: views,
		Extent:      extent,
	})
	if err != nil {
		err = fmt.Errorf("failed to create framebuffer: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Framebuffer{Handle: handle, Extent: extent, Attachments: views, Renderpass: renderpass}, nil
}

func (fb *Framebuffer) Destroy(device gpu.Device) {
	if fb.Handle != 0 {
		device.DestroyFramebuffer(fb.Handle)
	}
	fb.Handle = 0
	fb.Attachments = nil
	fb.Renderpass = nil
}
