package gputest

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var _ gpu.Device = (*Device)(nil)

func (d *Device) QuerySurfaceSupport(surface gpu.Surface) (gpu.SurfaceSupport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surfaceCalls++
	if err := d.fail("QuerySurfaceSupport"); err != nil {
		return gpu.SurfaceSupport{}, err
	}
	if surface == 0 {
		return gpu.SurfaceSupport{}, fmt.Errorf("%w: null surface", core.ErrSurfaceLost)
	}
	support := d.Support
	support.Formats = append([]gpu.SurfaceFormat(nil), d.Support.Formats...)
	support.PresentModes = append([]gpu.PresentMode(nil), d.Support.PresentModes...)
	return support, nil
}

func (d *Device) DepthFormat() (gpu.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("DepthFormat"); err != nil {
		return gpu.FormatUndefined, err
	}
	return d.Depth, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSwapchain"); err != nil {
		return 0, err
	}
	if info.Extent.IsZero() {
		d.violate("swapchain created with zero extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.OldSwapchain != 0 {
		if _, ok := d.swapchains[info.OldSwapchain]; !ok {
			d.violate("old swapchain %d is not live", info.OldSwapchain)
		}
	}
	sc := gpu.Swapchain(d.track(KindSwapchain))
	chain := &swapchain{info: info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		chain.images = append(chain.images, gpu.Image(d.ids.Next()))
	}
	d.swapchains[sc] = chain
	return sc, nil
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		return nil, fmt.Errorf("%w: swapchain %d is not live", core.ErrInvariant, sc)
	}
	return append([]gpu.Image(nil), chain.images...), nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindSwapchain, uint64(sc)) {
		delete(d.swapchains, sc)
	}
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		d.violate("acquire on swapchain %d that is not live", sc)
		return 0, gpu.ErrorSurfaceLost
	}
	result := gpu.Success
	if len(d.acquireScript) > 0 {
		result = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
	}
	if result != gpu.Success && result != gpu.Suboptimal {
		d.acquires = append(d.acquires, AcquireRecord{Swapchain: sc, Signal: signal, Result: result})
		return 0, result
	}

	var index uint32
	if len(d.acquireOrder) > 0 {
		index = d.acquireOrder[0] % uint32(len(chain.images))
		d.acquireOrder = d.acquireOrder[1:]
	} else {
		index = uint32(chain.next % len(chain.images))
		chain.next++
	}
	if signal != gpu.NullSemaphore {
		if d.semaphores[signal] {
			d.violate("acquire signals semaphore %d that is already signaled", signal)
		}
		d.semaphores[signal] = true
	}
	d.acquires = append(d.acquires, AcquireRecord{Swapchain: sc, ImageIndex: index, Signal: signal, Result: result})
	return index, result
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImage"); err != nil {
		return 0, err
	}
	img := gpu.Image(d.track(KindImage))
	d.images[img] = info
	return img, nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindImage, uint64(img)) {
		delete(d.images, img)
	}
}

func (d *Device) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	if info.Image == 0 {
		d.violate("image view of null image")
	}
	return gpu.ImageView(d.track(KindImageView)), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindImageView, uint64(view))
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSampler"); err != nil {
		return 0, err
	}
	return gpu.Sampler(d.track(KindSampler)), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindSampler, uint64(sampler))
}

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateRenderPass"); err != nil {
		return 0, err
	}
	if len(info.ColorAttachments) == 0 && info.DepthAttachment == nil {
		d.violate("render pass without attachments")
	}
	return gpu.RenderPass(d.track(KindRenderPass)), nil
}

func (d *Device) DestroyRenderPass(pass gpu.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindRenderPass, uint64(pass))
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if _, ok := d.live[KindRenderPass][uint64(info.RenderPass)]; !ok {
		d.violate("framebuffer against render pass %d that is not live", info.RenderPass)
	}
	fb := gpu.Framebuffer(d.track(KindFramebuffer))
	d.framebuffers[fb] = info
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindFramebuffer, uint64(fb)) {
		delete(d.framebuffers, fb)
	}
}

func (d *Device) TransitionImageLayout(img gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("TransitionImageLayout"); err != nil {
		return err
	}
	d.transitions = append(d.transitions, Transition{Image: img, OldLayout: oldLayout, NewLayout: newLayout})
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	s := gpu.Semaphore(d.track(KindSemaphore))
	d.semaphores[s] = false
	return s, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindSemaphore, uint64(s)) {
		delete(d.semaphores, s)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFence"); err != nil {
		return 0, err
	}
	f := gpu.Fence(d.track(KindFence))
	if signaled {
		d.fences[f] = fenceSignaled
	} else {
		d.fences[f] = fenceIdle
	}
	return f, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindFence, uint64(f)) {
		if d.fences[f] == fencePending {
			d.violate("fence %d destroyed while GPU work is pending", f)
		}
		delete(d.fences, f)
		delete(d.fenceLast, f)
	}
}

// WaitForFence completes the fence's work immediately. Waiting on a fence
// that was reset and never submitted would block forever on a real device,
// so it is reported as a violation and returns Timeout.
func (d *Device) WaitForFence(f gpu.Fence, timeout uint64) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fenceWaits++
	state, ok := d.fences[f]
	if !ok {
		d.violate("wait on fence %d that is not live", f)
		return gpu.ErrorDeviceLost
	}
	switch state {
	case fenceSignaled:
		return gpu.Success
	case fenceIdle:
		d.violate("wait on fence %d that has no pending work: deadlock", f)
		return gpu.Timeout
	}
	d.completeThrough(d.fenceLast[f])
	return gpu.Success
}

func (d *Device) ResetFence(f gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("ResetFence"); err != nil {
		return err
	}
	state, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("%w: reset of fence %d that is not live", core.ErrInvariant, f)
	}
	if state == fencePending {
		d.violate("reset of fence %d while GPU work is pending", f)
	}
	d.fences[f] = fenceIdle
	return nil
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = gpu.CommandBuffer(d.track(KindCommandBuffer))
		d.buffers[out[i]] = &commandBuffer{}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range buffers {
		if state, ok := d.buffers[cb]; ok && state.last != nil && !state.last.done {
			d.violate("command buffer %d freed while pending", cb)
		}
		if d.release(KindCommandBuffer, uint64(cb)) {
			delete(d.buffers, cb)
		}
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, singleUse bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	state, ok := d.buffers[cb]
	if !ok {
		return fmt.Errorf("%w: command buffer %d is not allocated", core.ErrInvariant, cb)
	}
	if state.recording {
		d.violate("begin on command buffer %d that is already recording", cb)
	}
	if state.last != nil && !state.last.done {
		d.violate("command buffer %d re-recorded while its last submission is pending", cb)
	}
	state.recording = true
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("EndCommandBuffer"); err != nil {
		return err
	}
	state, ok := d.buffers[cb]
	if !ok {
		return fmt.Errorf("%w: command buffer %d is not allocated", core.ErrInvariant, cb)
	}
	if !state.recording {
		d.violate("end on command buffer %d that is not recording", cb)
	}
	if state.inPass {
		d.violate("end on command buffer %d inside a render pass", cb)
	}
	state.recording = false
	return nil
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.buffers[cb]
	if !ok || !state.recording {
		d.violate("render pass begun on command buffer %d that is not recording", cb)
		return
	}
	if state.inPass {
		d.violate("nested render pass on command buffer %d", cb)
	}
	if fbInfo, ok := d.framebuffers[info.Framebuffer]; !ok {
		d.violate("render pass begun with framebuffer %d that is not live", info.Framebuffer)
	} else if fbInfo.Extent != info.Extent {
		d.violate("render area %v differs from framebuffer extent %v", info.Extent, fbInfo.Extent)
	}
	state.inPass = true
	d.passBegins = append(d.passBegins, info)
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.buffers[cb]
	if !ok || !state.inPass {
		d.violate("end render pass on command buffer %d outside a render pass", cb)
		return
	}
	state.inPass = false
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, viewport gpu.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewports = append(d.viewports, viewport)
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, extent gpu.Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scissors = append(d.scissors, extent)
}

func (d *Device) QueueSubmit(submits []gpu.SubmitInfo, fence gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("QueueSubmit"); err != nil {
		return err
	}
	if fence != gpu.NullFence {
		state, ok := d.fences[fence]
		if !ok {
			return fmt.Errorf("%w: submit with fence %d that is not live", core.ErrInvariant, fence)
		}
		if state != fenceIdle {
			d.violate("submit with fence %d that is not reset", fence)
		}
	}

	var last *submission
	for _, info := range submits {
		if len(info.WaitSemaphores) != len(info.WaitStages) {
			d.violate("submit has %d wait semaphores but %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
		}
		for _, s := range info.WaitSemaphores {
			if !d.semaphores[s] {
				d.violate("submit waits on semaphore %d that has no pending signal", s)
			}
			d.semaphores[s] = false
		}
		for _, s := range info.SignalSemaphores {
			if d.semaphores[s] {
				d.violate("submit signals semaphore %d that is already signaled", s)
			}
			d.semaphores[s] = true
		}
		for _, cb := range info.CommandBuffers {
			state, ok := d.buffers[cb]
			if !ok {
				d.violate("submit of command buffer %d that is not allocated", cb)
				continue
			}
			if state.recording {
				d.violate("submit of command buffer %d that is still recording", cb)
			}
		}
		sub := &submission{
			id:       len(d.submissions),
			info:     info,
			buffers:  info.CommandBuffers,
			signaled: info.SignalSemaphores,
		}
		d.submissions = append(d.submissions, sub)
		for _, cb := range info.CommandBuffers {
			if state, ok := d.buffers[cb]; ok {
				state.last = sub
			}
		}
		last = sub
	}
	if last != nil && fence != gpu.NullFence {
		last.fence = fence
		d.fenceLast[fence] = last
		d.fences[fence] = fencePending
	}
	d.submits = append(d.submits, SubmitRecord{Infos: append([]gpu.SubmitInfo(nil), submits...), Fence: fence})
	if n := d.pendingFences(); n > d.maxUnsignal {
		d.maxUnsignal = n
	}
	return nil
}

// QueuePresent attributes the most recent submission as the writer of the
// presented image and checks the previous writer of that image had finished.
func (d *Device) QueuePresent(info gpu.PresentInfo) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[info.Swapchain]
	if !ok {
		d.violate("present to swapchain %d that is not live", info.Swapchain)
		return gpu.ErrorSurfaceLost
	}
	for _, s := range info.WaitSemaphores {
		if !d.semaphores[s] {
			d.violate("present waits on semaphore %d that has no pending signal", s)
		}
		d.semaphores[s] = false
	}

	key := imageKey{swapchain: info.Swapchain, index: info.ImageIndex}
	if len(d.submissions) > 0 {
		writer := d.submissions[len(d.submissions)-1]
		if prior := d.imageWriters[key]; prior != nil && prior != writer && !prior.done {
			d.violate("image %d written by submission %d while submission %d still writes it", info.ImageIndex, writer.id, prior.id)
		}
		d.imageWriters[key] = writer
	}

	result := gpu.Success
	if len(d.presentScript) > 0 {
		result = d.presentScript[0]
		d.presentScript = d.presentScript[1:]
	}
	d.presents = append(d.presents, PresentRecord{
		Swapchain:  info.Swapchain,
		ImageIndex: info.ImageIndex,
		Extent:     chain.info.Extent,
		Waits:      append([]gpu.Semaphore(nil), info.WaitSemaphores...),
		Result:     result,
	})
	return result
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdle++
	if err := d.fail("WaitIdle"); err != nil {
		return err
	}
	if len(d.submissions) > 0 {
		d.completeThrough(d.submissions[len(d.submissions)-1])
	}
	return nil
}
