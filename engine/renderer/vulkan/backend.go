package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// The backend drives a single window surface.
const primarySurface gpu.Surface = 1

// SurfaceProvider is the window the backend presents to.
type SurfaceProvider interface {
	RequiredInstanceExtensions() []string
	// CreateWindowSurface returns the VkSurfaceKHR of the window as a raw pointer.
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

type Options struct {
	ApplicationName    string
	EnableValidation   bool
	RequireDiscreteGPU bool
}

// Backend implements gpu.Device on top of Vulkan.
type Backend struct {
	context     *VulkanContext
	depthFormat vk.Format
	// depthLinear is false when depthFormat cannot be sampled with linear filtering.
	depthLinear bool
	debug       bool

	swapchains     *table[gpu.Swapchain, *VulkanSwapchain]
	images         *table[gpu.Image, *VulkanImage]
	views          *table[gpu.ImageView, vk.ImageView]
	samplers       *table[gpu.Sampler, vk.Sampler]
	renderPasses   *table[gpu.RenderPass, vk.RenderPass]
	framebuffers   *table[gpu.Framebuffer, vk.Framebuffer]
	semaphores     *table[gpu.Semaphore, vk.Semaphore]
	fences         *table[gpu.Fence, vk.Fence]
	commandBuffers *table[gpu.CommandBuffer, vk.CommandBuffer]
}

var _ gpu.Device = (*Backend)(nil)

// New creates the instance, the window surface and the logical device.
// glfw must already be initialized.
func New(window SurfaceProvider, opts Options) (*Backend, error) {
	b := &Backend{
		context: &VulkanContext{
			Locks: NewVulkanLockPool(),
		},
		debug:          opts.EnableValidation,
		swapchains:     newTable[gpu.Swapchain, *VulkanSwapchain](),
		images:         newTable[gpu.Image, *VulkanImage](),
		views:          newTable[gpu.ImageView, vk.ImageView](),
		samplers:       newTable[gpu.Sampler, vk.Sampler](),
		renderPasses:   newTable[gpu.RenderPass, vk.RenderPass](),
		framebuffers:   newTable[gpu.Framebuffer, vk.Framebuffer](),
		semaphores:     newTable[gpu.Semaphore, vk.Semaphore](),
		fences:         newTable[gpu.Fence, vk.Fence](),
		commandBuffers: newTable[gpu.CommandBuffer, vk.CommandBuffer](),
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrResourceCreation)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %s: %w", err, core.ErrResourceCreation)
	}

	if err := b.createInstance(opts.ApplicationName, window.RequiredInstanceExtensions()); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(b.context.Instance)
	if err != nil {
		b.Shutdown()
		return nil, fmt.Errorf("vulkan surface creation failed: %s: %w", err, core.ErrResourceCreation)
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	device, err := DeviceCreate(b.context, VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          opts.RequireDiscreteGPU,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	})
	if err != nil {
		b.Shutdown()
		return nil, err
	}
	b.context.Device = device

	if format, linear, ok := DeviceDetectDepthFormat(device.PhysicalDevice); ok {
		b.depthFormat = format
		b.depthLinear = linear
		if !linear {
			core.LogWarn("depth format %d has no linear filtering, shadow samplers fall back to nearest", format)
		}
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return b, nil
}

func (b *Backend) createInstance(appName string, windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Penumbra"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := append([]string{"VK_KHR_surface"}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if b.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("Required extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if b.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		found, err := hasInstanceLayer(validationLayerName)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s: %w", validationLayerName, core.ErrResourceCreation)
		}
		layers = []string{validationLayerName}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &instance); res != vk.Success {
		return createError("Vulkan instance", res)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, b.context.Allocator)
		return fmt.Errorf("failed to load instance functions: %s: %w", err, core.ErrResourceCreation)
	}
	b.context.Instance = instance
	core.LogInfo("Vulkan Instance created.")

	if b.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, b.context.Allocator, &dbg); res != vk.Success {
			return createError("debug report callback", res)
		}
		b.context.debugReport = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func hasInstanceLayer(name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, callError("vkEnumerateInstanceLayerProperties", res)
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false, callError("vkEnumerateInstanceLayerProperties", res)
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// Shutdown releases every object still registered and then the device,
// surface and instance, in the opposite order of creation.
func (b *Backend) Shutdown() {
	ctx := b.context
	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
		b.releaseLeaked()
		ctx.Device.Destroy(ctx)
		ctx.Device = nil
	}
	if ctx.debugReport != nil {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugReport, ctx.Allocator)
		ctx.debugReport = nil
	}
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
	core.LogInfo("Vulkan backend shut down.")
}

func (b *Backend) releaseLeaked() {
	ctx := b.context
	logical := ctx.Device.LogicalDevice
	leaked := 0

	buffers := b.commandBuffers.drain()
	leaked += len(buffers)
	FreeCommandBuffers(ctx, buffers)
	for _, f := range b.fences.drain() {
		vk.DestroyFence(logical, f, ctx.Allocator)
		leaked++
	}
	for _, s := range b.semaphores.drain() {
		vk.DestroySemaphore(logical, s, ctx.Allocator)
		leaked++
	}
	for _, fb := range b.framebuffers.drain() {
		vk.DestroyFramebuffer(logical, fb, ctx.Allocator)
		leaked++
	}
	for _, rp := range b.renderPasses.drain() {
		vk.DestroyRenderPass(logical, rp, ctx.Allocator)
		leaked++
	}
	for _, s := range b.samplers.drain() {
		vk.DestroySampler(logical, s, ctx.Allocator)
		leaked++
	}
	for _, v := range b.views.drain() {
		vk.DestroyImageView(logical, v, ctx.Allocator)
		leaked++
	}
	for _, img := range b.images.drain() {
		if img.owned {
			img.Destroy(ctx)
			leaked++
		}
	}
	for _, sc := range b.swapchains.drain() {
		sc.Destroy(ctx)
		leaked++
	}
	if leaked > 0 {
		core.LogWarn("released %d GPU objects that were still alive at shutdown", leaked)
	}
}

func (b *Backend) logical() vk.Device {
	return b.context.Device.LogicalDevice
}

func unknownHandle(kind string, h uint64) error {
	return core.Invariantf("unknown %s handle %d", kind, h)
}

func (b *Backend) QuerySurfaceSupport(surface gpu.Surface) (gpu.SurfaceSupport, error) {
	if surface != primarySurface {
		return gpu.SurfaceSupport{}, unknownHandle("surface", uint64(surface))
	}
	info, err := DeviceQuerySwapchainSupport(b.context.Device.PhysicalDevice, b.context.Surface)
	if err != nil {
		return gpu.SurfaceSupport{}, err
	}

	caps := info.Capabilities
	support := gpu.SurfaceSupport{
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  fromVkExtent(caps.CurrentExtent),
			MinImageExtent: fromVkExtent(caps.MinImageExtent),
			MaxImageExtent: fromVkExtent(caps.MaxImageExtent),
		},
	}
	for _, f := range info.Formats {
		format := fromVkFormat(f.Format)
		if format == gpu.FormatUndefined {
			continue
		}
		support.Formats = append(support.Formats, gpu.SurfaceFormat{Format: format, ColorSpace: fromVkColorSpace(f.ColorSpace)})
	}
	for _, m := range info.PresentModes {
		if mode, ok := fromVkPresentMode(m); ok {
			support.PresentModes = append(support.PresentModes, mode)
		}
	}
	return support, nil
}

// Surface returns the handle of the window surface for the frame core.
func (b *Backend) Surface() gpu.Surface {
	return primarySurface
}

func (b *Backend) DepthFormat() (gpu.Format, error) {
	format := fromVkFormat(b.depthFormat)
	if format == gpu.FormatUndefined {
		return gpu.FormatUndefined, fmt.Errorf("no supported depth format: %w", core.ErrResourceCreation)
	}
	return format, nil
}

// surfaceFormat finds the native format the frame core picked from QuerySurfaceSupport.
func (b *Backend) surfaceFormat(want gpu.SurfaceFormat) (vk.SurfaceFormat, error) {
	info, err := DeviceQuerySwapchainSupport(b.context.Device.PhysicalDevice, b.context.Surface)
	if err != nil {
		return vk.SurfaceFormat{}, err
	}
	for _, f := range info.Formats {
		if fromVkFormat(f.Format) == want.Format && fromVkColorSpace(f.ColorSpace) == want.ColorSpace {
			return f, nil
		}
	}
	return vk.SurfaceFormat{}, fmt.Errorf("surface format %s is not supported: %w", want.Format, core.ErrResourceCreation)
}

func (b *Backend) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	if info.Surface != primarySurface {
		return 0, unknownHandle("surface", uint64(info.Surface))
	}
	format, err := b.surfaceFormat(info.Format)
	if err != nil {
		return 0, err
	}
	old := vk.NullSwapchain
	if info.OldSwapchain != gpu.NullSwapchain {
		prev, ok := b.swapchains.get(info.OldSwapchain)
		if !ok {
			return 0, unknownHandle("swapchain", uint64(info.OldSwapchain))
		}
		old = prev.Handle
	}

	var sc *VulkanSwapchain
	err = b.context.Locks.SafeCall(SwapchainManagement, func() error {
		sc, err = SwapchainCreate(b.context, info, format, old)
		return err
	})
	if err != nil {
		return 0, err
	}
	handle := b.swapchains.put(sc)
	for _, img := range sc.Images {
		sc.images = append(sc.images, b.images.put(&VulkanImage{
			Handle:    img,
			Width:     sc.Extent.Width,
			Height:    sc.Extent.Height,
			Format:    format.Format,
			swapchain: handle,
		}))
	}
	return handle, nil
}

func (b *Backend) SwapchainImages(swapchain gpu.Swapchain) ([]gpu.Image, error) {
	sc, ok := b.swapchains.get(swapchain)
	if !ok {
		return nil, unknownHandle("swapchain", uint64(swapchain))
	}
	return append([]gpu.Image(nil), sc.images...), nil
}

func (b *Backend) DestroySwapchain(swapchain gpu.Swapchain) {
	sc, ok := b.swapchains.take(swapchain)
	if !ok {
		core.LogWarn("destroying unknown swapchain %d", swapchain)
		return
	}
	for _, img := range sc.images {
		b.images.take(img)
	}
	_ = b.context.Locks.SafeCall(SwapchainManagement, func() error {
		sc.Destroy(b.context)
		return nil
	})
}

func (b *Backend) AcquireNextImage(swapchain gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Result) {
	sc, ok := b.swapchains.get(swapchain)
	if !ok {
		core.LogError("acquiring from unknown swapchain %d", swapchain)
		return 0, gpu.ErrorUnknown
	}
	semaphore, ok := b.semaphores.get(signal)
	if !ok {
		core.LogError("acquire signals unknown semaphore %d", signal)
		return 0, gpu.ErrorUnknown
	}
	return sc.AcquireNextImageIndex(b.context, timeout, semaphore)
}

func (b *Backend) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	var img *VulkanImage
	err := b.context.Locks.SafeCall(ImageManagement, func() error {
		var err error
		img, err = ImageCreate(b.context, info)
		return err
	})
	if err != nil {
		return 0, err
	}
	return b.images.put(img), nil
}

func (b *Backend) DestroyImage(image gpu.Image) {
	img, ok := b.images.get(image)
	if !ok {
		core.LogWarn("destroying unknown image %d", image)
		return
	}
	if !img.owned {
		core.LogError("image %d belongs to swapchain %d and is released with it", image, img.swapchain)
		return
	}
	b.images.take(image)
	_ = b.context.Locks.SafeCall(ImageManagement, func() error {
		img.Destroy(b.context)
		return nil
	})
}

func (b *Backend) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	img, ok := b.images.get(info.Image)
	if !ok {
		return 0, unknownHandle("image", uint64(info.Image))
	}
	view, err := ImageViewCreate(b.context, img.Handle, toVkFormat(info.Format), toVkAspect(info.Aspect))
	if err != nil {
		return 0, err
	}
	return b.views.put(view), nil
}

func (b *Backend) DestroyImageView(view gpu.ImageView) {
	if v, ok := b.views.take(view); ok {
		vk.DestroyImageView(b.logical(), v, b.context.Allocator)
	}
}

func (b *Backend) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        samplerFilter(info.MagFilter, info.CompareEnable, b.depthLinear),
		MinFilter:        samplerFilter(info.MinFilter, info.CompareEnable, b.depthLinear),
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     toVkAddressMode(info.AddressMode),
		AddressModeV:     toVkAddressMode(info.AddressMode),
		AddressModeW:     toVkAddressMode(info.AddressMode),
		AnisotropyEnable: toVkBool(info.MaxAnisotropy > 1),
		MaxAnisotropy:    info.MaxAnisotropy,
		CompareEnable:    toVkBool(info.CompareEnable),
		CompareOp:        toVkCompareOp(info.CompareOp),
		MinLod:           info.MinLod,
		MaxLod:           info.MaxLod,
		BorderColor:      toVkBorderColor(info.BorderColor),
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(b.logical(), &createInfo, b.context.Allocator, &sampler); res != vk.Success {
		return 0, createError("sampler", res)
	}
	return b.samplers.put(sampler), nil
}

// samplerFilter downgrades linear filtering on depth compare samplers when the
// depth format does not support it.
func samplerFilter(f gpu.Filter, compare, depthLinear bool) vk.Filter {
	if compare && !depthLinear && f == gpu.FilterLinear {
		return toVkFilter(gpu.FilterNearest)
	}
	return toVkFilter(f)
}

func (b *Backend) DestroySampler(sampler gpu.Sampler) {
	if s, ok := b.samplers.take(sampler); ok {
		vk.DestroySampler(b.logical(), s, b.context.Allocator)
	}
}

func (b *Backend) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	pass, err := RenderpassCreate(b.context, info)
	if err != nil {
		return 0, err
	}
	return b.renderPasses.put(pass), nil
}

func (b *Backend) DestroyRenderPass(pass gpu.RenderPass) {
	if rp, ok := b.renderPasses.take(pass); ok {
		vk.DestroyRenderPass(b.logical(), rp, b.context.Allocator)
	}
}

func (b *Backend) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	pass, ok := b.renderPasses.get(info.RenderPass)
	if !ok {
		return 0, unknownHandle("render pass", uint64(info.RenderPass))
	}
	views := make([]vk.ImageView, len(info.Attachments))
	for i, a := range info.Attachments {
		v, ok := b.views.get(a)
		if !ok {
			return 0, unknownHandle("image view", uint64(a))
		}
		views[i] = v
	}
	fb, err := FramebufferCreate(b.context, pass, info.Extent.Width, info.Extent.Height, views)
	if err != nil {
		return 0, err
	}
	return b.framebuffers.put(fb), nil
}

func (b *Backend) DestroyFramebuffer(fb gpu.Framebuffer) {
	if f, ok := b.framebuffers.take(fb); ok {
		vk.DestroyFramebuffer(b.logical(), f, b.context.Allocator)
	}
}

func (b *Backend) TransitionImageLayout(image gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	img, ok := b.images.get(image)
	if !ok {
		return unknownHandle("image", uint64(image))
	}
	return RunSingleUse(b.context, func(cb vk.CommandBuffer) error {
		return cmdTransitionLayout(cb, img, format, oldLayout, newLayout)
	})
}

func (b *Backend) CreateSemaphore() (gpu.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(b.logical(), &createInfo, b.context.Allocator, &semaphore); res != vk.Success {
		return 0, createError("semaphore", res)
	}
	return b.semaphores.put(semaphore), nil
}

func (b *Backend) DestroySemaphore(semaphore gpu.Semaphore) {
	if s, ok := b.semaphores.take(semaphore); ok {
		vk.DestroySemaphore(b.logical(), s, b.context.Allocator)
	}
}

func (b *Backend) CreateFence(signaled bool) (gpu.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(b.logical(), &createInfo, b.context.Allocator, &fence); res != vk.Success {
		return 0, createError("fence", res)
	}
	return b.fences.put(fence), nil
}

func (b *Backend) DestroyFence(fence gpu.Fence) {
	if f, ok := b.fences.take(fence); ok {
		vk.DestroyFence(b.logical(), f, b.context.Allocator)
	}
}

func (b *Backend) WaitForFence(fence gpu.Fence, timeout uint64) gpu.Result {
	f, ok := b.fences.get(fence)
	if !ok {
		core.LogError("waiting on unknown fence %d", fence)
		return gpu.ErrorUnknown
	}
	return toResult(vk.WaitForFences(b.logical(), 1, []vk.Fence{f}, vk.True, timeout))
}

func (b *Backend) ResetFence(fence gpu.Fence) error {
	f, ok := b.fences.get(fence)
	if !ok {
		return unknownHandle("fence", uint64(fence))
	}
	if res := vk.ResetFences(b.logical(), 1, []vk.Fence{f}); res != vk.Success {
		return callError("vkResetFences", res)
	}
	return nil
}

func (b *Backend) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	buffers, err := AllocateCommandBuffers(b.context, count)
	if err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		out[i] = b.commandBuffers.put(cb)
	}
	return out, nil
}

func (b *Backend) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	native := make([]vk.CommandBuffer, 0, len(buffers))
	for _, h := range buffers {
		if cb, ok := b.commandBuffers.take(h); ok {
			native = append(native, cb)
		}
	}
	FreeCommandBuffers(b.context, native)
}

func (b *Backend) commandBuffer(cb gpu.CommandBuffer) vk.CommandBuffer {
	native, ok := b.commandBuffers.get(cb)
	if !ok {
		panic(fmt.Sprintf("recording into unknown command buffer %d", cb))
	}
	return native
}

func (b *Backend) BeginCommandBuffer(cb gpu.CommandBuffer, singleUse bool) error {
	native, ok := b.commandBuffers.get(cb)
	if !ok {
		return unknownHandle("command buffer", uint64(cb))
	}
	return BeginCommandBuffer(native, singleUse)
}

func (b *Backend) EndCommandBuffer(cb gpu.CommandBuffer) error {
	native, ok := b.commandBuffers.get(cb)
	if !ok {
		return unknownHandle("command buffer", uint64(cb))
	}
	return EndCommandBuffer(native)
}

func (b *Backend) CmdBeginRenderPass(cb gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	pass, ok := b.renderPasses.get(info.RenderPass)
	if !ok {
		panic(fmt.Sprintf("beginning unknown render pass %d", info.RenderPass))
	}
	fb, ok := b.framebuffers.get(info.Framebuffer)
	if !ok {
		panic(fmt.Sprintf("beginning render pass on unknown framebuffer %d", info.Framebuffer))
	}
	RenderpassBegin(b.commandBuffer(cb), pass, fb, info.Extent, info.ClearValues)
}

func (b *Backend) CmdEndRenderPass(cb gpu.CommandBuffer) {
	vk.CmdEndRenderPass(b.commandBuffer(cb))
}

func (b *Backend) CmdSetViewport(cb gpu.CommandBuffer, viewport gpu.Viewport) {
	vk.CmdSetViewport(b.commandBuffer(cb), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (b *Backend) CmdSetScissor(cb gpu.CommandBuffer, extent gpu.Extent2D) {
	vk.CmdSetScissor(b.commandBuffer(cb), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: toVkExtent(extent),
	}})
}

func (b *Backend) QueueSubmit(submits []gpu.SubmitInfo, fence gpu.Fence) error {
	native := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		info := vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(s.WaitSemaphores)),
			CommandBufferCount:   uint32(len(s.CommandBuffers)),
			SignalSemaphoreCount: uint32(len(s.SignalSemaphores)),
		}
		for j, w := range s.WaitSemaphores {
			semaphore, ok := b.semaphores.get(w)
			if !ok {
				return unknownHandle("semaphore", uint64(w))
			}
			info.PWaitSemaphores = append(info.PWaitSemaphores, semaphore)
			info.PWaitDstStageMask = append(info.PWaitDstStageMask, toVkPipelineStages(s.WaitStages[j]))
		}
		for _, cb := range s.CommandBuffers {
			buffer, ok := b.commandBuffers.get(cb)
			if !ok {
				return unknownHandle("command buffer", uint64(cb))
			}
			info.PCommandBuffers = append(info.PCommandBuffers, buffer)
		}
		for _, sig := range s.SignalSemaphores {
			semaphore, ok := b.semaphores.get(sig)
			if !ok {
				return unknownHandle("semaphore", uint64(sig))
			}
			info.PSignalSemaphores = append(info.PSignalSemaphores, semaphore)
		}
		native[i] = info
	}

	nativeFence := vk.NullFence
	if fence != gpu.NullFence {
		f, ok := b.fences.get(fence)
		if !ok {
			return unknownHandle("fence", uint64(fence))
		}
		nativeFence = f
	}

	return b.context.Locks.SafeQueueCall(b.context.Device.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(b.context.Device.GraphicsQueue, uint32(len(native)), native, nativeFence); res != vk.Success {
			return callError("vkQueueSubmit", res)
		}
		return nil
	})
}

func (b *Backend) QueuePresent(info gpu.PresentInfo) gpu.Result {
	sc, ok := b.swapchains.get(info.Swapchain)
	if !ok {
		core.LogError("presenting unknown swapchain %d", info.Swapchain)
		return gpu.ErrorUnknown
	}
	wait := make([]vk.Semaphore, 0, len(info.WaitSemaphores))
	for _, w := range info.WaitSemaphores {
		semaphore, ok := b.semaphores.get(w)
		if !ok {
			core.LogError("present waits on unknown semaphore %d", w)
			return gpu.ErrorUnknown
		}
		wait = append(wait, semaphore)
	}
	return sc.Present(b.context, wait, info.ImageIndex)
}

func (b *Backend) WaitIdle() error {
	if res := vk.DeviceWaitIdle(b.logical()); res != vk.Success {
		return callError("vkDeviceWaitIdle", res)
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
