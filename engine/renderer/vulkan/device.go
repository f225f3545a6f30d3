package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

// queue family indices, -1 while not found
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int
	PresentFamilyIndex  int
	TransferFamilyIndex int
}

func DeviceCreate(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) (*VulkanDevice, error) {
	device, err := SelectPhysicalDevice(context, requirements)
	if err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")

	// Do not create additional queues for shared indices.
	indices := []uint32{device.GraphicsQueueIndex}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.PresentQueueIndex)
	}
	if device.TransferQueueIndex != device.GraphicsQueueIndex && device.TransferQueueIndex != device.PresentQueueIndex {
		indices = append(indices, device.TransferQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: toVkBool(requirements.SamplerAnisotropy),
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return nil, err
	}
	if available[portabilitySubsetExtensionName] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, portabilitySubsetExtensionName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		return nil, createError("logical device", res)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(logical, device.GraphicsQueueIndex, 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logical, device.PresentQueueIndex, 0, &device.PresentQueue)
	vk.GetDeviceQueue(logical, device.TransferQueueIndex, 0, &device.TransferQueue)
	for _, index := range indices {
		context.Locks.SetQueueFamily(index)
	}
	core.LogInfo("Queues obtained.")

	// Command buffers are reset one by one by the frame core.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logical, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		vk.DestroyDevice(logical, context.Allocator)
		return nil, createError("graphics command pool", res)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return device, nil
}

func (d *VulkanDevice) Destroy(context *VulkanContext) {
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.TransferQueue = nil

	if d.LogicalDevice == nil {
		return
	}
	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, context.Allocator)

	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.LogicalDevice, context.Allocator)
	d.LogicalDevice = nil

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var info VulkanSwapchainSupportInfo

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities); res != vk.Success {
		return info, callError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return info, callError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats); res != vk.Success {
			return info, callError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return info, callError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if presentModeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, info.PresentModes); res != vk.Success {
			return info, callError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return info, nil
}

// DeviceDetectDepthFormat returns the first candidate usable as an optimal
// tiling depth attachment.
// DeviceDetectDepthFormat picks a depth format that can be rendered to and
// sampled, as shadow maps are both. Formats that also support linear filtering
// are preferred; linear reports whether the chosen one does.
func DeviceDetectDepthFormat(physicalDevice vk.PhysicalDevice) (format vk.Format, linear bool, ok bool) {
	return pickDepthFormat(depthFormatCandidates, func(f vk.Format) vk.FormatFeatureFlags {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(physicalDevice, f, &properties)
		properties.Deref()
		return properties.OptimalTilingFeatures
	})
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

func pickDepthFormat(candidates []vk.Format, features func(vk.Format) vk.FormatFeatureFlags) (vk.Format, bool, bool) {
	required := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit | vk.FormatFeatureSampledImageBit)
	filterLinear := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)

	fallback := vk.FormatUndefined
	for _, candidate := range candidates {
		f := features(candidate)
		if f&required != required {
			continue
		}
		if f&filterLinear == filterLinear {
			return candidate, true, true
		}
		if fallback == vk.FormatUndefined {
			fallback = candidate
		}
	}
	if fallback != vk.FormatUndefined {
		return fallback, false, true
	}
	return vk.FormatUndefined, false, false
}

func SelectPhysicalDevice(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) (*VulkanDevice, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return nil, callError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrResourceCreation)
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return nil, callError("vkEnumeratePhysicalDevices", res)
	}

	// MoltenVK only exposes integrated GPUs on most machines.
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo, ok := PhysicalDeviceMeetsRequirements(physicalDevice, context.Surface, &properties, &features, requirements)
		if !ok {
			continue
		}

		name := cString(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo("GPU Driver version: %d.%d.%d",
			vk.Version(properties.DriverVersion).Major(),
			vk.Version(properties.DriverVersion).Minor(),
			vk.Version(properties.DriverVersion).Patch())
		core.LogInfo("Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch())

		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		core.LogInfo("Physical device selected.")
		return &VulkanDevice{
			PhysicalDevice:     physicalDevice,
			GraphicsQueueIndex: uint32(queueInfo.GraphicsFamilyIndex),
			PresentQueueIndex:  uint32(queueInfo.PresentFamilyIndex),
			TransferQueueIndex: uint32(queueInfo.TransferFamilyIndex),
			Properties:         properties,
			Features:           features,
			Memory:             memory,
		}, nil
	}

	return nil, fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrResourceCreation)
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}
	name := cString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device '%s' is not a discrete GPU, and one is required. Skipping.", name)
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := vk.QueueFlagBits(queueFamilies[i].QueueFlags)
		currentTransferScore := 0

		if flags&vk.QueueGraphicsBit != 0 {
			if queueInfo.GraphicsFamilyIndex < 0 {
				queueInfo.GraphicsFamilyIndex = i
			}
			currentTransferScore++
		}
		if flags&vk.QueueComputeBit != 0 {
			currentTransferScore++
		}
		// Take the lowest scoring family, it is the most likely to be a dedicated transfer queue.
		if flags&vk.QueueTransferBit != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			queueInfo.TransferFamilyIndex = i
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		// Prefer presenting from the graphics family.
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || queueInfo.GraphicsFamilyIndex == i) {
			queueInfo.PresentFamilyIndex = i
		}
	}

	core.LogDebug("Graphics | Present | Transfer | Name")
	core.LogDebug("%8d | %7d | %8d | %s", queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex, queueInfo.TransferFamilyIndex, name)

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Present && queueInfo.PresentFamilyIndex < 0) ||
		(requirements.Transfer && queueInfo.TransferFamilyIndex < 0) {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", name)
		return queueInfo, false
	}
	if queueInfo.TransferFamilyIndex < 0 {
		queueInfo.TransferFamilyIndex = queueInfo.GraphicsFamilyIndex
	}

	support, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return queueInfo, false
	}
	for _, required := range requirements.DeviceExtensionNames {
		if !available[required] {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return queueInfo, false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, false
	}
	return queueInfo, true
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, callError("vkEnumerateDeviceExtensionProperties", res)
	}
	properties := make([]vk.ExtensionProperties, count)
	if count != 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
			return nil, callError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	out := make(map[string]bool, count)
	for i := range properties {
		properties[i].Deref()
		out[cString(properties[i].ExtensionName[:])] = true
	}
	return out, nil
}
