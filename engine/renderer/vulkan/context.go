package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
)

// VulkanContext holds the instance level objects shared by every call of the
// backend. It is created once in New and never replaced.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugReport vk.DebugReportCallback

	Device *VulkanDevice
	Locks  *VulkanLockPool
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
