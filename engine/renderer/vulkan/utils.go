package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type resultName struct {
	name, description string
}

// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
var resultNames = map[vk.Result]resultName{
	vk.Success:                   {"VK_SUCCESS", "Command successfully completed"},
	vk.NotReady:                  {"VK_NOT_READY", "A fence or query has not yet completed"},
	vk.Timeout:                   {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	vk.EventSet:                  {"VK_EVENT_SET", "An event is signaled"},
	vk.EventReset:                {"VK_EVENT_RESET", "An event is unsignaled"},
	vk.Incomplete:                {"VK_INCOMPLETE", "A return array was too small for the result"},
	vk.Suboptimal:                {"VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly, but can still be used to present"},
	vk.ErrorOutOfHostMemory:      {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed"},
	vk.ErrorOutOfDeviceMemory:    {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed"},
	vk.ErrorInitializationFailed: {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed"},
	vk.ErrorDeviceLost:           {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost"},
	vk.ErrorMemoryMapFailed:      {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed"},
	vk.ErrorLayerNotPresent:      {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded"},
	vk.ErrorExtensionNotPresent:  {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported"},
	vk.ErrorFeatureNotPresent:    {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported"},
	vk.ErrorIncompatibleDriver:   {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver"},
	vk.ErrorTooManyObjects:       {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created"},
	vk.ErrorFormatNotSupported:   {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device"},
	vk.ErrorFragmentedPool:       {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory"},
	vk.ErrorSurfaceLost:          {"VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available"},
	vk.ErrorNativeWindowInUse:    {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use"},
	vk.ErrorOutOfDate:            {"VK_ERROR_OUT_OF_DATE_KHR", "The surface changed and is no longer compatible with the swapchain"},
	vk.ErrorIncompatibleDisplay:  {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "The display used by a swapchain is incompatible"},
	vk.ErrorOutOfPoolMemory:      {"VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed"},
	vk.ErrorUnknown:              {"VK_ERROR_UNKNOWN", "An unknown error has occurred"},
}

// VulkanResultString returns the name of result, followed by its description
// when getExtended is set.
func VulkanResultString(result vk.Result, getExtended bool) string {
	n, ok := resultNames[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if getExtended {
		return n.name + " " + n.description
	}
	return n.name
}

// VulkanResultIsSuccess reports whether result is one of the non-error codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

// toResult folds a vk.Result into the small set the frame core reasons about.
func toResult(result vk.Result) gpu.Result {
	switch result {
	case vk.Success:
		return gpu.Success
	case vk.Suboptimal:
		return gpu.Suboptimal
	case vk.Timeout:
		return gpu.Timeout
	case vk.NotReady:
		return gpu.NotReady
	case vk.ErrorOutOfDate:
		return gpu.ErrorOutOfDate
	case vk.ErrorSurfaceLost:
		return gpu.ErrorSurfaceLost
	case vk.ErrorDeviceLost:
		return gpu.ErrorDeviceLost
	case vk.ErrorOutOfHostMemory:
		return gpu.ErrorOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory:
		return gpu.ErrorOutOfDeviceMemory
	}
	return gpu.ErrorUnknown
}

// createError logs and wraps a failed vkCreate* or vkAllocate* call.
func createError(what string, result vk.Result) error {
	err := fmt.Errorf("failed to create %s with error `%s`: %w", what, VulkanResultString(result, true), core.ErrResourceCreation)
	core.LogError(err.Error())
	return err
}

// callError logs and wraps a failed call whose result is not a creation.
func callError(what string, result vk.Result) error {
	if err := toResult(result).Err(); err != nil {
		err = fmt.Errorf("%s failed with `%s`: %w", what, VulkanResultString(result, false), err)
		core.LogError(err.Error())
		return err
	}
	// a non-error status that the caller did not expect
	err := fmt.Errorf("%s returned `%s`: %w", what, VulkanResultString(result, false), core.ErrUnknown)
	core.LogError(err.Error())
	return err
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// FindFirstZeroInByteArray returns the index of the first NUL in arr, or len(arr).
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

// cString converts a fixed size NUL padded name from a properties struct.
func cString(arr []byte) string {
	return string(arr[:FindFirstZeroInByteArray(arr)])
}
