package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement        LockGroup = "resource_management"
	CommandBufferManagement   LockGroup = "command_buffer_management"
	ImageManagement           LockGroup = "image_management"
	SynchronizationManagement LockGroup = "synchronization_management"
	SwapchainManagement       LockGroup = "swapchain_management"
)

// VulkanLockPool hands out one mutex per lock group and one per queue family.
// Command pools and queues are externally synchronized objects, every call
// touching them goes through here.
type VulkanLockPool struct {
	mu           sync.Mutex // protects both maps
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex // queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn while holding the lock of the queue family. Families
// that were never registered with SetQueueFamily are registered on first use.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.SetQueueFamily(queueFamilyIndex)

	vs.mu.Lock()
	l := vs.queueMutexes[queueFamilyIndex]
	vs.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	return fn()
}
