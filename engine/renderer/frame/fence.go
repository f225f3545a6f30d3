package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Fence caches the signaled state of a device fence so repeated waits on an
// already completed fence never reach the device.
type Fence struct {
	Handle     gpu.Fence
	IsSignaled bool
}

func NewFence(device gpu.Device, createSignaled bool) (*Fence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		err = fmt.Errorf("failed to create fence: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Fence{
		Handle: handle,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}, nil
}

func (f *Fence) Destroy(device gpu.Device) {
	if f.Handle != gpu.NullFence {
		device.DestroyFence(f.Handle)
		f.Handle = gpu.NullFence
	}
	f.IsSignaled = false
}

func (f *Fence) Wait(device gpu.Device, timeoutNs uint64) error {
	if f.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := device.WaitForFence(f.Handle, timeoutNs)
	switch result {
	case gpu.Success:
		f.IsSignaled = true
		return nil
	case gpu.Timeout:
		core.LogWarn("fence wait - timed out")
		return fmt.Errorf("%w: fence wait timed out", core.ErrUnknown)
	case gpu.ErrorDeviceLost:
		core.LogError("fence wait - device lost")
	case gpu.ErrorOutOfHostMemory, gpu.ErrorOutOfDeviceMemory:
		core.LogError("fence wait - %s", result)
	default:
		core.LogError("fence wait - an unknown error has occurred")
	}
	return fmt.Errorf("fence wait failed: %w", result.Err())
}

// Reset returns a signaled fence to the unsignaled state. Resetting a fence
// that is already unsignaled is a no-op.
func (f *Fence) Reset(device gpu.Device) error {
	if !f.IsSignaled {
		return nil
	}
	if err := device.ResetFence(f.Handle); err != nil {
		err = fmt.Errorf("failed to reset fence: %w", err)
		core.LogError(err.Error())
		return err
	}
	f.IsSignaled = false
	return nil
}
