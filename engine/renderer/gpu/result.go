package gpu

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
)

// Result is the outcome of a queue or swapchain operation that has more than
// one non-fatal answer.
type Result int

const (
	Success Result = iota
	Suboptimal
	Timeout
	NotReady
	ErrorOutOfDate
	ErrorSurfaceLost
	ErrorDeviceLost
	ErrorOutOfHostMemory
	ErrorOutOfDeviceMemory
	ErrorUnknown
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Suboptimal:
		return "suboptimal"
	case Timeout:
		return "timeout"
	case NotReady:
		return "not ready"
	case ErrorOutOfDate:
		return "out of date"
	case ErrorSurfaceLost:
		return "surface lost"
	case ErrorDeviceLost:
		return "device lost"
	case ErrorOutOfHostMemory:
		return "out of host memory"
	case ErrorOutOfDeviceMemory:
		return "out of device memory"
	}
	return "unknown error"
}

// Err maps a non-success result onto the core error taxonomy.
// Success and Suboptimal yield nil.
func (r Result) Err() error {
	switch r {
	case Success, Suboptimal:
		return nil
	case ErrorSurfaceLost:
		return fmt.Errorf("%w: %s", core.ErrSurfaceLost, r)
	case ErrorDeviceLost:
		return fmt.Errorf("%w: %s", core.ErrDeviceLost, r)
	case ErrorOutOfHostMemory, ErrorOutOfDeviceMemory:
		return fmt.Errorf("%w: %s", core.ErrResourceCreation, r)
	}
	return fmt.Errorf("%w: %s", core.ErrUnknown, r)
}
