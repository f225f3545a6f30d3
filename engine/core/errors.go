package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSwapchainBooting reports a tick that was skipped because the surface chain was rebuilt.
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrSurfaceLost      = errors.New("presentation surface lost")
	ErrFormatMismatch   = errors.New("swapchain image or depth format changed")
	ErrInvariant        = errors.New("frame lifecycle invariant violated")
	ErrResourceCreation = errors.New("failed to create gpu resource")
	ErrDeviceLost       = errors.New("device lost")
	ErrUnknown          = errors.New("unknown")
)

// Invariantf builds an ErrInvariant error and logs it.
func Invariantf(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	LogError(err.Error())
	return err
}

// IsFatal reports whether err should stop the main loop. A booting swapchain is not fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrSwapchainBooting)
}
