package frame

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// SyncRegistry owns every fence and semaphore of the frame core. Objects are
// created once and live until teardown; only the in-flight image table is
// reshaped when the surface chain is rebuilt.
type SyncRegistry struct {
	device gpu.Device

	ImageAvailable []gpu.Semaphore
	RenderFinished []gpu.Semaphore
	InFlight       []*Fence

	// depthFinished[s] is signaled by the shadow batch for ShadowSlot s and
	// waited by the color submission of the same tick.
	depthFinished []gpu.Semaphore

	// Borrowed from InFlight, keyed by ImageIndex.
	imagesInFlight []*Fence
}

func NewSyncRegistry(device gpu.Device, framesInFlight, imageCount int) (*SyncRegistry, error) {
	s := &SyncRegistry{
		device:         device,
		ImageAvailable: make([]gpu.Semaphore, 0, framesInFlight),
		RenderFinished: make([]gpu.Semaphore, 0, framesInFlight),
		InFlight:       make([]*Fence, 0, framesInFlight),
	}
	for i := 0; i < framesInFlight; i++ {
		available, err := device.CreateSemaphore()
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("failed to create image available semaphore: %w", err)
		}
		s.ImageAvailable = append(s.ImageAvailable, available)

		finished, err := device.CreateSemaphore()
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("failed to create render finished semaphore: %w", err)
		}
		s.RenderFinished = append(s.RenderFinished, finished)

		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		// This will prevent the application from waiting indefinitely for the first frame to render since it
		// cannot be rendered until a frame is "rendered" before it.
		fence, err := NewFence(device, true)
		if err != nil {
			s.Destroy()
			return nil, err
		}
		s.InFlight = append(s.InFlight, fence)
	}
	s.ResetImageTable(imageCount)
	return s, nil
}

func (s *SyncRegistry) FramesInFlight() int {
	return len(s.InFlight)
}

// Wait blocks until all GPU work previously submitted for slot has finished.
func (s *SyncRegistry) Wait(slot FrameSlot) error {
	return s.InFlight[slot].Wait(s.device, gpu.MaxTimeout)
}

// WaitAndReset blocks on the slot fence and returns it to the unsignaled
// state so it can be handed to the next submission.
func (s *SyncRegistry) WaitAndReset(slot FrameSlot) error {
	if err := s.Wait(slot); err != nil {
		return err
	}
	return s.InFlight[slot].Reset(s.device)
}

// TrackImage records that slot is about to write image. If another slot's
// submission still writes that image, its fence is waited on first.
func (s *SyncRegistry) TrackImage(image ImageIndex, slot FrameSlot) error {
	if int(image) >= len(s.imagesInFlight) {
		return core.Invariantf("image index %d out of range (%d images)", image, len(s.imagesInFlight))
	}
	if prior := s.imagesInFlight[image]; prior != nil {
		if err := prior.Wait(s.device, gpu.MaxTimeout); err != nil {
			return err
		}
	}
	s.imagesInFlight[image] = s.InFlight[slot]
	return nil
}

// ImageFence returns the fence currently recorded for image, or nil.
func (s *SyncRegistry) ImageFence(image ImageIndex) *Fence {
	if int(image) >= len(s.imagesInFlight) {
		return nil
	}
	return s.imagesInFlight[image]
}

// ResetImageTable resizes the in-flight image table for a new surface chain.
func (s *SyncRegistry) ResetImageTable(imageCount int) {
	s.imagesInFlight = make([]*Fence, imageCount)
}

// DepthFinished returns the depth-finished semaphores for slots, creating any
// that do not exist yet.
func (s *SyncRegistry) DepthFinished(slots []ShadowSlot) ([]gpu.Semaphore, error) {
	out := make([]gpu.Semaphore, 0, len(slots))
	for _, slot := range slots {
		for int(slot) >= len(s.depthFinished) {
			sem, err := s.device.CreateSemaphore()
			if err != nil {
				return nil, fmt.Errorf("failed to create depth finished semaphore: %w", err)
			}
			s.depthFinished = append(s.depthFinished, sem)
		}
		out = append(out, s.depthFinished[slot])
	}
	return out, nil
}

func (s *SyncRegistry) Destroy() {
	for _, sem := range s.ImageAvailable {
		s.device.DestroySemaphore(sem)
	}
	for _, sem := range s.RenderFinished {
		s.device.DestroySemaphore(sem)
	}
	for _, sem := range s.depthFinished {
		s.device.DestroySemaphore(sem)
	}
	for _, fence := range s.InFlight {
		fence.Destroy(s.device)
	}
	s.ImageAvailable = nil
	s.RenderFinished = nil
	s.depthFinished = nil
	s.InFlight = nil
	s.imagesInFlight = nil
}
