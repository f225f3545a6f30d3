// Package gputest provides an in-memory gpu.Device that models queue ordering,
// fence and semaphore state closely enough to catch synchronization mistakes
// in the frame core without a GPU.
package gputest

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type Kind string

const (
	KindSwapchain     Kind = "swapchain"
	KindImage         Kind = "image"
	KindImageView     Kind = "image_view"
	KindSampler       Kind = "sampler"
	KindRenderPass    Kind = "render_pass"
	KindFramebuffer   Kind = "framebuffer"
	KindSemaphore     Kind = "semaphore"
	KindFence         Kind = "fence"
	KindCommandBuffer Kind = "command_buffer"
)

type fenceState int

const (
	fenceSignaled fenceState = iota
	fenceIdle
	fencePending
)

type submission struct {
	id       int
	fence    gpu.Fence
	done     bool
	info     gpu.SubmitInfo
	buffers  []gpu.CommandBuffer
	signaled []gpu.Semaphore
}

type swapchain struct {
	info   gpu.SwapchainInfo
	images []gpu.Image
	next   int
}

type imageKey struct {
	swapchain gpu.Swapchain
	index     uint32
}

type commandBuffer struct {
	recording bool
	inPass    bool
	last      *submission
}

// SubmitRecord is one QueueSubmit batch as observed by the device.
type SubmitRecord struct {
	Infos []gpu.SubmitInfo
	Fence gpu.Fence
}

// PresentRecord is one QueuePresent call and the extent of the chain it presented to.
type PresentRecord struct {
	Swapchain  gpu.Swapchain
	ImageIndex uint32
	Extent     gpu.Extent2D
	Waits      []gpu.Semaphore
	Result     gpu.Result
}

type AcquireRecord struct {
	Swapchain  gpu.Swapchain
	ImageIndex uint32
	Signal     gpu.Semaphore
	Result     gpu.Result
}

type Transition struct {
	Image     gpu.Image
	OldLayout gpu.ImageLayout
	NewLayout gpu.ImageLayout
}

type Device struct {
	mu  sync.Mutex
	ids *core.IDGenerator

	// Support is returned by QuerySurfaceSupport. Tests may edit it between calls.
	Support gpu.SurfaceSupport
	// Depth is returned by DepthFormat.
	Depth gpu.Format

	acquireScript []gpu.Result
	acquireOrder  []uint32
	presentScript []gpu.Result
	failures      map[string]error

	live         map[Kind]map[uint64]struct{}
	swapchains   map[gpu.Swapchain]*swapchain
	framebuffers map[gpu.Framebuffer]gpu.FramebufferInfo
	images       map[gpu.Image]gpu.ImageInfo
	fences       map[gpu.Fence]fenceState
	semaphores   map[gpu.Semaphore]bool
	buffers      map[gpu.CommandBuffer]*commandBuffer

	submissions  []*submission
	fenceLast    map[gpu.Fence]*submission
	imageWriters map[imageKey]*submission

	submits      []SubmitRecord
	presents     []PresentRecord
	acquires     []AcquireRecord
	passBegins   []gpu.RenderPassBeginInfo
	viewports    []gpu.Viewport
	scissors     []gpu.Extent2D
	transitions  []Transition
	violations   []string
	waitIdle     int
	maxUnsignal  int
	fenceWaits   int
	surfaceCalls int
}

func NewDevice() *Device {
	return &Device{
		ids: core.NewIDGenerator(),
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
				{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		},
		Depth:        gpu.FormatD32Sfloat,
		failures:     map[string]error{},
		live:         map[Kind]map[uint64]struct{}{},
		swapchains:   map[gpu.Swapchain]*swapchain{},
		framebuffers: map[gpu.Framebuffer]gpu.FramebufferInfo{},
		images:       map[gpu.Image]gpu.ImageInfo{},
		fences:       map[gpu.Fence]fenceState{},
		semaphores:   map[gpu.Semaphore]bool{},
		buffers:      map[gpu.CommandBuffer]*commandBuffer{},
		fenceLast:    map[gpu.Fence]*submission{},
		imageWriters: map[imageKey]*submission{},
	}
}

// NewSurface returns a surface handle the device will accept.
func (d *Device) NewSurface() gpu.Surface {
	return gpu.Surface(d.ids.Next())
}

// SetCurrentExtent makes the surface report a fixed current extent, as a
// window system that dictates the swapchain size does.
func (d *Device) SetCurrentExtent(e gpu.Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Support.Capabilities.CurrentExtent = e
}

// ScriptAcquire queues results returned by the next AcquireNextImage calls.
// Once drained every acquire succeeds.
func (d *Device) ScriptAcquire(results ...gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireScript = append(d.acquireScript, results...)
}

// ScriptAcquireOrder queues the image indices handed out by successful acquires.
// Once drained images are handed out round-robin.
func (d *Device) ScriptAcquireOrder(indices ...uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireOrder = append(d.acquireOrder, indices...)
}

func (d *Device) ScriptPresent(results ...gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentScript = append(d.presentScript, results...)
}

// FailOn makes every call of the named Device method return err until cleared with FailOn(op, nil).
func (d *Device) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

func (d *Device) fail(op string) error {
	if err, ok := d.failures[op]; ok {
		return fmt.Errorf("%w: %s: %v", core.ErrResourceCreation, op, err)
	}
	return nil
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) track(kind Kind) uint64 {
	id := d.ids.Next()
	if d.live[kind] == nil {
		d.live[kind] = map[uint64]struct{}{}
	}
	d.live[kind][id] = struct{}{}
	return id
}

func (d *Device) release(kind Kind, id uint64) bool {
	if id == 0 {
		return false
	}
	if _, ok := d.live[kind][id]; !ok {
		d.violate("destroy of unknown or already destroyed %s %d", kind, id)
		return false
	}
	delete(d.live[kind], id)
	return true
}

// Live returns the number of live objects of kind.
func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live[kind])
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, objects := range d.live {
		total += len(objects)
	}
	return total
}

// LiveCounts returns a snapshot of live object counts per kind.
func (d *Device) LiveCounts() map[Kind]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[Kind]int{}
	for kind, objects := range d.live {
		if len(objects) > 0 {
			out[kind] = len(objects)
		}
	}
	return out
}

// Violations lists every API misuse the device observed.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) Submits() []SubmitRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SubmitRecord(nil), d.submits...)
}

func (d *Device) Presents() []PresentRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PresentRecord(nil), d.presents...)
}

func (d *Device) Acquires() []AcquireRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]AcquireRecord(nil), d.acquires...)
}

func (d *Device) RenderPassBegins() []gpu.RenderPassBeginInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.RenderPassBeginInfo(nil), d.passBegins...)
}

func (d *Device) Viewports() []gpu.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.Viewport(nil), d.viewports...)
}

func (d *Device) Transitions() []Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transition(nil), d.transitions...)
}

// FramebufferExtent returns the extent a live framebuffer was created with.
func (d *Device) FramebufferExtent(fb gpu.Framebuffer) (gpu.Extent2D, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.framebuffers[fb]
	return info.Extent, ok
}

// SwapchainExtent returns the extent a live swapchain was created with.
func (d *Device) SwapchainExtent(sc gpu.Swapchain) (gpu.Extent2D, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		return gpu.Extent2D{}, false
	}
	return chain.info.Extent, true
}

// SwapchainInfo returns the creation parameters of a live swapchain.
func (d *Device) SwapchainInfo(sc gpu.Swapchain) (gpu.SwapchainInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		return gpu.SwapchainInfo{}, false
	}
	return chain.info, true
}

// ImageInfo returns the creation parameters of a live image.
func (d *Device) ImageInfo(img gpu.Image) (gpu.ImageInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.images[img]
	return info, ok
}

func (d *Device) WaitIdleCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitIdle
}

// FenceWaits counts WaitForFence calls that reached the device.
func (d *Device) FenceWaits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fenceWaits
}

// SurfaceQueries counts QuerySurfaceSupport calls.
func (d *Device) SurfaceQueries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceCalls
}

// MaxUnsignaledFences is the high-water mark of fences with GPU work pending.
func (d *Device) MaxUnsignaledFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxUnsignal
}

// UnsignaledFences is the current number of fences with GPU work pending.
func (d *Device) UnsignaledFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingFences()
}

func (d *Device) pendingFences() int {
	n := 0
	for _, state := range d.fences {
		if state == fencePending {
			n++
		}
	}
	return n
}

// completeThrough marks every submission up to and including last as executed.
// The queue is in-order, so a fence signal implies all earlier work finished.
func (d *Device) completeThrough(last *submission) {
	for _, s := range d.submissions {
		if s.id > last.id {
			break
		}
		if s.done {
			continue
		}
		s.done = true
		if s.fence != gpu.NullFence && d.fenceLast[s.fence] == s {
			d.fences[s.fence] = fenceSignaled
		}
	}
}
