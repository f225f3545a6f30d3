package platform

import (
	"runtime"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the glfw window. It satisfies frame.Window for the frame
// scheduler and vulkan.SurfaceProvider for the backend.
type Platform struct {
	Window *glfw.Window

	resized   atomic.Bool
	startTime float64
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events and reports whether the
// application should keep running.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) Extent() gpu.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return gpu.Extent2D{}
	}
	return gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) WasResized() bool {
	return p.resized.Load()
}

func (p *Platform) ResetResized() {
	p.resized.Store(false)
}

// WaitEvents sleeps until the window system has something for us, used while
// the window is minimized.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	core.LogDebug("framebuffer resized to %dx%d", width, height)
	p.resized.Store(true)
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}
