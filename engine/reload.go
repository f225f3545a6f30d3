package engine

import (
	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// liveRenderer is the part of the frame scheduler a reload can change
// without rebuilding the device objects.
type liveRenderer interface {
	SetClearColor(c [4]float32)
	SetPresentMode(mode gpu.PresentMode)
}

// applyReload pushes the live-reloadable settings of next into r and returns
// the config now in effect. Settings that size GPU resources or the window
// only take effect on restart; they are reported and kept at their current values.
func applyReload(r liveRenderer, current, next config.Config) (config.Config, []string) {
	var ignored []string

	if next.Application != current.Application {
		ignored = append(ignored, "application")
		next.Application = current.Application
	}
	if next.Renderer.FramesInFlight != current.Renderer.FramesInFlight {
		ignored = append(ignored, "renderer.frames_in_flight")
		next.Renderer.FramesInFlight = current.Renderer.FramesInFlight
	}
	if next.Renderer.ShadowSlots != current.Renderer.ShadowSlots {
		ignored = append(ignored, "renderer.shadow_slots")
		next.Renderer.ShadowSlots = current.Renderer.ShadowSlots
	}
	if next.Renderer.ShadowResolution != current.Renderer.ShadowResolution {
		ignored = append(ignored, "renderer.shadow_resolution")
		next.Renderer.ShadowResolution = current.Renderer.ShadowResolution
	}
	if next.Renderer.Validation != current.Renderer.Validation || next.Renderer.DiscreteGPU != current.Renderer.DiscreteGPU {
		ignored = append(ignored, "renderer.validation/discrete_gpu")
		next.Renderer.Validation = current.Renderer.Validation
		next.Renderer.DiscreteGPU = current.Renderer.DiscreteGPU
	}

	if next.Log.Level != current.Log.Level {
		core.SetLogLevel(next.LogLevel())
		core.LogInfo("log level set to %s", next.Log.Level)
	}
	if next.Renderer.ClearColor != current.Renderer.ClearColor {
		r.SetClearColor(next.Renderer.ClearColor)
	}
	if next.Renderer.PresentMode != current.Renderer.PresentMode {
		mode, err := config.ParsePresentMode(next.Renderer.PresentMode)
		if err != nil {
			// Validate already rejected this; keep the current mode.
			next.Renderer.PresentMode = current.Renderer.PresentMode
		} else {
			r.SetPresentMode(mode)
			core.LogInfo("present mode changed to %s, swapchain will be recreated", next.Renderer.PresentMode)
		}
	}

	for _, key := range ignored {
		core.LogWarn("config %s changed on disk; restart to apply", key)
	}
	return next, ignored
}
