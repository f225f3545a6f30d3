package engine

import (
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/components"
)

// Game is what an application plugs into the engine. Every hook is optional.
type Game struct {
	State interface{}
	// Camera gets its aspect ratio refreshed every tick. May be nil.
	Camera *components.Camera
	// Systems record into the shadow and color passes, in order.
	Systems []renderer.RenderSystem

	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
