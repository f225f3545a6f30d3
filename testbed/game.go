package testbed

import (
	"github.com/spaghettifunk/penumbra/engine"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/components"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/metadata"
)

// orbitSpeed is in radians per second.
const orbitSpeed = 0.5

type TestGame struct {
	*engine.Game
	state *gameState
}

type gameState struct {
	WorldCamera *components.Camera
	system      *SceneSystem

	width  uint32
	height uint32
}

func NewTestGame() *TestGame {
	camera := components.NewCamera(math.NewVec3(0, 5, 15), math.NewVec3(0, 0, 0), 45)
	state := &gameState{
		WorldCamera: camera,
		system:      NewSceneSystem(metadata.ModelObj, metadata.ModelQuad),
	}
	tg := &TestGame{
		Game: &engine.Game{
			State:   state,
			Camera:  camera,
			Systems: []renderer.RenderSystem{state.system},
		},
		state: state,
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize() error {
	for _, kind := range g.state.system.kinds {
		layout, err := kind.VertexLayout()
		if err != nil {
			return err
		}
		core.LogInfo("%s pipeline: stride %d, %d attributes, %d image bindings, casts shadow %t",
			kind, layout.Stride, len(layout.Attributes), kind.BindingCount(), kind.CastsShadow())
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state.WorldCamera.Orbit(float32(deltaTime) * orbitSpeed)
	return nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	g.state.width = width
	g.state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed recorded %d frames", g.state.system.Frames())
	return nil
}

// SceneSystem is a render system with no geometry. It walks every pass the
// scheduler opens and checks what it was handed.
type SceneSystem struct {
	kinds   []metadata.ModelKind
	frames  uint64
	shadows uint64
}

func NewSceneSystem(kinds ...metadata.ModelKind) *SceneSystem {
	return &SceneSystem{kinds: kinds}
}

func (s *SceneSystem) RenderShadow(info *renderer.FrameInfo, slot frame.ShadowSlot) error {
	for _, kind := range s.kinds {
		if !kind.CastsShadow() {
			continue
		}
		if _, err := kind.ShadowAttributes(); err != nil {
			return err
		}
	}
	s.shadows++
	return nil
}

func (s *SceneSystem) Render(info *renderer.FrameInfo) error {
	s.frames++
	if s.frames%600 == 0 {
		core.LogDebug("frame %d (slot %d): %d shadow maps bound, %d shadow passes so far",
			s.frames, info.FrameIndex, len(info.ShadowMaps), s.shadows)
	}
	return nil
}

func (s *SceneSystem) Frames() uint64 {
	return s.frames
}

func (s *SceneSystem) ShadowPasses() uint64 {
	return s.shadows
}
