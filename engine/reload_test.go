package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type fakeRenderer struct {
	clearColors  [][4]float32
	presentModes []gpu.PresentMode
}

func (f *fakeRenderer) SetClearColor(c [4]float32)          { f.clearColors = append(f.clearColors, c) }
func (f *fakeRenderer) SetPresentMode(mode gpu.PresentMode) { f.presentModes = append(f.presentModes, mode) }

func TestApplyReloadLiveSettings(t *testing.T) {
	current := config.Default()
	next := current
	next.Renderer.ClearColor = [4]float32{0, 0, 0, 1}
	next.Renderer.PresentMode = "fifo"

	r := &fakeRenderer{}
	applied, ignored := applyReload(r, current, next)

	assert.Empty(t, ignored)
	assert.Equal(t, [][4]float32{{0, 0, 0, 1}}, r.clearColors)
	assert.Equal(t, []gpu.PresentMode{gpu.PresentModeFifo}, r.presentModes)
	assert.Equal(t, next, applied)
}

func TestApplyReloadKeepsRestartOnlySettings(t *testing.T) {
	current := config.Default()
	next := current
	next.Renderer.FramesInFlight = 3
	next.Renderer.ShadowSlots = 4
	next.Application.Width = 1920

	r := &fakeRenderer{}
	applied, ignored := applyReload(r, current, next)

	assert.ElementsMatch(t, []string{"application", "renderer.frames_in_flight", "renderer.shadow_slots"}, ignored)
	assert.Equal(t, current, applied)
	assert.Empty(t, r.clearColors)
	assert.Empty(t, r.presentModes)
}

func TestApplyReloadLogLevel(t *testing.T) {
	previous := core.GetLogLevel()
	t.Cleanup(func() { core.SetLogLevel(previous) })

	current := config.Default()
	next := current
	next.Log.Level = "error"

	applied, _ := applyReload(&fakeRenderer{}, current, next)
	assert.Equal(t, "error", applied.Log.Level)
	assert.Equal(t, core.ErrorLevel, core.GetLogLevel())
}

func TestApplyReloadNoChanges(t *testing.T) {
	current := config.Default()
	r := &fakeRenderer{}
	applied, ignored := applyReload(r, current, current)
	assert.Empty(t, ignored)
	assert.Equal(t, current, applied)
	assert.Empty(t, r.clearColors)
	assert.Empty(t, r.presentModes)
}

func TestApplicationConfigOverrides(t *testing.T) {
	app := ApplicationConfig{Overrides: func(c *config.Config) { c.Renderer.ShadowSlots = 0 }}
	cfg, err := app.load()
	assert.NoError(t, err)
	assert.Equal(t, 0, cfg.Renderer.ShadowSlots)

	bad := ApplicationConfig{Overrides: func(c *config.Config) { c.Renderer.FramesInFlight = 0 }}
	_, err = bad.load()
	assert.Error(t, err)
}
