package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

const (
	MaxFramesInFlight = 3
	MaxShadowSlots    = 8
)

type Application struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Renderer struct {
	FramesInFlight int `toml:"frames_in_flight"`
	ShadowSlots    int `toml:"shadow_slots"`
	// Edge of the square shadow maps, in texels.
	ShadowResolution uint32     `toml:"shadow_resolution"`
	PresentMode      string     `toml:"present_mode"`
	ClearColor       [4]float32 `toml:"clear_color"`
	Validation       bool       `toml:"validation"`
	DiscreteGPU      bool       `toml:"discrete_gpu"`
}

type Log struct {
	Level string `toml:"level"`
}

type Config struct {
	Application Application `toml:"application"`
	Renderer    Renderer    `toml:"renderer"`
	Log         Log         `toml:"log"`
}

func Default() Config {
	fc := frame.DefaultConfig()
	return Config{
		Application: Application{
			Name:   "Penumbra",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Renderer: Renderer{
			FramesInFlight:   fc.FramesInFlight,
			ShadowSlots:      fc.ShadowSlots,
			ShadowResolution: fc.ShadowExtent.Width,
			PresentMode:      fc.PresentMode.String(),
			ClearColor:       fc.ClearColor,
			Validation:       true,
			DiscreteGPU:      false,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults. Keys not present in the
// file keep their default value; unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("invalid config at line %d column %d: %s", row, col, derr.Error())
		}
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Application.Width == 0 || c.Application.Height == 0 {
		errs = append(errs, fmt.Errorf("application size must be non-zero, got %dx%d", c.Application.Width, c.Application.Height))
	}
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		errs = append(errs, fmt.Errorf("renderer.frames_in_flight must be in [1, %d], got %d", MaxFramesInFlight, c.Renderer.FramesInFlight))
	}
	if c.Renderer.ShadowSlots < 0 || c.Renderer.ShadowSlots > MaxShadowSlots {
		errs = append(errs, fmt.Errorf("renderer.shadow_slots must be in [0, %d], got %d", MaxShadowSlots, c.Renderer.ShadowSlots))
	}
	if c.Renderer.ShadowSlots > 0 && c.Renderer.ShadowResolution == 0 {
		errs = append(errs, errors.New("renderer.shadow_resolution must be non-zero"))
	}
	if _, err := ParsePresentMode(c.Renderer.PresentMode); err != nil {
		errs = append(errs, err)
	}
	for i, channel := range c.Renderer.ClearColor {
		if channel < 0 || channel > 1 {
			errs = append(errs, fmt.Errorf("renderer.clear_color[%d] must be in [0, 1], got %f", i, channel))
		}
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func ParsePresentMode(s string) (gpu.PresentMode, error) {
	switch s {
	case "fifo":
		return gpu.PresentModeFifo, nil
	case "fifo_relaxed":
		return gpu.PresentModeFifoRelaxed, nil
	case "mailbox":
		return gpu.PresentModeMailbox, nil
	case "immediate":
		return gpu.PresentModeImmediate, nil
	}
	return 0, fmt.Errorf("unknown present mode %q", s)
}

// Frame converts the renderer section into the frame scheduler settings.
// The config must be valid.
func (c Config) Frame() frame.Config {
	mode, _ := ParsePresentMode(c.Renderer.PresentMode)
	return frame.Config{
		FramesInFlight: c.Renderer.FramesInFlight,
		ShadowSlots:    c.Renderer.ShadowSlots,
		ShadowExtent:   gpu.Extent2D{Width: c.Renderer.ShadowResolution, Height: c.Renderer.ShadowResolution},
		PresentMode:    mode,
		ClearColor:     c.Renderer.ClearColor,
	}
}

func (c Config) LogLevel() core.LogLevel {
	level, _ := core.ParseLogLevel(c.Log.Level)
	return level
}

// Encode writes c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
