package engine

import (
	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
)

// ApplicationConfig tells the engine where its settings live.
type ApplicationConfig struct {
	// ConfigPath is a TOML file. When empty the built-in defaults are used
	// and hot reload is disabled.
	ConfigPath string
	// Watch enables hot reload of ConfigPath.
	Watch bool
	// Overrides is applied on top of the loaded file, if set.
	Overrides func(*config.Config)
}

func (a ApplicationConfig) load() (config.Config, error) {
	cfg := config.Default()
	if a.ConfigPath != "" {
		loaded, err := config.Load(a.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if a.Overrides != nil {
		a.Overrides(&cfg)
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	core.SetLogLevel(cfg.LogLevel())
	return cfg, nil
}
