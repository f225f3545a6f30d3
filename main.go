/*
Penumbra testbed: opens a window and drives the frame scheduler with a
spinning camera and a single shadow-casting render system.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/penumbra/engine"
	"github.com/spaghettifunk/penumbra/engine/config"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/testbed"
)

func main() {
	configPath := flag.String("config", os.Getenv("PENUMBRA_CONFIG"), "path to a TOML config file")
	watch := flag.Bool("watch", true, "reload the config file when it changes")
	printConfig := flag.Bool("print-config", false, "print the default configuration and exit")
	flag.Parse()

	if *printConfig {
		data, err := config.Default().Encode()
		if err != nil {
			core.LogFatal("failed to encode the default configuration: %s", err)
		}
		_, _ = os.Stdout.Write(data)
		return
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(tb.Game, engine.ApplicationConfig{
		ConfigPath: *configPath,
		Watch:      *watch,
	})
	if err != nil {
		// nothing is open yet, so there is nothing to tear down
		core.LogFatal("failed to create the engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("failed to initialize the engine: %s", err)
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		// the window thread owns every GPU object, so only ask the loop to stop
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
