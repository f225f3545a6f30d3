//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds then runs the testbed. PENUMBRA_CONFIG selects the config file.
func (Run) Engine() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run engine...")
	args := []string{}
	if path := os.Getenv("PENUMBRA_CONFIG"); path != "" {
		args = append(args, "-config", path)
	}
	if _, err := executeCmd("bin/penumbra", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}

// Writes the default configuration to penumbra.toml.
func (Run) DefaultConfig() error {
	out, err := executeCmd("go", withArgs("run", ".", "-print-config"))
	if err != nil {
		return err
	}
	return os.WriteFile("penumbra.toml", []byte(out), 0o644)
}
