//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Downloads the modules and builds the testbed binary into bin/.
func (Build) Engine() error {
	if _, err := executeCmd("go", withArgs("mod", "download"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/penumbra", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs vet over every package.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

type Test mg.Namespace

// Runs the unit tests. None of them need a GPU or a display.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the frame scheduler tests only, verbosely.
func (Test) Frame() error {
	_, err := executeCmd("go", withArgs("test", "-v", "-count=1", "./engine/renderer/..."), withStream())
	return err
}
