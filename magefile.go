//go:build mage
// +build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Build compiles the server binary into ./bin.
func Build() error {
	return sh.RunV("go", "build", "-o", "bin/timbre", "./cmd/timbre")
}

// Test runs the whole test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Run builds and starts the server with the current environment.
func Run() error {
	mg.Deps(Build)
	return sh.RunV("./bin/timbre")
}
