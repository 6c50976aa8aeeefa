//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the built binary.
type Pipeline mg.Namespace

// Run processes every file in the configured input directory.
func (Pipeline) Run() error {
	mg.Deps(Build)
	return sh.RunV("./bin/odparse", "--config", configPath())
}

// History lists the recorded runs.
func (Pipeline) History() error {
	mg.Deps(Build)
	return sh.RunV("./bin/odparse", "history", "--config", configPath())
}

// Config writes the default configuration when none exists.
func (Pipeline) Config() error {
	mg.Deps(Build)
	return sh.RunV("./bin/odparse", "init", "--config", configPath())
}

// configPath honours ODPARSE_CONFIG and falls back to the default location.
func configPath() string {
	if p := os.Getenv("ODPARSE_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}
