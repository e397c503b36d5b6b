// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package container

// Layer is a Pebble configuration layer fragment describing the
// services the charm manages.
type Layer struct {
	Summary  string             `yaml:"summary,omitempty"`
	Services map[string]Service `yaml:"services"`
}

// Service is a single service entry in a Layer.
type Service struct {
	// Override controls how this definition combines with any
	// definition of the same service in lower layers. The charm always
	// uses "replace" for the service it owns.
	Override string `yaml:"override"`

	Summary string `yaml:"summary,omitempty"`

	// Command is the full command line to run the service.
	Command string `yaml:"command"`

	// Startup is "enabled" for services started by default on replan.
	Startup string `yaml:"startup,omitempty"`

	// Environment holds the flat string environment for the process.
	Environment map[string]string `yaml:"environment,omitempty"`
}
