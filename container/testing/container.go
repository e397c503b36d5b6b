// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package containertesting provides an in-memory Container for tests.
package containertesting

import (
	"github.com/juju/testing"

	"github.com/canonical/paascharm/container"
)

// ExecResult is the canned outcome of one Exec call.
type ExecResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Container is an in-memory container.Container that records calls
// through an embedded Stub and keeps pushed files, created directories
// and added layers for inspection.
type Container struct {
	*testing.Stub

	Connectable bool
	Files       map[string]string
	Dirs        map[string]bool
	Layers      map[string]container.Layer
	Running     map[string]bool

	// ExecFunc, when set, decides the outcome of Exec calls.
	ExecFunc func(opts container.ExecOptions) (string, string, error)
}

// NewContainer returns a connectable empty Container.
func NewContainer() *Container {
	return &Container{
		Stub:        &testing.Stub{},
		Connectable: true,
		Files:       make(map[string]string),
		Dirs:        make(map[string]bool),
		Layers:      make(map[string]container.Layer),
		Running:     make(map[string]bool),
	}
}

// CanConnect is part of the container.Container interface.
func (c *Container) CanConnect() bool {
	c.AddCall("CanConnect")
	return c.Connectable
}

// Exists is part of the container.Container interface.
func (c *Container) Exists(path string) (bool, error) {
	c.AddCall("Exists", path)
	if err := c.NextErr(); err != nil {
		return false, err
	}
	if _, ok := c.Files[path]; ok {
		return true, nil
	}
	return c.Dirs[path], nil
}

// Pull is part of the container.Container interface.
func (c *Container) Pull(path string) (string, error) {
	c.AddCall("Pull", path)
	if err := c.NextErr(); err != nil {
		return "", err
	}
	content, ok := c.Files[path]
	if !ok {
		return "", container.ErrNotFound
	}
	return content, nil
}

// Push is part of the container.Container interface.
func (c *Container) Push(path, content string) error {
	c.AddCall("Push", path, content)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Files[path] = content
	return nil
}

// MakeDir is part of the container.Container interface.
func (c *Container) MakeDir(path string) error {
	c.AddCall("MakeDir", path)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Dirs[path] = true
	return nil
}

// Exec is part of the container.Container interface.
func (c *Container) Exec(opts container.ExecOptions) (string, string, error) {
	c.AddCall("Exec", opts)
	if err := c.NextErr(); err != nil {
		return "", "", err
	}
	if c.ExecFunc != nil {
		return c.ExecFunc(opts)
	}
	return "", "", nil
}

// SendSignal is part of the container.Container interface.
func (c *Container) SendSignal(signal, service string) error {
	c.AddCall("SendSignal", signal, service)
	return c.NextErr()
}

// AddLayer is part of the container.Container interface.
func (c *Container) AddLayer(label string, layer container.Layer) error {
	c.AddCall("AddLayer", label, layer)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Layers[label] = layer
	return nil
}

// Replan is part of the container.Container interface.
func (c *Container) Replan() error {
	c.AddCall("Replan")
	return c.NextErr()
}

// IsRunning is part of the container.Container interface.
func (c *Container) IsRunning(service string) (bool, error) {
	c.AddCall("IsRunning", service)
	if err := c.NextErr(); err != nil {
		return false, err
	}
	return c.Running[service], nil
}

// CallNames returns the names of all recorded calls in order.
func (c *Container) CallNames() []string {
	var names []string
	for _, call := range c.Calls() {
		names = append(names, call.FuncName)
	}
	return names
}
