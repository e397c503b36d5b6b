// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package container defines the operations the charm needs from the
// workload container supervisor, together with a Pebble-backed
// implementation.
package container

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/kballard/go-shellquote"
)

// ErrNotFound is returned by Pull when the requested path does not
// exist in the workload container.
const ErrNotFound = errors.ConstError("path not found")

// ExecOptions holds the arguments for running a command inside the
// workload container.
type ExecOptions struct {
	// Command is the program and its arguments.
	Command []string

	// Environment is the set of environment variables for the command.
	Environment map[string]string

	// WorkingDir is the directory the command runs in. Empty means the
	// supervisor default.
	WorkingDir string

	// User and Group run the command as a specific identity when set.
	User  string
	Group string
}

// ExecError describes a command that ran in the workload container and
// exited with a non-zero status.
type ExecError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error is part of the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d", shellquote.Join(e.Command...), e.ExitCode)
}

// Container abstracts the subset of the container supervisor API the
// charm reconciliation pipeline consumes. The production implementation
// is backed by the Pebble client; tests substitute their own.
type Container interface {
	// CanConnect reports whether the supervisor API in the workload
	// container is reachable.
	CanConnect() bool

	// Exists reports whether the given path exists in the container.
	Exists(path string) (bool, error)

	// Pull returns the content of the file at path, or ErrNotFound.
	Pull(path string) (string, error)

	// Push writes content to the file at path, creating parent
	// directories as required.
	Push(path, content string) error

	// MakeDir creates the directory at path and any missing parents.
	MakeDir(path string) error

	// Exec runs a command to completion and returns its output. A
	// non-zero exit status is reported as an *ExecError.
	Exec(opts ExecOptions) (stdout, stderr string, err error)

	// SendSignal delivers a named signal to a running service.
	SendSignal(signal, service string) error

	// AddLayer merges the supplied layer into the supervisor plan
	// under the given label.
	AddLayer(label string, layer Layer) error

	// Replan applies the current plan to the running services and
	// waits for the resulting change to complete.
	Replan() error

	// IsRunning reports whether the named service is currently active.
	IsRunning(service string) (bool, error)
}
