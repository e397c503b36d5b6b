// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package migration runs the at-most-once database migration command
// against the workload container, tracking the outcome in a status file
// that survives container restarts but not container recreation.
package migration

import (
	stderrors "errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kballard/go-shellquote"

	"github.com/canonical/paascharm/container"
	coreerrors "github.com/canonical/paascharm/core/errors"
)

var logger = loggo.GetLogger("paascharm.migration")

// Status is the persisted outcome of the database migration run.
type Status string

const (
	// Pending means no run has been attempted in this container. It is
	// represented by the absence of the status file and never written.
	Pending Status = "PENDING"

	// Completed means a run finished with exit code zero. Completed is
	// terminal until the container is recreated.
	Completed Status = "COMPLETED"

	// Failed means the last run exited non-zero; it is retried on the
	// next externally triggered reconciliation.
	Failed Status = "FAILED"
)

const (
	statusFileName    = "database-migration-status"
	completedFileName = "completed-database-migration"
)

// Migration manages the database migration lifecycle for one workload
// container.
type Migration struct {
	container     container.Container
	statusFile    string
	completedFile string
}

// New returns a Migration persisting its state under stateDir in the
// supplied container.
func New(c container.Container, stateDir string) *Migration {
	return &Migration{
		container:     c,
		statusFile:    path.Join(stateDir, statusFileName),
		completedFile: path.Join(stateDir, completedFileName),
	}
}

// Status returns the persisted migration status. A missing status file
// means Pending.
func (m *Migration) Status() (Status, error) {
	exists, err := m.container.Exists(m.statusFile)
	if err != nil {
		return "", errors.Trace(err)
	}
	if !exists {
		return Pending, nil
	}
	content, err := m.container.Pull(m.statusFile)
	if err != nil {
		return "", errors.Trace(err)
	}
	status := Status(strings.TrimSpace(content))
	switch status {
	case Pending, Completed, Failed:
		return status, nil
	}
	return "", errors.Errorf("unrecognised migration status %q", content)
}

// CompletedCommand returns the command that last completed in this
// container, or nil when no migration has completed.
func (m *Migration) CompletedCommand() ([]string, error) {
	exists, err := m.container.Exists(m.completedFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, nil
	}
	content, err := m.container.Pull(m.completedFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	command, err := shellquote.Split(strings.TrimSpace(content))
	if err != nil {
		return nil, errors.Annotate(err, "parsing completed migration command")
	}
	return command, nil
}

// Run executes the migration command unless a previous run already
// completed in this container. There is no in-process retry: a failed
// run persists Failed and is retried by the next externally triggered
// reconciliation, typically the periodic update-status tick.
func (m *Migration) Run(command []string, environment map[string]string, workingDir string) error {
	status, err := m.Status()
	if err != nil {
		return errors.Trace(err)
	}
	if status == Completed {
		return nil
	}
	if len(command) == 0 {
		return nil
	}
	logger.Infof("running database migration command %s", shellquote.Join(command...))
	stdout, stderr, err := m.container.Exec(container.ExecOptions{
		Command:     command,
		Environment: environment,
		WorkingDir:  workingDir,
	})
	if err != nil {
		var execErr *container.ExecError
		if !stderrors.As(err, &execErr) {
			return errors.Trace(err)
		}
		logger.Errorf(
			"database migration command failed, stdout: %s, stderr: %s",
			execErr.Stdout, execErr.Stderr,
		)
		if err := m.setStatus(Failed); err != nil {
			return errors.Trace(err)
		}
		return fmt.Errorf(
			"database migration command %s failed, will retry in next update-status%w",
			shellquote.Join(command...), errors.Hide(coreerrors.InvalidConfiguration),
		)
	}
	logger.Debugf("database migration command succeeded, stdout: %s, stderr: %s", stdout, stderr)
	if err := m.setStatus(Completed); err != nil {
		return errors.Trace(err)
	}
	if err := m.container.Push(m.completedFile, shellquote.Join(command...)); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// CheckDrift reports a configuration error when a different migration
// command has already completed in this container. Changing the
// configured command after completion has no effect until the container
// is recreated, so silent drift is rejected rather than ignored.
func (m *Migration) CheckDrift(command []string) error {
	completed, err := m.CompletedCommand()
	if err != nil {
		return errors.Trace(err)
	}
	if completed == nil || len(command) == 0 {
		return nil
	}
	if slices.Equal(completed, command) {
		return nil
	}
	return fmt.Errorf(
		"database migration command %s has already completed in the current container, "+
			"changing it in the charm configuration has no effect%w",
		shellquote.Join(completed...), errors.Hide(coreerrors.InvalidConfiguration),
	)
}

func (m *Migration) setStatus(status Status) error {
	return errors.Trace(m.container.Push(m.statusFile, string(status)))
}
