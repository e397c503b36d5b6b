// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration_test

import (
	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/paascharm/container"
	containertesting "github.com/canonical/paascharm/container/testing"
	coreerrors "github.com/canonical/paascharm/core/errors"
	"github.com/canonical/paascharm/migration"
)

type MigrationSuite struct {
	jujutesting.IsolationSuite

	container *containertesting.Container
	migration *migration.Migration
}

var _ = gc.Suite(&MigrationSuite{})

var migrateCommand = []string{"/bin/bash", "-xeo", "pipefail", "/flask/app/migrate.sh"}

func (s *MigrationSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.container = containertesting.NewContainer()
	s.migration = migration.New(s.container, "/flask/state")
}

func (s *MigrationSuite) TestStatusPendingWithoutFile(c *gc.C) {
	status, err := s.migration.Status()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, migration.Pending)
}

func (s *MigrationSuite) TestRunSuccess(c *gc.C) {
	var executed container.ExecOptions
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		executed = opts
		return "done", "", nil
	}
	environment := map[string]string{"FLASK_ENV": "production"}
	err := s.migration.Run(migrateCommand, environment, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(executed.Command, gc.DeepEquals, migrateCommand)
	c.Assert(executed.Environment, gc.DeepEquals, environment)
	c.Assert(executed.WorkingDir, gc.Equals, "/flask/app")

	status, err := s.migration.Status()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, migration.Completed)
	c.Assert(s.container.Files["/flask/state/database-migration-status"], gc.Equals, "COMPLETED")

	completed, err := s.migration.CompletedCommand()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(completed, gc.DeepEquals, migrateCommand)
}

func (s *MigrationSuite) TestRunAtMostOnce(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", nil
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)

	s.container.ResetCalls()
	err = s.migration.Run([]string{"/bin/bash", "-xeo", "pipefail", "/flask/app/other.sh"}, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	for _, name := range s.container.CallNames() {
		c.Assert(name, gc.Not(gc.Equals), "Exec")
	}
	c.Assert(s.container.Files["/flask/state/database-migration-status"], gc.Equals, "COMPLETED")
}

func (s *MigrationSuite) TestRunFailurePersistsFailed(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", &container.ExecError{Command: opts.Command, ExitCode: 1, Stderr: "no such file"}
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, gc.NotNil)
	c.Assert(errors.Is(err, coreerrors.InvalidConfiguration), jc.IsTrue)
	c.Assert(err, gc.ErrorMatches, "database migration command .* failed, will retry in next update-status")

	status, err := s.migration.Status()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, migration.Failed)
}

func (s *MigrationSuite) TestFailedRunIsRetried(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", &container.ExecError{Command: opts.Command, ExitCode: 1}
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(errors.Is(err, coreerrors.InvalidConfiguration), jc.IsTrue)

	// The script becomes available; the next reconciliation succeeds.
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", nil
	}
	err = s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	status, err := s.migration.Status()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, migration.Completed)
}

func (s *MigrationSuite) TestRunWithoutCommand(c *gc.C) {
	err := s.migration.Run(nil, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	status, err := s.migration.Status()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, migration.Pending)
	for _, name := range s.container.CallNames() {
		c.Assert(name, gc.Not(gc.Equals), "Exec")
	}
}

func (s *MigrationSuite) TestCheckDriftNoCompletedCommand(c *gc.C) {
	c.Assert(s.migration.CheckDrift(migrateCommand), jc.ErrorIsNil)
}

func (s *MigrationSuite) TestCheckDriftSameCommand(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", nil
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.migration.CheckDrift(migrateCommand), jc.ErrorIsNil)
}

func (s *MigrationSuite) TestCheckDriftRejectsChangedCommand(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", nil
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)

	changed := []string{"/bin/bash", "-xeo", "pipefail", "/flask/app/other.sh"}
	err = s.migration.CheckDrift(changed)
	c.Assert(err, gc.NotNil)
	c.Assert(errors.Is(err, coreerrors.InvalidConfiguration), jc.IsTrue)
	c.Assert(err, gc.ErrorMatches, "database migration command .* has already completed .*")
}

func (s *MigrationSuite) TestCheckDriftNoConfiguredCommand(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", nil
	}
	err := s.migration.Run(migrateCommand, nil, "/flask/app")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.migration.CheckDrift(nil), jc.ErrorIsNil)
}
