// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm wires the reconciliation components together and maps
// host-delivered events onto reconciliation runs and workload status.
package charm

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/paascharm/app"
	"github.com/canonical/paascharm/charmstate"
	"github.com/canonical/paascharm/container"
	coreerrors "github.com/canonical/paascharm/core/errors"
	corepaths "github.com/canonical/paascharm/core/paths"
	"github.com/canonical/paascharm/core/status"
	"github.com/canonical/paascharm/migration"
	"github.com/canonical/paascharm/secrets"
	"github.com/canonical/paascharm/webserver"
)

var logger = loggo.GetLogger("paascharm.charm")

// Charm implements Reconciler for one WSGI application workload. All
// state is rebuilt per reconciliation; the struct itself only holds
// wiring.
type Charm struct {
	framework     string
	paths         corepaths.Paths
	backend       Backend
	container     container.Container
	secretStorage *secrets.Storage
	secretKeyName string
}

// NewFlask returns a Charm managing a Flask workload.
func NewFlask(backend Backend, c container.Container, store secrets.Store) *Charm {
	return newCharm("flask", backend, c, store)
}

// NewDjango returns a Charm managing a Django workload.
func NewDjango(backend Backend, c container.Container, store secrets.Store) *Charm {
	return newCharm("django", backend, c, store)
}

func newCharm(framework string, backend Backend, c container.Container, store secrets.Store) *Charm {
	secretKeyName := framework + "_secret_key"
	return &Charm{
		framework:     framework,
		paths:         corepaths.NewPaths(framework),
		backend:       backend,
		container:     c,
		secretStorage: secrets.NewStorage(store, backend, secretKeyName),
		secretKeyName: secretKeyName,
	}
}

// Reconcile runs a full reconciliation pass for the given trigger. It
// is synchronous and run-to-completion; the host serialises triggers so
// no two passes overlap for the same unit.
func (c *Charm) Reconcile(trigger Trigger) error {
	switch trigger {
	case TriggerUpdateStatus:
		// The periodic tick exists to retry failed migrations with
		// bounded frequency; anything else is driven by its own event.
		if !c.container.CanConnect() {
			return nil
		}
		migrationStatus, err := migration.New(c.container, c.paths.StateDir).Status()
		if err != nil {
			return errors.Trace(err)
		}
		if migrationStatus != migration.Failed {
			return nil
		}
	case TriggerSecretStorageChanged:
		if err := c.secretStorage.EnsureInitialValues(); err != nil {
			return errors.Trace(err)
		}
	}
	return c.restart()
}

// RotateSecretKey regenerates the application secret key and restarts
// the workload with the new value. Only the leader may rotate; the
// error is returned to the host for action failure reporting and the
// stored secret is left untouched.
func (c *Charm) RotateSecretKey() error {
	if !c.backend.IsLeader() {
		return fmt.Errorf(
			"only the leader unit can rotate the secret key%w",
			errors.Hide(secrets.ErrNotLeader),
		)
	}
	if !c.secretStorage.IsInitialized() {
		return fmt.Errorf(
			"charm is still initializing%w",
			errors.Hide(secrets.ErrUninitialized),
		)
	}
	if err := c.secretStorage.ResetSecret(c.secretKeyName); err != nil {
		return errors.Trace(err)
	}
	return c.restart()
}

func (c *Charm) restart() error {
	if !c.container.CanConnect() {
		return c.updateStatus(status.StatusInfo{
			Status:  status.Waiting,
			Message: "waiting for pebble",
		})
	}
	if !c.secretStorage.IsInitialized() {
		return c.updateStatus(status.StatusInfo{
			Status:  status.Waiting,
			Message: "waiting for peer integration to be ready",
		})
	}
	state, err := charmstate.Build(charmstate.Params{
		Framework:         c.framework,
		AppName:           c.backend.ApplicationName(),
		Config:            c.backend.Config(),
		DatabaseRelations: c.backend.DatabaseRelations(),
		S3:                c.backend.S3ConnectionInfo(),
		Secrets:           secretSource{storage: c.secretStorage, key: c.secretKeyName},
		Getenv:            c.backend.Getenv,
	})
	if err != nil {
		return c.reportError(err)
	}
	if err := c.updateStatus(status.StatusInfo{
		Status:  status.Maintenance,
		Message: "preparing service for restart",
	}); err != nil {
		return errors.Trace(err)
	}
	ws := webserver.New(c.container, c.paths, state.WebserverConfig)
	mig := migration.New(c.container, c.paths.StateDir)
	if err := app.New(c.container, state, ws, mig).Restart(); err != nil {
		return c.reportError(err)
	}
	return c.updateStatus(status.StatusInfo{Status: status.Active})
}

// reportError converts configuration problems into blocked status and
// lets everything else escalate to the host framework. Blocked is
// resolved by the operator changing configuration, which re-triggers
// reconciliation.
func (c *Charm) reportError(err error) error {
	if errors.Is(err, coreerrors.InvalidConfiguration) {
		logger.Infof("reconciliation blocked: %v", err)
		return c.updateStatus(status.StatusInfo{
			Status:  status.Blocked,
			Message: err.Error(),
		})
	}
	return errors.Trace(err)
}

func (c *Charm) updateStatus(info status.StatusInfo) error {
	if err := c.backend.SetUnitStatus(info); err != nil {
		return errors.Trace(err)
	}
	if c.backend.IsLeader() {
		if err := c.backend.SetApplicationStatus(info); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// secretSource adapts the secret storage to the snapshot builder.
type secretSource struct {
	storage *secrets.Storage
	key     string
}

// IsInitialized is part of the charmstate.SecretSource interface.
func (s secretSource) IsInitialized() bool {
	return s.storage.IsInitialized()
}

// SecretKey is part of the charmstate.SecretSource interface.
func (s secretSource) SecretKey() (string, error) {
	return s.storage.GetSecret(s.key)
}
