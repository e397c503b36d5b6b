// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package app orchestrates a reconciliation pass: it derives the Pebble
// service layer from the charm state, applies the web server
// configuration, runs pending database migrations and replans the
// workload container.
package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kballard/go-shellquote"

	"github.com/canonical/paascharm/charmstate"
	"github.com/canonical/paascharm/container"
	"github.com/canonical/paascharm/migration"
	"github.com/canonical/paascharm/webserver"
)

var logger = loggo.GetLogger("paascharm.app")

// App drives one workload container towards the desired state captured
// in a CharmState snapshot.
type App struct {
	container container.Container
	state     *charmstate.CharmState
	webserver *webserver.Webserver
	migration *migration.Migration
}

// New returns an App operating on the given container with the supplied
// snapshot and collaborators.
func New(c container.Container, state *charmstate.CharmState, ws *webserver.Webserver, mig *migration.Migration) *App {
	return &App{container: c, state: state, webserver: ws, migration: mig}
}

// Environment computes the process environment for the application.
// Built-in framework settings take precedence over user configuration;
// non-string values are JSON encoded; database URIs, object storage
// attributes and proxy settings are merged in under their conventional
// names.
func (a *App) Environment() map[string]string {
	prefix := a.state.Paths.EnvPrefix()
	merged := make(map[string]interface{})
	for key, value := range a.state.AppConfig {
		merged[key] = value
	}
	for key, value := range a.state.WSGIConfig {
		merged[key] = value
	}
	env := make(map[string]string)
	for key, value := range merged {
		env[prefix+strings.ToUpper(key)] = encodeEnv(value)
	}
	secretKeyEnv := prefix + "SECRET_KEY"
	if _, ok := env[secretKeyEnv]; !ok {
		env[secretKeyEnv] = a.state.SecretKey()
	}
	for name, value := range map[string]string{
		"http_proxy":  a.state.Proxy.Http,
		"https_proxy": a.state.Proxy.Https,
		"no_proxy":    a.state.Proxy.NoProxy,
	} {
		if value == "" {
			continue
		}
		env[name] = value
		env[strings.ToUpper(name)] = value
	}
	for name, uri := range a.state.DatabaseURIs {
		env[name] = uri
	}
	for attr, value := range a.state.S3 {
		name := "S3_" + strings.ToUpper(strings.ReplaceAll(attr, "-", "_"))
		env[name] = value
	}
	return env
}

// Layer returns the Pebble layer for the application service. The
// service definition replaces any lower-layer definition of the same
// name and leaves other services untouched.
func (a *App) Layer() container.Layer {
	return container.Layer{
		Summary: fmt.Sprintf("%s application layer", a.state.Framework),
		Services: map[string]container.Service{
			a.state.Paths.ServiceName: {
				Override:    "replace",
				Summary:     fmt.Sprintf("%s application service", a.state.Framework),
				Command:     shellquote.Join(a.webserver.Command()...),
				Startup:     "enabled",
				Environment: a.Environment(),
			},
		},
	}
}

// Restart reconciles the workload container with the charm state. The
// pass is a sequence of gates: no container connectivity or an
// uninitialized secret storage end it silently (the next trigger
// re-enters from the top); apply or migration failures propagate to the
// caller for status mapping. The layer is only replanned once every
// earlier phase has succeeded.
func (a *App) Restart() error {
	if !a.container.CanConnect() {
		logger.Infof("container %q is not connectable, skipping reconciliation", a.state.Paths.ContainerName)
		return nil
	}
	if !a.state.IsSecretStorageReady {
		logger.Infof("secret storage is not initialized, skipping reconciliation")
		return nil
	}
	environment := a.Environment()
	if err := a.container.AddLayer(a.state.Paths.ServiceName, a.Layer()); err != nil {
		return errors.Trace(err)
	}
	running, err := a.container.IsRunning(a.state.Paths.ServiceName)
	if err != nil {
		return errors.Trace(err)
	}
	if err := a.webserver.UpdateConfig(environment, running); err != nil {
		return errors.Trace(err)
	}
	if err := a.migration.Run(a.state.MigrationCommand, environment, a.state.Paths.AppDir); err != nil {
		return errors.Trace(err)
	}
	if err := a.migration.CheckDrift(a.state.MigrationCommand); err != nil {
		return errors.Trace(err)
	}
	if err := a.container.Replan(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// encodeEnv renders a configuration value for the process environment:
// strings pass through, everything else is JSON encoded.
func encodeEnv(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		// Configuration values are plain JSON-able scalars and lists;
		// anything else is a bug in snapshot assembly.
		panic(fmt.Sprintf("unencodable configuration value %v: %v", value, err))
	}
	return string(encoded)
}
