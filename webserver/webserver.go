// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package webserver derives the gunicorn configuration file from charm
// settings and applies it to the workload container.
package webserver

import (
	stderrors "errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/paascharm/container"
	coreerrors "github.com/canonical/paascharm/core/errors"
	corepaths "github.com/canonical/paascharm/core/paths"
)

var logger = loggo.GetLogger("paascharm.webserver")

// reloadSignal triggers a graceful in-place configuration reload of the
// running gunicorn master, not a stop/start cycle.
const reloadSignal = "SIGHUP"

// Config holds the optional web server settings. A nil field is omitted
// from the generated configuration file so gunicorn applies its own
// default; the library never substitutes one.
type Config struct {
	// Workers is the number of worker processes.
	Workers *int

	// Threads is the number of threads per worker.
	Threads *int

	// Keepalive is the wait for requests on a keep-alive connection.
	Keepalive *time.Duration

	// Timeout is the request silence timeout after which a worker is
	// killed and restarted.
	Timeout *time.Duration
}

// settings returns the optional settings in the order they appear in
// the generated configuration file. Durations reduce to whole seconds.
func (c Config) settings() []struct {
	name  string
	value *int
} {
	seconds := func(d *time.Duration) *int {
		if d == nil {
			return nil
		}
		s := int(d.Seconds())
		return &s
	}
	return []struct {
		name  string
		value *int
	}{
		{"workers", c.Workers},
		{"threads", c.Threads},
		{"keepalive", seconds(c.Keepalive)},
		{"timeout", seconds(c.Timeout)},
	}
}

// Webserver manages the gunicorn server fronting the WSGI application
// in the workload container.
type Webserver struct {
	container container.Container
	paths     corepaths.Paths
	config    Config
}

// New returns a Webserver for the given container and framework paths.
func New(c container.Container, paths corepaths.Paths, config Config) *Webserver {
	return &Webserver{container: c, paths: paths, config: config}
}

// ConfigPath returns the path of the gunicorn configuration file inside
// the workload container.
func (w *Webserver) ConfigPath() string {
	return path.Join(w.paths.BaseDir, "gunicorn.conf.py")
}

// Command returns the command line that starts the gunicorn server.
func (w *Webserver) Command() []string {
	return []string{"python3", "-m", "gunicorn", "-c", w.ConfigPath(), w.paths.WSGIModule()}
}

// configContent renders the configuration file body. Fixed fields come
// first; unset optional settings produce no line at all.
func (w *Webserver) configContent() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bind = ['0.0.0.0:%d']\n", corepaths.Port)
	fmt.Fprintf(&b, "chdir = '%s'\n", w.paths.AppDir)
	fmt.Fprintf(&b, "accesslog = '%s'\n", w.paths.AccessLogPath)
	fmt.Fprintf(&b, "errorlog = '%s'\n", w.paths.ErrorLogPath)
	fmt.Fprintf(&b, "statsd_host = '%s'\n", corepaths.StatsdHost)
	for _, setting := range w.config.settings() {
		if setting.value == nil {
			continue
		}
		fmt.Fprintf(&b, "%s = %d\n", setting.name, *setting.value)
	}
	return b.String()
}

// UpdateConfig computes the desired configuration file, and when it
// differs from the on-disk content, writes it, validates it with the
// server's own config check, and reloads the running server. Unchanged
// content is a complete no-op: no check command runs and no signal is
// sent, so repeated reconciliations do not disturb the workload.
//
// The file is written before the check runs; a failed check therefore
// leaves the new file in place and the next reconciliation retries the
// check against it.
func (w *Webserver) UpdateConfig(environment map[string]string, isRunning bool) error {
	if err := w.prepareLogDirs(); err != nil {
		return errors.Trace(err)
	}
	want := w.configContent()
	current, err := w.container.Pull(w.ConfigPath())
	if err != nil && !errors.Is(err, container.ErrNotFound) {
		return errors.Trace(err)
	}
	if err == nil && current == want {
		return nil
	}
	if err := w.container.Push(w.ConfigPath(), want); err != nil {
		return errors.Trace(err)
	}
	checkCommand := append(w.Command(), "--check-config")
	_, _, err = w.container.Exec(container.ExecOptions{
		Command:     checkCommand,
		Environment: environment,
		WorkingDir:  w.paths.AppDir,
	})
	if err != nil {
		var execErr *container.ExecError
		if !stderrors.As(err, &execErr) {
			return errors.Trace(err)
		}
		logger.Errorf(
			"webserver configuration check failed, stdout: %s, stderr: %s",
			execErr.Stdout, execErr.Stderr,
		)
		return fmt.Errorf(
			"webserver configuration check failed, "+
				"please review your charm configuration or database relation%w",
			errors.Hide(coreerrors.InvalidConfiguration),
		)
	}
	if isRunning {
		logger.Infof("webserver configuration changed, reloading")
		if err := w.container.SendSignal(reloadSignal, w.paths.ServiceName); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// prepareLogDirs creates the access and error log directories ahead of
// the server starting to write to them.
func (w *Webserver) prepareLogDirs() error {
	for _, logFile := range []string{w.paths.AccessLogPath, w.paths.ErrorLogPath} {
		dir := path.Dir(logFile)
		exists, err := w.container.Exists(dir)
		if err != nil {
			return errors.Trace(err)
		}
		if exists {
			continue
		}
		if err := w.container.MakeDir(dir); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
