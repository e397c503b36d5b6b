// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package webserver_test

import (
	"strings"
	"time"

	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/paascharm/container"
	containertesting "github.com/canonical/paascharm/container/testing"
	coreerrors "github.com/canonical/paascharm/core/errors"
	corepaths "github.com/canonical/paascharm/core/paths"
	"github.com/canonical/paascharm/webserver"
)

type WebserverSuite struct {
	jujutesting.IsolationSuite

	container *containertesting.Container
	paths     corepaths.Paths
}

var _ = gc.Suite(&WebserverSuite{})

func (s *WebserverSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.container = containertesting.NewContainer()
	s.container.Dirs["/var/log/flask"] = true
	s.paths = corepaths.NewPaths("flask")
}

func intPtr(n int) *int {
	return &n
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func (s *WebserverSuite) TestCommand(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	c.Assert(ws.Command(), gc.DeepEquals, []string{
		"python3", "-m", "gunicorn", "-c", "/flask/gunicorn.conf.py", "app:app",
	})
}

func (s *WebserverSuite) TestConfigOmitsUnsetSettings(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(nil, false)
	c.Assert(err, jc.ErrorIsNil)
	content := s.container.Files["/flask/gunicorn.conf.py"]
	c.Assert(content, gc.Equals, `bind = ['0.0.0.0:8000']
chdir = '/flask/app'
accesslog = '/var/log/flask/access.log'
errorlog = '/var/log/flask/error.log'
statsd_host = 'localhost:9125'
`)
}

func (s *WebserverSuite) TestConfigRendersSetSettings(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{
		Workers:   intPtr(2),
		Threads:   intPtr(4),
		Keepalive: durationPtr(5 * time.Second),
		Timeout:   durationPtr(7 * time.Second),
	})
	err := ws.UpdateConfig(nil, false)
	c.Assert(err, jc.ErrorIsNil)
	content := s.container.Files["/flask/gunicorn.conf.py"]
	c.Assert(strings.Contains(content, "workers = 2\n"), jc.IsTrue)
	c.Assert(strings.Contains(content, "threads = 4\n"), jc.IsTrue)
	c.Assert(strings.Contains(content, "keepalive = 5\n"), jc.IsTrue)
	c.Assert(strings.Contains(content, "timeout = 7\n"), jc.IsTrue)
}

func (s *WebserverSuite) TestUpdateConfigRunsCheck(c *gc.C) {
	var checked container.ExecOptions
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		checked = opts
		return "", "", nil
	}
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(map[string]string{"FLASK_ENV": "production"}, false)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(checked.Command, gc.DeepEquals, []string{
		"python3", "-m", "gunicorn", "-c", "/flask/gunicorn.conf.py", "app:app", "--check-config",
	})
	c.Assert(checked.Environment, gc.DeepEquals, map[string]string{"FLASK_ENV": "production"})
	c.Assert(checked.WorkingDir, gc.Equals, "/flask/app")
}

func (s *WebserverSuite) TestUpdateConfigIdempotent(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{Workers: intPtr(3)})
	err := ws.UpdateConfig(nil, true)
	c.Assert(err, jc.ErrorIsNil)

	s.container.ResetCalls()
	err = ws.UpdateConfig(nil, true)
	c.Assert(err, jc.ErrorIsNil)
	for _, name := range s.container.CallNames() {
		c.Assert(name, gc.Not(gc.Equals), "Exec")
		c.Assert(name, gc.Not(gc.Equals), "SendSignal")
		c.Assert(name, gc.Not(gc.Equals), "Push")
	}
}

func (s *WebserverSuite) TestUpdateConfigReloadsRunningServer(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(nil, true)
	c.Assert(err, jc.ErrorIsNil)
	found := false
	for _, call := range s.container.Calls() {
		if call.FuncName == "SendSignal" {
			found = true
			c.Assert(call.Args, gc.DeepEquals, []interface{}{"SIGHUP", "flask"})
		}
	}
	c.Assert(found, jc.IsTrue)
}

func (s *WebserverSuite) TestUpdateConfigNoReloadWhenStopped(c *gc.C) {
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(nil, false)
	c.Assert(err, jc.ErrorIsNil)
	for _, name := range s.container.CallNames() {
		c.Assert(name, gc.Not(gc.Equals), "SendSignal")
	}
}

func (s *WebserverSuite) TestUpdateConfigCheckFailure(c *gc.C) {
	s.container.ExecFunc = func(opts container.ExecOptions) (string, string, error) {
		return "", "", &container.ExecError{
			Command:  opts.Command,
			ExitCode: 1,
			Stderr:   "invalid config",
		}
	}
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(nil, true)
	c.Assert(err, gc.NotNil)
	c.Assert(errors.Is(err, coreerrors.InvalidConfiguration), jc.IsTrue)
	c.Assert(err, gc.ErrorMatches, "webserver configuration check failed.*")
	for _, name := range s.container.CallNames() {
		c.Assert(name, gc.Not(gc.Equals), "SendSignal")
	}
	// The candidate file stays in place so the next reconciliation
	// retries the check against it.
	c.Assert(s.container.Files["/flask/gunicorn.conf.py"], gc.Not(gc.Equals), "")
}

func (s *WebserverSuite) TestUpdateConfigPreparesLogDirs(c *gc.C) {
	delete(s.container.Dirs, "/var/log/flask")
	ws := webserver.New(s.container, s.paths, webserver.Config{})
	err := ws.UpdateConfig(nil, false)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.container.Dirs["/var/log/flask"], jc.IsTrue)
}
