// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package paths derives the filesystem layout and service naming used
// inside the workload container from the WSGI framework name.
package paths

import (
	"fmt"
	"path"
	"strings"
)

const (
	// Port is the fixed port the WSGI server binds to inside the
	// workload container. Ingress maps external traffic onto it.
	Port = 8000

	// StatsdHost is the address of the statsd exporter sidecar that
	// receives web server metrics.
	StatsdHost = "localhost:9125"
)

// Paths represents the set of container filesystem paths and service
// names a WSGI application charm has reason to care about. All fields
// are pure functions of the framework name.
type Paths struct {
	// Framework is the WSGI framework name, "flask" or "django".
	Framework string

	// BaseDir is the project base directory in the workload container.
	BaseDir string

	// AppDir is the directory holding the application source.
	AppDir string

	// StateDir holds persistent charm-managed state, such as the
	// database migration status files.
	StateDir string

	// AccessLogPath and ErrorLogPath are the web server log files.
	AccessLogPath string
	ErrorLogPath  string

	// ContainerName is the name of the workload container as declared
	// in the charm metadata.
	ContainerName string

	// ServiceName is the Pebble service name for the WSGI server.
	ServiceName string
}

// NewPaths returns the set of container paths and service names for the
// supplied framework.
func NewPaths(framework string) Paths {
	base := "/" + framework
	return Paths{
		Framework:     framework,
		BaseDir:       base,
		AppDir:        path.Join(base, "app"),
		StateDir:      path.Join(base, "state"),
		AccessLogPath: fmt.Sprintf("/var/log/%s/access.log", framework),
		ErrorLogPath:  fmt.Sprintf("/var/log/%s/error.log", framework),
		ContainerName: framework + "-app",
		ServiceName:   framework,
	}
}

// EnvPrefix returns the prefix applied to environment variables passed
// to the application process, e.g. "FLASK_" for flask.
func (p Paths) EnvPrefix() string {
	return strings.ToUpper(p.Framework) + "_"
}

// WSGIModule returns the module:callable target handed to the WSGI
// server for the framework.
func (p Paths) WSGIModule() string {
	if p.Framework == "django" {
		return "django_app.wsgi:application"
	}
	return "app:app"
}
