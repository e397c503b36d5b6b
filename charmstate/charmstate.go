// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmstate assembles the immutable per-reconciliation
// snapshot of desired state from charm configuration, relation data and
// the secret storage.
package charmstate

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/proxy"

	coreerrors "github.com/canonical/paascharm/core/errors"
	corepaths "github.com/canonical/paascharm/core/paths"
	"github.com/canonical/paascharm/webserver"
)

var logger = loggo.GetLogger("paascharm.charmstate")

// migrationScriptKey is the charm configuration key naming the database
// migration script, resolved relative to the application directory.
const migrationScriptKey = "database-migration-script"

// webserverConfigKeys are the charm configuration keys claimed by the
// web server; they never reach the application environment.
var webserverConfigKeys = []string{
	"webserver-workers",
	"webserver-threads",
	"webserver-keepalive",
	"webserver-timeout",
}

// SecretSource is the view of the secret storage the snapshot needs.
type SecretSource interface {
	IsInitialized() bool
	SecretKey() (string, error)
}

// Params are the raw inputs a CharmState is assembled from.
type Params struct {
	// Framework is the WSGI framework name, "flask" or "django".
	Framework string

	// AppName is the charm application name, used as the default
	// database name for database connection URIs.
	AppName string

	// Config is the flat charm configuration map.
	Config map[string]interface{}

	// DatabaseRelations maps a database interface name (mysql,
	// postgresql, mongodb, redis) to the databags of its established
	// relations, one field map per relation.
	DatabaseRelations map[string][]map[string]string

	// S3 holds the object storage connection attributes from the
	// s3 integrator relation, nil when no such relation exists.
	S3 map[string]string

	// Secrets is the charm secret storage.
	Secrets SecretSource

	// Getenv reads deployment environment variables; injectable so
	// tests never touch the real process environment.
	Getenv func(string) string
}

// CharmState is an immutable snapshot of the desired workload state,
// rebuilt from scratch on every reconciliation and never mutated after
// construction.
type CharmState struct {
	// Framework is the WSGI framework name.
	Framework string

	// Paths is the container layout derived from the framework.
	Paths corepaths.Paths

	// WebserverConfig holds the optional web server settings.
	WebserverConfig webserver.Config

	// WSGIConfig holds the validated framework built-in settings,
	// keyed by the unprefixed setting name.
	WSGIConfig map[string]interface{}

	// AppConfig holds user-defined pass-through configuration. By
	// construction it never contains a key present in WSGIConfig.
	AppConfig map[string]interface{}

	// DatabaseURIs maps connection environment variable names (for
	// example MYSQL_DB_CONNECT_STRING) to fully formed URIs.
	DatabaseURIs map[string]string

	// S3 holds object storage connection attributes, empty when no
	// object storage relation exists.
	S3 map[string]string

	// MigrationCommand is the database migration command, nil when no
	// migration script is configured.
	MigrationCommand []string

	// Proxy holds the HTTP/HTTPS/no-proxy settings of the deployment.
	Proxy proxy.Settings

	// IsSecretStorageReady gates reconciliation: configuration must
	// not be applied while it is false.
	IsSecretStorageReady bool

	secretKey string
}

// SecretKey returns the framework session-signing secret. Reading it
// before the secret storage is initialized is a caller-ordering bug, so
// it panics rather than returning a recoverable error.
func (s *CharmState) SecretKey() string {
	if !s.IsSecretStorageReady {
		panic("secret key read before secret storage is initialized")
	}
	return s.secretKey
}

// Build assembles a CharmState from the supplied inputs. It is a pure
// derivation: the only side effects are reads. Invalid configuration
// values are aggregated into a single error naming every bad field.
func Build(p Params) (*CharmState, error) {
	paths := corepaths.NewPaths(p.Framework)
	invalid := set.NewStrings()

	webserverConfig := parseWebserverConfig(p.Config, invalid)
	wsgiConfig := parseFrameworkConfig(p.Framework, p.Config, invalid)
	if !invalid.IsEmpty() {
		return nil, fmt.Errorf(
			"invalid configuration: %s%w",
			strings.Join(invalid.SortedValues(), " "),
			errors.Hide(coreerrors.InvalidConfiguration),
		)
	}

	migrationCommand, err := parseMigrationCommand(p.Config, paths)
	if err != nil {
		return nil, errors.Trace(err)
	}

	appConfig := parseAppConfig(p.Framework, p.Config, wsgiConfig)

	state := &CharmState{
		Framework:            p.Framework,
		Paths:                paths,
		WebserverConfig:      webserverConfig,
		WSGIConfig:           wsgiConfig,
		AppConfig:            appConfig,
		DatabaseURIs:         databaseURIs(p.DatabaseRelations, p.AppName),
		S3:                   p.S3,
		MigrationCommand:     migrationCommand,
		Proxy:                proxyFromEnv(p.Getenv),
		IsSecretStorageReady: p.Secrets.IsInitialized(),
	}
	if state.IsSecretStorageReady {
		key, err := p.Secrets.SecretKey()
		if err != nil {
			return nil, errors.Trace(err)
		}
		state.secretKey = key
	}
	return state, nil
}

// parseWebserverConfig extracts the optional web server settings from
// the charm configuration, recording bad values in invalid.
func parseWebserverConfig(config map[string]interface{}, invalid set.Strings) webserver.Config {
	intSetting := func(key string) *int {
		value, ok := config[key]
		if !ok || value == nil {
			return nil
		}
		n, err := coercePositiveInt(value)
		if err != nil {
			invalid.Add(key)
			return nil
		}
		return &n
	}
	durationSetting := func(key string) *time.Duration {
		n := intSetting(key)
		if n == nil {
			return nil
		}
		d := time.Duration(*n) * time.Second
		return &d
	}
	return webserver.Config{
		Workers:   intSetting("webserver-workers"),
		Threads:   intSetting("webserver-threads"),
		Keepalive: durationSetting("webserver-keepalive"),
		Timeout:   durationSetting("webserver-timeout"),
	}
}

// parseMigrationCommand resolves the configured migration script to a
// command list. The script path must resolve inside the application
// directory.
func parseMigrationCommand(config map[string]interface{}, paths corepaths.Paths) ([]string, error) {
	value, ok := config[migrationScriptKey]
	if !ok || value == nil {
		return nil, nil
	}
	script, ok := value.(string)
	if !ok || script == "" {
		return nil, nil
	}
	resolved := path.Clean(path.Join(paths.AppDir, script))
	if resolved != paths.AppDir && !strings.HasPrefix(resolved, paths.AppDir+"/") {
		return nil, fmt.Errorf(
			"%s is not inside %s%w",
			migrationScriptKey, paths.AppDir,
			errors.Hide(coreerrors.InvalidConfiguration),
		)
	}
	return []string{"/bin/bash", "-xeo", "pipefail", resolved}, nil
}

// parseAppConfig collects the user-defined pass-through configuration:
// everything not claimed by the framework prefix, the web server or the
// migration script, with dashes normalised to underscores. Keys that
// would collide with a framework built-in are dropped up front so the
// two maps never overlap.
func parseAppConfig(framework string, config map[string]interface{}, wsgiConfig map[string]interface{}) map[string]interface{} {
	claimed := set.NewStrings(webserverConfigKeys...)
	claimed.Add(migrationScriptKey)
	appConfig := make(map[string]interface{})
	for key, value := range config {
		if claimed.Contains(key) || strings.HasPrefix(key, framework+"-") {
			continue
		}
		name := strings.ReplaceAll(key, "-", "_")
		if _, ok := wsgiConfig[name]; ok {
			logger.Warningf("dropping configuration %q: collides with a %s built-in setting", key, framework)
			continue
		}
		appConfig[name] = value
	}
	return appConfig
}

// proxyFromEnv reads the charm proxy settings from the deployment
// environment.
func proxyFromEnv(getenv func(string) string) proxy.Settings {
	if getenv == nil {
		return proxy.Settings{}
	}
	return proxy.Settings{
		Http:    getenv("JUJU_CHARM_HTTP_PROXY"),
		Https:   getenv("JUJU_CHARM_HTTPS_PROXY"),
		NoProxy: getenv("JUJU_CHARM_NO_PROXY"),
	}
}
