// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmstate

import (
	"regexp"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"
)

// frameworkCheckers validate the framework built-in settings, keyed by
// the unprefixed setting name. Prefixed configuration keys without a
// checker pass through to the framework unvalidated, matching the
// frameworks' own permissive handling of unknown settings.
var frameworkCheckers = map[string]map[string]schema.Checker{
	"flask": {
		"env":                        schema.NonEmptyString("env"),
		"debug":                      schema.Bool(),
		"secret_key":                 schema.NonEmptyString("secret_key"),
		"permanent_session_lifetime": positiveIntChecker{},
		"application_root":           schema.NonEmptyString("application_root"),
		"session_cookie_secure":      schema.Bool(),
		"preferred_url_scheme":       urlSchemeChecker{},
	},
	"django": {
		"debug":         schema.Bool(),
		"secret_key":    schema.NonEmptyString("secret_key"),
		"allowed_hosts": hostListChecker{},
	},
}

// parseFrameworkConfig extracts and validates the framework built-in
// settings from the charm configuration. Every failing field is
// recorded in invalid under its user-facing (prefixed, dashed) name so
// the operator sees all problems at once rather than one per attempt.
func parseFrameworkConfig(framework string, config map[string]interface{}, invalid set.Strings) map[string]interface{} {
	prefix := framework + "-"
	checkers := frameworkCheckers[framework]
	wsgiConfig := make(map[string]interface{})
	for key, value := range config {
		if !strings.HasPrefix(key, prefix) || value == nil {
			continue
		}
		name := strings.ReplaceAll(strings.TrimPrefix(key, prefix), "-", "_")
		checker, known := checkers[name]
		if !known {
			wsgiConfig[name] = value
			continue
		}
		coerced, err := checker.Coerce(value, []string{key})
		if err != nil {
			invalid.Add(key)
			continue
		}
		wsgiConfig[name] = coerced
	}
	if framework == "django" {
		// Django requires ALLOWED_HOSTS; absent configuration means an
		// empty list, not an unset variable.
		if _, ok := wsgiConfig["allowed_hosts"]; !ok && !invalid.Contains(prefix+"allowed-hosts") {
			wsgiConfig["allowed_hosts"] = []string{}
		}
	}
	return wsgiConfig
}

func coercePositiveInt(value interface{}) (int, error) {
	coerced, err := schema.ForceInt().Coerce(value, nil)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n := coerced.(int)
	if n <= 0 {
		return 0, errors.Errorf("%d is not a positive integer", n)
	}
	return n, nil
}

// positiveIntChecker coerces integer-ish values and requires them to be
// greater than zero.
type positiveIntChecker struct{}

// Coerce is part of the schema.Checker interface.
func (positiveIntChecker) Coerce(v interface{}, path []string) (interface{}, error) {
	n, err := coercePositiveInt(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return n, nil
}

var urlSchemePattern = regexp.MustCompile("(?i)^(HTTP|HTTPS)$")

// urlSchemeChecker accepts HTTP or HTTPS case-insensitively and
// normalises to upper case.
type urlSchemeChecker struct{}

// Coerce is part of the schema.Checker interface.
func (urlSchemeChecker) Coerce(v interface{}, path []string) (interface{}, error) {
	coerced, err := schema.NonEmptyString("preferred_url_scheme").Coerce(v, path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := coerced.(string)
	if !urlSchemePattern.MatchString(s) {
		return nil, errors.Errorf("%q is not HTTP or HTTPS", s)
	}
	return strings.ToUpper(s), nil
}

// hostListChecker splits a comma-separated host list into a slice,
// trimming whitespace and dropping empty entries.
type hostListChecker struct{}

// Coerce is part of the schema.Checker interface.
func (hostListChecker) Coerce(v interface{}, path []string) (interface{}, error) {
	coerced, err := schema.String().Coerce(v, path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	hosts := []string{}
	for _, host := range strings.Split(coerced.(string), ",") {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}
