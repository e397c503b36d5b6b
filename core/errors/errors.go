// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package errors defines the error categories shared by the charm
// reconciliation components.
package errors

import (
	"github.com/juju/errors"
)

const (
	// InvalidConfiguration flags a user-actionable problem with the charm
	// configuration or relation data. The reconciler converts it into a
	// blocked unit status rather than failing the hook; the operator is
	// expected to fix the configuration and wait for the next trigger.
	InvalidConfiguration = errors.ConstError("invalid configuration")
)
