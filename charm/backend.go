// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/canonical/paascharm/core/status"
)

// Backend is the host-provided view of the charm's model: flat
// configuration, relation data, leadership and status reporting. The
// charm event framework implements it; tests substitute their own.
type Backend interface {
	// ApplicationName returns the charm application name.
	ApplicationName() string

	// Config returns the current flat charm configuration map.
	Config() map[string]interface{}

	// DatabaseRelations returns the databags of the established
	// database relations, one field map per relation, keyed by
	// interface name (mysql, postgresql, mongodb, redis).
	DatabaseRelations() map[string][]map[string]string

	// S3ConnectionInfo returns the object storage connection
	// attributes, or nil when no object storage relation exists.
	S3ConnectionInfo() map[string]string

	// IsLeader reports whether this unit is the elected leader.
	IsLeader() bool

	// SetUnitStatus reports workload status for this unit.
	SetUnitStatus(status.StatusInfo) error

	// SetApplicationStatus reports workload status for the whole
	// application; only meaningful on the leader.
	SetApplicationStatus(status.StatusInfo) error

	// Getenv reads a variable from the deployment environment.
	Getenv(name string) string
}

// Trigger identifies the external event that caused a reconciliation.
// The host event framework maps each of its events onto one of these.
type Trigger string

const (
	// TriggerConfigChanged follows a charm configuration change.
	TriggerConfigChanged Trigger = "config-changed"

	// TriggerSecretStorageChanged follows a change on the
	// secret-storage peer relation.
	TriggerSecretStorageChanged Trigger = "secret-storage-relation-changed"

	// TriggerDatabaseChanged follows any database relation event:
	// created, endpoints changed or broken.
	TriggerDatabaseChanged Trigger = "database-relation-changed"

	// TriggerS3CredentialsChanged follows object storage credentials
	// being granted or revoked.
	TriggerS3CredentialsChanged Trigger = "s3-credentials-changed"

	// TriggerPebbleReady fires once the workload container supervisor
	// becomes reachable.
	TriggerPebbleReady Trigger = "pebble-ready"

	// TriggerUpdateStatus is the periodic model tick; it only causes
	// work when a failed migration is awaiting retry.
	TriggerUpdateStatus Trigger = "update-status"
)

// Reconciler is the capability the event-adapter layer consumes: every
// host event is translated into one Reconcile call.
type Reconciler interface {
	Reconcile(Trigger) error
}
