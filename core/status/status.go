// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package status describes the workload status values a charm unit can
// report back to the controlling model.
package status

// Status represents the workload status of a charm unit or application.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Active is set when the workload is running and the last
	// reconciliation completed without error.
	Active Status = "active"

	// Waiting is set when the workload cannot progress because a
	// dependency managed by the model (container connectivity, secret
	// storage, relation data) is not available yet. It resolves itself
	// once the dependency appears and reconciliation re-runs.
	Waiting Status = "waiting"

	// Maintenance is set while the charm is actively operating on the
	// workload, for example during a database migration run.
	Maintenance Status = "maintenance"

	// Blocked is set when the workload requires human intervention,
	// typically to correct charm configuration or relation data.
	Blocked Status = "blocked"
)

// KnownStatus reports whether the status is one of the values a unit is
// allowed to report.
func (s Status) KnownStatus() bool {
	switch s {
	case Active, Waiting, Maintenance, Blocked:
		return true
	}
	return false
}

// StatusInfo holds a Status and an operator-facing message.
type StatusInfo struct {
	Status  Status
	Message string
}
