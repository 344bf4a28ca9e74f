// Package deploy drives the build, publish and remote-swap sequence that
// replaces a running server instance with a new build while preserving
// availability. Every state transition is appended to a persistent log;
// rows are never mutated, so the history doubles as an audit trail and the
// source of rollback targets.
package deploy

import "time"

// Status is the lifecycle state of one deployment attempt.
type Status string

const (
	StatusBuilding   Status = "building"
	StatusPublished  Status = "published"
	StatusRolling    Status = "rolling"
	StatusHealthy    Status = "healthy"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Record is one appended transition of a deployment attempt.
type Record struct {
	// Seq is the log sequence number, assigned on append.
	Seq int64 `json:"seq"`
	// AttemptID groups the transitions of one deployment attempt.
	AttemptID string `json:"attempt_id"`
	// Tag is the image tag being rolled out.
	Tag string `json:"tag"`
	// Instance is the target instance identifier.
	Instance string `json:"instance"`
	// Status is the state reached by this transition.
	Status Status `json:"status"`
	// Detail carries failure or rollback context.
	Detail string `json:"detail,omitempty"`
	// At is the transition timestamp.
	At time.Time `json:"at"`
}
