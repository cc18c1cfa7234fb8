// Package types defines the core domain entities and identifiers for flowsync.
package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// FlowID is the workflow service's stable identifier for a flow.
type FlowID string

// ProjectID is the workflow service's stable identifier for a project.
type ProjectID string

// RunID identifies one recorded sync invocation.
type RunID string

// NewRunID generates a new unique run ID.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// String returns the string representation of a RunID.
func (id RunID) String() string {
	return string(id)
}

// IsZero returns true if the RunID is the zero value.
func (id RunID) IsZero() bool {
	return id == ""
}

// Flow is a single workflow definition as reported by the workflow service.
//
// Payload is the complete flow document. The sync engine transports it
// verbatim and never edits its contents.
type Flow struct {
	ID                FlowID
	Name              string
	ProjectID         ProjectID // empty when the flow belongs to no project
	LastTestedVersion string    // empty when absent
	Payload           json.RawMessage
}

// HasProject reports whether the flow is assigned to a project.
func (f *Flow) HasProject() bool {
	return f.ProjectID != ""
}

// Project is a named grouping of flows. Flows reference their project by id.
type Project struct {
	ID       ProjectID
	Name     string
	Metadata json.RawMessage
}

// SyncStatus is the outcome of one unit of sync work.
type SyncStatus string

const (
	StatusCreated SyncStatus = "created"
	StatusUpdated SyncStatus = "updated"
	StatusSkipped SyncStatus = "skipped"
	StatusFailed  SyncStatus = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s SyncStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusUpdated, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// EntityKind distinguishes flow files from project metadata files.
type EntityKind string

const (
	EntityFlow    EntityKind = "flow"
	EntityProject EntityKind = "project"
)

// SyncResult is the outcome of one unit of sync work: one flow file or one
// project metadata file.
type SyncResult struct {
	Kind      EntityKind
	EntityID  string
	Name      string
	Path      string
	Status    SyncStatus
	CommitRef string // commit sha for pushes, blob sha for pulls
	Reason    string // failure or skip reason
	Warning   string // surfaced but non-fatal discrepancy, e.g. a version mismatch
}

// Failed reports whether the unit of work failed.
func (r SyncResult) Failed() bool {
	return r.Status == StatusFailed
}
