// Package errors defines the failure taxonomy shared by every flowsync
// component.
//
// Each failure carries a Kind, the operation that was running and the
// identifier (flow id, path, remote name, ...) that caused it. Every Kind has
// an exported sentinel so callers can test with the standard library:
//
//	if errors.Is(err, flowerrors.ErrRemoteNotFound) {
//	    ...
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a failure.
type Kind string

const (
	KindInvalidIdentity    Kind = "InvalidIdentity"
	KindMalformedPath      Kind = "MalformedPath"
	KindDuplicateRemote    Kind = "DuplicateRemote"
	KindRemoteNotFound     Kind = "RemoteNotFound"
	KindNoRemoteSelected   Kind = "NoRemoteSelected"
	KindBranchNotFound     Kind = "BranchNotFound"
	KindBranchExists       Kind = "BranchExists"
	KindAmbiguousProject   Kind = "AmbiguousProject"
	KindProjectNotFound    Kind = "ProjectNotFound"
	KindFlowNotFound       Kind = "FlowNotFound"
	KindRemotePathNotFound Kind = "RemotePathNotFound"
	KindMalformedFlowData  Kind = "MalformedFlowData"
	KindVersionMismatch    Kind = "VersionMismatch"
	KindIncompleteExport   Kind = "IncompleteExport"
	KindProfileNotFound    Kind = "ProfileNotFound"
	KindCollaborator       Kind = "CollaboratorError"
)

// kindError is the sentinel value behind each Kind.
type kindError struct {
	kind Kind
}

func (e *kindError) Error() string {
	return string(e.kind)
}

var (
	ErrInvalidIdentity    error = &kindError{KindInvalidIdentity}
	ErrMalformedPath      error = &kindError{KindMalformedPath}
	ErrDuplicateRemote    error = &kindError{KindDuplicateRemote}
	ErrRemoteNotFound     error = &kindError{KindRemoteNotFound}
	ErrNoRemoteSelected   error = &kindError{KindNoRemoteSelected}
	ErrBranchNotFound     error = &kindError{KindBranchNotFound}
	ErrBranchExists       error = &kindError{KindBranchExists}
	ErrAmbiguousProject   error = &kindError{KindAmbiguousProject}
	ErrProjectNotFound    error = &kindError{KindProjectNotFound}
	ErrFlowNotFound       error = &kindError{KindFlowNotFound}
	ErrRemotePathNotFound error = &kindError{KindRemotePathNotFound}
	ErrMalformedFlowData  error = &kindError{KindMalformedFlowData}
	ErrVersionMismatch    error = &kindError{KindVersionMismatch}
	ErrIncompleteExport   error = &kindError{KindIncompleteExport}
	ErrProfileNotFound    error = &kindError{KindProfileNotFound}
	ErrCollaborator       error = &kindError{KindCollaborator}
)

var sentinels = map[Kind]error{
	KindInvalidIdentity:    ErrInvalidIdentity,
	KindMalformedPath:      ErrMalformedPath,
	KindDuplicateRemote:    ErrDuplicateRemote,
	KindRemoteNotFound:     ErrRemoteNotFound,
	KindNoRemoteSelected:   ErrNoRemoteSelected,
	KindBranchNotFound:     ErrBranchNotFound,
	KindBranchExists:       ErrBranchExists,
	KindAmbiguousProject:   ErrAmbiguousProject,
	KindProjectNotFound:    ErrProjectNotFound,
	KindFlowNotFound:       ErrFlowNotFound,
	KindRemotePathNotFound: ErrRemotePathNotFound,
	KindMalformedFlowData:  ErrMalformedFlowData,
	KindVersionMismatch:    ErrVersionMismatch,
	KindIncompleteExport:   ErrIncompleteExport,
	KindProfileNotFound:    ErrProfileNotFound,
	KindCollaborator:       ErrCollaborator,
}

// SyncError is a classified failure with operational context.
type SyncError struct {
	Kind       Kind      // Taxonomy entry
	Operation  string    // What was being performed, e.g. "push flow"
	Identifier string    // Offending flow id, path, remote name, ...
	Timestamp  time.Time // When the error occurred
	Cause      error     // Underlying error, may be nil
}

// New creates a SyncError without an underlying cause.
func New(kind Kind, operation, identifier string) *SyncError {
	return &SyncError{
		Kind:       kind,
		Operation:  operation,
		Identifier: identifier,
		Timestamp:  time.Now(),
	}
}

// Wrap creates a SyncError around cause.
//
// Returns nil if cause is nil.
func Wrap(kind Kind, operation, identifier string, cause error) *SyncError {
	if cause == nil {
		return nil
	}
	e := New(kind, operation, identifier)
	e.Cause = cause
	return e
}

// Collaborator wraps a failure reported by the workflow service or the
// hosting API. An error that is already a SyncError is returned unchanged.
func Collaborator(operation, identifier string, cause error) error {
	if cause == nil {
		return nil
	}
	var se *SyncError
	if stderrors.As(cause, &se) {
		return cause
	}
	return Wrap(KindCollaborator, operation, identifier, cause)
}

// Error implements the error interface.
//
// Format: "{operation}: {kind} [{identifier}]: {cause}"
func (e *SyncError) Error() string {
	if e == nil {
		return "<nil SyncError>"
	}

	msg := string(e.Kind)
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	if e.Identifier != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Identifier)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *SyncError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// KindOf returns the Kind of the first SyncError in err's chain, or the
// empty Kind when there is none.
func KindOf(err error) Kind {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}
