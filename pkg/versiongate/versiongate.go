// Package versiongate decides whether a flow recorded against one version of
// the workflow service may be applied to an environment running another.
package versiongate

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	// Proceed means there is nothing to reconcile.
	Proceed Decision = iota
	// ProceedWithWarning means the versions differ but the operation
	// continues; callers surface the discrepancy.
	ProceedWithWarning
	// Block means the operation must not mutate anything.
	Block
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case ProceedWithWarning:
		return "proceed-with-warning"
	case Block:
		return "block"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Mismatch describes a version discrepancy presented for confirmation.
type Mismatch struct {
	Subject     string // flow name or id shown to the user
	LastTested  string
	Environment string
}

// Confirmer obtains an explicit decision about a version mismatch. The CLI
// layer implements it with an interactive prompt; a nil Confirmer means the
// context is non-interactive.
type Confirmer interface {
	ConfirmVersionMismatch(m Mismatch) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(m Mismatch) (bool, error)

// ConfirmVersionMismatch calls f(m).
func (f ConfirmFunc) ConfirmVersionMismatch(m Mismatch) (bool, error) {
	return f(m)
}

// Check compares lastTested against environment.
//
// An empty lastTested always proceeds. Equal versions proceed. Different
// versions proceed with a warning when ignore is set; otherwise confirm is
// asked and a refusal, a confirmer error, or a nil confirmer blocks with
// VersionMismatch. The returned error is non-nil exactly when the decision
// is Block.
func Check(subject, lastTested, environment string, ignore bool, confirm Confirmer) (Decision, error) {
	lastTested = strings.TrimSpace(lastTested)
	environment = strings.TrimSpace(environment)

	if lastTested == "" || Equal(lastTested, environment) {
		return Proceed, nil
	}

	if ignore {
		return ProceedWithWarning, nil
	}

	m := Mismatch{Subject: subject, LastTested: lastTested, Environment: environment}
	if confirm == nil {
		return Block, mismatchError(m, fmt.Errorf("confirmation unavailable in non-interactive mode"))
	}

	ok, err := confirm.ConfirmVersionMismatch(m)
	if err != nil {
		return Block, mismatchError(m, fmt.Errorf("confirmation failed: %w", err))
	}
	if !ok {
		return Block, mismatchError(m, fmt.Errorf("confirmation refused"))
	}
	return ProceedWithWarning, nil
}

// Equal reports whether two version strings name the same release. Strings
// that are full MAJOR.MINOR.PATCH semantic versions, optionally prefixed
// with "v", are compared component-wise including prerelease and build
// metadata ("v1.2.0" equals "1.2.0"). Anything else, such as "1.2", must
// match exactly after trimming. There is no range matching: a patch-level
// difference is a mismatch.
func Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}

	va, okA := parseStrict(a)
	vb, okB := parseStrict(b)
	if !okA || !okB {
		return false
	}
	return va.Equal(vb) && va.Prerelease() == vb.Prerelease() && va.Metadata() == vb.Metadata()
}

func parseStrict(v string) (*semver.Version, bool) {
	sv, err := semver.StrictNewVersion(strings.TrimPrefix(v, "v"))
	return sv, err == nil
}

func mismatchError(m Mismatch, cause error) error {
	return flowerrors.Wrap(flowerrors.KindVersionMismatch, "version check", m.Subject,
		fmt.Errorf("flow tested with %s, environment runs %s: %w", m.LastTested, m.Environment, cause))
}
