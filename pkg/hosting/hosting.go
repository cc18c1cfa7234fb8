// Package hosting is the boundary to the source-control hosting API that
// stores synchronized files. Every operation is a single remote call; there
// is no local working tree.
package hosting

import (
	"context"
	"errors"

	"github.com/dshills/flowsync/pkg/remote"
)

var (
	// ErrNotFound is returned when a file, directory or branch does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a branch that exists.
	ErrAlreadyExists = errors.New("already exists")
)

// File is the content of one repository file at a branch head.
type File struct {
	Path    string
	SHA     string // blob sha, required to update the file
	Content []byte
}

// FileChange describes a single-file commit. An empty SHA creates the file;
// otherwise the file with that blob sha is replaced.
type FileChange struct {
	Path    string
	Content []byte
	Message string
	Branch  string
	SHA     string
}

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Path string
	Type EntryType
}

// Client is the hosting capability the sync engine consumes.
type Client interface {
	// GetFile returns the file at path on branch, or ErrNotFound.
	GetFile(ctx context.Context, path, branch string) (*File, error)

	// PutFile commits change and returns the commit sha.
	PutFile(ctx context.Context, change FileChange) (string, error)

	// ListDir lists the directory at path on branch; "" is the root.
	ListDir(ctx context.Context, path, branch string) ([]Entry, error)

	// ListBranches returns all branch names.
	ListBranches(ctx context.Context) ([]string, error)

	// DefaultBranch returns the repository's default branch.
	DefaultBranch(ctx context.Context) (string, error)

	// CreateBranch creates name at the head of from, or ErrAlreadyExists.
	CreateBranch(ctx context.Context, name, from string) error
}

// Dialer opens a Client for a resolved remote.
type Dialer interface {
	Dial(ctx context.Context, d *remote.Descriptor) (Client, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, d *remote.Descriptor) (Client, error)

// Dial calls f(ctx, d).
func (f DialFunc) Dial(ctx context.Context, d *remote.Descriptor) (Client, error) {
	return f(ctx, d)
}
