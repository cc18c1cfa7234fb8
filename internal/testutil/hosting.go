// Package testutil provides in-memory collaborators for sync tests.
package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/flowsync/pkg/hosting"
	"github.com/dshills/flowsync/pkg/remote"
)

// FakeHosting is an in-memory hosting.Client with a flat file map per
// branch.
type FakeHosting struct {
	mu            sync.Mutex
	files         map[string]map[string][]byte // branch -> path -> content
	defaultBranch string
	commits       int

	// FailPut makes PutFile fail for the given paths.
	FailPut map[string]error
	// FailGet makes GetFile fail for the given paths.
	FailGet map[string]error
	// Changes records every successful PutFile in order.
	Changes []hosting.FileChange
}

var _ hosting.Client = (*FakeHosting)(nil)

// NewFakeHosting returns a repository with the given branches; the first
// is the default. With no arguments the only branch is "main".
func NewFakeHosting(branches ...string) *FakeHosting {
	if len(branches) == 0 {
		branches = []string{"main"}
	}
	h := &FakeHosting{
		files:         make(map[string]map[string][]byte),
		defaultBranch: branches[0],
		FailPut:       make(map[string]error),
		FailGet:       make(map[string]error),
	}
	for _, b := range branches {
		h.files[b] = make(map[string][]byte)
	}
	return h
}

// Dialer returns a hosting.Dialer that always yields h.
func (h *FakeHosting) Dialer() hosting.Dialer {
	return hosting.DialFunc(func(context.Context, *remote.Descriptor) (hosting.Client, error) {
		return h, nil
	})
}

// SetFile seeds a file without recording a change.
func (h *FakeHosting) SetFile(branch, path string, content []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.files[branch] == nil {
		h.files[branch] = make(map[string][]byte)
	}
	h.files[branch][path] = append([]byte(nil), content...)
}

// File returns the content of a file.
func (h *FakeHosting) File(branch, path string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.files[branch][path]
	return c, ok
}

// Paths returns all file paths on branch, sorted.
func (h *FakeHosting) Paths(branch string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	paths := make([]string, 0, len(h.files[branch]))
	for p := range h.files[branch] {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GetFile implements hosting.Client.
func (h *FakeHosting) GetFile(_ context.Context, path, branch string) (*hosting.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.FailGet[path]; err != nil {
		return nil, err
	}
	files, ok := h.files[branch]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branch, hosting.ErrNotFound)
	}
	content, ok := files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, hosting.ErrNotFound)
	}
	return &hosting.File{Path: path, SHA: blobSHA(content), Content: append([]byte(nil), content...)}, nil
}

// PutFile implements hosting.Client.
func (h *FakeHosting) PutFile(_ context.Context, change hosting.FileChange) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.FailPut[change.Path]; err != nil {
		return "", err
	}
	files, ok := h.files[change.Branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", change.Branch, hosting.ErrNotFound)
	}

	existing, exists := files[change.Path]
	switch {
	case exists && change.SHA == "":
		return "", fmt.Errorf("%s: file exists and no sha was supplied", change.Path)
	case exists && change.SHA != blobSHA(existing):
		return "", fmt.Errorf("%s: sha does not match", change.Path)
	case !exists && change.SHA != "":
		return "", fmt.Errorf("%s: %w", change.Path, hosting.ErrNotFound)
	}

	files[change.Path] = append([]byte(nil), change.Content...)
	h.commits++
	h.Changes = append(h.Changes, change)
	return fmt.Sprintf("commit-%d", h.commits), nil
}

// ListDir implements hosting.Client.
func (h *FakeHosting) ListDir(_ context.Context, path, branch string) ([]hosting.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	files, ok := h.files[branch]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branch, hosting.ErrNotFound)
	}

	seen := make(map[string]hosting.Entry)
	for p := range files {
		rest := p
		if path != "" {
			if !strings.HasPrefix(p, path+"/") {
				continue
			}
			rest = strings.TrimPrefix(p, path+"/")
		}
		name, _, isDir := strings.Cut(rest, "/")
		entry := hosting.Entry{Name: name, Path: name, Type: hosting.EntryFile}
		if path != "" {
			entry.Path = path + "/" + name
		}
		if isDir {
			entry.Type = hosting.EntryDir
		}
		seen[name] = entry
	}
	if len(seen) == 0 && path != "" {
		return nil, fmt.Errorf("%s: %w", path, hosting.ErrNotFound)
	}

	entries := make([]hosting.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ListBranches implements hosting.Client.
func (h *FakeHosting) ListBranches(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.files))
	for b := range h.files {
		names = append(names, b)
	}
	sort.Strings(names)
	return names, nil
}

// DefaultBranch implements hosting.Client.
func (h *FakeHosting) DefaultBranch(context.Context) (string, error) {
	return h.defaultBranch, nil
}

// CreateBranch implements hosting.Client.
func (h *FakeHosting) CreateBranch(_ context.Context, name, from string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.files[name]; exists {
		return fmt.Errorf("branch %s: %w", name, hosting.ErrAlreadyExists)
	}
	src, ok := h.files[from]
	if !ok {
		return fmt.Errorf("branch %s: %w", from, hosting.ErrNotFound)
	}
	copied := make(map[string][]byte, len(src))
	for p, c := range src {
		copied[p] = c
	}
	h.files[name] = copied
	return nil
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}
