// Package remote stores named hosting remotes and, per profile, which remote
// and branch sync operations target.
//
// Non-secret descriptor fields and profile selections live in remotes.yaml,
// which is replaced atomically on every write. Access tokens live in the
// secret store under storage.RemoteTokenKey.
package remote

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/storage"
	"github.com/dshills/flowsync/pkg/validation"
)

const (
	// FileName is the registry file inside the config directory.
	FileName = "remotes.yaml"

	// DefaultBranch is used when a profile never selected a branch.
	DefaultBranch = "main"
)

// Descriptor is a named connection to a hosting repository.
type Descriptor struct {
	Name      string    `yaml:"-" validate:"required,name"`
	URL       string    `yaml:"url" validate:"required"`
	HostKind  HostKind  `yaml:"host_kind" validate:"oneof=github enterprise"`
	Transport Transport `yaml:"transport" validate:"oneof=https ssh"`
	Host      string    `yaml:"host" validate:"required"`
	Owner     string    `yaml:"owner" validate:"required"`
	Repo      string    `yaml:"repo" validate:"required"`
	Token     string    `yaml:"-" validate:"required"`
}

// NewDescriptor builds a descriptor from a raw URL.
func NewDescriptor(name, rawURL, token string) (*Descriptor, error) {
	c, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Name:      name,
		URL:       strings.TrimSpace(rawURL),
		HostKind:  c.HostKind,
		Transport: c.Transport,
		Host:      c.Host,
		Owner:     c.Owner,
		Repo:      c.Repo,
		Token:     token,
	}, nil
}

// APIBaseURL returns the REST endpoint for the remote's host. Empty means
// the public service default.
func (d *Descriptor) APIBaseURL() string {
	if d.HostKind == HostGitHub {
		return ""
	}
	return "https://" + d.Host + "/api/v3/"
}

// Selection is a profile's chosen remote and branch.
type Selection struct {
	Remote string `yaml:"remote,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

type registryState struct {
	Remotes  map[string]*Descriptor `yaml:"remotes"`
	Profiles map[string]*Selection  `yaml:"profiles"`
}

// Registry is the persisted remote store. Every mutation is a single
// load-modify-save cycle on the registry file.
type Registry struct {
	file    *storage.YAMLFile
	secrets storage.SecretStore
	mu      sync.Mutex
}

// NewRegistry returns the registry stored in configDir.
func NewRegistry(configDir string, secrets storage.SecretStore) *Registry {
	return &Registry{
		file:    storage.NewYAMLFile(configDir, FileName),
		secrets: secrets,
	}
}

func (r *Registry) load() (*registryState, error) {
	st := &registryState{}
	if _, err := r.file.Load(st); err != nil {
		return nil, fmt.Errorf("failed to load remotes: %w", err)
	}
	if st.Remotes == nil {
		st.Remotes = make(map[string]*Descriptor)
	}
	if st.Profiles == nil {
		st.Profiles = make(map[string]*Selection)
	}
	for name, d := range st.Remotes {
		d.Name = name
	}
	return st, nil
}

func (r *Registry) save(st *registryState) error {
	if err := r.file.Save(st); err != nil {
		return fmt.Errorf("failed to save remotes: %w", err)
	}
	return nil
}

// AddRemote registers d. It fails with DuplicateRemote if the name is taken.
func (r *Registry) AddRemote(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("cannot add nil remote")
	}
	if err := validation.Struct(d); err != nil {
		return fmt.Errorf("invalid remote %q: %w", d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := st.Remotes[d.Name]; exists {
		return flowerrors.New(flowerrors.KindDuplicateRemote, "add remote", d.Name)
	}

	if err := r.secrets.Set(storage.RemoteTokenKey(d.Name), d.Token); err != nil {
		return fmt.Errorf("failed to store token for remote %q: %w", d.Name, err)
	}

	stored := *d
	stored.Token = ""
	st.Remotes[d.Name] = &stored
	if err := r.save(st); err != nil {
		_ = r.secrets.Delete(storage.RemoteTokenKey(d.Name))
		return err
	}
	return nil
}

// RemoveRemote deletes a remote and clears every profile selection that
// referenced it.
func (r *Registry) RemoveRemote(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := st.Remotes[name]; !exists {
		return flowerrors.New(flowerrors.KindRemoteNotFound, "remove remote", name)
	}

	delete(st.Remotes, name)
	for profile, sel := range st.Profiles {
		if sel.Remote == name {
			delete(st.Profiles, profile)
		}
	}

	if err := r.save(st); err != nil {
		return err
	}

	// The remote is gone either way; a stale secret is harmless.
	_ = r.secrets.Delete(storage.RemoteTokenKey(name))
	return nil
}

// ListRemotes returns all remotes sorted by name with tokens masked.
func (r *Registry) ListRemotes() ([]Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, err
	}

	out := make([]Descriptor, 0, len(st.Remotes))
	for _, d := range st.Remotes {
		masked := *d
		token, err := r.secrets.Get(storage.RemoteTokenKey(d.Name))
		if err == nil {
			masked.Token = storage.MaskSecret(token)
		}
		out = append(out, masked)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRemote returns the named remote including its token.
func (r *Registry) GetRemote(name string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, err
	}
	return r.withToken(st, "get remote", name)
}

// SetToken replaces the token of an existing remote.
func (r *Registry) SetToken(name, token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := st.Remotes[name]; !exists {
		return flowerrors.New(flowerrors.KindRemoteNotFound, "set token", name)
	}
	if err := r.secrets.Set(storage.RemoteTokenKey(name), token); err != nil {
		return fmt.Errorf("failed to store token for remote %q: %w", name, err)
	}
	return nil
}

// SelectRemote points profile at the named remote. An empty branch keeps
// the previously selected branch, or DefaultBranch if none was ever set.
func (r *Registry) SelectRemote(profile, name, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := st.Remotes[name]; !exists {
		return flowerrors.New(flowerrors.KindRemoteNotFound, "select remote", name)
	}

	sel := st.Profiles[profile]
	if sel == nil {
		sel = &Selection{}
		st.Profiles[profile] = sel
	}
	sel.Remote = name
	switch {
	case branch != "":
		sel.Branch = branch
	case sel.Branch == "":
		sel.Branch = DefaultBranch
	}

	return r.save(st)
}

// SelectBranch changes the branch of a profile that already has a remote.
func (r *Registry) SelectBranch(profile, branch string) error {
	if branch == "" {
		return fmt.Errorf("branch cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	sel := st.Profiles[profile]
	if sel == nil || sel.Remote == "" {
		return flowerrors.New(flowerrors.KindNoRemoteSelected, "select branch", profile)
	}
	sel.Branch = branch
	return r.save(st)
}

// Selection returns the stored selection of profile. The zero Selection
// means nothing is selected.
func (r *Registry) Selection(profile string) (Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return Selection{}, err
	}
	if sel := st.Profiles[profile]; sel != nil {
		return *sel, nil
	}
	return Selection{}, nil
}

// ClearProfile forgets the selection of profile. Clearing an unknown
// profile is a no-op.
func (r *Registry) ClearProfile(profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := st.Profiles[profile]; !exists {
		return nil
	}
	delete(st.Profiles, profile)
	return r.save(st)
}

// Resolve returns the remote and branch an operation under profile
// targets. Non-empty overrides take precedence over the stored selection.
func (r *Registry) Resolve(profile, overrideRemote, overrideBranch string) (*Descriptor, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, "", err
	}

	var sel Selection
	if s := st.Profiles[profile]; s != nil {
		sel = *s
	}

	name := overrideRemote
	if name == "" {
		name = sel.Remote
	}
	if name == "" {
		return nil, "", flowerrors.New(flowerrors.KindNoRemoteSelected, "resolve remote", profile)
	}

	d, err := r.withToken(st, "resolve remote", name)
	if err != nil {
		return nil, "", err
	}

	branch := overrideBranch
	if branch == "" && sel.Remote == name {
		branch = sel.Branch
	}
	if branch == "" {
		branch = DefaultBranch
	}
	return d, branch, nil
}

func (r *Registry) withToken(st *registryState, op, name string) (*Descriptor, error) {
	stored, exists := st.Remotes[name]
	if !exists {
		return nil, flowerrors.New(flowerrors.KindRemoteNotFound, op, name)
	}

	d := *stored
	token, err := r.secrets.Get(storage.RemoteTokenKey(name))
	switch {
	case errors.Is(err, storage.ErrSecretNotFound):
		return nil, fmt.Errorf("remote %q has no token; set one with 'git remote set-token'", name)
	case err != nil:
		return nil, fmt.Errorf("failed to read token for remote %q: %w", name, err)
	}
	d.Token = token
	return &d, nil
}
