// Package profile manages named workflow-service environments. Each profile
// holds the service URL; its API key is kept in the secret store.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/storage"
	"github.com/dshills/flowsync/pkg/validation"
)

// FileName is the profile file inside the config directory.
const FileName = "profiles.yaml"

// Profile is one workflow-service environment.
type Profile struct {
	Name   string `yaml:"-" validate:"required,name"`
	URL    string `yaml:"url" validate:"required,url"`
	APIKey string `yaml:"-" validate:"required"`
}

// Info is a profile as listed, without its API key.
type Info struct {
	Name    string
	URL     string
	Default bool
}

type profilesState struct {
	Default  string              `yaml:"default,omitempty"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Store persists profiles.
type Store struct {
	file    *storage.YAMLFile
	secrets storage.SecretStore
	mu      sync.Mutex
}

// NewStore returns the profile store in configDir.
func NewStore(configDir string, secrets storage.SecretStore) *Store {
	return &Store{
		file:    storage.NewYAMLFile(configDir, FileName),
		secrets: secrets,
	}
}

func (s *Store) load() (*profilesState, error) {
	st := &profilesState{}
	if _, err := s.file.Load(st); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if st.Profiles == nil {
		st.Profiles = make(map[string]*Profile)
	}
	for name, p := range st.Profiles {
		p.Name = name
	}
	return st, nil
}

// Register creates or replaces a profile. The first profile registered
// becomes the default; the return value reports whether that happened.
func (s *Store) Register(p *Profile) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("cannot register nil profile")
	}
	if err := validation.Struct(p); err != nil {
		return false, fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return false, err
	}

	if err := s.secrets.Set(storage.ProfileAPIKeyKey(p.Name), p.APIKey); err != nil {
		return false, fmt.Errorf("failed to store API key for profile %q: %w", p.Name, err)
	}

	stored := *p
	stored.APIKey = ""
	st.Profiles[p.Name] = &stored

	madeDefault := false
	if st.Default == "" {
		st.Default = p.Name
		madeDefault = true
	}

	if err := s.file.Save(st); err != nil {
		return false, fmt.Errorf("failed to save profiles: %w", err)
	}
	return madeDefault, nil
}

// Resolve returns the named profile with its API key. An empty name selects
// the default profile.
func (s *Store) Resolve(name string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = st.Default
	}
	if name == "" {
		return nil, flowerrors.Wrap(flowerrors.KindProfileNotFound, "resolve profile", "default",
			fmt.Errorf("no default profile set; register one with 'env register'"))
	}

	stored, exists := st.Profiles[name]
	if !exists {
		return nil, flowerrors.New(flowerrors.KindProfileNotFound, "resolve profile", name)
	}

	p := *stored
	key, err := s.secrets.Get(storage.ProfileAPIKeyKey(name))
	switch {
	case errors.Is(err, storage.ErrSecretNotFound):
		return nil, fmt.Errorf("profile %q has no API key; register it again", name)
	case err != nil:
		return nil, fmt.Errorf("failed to read API key for profile %q: %w", name, err)
	}
	p.APIKey = key
	return &p, nil
}

// DefaultName returns the default profile name, or "" when none is set.
func (s *Store) DefaultName() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return "", err
	}
	return st.Default, nil
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(st.Profiles))
	for name, p := range st.Profiles {
		out = append(out, Info{Name: name, URL: p.URL, Default: name == st.Default})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetDefault makes name the default profile.
func (s *Store) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := st.Profiles[name]; !exists {
		return flowerrors.New(flowerrors.KindProfileNotFound, "select profile", name)
	}
	st.Default = name
	if err := s.file.Save(st); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}

// Delete removes a profile and its API key. Deleting the default profile
// leaves no default.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := st.Profiles[name]; !exists {
		return flowerrors.New(flowerrors.KindProfileNotFound, "delete profile", name)
	}

	delete(st.Profiles, name)
	if st.Default == name {
		st.Default = ""
	}
	if err := s.file.Save(st); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	_ = s.secrets.Delete(storage.ProfileAPIKeyKey(name))
	return nil
}
