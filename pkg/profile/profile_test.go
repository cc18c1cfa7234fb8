package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	return NewStore(dir, storage.NewKeyringSecretStore()), dir
}

func TestRegisterFirstBecomesDefault(t *testing.T) {
	s, _ := newTestStore(t)

	madeDefault, err := s.Register(&Profile{Name: "dev", URL: "http://localhost:7860", APIKey: "sk-dev"})
	require.NoError(t, err)
	assert.True(t, madeDefault)

	madeDefault, err = s.Register(&Profile{Name: "prod", URL: "https://flows.example.com", APIKey: "sk-prod"})
	require.NoError(t, err)
	assert.False(t, madeDefault)

	p, err := s.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "dev", p.Name)
	assert.Equal(t, "sk-dev", p.APIKey)

	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{Name: "dev", URL: "http://localhost:7860", Default: true},
		{Name: "prod", URL: "https://flows.example.com", Default: false},
	}, list)
}

func TestRegisterValidates(t *testing.T) {
	s, _ := newTestStore(t)

	tests := []struct {
		name    string
		profile *Profile
	}{
		{"nil", nil},
		{"bad name", &Profile{Name: "a b", URL: "http://x", APIKey: "k"}},
		{"bad url", &Profile{Name: "dev", URL: "localhost", APIKey: "k"}},
		{"missing key", &Profile{Name: "dev", URL: "http://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(tt.profile)
			assert.Error(t, err)
		})
	}
}

func TestAPIKeyStaysOutOfFile(t *testing.T) {
	s, dir := newTestStore(t)
	_, err := s.Register(&Profile{Name: "dev", URL: "http://localhost:7860", APIKey: "sk-very-secret"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-very-secret")
}

func TestResolveErrors(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Resolve("")
	assert.True(t, errors.Is(err, flowerrors.ErrProfileNotFound))

	_, err = s.Resolve("ghost")
	assert.True(t, errors.Is(err, flowerrors.ErrProfileNotFound))
	assert.Contains(t, err.Error(), "ghost")
}

func TestSetDefaultAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Register(&Profile{Name: "dev", URL: "http://localhost:7860", APIKey: "a"})
	require.NoError(t, err)
	_, err = s.Register(&Profile{Name: "prod", URL: "https://flows.example.com", APIKey: "b"})
	require.NoError(t, err)

	require.NoError(t, s.SetDefault("prod"))
	name, err := s.DefaultName()
	require.NoError(t, err)
	assert.Equal(t, "prod", name)

	assert.True(t, errors.Is(s.SetDefault("ghost"), flowerrors.ErrProfileNotFound))

	require.NoError(t, s.Delete("prod"))
	name, err = s.DefaultName()
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = storage.NewKeyringSecretStore().Get(storage.ProfileAPIKeyKey("prod"))
	assert.True(t, errors.Is(err, storage.ErrSecretNotFound))

	assert.True(t, errors.Is(s.Delete("prod"), flowerrors.ErrProfileNotFound))
}
