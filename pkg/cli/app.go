package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/gitsync"
	"github.com/dshills/flowsync/pkg/hosting"
	"github.com/dshills/flowsync/pkg/langflow"
	"github.com/dshills/flowsync/pkg/profile"
	"github.com/dshills/flowsync/pkg/remote"
	"github.com/dshills/flowsync/pkg/storage"
)

// Collaborator constructors. Tests replace them with in-memory fakes.
var (
	newSecretStore = func() storage.SecretStore {
		return storage.NewKeyringSecretStore()
	}

	newService = func(p *profile.Profile) (langflow.Service, error) {
		return langflow.NewClient(p.URL, p.APIKey)
	}

	hostingDialer hosting.Dialer = hosting.GitHubDialer

	stdinIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
)

// stores bundles the on-disk configuration stores.
type stores struct {
	secrets  storage.SecretStore
	profiles *profile.Store
	registry *remote.Registry
}

func openStores() *stores {
	secrets := newSecretStore()
	return &stores{
		secrets:  secrets,
		profiles: profile.NewStore(GetConfigDir(), secrets),
		registry: remote.NewRegistry(GetConfigDir(), secrets),
	}
}

// profileName returns the --profile flag or the default profile.
func (s *stores) profileName() (string, error) {
	if GlobalConfig.Profile != "" {
		return GlobalConfig.Profile, nil
	}
	name, err := s.profiles.DefaultName()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", flowerrors.Wrap(flowerrors.KindProfileNotFound, "resolve profile", "default",
			fmt.Errorf("no default profile set; register one with 'flowsync env register'"))
	}
	return name, nil
}

// session is everything a sync command needs.
type session struct {
	*stores
	profile *profile.Profile
	service langflow.Service
	orch    *gitsync.Orchestrator
	history *storage.SQLiteHistoryRepository
}

// Close releases the history database.
func (s *session) Close() {
	if s.history != nil {
		_ = s.history.Close()
	}
}

// openSession resolves the active profile and wires an orchestrator for it.
func openSession() (*session, error) {
	st := openStores()

	name, err := st.profileName()
	if err != nil {
		return nil, err
	}
	p, err := st.profiles.Resolve(name)
	if err != nil {
		return nil, err
	}

	svc, err := newService(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create Langflow client: %w", err)
	}

	hist, err := storage.NewSQLiteHistoryRepository(GetConfigDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open sync history: %w", err)
	}

	orch, err := gitsync.New(gitsync.Config{
		Profile:  p.Name,
		Registry: st.registry,
		Service:  svc,
		Dialer:   hostingDialer,
		History:  hist,
	})
	if err != nil {
		_ = hist.Close()
		return nil, err
	}

	return &session{stores: st, profile: p, service: svc, orch: orch, history: hist}, nil
}
