package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/dshills/flowsync/pkg/remote"
)

// DefaultTimeout bounds every hosting API request.
const DefaultTimeout = 30 * time.Second

// GitHub implements Client against the GitHub REST API, public or
// enterprise.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

var _ Client = (*GitHub)(nil)

// GitHubOption customizes NewGitHub.
type GitHubOption func(*githubConfig)

type githubConfig struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the API endpoint derived from the remote's host.
func WithBaseURL(u string) GitHubOption {
	return func(c *githubConfig) { c.baseURL = u }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) GitHubOption {
	return func(c *githubConfig) { c.timeout = d }
}

// NewGitHub returns a token-authenticated client for the remote's repository.
func NewGitHub(ctx context.Context, d *remote.Descriptor, opts ...GitHubOption) (*GitHub, error) {
	if d == nil {
		return nil, fmt.Errorf("remote descriptor is required")
	}

	cfg := githubConfig{baseURL: d.APIBaseURL(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: d.Token}))
	httpClient.Timeout = cfg.timeout

	client := github.NewClient(httpClient)
	if cfg.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.baseURL, cfg.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL for remote %q: %w", d.Name, err)
		}
	}

	return &GitHub{client: client, owner: d.Owner, repo: d.Repo}, nil
}

// GitHubDialer is the production Dialer.
var GitHubDialer = DialFunc(func(ctx context.Context, d *remote.Descriptor) (Client, error) {
	return NewGitHub(ctx, d)
})

// GetFile implements Client.
func (g *GitHub) GetFile(ctx context.Context, path, branch string) (*File, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, translate(resp, err, path)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	// Files over 1 MB come back with encoding "none" and no content.
	if file.GetEncoding() == "none" {
		raw, resp, err := g.client.Git.GetBlobRaw(ctx, g.owner, g.repo, file.GetSHA())
		if err != nil {
			return nil, translate(resp, err, path)
		}
		return &File{Path: file.GetPath(), SHA: file.GetSHA(), Content: raw}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &File{Path: file.GetPath(), SHA: file.GetSHA(), Content: []byte(content)}, nil
}

// PutFile implements Client.
func (g *GitHub) PutFile(ctx context.Context, change FileChange) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(change.Message),
		Content: change.Content,
		Branch:  github.String(change.Branch),
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if change.SHA == "" {
		res, resp, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, change.Path, opts)
	} else {
		opts.SHA = github.String(change.SHA)
		res, resp, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, change.Path, opts)
	}
	if err != nil {
		return "", translate(resp, err, change.Path)
	}
	return res.Commit.GetSHA(), nil
}

// ListDir implements Client.
func (g *GitHub) ListDir(ctx context.Context, path, branch string) ([]Entry, error) {
	_, dir, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, translate(resp, err, path)
	}

	entries := make([]Entry, 0, len(dir))
	for _, c := range dir {
		entries = append(entries, Entry{Name: c.GetName(), Path: c.GetPath(), Type: EntryType(c.GetType())})
	}
	return entries, nil
}

// ListBranches implements Client.
func (g *GitHub) ListBranches(ctx context.Context) ([]string, error) {
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}

	var names []string
	for {
		branches, resp, err := g.client.Repositories.ListBranches(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, translate(resp, err, g.owner+"/"+g.repo)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// DefaultBranch implements Client.
func (g *GitHub) DefaultBranch(ctx context.Context) (string, error) {
	repo, resp, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return "", translate(resp, err, g.owner+"/"+g.repo)
	}
	return repo.GetDefaultBranch(), nil
}

// CreateBranch implements Client.
func (g *GitHub) CreateBranch(ctx context.Context, name, from string) error {
	src, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+from)
	if err != nil {
		return translate(resp, err, from)
	}

	_, resp, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: src.Object.SHA},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
		}
		return translate(resp, err, name)
	}
	return nil
}

func translate(resp *github.Response, err error, subject string) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("rate limited until %s: %w", rateErr.Rate.Reset.Time.Format(time.RFC3339), err)
	}
	return err
}
