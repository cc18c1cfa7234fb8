// Package langflow is the boundary to the workflow-automation service that
// owns flows and projects.
package langflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/flowsync/pkg/domain/types"
)

// DefaultTimeout bounds every request to the service.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when a flow or project does not exist.
var ErrNotFound = errors.New("not found")

// Service is the workflow-service capability the sync engine consumes.
type Service interface {
	GetFlow(ctx context.Context, id types.FlowID) (*types.Flow, error)
	// ListFlows returns the flows of a project, or all flows when
	// projectID is empty.
	ListFlows(ctx context.Context, projectID types.ProjectID) ([]*types.Flow, error)
	CreateFlow(ctx context.Context, f *types.Flow) (*types.Flow, error)
	UpdateFlow(ctx context.Context, f *types.Flow) (*types.Flow, error)
	DeleteFlow(ctx context.Context, id types.FlowID) error

	GetProject(ctx context.Context, id types.ProjectID) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	CreateProject(ctx context.Context, p *types.Project) (*types.Project, error)
	UpdateProject(ctx context.Context, p *types.Project) (*types.Project, error)
	DeleteProject(ctx context.Context, id types.ProjectID) error

	// Version reports the environment's release version.
	Version(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap maps 404 responses to ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client implements Service over the service's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

// Option customizes NewClient.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient returns a client for the service at baseURL authenticating
// with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid service URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetFlow implements Service.
func (c *Client) GetFlow(ctx context.Context, id types.FlowID) (*types.Flow, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/flows/"+url.PathEscape(string(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	return DecodeFlow(body)
}

// ListFlows implements Service.
func (c *Client) ListFlows(ctx context.Context, projectID types.ProjectID) ([]*types.Flow, error) {
	query := url.Values{"get_all": {"true"}}
	if projectID != "" {
		query.Set("folder_id", string(projectID))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/flows/", query, nil)
	if err != nil {
		return nil, err
	}

	var flows []*types.Flow
	for _, item := range listItems(body, fieldFlows) {
		f, err := DecodeFlow([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		// Older servers ignore the folder filter.
		if projectID != "" && f.ProjectID != projectID {
			continue
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// CreateFlow implements Service.
func (c *Client) CreateFlow(ctx context.Context, f *types.Flow) (*types.Flow, error) {
	doc, err := EncodeFlow(f)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/flows/", nil, doc)
	if err != nil {
		return nil, err
	}
	return DecodeFlow(body)
}

// UpdateFlow implements Service.
func (c *Client) UpdateFlow(ctx context.Context, f *types.Flow) (*types.Flow, error) {
	doc, err := EncodeFlow(f)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPatch, "/api/v1/flows/"+url.PathEscape(string(f.ID)), nil, doc)
	if err != nil {
		return nil, err
	}
	return DecodeFlow(body)
}

// DeleteFlow implements Service.
func (c *Client) DeleteFlow(ctx context.Context, id types.FlowID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/flows/"+url.PathEscape(string(id)), nil, nil)
	return err
}

// GetProject implements Service.
func (c *Client) GetProject(ctx context.Context, id types.ProjectID) (*types.Project, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(string(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	// Some versions wrap the project as {"folder": {...}, "flows": {...}}.
	if folder := gjson.GetBytes(body, "folder"); folder.IsObject() {
		body = []byte(folder.Raw)
	}
	return DecodeProject(body)
}

// ListProjects implements Service.
func (c *Client) ListProjects(ctx context.Context) ([]*types.Project, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/projects/", nil, nil)
	if err != nil {
		return nil, err
	}

	var projects []*types.Project
	for _, item := range listItems(body, "projects") {
		p, err := DecodeProject([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// CreateProject implements Service.
func (c *Client) CreateProject(ctx context.Context, p *types.Project) (*types.Project, error) {
	doc, err := EncodeProject(p)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/projects/", nil, doc)
	if err != nil {
		return nil, err
	}
	return DecodeProject(body)
}

// UpdateProject implements Service.
func (c *Client) UpdateProject(ctx context.Context, p *types.Project) (*types.Project, error) {
	doc, err := EncodeProject(p)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPatch, "/api/v1/projects/"+url.PathEscape(string(p.ID)), nil, doc)
	if err != nil {
		return nil, err
	}
	return DecodeProject(body)
}

// DeleteProject implements Service.
func (c *Client) DeleteProject(ctx context.Context, id types.ProjectID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/projects/"+url.PathEscape(string(id)), nil, nil)
	return err
}

// Version implements Service.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/version", nil, nil)
	if err != nil {
		return "", err
	}
	v := gjson.GetBytes(body, "version")
	if !v.Exists() {
		return "", fmt.Errorf("version response has no version field")
	}
	return strings.TrimSpace(v.String()), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := gjson.GetBytes(body, "detail").String()
		if detail == "" && !gjson.ValidBytes(body) {
			detail = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: detail}
	}
	return body, nil
}

// listItems accepts both a bare array and an object wrapping the array
// under key.
func listItems(body []byte, key string) []gjson.Result {
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		return doc.Array()
	}
	return doc.Get(key).Array()
}
