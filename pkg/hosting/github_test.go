package hosting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowsync/pkg/remote"
)

// fakeGitHub serves the subset of the REST API the client uses for the
// repository u/r.
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]string // branch + ":" + path -> content
	branches map[string]string // name -> head sha
	commits  int
	auth     []string

	// inlineLimit, when set, serves larger files without inline content
	// the way the contents API does above 1 MB.
	inlineLimit int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		files:    map[string]string{},
		branches: map[string]string{"main": "sha-main"},
	}
}

func (f *fakeGitHub) handler() http.Handler {
	const prefix = "/api/v3/repos/u/r"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))

		p := strings.TrimPrefix(r.URL.Path, prefix)
		switch {
		case p == "" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"default_branch": "main"})
		case p == "/branches":
			names := make([]string, 0, len(f.branches))
			for n := range f.branches {
				names = append(names, n)
			}
			sort.Strings(names)
			out := []map[string]string{}
			for _, n := range names {
				out = append(out, map[string]string{"name": n})
			}
			writeJSON(w, http.StatusOK, out)
		case strings.HasPrefix(p, "/git/ref/heads/"):
			name := strings.TrimPrefix(p, "/git/ref/heads/")
			sha, ok := f.branches[name]
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ref": "refs/heads/" + name, "object": map[string]string{"sha": sha}})
		case p == "/git/refs" && r.Method == http.MethodPost:
			var body struct {
				Ref string `json:"ref"`
				SHA string `json:"sha"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			name := strings.TrimPrefix(body.Ref, "refs/heads/")
			if _, ok := f.branches[name]; ok {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Reference already exists"})
				return
			}
			f.branches[name] = body.SHA
			writeJSON(w, http.StatusCreated, map[string]any{"ref": body.Ref, "object": map[string]string{"sha": body.SHA}})
		case strings.HasPrefix(p, "/git/blobs/"):
			sha := strings.TrimPrefix(p, "/git/blobs/")
			for _, content := range f.files {
				if blobSHA(content) == sha {
					w.Header().Set("Content-Type", "application/vnd.github.v3.raw")
					_, _ = w.Write([]byte(content))
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		case strings.HasPrefix(p, "/contents"):
			f.contents(w, r, strings.Trim(strings.TrimPrefix(p, "/contents"), "/"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		}
	})
}

func (f *fakeGitHub) contents(w http.ResponseWriter, r *http.Request, path string) {
	branch := r.URL.Query().Get("ref")

	switch r.Method {
	case http.MethodGet:
		if content, ok := f.files[branch+":"+path]; ok {
			if f.inlineLimit > 0 && len(content) > f.inlineLimit {
				writeJSON(w, http.StatusOK, map[string]any{
					"type":     "file",
					"encoding": "none",
					"name":     path[strings.LastIndex(path, "/")+1:],
					"path":     path,
					"sha":      blobSHA(content),
					"content":  "",
					"size":     len(content),
				})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"type":     "file",
				"encoding": "base64",
				"name":     path[strings.LastIndex(path, "/")+1:],
				"path":     path,
				"sha":      blobSHA(content),
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
			})
			return
		}
		var entries []map[string]string
		seen := map[string]bool{}
		for key := range f.files {
			b, p, _ := strings.Cut(key, ":")
			if b != branch {
				continue
			}
			rest := p
			if path != "" {
				if !strings.HasPrefix(p, path+"/") {
					continue
				}
				rest = strings.TrimPrefix(p, path+"/")
			}
			name, _, isDir := strings.Cut(rest, "/")
			if seen[name] {
				continue
			}
			seen[name] = true
			typ := "file"
			if isDir {
				typ = "dir"
			}
			full := name
			if path != "" {
				full = path + "/" + name
			}
			entries = append(entries, map[string]string{"name": name, "path": full, "type": typ})
		}
		if entries == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i]["name"] < entries[j]["name"] })
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPut:
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		key := body.Branch + ":" + path
		existing, exists := f.files[key]
		if exists && body.SHA != blobSHA(existing) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "sha mismatch"})
			return
		}
		if !exists && body.SHA != "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		decoded, _ := base64.StdEncoding.DecodeString(body.Content)
		f.files[key] = string(decoded)
		f.commits++
		status := http.StatusCreated
		if exists {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{
			"content": map[string]string{"path": path, "sha": blobSHA(string(decoded))},
			"commit":  map[string]string{"sha": fmt.Sprintf("commit-%d", f.commits), "message": body.Message},
		})
	}
}

func blobSHA(content string) string {
	return fmt.Sprintf("blob-%x", len(content)*31+strings.Count(content, "\"")*7)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestGitHub(t *testing.T) (*GitHub, *fakeGitHub) {
	t.Helper()
	fake := newFakeGitHub()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	d, err := remote.NewDescriptor("origin", "https://git.example.com/u/r", "T0KEN")
	require.NoError(t, err)

	gh, err := NewGitHub(context.Background(), d, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	return gh, fake
}

func TestGitHubCreateThenUpdateFile(t *testing.T) {
	gh, fake := newTestGitHub(t)
	ctx := context.Background()
	path := "Demo[p1]/Greeter[f1].json"

	_, err := gh.GetFile(ctx, path, "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	sha1, err := gh.PutFile(ctx, FileChange{Path: path, Content: []byte(`{"id":"f1"}`), Message: "Add flow: Greeter", Branch: "main"})
	require.NoError(t, err)
	assert.Equal(t, "commit-1", sha1)

	file, err := gh.GetFile(ctx, path, "main")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"f1"}`, string(file.Content))
	assert.Equal(t, path, file.Path)
	assert.NotEmpty(t, file.SHA)

	sha2, err := gh.PutFile(ctx, FileChange{Path: path, Content: []byte(`{"id":"f1","v":2}`), Message: "Update flow: Greeter", Branch: "main", SHA: file.SHA})
	require.NoError(t, err)
	assert.Equal(t, "commit-2", sha2)

	assert.Contains(t, fake.auth[0], "T0KEN")
}

func TestGitHubListDir(t *testing.T) {
	gh, fake := newTestGitHub(t)
	fake.files["main:Demo[p1]/Demo[p1].json"] = "{}"
	fake.files["main:Demo[p1]/Greeter[f1].json"] = "{}"
	fake.files["main:_no_project/Solo[f2].json"] = "{}"

	root, err := gh.ListDir(context.Background(), "", "main")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "Demo[p1]", Path: "Demo[p1]", Type: EntryDir},
		{Name: "_no_project", Path: "_no_project", Type: EntryDir},
	}, root)

	folder, err := gh.ListDir(context.Background(), "Demo[p1]", "main")
	require.NoError(t, err)
	assert.Len(t, folder, 2)

	_, err = gh.ListDir(context.Background(), "Missing[x]", "main")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGitHubBranches(t *testing.T) {
	gh, _ := newTestGitHub(t)
	ctx := context.Background()

	def, err := gh.DefaultBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", def)

	require.NoError(t, gh.CreateBranch(ctx, "feature", "main"))

	branches, err := gh.ListBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "main"}, branches)

	err = gh.CreateBranch(ctx, "feature", "main")
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	err = gh.CreateBranch(ctx, "other", "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewGitHubRequiresDescriptor(t *testing.T) {
	_, err := NewGitHub(context.Background(), nil)
	assert.Error(t, err)
}

func TestGitHubGetLargeFile(t *testing.T) {
	gh, fake := newTestGitHub(t)
	fake.inlineLimit = 16
	ctx := context.Background()

	large := `{"id":"f1","name":"Greeter","data":{"nodes":[1,2,3]}}`
	fake.files["main:Demo[p1]/Greeter[f1].json"] = large
	fake.files["main:Demo[p1]/Demo[p1].json"] = `{"id":"p1"}`

	file, err := gh.GetFile(ctx, "Demo[p1]/Greeter[f1].json", "main")
	require.NoError(t, err)
	assert.Equal(t, large, string(file.Content))
	assert.Equal(t, blobSHA(large), file.SHA)

	small, err := gh.GetFile(ctx, "Demo[p1]/Demo[p1].json", "main")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1"}`, string(small.Content))
}
