package langflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/flowsync/pkg/domain/types"
)

type recorded struct {
	method string
	path   string
	query  string
	apiKey string
	body   string
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("x-api-key"), string(body)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", "sk-test")
	require.NoError(t, err)
	return c, &calls
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestGetFlow(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"id":"f1","name":"Greeter","folder_id":"p1","last_tested_version":"1.2.0","data":{}}`)
	})

	f, err := c.GetFlow(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "Greeter", f.Name)
	assert.Equal(t, types.ProjectID("p1"), f.ProjectID)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/api/v1/flows/f1", (*calls)[0].path)
	assert.Equal(t, "sk-test", (*calls)[0].apiKey)
}

func TestNotFoundMapsToErrNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusNotFound, `{"detail":"Flow not found"}`)
	})

	_, err := c.GetFlow(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "Flow not found")

	_, err = c.GetProject(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusUnauthorized, `{"detail":"Invalid API key"}`)
	})

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestListFlowsFiltersByProject(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `[
			{"id":"f1","name":"A","folder_id":"p1"},
			{"id":"f2","name":"B","folder_id":"p2"},
			{"id":"f3","name":"C","folder_id":"p1"}
		]`)
	})

	flows, err := c.ListFlows(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, types.FlowID("f1"), flows[0].ID)
	assert.Equal(t, types.FlowID("f3"), flows[1].ID)
	assert.Contains(t, (*calls)[0].query, "folder_id=p1")

	all, err := c.ListFlows(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListProjectsAcceptsWrappedList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"projects":[{"id":"p1","name":"Demo"},{"id":"p2","name":"Demo"}]}`)
	})

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, types.ProjectID("p2"), projects[1].ID)
}

func TestGetProjectUnwrapsFolder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"folder":{"id":"p1","name":"Demo"},"flows":{"items":[]}}`)
	})

	p, err := c.GetProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Demo", p.Name)
}

func TestCreateAndUpdateFlowSendDocuments(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"id": "f1", "name": "Greeter", "folder_id": "p1"})
		reply(w, http.StatusOK, string(body))
	})
	ctx := context.Background()
	f := &types.Flow{ID: "f1", Name: "Greeter", ProjectID: "p1", Payload: json.RawMessage(`{"data":{"nodes":[]}}`)}

	_, err := c.CreateFlow(ctx, f)
	require.NoError(t, err)
	_, err = c.UpdateFlow(ctx, f)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/api/v1/flows/", (*calls)[0].path)
	assert.Equal(t, "p1", gjson.Get((*calls)[0].body, "folder_id").String())
	assert.Equal(t, http.MethodPatch, (*calls)[1].method)
	assert.Equal(t, "/api/v1/flows/f1", (*calls)[1].path)
	assert.True(t, gjson.Get((*calls)[1].body, "data.nodes").IsArray())
}

func TestProjectMutations(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		reply(w, http.StatusOK, `{"id":"p1","name":"Demo"}`)
	})
	ctx := context.Background()
	p := &types.Project{ID: "p1", Name: "Demo", Metadata: json.RawMessage(`{"flows":[1]}`)}

	_, err := c.CreateProject(ctx, p)
	require.NoError(t, err)
	_, err = c.UpdateProject(ctx, p)
	require.NoError(t, err)
	require.NoError(t, c.DeleteProject(ctx, "p1"))
	require.NoError(t, c.DeleteFlow(ctx, "f1"))

	require.Len(t, *calls, 4)
	assert.False(t, gjson.Get((*calls)[0].body, "flows").Exists())
	assert.Equal(t, "/api/v1/projects/p1", (*calls)[1].path)
	assert.Equal(t, "/api/v1/flows/f1", (*calls)[3].path)
}

func TestVersion(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"version":"1.3.0","main_version":"1.3.0","package":"Langflow"}`)
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", "k")
	assert.Error(t, err)

	_, err = NewClient("localhost:7860", "k")
	assert.Error(t, err)
}
