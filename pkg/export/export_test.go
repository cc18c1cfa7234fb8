package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowsync/internal/testutil"
	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = content
	}
	return out
}

func TestExport(t *testing.T) {
	svc := testutil.NewFakeService("1.2.0")
	svc.AddProject("p1", "Demo")
	svc.AddFlow("f1", "Greeter", "p1", "1.2.0")
	svc.AddFlow("f2", "Router/v2", "p1", "")
	svc.AddFlow("f3", "Elsewhere", "", "")

	archive, err := NewPackager(svc).Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Demo", archive.ProjectName)
	assert.Equal(t, []string{"Demo[p1].json", "Greeter[f1].json", "Router_v2[f2].json"}, archive.Entries)

	files := readArchive(t, archive.Data)
	require.Len(t, files, 3)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(files["Demo[p1].json"], &meta))
	assert.Equal(t, "p1", meta["id"])
	assert.NotContains(t, meta, "flows")

	var flow map[string]any
	require.NoError(t, json.Unmarshal(files["Greeter[f1].json"], &flow))
	assert.Equal(t, "f1", flow["id"])
	assert.Equal(t, "p1", flow["folder_id"])
}

func TestExportEmptyProject(t *testing.T) {
	svc := testutil.NewFakeService("1.2.0")
	svc.AddProject("p1", "Empty")

	archive, err := NewPackager(svc).Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Empty[p1].json"}, archive.Entries)
	assert.Len(t, readArchive(t, archive.Data), 1)
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*testutil.FakeService)
		id      string
		wantErr error
		wantID  string
	}{
		{
			name:    "unknown project",
			setup:   func(*testutil.FakeService) {},
			id:      "p404",
			wantErr: flowerrors.ErrProjectNotFound,
			wantID:  "p404",
		},
		{
			name: "listing fails",
			setup: func(s *testutil.FakeService) {
				s.Fail["ListFlows:p1"] = errors.New("timeout")
			},
			id:      "p1",
			wantErr: flowerrors.ErrIncompleteExport,
			wantID:  "p1",
		},
		{
			name: "one flow fails",
			setup: func(s *testutil.FakeService) {
				s.Fail["GetFlow:f2"] = errors.New("503")
			},
			id:      "p1",
			wantErr: flowerrors.ErrIncompleteExport,
			wantID:  "f2",
		},
		{
			name: "project lookup fails",
			setup: func(s *testutil.FakeService) {
				s.Fail["GetProject:p1"] = errors.New("unauthorized")
			},
			id:      "p1",
			wantErr: flowerrors.ErrCollaborator,
			wantID:  "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService("1.2.0")
			svc.AddProject("p1", "Demo")
			svc.AddFlow("f1", "A", "p1", "")
			svc.AddFlow("f2", "B", "p1", "")
			svc.AddFlow("f3", "C", "p1", "")
			tt.setup(svc)

			archive, err := NewPackager(svc).Export(context.Background(), types.ProjectID(tt.id))
			require.Error(t, err)
			assert.Nil(t, archive, "a failed export returns no partial archive")
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantID)
		})
	}
}
