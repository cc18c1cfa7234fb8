// Package export packages a project and all of its flows into a single zip
// archive. Unlike a project push, an export is all or nothing: any flow
// that cannot be fetched or encoded aborts the export.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/langflow"
	flowlog "github.com/dshills/flowsync/pkg/log"
	"github.com/dshills/flowsync/pkg/repopath"
)

const op = "export project"

// Archive is a packaged project.
type Archive struct {
	ProjectID   types.ProjectID
	ProjectName string
	// Entries lists the archive entry names in write order; the project
	// metadata entry is first.
	Entries []string
	Data    []byte
}

// Packager builds project archives from the workflow service.
type Packager struct {
	service langflow.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewPackager returns a Packager reading from service.
func NewPackager(service langflow.Service) *Packager {
	return &Packager{
		service: service,
		logger:  flowlog.WithModule("export"),
		now:     time.Now,
	}
}

type entry struct {
	name    string
	content []byte
}

// Export fetches project id and every flow it owns and returns them as a
// zip archive. Entry names use the leaf naming of repository paths without
// the project folder.
func (p *Packager) Export(ctx context.Context, id types.ProjectID) (*Archive, error) {
	project, err := p.service.GetProject(ctx, id)
	if errors.Is(err, langflow.ErrNotFound) {
		return nil, flowerrors.New(flowerrors.KindProjectNotFound, op, string(id))
	}
	if err != nil {
		return nil, flowerrors.Collaborator(op, string(id), err)
	}

	metaName, err := repopath.LeafName(project.Name, string(project.ID))
	if err != nil {
		return nil, err
	}
	meta, err := langflow.EncodeProject(project)
	if err != nil {
		return nil, incomplete(string(id), fmt.Errorf("encode metadata: %w", err))
	}
	entries := []entry{{name: metaName, content: meta}}

	listed, err := p.service.ListFlows(ctx, project.ID)
	if err != nil {
		return nil, incomplete(string(id), fmt.Errorf("list flows: %w", err))
	}

	seen := map[string]bool{metaName: true}
	for _, summary := range listed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := p.service.GetFlow(ctx, summary.ID)
		if err != nil {
			return nil, incomplete(string(summary.ID), fmt.Errorf("fetch flow: %w", err))
		}
		name, err := repopath.LeafName(f.Name, string(f.ID))
		if err != nil {
			return nil, incomplete(string(f.ID), err)
		}
		if seen[name] {
			return nil, incomplete(string(f.ID), fmt.Errorf("duplicate entry %s", name))
		}
		seen[name] = true

		content, err := langflow.EncodeFlow(f)
		if err != nil {
			return nil, incomplete(string(f.ID), err)
		}
		entries = append(entries, entry{name: name, content: content})
	}

	data, err := p.pack(entries)
	if err != nil {
		return nil, incomplete(string(id), err)
	}

	archive := &Archive{ProjectID: project.ID, ProjectName: project.Name, Data: data}
	for _, e := range entries {
		archive.Entries = append(archive.Entries, e.name)
	}

	p.logger.Debug("project exported", "project", project.ID, "entries", len(entries), "bytes", len(data))
	return archive, nil
}

func (p *Packager) pack(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := p.now()

	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.content); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func incomplete(id string, cause error) error {
	return flowerrors.Wrap(flowerrors.KindIncompleteExport, op, id, cause)
}
