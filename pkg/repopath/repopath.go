// Package repopath maps flows and projects onto canonical repository paths
// and back.
//
// Grammar:
//
//	<project-segment>/<leaf-segment>
//	project-segment := "_no_project" | "<name>[<id>]"
//	leaf-segment    := "<name>[<id>].json"
//
// Names are sanitized before they are embedded; ids are never altered. Any
// id that could not survive a round trip is rejected with InvalidIdentity.
//
// Known lossy case: a display name containing a character outside the safe
// alphabet (for example "a/b" or "x[1]") is stored with that character
// replaced by "_", so Decode returns the substituted name. Ids and project
// ids always round-trip exactly.
package repopath

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
)

const (
	// NoProjectFolder holds flows that belong to no project.
	NoProjectFolder = "_no_project"

	// Extension is the leaf file extension.
	Extension = ".json"

	// UnnamedPlaceholder replaces blank names.
	UnnamedPlaceholder = "Unnamed"

	// Separator joins the two path segments.
	Separator = "/"

	substitute = '_'
)

// ProjectRef is the project context of an encoded path.
type ProjectRef struct {
	ID   types.ProjectID
	Name string
}

// Path is a parsed or synthesized two-segment repository path.
type Path struct {
	ProjectName string
	ProjectID   types.ProjectID // empty for NoProjectFolder
	Name        string
	ID          string
}

// HasProject reports whether the path lives in a project folder.
func (p Path) HasProject() bool {
	return p.ProjectID != ""
}

// Folder returns the project segment.
func (p Path) Folder() string {
	if !p.HasProject() {
		return NoProjectFolder
	}
	return segment(p.ProjectName, string(p.ProjectID))
}

// Leaf returns the leaf segment including the extension.
func (p Path) Leaf() string {
	return segment(p.Name, p.ID) + Extension
}

// String returns the repository-relative path.
func (p Path) String() string {
	return p.Folder() + Separator + p.Leaf()
}

// Encode builds the path for an entity. project may be nil for entities
// that belong to no project.
func Encode(name, id string, project *ProjectRef) (Path, error) {
	if err := checkID(id); err != nil {
		return Path{}, err
	}

	p := Path{
		Name: Sanitize(name),
		ID:   id,
	}

	if project != nil {
		if err := checkID(string(project.ID)); err != nil {
			return Path{}, err
		}
		p.ProjectID = project.ID
		p.ProjectName = Sanitize(project.Name)
	}

	return p, nil
}

// EncodeFlow builds the path for flow f inside project (nil when the flow
// has no project).
func EncodeFlow(f *types.Flow, project *types.Project) (Path, error) {
	if f == nil {
		return Path{}, flowerrors.New(flowerrors.KindInvalidIdentity, "encode path", "<nil flow>")
	}
	var ref *ProjectRef
	if project != nil {
		ref = &ProjectRef{ID: project.ID, Name: project.Name}
	}
	return Encode(f.Name, string(f.ID), ref)
}

// EncodeProject builds the path of a project's metadata file, which lives
// in the project's own folder under the project's own name and id.
func EncodeProject(p *types.Project) (Path, error) {
	if p == nil {
		return Path{}, flowerrors.New(flowerrors.KindInvalidIdentity, "encode path", "<nil project>")
	}
	return Encode(p.Name, string(p.ID), &ProjectRef{ID: p.ID, Name: p.Name})
}

// LeafName returns just the leaf segment for an entity. The export
// packager uses it for archive entry names.
func LeafName(name, id string) (string, error) {
	p, err := Encode(name, id, nil)
	if err != nil {
		return "", err
	}
	return p.Leaf(), nil
}

// Decode parses a repository path produced by Encode.
func Decode(raw string) (Path, error) {
	parts := strings.Split(raw, Separator)
	if len(parts) != 2 {
		return Path{}, malformed(raw, "expected <project>/<leaf>")
	}

	folder, leaf := parts[0], parts[1]

	var p Path
	if folder != NoProjectFolder {
		name, id, err := ParseSegment(folder)
		if err != nil {
			return Path{}, malformed(raw, "project segment: "+err.Error())
		}
		p.ProjectName = name
		p.ProjectID = types.ProjectID(id)
	}

	if !strings.HasSuffix(leaf, Extension) {
		return Path{}, malformed(raw, "leaf must end in "+Extension)
	}
	name, id, err := ParseSegment(strings.TrimSuffix(leaf, Extension))
	if err != nil {
		return Path{}, malformed(raw, "leaf segment: "+err.Error())
	}
	p.Name = name
	p.ID = id

	return p, nil
}

// ParseSegment splits "name[id]" into its parts. The segment must contain
// exactly one "[" and one "]", the "]" must be the final character and the
// id must not be blank.
func ParseSegment(seg string) (name, id string, err error) {
	if strings.Count(seg, "[") != 1 || strings.Count(seg, "]") != 1 {
		return "", "", fmt.Errorf("%q does not match name[id]", seg)
	}
	open := strings.IndexByte(seg, '[')
	if !strings.HasSuffix(seg, "]") || open > len(seg)-2 {
		return "", "", fmt.Errorf("%q does not match name[id]", seg)
	}
	id = seg[open+1 : len(seg)-1]
	if strings.TrimSpace(id) == "" {
		return "", "", fmt.Errorf("%q has an empty id", seg)
	}
	return seg[:open], id, nil
}

// Sanitize replaces characters that are unsafe in a path segment, including
// the separator and the bracket delimiters, with "_". Blank names become
// UnnamedPlaceholder.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnnamedPlaceholder
	}
	return strings.Map(func(r rune) rune {
		if isUnsafe(r) {
			return substitute
		}
		return r
	}, name)
}

func isUnsafe(r rune) bool {
	switch r {
	case '/', '\\', '[', ']', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return unicode.IsControl(r)
}

func segment(name, id string) string {
	return name + "[" + id + "]"
}

// checkID rejects ids that cannot round-trip through the grammar.
func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return flowerrors.Wrap(flowerrors.KindInvalidIdentity, "encode path", id, fmt.Errorf("id is blank"))
	}
	if strings.ContainsAny(id, "/\\[]") {
		return flowerrors.Wrap(flowerrors.KindInvalidIdentity, "encode path", id, fmt.Errorf("id contains a reserved character"))
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return flowerrors.Wrap(flowerrors.KindInvalidIdentity, "encode path", id, fmt.Errorf("id contains a control character"))
		}
	}
	return nil
}

func malformed(raw, reason string) error {
	return flowerrors.Wrap(flowerrors.KindMalformedPath, "decode path", raw, fmt.Errorf("%s", reason))
}
