package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dshills/flowsync/pkg/domain/types"
	"github.com/dshills/flowsync/pkg/langflow"
)

// FakeService is an in-memory langflow.Service. Listing preserves insertion
// order.
type FakeService struct {
	mu         sync.Mutex
	flows      map[types.FlowID]*types.Flow
	flowOrder  []types.FlowID
	projects   map[types.ProjectID]*types.Project
	projOrder  []types.ProjectID
	nextID     int
	EnvVersion string

	// Fail makes an operation fail; keys are "<Method>:<id>", e.g.
	// "GetFlow:f2" or "UpdateFlow:f1".
	Fail map[string]error
	// Calls records every mutating call as "<Method>:<id>".
	Calls []string
}

var _ langflow.Service = (*FakeService)(nil)

// NewFakeService returns an empty service reporting version.
func NewFakeService(version string) *FakeService {
	return &FakeService{
		flows:      make(map[types.FlowID]*types.Flow),
		projects:   make(map[types.ProjectID]*types.Project),
		EnvVersion: version,
		Fail:       make(map[string]error),
	}
}

// AddProject seeds a project.
func (s *FakeService) AddProject(id types.ProjectID, name string) *types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, _ := json.Marshal(map[string]string{"id": string(id), "name": name, "description": name + " project"})
	p := &types.Project{ID: id, Name: name, Metadata: meta}
	s.putProject(p)
	return clonedProject(p)
}

// AddFlow seeds a flow. The payload is synthesized from the fields.
func (s *FakeService) AddFlow(id types.FlowID, name string, project types.ProjectID, lastTested string) *types.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := map[string]any{"id": id, "name": name, "data": map[string]any{"nodes": []any{}, "edges": []any{}}}
	if project != "" {
		doc["folder_id"] = project
	} else {
		doc["folder_id"] = nil
	}
	if lastTested != "" {
		doc["last_tested_version"] = lastTested
	}
	payload, _ := json.Marshal(doc)
	f := &types.Flow{ID: id, Name: name, ProjectID: project, LastTestedVersion: lastTested, Payload: payload}
	s.putFlow(f)
	return clonedFlow(f)
}

// Flow returns a stored flow.
func (s *FakeService) Flow(id types.FlowID) (*types.Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, false
	}
	return clonedFlow(f), true
}

// Project returns a stored project.
func (s *FakeService) Project(id types.ProjectID) (*types.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, false
	}
	return clonedProject(p), true
}

func (s *FakeService) fail(method, id string) error {
	return s.Fail[method+":"+id]
}

func (s *FakeService) record(method, id string) {
	s.Calls = append(s.Calls, method+":"+id)
}

// GetFlow implements langflow.Service.
func (s *FakeService) GetFlow(_ context.Context, id types.FlowID) (*types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetFlow", string(id)); err != nil {
		return nil, err
	}
	f, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", id, langflow.ErrNotFound)
	}
	return clonedFlow(f), nil
}

// ListFlows implements langflow.Service.
func (s *FakeService) ListFlows(_ context.Context, projectID types.ProjectID) ([]*types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListFlows", string(projectID)); err != nil {
		return nil, err
	}
	var out []*types.Flow
	for _, id := range s.flowOrder {
		f := s.flows[id]
		if projectID == "" || f.ProjectID == projectID {
			out = append(out, clonedFlow(f))
		}
	}
	return out, nil
}

// CreateFlow implements langflow.Service.
func (s *FakeService) CreateFlow(_ context.Context, f *types.Flow) (*types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateFlow", string(f.ID)); err != nil {
		return nil, err
	}
	created := clonedFlow(f)
	if created.ID == "" {
		s.nextID++
		created.ID = types.FlowID(fmt.Sprintf("flow-%d", s.nextID))
	}
	if _, exists := s.flows[created.ID]; exists {
		return nil, fmt.Errorf("flow %s already exists", created.ID)
	}
	s.record("CreateFlow", string(created.ID))
	s.putFlow(created)
	return clonedFlow(created), nil
}

// UpdateFlow implements langflow.Service.
func (s *FakeService) UpdateFlow(_ context.Context, f *types.Flow) (*types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateFlow", string(f.ID)); err != nil {
		return nil, err
	}
	if _, ok := s.flows[f.ID]; !ok {
		return nil, fmt.Errorf("flow %s: %w", f.ID, langflow.ErrNotFound)
	}
	s.record("UpdateFlow", string(f.ID))
	s.putFlow(clonedFlow(f))
	return clonedFlow(f), nil
}

// DeleteFlow implements langflow.Service.
func (s *FakeService) DeleteFlow(_ context.Context, id types.FlowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[id]; !ok {
		return fmt.Errorf("flow %s: %w", id, langflow.ErrNotFound)
	}
	s.record("DeleteFlow", string(id))
	delete(s.flows, id)
	for i, fid := range s.flowOrder {
		if fid == id {
			s.flowOrder = append(s.flowOrder[:i], s.flowOrder[i+1:]...)
			break
		}
	}
	return nil
}

// GetProject implements langflow.Service.
func (s *FakeService) GetProject(_ context.Context, id types.ProjectID) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProject", string(id)); err != nil {
		return nil, err
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, langflow.ErrNotFound)
	}
	return clonedProject(p), nil
}

// ListProjects implements langflow.Service.
func (s *FakeService) ListProjects(context.Context) ([]*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListProjects", ""); err != nil {
		return nil, err
	}
	out := make([]*types.Project, 0, len(s.projOrder))
	for _, id := range s.projOrder {
		out = append(out, clonedProject(s.projects[id]))
	}
	return out, nil
}

// CreateProject implements langflow.Service.
func (s *FakeService) CreateProject(_ context.Context, p *types.Project) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateProject", string(p.ID)); err != nil {
		return nil, err
	}
	created := clonedProject(p)
	if created.ID == "" {
		s.nextID++
		created.ID = types.ProjectID(fmt.Sprintf("project-%d", s.nextID))
	}
	s.record("CreateProject", string(created.ID))
	s.putProject(created)
	return clonedProject(created), nil
}

// UpdateProject implements langflow.Service.
func (s *FakeService) UpdateProject(_ context.Context, p *types.Project) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateProject", string(p.ID)); err != nil {
		return nil, err
	}
	if _, ok := s.projects[p.ID]; !ok {
		return nil, fmt.Errorf("project %s: %w", p.ID, langflow.ErrNotFound)
	}
	s.record("UpdateProject", string(p.ID))
	s.putProject(clonedProject(p))
	return clonedProject(p), nil
}

// DeleteProject implements langflow.Service.
func (s *FakeService) DeleteProject(_ context.Context, id types.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, langflow.ErrNotFound)
	}
	s.record("DeleteProject", string(id))
	delete(s.projects, id)
	for i, pid := range s.projOrder {
		if pid == id {
			s.projOrder = append(s.projOrder[:i], s.projOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Version implements langflow.Service.
func (s *FakeService) Version(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Version", ""); err != nil {
		return "", err
	}
	return s.EnvVersion, nil
}

func (s *FakeService) putFlow(f *types.Flow) {
	if _, exists := s.flows[f.ID]; !exists {
		s.flowOrder = append(s.flowOrder, f.ID)
	}
	s.flows[f.ID] = f
}

func (s *FakeService) putProject(p *types.Project) {
	if _, exists := s.projects[p.ID]; !exists {
		s.projOrder = append(s.projOrder, p.ID)
	}
	s.projects[p.ID] = p
}

func clonedFlow(f *types.Flow) *types.Flow {
	c := *f
	c.Payload = append(json.RawMessage(nil), f.Payload...)
	return &c
}

func clonedProject(p *types.Project) *types.Project {
	c := *p
	c.Metadata = append(json.RawMessage(nil), p.Metadata...)
	return &c
}
