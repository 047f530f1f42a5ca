// Package file provides file-based persistence for runs, executions,
// gates, interventions and workflows. It is the backend used by tests
// and local development.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentmatrix/matrix/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file
// system. Records are stored as one JSON document per entity under
// <root>/<project>/<kind>/<id>.json.
type Persistence struct {
	root          string
	runRepo       *RunRepository
	executionRepo *ExecutionRepository
	gateRepo      *GateRepository
	intervRepo    *InterventionRepository
	workflowRepo  *WorkflowRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		runRepo:       &RunRepository{store: &store{root: cleanRoot, kind: "runs"}},
		executionRepo: &ExecutionRepository{store: &store{root: cleanRoot, kind: "executions"}},
		gateRepo:      &GateRepository{store: &store{root: cleanRoot, kind: "gates"}},
		intervRepo:    &InterventionRepository{store: &store{root: cleanRoot, kind: "interventions"}},
		workflowRepo:  &WorkflowRepository{store: &store{root: cleanRoot, kind: "workflows"}},
	}
}

// Close performs any necessary cleanup; nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) OvernightRunRepository() persistence.OvernightRunRepository {
	return p.runRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) GateRepository() persistence.GateRepository {
	return p.gateRepo
}

func (p *Persistence) InterventionRepository() persistence.InterventionRepository {
	return p.intervRepo
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// store handles the shared JSON file layout for one entity kind.
type store struct {
	root string
	kind string
}

func (s *store) dir(projectID string) string {
	return filepath.Join(s.root, projectID, s.kind)
}

func (s *store) path(projectID, id string) string {
	return filepath.Join(s.dir(projectID), id+".json")
}

func (s *store) write(projectID, id string, record any) error {
	dir := s.dir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", s.kind, err)
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", s.kind, id, err)
	}

	if err := os.WriteFile(s.path(projectID, id), body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", s.kind, id, err)
	}

	return nil
}

// read unmarshals the record for id into out. Returns found=false when no
// file exists.
func (s *store) read(projectID, id string, out any) (bool, error) {
	body, err := os.ReadFile(s.path(projectID, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", s.kind, id, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, id, err)
	}

	return true, nil
}

// ids returns all record ids stored for the project, in directory order.
func (s *store) ids(projectID string) ([]string, error) {
	entries, err := os.ReadDir(s.dir(projectID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", s.kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// projects returns every project directory under the root.
func (s *store) projects() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	return projects, nil
}

// paginate applies offset/limit to an already-sorted slice.
func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}

	items = items[offset:]

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
