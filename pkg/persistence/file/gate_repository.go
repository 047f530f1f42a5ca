package file

import (
	"context"
	"sort"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// GateRepository stores gates as JSON files.
type GateRepository struct {
	store *store
}

func (r *GateRepository) Save(ctx context.Context, gate *models.Gate) error {
	return r.store.write(gate.ProjectID, gate.ID, gate)
}

func (r *GateRepository) GetByID(ctx context.Context, projectID, gateID string) (*models.Gate, error) {
	var gate models.Gate

	found, err := r.store.read(projectID, gateID, &gate)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &gate, nil
}

// List returns the project's gates filtered by the options, oldest first.
func (r *GateRepository) List(ctx context.Context, projectID string, opts persistence.ListGatesOptions) ([]*models.Gate, error) {
	ids, err := r.store.ids(projectID)
	if err != nil {
		return nil, err
	}

	gates := make([]*models.Gate, 0, len(ids))

	for _, id := range ids {
		gate, err := r.GetByID(ctx, projectID, id)
		if err != nil {
			return nil, err
		}

		if gate == nil {
			continue
		}

		if opts.WorkflowID != "" && gate.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.ExecutionID != "" && gate.ExecutionID != opts.ExecutionID {
			continue
		}

		if opts.GateType != nil && gate.GateType != *opts.GateType {
			continue
		}

		if opts.Status != nil && gate.Status != *opts.Status {
			continue
		}

		gates = append(gates, gate)
	}

	sort.Slice(gates, func(i, j int) bool {
		return gates[i].CreatedAt.Before(gates[j].CreatedAt)
	})

	return paginate(gates, opts.Offset, opts.Limit), nil
}

// GetForStep returns the gate for the exact (execution, step) pair, or nil.
func (r *GateRepository) GetForStep(ctx context.Context, projectID, executionID, stepID string) (*models.Gate, error) {
	gates, err := r.List(ctx, projectID, persistence.ListGatesOptions{ExecutionID: executionID})
	if err != nil {
		return nil, err
	}

	for _, gate := range gates {
		if gate.StepID == stepID {
			return gate, nil
		}
	}

	return nil, nil
}
