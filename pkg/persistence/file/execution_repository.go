package file

import (
	"context"
	"sort"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// ExecutionRepository stores workflow executions as JSON files.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	return r.store.write(execution.ProjectID, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := r.store.read(projectID, executionID, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &execution, nil
}

// List returns the project's executions filtered by the options, newest first.
func (r *ExecutionRepository) List(ctx context.Context, projectID string, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	ids, err := r.store.ids(projectID)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.GetByID(ctx, projectID, id)
		if err != nil {
			return nil, err
		}

		if execution == nil {
			continue
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return paginate(executions, opts.Offset, opts.Limit), nil
}
