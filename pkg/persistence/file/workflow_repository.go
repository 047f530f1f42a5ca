package file

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	store *store
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.store.write(workflow.ProjectID, workflow.ID, workflow)
}

// GetByID returns the workflow, or nil when missing or soft-deleted.
func (r *WorkflowRepository) GetByID(ctx context.Context, projectID, workflowID string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.store.read(projectID, workflowID, &workflow)
	if err != nil {
		return nil, err
	}

	if !found || workflow.DeletedAt != nil {
		return nil, nil
	}

	return &workflow, nil
}

// List returns the project's workflows filtered by the options, newest first.
func (r *WorkflowRepository) List(ctx context.Context, projectID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	ids, err := r.store.ids(projectID)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, projectID, id)
		if err != nil {
			return nil, err
		}

		if workflow == nil {
			continue
		}

		if opts.Name != "" && !strings.Contains(strings.ToLower(workflow.Name), strings.ToLower(opts.Name)) {
			continue
		}

		if opts.Scope != nil && workflow.Scope != *opts.Scope {
			continue
		}

		if opts.Environment != nil && workflow.Environment != *opts.Environment {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return paginate(workflows, opts.Offset, opts.Limit), nil
}

// Delete soft-deletes the workflow by setting deleted_at.
func (r *WorkflowRepository) Delete(ctx context.Context, projectID, workflowID string) error {
	workflow, err := r.GetByID(ctx, projectID, workflowID)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewStoreError("Delete", "workflow", projectID, workflowID, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.UpdatedAt = now

	return r.Save(ctx, workflow)
}
