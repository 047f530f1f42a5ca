package file

import (
	"context"
	"sort"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// InterventionRepository stores interventions as JSON files.
type InterventionRepository struct {
	store *store
}

func (r *InterventionRepository) Save(ctx context.Context, intervention *models.Intervention) error {
	return r.store.write(intervention.ProjectID, intervention.ID, intervention)
}

func (r *InterventionRepository) GetByID(ctx context.Context, projectID, interventionID string) (*models.Intervention, error) {
	var intervention models.Intervention

	found, err := r.store.read(projectID, interventionID, &intervention)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &intervention, nil
}

// List returns interventions filtered by the options, creation time
// ascending so consumers apply control actions in arrival order.
func (r *InterventionRepository) List(ctx context.Context, projectID string, opts persistence.ListInterventionsOptions) ([]*models.Intervention, error) {
	ids, err := r.store.ids(projectID)
	if err != nil {
		return nil, err
	}

	interventions := make([]*models.Intervention, 0, len(ids))

	for _, id := range ids {
		intervention, err := r.GetByID(ctx, projectID, id)
		if err != nil {
			return nil, err
		}

		if intervention == nil {
			continue
		}

		if opts.WorkflowID != "" && intervention.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.ExecutionID != "" && intervention.ExecutionID != opts.ExecutionID {
			continue
		}

		if opts.Type != nil && intervention.InterventionType != *opts.Type {
			continue
		}

		if opts.Status != nil && intervention.Status != *opts.Status {
			continue
		}

		interventions = append(interventions, intervention)
	}

	sort.Slice(interventions, func(i, j int) bool {
		return interventions[i].CreatedAt.Before(interventions[j].CreatedAt)
	})

	return paginate(interventions, opts.Offset, opts.Limit), nil
}
