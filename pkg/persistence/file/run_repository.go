package file

import (
	"context"
	"sort"
	"time"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// RunRepository stores overnight runs as JSON files.
type RunRepository struct {
	store *store
}

// Save writes the full run record. Each Save is durable before it
// returns, which is what makes the batch loop resumable.
func (r *RunRepository) Save(ctx context.Context, run *models.OvernightRun) error {
	return r.store.write(run.ProjectID, run.ID, run)
}

// GetByID returns the run, or nil when missing or soft-deleted.
func (r *RunRepository) GetByID(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	var run models.OvernightRun

	found, err := r.store.read(projectID, runID, &run)
	if err != nil {
		return nil, err
	}

	if !found || run.DeletedAt != nil {
		return nil, nil
	}

	return &run, nil
}

// List returns the project's runs filtered by the options, newest first.
func (r *RunRepository) List(ctx context.Context, projectID string, opts persistence.ListRunsOptions) ([]*models.OvernightRun, error) {
	ids, err := r.store.ids(projectID)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.OvernightRun, 0, len(ids))

	for _, id := range ids {
		run, err := r.GetByID(ctx, projectID, id)
		if err != nil {
			return nil, err
		}

		if run == nil {
			continue
		}

		if opts.Status != nil && run.Status != *opts.Status {
			continue
		}

		if opts.ScheduledAfter != nil && (run.ScheduledFor == nil || run.ScheduledFor.Before(*opts.ScheduledAfter)) {
			continue
		}

		if opts.ScheduledBefore != nil && (run.ScheduledFor == nil || run.ScheduledFor.After(*opts.ScheduledBefore)) {
			continue
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return paginate(runs, opts.Offset, opts.Limit), nil
}

// ListDue returns scheduled runs across all projects due at or before now,
// oldest first.
func (r *RunRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.OvernightRun, error) {
	projects, err := r.store.projects()
	if err != nil {
		return nil, err
	}

	due := make([]*models.OvernightRun, 0)

	for _, projectID := range projects {
		ids, err := r.store.ids(projectID)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			run, err := r.GetByID(ctx, projectID, id)
			if err != nil {
				return nil, err
			}

			if run == nil || run.Status != models.RunStatusScheduled {
				continue
			}

			if run.ScheduledFor == nil || run.ScheduledFor.After(now) {
				continue
			}

			due = append(due, run)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})

	return paginate(due, 0, limit), nil
}

// Delete soft-deletes the run by setting deleted_at.
func (r *RunRepository) Delete(ctx context.Context, projectID, runID string) error {
	run, err := r.GetByID(ctx, projectID, runID)
	if err != nil {
		return err
	}

	if run == nil {
		return persistence.NewStoreError("Delete", "run", projectID, runID, persistence.ErrRunNotFound)
	}

	now := time.Now().UTC()
	run.DeletedAt = &now
	run.UpdatedAt = now

	return r.Save(ctx, run)
}
