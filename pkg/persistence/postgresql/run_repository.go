package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// RunRepository handles overnight run database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const runColumns = `
		id
	  , project_id
	  , name
	  , description
	  , workflow_ids
	  , status
	  , current_workflow_index
	  , workflow_results
	  , total_tokens_input
	  , total_tokens_output
	  , total_cost
	  , scheduled_for
	  , started_at
	  , completed_at
	  , config
	  , tags
	  , metadata
	  , created_at
	  , updated_at
	  , created_by
	  , deleted_at
`

// Save upserts the full run record.
func (r *RunRepository) Save(ctx context.Context, run *models.OvernightRun) error {
	workflowIDsJSON, err := json.Marshal(run.WorkflowIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow ids: %w", err)
	}

	resultsJSON, err := json.Marshal(run.WorkflowResults)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow results: %w", err)
	}

	var configJSON []byte

	if run.Config != nil {
		configJSON, err = json.Marshal(run.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	tagsJSON, err := json.Marshal(run.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO overnight_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			workflow_ids = EXCLUDED.workflow_ids,
			status = EXCLUDED.status,
			current_workflow_index = EXCLUDED.current_workflow_index,
			workflow_results = EXCLUDED.workflow_results,
			total_tokens_input = EXCLUDED.total_tokens_input,
			total_tokens_output = EXCLUDED.total_tokens_output,
			total_cost = EXCLUDED.total_cost,
			scheduled_for = EXCLUDED.scheduled_for,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			config = EXCLUDED.config,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.ProjectID,
		run.Name,
		run.Description,
		workflowIDsJSON,
		run.Status,
		run.CurrentWorkflowIndex,
		resultsJSON,
		run.TotalTokensInput,
		run.TotalTokensOutput,
		run.TotalCost,
		run.ScheduledFor,
		run.StartedAt,
		run.CompletedAt,
		configJSON,
		tagsJSON,
		metadataJSON,
		run.CreatedAt,
		run.UpdatedAt,
		run.CreatedBy,
		run.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetByID returns the run, or nil when missing or soft-deleted.
func (r *RunRepository) GetByID(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM overnight_runs
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, runID, projectID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

// List returns the project's runs filtered by the options, newest first.
func (r *RunRepository) List(ctx context.Context, projectID string, opts persistence.ListRunsOptions) ([]*models.OvernightRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM overnight_runs
		WHERE project_id = $1 AND deleted_at IS NULL
	`
	args := []any{projectID}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.ScheduledAfter != nil {
		args = append(args, *opts.ScheduledAfter)
		query += fmt.Sprintf(" AND scheduled_for >= $%d", len(args))
	}

	if opts.ScheduledBefore != nil {
		args = append(args, *opts.ScheduledBefore)
		query += fmt.Sprintf(" AND scheduled_for <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectRuns(rows)
}

// ListDue returns scheduled runs across all projects whose scheduled_for
// is at or before now, earliest first.
func (r *RunRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.OvernightRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM overnight_runs
		WHERE status = $1 AND deleted_at IS NULL
		  AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
	`
	args := []any{models.RunStatusScheduled, now}

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectRuns(rows)
}

// Delete soft-deletes the run by setting deleted_at.
func (r *RunRepository) Delete(ctx context.Context, projectID, runID string) error {
	query := `
		UPDATE overnight_runs
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND project_id = $3 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), runID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", "run", projectID, runID, persistence.ErrRunNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.OvernightRun, error) {
	var (
		run             models.OvernightRun
		workflowIDsJSON []byte
		resultsJSON     []byte
		configJSON      []byte
		tagsJSON        []byte
		metadataJSON    []byte
	)

	err := row.Scan(
		&run.ID,
		&run.ProjectID,
		&run.Name,
		&run.Description,
		&workflowIDsJSON,
		&run.Status,
		&run.CurrentWorkflowIndex,
		&resultsJSON,
		&run.TotalTokensInput,
		&run.TotalTokensOutput,
		&run.TotalCost,
		&run.ScheduledFor,
		&run.StartedAt,
		&run.CompletedAt,
		&configJSON,
		&tagsJSON,
		&metadataJSON,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CreatedBy,
		&run.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(workflowIDsJSON, &run.WorkflowIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow ids: %w", err)
	}

	if err := json.Unmarshal(resultsJSON, &run.WorkflowResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow results: %w", err)
	}

	if len(configJSON) > 0 {
		run.Config = &models.RunConfig{}
		if err := json.Unmarshal(configJSON, run.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := json.Unmarshal(tagsJSON, &run.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*models.OvernightRun, error) {
	runs := make([]*models.OvernightRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
