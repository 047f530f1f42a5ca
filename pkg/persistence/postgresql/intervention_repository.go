package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// InterventionRepository handles intervention database operations.
type InterventionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const interventionColumns = `
		id
	  , project_id
	  , workflow_id
	  , execution_id
	  , step_id
	  , intervention_type
	  , message
	  , data
	  , status
	  , created_at
	  , updated_at
	  , created_by
`

// Save upserts the full intervention record.
func (r *InterventionRepository) Save(ctx context.Context, intervention *models.Intervention) error {
	dataJSON, err := json.Marshal(intervention.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := `
		INSERT INTO interventions (` + interventionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		intervention.ID,
		intervention.ProjectID,
		intervention.WorkflowID,
		intervention.ExecutionID,
		intervention.StepID,
		intervention.InterventionType,
		intervention.Message,
		dataJSON,
		intervention.Status,
		intervention.CreatedAt,
		intervention.UpdatedAt,
		intervention.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save intervention: %w", err)
	}

	return nil
}

func (r *InterventionRepository) GetByID(ctx context.Context, projectID, interventionID string) (*models.Intervention, error) {
	query := `
		SELECT ` + interventionColumns + `
		FROM interventions
		WHERE id = $1 AND project_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, interventionID, projectID)

	intervention, err := scanIntervention(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan intervention: %w", err)
	}

	return intervention, nil
}

// List returns interventions filtered by the options, creation time
// ascending so consumers apply control actions in arrival order.
func (r *InterventionRepository) List(ctx context.Context, projectID string, opts persistence.ListInterventionsOptions) ([]*models.Intervention, error) {
	query := `
		SELECT ` + interventionColumns + `
		FROM interventions
		WHERE project_id = $1
	`
	args := []any{projectID}

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.ExecutionID != "" {
		args = append(args, opts.ExecutionID)
		query += fmt.Sprintf(" AND execution_id = $%d", len(args))
	}

	if opts.Type != nil {
		args = append(args, *opts.Type)
		query += fmt.Sprintf(" AND intervention_type = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at ASC"

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
		return nil, fmt.Errorf("failed to query interventions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	interventions := make([]*models.Intervention, 0)

	for rows.Next() {
		intervention, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}

		interventions = append(interventions, intervention)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating interventions: %w", err)
	}

	return interventions, nil
}

func scanIntervention(row rowScanner) (*models.Intervention, error) {
	var (
		intervention models.Intervention
		dataJSON     []byte
	)

	err := row.Scan(
		&intervention.ID,
		&intervention.ProjectID,
		&intervention.WorkflowID,
		&intervention.ExecutionID,
		&intervention.StepID,
		&intervention.InterventionType,
		&intervention.Message,
		&dataJSON,
		&intervention.Status,
		&intervention.CreatedAt,
		&intervention.UpdatedAt,
		&intervention.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dataJSON, &intervention.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return &intervention, nil
}
