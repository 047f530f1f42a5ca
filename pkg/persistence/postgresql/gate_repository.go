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

// GateRepository handles gate database operations.
type GateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const gateColumns = `
		id
	  , project_id
	  , workflow_id
	  , execution_id
	  , step_id
	  , gate_type
	  , status
	  , reviewed_by
	  , rejection_reason
	  , config
	  , context
	  , created_at
	  , updated_at
	  , created_by
`

// Save upserts the full gate record.
func (r *GateRepository) Save(ctx context.Context, gate *models.Gate) error {
	configJSON, err := json.Marshal(gate.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	contextJSON, err := json.Marshal(gate.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		INSERT INTO gates (` + gateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reviewed_by = EXCLUDED.reviewed_by,
			rejection_reason = EXCLUDED.rejection_reason,
			config = EXCLUDED.config,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		gate.ID,
		gate.ProjectID,
		gate.WorkflowID,
		gate.ExecutionID,
		gate.StepID,
		gate.GateType,
		gate.Status,
		gate.ReviewedBy,
		gate.RejectionReason,
		configJSON,
		contextJSON,
		gate.CreatedAt,
		gate.UpdatedAt,
		gate.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save gate: %w", err)
	}

	return nil
}

func (r *GateRepository) GetByID(ctx context.Context, projectID, gateID string) (*models.Gate, error) {
	query := `
		SELECT ` + gateColumns + `
		FROM gates
		WHERE id = $1 AND project_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, gateID, projectID)

	gate, err := scanGate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan gate: %w", err)
	}

	return gate, nil
}

// List returns the project's gates filtered by the options, oldest first.
func (r *GateRepository) List(ctx context.Context, projectID string, opts persistence.ListGatesOptions) ([]*models.Gate, error) {
	query := `
		SELECT ` + gateColumns + `
		FROM gates
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

	if opts.GateType != nil {
		args = append(args, *opts.GateType)
		query += fmt.Sprintf(" AND gate_type = $%d", len(args))
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
		return nil, fmt.Errorf("failed to query gates: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	gates := make([]*models.Gate, 0)

	for rows.Next() {
		gate, err := scanGate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gate: %w", err)
		}

		gates = append(gates, gate)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating gates: %w", err)
	}

	return gates, nil
}

// GetForStep returns the gate for the exact (execution, step) pair, or nil.
func (r *GateRepository) GetForStep(ctx context.Context, projectID, executionID, stepID string) (*models.Gate, error) {
	query := `
		SELECT ` + gateColumns + `
		FROM gates
		WHERE project_id = $1 AND execution_id = $2 AND step_id = $3
	`

	row := r.db.QueryRowContext(ctx, query, projectID, executionID, stepID)

	gate, err := scanGate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan gate: %w", err)
	}

	return gate, nil
}

func scanGate(row rowScanner) (*models.Gate, error) {
	var (
		gate        models.Gate
		configJSON  []byte
		contextJSON []byte
	)

	err := row.Scan(
		&gate.ID,
		&gate.ProjectID,
		&gate.WorkflowID,
		&gate.ExecutionID,
		&gate.StepID,
		&gate.GateType,
		&gate.Status,
		&gate.ReviewedBy,
		&gate.RejectionReason,
		&configJSON,
		&contextJSON,
		&gate.CreatedAt,
		&gate.UpdatedAt,
		&gate.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &gate.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := json.Unmarshal(contextJSON, &gate.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	return &gate, nil
}
