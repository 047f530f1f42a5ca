// Package protocol defines the interfaces between the control plane and
// the engines that actually run workflows.
package protocol

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExecutionResult is what a workflow executor reports back for one
// workflow run.
type ExecutionResult struct {
	Output       string
	TokensInput  int64
	TokensOutput int64
	Cost         decimal.Decimal
}

// WorkflowExecutor runs a single workflow to completion. Implementations
// bridge to the actual agent execution engine; the batch loop treats a
// returned error as a failed workflow and keeps going.
type WorkflowExecutor interface {
	ExecuteWorkflow(ctx context.Context, projectID, workflowID string) (*ExecutionResult, error)
}
