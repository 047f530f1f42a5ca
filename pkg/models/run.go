// Package models defines the core domain models for overnight batch execution.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus represents the lifecycle state of an overnight run.
type RunStatus string

const (
	RunStatusScheduled RunStatus = "scheduled" // Created, waiting to start
	RunStatusRunning   RunStatus = "running"   // Batch loop is executing
	RunStatusPaused    RunStatus = "paused"    // Stopped at an iteration boundary, resumable
	RunStatusCompleted RunStatus = "completed" // All workflows completed
	RunStatusFailed    RunStatus = "failed"    // Finished with at least one failed workflow
	RunStatusCancelled RunStatus = "cancelled" // Cancelled by an external writer
)

// Terminal reports whether the status is absorbing.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// CanTransitionTo reports whether moving to next is a legal transition.
// Cancel is permitted from every non-terminal status and from failed, so a
// failed run can still be closed out by an operator.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusScheduled:
		return next == RunStatusRunning || next == RunStatusCancelled
	case RunStatusRunning:
		return next == RunStatusPaused || next == RunStatusCompleted ||
			next == RunStatusFailed || next == RunStatusCancelled
	case RunStatusPaused:
		return next == RunStatusRunning || next == RunStatusCancelled
	case RunStatusFailed:
		return next == RunStatusCancelled
	default:
		return false
	}
}

// ResultStatus is the outcome of a single workflow within a run.
type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
	ResultStatusSkipped   ResultStatus = "skipped"
)

// WorkflowResult records the outcome of one workflow execution inside an
// overnight run. The results slice on the run is append-only and owned
// exclusively by the batch loop.
type WorkflowResult struct {
	WorkflowID   string          `json:"workflow_id"`
	Status       ResultStatus    `json:"status"`
	Output       string          `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	TokensInput  int64           `json:"tokens_input"`
	TokensOutput int64           `json:"tokens_output"`
	Cost         decimal.Decimal `json:"cost"`
	DurationMS   int64           `json:"duration_ms"`
}

// RunConfig holds execution options for an overnight run.
//
// Parallel, RetryFailed and MaxRetries are reserved: the batch loop runs
// items strictly in sequence and never retries on its own. Retries are a
// caller-driven re-invocation of Execute from the persisted index.
type RunConfig struct {
	Parallel         bool     `json:"parallel"`
	RetryFailed      bool     `json:"retry_failed"`
	MaxRetries       int      `json:"max_retries"`
	NotifyOnComplete bool     `json:"notify_on_complete"`
	NotifyEmails     []string `json:"notify_emails,omitempty"`
}

// OvernightRun is a batch of workflows executed sequentially overnight.
type OvernightRun struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// WorkflowIDs defines execution order; the cursor below indexes it.
	WorkflowIDs          []string         `json:"workflow_ids"`
	Status               RunStatus        `json:"status"`
	CurrentWorkflowIndex int              `json:"current_workflow_index"`
	WorkflowResults      []WorkflowResult `json:"workflow_results"`

	TotalTokensInput  int64           `json:"total_tokens_input"`
	TotalTokensOutput int64           `json:"total_tokens_output"`
	TotalCost         decimal.Decimal `json:"total_cost"`

	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Config   *RunConfig     `json:"config,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy string     `json:"created_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ApplyStatus moves the run to status and maintains the set-once
// timestamps: started_at on first entry to running, completed_at on first
// terminal entry. Callers validate the transition with CanTransitionTo.
func (r *OvernightRun) ApplyStatus(status RunStatus, now time.Time) {
	r.Status = status
	r.UpdatedAt = now

	if status == RunStatusRunning && r.StartedAt == nil {
		r.StartedAt = &now
	}

	if status.Terminal() && r.CompletedAt == nil {
		r.CompletedAt = &now
	}
}

// FailedResults counts failed entries in the results slice.
func (r *OvernightRun) FailedResults() int {
	count := 0

	for _, result := range r.WorkflowResults {
		if result.Status == ResultStatusFailed {
			count++
		}
	}

	return count
}

// CompletedResults counts completed entries in the results slice.
func (r *OvernightRun) CompletedResults() int {
	count := 0

	for _, result := range r.WorkflowResults {
		if result.Status == ResultStatusCompleted {
			count++
		}
	}

	return count
}

// RunProgress is the derived progress view of an overnight run.
type RunProgress struct {
	ID                   string    `json:"id"`
	Status               RunStatus `json:"status"`
	TotalWorkflows       int       `json:"total_workflows"`
	CompletedWorkflows   int       `json:"completed_workflows"`
	FailedWorkflows      int       `json:"failed_workflows"`
	CurrentWorkflowIndex int       `json:"current_workflow_index"`
	CurrentWorkflowID    *string   `json:"current_workflow_id,omitempty"`
	ProgressPercent      float64   `json:"progress_percent"`
	EstimatedRemainingMS *int64    `json:"estimated_remaining_ms,omitempty"`
}
