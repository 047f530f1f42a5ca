package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is absorbing.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// CanTransitionTo reports whether moving to next is a legal transition:
// pending -> running; running -> paused/completed/failed/cancelled;
// paused -> running. Terminal states have no outgoing transitions.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPending:
		return next == ExecutionStatusRunning
	case ExecutionStatusRunning:
		return next == ExecutionStatusPaused || next == ExecutionStatusCompleted ||
			next == ExecutionStatusFailed || next == ExecutionStatusCancelled
	case ExecutionStatusPaused:
		return next == ExecutionStatusRunning
	default:
		return false
	}
}

// StepResult is the recorded outcome of a single step within an execution.
type StepResult struct {
	Status     string          `json:"status"`
	Output     string          `json:"output,omitempty"`
	Cost       decimal.Decimal `json:"cost"`
	DurationMS int64           `json:"duration_ms"`
}

// WorkflowExecution tracks one workflow's run-time state: status, step
// pointer and per-step results keyed by step id.
type WorkflowExecution struct {
	ID            string                `json:"id"`
	ProjectID     string                `json:"project_id"`
	WorkflowID    string                `json:"workflow_id"`
	Status        ExecutionStatus       `json:"status"`
	CurrentStepID *string               `json:"current_step_id,omitempty"`
	StepResults   map[string]StepResult `json:"step_results"`
	Input         string                `json:"input,omitempty"`
	Output        string                `json:"output,omitempty"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	CreatedBy     string                `json:"created_by,omitempty"`
}

// ApplyStatus moves the execution to status, setting started_at on first
// entry to running and completed_at on first terminal entry. Callers
// validate the transition with CanTransitionTo.
func (e *WorkflowExecution) ApplyStatus(status ExecutionStatus, now time.Time) {
	e.Status = status
	e.UpdatedAt = now

	if status == ExecutionStatusRunning && e.StartedAt == nil {
		e.StartedAt = &now
	}

	if status.Terminal() && e.CompletedAt == nil {
		e.CompletedAt = &now
	}
}

// RecordStepResult upserts the result for stepID; the last writer for a
// given step id wins.
func (e *WorkflowExecution) RecordStepResult(stepID string, result StepResult) {
	if e.StepResults == nil {
		e.StepResults = make(map[string]StepResult)
	}

	e.StepResults[stepID] = result
}
