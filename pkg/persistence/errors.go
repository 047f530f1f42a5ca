// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRunNotFound indicates an overnight run was not found within the
	// caller's project scope.
	ErrRunNotFound = errors.New("overnight run not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrGateNotFound indicates a gate was not found.
	ErrGateNotFound = errors.New("gate not found")

	// ErrInterventionNotFound indicates an intervention was not found.
	ErrInterventionNotFound = errors.New("intervention not found")

	// ErrWorkflowNotFound indicates a workflow was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op        string // Operation being performed (e.g. "GetByID", "Save")
	Entity    string // Entity kind (run, execution, gate, ...)
	ProjectID string
	ID        string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for %s %s in project %s: %v", e.Op, e.Entity, e.ID, e.ProjectID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity, projectID, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ProjectID: projectID, ID: id, Err: err}
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsGateNotFound checks if an error indicates a gate was not found.
func IsGateNotFound(err error) bool {
	return errors.Is(err, ErrGateNotFound)
}

// IsInterventionNotFound checks if an error indicates an intervention was not found.
func IsInterventionNotFound(err error) bool {
	return errors.Is(err, ErrInterventionNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
