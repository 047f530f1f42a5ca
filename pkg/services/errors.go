// Package services implements the business logic for runs, executions,
// gates, interventions and workflows.
package services

import (
	"errors"
	"fmt"

	"github.com/agentmatrix/matrix/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Not found errors (404).
	ErrRunNotFound          = persistence.ErrRunNotFound
	ErrExecutionNotFound    = persistence.ErrExecutionNotFound
	ErrGateNotFound         = persistence.ErrGateNotFound
	ErrInterventionNotFound = persistence.ErrInterventionNotFound
	ErrWorkflowNotFound     = persistence.ErrWorkflowNotFound

	// Validation errors (400).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNoWorkflows        = errors.New("run must contain at least one workflow")
	ErrStepsRequired      = errors.New("workflow must have at least one step")
	ErrStepConfigInvalid  = errors.New("step config does not match schema")
	ErrGateStepRequired   = errors.New("gate requires a step id")
	ErrCostThresholdRequired = errors.New("cost gate requires a cost_threshold config value")

	// Conflicts (409).
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrGateAlreadyResolved    = errors.New("gate has already been resolved")
	ErrInterventionResolved   = errors.New("intervention has already been consumed")

	// Configuration errors (500).
	ErrExecutorNotConfigured = errors.New("workflow executor is not configured")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNoWorkflows) ||
		errors.Is(err, ErrStepsRequired) ||
		errors.Is(err, ErrStepConfigInvalid) ||
		errors.Is(err, ErrGateStepRequired) ||
		errors.Is(err, ErrCostThresholdRequired)
}

// IsNotFound checks if an error indicates a missing entity (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrGateNotFound) ||
		errors.Is(err, ErrInterventionNotFound) ||
		errors.Is(err, ErrWorkflowNotFound)
}

// IsConflict checks if an error is a business logic conflict (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrGateAlreadyResolved) ||
		errors.Is(err, ErrInterventionResolved)
}
