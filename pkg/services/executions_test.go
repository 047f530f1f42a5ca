package services

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
)

func newExecutionService(t *testing.T) (*Executions, *Workflows) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	executions := NewExecutions(persistence, slog.Default())

	workflows, err := NewWorkflows(persistence, executions, slog.Default())
	require.NoError(t, err)

	return executions, workflows
}

func createExecution(t *testing.T, executions *Executions, workflows *Workflows) *models.WorkflowExecution {
	t.Helper()

	workflow, err := workflows.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "deploy pipeline",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "build"}},
	})
	require.NoError(t, err)

	execution, err := executions.Create(t.Context(), testProject, CreateExecutionRequest{
		WorkflowID: workflow.ID,
	})
	require.NoError(t, err)

	return execution
}

func TestExecutions_Create(t *testing.T) {
	executions, workflows := newExecutionService(t)

	execution := createExecution(t, executions, workflows)

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.NotNil(t, execution.StepResults)
	assert.Nil(t, execution.StartedAt)
}

func TestExecutions_Create_UnknownWorkflow(t *testing.T) {
	executions, _ := newExecutionService(t)

	_, err := executions.Create(t.Context(), testProject, CreateExecutionRequest{
		WorkflowID: "missing",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestExecutions_Transitions(t *testing.T) {
	executions, workflows := newExecutionService(t)

	t.Run("pending to running sets started_at once", func(t *testing.T) {
		execution := createExecution(t, executions, workflows)

		started, err := executions.Start(t.Context(), testProject, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusRunning, started.Status)
		require.NotNil(t, started.StartedAt)

		paused, err := executions.Pause(t.Context(), testProject, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusPaused, paused.Status)

		resumed, err := executions.Resume(t.Context(), testProject, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusRunning, resumed.Status)
		assert.Equal(t, started.StartedAt, resumed.StartedAt)
	})

	t.Run("pending cannot pause or cancel", func(t *testing.T) {
		execution := createExecution(t, executions, workflows)

		_, err := executions.Pause(t.Context(), testProject, execution.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)

		_, err = executions.Cancel(t.Context(), testProject, execution.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("terminal states are absorbing", func(t *testing.T) {
		execution := createExecution(t, executions, workflows)

		_, err := executions.Start(t.Context(), testProject, execution.ID)
		require.NoError(t, err)

		completed, err := executions.Transition(t.Context(), testProject, execution.ID, models.ExecutionStatusCompleted)
		require.NoError(t, err)
		require.NotNil(t, completed.CompletedAt)

		_, err = executions.Start(t.Context(), testProject, execution.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestExecutions_SetCurrentStep(t *testing.T) {
	executions, workflows := newExecutionService(t)
	execution := createExecution(t, executions, workflows)

	updated, err := executions.SetCurrentStep(t.Context(), testProject, execution.ID, "s1")
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentStepID)
	assert.Equal(t, "s1", *updated.CurrentStepID)
}

func TestExecutions_RecordStepResult_LastWriterWins(t *testing.T) {
	executions, workflows := newExecutionService(t)
	execution := createExecution(t, executions, workflows)

	_, err := executions.RecordStepResult(t.Context(), testProject, execution.ID, "s1", models.StepResult{
		Status: "failed",
	})
	require.NoError(t, err)

	updated, err := executions.RecordStepResult(t.Context(), testProject, execution.ID, "s1", models.StepResult{
		Status:     "completed",
		Output:     "done",
		Cost:       decimal.NewFromFloat(0.01),
		DurationMS: 42,
	})
	require.NoError(t, err)

	require.Len(t, updated.StepResults, 1)
	assert.Equal(t, "completed", updated.StepResults["s1"].Status)
	assert.Equal(t, "done", updated.StepResults["s1"].Output)
}

func TestExecutions_FetchByID_NotFound(t *testing.T) {
	executions, _ := newExecutionService(t)

	_, err := executions.FetchByID(t.Context(), testProject, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}
