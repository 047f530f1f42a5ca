package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
)

func newWorkflowService(t *testing.T) *Workflows {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	executions := NewExecutions(p, slog.Default())

	workflows, err := NewWorkflows(p, executions, slog.Default())
	require.NoError(t, err)

	return workflows
}

func TestWorkflows_Create_Defaults(t *testing.T) {
	service := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "nightly refactor",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "plan"}, {ID: "s2", Name: "apply"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, 1, workflow.Version)
	assert.Equal(t, models.WorkflowScopePersonal, workflow.Scope)
	assert.Equal(t, models.WorkflowEnvironmentDev, workflow.Environment)
}

func TestWorkflows_Create_StepValidation(t *testing.T) {
	service := newWorkflowService(t)

	t.Run("no steps", func(t *testing.T) {
		_, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
			Name: "empty",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStepsRequired)
	})

	t.Run("step missing name", func(t *testing.T) {
		_, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
			Name:  "bad step",
			Steps: []models.WorkflowStep{{ID: "s1"}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStepConfigInvalid)
	})
}

func stringPtr(s string) *string {
	return &s
}

func TestWorkflows_Update_PartialPatch(t *testing.T) {
	service := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "pipeline",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "build"}},
	})
	require.NoError(t, err)

	// Name-only patch leaves the steps, scope and environment untouched.
	updated, err := service.Update(t.Context(), testProject, workflow.ID, UpdateWorkflowRequest{
		Name: stringPtr("pipeline v2"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "pipeline v2", updated.Name)
	require.Len(t, updated.Steps, 1)
	assert.Equal(t, models.WorkflowScopePersonal, updated.Scope)
	assert.Equal(t, models.WorkflowEnvironmentDev, updated.Environment)

	updated, err = service.Update(t.Context(), testProject, workflow.ID, UpdateWorkflowRequest{
		Steps: []models.WorkflowStep{{ID: "s1", Name: "build"}, {ID: "s2", Name: "test"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, "pipeline v2", updated.Name)
	assert.Len(t, updated.Steps, 2)
}

func TestWorkflows_Update_InvalidSteps(t *testing.T) {
	service := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "pipeline",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "build"}},
	})
	require.NoError(t, err)

	_, err = service.Update(t.Context(), testProject, workflow.ID, UpdateWorkflowRequest{
		Steps: []models.WorkflowStep{{ID: "s2"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepConfigInvalid)
}

func TestWorkflows_Delete(t *testing.T) {
	service := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "short lived",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "noop"}},
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), testProject, workflow.ID))

	_, err = service.FetchByID(t.Context(), testProject, workflow.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	err = service.Delete(t.Context(), testProject, workflow.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflows_List_FilterByName(t *testing.T) {
	service := newWorkflowService(t)

	_, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "data export",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "dump"}},
	})
	require.NoError(t, err)

	_, err = service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "report builder",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "render"}},
	})
	require.NoError(t, err)

	workflows, err := service.List(t.Context(), testProject, persistence.ListWorkflowsOptions{
		Name: "export",
	})
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "data export", workflows[0].Name)
}

func TestWorkflows_Run_CreatesPendingExecution(t *testing.T) {
	service := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), testProject, CreateWorkflowRequest{
		Name:  "runnable",
		Steps: []models.WorkflowStep{{ID: "s1", Name: "go"}},
	})
	require.NoError(t, err)

	execution, err := service.Run(t.Context(), testProject, workflow.ID, `{"target":"prod"}`, "alice")
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, execution.WorkflowID)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.Equal(t, `{"target":"prod"}`, execution.Input)
	assert.Equal(t, "alice", execution.CreatedBy)
}

func TestWorkflows_Run_UnknownWorkflow(t *testing.T) {
	service := newWorkflowService(t)

	_, err := service.Run(t.Context(), testProject, "missing", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}
