package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
)

func newGateService(t *testing.T) *Gates {
	t.Helper()

	return NewGates(file.NewPersistence(t.TempDir()), nil, slog.Default())
}

func createGate(t *testing.T, service *Gates, executionID, stepID string) *models.Gate {
	t.Helper()

	gate, err := service.Create(t.Context(), testProject, CreateGateRequest{
		WorkflowID:  "wf-1",
		ExecutionID: executionID,
		StepID:      stepID,
		GateType:    models.GateTypeApproval,
	})
	require.NoError(t, err)

	return gate
}

func TestGates_Create(t *testing.T) {
	service := newGateService(t)

	gate := createGate(t, service, "exec-1", "deploy")

	assert.NotEmpty(t, gate.ID)
	assert.Equal(t, models.GateStatusPending, gate.Status)
	assert.False(t, gate.Resolved())
}

func TestGates_Create_StepRequired(t *testing.T) {
	service := newGateService(t)

	_, err := service.Create(t.Context(), testProject, CreateGateRequest{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		GateType:    models.GateTypeApproval,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateStepRequired)
}

func TestGates_Create_CostGateNeedsThreshold(t *testing.T) {
	service := newGateService(t)

	_, err := service.Create(t.Context(), testProject, CreateGateRequest{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		StepID:      "expensive",
		GateType:    models.GateTypeCost,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCostThresholdRequired)

	gate, err := service.Create(t.Context(), testProject, CreateGateRequest{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		StepID:      "expensive",
		GateType:    models.GateTypeCost,
		Config:      map[string]any{"cost_threshold": 10.0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.GateTypeCost, gate.GateType)
}

func TestGates_ConvenienceConstructors(t *testing.T) {
	service := newGateService(t)

	approval, err := service.CreateApprovalGate(t.Context(), testProject, "wf-1", "exec-1", "deploy", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.GateTypeApproval, approval.GateType)
	assert.Equal(t, "alice", approval.CreatedBy)

	cost, err := service.CreateCostGate(t.Context(), testProject, "wf-1", "exec-1", "expensive", 25.0, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.GateTypeCost, cost.GateType)
	assert.Equal(t, 25.0, cost.Config["cost_threshold"])
}

func TestGates_GateForStep(t *testing.T) {
	service := newGateService(t)
	gate := createGate(t, service, "exec-1", "deploy")

	found, err := service.GateForStep(t.Context(), testProject, "exec-1", "deploy")
	require.NoError(t, err)
	assert.Equal(t, gate.ID, found.ID)

	_, err = service.GateForStep(t.Context(), testProject, "exec-1", "ungated")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateNotFound)
}

func TestGates_Approve(t *testing.T) {
	service := newGateService(t)
	gate := createGate(t, service, "exec-1", "deploy")

	approved, err := service.Approve(t.Context(), testProject, gate.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.GateStatusApproved, approved.Status)
	assert.Equal(t, "alice", approved.ReviewedBy)
	assert.True(t, approved.Resolved())
}

func TestGates_Reject(t *testing.T) {
	service := newGateService(t)
	gate := createGate(t, service, "exec-1", "deploy")

	rejected, err := service.Reject(t.Context(), testProject, gate.ID, "bob", "too risky tonight")
	require.NoError(t, err)
	assert.Equal(t, models.GateStatusRejected, rejected.Status)
	assert.Equal(t, "bob", rejected.ReviewedBy)
	assert.Equal(t, "too risky tonight", rejected.RejectionReason)
}

// A gate resolves exactly once; the second decision loses regardless of
// direction.
func TestGates_ResolveOnce(t *testing.T) {
	service := newGateService(t)
	gate := createGate(t, service, "exec-1", "deploy")

	_, err := service.Approve(t.Context(), testProject, gate.ID, "alice")
	require.NoError(t, err)

	_, err = service.Reject(t.Context(), testProject, gate.ID, "bob", "changed my mind")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateAlreadyResolved)

	_, err = service.Approve(t.Context(), testProject, gate.ID, "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateAlreadyResolved)

	stored, err := service.FetchByID(t.Context(), testProject, gate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GateStatusApproved, stored.Status)
	assert.Equal(t, "alice", stored.ReviewedBy)
}

func TestGates_IsStepApproved(t *testing.T) {
	service := newGateService(t)

	t.Run("no gate is not approval", func(t *testing.T) {
		approved, err := service.IsStepApproved(t.Context(), testProject, "exec-1", "ungated")
		require.NoError(t, err)
		assert.False(t, approved)
	})

	t.Run("pending gate is not approval", func(t *testing.T) {
		createGate(t, service, "exec-1", "pending-step")

		approved, err := service.IsStepApproved(t.Context(), testProject, "exec-1", "pending-step")
		require.NoError(t, err)
		assert.False(t, approved)
	})

	t.Run("rejected gate is not approval", func(t *testing.T) {
		gate := createGate(t, service, "exec-1", "rejected-step")

		_, err := service.Reject(t.Context(), testProject, gate.ID, "bob", "no")
		require.NoError(t, err)

		approved, err := service.IsStepApproved(t.Context(), testProject, "exec-1", "rejected-step")
		require.NoError(t, err)
		assert.False(t, approved)
	})

	t.Run("approved gate answers true for the exact pair", func(t *testing.T) {
		gate := createGate(t, service, "exec-1", "approved-step")

		_, err := service.Approve(t.Context(), testProject, gate.ID, "alice")
		require.NoError(t, err)

		approved, err := service.IsStepApproved(t.Context(), testProject, "exec-1", "approved-step")
		require.NoError(t, err)
		assert.True(t, approved)

		// Same step id under a different execution stays unapproved.
		approved, err = service.IsStepApproved(t.Context(), testProject, "exec-2", "approved-step")
		require.NoError(t, err)
		assert.False(t, approved)
	})
}

func TestGates_PendingForExecution(t *testing.T) {
	service := newGateService(t)

	first := createGate(t, service, "exec-1", "s1")
	second := createGate(t, service, "exec-1", "s2")
	createGate(t, service, "exec-2", "s1")

	_, err := service.Approve(t.Context(), testProject, first.ID, "alice")
	require.NoError(t, err)

	pending, err := service.PendingForExecution(t.Context(), testProject, "exec-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}
