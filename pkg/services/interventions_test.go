package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
)

func newInterventionService(t *testing.T) *Interventions {
	t.Helper()

	return NewInterventions(file.NewPersistence(t.TempDir()), nil, slog.Default())
}

func createIntervention(t *testing.T, service *Interventions, executionID string, kind models.InterventionType) *models.Intervention {
	t.Helper()

	intervention, err := service.Create(t.Context(), testProject, CreateInterventionRequest{
		WorkflowID:       "wf-1",
		ExecutionID:      executionID,
		InterventionType: kind,
	})
	require.NoError(t, err)

	return intervention
}

func TestInterventions_Create(t *testing.T) {
	service := newInterventionService(t)

	intervention := createIntervention(t, service, "exec-1", models.InterventionTypePause)

	assert.NotEmpty(t, intervention.ID)
	assert.Equal(t, models.InterventionStatusPending, intervention.Status)
	assert.Equal(t, models.InterventionTypePause, intervention.InterventionType)
}

// Pending interventions come back in arrival order so the engine applies
// control actions in the sequence they were issued.
func TestInterventions_PendingForExecution_Ordered(t *testing.T) {
	service := newInterventionService(t)

	pause := createIntervention(t, service, "exec-1", models.InterventionTypePause)
	inject := createIntervention(t, service, "exec-1", models.InterventionTypeInject)
	resume := createIntervention(t, service, "exec-1", models.InterventionTypeResume)
	createIntervention(t, service, "exec-2", models.InterventionTypeCancel)

	pending, err := service.PendingForExecution(t.Context(), testProject, "exec-1")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, pause.ID, pending[0].ID)
	assert.Equal(t, inject.ID, pending[1].ID)
	assert.Equal(t, resume.ID, pending[2].ID)
}

func TestInterventions_MarkApplied(t *testing.T) {
	service := newInterventionService(t)
	intervention := createIntervention(t, service, "exec-1", models.InterventionTypeApprove)

	applied, err := service.MarkApplied(t.Context(), testProject, intervention.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterventionStatusApplied, applied.Status)

	pending, err := service.PendingForExecution(t.Context(), testProject, "exec-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// The status flips exactly once; applied and failed are both terminal.
func TestInterventions_ResolveOnce(t *testing.T) {
	service := newInterventionService(t)
	intervention := createIntervention(t, service, "exec-1", models.InterventionTypeCancel)

	_, err := service.MarkFailed(t.Context(), testProject, intervention.ID)
	require.NoError(t, err)

	_, err = service.MarkApplied(t.Context(), testProject, intervention.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterventionResolved)

	stored, err := service.FetchByID(t.Context(), testProject, intervention.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterventionStatusFailed, stored.Status)
}

func TestInterventions_FetchByID_NotFound(t *testing.T) {
	service := newInterventionService(t)

	_, err := service.FetchByID(t.Context(), testProject, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterventionNotFound)
}
